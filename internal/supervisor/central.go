package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"warden/internal/gateway"
	"warden/internal/repository"
)

// CentralTokenSetting is the app setting key holding the encrypted central
// bot token.
const CentralTokenSetting = "central_bot_token"

// StartCentral starts the centralized session. It is a no-op when the session
// is already live or starting.
func (s *Supervisor) StartCentral(ctx context.Context) (bool, error) {
	s.mu.RLock()
	sess, ok := s.sessions[CentralKey]
	running := ok && (sess.state == StateLive || sess.state == StateStarting)
	s.mu.RUnlock()
	if running {
		return true, nil
	}

	token := s.resolveCentralToken(ctx)
	if token == "" {
		return false, ErrNoCentralCredential
	}
	return s.Start(ctx, CentralKey, token, ""), nil
}

// RestartCentral replaces the centralized session. A non-empty newToken is
// encrypted, persisted and cached before the restart.
func (s *Supervisor) RestartCentral(ctx context.Context, newToken string) (bool, error) {
	if newToken != "" {
		encrypted, err := s.vault.Encrypt(newToken)
		if err != nil {
			return false, fmt.Errorf("encrypt central token: %w", err)
		}
		if err := s.store.SetAppSetting(ctx, CentralTokenSetting, encrypted, true); err != nil {
			return false, fmt.Errorf("persist central token: %w", err)
		}
		s.mu.Lock()
		s.centralToken = newToken
		s.mu.Unlock()
	}

	s.Stop(ctx, CentralKey)

	token := s.resolveCentralToken(ctx)
	if token == "" {
		return false, ErrNoCentralCredential
	}
	return s.Start(ctx, CentralKey, token, ""), nil
}

// CentralStatus returns the status of the centralized session.
func (s *Supervisor) CentralStatus() Status {
	return s.Status(CentralKey)
}

// DeployPanel posts the report panel into a channel through the centralized
// session.
func (s *Supervisor) DeployPanel(ctx context.Context, channelID string) error {
	s.mu.RLock()
	sess, ok := s.sessions[CentralKey]
	var conn gateway.Conn
	if ok && sess.state == StateLive {
		conn = sess.conn
	}
	s.mu.RUnlock()

	if conn == nil {
		return ErrNotLive
	}
	return conn.SendMessage(ctx, channelID, s.surface.Panel())
}

// resolveCentralToken checks the in-memory cache, then the encrypted app
// setting, then the environment fallback. The first hit is cached.
func (s *Supervisor) resolveCentralToken(ctx context.Context) string {
	s.mu.RLock()
	cached := s.centralToken
	s.mu.RUnlock()
	if cached != "" {
		return cached
	}

	token := s.storedCentralToken(ctx)
	if token == "" {
		token = s.envCentralToken
	}
	if token != "" {
		s.mu.Lock()
		s.centralToken = token
		s.mu.Unlock()
	}
	return token
}

func (s *Supervisor) storedCentralToken(ctx context.Context) string {
	if s.store == nil {
		return ""
	}
	setting, err := s.store.GetAppSetting(ctx, CentralTokenSetting)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to load central bot token",
				slog.String("error", err.Error()))
		}
		return ""
	}
	if !setting.Encrypted {
		return setting.Value
	}
	token, err := s.vault.Decrypt(setting.Value)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to decrypt central bot token",
			slog.String("error", err.Error()))
		return ""
	}
	return token
}
