package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// LoadAll starts a session for every tenant with a stored credential. Dials
// run with bounded concurrency; a tenant whose token fails to decrypt or whose
// handshake is rejected is logged and skipped. It returns the number of
// sessions started.
func (s *Supervisor) LoadAll(ctx context.Context) (int, error) {
	creds, err := s.store.ListAllBotCredentials(ctx)
	if err != nil {
		return 0, fmt.Errorf("list bot credentials: %w", err)
	}

	var started atomic.Int32
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, cred := range creds {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			token, err := s.vault.Decrypt(cred.EncryptedToken)
			if err != nil {
				s.log.LogError(ctx, cred.TenantID, err, "decrypt_token")
				return nil
			}
			if s.Start(ctx, cred.TenantID, token, cred.GuildID) {
				started.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(started.Load())
	s.logger.InfoContext(ctx, "bulk session start complete",
		slog.Int("credentials", len(creds)),
		slog.Int("started", n),
	)
	return n, ctx.Err()
}
