// Package bootstrap connects infrastructure and wires the service graph.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"warden/internal/cache"
	"warden/internal/commands"
	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/featureflags"
	"warden/internal/gateway"
	"warden/internal/notifications"
	"warden/internal/repository"
	"warden/internal/roblox"
	"warden/internal/server"
	"warden/internal/supervisor"
	"warden/internal/trust"
	"warden/internal/vault"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and Redis. The Redis client is nil
// when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, cache.NewClient(ctx, cfg.RedisURL), nil
}

// Runtime is the wired service graph.
type Runtime struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Store      repository.Store
	Vault      *vault.Vault
	Roblox     *roblox.Client
	Scorer     *trust.Scorer
	Flags      *featureflags.Manager
	Router     *commands.Router
	Mirror     *notifications.SessionMirror
	Hub        *notifications.StatusHub
	Supervisor *supervisor.Supervisor
	Server     *server.Server
}

// Wire builds every component on top of an initialized database and Redis
// client. A nil dialer selects the Discord gateway.
func Wire(cfg *config.Config, db *gorm.DB, rdb *redis.Client, dialer gateway.Dialer) (*Runtime, error) {
	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	v, err := vault.New(key)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(db)
	client := roblox.NewClient(roblox.Config{
		UsersBaseURL:   cfg.RobloxUsersAPIURL,
		CloudBaseURL:   cfg.RobloxCloudAPIURL,
		RatePerSecond:  cfg.RobloxRateLimitPerSecond,
		RequestTimeout: time.Duration(cfg.RobloxHTTPTimeoutSeconds) * time.Second,
	})
	scorer := trust.NewScorer(client, store)
	flags := featureflags.NewManager(cfg.FeatureFlags)

	router, err := commands.NewRouter(commands.Deps{
		Store:    store,
		Enforcer: client,
		Scorer:   scorer,
		Vault:    v,
	}, commands.WithFlags(flags))
	if err != nil {
		return nil, fmt.Errorf("build command router: %w", err)
	}

	if dialer == nil {
		dialer = gateway.DiscordDialer{}
	}
	mirror := notifications.NewSessionMirror(rdb, 0)
	sup := supervisor.New(supervisor.Deps{
		Dialer:   dialer,
		Surface:  router,
		Vault:    v,
		Store:    store,
		Observer: mirror,
	},
		supervisor.WithConcurrency(cfg.BulkStartConcurrency),
		supervisor.WithCentralToken(cfg.CentralBotToken),
	)

	hub := notifications.NewStatusHub()
	srv := server.New(server.Deps{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Store:      store,
		Vault:      v,
		Supervisor: sup,
		Links:      router,
		Mirror:     mirror,
		Hub:        hub,
		Flags:      flags,
	})

	return &Runtime{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Store:      store,
		Vault:      v,
		Roblox:     client,
		Scorer:     scorer,
		Flags:      flags,
		Router:     router,
		Mirror:     mirror,
		Hub:        hub,
		Supervisor: sup,
		Server:     srv,
	}, nil
}

// Close releases the database and Redis connections.
func (r *Runtime) Close() error {
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			return err
		}
	}
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
