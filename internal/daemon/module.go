package daemon

import (
	"context"

	"github.com/matheus3301/jewelchat/internal/api"
	"github.com/matheus3301/jewelchat/internal/bus"
	"github.com/matheus3301/jewelchat/internal/config"
	"github.com/matheus3301/jewelchat/internal/conversation"
	"github.com/matheus3301/jewelchat/internal/history"
	"github.com/matheus3301/jewelchat/internal/lock"
	"github.com/matheus3301/jewelchat/internal/logging"
	"github.com/matheus3301/jewelchat/internal/outbox"
	"github.com/matheus3301/jewelchat/internal/profile"
	"github.com/matheus3301/jewelchat/internal/socket"
	"github.com/matheus3301/jewelchat/internal/store"
	intsync "github.com/matheus3301/jewelchat/internal/sync"
	"github.com/matheus3301/jewelchat/internal/transport/ws"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	SocketPath string         // optional override for testing; empty = use default
	Config     *config.Config // optional; nil = load ~/.jewelchat/config.toml and .env
	Dialer     socket.Dialer  // optional; nil = WebSocket transport from config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideRegistry,
			provideDialer,
			provideManager,
			provideHistory,
			provideSyncEngine,
			provideSender,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(profile.EnvPath()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.LockPath(p.Profile), p.Profile)
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so the mirror is never opened by two daemons.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRegistry(cfg *config.Config) *conversation.Registry {
	return conversation.NewRegistry(conversation.WithMatchWindow(cfg.MatchWindow()))
}

func provideDialer(p Params, cfg *config.Config, logger *zap.Logger) socket.Dialer {
	if p.Dialer != nil {
		return p.Dialer
	}
	return ws.NewDialer(ws.Options{
		URL:      cfg.Server.SocketURL,
		MinDelay: cfg.ReconnectDelay(),
		Logger:   logger.Named("ws"),
	})
}

func provideManager(dial socket.Dialer, b *bus.Bus, logger *zap.Logger) *socket.Manager {
	return socket.NewManager(dial, b, logger.Named("socket"))
}

func provideHistory(cfg *config.Config, logger *zap.Logger) *history.Client {
	return history.New(cfg.Server.BaseURL, nil, logger)
}

func provideSyncEngine(db *store.DB, b *bus.Bus, reg *conversation.Registry, mgr *socket.Manager, hist *history.Client, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, reg, mgr, hist, logger.Named("sync"))
}

func provideSender(reg *conversation.Registry, mgr *socket.Manager, engine *intsync.Engine, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(reg, mgr, engine, b, logger.Named("outbox"))
}

func provideService(p Params, mgr *socket.Manager, engine *intsync.Engine, sender *outbox.Sender, reg *conversation.Registry, db *store.DB, b *bus.Bus, logger *zap.Logger) *api.Service {
	return api.NewService(api.Deps{
		Profile:       p.Profile,
		Sessions:      mgr,
		Conversations: engine,
		Messenger:     sender,
		Registry:      reg,
		DB:            db,
		Bus:           b,
		Logger:        logger.Named("api"),
		SaveCredentials: func(c socket.Credentials) error {
			return profile.SaveCredentials(p.Profile, profile.Credentials{Token: c.Token, UserID: c.UserID})
		},
	})
}

func registerLifecycle(lc fx.Lifecycle, p Params, srv *Server, lk *lock.Lock, db *store.DB, mgr *socket.Manager, engine *intsync.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start sync engine (subscribes to socket.* bus events).
			engine.Start(context.Background())

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			creds, err := profile.LoadCredentials(p.Profile)
			if err != nil {
				logger.Warn("could not read stored credentials", zap.Error(err))
			}
			if !(socket.Credentials{Token: creds.Token, UserID: creds.UserID}).Valid() {
				logger.Info("no credentials found, waiting for SetCredentials")
				return nil
			}
			return mgr.SetCredentials(socket.Credentials{Token: creds.Token, UserID: creds.UserID})
		},
		OnStop: func(ctx context.Context) error {
			mgr.Close()
			engine.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
