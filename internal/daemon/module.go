package daemon

import (
	"context"
	"io"
	"path/filepath"

	"github.com/matheus3301/relay/internal/api"
	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/chat"
	"github.com/matheus3301/relay/internal/config"
	"github.com/matheus3301/relay/internal/conversations"
	"github.com/matheus3301/relay/internal/delivery"
	"github.com/matheus3301/relay/internal/directory"
	"github.com/matheus3301/relay/internal/httpapi"
	"github.com/matheus3301/relay/internal/identity"
	"github.com/matheus3301/relay/internal/instance"
	"github.com/matheus3301/relay/internal/live"
	"github.com/matheus3301/relay/internal/lock"
	"github.com/matheus3301/relay/internal/logging"
	"github.com/matheus3301/relay/internal/metrics"
	"github.com/matheus3301/relay/internal/notify"
	"github.com/matheus3301/relay/internal/presence"
	"github.com/matheus3301/relay/internal/status"
	"github.com/matheus3301/relay/internal/store"
	"github.com/matheus3301/relay/internal/uploads"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved instance configuration passed to the fx module.
type Params struct {
	Instance   string
	SocketPath string         // optional override for testing; empty = use default
	Config     *config.Config // optional; nil = load from disk and environment
	Logger     *zap.Logger    // optional; nil = log to the instance log file
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideIdentity,
			provideStore,
			provideRegistry,
			provideRouter,
			provideDirectory,
			provideAggregator,
			provideUploads,
			provideChat,
			provideTokens,
			provideNotifier,
			provideDispatcher,
			provideLive,
			provideHTTP,
			provideRelayService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadWithEnv(instance.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger.With(zap.String("instance", p.Instance)), nil
	}
	return logging.New(instance.LogPath(p.Instance), p.Instance, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	if err := instance.EnsureDir(p.Instance); err != nil {
		return nil, err
	}
	logger.Info("acquiring instance lock", zap.String("instance", p.Instance))
	l, err := lock.Acquire(instance.Dir(p.Instance), cfg.HTTP.Addr)
	if err != nil {
		return nil, err
	}
	logger.Info("instance lock acquired")
	return l, nil
}

func provideIdentity(cfg *config.Config) identity.Normalizer {
	return identity.New(cfg.Operator.ID, cfg.Operator.Aliases...)
}

// provideStore depends on the lock so two daemons never share a database.
func provideStore(p Params, cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (store.Store, store.Backend) {
	opts := store.Options{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN}
	if opts.DSN == "" && (opts.Driver == "" || opts.Driver == "sqlite") {
		opts.Driver = "sqlite"
		opts.DSN = instance.DBPath(p.Instance)
	}
	s, backend := store.Open(context.Background(), opts, logger)
	return store.WithMetrics(s), backend
}

func provideRegistry() *presence.Registry {
	return presence.NewRegistry()
}

func provideRouter(ids identity.Normalizer, reg *presence.Registry, b *bus.Bus, logger *zap.Logger) *delivery.Router {
	return delivery.NewRouter(ids, reg, b, logger)
}

func provideDirectory(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (directory.Directory, error) {
	dc := cfg.Directory
	if dc.URL == "" {
		logger.Info("profile directory disabled")
		return directory.NewStatic(), nil
	}
	cached, err := directory.NewCached(
		directory.NewHTTPClient(dc.URL, dc.Timeout, dc.Retries, logger),
		dc.CacheTTL,
		dc.CacheSize,
	)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(cached.Close))
	logger.Info("profile directory configured", zap.String("url", dc.URL))
	return cached, nil
}

func provideAggregator(ids identity.Normalizer, s store.Store, dir directory.Directory, cfg *config.Config, logger *zap.Logger) *conversations.Aggregator {
	return conversations.NewAggregator(ids, s, dir, conversations.Options{
		Workers:       cfg.Directory.Workers,
		LookupTimeout: cfg.Directory.Timeout,
	}, logger)
}

func provideUploads(p Params, cfg *config.Config) (*uploads.Dir, error) {
	root := cfg.Uploads.Dir
	if root == "" {
		root = instance.UploadsDir(p.Instance)
	}
	return uploads.New(filepath.Clean(root), cfg.Uploads.MaxBytes)
}

func provideChat(ids identity.Normalizer, s store.Store, r *delivery.Router, agg *conversations.Aggregator, up *uploads.Dir, b *bus.Bus, logger *zap.Logger) *chat.Service {
	return chat.NewService(chat.Deps{
		IDs:        ids,
		Store:      s,
		Router:     r,
		Aggregator: agg,
		Uploads:    up,
		Bus:        b,
		Logger:     logger,
	})
}

func provideTokens() *notify.Tokens {
	return notify.NewTokens()
}

// provideNotifier publishes to NATS when configured. An unreachable server
// is not fatal; notifications are logged instead.
func provideNotifier(cfg *config.Config, logger *zap.Logger) notify.Notifier {
	if cfg.Push.NATSURL == "" {
		return notify.LogNotifier{Logger: logger}
	}
	n, err := notify.NewNATSNotifier(notify.NATSOptions{
		URL:           cfg.Push.NATSURL,
		Subject:       cfg.Push.Subject,
		MaxReconnects: -1,
	}, logger)
	if err != nil {
		logger.Warn("push notifications will only be logged", zap.Error(err))
		return notify.LogNotifier{Logger: logger}
	}
	logger.Info("push notifications via NATS", zap.String("subject", cfg.Push.Subject))
	return n
}

func provideDispatcher(ids identity.Normalizer, b *bus.Bus, tokens *notify.Tokens, dir directory.Directory, n notify.Notifier, cfg *config.Config, logger *zap.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(ids, b, tokens, dir, n, cfg.Push.Title, logger)
}

func provideLive(svc *chat.Service, reg *presence.Registry, tokens *notify.Tokens, cfg *config.Config, logger *zap.Logger) *live.Server {
	return live.NewServer(svc, reg, tokens, live.Options{
		SendBuffer:     cfg.HTTP.SendBuffer,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		OriginPatterns: cfg.HTTP.OriginPatterns,
	}, logger)
}

func provideHTTP(cfg *config.Config, svc *chat.Service, ls *live.Server, tokens *notify.Tokens, m *status.Machine, up *uploads.Dir, logger *zap.Logger) *HTTPServer {
	h := httpapi.NewRouter(httpapi.Deps{
		Chat:         svc,
		Live:         ls,
		Tokens:       tokens,
		Status:       m,
		UploadsDir:   up.Path(),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Logger:       logger,
	})
	srv := newHTTPServer(cfg.HTTP.Addr, h, logger)
	srv.srv.RegisterOnShutdown(ls.Shutdown)
	return srv
}

func provideRelayService(p Params, svc *chat.Service, m *status.Machine, reg *presence.Registry, backend store.Backend, b *bus.Bus, logger *zap.Logger) *api.RelayService {
	return api.NewRelayService(api.Deps{
		Instance: p.Instance,
		Chat:     svc,
		Machine:  m,
		Presence: reg,
		Backend:  backend,
		Bus:      b,
		Logger:   logger,
	})
}

type lifecycleDeps struct {
	fx.In

	Server     *Server
	HTTP       *HTTPServer
	Lock       *lock.Lock
	Store      store.Store
	Backend    store.Backend
	Registry   *presence.Registry
	Dispatcher *notify.Dispatcher
	Notifier   notify.Notifier
	Machine    *status.Machine
	Logger     *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	logger := d.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			metrics.ObservePresence(d.Registry)

			// Push notifications follow message.saved bus events.
			d.Dispatcher.Start(context.Background())

			if err := d.HTTP.Start(); err != nil {
				_ = d.Machine.TransitionReason(status.Error, err.Error())
				return err
			}

			go func() {
				if err := d.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if d.Backend.Fallback {
				reason := "message store fell back to memory"
				if d.Backend.Err != nil {
					reason += ": " + d.Backend.Err.Error()
				}
				_ = d.Machine.TransitionReason(status.Degraded, reason)
			} else {
				_ = d.Machine.Transition(status.Ready)
			}
			logger.Info("daemon started",
				zap.String("http", d.HTTP.Addr()),
				zap.String("store", string(d.Backend.Mode)),
				zap.String("status", string(d.Machine.Current())),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = d.Machine.Transition(status.Stopping)
			if err := d.HTTP.Stop(ctx); err != nil {
				logger.Warn("error stopping HTTP server", zap.Error(err))
			}
			d.Server.Stop(ctx)
			d.Dispatcher.Stop()
			if c, ok := d.Notifier.(io.Closer); ok {
				_ = c.Close()
			}
			if err := d.Store.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
