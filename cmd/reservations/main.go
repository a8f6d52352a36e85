package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/auth"
	"github.com/example/room-reservations/internal/calendar"
	"github.com/example/room-reservations/internal/config"
	"github.com/example/room-reservations/internal/feed"
	httptransport "github.com/example/room-reservations/internal/http"
	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/maintenance"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/fallback"
	"github.com/example/room-reservations/internal/persistence/memory"
	"github.com/example/room-reservations/internal/persistence/redis"
	"github.com/example/room-reservations/internal/persistence/sqlite"
	"github.com/example/room-reservations/internal/realtime"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "reservations",
		Usage: "room reservation API with Google Calendar sync",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Usage:   "optional YAML file of configuration variables",
						Sources: cli.EnvVars(config.FileEnv),
					},
				},
				Action: runServe,
			},
			{
				Name:  "migrate",
				Usage: "apply pending SQLite migrations and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dsn",
						Usage:   "SQLite data source name",
						Value:   "file:reservations.db",
						Sources: cli.EnvVars("SQLITE_DSN"),
					},
				},
				Action: runMigrate,
			},
		},
		DefaultCommand: "serve",
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadFile(cmd.String("config"))
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		return err
	}
	defer func() {
		if cerr := srv.Close(); cerr != nil {
			logger.Error("failed to close resources", "error", cerr)
		}
	}()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	srv.jobs.Start()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if srv.hub != nil {
			srv.hub.Close()
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
		srv.jobs.Stop(shutdownCtx)
	}()

	logger.Info("reservation API listening",
		"addr", httpServer.Addr,
		"store", srv.store.Name(),
		"calendar_sync", cfg.GoogleConfigured(),
		"realtime", cfg.RealtimeEnabled,
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	logger, err := logging.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return err
	}

	storage, err := sqlite.Open(cmd.String("dsn"), logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		return err
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	applied, err := storage.Migrate(ctx)
	if err != nil {
		logger.Error("failed to apply migrations", "error", err)
		return err
	}
	logger.Info("migrations applied", "count", applied)
	return nil
}

// server holds everything serve needs to run and later release.
type server struct {
	handler  http.Handler
	store    *fallback.Chain
	hub      *realtime.Hub
	jobs     *maintenance.Scheduler
	sessions *auth.SessionStore
	states   *auth.StateStore
}

func (s *server) Close() error {
	return s.store.Close()
}

func buildServer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*server, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("store not reachable at startup, continuing", "store", store.Name(), "error", err)
	}
	cancel()

	sealer, err := auth.NewSealer(cfg.SessionSecret)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	states := auth.NewStateStore()
	sessions := auth.NewSessionStore(cfg.SessionTTL)
	credentials := newCredentialRepositoryAdapter(store, sealer)

	var (
		provider     application.IdentityProvider
		calendarSync application.CalendarSync
	)
	if cfg.GoogleConfigured() {
		google := auth.NewGoogleProvider(ctx, auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
		})
		provider = identityProviderAdapter{provider: google}
		calendarSync = calendarAdapter{client: calendar.NewClient(google.OAuthConfig(), calendar.Config{
			CalendarID: cfg.GoogleCalendarID,
			RoomName:   cfg.RoomName,
			Location:   cfg.RoomLocation,
			TimeZone:   cfg.TimeZone,
			Timeout:    cfg.CalendarSyncTimeout,
		}, logger)}
	} else {
		logger.Info("google client not configured, sign in and calendar sync disabled")
	}

	authService := application.NewAuthServiceWithLogger(provider, loginStateAdapter{states: states}, sessionStoreAdapter{sessions: sessions}, credentials, time.Now, logger)

	var syncCredentials application.SyncCredentials
	if calendarSync != nil {
		syncCredentials = authService
	}

	var (
		hub    *realtime.Hub
		events application.ReservationEvents
	)
	if cfg.RealtimeEnabled {
		hub = realtime.NewHub(logger)
		events = httptransport.NewEventPublisher(hub)
	}

	reservationService := application.NewReservationService(
		newReservationRepositoryAdapter(store),
		calendarSync,
		syncCredentials,
		events,
		uuid.NewString,
		time.Now,
		application.WithSyncTimeout(cfg.CalendarSyncTimeout),
		application.WithReservationLogger(logger),
	)

	routerCfg := httptransport.RouterConfig{
		Reservations: httptransport.NewReservationHandler(reservationService, logger),
		Feed: httptransport.NewFeedHandler(reservationService, feed.Options{
			ProductID: "-//Room Reservations//" + cfg.RoomName + "//EN",
			RoomName:  cfg.RoomName,
			Location:  cfg.RoomLocation,
			TimeZone:  cfg.TimeZone,
			Domain:    feedDomain(cfg.GoogleRedirectURI),
		}, logger),
		Auth: httptransport.NewAuthHandler(authService, httptransport.CookieConfig{Secure: cfg.CookieSecure}, logger),
		System: httptransport.NewSystemHandler(store, httptransport.DebugInfo{
			HasClientID:     cfg.GoogleClientID != "",
			HasClientSecret: cfg.GoogleClientSecret != "",
			RedirectURI:     cfg.GoogleRedirectURI,
			CalendarID:      cfg.GoogleCalendarID,
			Realtime:        cfg.RealtimeEnabled,
		}, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.Recoverer(logger),
			httptransport.RequestLogger(logger),
			httptransport.SecurityHeaders(),
			httptransport.CORS(nil),
			httptransport.SessionCookie(httptransport.DefaultSessionCookie),
		},
	}
	if hub != nil {
		routerCfg.Realtime = hub
	}

	jobs := maintenance.New(logger)
	if err := jobs.Add(maintenance.Job{
		Name:     "sweep_sessions",
		Schedule: "@every 5m",
		Run: func(context.Context) error {
			now := time.Now()
			expired := sessions.Purge(now)
			abandoned := states.Purge(now)
			if expired+abandoned > 0 {
				logger.Debug("swept auth state", "sessions", expired, "logins", abandoned)
			}
			return nil
		},
	}); err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := jobs.Add(maintenance.Job{
		Name:     "probe_store",
		Schedule: "@every 1m",
		Timeout:  10 * time.Second,
		Run: func(ctx context.Context) error {
			store.Probe(ctx)
			return nil
		},
	}); err != nil {
		_ = store.Close()
		return nil, err
	}

	return &server{
		handler:  httptransport.NewRouter(routerCfg),
		store:    store,
		hub:      hub,
		jobs:     jobs,
		sessions: sessions,
		states:   states,
	}, nil
}

// openStore builds the fallback chain for the configured backend. The memory
// backend runs without a durable primary.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*fallback.Chain, error) {
	var primary persistence.Store
	switch cfg.StoreBackend {
	case config.BackendRedis:
		storage, err := redis.Open(cfg.RedisURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		primary = storage
	case config.BackendSQLite:
		storage, err := sqlite.Open(cfg.SQLiteDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		if _, err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("migrate sqlite store: %w", err)
		}
		primary = storage
	case config.BackendMemory, "":
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return fallback.New(primary, memory.New(), logger), nil
}

func feedDomain(redirectURI string) string {
	if u, err := url.Parse(redirectURI); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return "localhost"
}
