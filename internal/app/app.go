// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/analytics"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/assignment"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/catalog"
	catalogpostgres "github.com/yasmineadnan/dev-mobile-react-native/internal/catalog/postgres"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/config"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/evidence"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/identity"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/identity/jwt"
	identitypostgres "github.com/yasmineadnan/dev-mobile-react-native/internal/identity/postgres"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
	incidentspostgres "github.com/yasmineadnan/dev-mobile-react-native/internal/incidents/postgres"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/live"
	livepostgres "github.com/yasmineadnan/dev-mobile-react-native/internal/live/postgres"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/messages"
	messagespostgres "github.com/yasmineadnan/dev-mobile-react-native/internal/messages/postgres"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/notifications"
	notificationspostgres "github.com/yasmineadnan/dev-mobile-react-native/internal/notifications/postgres"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/ctxlog"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/httputil"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/metrics"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/postgres"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/version"
	"golang.org/x/sync/errgroup"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server

	gateway  *live.Gateway
	listener *livepostgres.Listener
	janitor  *notifications.Janitor
	auth     *jwt.Authenticator

	background       *errgroup.Group
	backgroundCancel context.CancelFunc
}

// New creates a new application instance. Background workers (the change
// listener and the notification janitor) start immediately and stop in
// Shutdown.
func New(cfg *config.Config) (*App, error) {
	logger := InitLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := Connect(connectCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	app := &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		gateway: live.NewGateway(),
	}

	router, err := app.setupRouter()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	poolRegistry := prometheus.NewRegistry()
	poolRegistry.MustRegister(metrics.NewPoolCollector(metrics.StatsOf(db)))

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, poolRegistry},
		promhttp.HandlerOpts{},
	))

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	app.startBackground()

	return app, nil
}

// Connect opens the database pool described by cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnectAttempts: cfg.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// Run starts the HTTP servers and blocks until one of them fails or ctx is
// done.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("starting server",
			"host", a.config.Server.Host,
			"port", a.config.Server.Port,
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return a.shutdownServers(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	var errs []error
	if err := a.shutdownServers(ctx); err != nil {
		errs = append(errs, err)
	}

	a.janitor.Stop(ctx)
	a.gateway.Close()
	a.backgroundCancel()
	if err := a.background.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("background workers: %w", err))
	}

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) shutdownServers(ctx context.Context) error {
	g := new(errgroup.Group)
	g.Go(func() error {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (a *App) startBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	a.backgroundCancel = cancel
	a.background, ctx = errgroup.WithContext(ctx)

	a.janitor.Start()
	a.background.Go(func() error {
		return a.listener.Run(ctx)
	})
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Gateway returns the live query gateway.
func (a *App) Gateway() *live.Gateway {
	return a.gateway
}

// IssueToken mints a bearer token signed with the configured secret.
func (a *App) IssueToken(subject, name, email string) (string, error) {
	return a.auth.IssueToken(subject, name, email)
}

// NewEvidenceVerifier returns the S3-backed verifier when object storage is
// enabled, and a plain URL check otherwise.
func NewEvidenceVerifier(cfg config.S3Config) (incidents.EvidenceVerifier, error) {
	if !cfg.Enabled {
		return evidence.URLVerifier{}, nil
	}
	client := evidence.NewS3Client(evidence.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
	return evidence.NewS3Verifier(client, cfg.Bucket, cfg.PublicBaseURL)
}

func (a *App) setupRouter() (*chi.Mux, error) {
	cfg := a.config
	timeout := cfg.Timeouts.Operation
	policy, err := access.NewPolicy()
	if err != nil {
		return nil, fmt.Errorf("load access policy: %w", err)
	}

	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Incident Desk API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	// Identity
	a.auth = jwt.NewAuthenticator(jwt.Config{
		SecretKey:     cfg.JWT.SecretKey,
		Issuer:        cfg.JWT.Issuer,
		TokenDuration: cfg.JWT.TokenDuration,
	})
	identityService := identity.NewService(identitypostgres.NewRepository(a.db), a.auth, policy, identity.Config{
		BootstrapAdmins: cfg.Identity.BootstrapAdmins,
		Timeout:         timeout,
	})
	identityHandler := identity.NewHandler(identityService)

	// Incidents
	verifier, err := NewEvidenceVerifier(cfg.Evidence.S3)
	if err != nil {
		return nil, fmt.Errorf("create evidence verifier: %w", err)
	}
	incidentsService := incidents.NewService(incidentspostgres.NewRepository(a.db), policy, verifier, incidents.Config{
		Timeout:     timeout,
		RecentLimit: cfg.Incidents.RecentLimit,
	})
	incidentsHandler := incidents.NewHandler(incidentsService)

	// Notifications
	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}
	notificationsRepo := notificationspostgres.NewRepository(a.db)
	dispatcher := notifications.NewDispatcher(notificationsRepo, identityService, renderer, timeout)
	notificationsHandler := notifications.NewHandler(dispatcher)

	a.janitor, err = notifications.NewJanitor(notifications.JanitorConfig{
		Retention: cfg.Notifications.Retention,
		Schedule:  cfg.Notifications.Schedule,
	}, notificationsRepo)
	if err != nil {
		return nil, fmt.Errorf("create notification janitor: %w", err)
	}

	// Messages
	messagesService := messages.NewService(messagespostgres.NewRepository(a.db), incidentsService, policy, timeout)
	messagesService.AddObserver(dispatcher)
	messagesHandler := messages.NewHandler(messagesService)

	incidentsService.AddObserver(dispatcher)
	incidentsService.AddObserver(messagesService)

	// Assignment, catalog, analytics
	assignmentHandler := assignment.NewHandler(assignment.NewResolver(identityService, incidentsService, policy))
	catalogService := catalog.NewService(catalogpostgres.NewRepository(a.db), policy, timeout)
	catalogHandler := catalog.NewHandler(catalogService)
	analyticsHandler := analytics.NewHandler(analytics.NewService(incidentsService, policy))

	// Live queries
	a.listener = livepostgres.NewListener(a.db, a.gateway, livepostgres.ListenerConfig{
		InitialBackoff: cfg.Live.InitialBackoff,
		MaxBackoff:     cfg.Live.MaxBackoff,
	})
	liveHandler := live.NewHandler(a.gateway, live.Sources{
		Incidents:     incidentsService,
		Messages:      messagesService,
		Notifications: dispatcher,
		Categories:    catalogService,
		Users:         identityService,
		Policy:        policy,
	}, live.HandlerConfig{
		OriginPatterns: cfg.Live.OriginPatterns,
		WriteTimeout:   cfg.Live.WriteTimeout,
		PingInterval:   cfg.Live.PingInterval,
	})

	limiter := httputil.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(identityService))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
			identityHandler.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(httputil.RequireRegistered)

			// Live queries hold the connection open, so they skip the
			// request timeout.
			liveHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
				r.Use(limiter.Middleware)

				identityHandler.RegisterProtectedRoutes(r)
				incidentsHandler.RegisterRoutes(r)
				assignmentHandler.RegisterRoutes(r)
				messagesHandler.RegisterRoutes(r)
				notificationsHandler.RegisterRoutes(r)
				catalogHandler.RegisterRoutes(r)
				analyticsHandler.RegisterRoutes(r)
			})
		})
	})

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

// InitLogger builds the process logger from cfg.
func InitLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
