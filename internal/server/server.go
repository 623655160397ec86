package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"

	appconfig "github.com/lewisedginton/triage_assistant/internal/config"
	"github.com/lewisedginton/triage_assistant/internal/connectors/slack"
	"github.com/lewisedginton/triage_assistant/internal/connectors/telegram"
	"github.com/lewisedginton/triage_assistant/internal/middleware"
	"github.com/lewisedginton/triage_assistant/internal/monitoring"
	pkgconfig "github.com/lewisedginton/triage_assistant/pkg/config"
	"github.com/lewisedginton/triage_assistant/pkg/httpmiddleware"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
	"github.com/lewisedginton/triage_assistant/pkg/metrics"
	"github.com/lewisedginton/triage_assistant/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

// Connector is a chat platform adapter run alongside the HTTP API.
type Connector interface {
	Start(ctx context.Context) error
	Ready() error
}

// Server runs the HTTP API, the optional chat connectors and the health and
// metrics listeners until its context is cancelled.
type Server struct {
	cfg        *appconfig.AppConfig
	log        logger.Logger
	components *Components
	metrics    *metrics.Metrics
	monitor    *monitoring.HealthMonitor
	api        *API
	connectors map[string]Connector
	router     chi.Router
}

// New builds every component and the router. Nothing listens until Run.
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		log:        log,
		metrics:    metrics.NewMetrics(cfg.Metrics.EnableHTTPMetrics, cfg.Metrics.EnableGRPCMetrics, log),
		connectors: make(map[string]Connector),
	}

	var err error
	s.components, err = BuildComponents(ctx, cfg, log, s.metrics)
	if err != nil {
		return nil, err
	}

	if err := s.createConnectors(); err != nil {
		s.components.Close()
		return nil, err
	}

	checks := make(map[string]monitoring.ConnectorHealthCheck, len(s.connectors))
	for name, c := range s.connectors {
		checks[name] = c
	}
	s.monitor = monitoring.NewHealthMonitor(monitoring.Config{
		Logger:           log,
		Version:          cfg.Version,
		Knowledge:        s.components.Knowledge,
		History:          s.components.History,
		Storage:          s.components.Storage,
		Connectors:       checks,
		Timeout:          cfg.Health.Timeout,
		FailureThreshold: cfg.Health.FailureThreshold,
	})

	s.api, err = NewAPI(APIConfig{
		Engine:          s.components.Engine,
		History:         s.components.History,
		HistoryBackend:  cfg.History.Backend,
		HistoryLimit:    cfg.History.Limit,
		HistoryMaxLimit: cfg.History.MaxLimit,
		RequestTimeout:  cfg.HTTP.RequestTimeout(),
		Version:         cfg.Version,
		AllowedOrigins:  cfg.HTTP.CORSAllowedOrigins,
		MaxFrameBytes:   cfg.HTTP.MaxBodyBytes,
		Logger:          log,
	})
	if err != nil {
		s.components.Close()
		return nil, err
	}

	s.router = NewRouter(RouterConfig{
		HTTP:    cfg.HTTP,
		Logger:  log,
		Metrics: s.metrics,
		Monitor: s.monitor,
		API:     s.api,
		Verbose: !cfg.IsProduction(),
	})
	return s, nil
}

func (s *Server) createConnectors() error {
	if s.cfg.Telegram.Enabled() {
		c, err := telegram.NewConnector(telegram.Config{
			BotToken: s.cfg.Telegram.BotToken,
			Debug:    s.cfg.Telegram.Debug,
			Logger:   s.log,
		}, s.components.Executor)
		if err != nil {
			return fmt.Errorf("failed to create Telegram connector: %w", err)
		}
		s.connectors["telegram"] = c
	} else {
		s.log.Info("Telegram connector disabled (missing TELEGRAM_BOT_TOKEN)")
	}

	if s.cfg.Slack.Enabled() {
		c, err := slack.NewConnector(slack.Config{
			BotToken: s.cfg.Slack.BotToken,
			AppToken: s.cfg.Slack.AppToken,
			Debug:    s.cfg.Slack.Debug,
			Logger:   s.log,
		}, s.components.Executor)
		if err != nil {
			return fmt.Errorf("failed to create Slack connector: %w", err)
		}
		s.connectors["slack"] = c
	} else {
		s.log.Info("Slack connector disabled (missing SLACK_BOT_TOKEN or SLACK_APP_TOKEN)")
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled or a listener fails, then shuts
// everything down. A listener failure is returned.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.components.Close()

	s.monitor.ShutdownCheck(ctx)

	var wg sync.WaitGroup
	var errChans []<-chan error

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.components.Engine.Sessions().RunJanitor(ctx, s.cfg.Session.SweepInterval, s.cfg.Session.TTL,
			s.metrics.Triage.SetActiveSessions)
	}()

	httpErrs, err := s.serveHTTP(ctx)
	if err != nil {
		return err
	}
	errChans = append(errChans, httpErrs)

	if s.cfg.Metrics.ExposeMetrics {
		errChans = append(errChans, s.runAsync(ctx, &wg, func(ctx context.Context) error {
			return s.metrics.Listen(ctx, s.cfg.Metrics.Port)
		}))
	}

	if s.cfg.Health.GRPCPort != 0 {
		grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
			s.log.GrpcRequestsInterceptor,
			s.metrics.GrpcRequestsInterceptor,
		))
		s.monitor.Checker().RegisterWithGRPC(ctx, grpcServer, s.cfg.Health.PushInterval)
		grpcErrs, addr, err := utils.ServeGRPC(ctx, grpcServer, s.cfg.Health.GRPCPort, s.log)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("failed to start gRPC health server: %w", err)
		}
		s.log.Info("gRPC health listening", logger.StringField("address", addr.String()))
		errChans = append(errChans, grpcErrs)
	}

	for name, c := range s.connectors {
		name, c := name, c
		s.log.Info("Starting connector", logger.StringField("connector", name))
		errChans = append(errChans, s.runAsync(ctx, &wg, func(ctx context.Context) error {
			if err := c.Start(ctx); err != nil {
				return fmt.Errorf("%s connector: %w", name, err)
			}
			return nil
		}))
	}

	s.log.Info("Triage assistant started",
		logger.StringField("address", s.cfg.HTTP.Addr()),
		logger.IntField("connectors", len(s.connectors)),
		logger.IntField("conditions", s.components.Knowledge.Len()))

	runErr := utils.FirstError(ctx, utils.MergeErrorChans(errChans...))
	if runErr != nil {
		s.log.Error("Shutting down after failure", logger.ErrorField(runErr))
	} else {
		s.log.Info("Shutting down")
	}
	cancel()
	// Hijacked websocket connections are not tracked by http.Server.Shutdown.
	s.api.Close()
	wg.Wait()
	return runErr
}

// runAsync runs fn in a goroutine and reports its error on the returned
// channel, which is closed when fn returns.
func (s *Server) runAsync(ctx context.Context, wg *sync.WaitGroup, fn func(context.Context) error) <-chan error {
	errs := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(errs)
		if err := fn(ctx); err != nil {
			errs <- err
		}
	}()
	return errs
}

func (s *Server) serveHTTP(ctx context.Context) (<-chan error, error) {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", s.cfg.HTTP.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTP.Addr(), err)
	}

	srv := &http.Server{
		Handler:        s.router,
		ReadTimeout:    s.cfg.HTTP.ReadTimeout(),
		WriteTimeout:   s.cfg.HTTP.WriteTimeout(),
		IdleTimeout:    s.cfg.HTTP.IdleTimeout(),
		MaxHeaderBytes: s.cfg.HTTP.MaxHeaderBytes,
	}

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		s.log.Info("Starting HTTP server", logger.StringField("address", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("HTTP server shutdown", logger.ErrorField(err))
		}
	}()
	return errs, nil
}

// RouterConfig collects what NewRouter mounts.
type RouterConfig struct {
	HTTP    pkgconfig.HTTPServerConfig
	Logger  logger.Logger
	Metrics *metrics.Metrics
	Monitor *monitoring.HealthMonitor
	API     *API
	// Verbose adds stack traces to panic logs.
	Verbose bool
}

// NewRouter applies the shared middleware stack and mounts the health
// endpoints and the API.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	r := chi.NewRouter()
	mw := httpmiddleware.DefaultConfig()
	mw.Logger = cfg.Logger
	mw.EnableLogging = true
	mw.Recovery = middleware.Recovery(middleware.RecoveryConfig{Logger: cfg.Logger, EnableStackTrace: cfg.Verbose})
	if cfg.HTTP.MaxBodyBytes > 0 {
		mw.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	}
	if len(cfg.HTTP.CORSAllowedOrigins) > 0 {
		mw.CORS.AllowedOrigins = cfg.HTTP.CORSAllowedOrigins
	}
	// API.Routes applies the timeout to /api only, so websocket connections stay open.
	mw.EnableTimeout = false
	httpmiddleware.ApplyToRouter(r, mw)

	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.HTTPMiddleware())
	}
	if cfg.Monitor != nil {
		cfg.Monitor.RegisterHandlers(r)
	}
	if cfg.API != nil {
		cfg.API.Routes(r)
	}
	return r
}
