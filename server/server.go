package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"

	"github.com/customeros/inboxsync/api"
	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/internal"
	"github.com/customeros/inboxsync/internal/cron"
	"github.com/customeros/inboxsync/internal/listeners"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/services"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return nil, fmt.Errorf("could not initialize jaeger tracer: %w", err)
	}
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)

	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		repositories: repos,
		cronManager:  cron.NewCronManager(cfg, appLogger, cron.NewKubernetesClient(appLogger), svcs.Orchestrator),
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

// Initialize imports the accounts file, registers every stored account and
// wires the API and the sync-request listener.
func (s *Server) Initialize(ctx context.Context) error {
	if path := s.config.AppConfig.AccountsFile; path != "" {
		if _, err := internal.ImportAccounts(ctx, path, s.repositories.AccountRepository, s.log); err != nil {
			return err
		}
	}

	if err := internal.LoadAccounts(ctx, s.repositories.AccountRepository, s.services.Orchestrator, s.log); err != nil {
		return err
	}

	api.RegisterRoutes(s.router, s.log, s.services.Index, s.services.Orchestrator, s.config.AppConfig.APIKey)

	return s.services.EventsService.Listen(
		listeners.NewSyncRequestListener(s.log, s.services.Orchestrator),
	)
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Initialize(ctx); err != nil {
		return err
	}

	s.log.Info("Starting sync orchestrator...")
	if err := s.services.Orchestrator.Start(ctx); err != nil {
		return err
	}

	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})

	podName := os.Getenv("POD_NAME")
	if podName == "" {
		podName = "local"
	}
	if err := s.cronManager.Start(podName, os.Getenv("POD_NAMESPACE")); err != nil {
		s.log.Errorf("Cron manager failed to start: %v", err)
	}

	s.log.Info("InboxSync is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}

	s.cronManager.Stop()

	// Stop the subscriber first so no sync request lands on a stopped orchestrator
	if err := s.services.EventsService.CloseSubscriber(); err != nil {
		s.log.Warnf("Event subscriber shutdown error: %v", err)
	}

	if err := s.services.Orchestrator.Stop(); err != nil {
		s.log.Errorf("Orchestrator shutdown error: %v", err)
	} else {
		s.log.Info("Orchestrator stopped")
	}

	if err := s.services.Notifier.Close(shutdownCtx); err != nil {
		s.log.Warnf("Notifier did not drain in time: %v", err)
	}

	if err := s.services.EventsService.Close(); err != nil {
		s.log.Warnf("Events shutdown error: %v", err)
	}

	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}
	_ = s.log.Sync()

	return nil
}
