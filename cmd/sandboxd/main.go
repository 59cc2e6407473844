package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/oas-sandbox/engine/internal/audit"
	"github.com/oas-sandbox/engine/internal/config"
	"github.com/oas-sandbox/engine/internal/httpserver"
	"github.com/oas-sandbox/engine/internal/logging"
	"github.com/oas-sandbox/engine/internal/metrics"
	"github.com/oas-sandbox/engine/internal/metricsserver"
	"github.com/oas-sandbox/engine/internal/pipeline"
	"github.com/oas-sandbox/engine/internal/rules"
	"github.com/oas-sandbox/engine/internal/schema"
	"github.com/oas-sandbox/engine/internal/spec"
	"github.com/oas-sandbox/engine/internal/store"
)

func main() {
	configPath := flag.String("c", "configs/sandboxd.yaml", "path to configuration file")
	instanceID := flag.String("id", "", "instance identifier reported on /health (defaults to hostname)")
	flag.Parse()

	initialLogger, err := logging.NewDefault()
	if err != nil {
		log.Fatalf("failed to create startup logger: %v", err)
	}
	initialLogger.Info("starting sandboxd", zap.String("config_path", *configPath))

	cfg, err := config.Load(*configPath)
	if err != nil {
		initialLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	appLogger, err := logging.New(cfg.Log)
	if err != nil {
		initialLogger.Fatal("failed to create configured logger", zap.Error(err))
	}
	defer appLogger.Sync()

	if *instanceID == "" {
		if host, err := os.Hostname(); err == nil {
			*instanceID = host
		} else {
			*instanceID = "sandboxd"
		}
	}
	logger := appLogger.With(zap.String("instance", *instanceID))

	doc, err := spec.Load(cfg.OAS)
	if err != nil {
		logger.Fatal("failed to load OpenAPI document", zap.Error(err))
	}
	var ruleSet []*rules.Rule
	if cfg.Scenarios != "" {
		ruleSet, err = rules.LoadFile(cfg.Scenarios)
		if err != nil {
			logger.Fatal("failed to load scenario rules", zap.Error(err))
		}
	}

	ctx := context.Background()
	backend, backendLabel, err := config.BuildStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("failed to initialize store backend", zap.Error(err))
	}
	defer backend.Close()

	metricsCollector := metrics.New(cfg.Metrics.Namespace)
	var st store.Store = store.NewInstrumented(backend, backendLabel, metricsCollector)

	var auditSink rules.AuditSink
	if cfg.Audit != nil {
		sink, err := audit.New(ctx, audit.Config{
			Addr: cfg.Audit.Addr, Database: cfg.Audit.Database,
			Username: cfg.Audit.Username, Password: cfg.Audit.Password,
			Table: cfg.Audit.Table,
		}, logger)
		if err != nil {
			logger.Error("failed to start audit sink, continuing without it", zap.Error(err))
		} else {
			auditSink = sink
			defer sink.Close()
		}
	}

	p := &pipeline.Pipeline{
		Doc:     doc,
		Rules:   ruleSet,
		Store:   st,
		Schemas: schema.NewCompiler(),
		Audit:   auditSink,
		Logger:  logger,
		Metrics: metricsCollector,
		Config: pipeline.Config{
			ValidateRequests:  cfg.Validate.Requests,
			ValidateResponses: cfg.Validate.Responses,
			Seed:              cfg.SeedInt64(),
			DefaultTTL:        cfg.DefaultTTL(),
			ChaosLatency:      cfg.Chaos.Latency,
			ChaosErrorRate:    cfg.Chaos.ErrorRate,
		},
	}

	srv := httpserver.NewServer(p, st, logger, *instanceID)

	metricsServer, err := metricsserver.Start(cfg.Metrics.Enabled, cfg.Metrics.Listen, cfg.Metrics.Path, metricsCollector, logger)
	if err != nil {
		logger.Fatal("failed to start metrics server", zap.Error(err))
	}

	serverErrors := make(chan error, 1)
	httpLifecycle := &serverLifecycle{
		server:  newFastHTTPServer(srv.HandleRequest, 30*time.Second),
		name:    "HTTP",
		address: cfg.Server.Listen,
		logger:  logger,
	}
	httpLifecycle.StartWithErrorChan(serverErrors)

	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		logger.Fatal("server failed to start", zap.Error(err))
	default:
	}
	logger.Info("sandboxd started", zap.String("http_addr", cfg.Server.Listen))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		appLogger.EnsureInfoLevelForShutdown()
		logger.Info("shutting down sandboxd")
	case err := <-serverErrors:
		appLogger.EnsureInfoLevelForShutdown()
		logger.Error("server startup failed, initiating shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	httpLifecycle.Shutdown(shutdownCtx)

	logger.Info("sandboxd stopped")
}

func newFastHTTPServer(handler fasthttp.RequestHandler, timeout time.Duration) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      handler,
		Name:                         "sandboxd",
		ReadTimeout:                  timeout,
		WriteTimeout:                 timeout,
		IdleTimeout:                  timeout,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}
}

type serverLifecycle struct {
	server  *fasthttp.Server
	listener net.Listener
	name    string
	address string
	logger  *zap.Logger
}

func (s *serverLifecycle) StartWithErrorChan(errChan chan<- error) {
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe(s.address)
		}
		if err != nil {
			s.logger.Error("server error", zap.String("name", s.name), zap.Error(err))
			if errChan != nil {
				errChan <- fmt.Errorf("%s server failed: %w", s.name, err)
			}
		}
	}()
	s.logger.Info("server started", zap.String("name", s.name), zap.String("address", s.address))
}

func (s *serverLifecycle) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server", zap.String("name", s.name))
	if err := s.server.ShutdownWithContext(ctx); err != nil {
		s.logger.Error("server shutdown error", zap.String("name", s.name), zap.Error(err))
		return err
	}
	return nil
}
