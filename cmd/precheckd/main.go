// Command precheckd serves the PII precheck engine over HTTP: one POST
// /v1/evaluate per message, returning allow/redact/block plus the redaction
// log.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nostalgicskinco/precheck-engine/pkg/audit"
	"github.com/nostalgicskinco/precheck-engine/pkg/config"
	"github.com/nostalgicskinco/precheck-engine/pkg/detect"
	"github.com/nostalgicskinco/precheck-engine/pkg/engine"
	"github.com/nostalgicskinco/precheck-engine/pkg/policy"
	"github.com/nostalgicskinco/precheck-engine/pkg/server"
)

func main() {
	configPath := flag.String("config", envOr("PRECHECK_CONFIG", ""), "config YAML path")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "precheckd",
	})
	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", "err", err)
	}

	// --- OTel tracing setup ---
	tp, err := initTracer(ctx)
	if err != nil {
		logger.Warn("OTel tracing disabled", "err", err)
	} else if tp != nil {
		defer tp.Shutdown(ctx)
	}

	// --- Audit sinks ---
	var sinks []audit.Sink
	if cfg.Audit.Dir != "" {
		fs, err := audit.NewFileSink(cfg.Audit.Dir, cfg.Audit.ChainSecret)
		if err != nil {
			logger.Warn("file audit sink disabled", "err", err)
		} else {
			sinks = append(sinks, fs)
			logger.Info("audit records", "dir", cfg.Audit.Dir)
		}
	}
	if cfg.Audit.WebhookURL != "" {
		sinks = append(sinks, audit.NewWebhookSink(cfg.Audit.WebhookURL))
	}
	if cfg.Audit.SQLitePath != "" {
		st, err := audit.NewSQLiteStore(cfg.Audit.SQLitePath)
		if err != nil {
			logger.Warn("sqlite audit sink disabled", "err", err)
		} else {
			sinks = append(sinks, st)
		}
	}
	if cfg.Audit.S3.Endpoint != "" {
		s3, err := audit.NewS3Sink(ctx, audit.S3Config{
			Endpoint:  cfg.Audit.S3.Endpoint,
			AccessKey: cfg.Audit.S3.AccessKey,
			SecretKey: cfg.Audit.S3.SecretKey,
			Bucket:    cfg.Audit.S3.Bucket,
			UseSSL:    cfg.Audit.S3.UseSSL,
		})
		if err != nil {
			logger.Warn("s3 audit sink disabled", "err", err)
		} else {
			sinks = append(sinks, s3)
			logger.Info("audit archive", "endpoint", cfg.Audit.S3.Endpoint)
		}
	}

	var auditor *audit.Emitter
	if len(sinks) > 0 {
		auditor = audit.NewEmitter(audit.EmitterConfig{}, sinks, logger)
		defer auditor.Close(context.Background())
	}

	// --- Detection client ---
	var detector engine.Detector
	if cfg.Detection.BaseURL != "" {
		detector = detect.New(detect.Config{
			BaseURL:     cfg.Detection.BaseURL,
			APIKey:      cfg.Detection.APIKey,
			OrgID:       cfg.Detection.OrgID,
			Tool:        cfg.Detection.Tool,
			Scope:       cfg.Detection.Scope,
			MaxAttempts: cfg.Detection.MaxAttempts,
			BaseDelay:   cfg.BaseDelay(),
			MaxDelay:    cfg.MaxDelay(),
		}, logger)
		logger.Info("detection service", "url", cfg.Detection.BaseURL, "connected", cfg.Connected())
	} else {
		logger.Info("no detection service configured, using local pattern matching")
	}

	eng := engine.New(detector, auditor, logger)

	// Settings are swapped atomically on config reload.
	var current atomic.Pointer[policy.Settings]
	settings, err := cfg.Settings()
	if err != nil {
		logger.Fatal("resolve settings", "err", err)
	}
	current.Store(&settings)

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, func(next *config.Config) {
				s, err := next.Settings()
				if err != nil {
					logger.Warn("config reload rejected", "err", err)
					return
				}
				current.Store(&s)
				logger.Info("config reloaded",
					"mode", s.LocalMode, "strategy", s.RedactionStrategy)
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("config watcher stopped", "err", err)
			}
		}()
	}

	handler := server.Handler(server.Config{
		Engine:   eng,
		Settings: func() policy.Settings { return *current.Load() },
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("precheckd listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	srv.Shutdown(shutCtx)
}

func initTracer(ctx context.Context) (*sdktrace.TracerProvider, error) {
	endpoint := envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if endpoint == "" {
		return nil, nil
	}

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("precheckd"),
		semconv.ServiceVersion("0.1.0"),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
