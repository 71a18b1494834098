// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server boots the studio service: configuration, tracing,
// storage, the realtime core, and the HTTP surface. Both the service
// binary and the `studio serve` command run through it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianStudio/pkg/extensions"
	"github.com/AleutianAI/AleutianStudio/pkg/logging"
	"github.com/AleutianAI/AleutianStudio/services/llm"
	"github.com/AleutianAI/AleutianStudio/services/studio/config"
	"github.com/AleutianAI/AleutianStudio/services/studio/generate"
	"github.com/AleutianAI/AleutianStudio/services/studio/handlers"
	"github.com/AleutianAI/AleutianStudio/services/studio/observability"
	"github.com/AleutianAI/AleutianStudio/services/studio/realtime"
	"github.com/AleutianAI/AleutianStudio/services/studio/routes"
	"github.com/AleutianAI/AleutianStudio/services/studio/store"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("studio-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func buildLLMClient(backend string) (llm.StreamingClient, error) {
	switch backend {
	case "openai":
		slog.Info("Using OpenAI-compatible LLM backend")
		return llm.NewOpenAIClient()
	case "scripted":
		slog.Info("Using scripted LLM backend (offline mode)")
		return &llm.ScriptedClient{ChunkDelay: 20 * time.Millisecond}, nil
	default:
		return nil, errors.New("unknown LLM backend: " + backend)
	}
}

// Run boots the service and blocks until ctx is cancelled or the server
// fails to start.
func Run(ctx context.Context) error {
	logger := logging.New(logging.Config{
		Level:   logging.LevelFromString(os.Getenv("STUDIO_LOG_LEVEL")),
		Service: "studio-service",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg, err := config.Load(os.Getenv("STUDIO_CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// --- Init the tracer ---
	if cfg.OTLPEndpoint != "" {
		cleanup, err := initTracer(cfg.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("failed to setup the OTLP tracer: %w", err)
		}
		defer cleanup(context.Background())
	} else {
		slog.Info("OTLP endpoint not set, tracing disabled")
	}

	observability.InitDefaultMetrics()

	// --- Storage ---
	storeCfg := store.InMemoryConfig()
	if cfg.DataDir != "" {
		storeCfg = store.DefaultConfig(cfg.DataDir)
	} else {
		slog.Warn("STUDIO_DATA_DIR not set, apps will not survive restarts")
	}
	appStore, err := store.Open(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open app store: %w", err)
	}
	defer appStore.Close()

	// --- Model client ---
	llmClient, err := buildLLMClient(cfg.LLMBackend)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	// --- Realtime core ---
	registry := realtime.NewRegistry()
	turnLock := realtime.NewTurnLock()
	pipeline, err := realtime.NewPipeline(registry, turnLock, realtime.PipelineConfig{
		QueueSize: cfg.QueueSize,
		Workers:   cfg.Workers,
	})
	if err != nil {
		return fmt.Errorf("failed to build event pipeline: %w", err)
	}
	driver := generate.NewDriver(pipeline, llmClient, appStore, cfg.GenerationTimeout)
	pipeline.SetTurnEntered(driver.TurnEntered)
	pipeline.Start()

	opts := extensions.DefaultOptions().
		WithAuthz(store.NewAccessChecker(appStore))
	if cfg.RequireAuth {
		slog.Info("token authentication enabled")
		opts = opts.WithAuth(store.NewTokenAuthProvider(appStore))
	}
	gateway := handlers.NewGateway(pipeline, opts)

	router := gin.Default()
	router.Use(otelgin.Middleware("studio-service"))
	routes.SetupRoutes(router, appStore, gateway)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting the studio server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown failed", "error", err)
		}
		if err := driver.Wait(shutdownCtx); err != nil {
			slog.Warn("generations still running at shutdown", "error", err)
		}
		if err := pipeline.Shutdown(shutdownCtx); err != nil {
			slog.Warn("pipeline shutdown incomplete", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("studio server stopped")
	return nil
}
