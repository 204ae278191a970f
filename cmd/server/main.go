package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solace-automations/intentflow/internal/blockexec"
	"github.com/solace-automations/intentflow/internal/clarifier"
	"github.com/solace-automations/intentflow/internal/doer"
	"github.com/solace-automations/intentflow/internal/eventbus"
	"github.com/solace-automations/intentflow/internal/infrastructure/api/rest"
	"github.com/solace-automations/intentflow/internal/infrastructure/config"
	"github.com/solace-automations/intentflow/internal/infrastructure/llm"
	"github.com/solace-automations/intentflow/internal/infrastructure/logger"
	"github.com/solace-automations/intentflow/internal/infrastructure/monitoring"
	"github.com/solace-automations/intentflow/internal/infrastructure/websocket"
	"github.com/solace-automations/intentflow/internal/registry"
	"github.com/solace-automations/intentflow/internal/thinker"
)

func main() {
	var (
		port          = flag.String("port", "", "Server port (overrides config)")
		enableCORS    = flag.Bool("cors", true, "Enable CORS")
		enableLimit   = flag.Bool("rate-limit", false, "Enable per-IP rate limiting")
		enableTracing = flag.Bool("tracing", false, "Export spans to stdout via OpenTelemetry")
		apiKeys       = flag.String("api-keys", "", "Comma-separated API keys for authentication")
	)
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	log := logger.Setup(cfg.LogLevel)
	log.Info().Str("port", cfg.Port).Bool("cors", *enableCORS).Bool("tracing", *enableTracing).
		Msg("starting intentflow api server")

	ctx := context.Background()

	shutdownTracing, err := monitoring.SetupTracing(ctx, monitoring.TracingConfig{
		Enabled:     *enableTracing,
		ServiceName: "intentflow",
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to set up tracing")
		os.Exit(1)
	}
	defer shutdownTracing(ctx)

	blocks := registry.NewStore(cfg.DatabaseDSN)
	if err := blocks.InitSchema(ctx); err != nil {
		log.Error().Err(err).Msg("failed to initialize block registry schema")
		os.Exit(1)
	}

	pipelines := registry.NewPipelineStore(cfg.DatabaseDSN)
	if err := pipelines.InitSchema(ctx); err != nil {
		log.Error().Err(err).Msg("failed to initialize pipeline store schema")
		os.Exit(1)
	}

	execs := doer.NewBunExecutionStore(cfg.DatabaseDSN)
	if err := execs.InitSchema(ctx); err != nil {
		log.Error().Err(err).Msg("failed to initialize execution log schema")
		os.Exit(1)
	}
	log.Info().Msg("database schemas initialized")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error().Err(err).Msg("invalid redis url")
		os.Exit(1)
	}
	memory := doer.NewRedisMemoryStore(redis.NewClient(redisOpts))

	embedder := registry.NewOpenAIEmbedder(cfg.OpenAIAPIKey, "")
	messenger := llm.NewAnthropicMessenger(cfg.AnthropicAPIKey, "")
	rewriter := registry.NewAnthropicQueryRewriter(messenger, "")

	sandbox := blockexec.NewSandboxRunner(cfg.SandboxInterpreterPath)
	sandbox.Timeout = cfg.SandboxTimeout
	dispatcher := blockexec.NewDispatcher(
		blockexec.NewLLMExecutor(cfg.OpenAIAPIKey, ""),
		blockexec.NewCodeExecutor(sandbox),
	)

	doerEngine := doer.New(blocks, dispatcher, memory, execs, doer.Config{
		MaxParallelNodes: cfg.MaxParallelNodes,
		NodeTimeout:      cfg.NodeTimeout,
	})

	thinkerConfig := thinker.DefaultConfig()
	thinkerEngine := thinker.New(messenger, embedder, rewriter, blocks, dispatcher, thinkerConfig)

	clarifierEngine, err := clarifier.New(messenger)
	if err != nil {
		log.Error().Err(err).Msg("failed to compile clarifier readiness expression")
		os.Exit(1)
	}

	hub := websocket.NewHub(log)
	go hub.Run()

	metrics := monitoring.NewMetrics()
	tracer := monitoring.Tracer("intentflow/run")
	persistentSinks := []eventbus.Sink{monitoring.NewSink(tracer, metrics)}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := eventbus.NewKafkaSink(cfg.KafkaBrokers, "intentflow.events")
		if err != nil {
			log.Error().Err(err).Msg("failed to configure kafka sink")
			os.Exit(1)
		}
		if kafkaSink != nil {
			persistentSinks = append(persistentSinks, kafkaSink)
			log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("kafka event sink enabled")
		}
	}

	var apiKeysList []string
	for _, key := range strings.Split(*apiKeys, ",") {
		if key = strings.TrimSpace(key); key != "" {
			apiKeysList = append(apiKeysList, key)
		}
	}
	if len(apiKeysList) > 0 {
		log.Info().Int("count", len(apiKeysList)).Msg("api key authentication enabled")
	}

	var wsAuth websocket.Authenticator = websocket.NewNoAuth()
	if cfg.JWTSecret != "" {
		wsAuth = websocket.NewJWTAuth(cfg.JWTSecret)
	}
	wsHandler := websocket.NewHandler(hub, wsAuth, log)

	server := rest.NewServer(rest.Deps{
		Clarifier:       clarifierEngine,
		Thinker:         thinkerEngine,
		Doer:            doerEngine,
		Blocks:          blocks,
		Pipelines:       pipelines,
		Execs:           execs,
		Memory:          memory,
		Embedder:        embedder,
		Rewriter:        rewriter,
		Hub:             hub,
		PersistentSinks: persistentSinks,
		Logger:          log,
	})

	handler := server.Handler(rest.ServerConfig{
		EnableCORS:      *enableCORS,
		EnableRateLimit: *enableLimit,
		RateLimitMax:    100,
		RateLimitWindow: time.Minute,
		APIKeys:         apiKeysList,
	})

	hub.SetCanceller(server)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/ws/execution/{run_id}", wsHandler)
	mux.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server exited gracefully")
}
