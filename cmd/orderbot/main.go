// Command orderbot runs the B2B order-taking chat core's HTTP server:
// it wires the InputValidator/RateLimiter/SessionStore/CacheHierarchy/
// IntentClassifier/KnowledgeRetriever/ResponseGenerator/OrderDispatcher
// modules into an Orchestrator and serves spec §6's three endpoints.
// Structured on the teacher's cmd/tarsy/main.go: flag-based config dir,
// godotenv, config.Initialize, gin router, graceful shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/canadianpizza/orderbot-core/pkg/api"
	"github.com/canadianpizza/orderbot-core/pkg/cache"
	"github.com/canadianpizza/orderbot-core/pkg/cleanup"
	"github.com/canadianpizza/orderbot-core/pkg/config"
	"github.com/canadianpizza/orderbot-core/pkg/database"
	"github.com/canadianpizza/orderbot-core/pkg/dispatch"
	"github.com/canadianpizza/orderbot-core/pkg/intent"
	"github.com/canadianpizza/orderbot-core/pkg/knowledge"
	"github.com/canadianpizza/orderbot-core/pkg/llm"
	"github.com/canadianpizza/orderbot-core/pkg/metrics"
	"github.com/canadianpizza/orderbot-core/pkg/orchestrator"
	"github.com/canadianpizza/orderbot-core/pkg/ratelimit"
	"github.com/canadianpizza/orderbot-core/pkg/response"
	"github.com/canadianpizza/orderbot-core/pkg/session"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "release")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}
	logger.Info("configuration initialized", "stats", cfg.Stats())

	dbConfig, err := cfg.Database()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()
	logger.Info("connected to database")

	sessions := session.New(dbClient.Pool)

	llmConfigured := cfg.LLMAPIKey != ""
	var provider llm.Provider
	if llmConfigured {
		client, err := llm.Singleton(llm.Config{
			APIKey:    cfg.LLMAPIKey,
			MaxTokens: llm.DefaultMaxTokens,
			Timeout:   llm.DefaultTimeout,
		})
		if err != nil {
			log.Fatalf("failed to construct LLM client: %v", err)
		}
		provider = client
	} else {
		logger.Warn("LLM_API_KEY not set, intent classification and response generation will degrade on every request")
	}

	embedder := llm.NewHashEmbedder()

	hierarchy, err := cache.New(cfg.CacheTTLs, cache.Options{
		SQLitePath:       getEnv("CACHE_URL", "./data/cache.db"),
		FallbackCapacity: 1000,
		Embedder:         embedder,
		Logger:           logger,
	})
	if err != nil {
		log.Fatalf("failed to construct cache hierarchy: %v", err)
	}
	defer hierarchy.Close()

	limiter := ratelimit.New(cfg.RateLimits)
	classifier := intent.New(provider, hierarchy)
	generator := response.New(provider)

	vectorConfigured := cfg.VectorStorePath != ""
	var retriever *knowledge.Retriever
	var dispatcher *dispatch.Dispatcher
	if vectorConfigured {
		// Chunk/product seeding is out of scope (spec's Non-goals name both
		// "product-catalog schema" and "embedding generation for the
		// knowledge base" explicitly); an operator repopulates the corpus
		// via vectorStore.Load/catalog.Load from VECTOR_STORE_PATH before
		// traffic arrives. Left unloaded here, both degrade to empty
		// results rather than failing requests. Singleton guards against
		// concurrent first-request construction racing to build the store
		// twice (spec §4.6/§9).
		vectorStore, err := knowledge.Singleton(ctx, nil, embedder)
		if err != nil {
			log.Fatalf("failed to construct vector store: %v", err)
		}
		retriever = knowledge.New(vectorStore, embedder, hierarchy, logger)

		catalog := dispatch.NewMemoryCatalog(embedder)
		dispatcher = dispatch.New(catalog, provider)
	} else {
		logger.Warn("VECTOR_STORE_PATH not set, knowledge retrieval and order dispatch are disabled")
	}

	reg := metrics.New(prometheus.DefaultRegisterer)

	orch := orchestrator.New(limiter, sessions, hierarchy, classifier, retriever, generator, dispatcher, cfg.Retention, reg, logger)

	cleanupSvc := cleanup.NewService(cfg.Retention, cfg.RetentionCron, sessions, hierarchy, logger)
	if err := cleanupSvc.Start(ctx); err != nil {
		log.Fatalf("failed to start cleanup service: %v", err)
	}
	defer cleanupSvc.Stop()

	gin.SetMode(ginMode)
	server := api.NewServer(api.Options{
		Orchestrator:     orch,
		DB:               sessions,
		Cache:            hierarchy,
		LLMConfigured:    llmConfigured,
		VectorConfigured: vectorConfigured,
		Metrics:          reg,
		Logger:           logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           server.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "port", httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining in-flight requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
