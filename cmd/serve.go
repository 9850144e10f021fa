package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chatchai-k/docqa/internal/config"
	"github.com/chatchai-k/docqa/internal/db"
	"github.com/chatchai-k/docqa/internal/embeddings"
	"github.com/chatchai-k/docqa/internal/extract"
	"github.com/chatchai-k/docqa/internal/llm"
	"github.com/chatchai-k/docqa/internal/memory"
	"github.com/chatchai-k/docqa/internal/rag"
	"github.com/chatchai-k/docqa/internal/server"
	"github.com/chatchai-k/docqa/internal/session"
	"github.com/chatchai-k/docqa/internal/splitter"
	"github.com/chatchai-k/docqa/internal/vectordb"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document question answering server",
	Long: `Starts the docqa HTTP server. Collaborators that fail to start (vector
store, model provider, session database) leave the server running in a
degraded mode where the affected endpoints report not_initialized.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if servePort > 0 {
			cfg.Port = servePort
		}

		logger, err := buildLogger()
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir %s: %w", cfg.DataDir, err)
		}

		// Vector store. Failures leave store nil and the server degraded.
		var store vectordb.Store
		embedder, err := createEmbedder(cfg)
		if err != nil {
			logger.Warn("embedder unavailable, ingestion and query disabled", zap.Error(err))
		} else {
			cs, err := vectordb.NewChromemStore(filepath.Join(cfg.DataDir, "vectordb"), cfg.Collection, embedder)
			if err != nil {
				logger.Warn("vector store unavailable, ingestion and query disabled", zap.Error(err))
			} else {
				store = cs
				logger.Info("vector store loaded",
					zap.String("collection", cfg.Collection),
					zap.Int("chunks", cs.Count()))
			}
		}

		// Chat provider.
		provider, err := createProvider(cfg)
		if err != nil {
			logger.Warn("model provider unavailable, query disabled", zap.Error(err))
		}

		// Session registry and transcripts.
		var sessions *session.Store
		database, err := db.Open(filepath.Join(cfg.DataDir, "docqa.db"))
		if err != nil {
			logger.Warn("session database unavailable, query disabled", zap.Error(err))
		} else {
			defer database.Close()
			sessions = session.NewStore(database)
		}

		// Session memory.
		memStore, err := createMemoryStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		var summarizer memory.Summarizer
		if provider != nil {
			summarizer = memory.NewLLMSummarizer(provider, cfg.Model)
		} else {
			summarizer = failingSummarizer{}
		}
		manager := memory.NewManager(memStore, summarizer, cfg.MemoryTokenLimit, logger)

		engine := rag.NewEngine(rag.Config{
			Store:     store,
			Splitter:  splitter.New(cfg.ChunkSize, cfg.ChunkOverlap),
			Extractor: extract.NewExtractor(),
			Provider:  provider,
			Model:     cfg.Model,
			Memory:    manager,
			Sessions:  sessions,
			TopK:      cfg.TopK,
			Logger:    logger,
		})

		srv := server.New(server.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			AllowAll: cfg.AllowAllOrigins,
			Timeout:  cfg.RequestTimeout(),
		}, logger)
		rag.NewHandler(engine, logger).Routes(srv.Router())

		go func() {
			<-ctx.Done()
			logger.Info("shutting down")
			srv.Shutdown(context.Background())
		}()

		logger.Info("docqa starting",
			zap.String("version", Version),
			zap.Int("port", cfg.Port),
			zap.String("provider", string(cfg.Provider)),
			zap.String("model", cfg.Model))

		return srv.Start()
	},
}

func buildLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func createEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("%s is not set", config.APIKeyEnvVar(config.ProviderOpenAI))
		}
		return embeddings.NewOpenAIEmbedder(apiKey, cfg.EmbeddingModel), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, cfg.EmbeddingDimensions, cfg.OllamaHost), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

func createProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("%s is not set", config.APIKeyEnvVar(config.ProviderOpenAI))
		}
		return llm.NewRateLimitedProvider(llm.NewOpenAIProvider(apiKey, cfg.Model), 60), nil
	case config.ProviderOllama:
		return llm.NewOllamaProvider(cfg.OllamaHost, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func createMemoryStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (memory.Store, error) {
	if cfg.MemoryBackend == config.MemoryBackendRedis {
		store, err := memory.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL())
		if err != nil {
			// Fall back to the in-process map so the server still starts.
			logger.Warn("redis unavailable, falling back to in-process session memory", zap.Error(err))
			return memory.NewMapStore(cfg.SessionTTL(), cfg.MaxSessions), nil
		}
		return store, nil
	}
	return memory.NewMapStore(cfg.SessionTTL(), cfg.MaxSessions), nil
}

// failingSummarizer stands in when no model provider is configured;
// Record keeps raw turns and logs the failure instead of summarizing.
type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, string, []memory.Turn) (string, error) {
	return "", fmt.Errorf("no model provider configured")
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
