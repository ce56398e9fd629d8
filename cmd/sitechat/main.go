package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/lromeral/sitechat/internal/ai"
	"github.com/lromeral/sitechat/internal/config"
	"github.com/lromeral/sitechat/internal/db"
	"github.com/lromeral/sitechat/internal/embedcache"
	"github.com/lromeral/sitechat/internal/handler"
	"github.com/lromeral/sitechat/internal/job"
	"github.com/lromeral/sitechat/internal/middleware"
	"github.com/lromeral/sitechat/internal/pkg/jwt"
	"github.com/lromeral/sitechat/internal/repo"
	"github.com/lromeral/sitechat/internal/schedule"
	"github.com/lromeral/sitechat/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "sitechat",
		Short: "sitechat backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run sitechat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := setup(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg, database)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "rebuild the whole embedding index and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := setup(configPath)
			if err != nil {
				return err
			}
			app := buildApp(cfg, database)
			return app.index.ReindexAll(context.Background())
		},
	}
	reindexCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	var tokenUser string
	var tokenRole string
	var tokenTTLHours int
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint an admin jwt for the indexing endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			token, err := jwt.GenerateToken(tokenUser, tokenRole, []byte(cfg.JWTSecret), time.Duration(tokenTTLHours)*time.Hour)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "admin", "user id claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "admin", "role claim")
	tokenCmd.Flags().IntVar(&tokenTTLHours, "ttl-hours", 24, "token lifetime in hours")

	rootCmd.AddCommand(runCmd, reindexCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	database, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(database); err != nil {
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, database, nil
}

type app struct {
	chat    *service.ChatService
	index   *service.IndexService
	embed   *ai.EmbedChain
	options *repo.OptionRepo
}

func buildApp(cfg *config.Config, database *sql.DB) *app {
	embeddingRepo := repo.NewEmbeddingRepo(database)
	optionRepo := repo.NewOptionRepo(database)
	contentRepo := repo.NewContentRepo(database)
	queryRepo := repo.NewQueryRepo(database)

	timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	embedChain := buildEmbedChain(cfg.AI, optionRepo, timeout)
	chatChain := buildChatChain(cfg.AI, timeout)

	var embedder ai.IEmbedder
	if embedChain != nil {
		embedder = embedcache.WrapLruCacheToEmbedder(
			embedChain,
			cfg.AI.EmbedCacheSize,
			time.Duration(cfg.AI.EmbedCacheTTLMins)*time.Minute,
		)
	}

	searchService := service.NewSearchService(embeddingRepo, cfg.Chat.PageBoost)
	sessions := service.NewSessionStore(cfg.Chat.SessionCacheSize, time.Duration(cfg.Chat.SessionTTLMins)*time.Minute)
	snapshotService := service.NewSnapshotService(contentRepo, optionRepo)
	indexService := service.NewIndexService(embeddingRepo, contentRepo, optionRepo, queryRepo, embedder, cfg.Indexer)

	var products service.ProductFinder
	if cfg.Commerce {
		products = contentRepo
	}
	chatService := service.NewChatService(embedder, chatChain, searchService, sessions, snapshotService, contentRepo, products, cfg.Chat)

	return &app{
		chat:    chatService,
		index:   indexService,
		embed:   embedChain,
		options: optionRepo,
	}
}

// buildEmbedChain keys only configured providers; openai leads the default
// order, the persisted preference reorders at call time.
func buildEmbedChain(cfg config.AIConfig, prefs ai.PreferenceStore, timeout time.Duration) *ai.EmbedChain {
	var entries []ai.EmbedderEntry
	if cfg.OpenAI.APIKey != "" {
		provider, err := ai.NewEmbedProvider("openai", cfg.OpenAI)
		if err == nil {
			entries = append(entries, ai.EmbedderEntry{Name: "openai", Embedder: ai.NewEmbedder(provider, cfg.OpenAI.EmbedModel)})
		} else {
			logutil.GetLogger(context.Background()).Warn("init openai embed provider failed", zap.Error(err))
		}
	}
	if cfg.Gemini.APIKey != "" {
		provider, err := ai.NewEmbedProvider("gemini", cfg.Gemini)
		if err == nil {
			entries = append(entries, ai.EmbedderEntry{Name: "gemini", Embedder: ai.NewEmbedder(provider, cfg.Gemini.EmbedModel)})
		} else {
			logutil.GetLogger(context.Background()).Warn("init gemini embed provider failed", zap.Error(err))
		}
	}
	return ai.NewEmbedChain(entries, prefs, timeout)
}

// buildChatChain is fixed order: gemini first, openai as backup.
func buildChatChain(cfg config.AIConfig, timeout time.Duration) ai.IGenerator {
	var entries []ai.GeneratorEntry
	if cfg.Gemini.APIKey != "" {
		provider, err := ai.NewChatProvider("gemini", cfg.Gemini)
		if err == nil {
			entries = append(entries, ai.GeneratorEntry{Name: "gemini", Generator: ai.NewGenerator(provider, cfg.Gemini.ChatModel)})
		} else {
			logutil.GetLogger(context.Background()).Warn("init gemini chat provider failed", zap.Error(err))
		}
	}
	if cfg.OpenAI.APIKey != "" {
		provider, err := ai.NewChatProvider("openai", cfg.OpenAI)
		if err == nil {
			entries = append(entries, ai.GeneratorEntry{Name: "openai", Generator: ai.NewGenerator(provider, cfg.OpenAI.ChatModel)})
		} else {
			logutil.GetLogger(context.Background()).Warn("init openai chat provider failed", zap.Error(err))
		}
	}
	return ai.NewChatChain(entries, timeout)
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.Bool("commerce", cfg.Commerce),
	)

	app := buildApp(cfg, database)

	chatHandler := handler.NewChatHandler(app.chat)
	adminHandler := handler.NewAdminHandler(app.index, app.embed, app.options)

	deps := handler.RouterDeps{
		Chat:          chatHandler,
		Admin:         adminHandler,
		JWTSecret:     []byte(cfg.JWTSecret),
		RatePerMinute: cfg.Chat.RatePerMinute,
		RateBurst:     cfg.Chat.RateBurst,
		RateBurstWin:  time.Duration(cfg.Chat.RateBurstSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigin),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cfg.Indexer.ReindexCron != "" {
		if err := scheduler.AddJob(job.NewReindexJob(app.index), cfg.Indexer.ReindexCron); err != nil {
			return fmt.Errorf("schedule reindex: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
