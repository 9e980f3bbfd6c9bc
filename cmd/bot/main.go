package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/xaenox/mailpilot-bot/internal/api"
	"github.com/xaenox/mailpilot-bot/internal/auth"
	"github.com/xaenox/mailpilot-bot/internal/bot"
	"github.com/xaenox/mailpilot-bot/internal/classifier"
	"github.com/xaenox/mailpilot-bot/internal/storage"
	"github.com/xaenox/mailpilot-bot/internal/web"
	"github.com/xaenox/mailpilot-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	path := *configPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = ""
	}

	// Load configuration
	cfg, err := config.LoadConfig(path)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	// Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		zap.NewExample().Fatal("Failed to create logger", zap.Error(err))
	}
	defer logger.Sync()

	// Initialize storage
	store, err := openStorage(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}
	defer store.Close()

	client := api.NewClient(cfg.API.BaseURL, store, cfg.API.Timeout, logger.Named("api"))
	session := auth.NewSession(client, store, logger.Named("auth"))

	// Rules always answer; remote and GPT results are used only when confident.
	var clf classifier.Classifier = classifier.NewRuleClassifier()
	if cfg.OpenAI.APIKey != "" {
		logger.Info("Using GPT classifier", zap.String("model", cfg.OpenAI.Model))
		gpt := classifier.NewGPTClassifier(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			logger.Named("gpt"),
		)
		clf = classifier.NewFallback(gpt, clf, cfg.Classifier.MinConfidence, logger)
	}
	if cfg.Classifier.Remote {
		logger.Info("Using backend command parser")
		clf = classifier.NewFallback(classifier.NewRemoteClassifier(client), clf, cfg.Classifier.MinConfidence, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the sign-in web surface
	srv := web.NewServer(session, logger.Named("web"))
	go func() {
		if err := srv.Listen(cfg.Web.Addr); err != nil {
			logger.Error("Web server stopped", zap.Error(err))
			stop()
		}
	}()

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, store, session, client, clf, bot.Options{
		PublicURL:       cfg.Web.PublicURL,
		AllowedChatIDs:  cfg.Telegram.AllowedChatIDs,
		HistoryLimit:    cfg.Telegram.HistoryLimit,
		CategorizeCount: cfg.Classifier.CategorizeCount,
	}, logger.Named("bot"))
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(ctx); err != nil {
		logger.Error("Bot error", zap.Error(err))
	}

	logger.Info("Shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.Error("Failed to stop web server", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

func openStorage(cfg config.DatabaseConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "postgres":
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))
		return storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
			SSLMode:  cfg.SSLMode,
		}, logger)
	case "sqlite":
		logger.Info("Using SQLite storage", zap.String("path", cfg.Path))
		return storage.NewSQLiteStorage(cfg.Path, logger)
	default:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}
}
