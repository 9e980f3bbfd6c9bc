package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Web        WebConfig        `mapstructure:"web"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Log        LogConfig        `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Zero means no client-side timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelegramConfig struct {
	Token          string  `mapstructure:"token"`
	AllowedChatIDs []int64 `mapstructure:"allowed_chat_ids"`
	HistoryLimit   int     `mapstructure:"history_limit"`
}

type WebConfig struct {
	Addr string `mapstructure:"addr"`
	// PublicURL is where users reach the sign-in surface, e.g. https://bot.example.com
	PublicURL string `mapstructure:"public_url"`
}

type DatabaseConfig struct {
	// Driver is one of memory, sqlite or postgres.
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ClassifierConfig struct {
	Remote          bool    `mapstructure:"remote"`
	MinConfidence   float64 `mapstructure:"min_confidence"`
	CategorizeCount int     `mapstructure:"categorize_count"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads the YAML file at path (skipped when path is empty) on top
// of the defaults, then applies environment overrides. A .env file in the
// working directory is loaded first if present.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Set default values
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", 0)
	v.SetDefault("telegram.history_limit", 10)
	v.SetDefault("web.addr", ":5173")
	v.SetDefault("web.public_url", "http://localhost:5173")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.path", "mailpilot.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("classifier.remote", true)
	v.SetDefault("classifier.min_confidence", 0.5)
	v.SetDefault("classifier.categorize_count", 20)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 150)
	v.SetDefault("openai.temperature", 0.0)
	v.SetDefault("log.level", "info")

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiURL := v.GetString("API_URL"); apiURL != "" {
		config.API.BaseURL = apiURL
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Database.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Classifier.MinConfidence < 0 || c.Classifier.MinConfidence > 1 {
		return fmt.Errorf("classifier.min_confidence must be within [0, 1], got %v", c.Classifier.MinConfidence)
	}
	return nil
}
