package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"nfl-pickem/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Authentication configuration
	Auth AuthConfig `json:"auth"`

	// Application configuration
	App AppConfig `json:"app"`

	// Pick window and scoring engine tuning
	Engine EngineConfig `json:"engine"`

	// Schedule/result feed
	Feed FeedConfig `json:"feed"`

	// Live update channel
	Live LiveConfig `json:"live"`

	// Trace export
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string `json:"port"`
	Host        string `json:"host"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	Environment string `json:"environment"`

	BehindProxy    bool     `json:"behind_proxy"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string        `json:"host"`
	Port     string        `json:"port"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	Database string        `json:"database"`
	Timeout  time.Duration `json:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	Prefix      string `json:"prefix"`
	EnableColor bool   `json:"enable_color"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret    string `json:"jwt_secret"`
	AdminKeyHash string `json:"-"` // bcrypt hash of the admin API key
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	CurrentSeason            int  `json:"current_season"`
	IsDevelopment            bool `json:"is_development"`
	BackgroundUpdaterEnabled bool `json:"background_updater_enabled"`
	ChangeStreamEnabled      bool `json:"change_stream_enabled"`
}

// EngineConfig holds edit window and resolution tuning
type EngineConfig struct {
	LockoutBuffer    time.Duration `json:"lockout_buffer"`
	StartGrace       time.Duration `json:"start_grace"`
	CompletionWindow time.Duration `json:"completion_window"`
	ResolveInterval  time.Duration `json:"resolve_interval"`
	ScoringWorkers   int           `json:"scoring_workers"`
}

// FeedConfig holds schedule/result feed settings
type FeedConfig struct {
	BaseURL      string        `json:"base_url"`
	Format       string        `json:"format"` // "native" or "espn"
	Timeout      time.Duration `json:"timeout"`
	MaxRetries   int           `json:"max_retries"`
	PollInterval time.Duration `json:"poll_interval"`
}

// LiveConfig holds live channel settings
type LiveConfig struct {
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	SubscriberBuffer  int           `json:"subscriber_buffer"`
}

// TracingConfig holds trace export settings
type TracingConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"-"`
}

// Load loads configuration from environment variables, a .env file and an
// optional YAML file. Environment variables win over the file.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Don't treat missing .env as an error
		logging.Debugf("Could not load .env file: %v", err)
	}

	file, err := loadFile(getEnv("CONFIG_FILE", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	environment := getEnv("ENVIRONMENT", "development")
	isDevelopment := strings.ToLower(environment) == "development"

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			UseTLS:      getBoolEnv("USE_TLS", false),
			CertFile:    getEnv("TLS_CERT_FILE", "server.crt"),
			KeyFile:     getEnv("TLS_KEY_FILE", "server.key"),
			Environment: environment,

			BehindProxy:    getBoolEnv("BEHIND_PROXY", false),
			AllowedOrigins: getListEnv("ALLOWED_ORIGINS", file.GetStringSlice("server.allowed_origins")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "27017"),
			Username: getEnv("DB_USERNAME", ""),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "nfl_pickem"),
			Timeout:  getDurationEnv("DB_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "console"),
			Prefix:      getEnv("LOG_PREFIX", "nfl-pickem"),
			EnableColor: getBoolEnv("LOG_COLOR", true),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AdminKeyHash: getEnv("ADMIN_KEY_HASH", ""),
		},
		App: AppConfig{
			CurrentSeason:            getIntEnv("CURRENT_SEASON", file.GetInt("app.current_season")),
			IsDevelopment:            isDevelopment,
			BackgroundUpdaterEnabled: getBoolEnv("BACKGROUND_UPDATER_ENABLED", true),
			ChangeStreamEnabled:      getBoolEnv("CHANGE_STREAM_ENABLED", false),
		},
		Engine: EngineConfig{
			LockoutBuffer:    getDurationEnv("ENGINE_LOCKOUT_BUFFER", file.GetDuration("engine.lockout_buffer")),
			StartGrace:       getDurationEnv("ENGINE_START_GRACE", file.GetDuration("engine.start_grace")),
			CompletionWindow: getDurationEnv("ENGINE_COMPLETION_WINDOW", file.GetDuration("engine.completion_window")),
			ResolveInterval:  getDurationEnv("ENGINE_RESOLVE_INTERVAL", file.GetDuration("engine.resolve_interval")),
			ScoringWorkers:   getIntEnv("ENGINE_SCORING_WORKERS", file.GetInt("engine.scoring_workers")),
		},
		Feed: FeedConfig{
			BaseURL:      getEnv("FEED_BASE_URL", file.GetString("feed.base_url")),
			Format:       getEnv("FEED_FORMAT", file.GetString("feed.format")),
			Timeout:      getDurationEnv("FEED_TIMEOUT", file.GetDuration("feed.timeout")),
			MaxRetries:   getIntEnv("FEED_MAX_RETRIES", file.GetInt("feed.max_retries")),
			PollInterval: getDurationEnv("FEED_POLL_INTERVAL", file.GetDuration("feed.poll_interval")),
		},
		Live: LiveConfig{
			HeartbeatInterval: getDurationEnv("LIVE_HEARTBEAT_INTERVAL", file.GetDuration("live.heartbeat_interval")),
			SubscriberBuffer:  getIntEnv("LIVE_SUBSCRIBER_BUFFER", file.GetInt("live.subscriber_buffer")),
		},
		Tracing: TracingConfig{
			Enabled: getBoolEnv("UPTRACE_ENABLED", false),
			DSN:     getEnv("UPTRACE_DSN", ""),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFile reads the optional YAML config. A missing file is not an error;
// defaults for every tunable are registered here.
func loadFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("app.current_season", 2025)
	v.SetDefault("engine.lockout_buffer", 10*time.Minute)
	v.SetDefault("engine.start_grace", 15*time.Minute)
	v.SetDefault("engine.completion_window", 6*time.Hour)
	v.SetDefault("engine.resolve_interval", 5*time.Minute)
	v.SetDefault("engine.scoring_workers", 8)
	v.SetDefault("feed.base_url", "")
	v.SetDefault("feed.format", "native")
	v.SetDefault("feed.timeout", 10*time.Second)
	v.SetDefault("feed.max_retries", 3)
	v.SetDefault("feed.poll_interval", 2*time.Minute)
	v.SetDefault("live.heartbeat_interval", 25*time.Second)
	v.SetDefault("live.subscriber_buffer", 64)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		// An explicitly named file must exist; the default lookup is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, err
	}
	logging.Infof("Loaded config file %s", v.ConfigFileUsed())
	return v, nil
}

// Validate validates the configuration for required fields and sensible values
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Server.UseTLS {
		if c.Server.CertFile == "" || c.Server.KeyFile == "" {
			return fmt.Errorf("TLS certificate and key files are required when USE_TLS=true")
		}
		if _, err := os.Stat(c.Server.CertFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", c.Server.CertFile)
		}
		if _, err := os.Stat(c.Server.KeyFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", c.Server.KeyFile)
		}
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Auth.JWTSecret == "your-secret-key-change-in-production" && !c.App.IsDevelopment {
		return fmt.Errorf("JWT secret must be changed in production")
	}

	if c.App.CurrentSeason < 2020 || c.App.CurrentSeason > 2035 {
		return fmt.Errorf("current season must be between 2020 and 2035, got: %d", c.App.CurrentSeason)
	}

	if c.Engine.LockoutBuffer < 0 || c.Engine.StartGrace < 0 {
		return fmt.Errorf("edit window durations must not be negative")
	}
	if c.Engine.CompletionWindow <= 0 {
		return fmt.Errorf("completion window must be positive, got: %s", c.Engine.CompletionWindow)
	}
	if c.Engine.ScoringWorkers < 1 {
		return fmt.Errorf("scoring workers must be at least 1, got: %d", c.Engine.ScoringWorkers)
	}
	if c.Feed.Format != "native" && c.Feed.Format != "espn" {
		return fmt.Errorf("feed format must be native or espn, got: %q", c.Feed.Format)
	}
	if c.Live.HeartbeatInterval <= 0 {
		return fmt.Errorf("live heartbeat interval must be positive")
	}
	if c.Live.SubscriberBuffer < 1 {
		return fmt.Errorf("live subscriber buffer must be at least 1")
	}

	return nil
}

// IsFeedConfigured returns true when a schedule/result feed URL is set
func (c *Config) IsFeedConfigured() bool {
	return c.Feed.BaseURL != ""
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// LogConfiguration logs the current configuration (without sensitive data)
func (c *Config) LogConfiguration() {
	logging.Info("=== Application Configuration ===")
	logging.Infof("Server: %s (TLS: %t, Environment: %s)",
		c.GetServerAddress(), c.Server.UseTLS, c.Server.Environment)
	logging.Infof("Database: %s:%s/%s (Username: %s, Auth: %t)",
		c.Database.Host, c.Database.Port, c.Database.Database,
		c.Database.Username, c.Database.Password != "")
	logging.Infof("Logging: Level=%s, Format=%s, Color=%t",
		c.Logging.Level, c.Logging.Format, c.Logging.EnableColor)
	logging.Infof("App: Season=%d, Development=%t, BackgroundUpdater=%t, ChangeStream=%t, AdminKey=%t",
		c.App.CurrentSeason, c.App.IsDevelopment, c.App.BackgroundUpdaterEnabled, c.App.ChangeStreamEnabled, c.Auth.AdminKeyHash != "")
	logging.Infof("Engine: Lockout=%s, Grace=%s, Completion=%s, ResolveEvery=%s, Workers=%d",
		c.Engine.LockoutBuffer, c.Engine.StartGrace, c.Engine.CompletionWindow, c.Engine.ResolveInterval, c.Engine.ScoringWorkers)
	logging.Infof("Feed: Configured=%t, Format=%s, Timeout=%s, Retries=%d, Poll=%s",
		c.IsFeedConfigured(), c.Feed.Format, c.Feed.Timeout, c.Feed.MaxRetries, c.Feed.PollInterval)
	logging.Infof("Live: Heartbeat=%s, Buffer=%d", c.Live.HeartbeatInterval, c.Live.SubscriberBuffer)
	logging.Infof("Tracing: Enabled=%t, DSN set=%t", c.Tracing.Enabled, c.Tracing.DSN != "")
	logging.Info("================================")
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
