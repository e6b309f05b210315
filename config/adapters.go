package config

import (
	"os"

	"nfl-pickem/database"
	"nfl-pickem/logging"
	"nfl-pickem/middleware"
	"nfl-pickem/observability"
	"nfl-pickem/services"
)

// ToDatabaseConfig converts Config to database.Config
func (c *Config) ToDatabaseConfig() database.Config {
	return database.Config{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Username: c.Database.Username,
		Password: c.Database.Password,
		Database: c.Database.Database,
		Timeout:  c.Database.Timeout,
	}
}

// ToLoggingConfig converts Config to logging.Config
func (c *Config) ToLoggingConfig() logging.Config {
	return logging.Config{
		Level:       c.Logging.Level,
		Format:      c.Logging.Format,
		Output:      os.Stdout,
		Prefix:      c.Logging.Prefix,
		EnableColor: c.Logging.EnableColor,
	}
}

// ToEngineConfig converts Config to services.EngineConfig
func (c *Config) ToEngineConfig() services.EngineConfig {
	return services.EngineConfig{
		LockoutBuffer:    c.Engine.LockoutBuffer,
		StartGrace:       c.Engine.StartGrace,
		CompletionWindow: c.Engine.CompletionWindow,
		ResolveInterval:  c.Engine.ResolveInterval,
		ScoringWorkers:   c.Engine.ScoringWorkers,
	}
}

// ToBrokerConfig converts Config to services.BrokerConfig
func (c *Config) ToBrokerConfig() services.BrokerConfig {
	return services.BrokerConfig{
		SubscriberBuffer:  c.Live.SubscriberBuffer,
		HeartbeatInterval: c.Live.HeartbeatInterval,
	}
}

// ToFeedConfig converts Config to services.FeedConfig
func (c *Config) ToFeedConfig() services.FeedConfig {
	return services.FeedConfig{
		BaseURL:    c.Feed.BaseURL,
		Format:     c.Feed.Format,
		Timeout:    c.Feed.Timeout,
		MaxRetries: c.Feed.MaxRetries,
	}
}

// ToUpdaterConfig converts Config to services.UpdaterConfig
func (c *Config) ToUpdaterConfig() services.UpdaterConfig {
	return services.UpdaterConfig{
		Season:          c.App.CurrentSeason,
		PollInterval:    c.Feed.PollInterval,
		ResolveInterval: c.Engine.ResolveInterval,
	}
}

// ToSecurityConfig converts Config to middleware.SecurityConfig
func (c *Config) ToSecurityConfig() middleware.SecurityConfig {
	return middleware.SecurityConfig{
		BehindProxy:    c.Server.BehindProxy,
		AllowedOrigins: c.Server.AllowedOrigins,
	}
}

// ToTracingConfig converts Config to observability.TracingConfig
func (c *Config) ToTracingConfig(version string) observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:        c.Tracing.Enabled,
		DSN:            c.Tracing.DSN,
		ServiceName:    "nfl-pickem",
		ServiceVersion: version,
		Environment:    c.Server.Environment,
	}
}
