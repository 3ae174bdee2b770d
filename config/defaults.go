package config

import (
	"time"

	"github.com/varkai/chatflow/history"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API:     DefaultAPIConfig(),
		Session: DefaultSessionConfig(),
		History: DefaultHistoryConfig(),
		Log:     DefaultLogConfig(),
		Metrics: DefaultMetricsConfig(),
	}
}

// DefaultAPIConfig returns the default backend connection settings.
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		BaseURL:           "http://localhost:8000",
		APIKey:            "",
		TeamID:            1,
		RequestTimeout:    30 * time.Second,
		StreamOpenTimeout: 30 * time.Second,
	}
}

// DefaultSessionConfig returns the default session settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		UserName:     "user",
		CancelNotice: "turn interrupted by user",
	}
}

// DefaultHistoryConfig returns the default snapshot store settings.
func DefaultHistoryConfig() history.Config {
	return history.Config{
		Backend: history.BackendMemory,
		Redis: history.RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultMetricsConfig returns the default instrumentation settings.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "chatflow",
	}
}
