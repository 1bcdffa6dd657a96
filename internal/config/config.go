package config

import "time"

// Config holds client configuration values. Credentials may also arrive
// via flags or environment; the file never needs to carry them.
type Config struct {
	Account   string `mapstructure:"account" yaml:"account"`
	Password  string `mapstructure:"password" yaml:"password"`
	Character string `mapstructure:"character" yaml:"character"`

	ServerURL  string `mapstructure:"server_url" yaml:"server_url"`
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	// LogDBPath enables the local chat-log archive; empty disables it.
	LogDBPath string `mapstructure:"log_db_path" yaml:"log_db_path"`

	PingInterval      time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	ReconnectBase     time.Duration `mapstructure:"reconnect_base" yaml:"reconnect_base"`
	ReconnectMax      time.Duration `mapstructure:"reconnect_max" yaml:"reconnect_max"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts" yaml:"reconnect_attempts"`

	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	HistoryLimit  int `mapstructure:"history_limit" yaml:"history_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:         "wss://chat.f-list.net/chat2",
		APIBaseURL:        "https://www.f-list.net/json/",
		LogLevel:          "info",
		PingInterval:      30 * time.Second,
		ReconnectBase:     time.Second,
		ReconnectMax:      60 * time.Second,
		ReconnectAttempts: 10,
		QueueCapacity:     128,
		HistoryLimit:      500,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Account != "" {
		c.Account = other.Account
	}
	if other.Password != "" {
		c.Password = other.Password
	}
	if other.Character != "" {
		c.Character = other.Character
	}
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.APIBaseURL != "" {
		c.APIBaseURL = other.APIBaseURL
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogDBPath != "" {
		c.LogDBPath = other.LogDBPath
	}
	if other.PingInterval != 0 {
		c.PingInterval = other.PingInterval
	}
	if other.ReconnectBase != 0 {
		c.ReconnectBase = other.ReconnectBase
	}
	if other.ReconnectMax != 0 {
		c.ReconnectMax = other.ReconnectMax
	}
	if other.ReconnectAttempts != 0 {
		c.ReconnectAttempts = other.ReconnectAttempts
	}
	if other.QueueCapacity != 0 {
		c.QueueCapacity = other.QueueCapacity
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
}
