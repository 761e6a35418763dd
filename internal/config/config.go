package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// ServerName is the homeserver name embedded in every identifier this
	// server mints (room ids, event ids, user ids, aliases).
	ServerName string `mapstructure:"server_name" yaml:"server_name"`

	// DatabasePath is the SQLite file holding user and room rows.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// CoordPath is the BadgerDB directory holding the coordination state:
	// alias reservations, staged requests, and the per-room event logs.
	CoordPath string `mapstructure:"coord_path" yaml:"coord_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	// EventsTimeout caps how long the /events long-poll and the websocket
	// stream wait for new entries before returning an empty chunk.
	EventsTimeout time.Duration `mapstructure:"events_timeout" yaml:"events_timeout"`

	// MaxEventBytes bounds accepted event content payloads.
	MaxEventBytes int64 `mapstructure:"max_event_bytes" yaml:"max_event_bytes"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty" yaml:"log_pretty"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8008",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		ServerName:        "localhost",
		DatabasePath:      "mxchat.db",
		CoordPath:         "mxchat-coord",
		JWTIssuer:         "mxchat",
		JWTAudience:       "mxchat",
		TokenTTL:          24 * time.Hour,
		EventsTimeout:     30 * time.Second,
		MaxEventBytes:     1 << 16,
		LogLevel:          "info",
		LogPretty:         true,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.ServerName != "" {
		c.ServerName = other.ServerName
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.CoordPath != "" {
		c.CoordPath = other.CoordPath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.TokenTTL != 0 {
		c.TokenTTL = other.TokenTTL
	}
	if other.EventsTimeout != 0 {
		c.EventsTimeout = other.EventsTimeout
	}
	if other.MaxEventBytes != 0 {
		c.MaxEventBytes = other.MaxEventBytes
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}
