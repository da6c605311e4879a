package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Viewer    ViewerConfig    `mapstructure:"viewer"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// AnalysisConfig points at the service that produces previews.
type AnalysisConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL int           `mapstructure:"cache_ttl"` // seconds
}

// ViewerConfig controls the map panes.
type ViewerConfig struct {
	TileURL       string        `mapstructure:"tile_url"`
	TileSize      int           `mapstructure:"tile_size"`
	MinZoom       float64       `mapstructure:"min_zoom"`
	MaxZoom       float64       `mapstructure:"max_zoom"`
	Attribution   string        `mapstructure:"attribution"`
	Width         int           `mapstructure:"width"`
	Height        int           `mapstructure:"height"`
	DefaultLon    float64       `mapstructure:"default_lon"`
	DefaultLat    float64       `mapstructure:"default_lat"`
	FitPadding    float64       `mapstructure:"fit_padding"`
	FitDuration   time.Duration `mapstructure:"fit_duration"`
	TilePrefetch  bool          `mapstructure:"tile_prefetch"`
	TileTimeout   time.Duration `mapstructure:"tile_timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`
	MaxSessions   int           `mapstructure:"max_sessions"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geoviewer")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geoviewer")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("analysis.base_url", "http://localhost:8000")
	v.SetDefault("analysis.timeout", 15*time.Second)
	v.SetDefault("analysis.cache_ttl", 300)
	v.SetDefault("viewer.tile_url", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("viewer.tile_size", 256)
	v.SetDefault("viewer.min_zoom", 0)
	v.SetDefault("viewer.max_zoom", 22)
	v.SetDefault("viewer.attribution", "© OpenStreetMap contributors")
	v.SetDefault("viewer.width", 800)
	v.SetDefault("viewer.height", 600)
	v.SetDefault("viewer.default_lon", -74.0)
	v.SetDefault("viewer.default_lat", 4.6)
	v.SetDefault("viewer.fit_padding", 50)
	v.SetDefault("viewer.fit_duration", time.Second)
	v.SetDefault("viewer.tile_prefetch", true)
	v.SetDefault("viewer.tile_timeout", 10*time.Second)
	v.SetDefault("viewer.user_agent", "geoviewer/1.0")
	v.SetDefault("viewer.settle_timeout", 5*time.Second)
	v.SetDefault("viewer.max_sessions", 256)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEOVIEWER_VIEWER_TILE_URL → viewer.tile_url
	v.SetEnvPrefix("GEOVIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Analysis.BaseURL == "" {
		errs = append(errs, "analysis.base_url is required")
	}
	if c.Analysis.CacheTTL < 0 {
		errs = append(errs, "analysis.cache_ttl must not be negative")
	}
	if !strings.Contains(c.Viewer.TileURL, "{z}") || !strings.Contains(c.Viewer.TileURL, "{x}") || !strings.Contains(c.Viewer.TileURL, "{y}") {
		errs = append(errs, fmt.Sprintf("viewer.tile_url must contain {z}, {x} and {y}, got %q", c.Viewer.TileURL))
	}
	if c.Viewer.TileSize <= 0 {
		errs = append(errs, "viewer.tile_size must be positive")
	}
	if c.Viewer.MinZoom < 0 || c.Viewer.MaxZoom < c.Viewer.MinZoom {
		errs = append(errs, fmt.Sprintf("viewer zoom range invalid: %v-%v", c.Viewer.MinZoom, c.Viewer.MaxZoom))
	}
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		errs = append(errs, "viewer.width and viewer.height must be positive")
	}
	if c.Viewer.MaxSessions <= 0 {
		errs = append(errs, "viewer.max_sessions must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
