package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Zonation ZonationConfig `yaml:"zonation" mapstructure:"zonation"`
	Session  SessionConfig  `yaml:"session" mapstructure:"session"`
	Table    TableConfig    `yaml:"table" mapstructure:"table"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`

	// Startup ping retries while Postgres comes up.
	ConnectAttempts  int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
	ConnectBackoffMS int `yaml:"connect_backoff_ms" mapstructure:"connect_backoff_ms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ZonationConfig holds the ranking policy. Weights, radius and quality
// ceiling are policy decisions and all have defaults here rather than in code.
type ZonationConfig struct {
	RadiusKM         float64 `yaml:"radius_km" mapstructure:"radius_km"`
	DistanceWeight   float64 `yaml:"distance_weight" mapstructure:"distance_weight"`
	QualityWeight    float64 `yaml:"quality_weight" mapstructure:"quality_weight"`
	TopK             int     `yaml:"top_k" mapstructure:"top_k"`
	QualityCeiling   float64 `yaml:"quality_ceiling" mapstructure:"quality_ceiling"`
	DistanceModel    string  `yaml:"distance_model" mapstructure:"distance_model"`
	EarthRadiusKM    float64 `yaml:"earth_radius_km" mapstructure:"earth_radius_km"`
	BatchConcurrency int     `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
}

// SessionConfig configures where the saved home location lives.
type SessionConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// TableConfig points at the cleaned facility table used when no store is loaded.
type TableConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
	Charset   string `yaml:"charset" mapstructure:"charset"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZONASI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "zonasi.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.connect_attempts", 5)
	v.SetDefault("store.connect_backoff_ms", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("zonation.radius_km", 2.0)
	v.SetDefault("zonation.distance_weight", 60)
	v.SetDefault("zonation.quality_weight", 40)
	v.SetDefault("zonation.top_k", 3)
	v.SetDefault("zonation.quality_ceiling", 100)
	v.SetDefault("zonation.distance_model", "geodesic")
	v.SetDefault("zonation.earth_radius_km", 6371.0)
	v.SetDefault("zonation.batch_concurrency", 4)
	v.SetDefault("session.path", ".zonasi-home.yaml")
	v.SetDefault("table.path", "data_sekolah_jabar_final.csv")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by a command mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required (ZONASI_STORE_DATABASE_URL)")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server.rate_limit_rps must be >= 0")
		}
	case "rank":
		switch strings.ToLower(c.Zonation.DistanceModel) {
		case "geodesic", "haversine":
		default:
			errs = append(errs, "zonation.distance_model must be geodesic or haversine")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
