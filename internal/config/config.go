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
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Map    MapConfig    `yaml:"map" mapstructure:"map"`
	Render RenderConfig `yaml:"render" mapstructure:"render"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the boundary topology and the wage series.
type DataConfig struct {
	// Topology is a TopoJSON file, as a path or URL. Shapefile boundaries are
	// configured through Layers.
	Topology string `yaml:"topology" mapstructure:"topology"`
	// Layers maps layer name to a .shp file or a .zip holding one. Layers
	// named here replace same-named topology objects.
	Layers map[string]string `yaml:"layers" mapstructure:"layers"`
	// IDField is the shapefile attribute used as the feature ID.
	IDField string `yaml:"id_field" mapstructure:"id_field"`
	// Wages is a CSV or XLSX file, a URL, or "store" to read from the configured store.
	Wages   string   `yaml:"wages" mapstructure:"wages"`
	Frames  []string `yaml:"frames" mapstructure:"frames"`
	TempDir string   `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// MapConfig selects the map type preset.
type MapConfig struct {
	Preset      string `yaml:"preset" mapstructure:"preset"`
	PresetsFile string `yaml:"presets_file" mapstructure:"presets_file"`
}

// RenderConfig configures SVG output.
type RenderConfig struct {
	Width     int `yaml:"width" mapstructure:"width"`
	Precision int `yaml:"precision" mapstructure:"precision"`
}

// ServerConfig configures the map server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CacheEntries   int      `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLMins   int      `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StoreConfig configures the wage table store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// FetchConfig configures remote data downloads.
type FetchConfig struct {
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WAGEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.topology", "data/geodata.json")
	v.SetDefault("data.id_field", "GEOID")
	v.SetDefault("data.wages", "data/county_wage_series.csv")
	v.SetDefault("data.frames", []string{"1990", "2015"})
	v.SetDefault("data.temp_dir", "/tmp/wagemap")
	v.SetDefault("map.preset", "usa-counties")
	v.SetDefault("render.width", 320)
	v.SetDefault("render.precision", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cache_entries", 256)
	v.SetDefault("server.cache_ttl_mins", 60)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "wagemap.db")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "wagemap/1.0")
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_reset_secs", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a render.
func (c *Config) Validate() error {
	if c.Render.Width <= 0 {
		return eris.Errorf("config: render.width must be positive, got %d", c.Render.Width)
	}
	if len(c.Data.Frames) == 0 {
		return eris.New("config: data.frames is empty")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
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
