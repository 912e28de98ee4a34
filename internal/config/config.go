package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Indicator IndicatorConfig `mapstructure:"indicator"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// APIConfig holds inspection backend configuration
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// IndicatorConfig holds the external exchange-rate source configuration
type IndicatorConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds local artifact storage configuration
type StorageConfig struct {
	BaseDir      string `mapstructure:"base_dir"`
	CacheDir     string `mapstructure:"cache_dir"`
	DocumentsDir string `mapstructure:"documents_dir"`
}

// DatabaseConfig holds local database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("api.timeout", 30*time.Second)

	viper.SetDefault("indicator.url", "https://mindicador.cl/api/uf")
	viper.SetDefault("indicator.timeout", 10*time.Second)

	viper.SetDefault("storage.base_dir", "data")
	viper.SetDefault("storage.cache_dir", "data/cache")
	viper.SetDefault("storage.documents_dir", "data/documents")

	viper.SetDefault("database.path", "data/inspector.db")
	viper.SetDefault("database.max_open_conns", 5)
	viper.SetDefault("database.max_idle_conns", 2)
	viper.SetDefault("database.conn_max_lifetime", time.Hour)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "console")
}

func bindEnvVars() {
	_ = viper.BindEnv("api.base_url", "INSPECTOR_API_BASE_URL")
	_ = viper.BindEnv("indicator.url", "INSPECTOR_INDICATOR_URL")
	_ = viper.BindEnv("database.path", "INSPECTOR_DB_PATH")
	_ = viper.BindEnv("logger.level", "INSPECTOR_LOG_LEVEL")
}

// Validate checks that the configuration is complete enough to start
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Indicator.URL == "" {
		return fmt.Errorf("indicator.url is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
