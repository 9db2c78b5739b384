package services

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds tool configuration loaded via Viper.
type Config struct {
	CacheDir     string `mapstructure:"cache_dir"`
	CacheEnabled bool   `mapstructure:"cache_enabled"`
	OutputDir    string `mapstructure:"output_dir"`
	QueueDepth   int    `mapstructure:"queue_depth"`
}

// LoadConfig loads configuration using Viper. A missing config file is not
// an error; defaults and ADX_* environment variables apply.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("adexplorer-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.adexplorer")
	viper.AddConfigPath("/etc/adexplorer")

	viper.SetDefault("cache_dir", os.TempDir())
	viper.SetDefault("cache_enabled", true)
	viper.SetDefault("output_dir", ".")
	viper.SetDefault("queue_depth", 256)

	viper.SetEnvPrefix("ADX")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}
