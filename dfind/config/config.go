package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/dupe-finder/dfind"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/options"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Scan   ScanConfig   `mapstructure:"scan"`
	Log    LogConfig    `mapstructure:"log"`
	Output OutputConfig `mapstructure:"output"`
}

// ScanConfig stores duplicate scan tuning.
type ScanConfig struct {
	Workers     int    `mapstructure:"workers"`
	HashWorkers int    `mapstructure:"hashWorkers"`
	BufferSize  int    `mapstructure:"bufferSize"`
	Algorithm   string `mapstructure:"algorithm"`
	IgnoreFile  string `mapstructure:"ignoreFile"`
}

// LogConfig stores logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// OutputConfig stores report and deletion output settings.
type OutputConfig struct {
	Format   string `mapstructure:"format"`
	TrashDir string `mapstructure:"trashDir"`
}

var AppConfig Config

// SetDefaults registers every default value with viper.
func SetDefaults() {
	defaults := options.DefaultScanOptions()

	viper.SetDefault("scan.workers", defaults.TraversalWorkers)
	viper.SetDefault("scan.hashWorkers", defaults.HashWorkers)
	viper.SetDefault("scan.bufferSize", defaults.BufferSize)
	viper.SetDefault("scan.algorithm", string(defaults.Algorithm))
	viper.SetDefault("scan.ignoreFile", defaults.IgnoreFile)
	viper.SetDefault("log.level", internal.DefaultLogLevel)
	viper.SetDefault("output.format", internal.DefaultOutputFormat)
	viper.SetDefault("output.trashDir", "")
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	SetDefaults()

	// A .env next to the working directory is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	viper.SetEnvPrefix(internal.DefaultEnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // scan.hashWorkers becomes DFIND_SCAN_HASHWORKERS
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configPath == "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}

// ToScanOptions converts the scan section into traversal and hashing options.
func (sc ScanConfig) ToScanOptions() options.ScanOptions {
	opts := options.DefaultScanOptions()
	if sc.Workers > 0 {
		opts.TraversalWorkers = sc.Workers
	}
	if sc.HashWorkers > 0 {
		opts.HashWorkers = sc.HashWorkers
	}
	if sc.BufferSize > 0 {
		opts.BufferSize = sc.BufferSize
	}
	if sc.Algorithm != "" {
		opts.Algorithm = options.HashAlgorithm(strings.ToLower(sc.Algorithm))
	}
	if sc.IgnoreFile != "" {
		opts.IgnoreFile = filepath.Base(sc.IgnoreFile)
	}
	return opts
}
