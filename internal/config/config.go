package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	RawDir      string         `yaml:"raw_dir" mapstructure:"raw_dir"`
	OutDir      string         `yaml:"out_dir" mapstructure:"out_dir"`
	RegionsFile string         `yaml:"regions_file" mapstructure:"regions_file"`
	Source      SourceConfig   `yaml:"source" mapstructure:"source"`
	Download    DownloadConfig `yaml:"download" mapstructure:"download"`
	Convert     ConvertConfig  `yaml:"convert" mapstructure:"convert"`
	Journal     JournalConfig  `yaml:"journal" mapstructure:"journal"`
	Log         LogConfig      `yaml:"log" mapstructure:"log"`
}

// SourceConfig points at the remote tile archive.
type SourceConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DownloadConfig tunes the download stage.
type DownloadConfig struct {
	Concurrency      int           `yaml:"concurrency" mapstructure:"concurrency"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent        string        `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit        float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst        int           `yaml:"rate_burst" mapstructure:"rate_burst"`
	Verify           string        `yaml:"verify" mapstructure:"verify"`
	MaxAttempts      int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff   time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
}

// ConvertConfig tunes the conversion stage.
type ConvertConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	QueueSize   int `yaml:"queue_size" mapstructure:"queue_size"`
	BatchRows   int `yaml:"batch_rows" mapstructure:"batch_rows"`
}

// JournalConfig configures the optional run history database.
type JournalConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
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
	v.SetEnvPrefix("TERRACOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("raw_dir", "tif")
	v.SetDefault("out_dir", "parquet")
	v.SetDefault("regions_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("source.base_url", "https://opentopography.s3.sdsc.edu/raster/AW3D30/AW3D30_global")
	v.SetDefault("download.concurrency", 16)
	v.SetDefault("download.timeout", "10m")
	v.SetDefault("download.user_agent", "terracol/1.0")
	v.SetDefault("download.rate_limit", 20)
	v.SetDefault("download.rate_burst", 20)
	v.SetDefault("download.verify", "magic")
	v.SetDefault("download.max_attempts", 4)
	v.SetDefault("download.initial_backoff", "500ms")
	v.SetDefault("download.max_backoff", "30s")
	v.SetDefault("download.breaker_threshold", 8)
	v.SetDefault("convert.concurrency", 2)
	v.SetDefault("convert.queue_size", 4)
	v.SetDefault("convert.batch_rows", 65536)
	v.SetDefault("journal.path", "")

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

// Validate checks the configuration for values that would make a run
// misbehave in ways harder to diagnose than an upfront error.
func (c *Config) Validate() error {
	var problems []string

	if c.RawDir == "" {
		problems = append(problems, "raw_dir is required")
	}
	if c.OutDir == "" {
		problems = append(problems, "out_dir is required")
	}
	if c.Source.BaseURL == "" {
		problems = append(problems, "source.base_url is required")
	}
	if c.Download.Concurrency < 1 || c.Download.Concurrency > 128 {
		problems = append(problems, "download.concurrency must be between 1 and 128")
	}
	if c.Download.MaxAttempts < 1 {
		problems = append(problems, "download.max_attempts must be >= 1")
	}
	if c.Download.Verify != "none" && c.Download.Verify != "magic" {
		problems = append(problems, "download.verify must be none or magic")
	}
	if c.Convert.Concurrency < 1 || c.Convert.Concurrency > 32 {
		problems = append(problems, "convert.concurrency must be between 1 and 32")
	}
	if c.Convert.QueueSize < 1 {
		problems = append(problems, "convert.queue_size must be >= 1")
	}
	if c.Convert.BatchRows < 1 {
		problems = append(problems, "convert.batch_rows must be >= 1")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
