package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Options are the runtime knobs for a run, resolved from (highest precedence
// first) CBTLAB_ environment overrides, an optional cbtlab.yaml config file,
// and built-in defaults. Model rosters and task sets stay in their own
// declarative files; Options only says where to find them and how to run.
type Options struct {
	ConfigDir string `mapstructure:"config_dir"`
	OutputDir string `mapstructure:"output_dir"`

	BaseURL            string `mapstructure:"base_url"`
	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds"`
	RetryAttempts      int    `mapstructure:"retry_attempts"`
	RetryDelaySeconds  int    `mapstructure:"retry_delay_seconds"`

	Rounds  int `mapstructure:"rounds"`
	Workers int `mapstructure:"workers"`

	LogLevel   string `mapstructure:"log_level"`
	LogConsole bool   `mapstructure:"log_console"`

	Tracing TracingOptions `mapstructure:"tracing"`
	Server  ServerOptions  `mapstructure:"server"`
}

// TracingOptions selects the optional trace exporter for a run.
type TracingOptions struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"` // otlp, zipkin, jaeger
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// ServerOptions configures the read-only results API.
type ServerOptions struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	EnableCORS bool   `mapstructure:"enable_cors"`
	CacheSize  int    `mapstructure:"cache_size"`
}

// HTTPTimeout returns the per-call network timeout.
func (o *Options) HTTPTimeout() time.Duration {
	return time.Duration(o.HTTPTimeoutSeconds) * time.Second
}

// RetryDelay returns the fixed inter-attempt delay for completion calls.
func (o *Options) RetryDelay() time.Duration {
	return time.Duration(o.RetryDelaySeconds) * time.Second
}

// LoadOptions resolves runtime options. When configFile is empty, cbtlab.yaml
// is searched in the working directory and ./configs; a missing file leaves
// the defaults in place.
func LoadOptions(configFile string) (*Options, error) {
	v := viper.New()

	v.SetDefault("config_dir", "configs")
	v.SetDefault("output_dir", "output")
	v.SetDefault("base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("http_timeout_seconds", 60)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_delay_seconds", 2)
	v.SetDefault("rounds", 5)
	v.SetDefault("workers", 32)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_console", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "otlp")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.cache_size", 16)

	v.SetEnvPrefix("CBTLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("cbtlab")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if opts.Workers <= 0 {
		opts.Workers = 32
	}
	if opts.Rounds <= 0 {
		opts.Rounds = 5
	}
	return &opts, nil
}
