package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/coffersTech/logwindow/internal/ring"
)

const (
	// EnvPrefix prefixes every environment override, e.g. LOGWINDOW_BUFFER_SIZE.
	EnvPrefix = "LOGWINDOW"

	KeyBufferSize    = "buffer.size"
	KeyHTTPAddr      = "http.addr"
	KeyHTTPTokenHash = "http.token_hash"
	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
	KeyCaptureLevel  = "capture.level"
	KeyHost          = "host"
	KeyStatsInterval = "stats.interval"

	// KeyClientToken is read by the query command only.
	KeyClientToken = "client.token"
)

// Config holds all logwindow configuration.
type Config struct {
	Buffer  BufferConfig  `mapstructure:"buffer" yaml:"buffer"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Stats   StatsConfig   `mapstructure:"stats" yaml:"stats"`
	Host    string        `mapstructure:"host" yaml:"host,omitempty"` // overrides host detection
}

// BufferConfig sizes the event window.
type BufferConfig struct {
	Size int `mapstructure:"size" yaml:"size"`
}

// HTTPConfig configures the management API.
type HTTPConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	TokenHash string `mapstructure:"token_hash" yaml:"token_hash,omitempty"` // bcrypt hash; empty disables auth
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "json" or "console"
}

// CaptureConfig sets the minimum level captured into the window.
type CaptureConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// StatsConfig configures ingestion rate sampling.
type StatsConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SetDefaults registers defaults for every key so environment overrides
// are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBufferSize, 1000)
	v.SetDefault(KeyHTTPAddr, ":8088")
	v.SetDefault(KeyHTTPTokenHash, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyCaptureLevel, "debug")
	v.SetDefault(KeyHost, "")
	v.SetDefault(KeyStatsInterval, time.Second)
}

// NewViper returns a viper instance with defaults and environment
// overrides. When cfgFile is empty, $HOME/.logwindow/config.yaml and
// ./logwindow.yaml are searched.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigName("logwindow")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".logwindow"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that must prevent startup.
func (c Config) Validate() error {
	if c.Buffer.Size <= 0 {
		return fmt.Errorf("%w: %s must be a positive integer, got %d", ring.ErrInvalidConfiguration, KeyBufferSize, c.Buffer.Size)
	}
	if c.Stats.Interval <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %s", ring.ErrInvalidConfiguration, KeyStatsInterval, c.Stats.Interval)
	}
	return nil
}
