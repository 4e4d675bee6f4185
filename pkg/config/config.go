// Package config loads skillcortex configuration from config files,
// environment variables, and flags via viper.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the resolved application configuration.
type Config struct {
	// Roots is the ordered list of skill root directories. Earlier
	// roots win duplicate-id resolution.
	Roots []string `mapstructure:"roots"`
	// CachePath locates the persisted index cache.
	CachePath string `mapstructure:"cache_path"`
	// CacheBackend selects the cache store: "json" or "sqlite".
	CacheBackend string `mapstructure:"cache_backend"`
	// TagsPath locates the allowed-tags file.
	TagsPath string `mapstructure:"tags_path"`
	// Ignore holds doublestar globs of directories to skip when scanning.
	Ignore []string `mapstructure:"ignore"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	HTTP    HTTPConfig    `mapstructure:"http"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// HTTPConfig configures the read-only HTTP API.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	SamplerType  string  `mapstructure:"sampler_type"`
	SamplerRatio float64 `mapstructure:"sampler_ratio"`
}

// Init wires viper defaults, environment variables, and the optional
// config file. Called once from the root command.
func Init() {
	viper.SetEnvPrefix("SKILLCORTEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillcortex")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	viper.SetDefault("roots", []string{
		filepath.Join(home, ".claude", "skills"),
		filepath.Join(".", ".skills"),
	})
	viper.SetDefault("cache_path", filepath.Join(".", ".skillcortex", "index.json"))
	viper.SetDefault("cache_backend", "json")
	viper.SetDefault("tags_path", filepath.Join(".", "tags.yaml"))
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "fmt")
	viper.SetDefault("http.addr", "127.0.0.1:8317")
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.sampler_type", "always")
	viper.SetDefault("tracing.sampler_ratio", 0.1)
}

// Load decodes the current viper state into a Config. Viper's default
// decode hooks already split comma-separated strings, so
// SKILLCORTEX_ROOTS=a,b works for list fields.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	for i, root := range cfg.Roots {
		cfg.Roots[i] = expandHome(strings.TrimSpace(root))
	}
	cfg.CachePath = expandHome(cfg.CachePath)
	cfg.TagsPath = expandHome(cfg.TagsPath)
	return &cfg, nil
}

// Merge applies non-zero override values (typically from CLI flags)
// on top of the config.
func (c *Config) Merge(overrides map[string]interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create override decoder")
	}
	return errors.Wrap(decoder.Decode(overrides), "failed to apply overrides")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
