// Package config loads navstack runtime configuration.
//
// Values come from, in increasing priority: built-in defaults, a
// .navstack.yaml file (current directory, then the home directory, or an
// explicit --config path), NAVSTACK_* environment variables, and flags bound
// with BindFlags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/navstack/internal/engine"
)

// Config holds runtime configuration for navstack commands.
type Config struct {
	// MaxRedirects bounds redirect hops per navigation request.
	MaxRedirects int `mapstructure:"max_redirects"`

	// Journal is the SQLite journal path. Empty disables journaling.
	Journal string `mapstructure:"journal"`

	// Catalog is the default catalog directory for commands that take one.
	Catalog string `mapstructure:"catalog"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// Key names, shared by the config file, environment and flag bindings.
const (
	KeyMaxRedirects = "max_redirects"
	KeyJournal      = "journal"
	KeyCatalog      = "catalog"
	KeyLogLevel     = "log_level"
)

var validLevels = []string{"debug", "info", "warn", "error"}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		MaxRedirects: engine.DefaultMaxRedirects,
		LogLevel:     "info",
	}
}

// New creates a viper instance with defaults and environment lookup
// installed, and reads the config file if one exists. An explicit path
// must exist; the implicit .navstack.yaml is optional.
func New(path string) (*viper.Viper, error) {
	v := viper.New()

	d := Default()
	v.SetDefault(KeyMaxRedirects, d.MaxRedirects)
	v.SetDefault(KeyJournal, d.Journal)
	v.SetDefault(KeyCatalog, d.Catalog)
	v.SetDefault(KeyLogLevel, d.LogLevel)

	v.SetEnvPrefix("NAVSTACK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName(".navstack")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// BindFlags binds flags to config keys. Flag names use dashes
// (--max-redirects); unknown flag names are skipped.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range []string{KeyMaxRedirects, KeyJournal, KeyCatalog, KeyLogLevel} {
		f := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
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

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.MaxRedirects < 0 {
		return fmt.Errorf("max_redirects must be non-negative, got %d", c.MaxRedirects)
	}
	level := strings.ToLower(c.LogLevel)
	for _, l := range validLevels {
		if l == level {
			return nil
		}
	}
	return fmt.Errorf("log_level %q must be one of %v", c.LogLevel, validLevels)
}
