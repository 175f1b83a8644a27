// Package config loads the fanout command configuration from a file, FANOUT_ environment variables and flags,
// in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fogfactory/fanout/internal/logging"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "FANOUT"

// Modes of execution of the pool.
const (
	ModeGoroutine = "goroutine"
	ModeProcess   = "process"
)

// Config is the fanout command configuration.
type Config struct {
	Workers  int            `mapstructure:"workers" validate:"min=1"`
	Capacity int            `mapstructure:"capacity" validate:"min=0"`
	Mode     string         `mapstructure:"mode" validate:"oneof=goroutine process"`
	Pattern  string         `mapstructure:"pattern" validate:"required"`
	Glob     string         `mapstructure:"glob"`
	LockFile string         `mapstructure:"lock_file" validate:"required_if=Mode process"`
	Log      logging.Config `mapstructure:"log"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"workers":    "workers",
	"capacity":   "capacity",
	"mode":       "mode",
	"glob":       "glob",
	"lock-file":  "lock_file",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func defaults(v *viper.Viper) {
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("capacity", 0)
	v.SetDefault("mode", ModeGoroutine)
	v.SetDefault("pattern", "")
	v.SetDefault("glob", "")
	v.SetDefault("lock_file", filepath.Join(os.TempDir(), "fanout.lock"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatConsole)
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.no_color", false)
}

// Load reads configFile when not empty, then environment variables, then the flags of flags which were set, then
// the values of set, keyed like the configuration file.
func Load(configFile string, flags *pflag.FlagSet, set map[string]any) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	for key, value := range set {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Log.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WorkerEnv returns the environment worker processes need to rebuild their stages.
func (c *Config) WorkerEnv() []string {
	return []string{
		EnvPrefix + "_PATTERN=" + c.Pattern,
		EnvPrefix + "_LOCK_FILE=" + c.LockFile,
		EnvPrefix + "_LOG_LEVEL=" + c.Log.Level,
		EnvPrefix + "_LOG_FORMAT=" + c.Log.Format,
	}
}
