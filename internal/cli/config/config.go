// --- START OF FINAL REVISED FILE internal/cli/config/config.go ---
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stackvity/textstore/pkg/textstore"
	"github.com/stackvity/textstore/pkg/textstore/encoding"
	"github.com/stackvity/textstore/pkg/textstore/plugin"
)

const (
	EnvPrefix         = "TEXTSTORE"
	DefaultConfigName = "textstore"

	DefaultPluginTimeout = "30s"
)

// flagKeys maps configuration keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"codepage":       "codepage",
	"detectEncoding": "detect",
	"tempDir":        "temp-dir",
	"tempPrefix":     "temp-prefix",
	"writeBOM":       "bom",
	"overwrite":      "overwrite",
	"maxBufferMB":    "max-buffer-mb",
	"pluginTimeout":  "plugin-timeout",
	"verbose":        "verbose",
	"force":          "force",
}

// Config is the merged CLI configuration.
type Config struct {
	Codepage       int                            `mapstructure:"codepage"`
	DetectEncoding bool                           `mapstructure:"detectEncoding"`
	TempDir        string                         `mapstructure:"tempDir"`
	TempPrefix     string                         `mapstructure:"tempPrefix"`
	WriteBOM       bool                           `mapstructure:"writeBOM"`
	Overwrite      bool                           `mapstructure:"overwrite"`
	MaxBufferMB    int64                          `mapstructure:"maxBufferMB"`
	PluginTimeout  string                         `mapstructure:"pluginTimeout"`
	Plugins        map[string]plugin.PluginConfig `mapstructure:"plugins"`
	Verbose        bool                           `mapstructure:"verbose"`
	Force          bool                           `mapstructure:"force"`

	// Derived values, not read from configuration sources.
	ConfigFilePath string        `mapstructure:"-"`
	ProfileName    string        `mapstructure:"-"`
	Timeout        time.Duration `mapstructure:"-"`
	Logger         slog.Handler  `mapstructure:"-"`
}

// LoadAndValidate loads configuration from defaults, the config file, the
// selected profile, TEXTSTORE_* environment variables and flags (in rising
// priority), validates it and sets up the logger.
func LoadAndValidate(cfgFile, profileName string, flags *pflag.FlagSet) (Config, *slog.Logger, error) {
	var cfg Config
	v := viper.New()

	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	// --- Load Config File ---
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
			v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
		} else {
			tempLogger.Debug("No home directory, searching the working directory only", slog.Any("error", err))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags.")
		} else {
			used := cfgFile
			if used == "" {
				used = fmt.Sprintf("searched locations for %s.yaml", DefaultConfigName)
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.Any("error", err))
			return cfg, tempLogger, fmt.Errorf("error reading config file '%s': %w", used, err)
		}
	} else {
		cfg.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", cfg.ConfigFilePath))
	}

	// --- Apply Profile ---
	cfg.ProfileName = profileName
	if profileName != "" {
		profileKey := "profiles." + profileName
		profile := v.Sub(profileKey)
		if profile == nil {
			used := v.ConfigFileUsed()
			if used == "" {
				used = "(no config file found)"
			}
			err := fmt.Errorf("%w: profile '%s' not found in config file '%s'", textstore.ErrConfigValidation, profileName, used)
			tempLogger.Error(err.Error())
			return cfg, tempLogger, err
		}
		if err := v.MergeConfigMap(profile.AllSettings()); err != nil {
			return cfg, tempLogger, fmt.Errorf("error merging profile '%s': %w", profileName, err)
		}
		tempLogger.Debug("Applied configuration profile", slog.String("profile", profileName))
	}

	// --- Environment and Flags ---
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return cfg, tempLogger, fmt.Errorf("error binding flag '--%s': %w", name, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return cfg, tempLogger, fmt.Errorf("%w: error unmarshalling configuration: %w", textstore.ErrConfigValidation, err)
	}

	// --- Setup Final Logger ---
	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}
	cfg.Logger = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(cfg.Logger)

	if err := validateAndDerive(&cfg); err != nil {
		logger.Error(err.Error())
		return cfg, logger, err
	}

	logger.Debug("Final configuration validated",
		slog.Int("codepage", cfg.Codepage),
		slog.Bool("detectEncoding", cfg.DetectEncoding),
		slog.String("tempDir", cfg.TempDir),
		slog.Int64("maxBufferMB", cfg.MaxBufferMB),
		slog.Duration("pluginTimeout", cfg.Timeout),
		slog.Int("plugins", len(cfg.Plugins)),
	)
	return cfg, logger, nil
}

// setDefaults establishes the default values for configuration options in Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("codepage", int(encoding.DefaultCodepage))
	v.SetDefault("detectEncoding", true)
	v.SetDefault("tempDir", "")
	v.SetDefault("tempPrefix", textstore.DefaultTempPrefix)
	v.SetDefault("writeBOM", true)
	v.SetDefault("overwrite", false)
	v.SetDefault("maxBufferMB", 0)
	v.SetDefault("pluginTimeout", DefaultPluginTimeout)
	v.SetDefault("plugins", map[string]interface{}{})
	v.SetDefault("verbose", false)
	v.SetDefault("force", false)
}

func validateAndDerive(cfg *Config) error {
	if !encoding.IsSupported(encoding.Codepage(cfg.Codepage)) {
		return fmt.Errorf("%w: codepage %d is not a supported narrow codepage", textstore.ErrConfigValidation, cfg.Codepage)
	}
	if cfg.MaxBufferMB < 0 {
		return fmt.Errorf("%w: maxBufferMB cannot be negative (%d)", textstore.ErrConfigValidation, cfg.MaxBufferMB)
	}
	if cfg.TempDir != "" {
		abs, err := filepath.Abs(cfg.TempDir)
		if err != nil {
			return fmt.Errorf("%w: cannot resolve tempDir '%s': %w", textstore.ErrConfigValidation, cfg.TempDir, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("%w: tempDir '%s' does not exist or cannot be accessed: %w", textstore.ErrConfigValidation, abs, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: tempDir '%s' is not a directory", textstore.ErrConfigValidation, abs)
		}
		cfg.TempDir = abs
	}
	if strings.ContainsAny(cfg.TempPrefix, `/\`) {
		return fmt.Errorf("%w: tempPrefix '%s' cannot contain path separators", textstore.ErrConfigValidation, cfg.TempPrefix)
	}

	timeout, err := time.ParseDuration(cfg.PluginTimeout)
	if err != nil {
		return fmt.Errorf("%w: invalid pluginTimeout '%s': %w", textstore.ErrConfigValidation, cfg.PluginTimeout, err)
	}
	if timeout < 0 {
		return fmt.Errorf("%w: pluginTimeout cannot be negative ('%s')", textstore.ErrConfigValidation, cfg.PluginTimeout)
	}
	cfg.Timeout = timeout

	for name, p := range cfg.Plugins {
		if p.Name == "" {
			p.Name = name
		}
		p = p.Normalized()
		p.Timeout = timeout
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %w", textstore.ErrConfigValidation, err)
		}
		cfg.Plugins[name] = p
	}
	return nil
}

// HandleOptions returns the handle options described by cfg.
func (c Config) HandleOptions() textstore.Options {
	return textstore.Options{
		Codepage:       encoding.Codepage(c.Codepage),
		TempDir:        c.TempDir,
		TempPrefix:     c.TempPrefix,
		Overwrite:      c.Overwrite,
		MaxBufferBytes: c.MaxBufferMB * 1024 * 1024,
		Logger:         c.Logger,
	}
}

// Plugin returns the configured plugin called name. Configuration keys are
// case-insensitive, so is the lookup.
func (c Config) Plugin(name string) (plugin.PluginConfig, error) {
	if p, ok := c.Plugins[name]; ok {
		return p, nil
	}
	for key, p := range c.Plugins {
		if strings.EqualFold(key, name) {
			return p, nil
		}
	}
	return plugin.PluginConfig{}, fmt.Errorf("%w: plugin '%s' is not configured (known: %s)", textstore.ErrConfigValidation, name, strings.Join(c.PluginNames(), ", "))
}

// PluginNames returns the configured plugin names in sorted order.
func (c Config) PluginNames() []string {
	names := make([]string, 0, len(c.Plugins))
	for name := range c.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --- END OF FINAL REVISED FILE internal/cli/config/config.go ---
