package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the configuration file.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// EnvPrefix is prepended to every environment override, e.g. SNAPBACK_MAX_BACKUPS.
const EnvPrefix = "SNAPBACK"

// Defaults applied before the file and environment are read.
const (
	DefaultBackupIntervalMinutes  = 1
	DefaultCleanupIntervalMinutes = 60
	DefaultMaxBackups             = 5
	DefaultArchiveFormat          = FormatZip
)

// Config represents the top-level configuration file.
type Config struct {
	SourceFolder           string        `mapstructure:"source_folder"            yaml:"source_folder"`
	BackupFolder           string        `mapstructure:"backup_folder"            yaml:"backup_folder"`
	BackupIntervalMinutes  int           `mapstructure:"backup_interval_minutes"  yaml:"backup_interval_minutes"`
	CleanupIntervalMinutes int           `mapstructure:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`
	MaxBackups             int           `mapstructure:"max_backups"              yaml:"max_backups"`
	ArchiveFormat          ArchiveFormat `mapstructure:"archive_format"           yaml:"archive_format"`
	BackupSchedule         string        `mapstructure:"backup_schedule"          yaml:"backup_schedule,omitempty"`
	BackupOnStart          bool          `mapstructure:"backup_on_start"          yaml:"backup_on_start"`
	Log                    LogConfig     `mapstructure:"log"                      yaml:"log"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file"   yaml:"file,omitempty"`
}

// BackupInterval returns the fixed delay between backup ticks.
func (c *Config) BackupInterval() time.Duration {
	return time.Duration(c.BackupIntervalMinutes) * time.Minute
}

// CleanupInterval returns the fixed delay between cleanup ticks.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source_folder", "")
	v.SetDefault("backup_folder", "")
	v.SetDefault("backup_interval_minutes", DefaultBackupIntervalMinutes)
	v.SetDefault("cleanup_interval_minutes", DefaultCleanupIntervalMinutes)
	v.SetDefault("max_backups", DefaultMaxBackups)
	v.SetDefault("archive_format", string(DefaultArchiveFormat))
	v.SetDefault("backup_schedule", "")
	v.SetDefault("backup_on_start", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
}

// Load reads the configuration from the given file using Viper, applies
// defaults and SNAPBACK_* environment overrides, and validates the result.
// An empty path skips the file and uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read config %s: %v", ErrLoadConfig, path, err)
		}
	}

	var c Config
	hooks := viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc())
	if err := v.UnmarshalExact(&c, hooks); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the fields the scheduler cannot run without.
// MaxBackups is not checked: the cleanup task reports a non-positive value
// on each tick and skips that cycle.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.SourceFolder) == "" {
		problems = append(problems, "source_folder is required")
	}
	if strings.TrimSpace(c.BackupFolder) == "" {
		problems = append(problems, "backup_folder is required")
	}
	if c.BackupIntervalMinutes <= 0 {
		problems = append(problems, fmt.Sprintf("backup_interval_minutes must be positive, got %d", c.BackupIntervalMinutes))
	}
	if c.CleanupIntervalMinutes <= 0 {
		problems = append(problems, fmt.Sprintf("cleanup_interval_minutes must be positive, got %d", c.CleanupIntervalMinutes))
	}
	if !c.ArchiveFormat.Valid() {
		problems = append(problems, fmt.Sprintf("archive_format %q is not supported", c.ArchiveFormat))
	}
	if c.BackupSchedule != "" {
		if _, err := cron.ParseStandard(c.BackupSchedule); err != nil {
			problems = append(problems, fmt.Sprintf("backup_schedule %q: %v", c.BackupSchedule, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidateConfig, strings.Join(problems, "; "))
	}
	return nil
}
