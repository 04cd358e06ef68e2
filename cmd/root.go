package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/kebairia/snapback/internal/config"
	"github.com/kebairia/snapback/internal/logger"
)

// DefaultConfigFile is used when --config is not given.
const DefaultConfigFile = "./config.yaml"

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string

	cfg     *config.Config
	log     logger.Logger
	syncLog func() error

	// rootCmd is the base command for snapback. Without a subcommand it
	// behaves like "run".
	rootCmd = &cobra.Command{
		Use:   "snapback",
		Short: "Periodic folder snapshots with a keep-newest retention policy",
		Long: `snapback archives a source folder into timestamped snapshots on a
fixed interval and prunes the backup folder down to the newest max_backups
snapshots on a second, independent interval.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		RunE:              runScheduler,
	}
)

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		if log != nil {
			log.Error("command failed", "error", err.Error())
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	}
	if syncLog != nil {
		_ = syncLog()
	}
	if err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and builds the process logger before any
// command runs.
func setup(cmd *cobra.Command, _ []string) error {
	path := ConfigFile
	if f := cmd.Flag("config"); f != nil && !f.Changed {
		// the default file is optional; env vars alone may be enough
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	c, err := config.Load(path)
	if err != nil {
		return err
	}

	l, sync, err := logger.New(logger.Options{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		File:   c.Log.File,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	cfg, log, syncLog = c, l, sync
	log.Debug("configuration loaded", "path", path, "source", cfg.SourceFolder, "backup_folder", cfg.BackupFolder)
	return nil
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", DefaultConfigFile, "path to YAML config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
}
