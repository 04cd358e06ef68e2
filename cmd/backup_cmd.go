package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kebairia/snapback/internal/operations"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create one snapshot of the source folder and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := operations.NewBackup(cfg,
			operations.WithLogger(log),
			operations.WithStatusWriter(cmd.OutOrStdout()),
		)
		if err != nil {
			return err
		}
		_, err = b.Run(cmd.Context())
		return err
	},
}
