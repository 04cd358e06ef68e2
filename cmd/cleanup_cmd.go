package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/kebairia/snapback/internal/operations"
)

var cleanupDryRun bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Apply the retention policy once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := operations.NewCleanup(cfg,
			operations.WithLogger(log),
			operations.WithStatusWriter(cmd.OutOrStdout()),
		)
		if !cleanupDryRun {
			_, err := c.Run(cmd.Context())
			return cleanupError(err)
		}

		d, err := c.Preview(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range d.Delete {
			fmt.Fprintf(out, "would delete %s (%s)\n", s.Path, s.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		for _, s := range d.Keep {
			fmt.Fprintf(out, "keep %s (%s)\n", s.Path, s.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(out, "%d to delete, %d to keep\n", len(d.Delete), len(d.Keep))
		return nil
	},
}

// cleanupError tells partial failures apart: some snapshots could not be
// removed, but the rest of the cycle went through.
func cleanupError(err error) error {
	if operations.IsDeleteError(err) {
		return fmt.Errorf("cleanup incomplete, %d snapshot(s) could not be deleted: %w",
			len(multierr.Errors(err)), err)
	}
	return err
}

func init() {
	cleanupCmd.Flags().
		BoolVar(&cleanupDryRun, "dry-run", false, "print what would be deleted without deleting")
}
