package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func (a *app) newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore block lists, schedules and settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "export [file]",
			Short: "Write a backup to file, or stdout when omitted",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.newClient()
				if err != nil {
					return err
				}
				snapshot, err := c.ExportBackup(cmd.Context())
				if err != nil {
					return err
				}
				if len(args) == 0 {
					_, err := cmd.OutOrStdout().Write(snapshot)
					return err
				}
				if err := os.WriteFile(args[0], snapshot, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Replace lists, schedules and settings from a backup (- reads stdin)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var (
					snapshot []byte
					err      error
				)
				if args[0] == "-" {
					snapshot, err = io.ReadAll(cmd.InOrStdin())
				} else {
					snapshot, err = os.ReadFile(args[0])
				}
				if err != nil {
					return err
				}
				c, err := a.newClient()
				if err != nil {
					return err
				}
				warnings, err := c.ImportBackup(cmd.Context(), snapshot)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, warning := range warnings {
					fmt.Fprintf(out, "warning: %s\n", warning)
				}
				fmt.Fprintln(out, "Backup restored")
				return nil
			},
		},
	)
	return cmd
}
