package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"focus-blocks/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Current().String())
			return nil
		},
	}
}
