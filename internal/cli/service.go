package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"focus-blocks/internal/systemd"
)

func (a *app) newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the daemon as a systemd user service",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Install, enable and start the daemon service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				manager, err := systemd.NewManager()
				if err != nil {
					return err
				}
				binary, err := os.Executable()
				if err != nil {
					return err
				}
				configPath := a.v.ConfigFileUsed()
				if configPath != "" {
					if abs, err := filepath.Abs(configPath); err == nil {
						configPath = abs
					}
				}
				if err := manager.Install(binary, configPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", manager.UnitPath())
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Stop and remove the daemon service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				manager, err := systemd.NewManager()
				if err != nil {
					return err
				}
				if err := manager.Uninstall(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Service removed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "restart",
			Short: "Restart the daemon service, e.g. after editing the config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				manager, err := systemd.NewManager()
				if err != nil {
					return err
				}
				if err := manager.Restart(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Service restarted")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the daemon service is running",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				manager, err := systemd.NewManager()
				if err != nil {
					return err
				}
				status, err := manager.Status()
				if status != "" {
					fmt.Fprintln(cmd.OutOrStdout(), status)
				}
				return err
			},
		},
	)
	return cmd
}
