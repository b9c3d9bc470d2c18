package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"focus-blocks/internal/client"
	"focus-blocks/internal/models"
	"focus-blocks/internal/popup"
)

func (a *app) newStartCmd() *cobra.Command {
	var list string
	cmd := &cobra.Command{
		Use:   "start <minutes>",
		Short: "Start a focus session",
		Long: `Start a focus session of the given length. Sessions of 90 minutes or
more run in deep mode and block the list's sites outright.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := parseMinutes(args[0])
			if err != nil {
				return err
			}
			c, err := a.newClient()
			if err != nil {
				return err
			}
			until, mode, err := c.StartSession(cmd.Context(), minutes, list)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s focus started, ends at %s\n", modeLabel(mode), until.Local().Format("15:04"))
			return nil
		},
	}
	cmd.Flags().StringVar(&list, "list", "", "block list to use (default "+models.DefaultBlockListName+")")
	return cmd
}

func (a *app) newEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "End the current focus session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			if err := c.EndSession(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Focus session ended")
			return nil
		},
	}
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and schedule state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			status, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func printStatus(w io.Writer, status client.Status) {
	if status.Active {
		fmt.Fprintf(w, "%s focus on %q, %s remaining\n",
			modeLabel(status.Mode), status.BlockList, popup.FormatCountdown(status.Remaining))
	} else {
		fmt.Fprintln(w, "No focus session")
	}
	for _, sched := range status.Schedules {
		state := "idle"
		switch {
		case !sched.Enabled:
			state = "disabled"
		case sched.Active:
			state = "active"
		}
		fmt.Fprintf(w, "  %-20s %s-%s  %-10s %s\n", sched.Name, sched.Start, sched.End, sched.List, state)
	}
}

func (a *app) newPopupCmd() *cobra.Command {
	var list string
	cmd := &cobra.Command{
		Use:   "popup",
		Short: "Open the interactive session panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			opts := popup.Options{BlockList: list}
			// Unreachable daemon: fall back to default durations, the panel
			// reports the connection error itself.
			if settings, err := c.Settings(cmd.Context()); err == nil {
				opts.QuickMinutes = settings.QuickFocusDuration
				opts.DeepMinutes = settings.DeepFocusDuration
			}
			return popup.Run(c, opts)
		},
	}
	cmd.Flags().StringVar(&list, "list", "", "block list for sessions started from the panel")
	return cmd
}

func modeLabel(mode models.Mode) string {
	if mode == models.ModeDeep {
		return "Deep"
	}
	return "Quick"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Mon 15:04")
}
