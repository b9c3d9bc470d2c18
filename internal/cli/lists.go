package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"focus-blocks/internal/domains"
	"focus-blocks/internal/models"
)

func (a *app) newBypassCmd() *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "bypass <domain-or-url>",
		Short: "Temporarily unblock a site during a deep session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			domain, until, err := c.GrantBypass(cmd.Context(), args[0], minutes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s unblocked until %s\n", domain, until.Local().Format("15:04"))
			return nil
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", models.DefaultBypassMinutes, "bypass length in minutes")
	return cmd
}

func (a *app) newListsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Show or edit block lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			lists, err := c.BlockLists(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(lists))
			for name := range lists {
				names = append(names, name)
			}
			sort.Strings(names)
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(out, "%s:\n", name)
				for _, pattern := range lists[name] {
					fmt.Fprintf(out, "  %s\n", pattern)
				}
			}
			return nil
		},
	}
	cmd.AddCommand(
		a.editListCmd("add", "Add patterns to a block list", addPatterns),
		a.editListCmd("remove", "Remove patterns from a block list", removePatterns),
	)
	return cmd
}

func (a *app) editListCmd(use, short string, edit func(existing, patterns []string) []string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <list> <pattern>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			lists, err := c.BlockLists(cmd.Context())
			if err != nil {
				return err
			}
			name := args[0]
			lists[name] = edit(lists[name], args[1:])
			if err := c.UpdateBlockLists(cmd.Context(), lists); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now holds %d patterns\n", name, len(lists[name]))
			return nil
		},
	}
}

func addPatterns(existing, patterns []string) []string {
	out := append([]string{}, existing...)
	for _, pattern := range patterns {
		out = append(out, domains.Pattern(pattern))
	}
	return out
}

func removePatterns(existing, patterns []string) []string {
	drop := make(map[string]struct{}, len(patterns)*2)
	for _, pattern := range patterns {
		drop[pattern] = struct{}{}
		drop[domains.Pattern(pattern)] = struct{}{}
	}
	out := make([]string, 0, len(existing))
	for _, pattern := range existing {
		if _, ok := drop[pattern]; !ok {
			out = append(out, pattern)
		}
	}
	return out
}

func (a *app) newRulesCmd() *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List installed blocking rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			installed, err := c.Rules(cmd.Context(), namespace)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rule := range installed {
				fmt.Fprintf(out, "%8d  %s\n", rule.ID, rule.Pattern)
			}
			fmt.Fprintf(out, "%d rules\n", len(installed))
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "only rules of this namespace (session, schedule)")
	return cmd
}

func (a *app) newAlarmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alarms",
		Short: "List pending timers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			alarms, err := c.Alarms(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, alarm := range alarms {
				fmt.Fprintf(out, "%-50s %s\n", alarm.Name, formatTime(alarm.When))
			}
			return nil
		},
	}
}

func parseMinutes(raw string) (int, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("minutes must be a positive number, got %q", raw)
	}
	return minutes, nil
}
