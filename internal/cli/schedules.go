package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"focus-blocks/internal/models"
)

var dayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

func (a *app) newSchedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Show or edit weekly blocking schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			schedules, err := c.Schedules(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range schedules {
				state := "enabled"
				if !s.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(out, "%s  %-20s %s %s-%s  %-10s %s\n", s.ID, s.Name, formatDays(s.Days), s.Start, s.End, s.List, state)
			}
			return nil
		},
	}
	cmd.AddCommand(
		a.newScheduleAddCmd(),
		a.editScheduleCmd("remove", "Delete a schedule", func(s []models.Schedule, i int) []models.Schedule {
			return append(s[:i], s[i+1:]...)
		}),
		a.editScheduleCmd("enable", "Enable a schedule", func(s []models.Schedule, i int) []models.Schedule {
			s[i].Enabled = true
			return s
		}),
		a.editScheduleCmd("disable", "Disable a schedule", func(s []models.Schedule, i int) []models.Schedule {
			s[i].Enabled = false
			return s
		}),
	)
	return cmd
}

func (a *app) newScheduleAddCmd() *cobra.Command {
	var (
		name, list, days, start, end string
		disabled                     bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a weekly schedule",
		Example: `  focusblocks schedules add --name "Work hours" --list work --days mon-fri --start 09:00 --end 17:00
  focusblocks schedules add --name Evenings --days 0,6 --start 20:00 --end 23:30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedDays, err := parseDays(days)
			if err != nil {
				return err
			}
			c, err := a.newClient()
			if err != nil {
				return err
			}
			schedules, err := c.Schedules(cmd.Context())
			if err != nil {
				return err
			}
			schedules = append(schedules, models.Schedule{
				Name:    name,
				List:    list,
				Days:    parsedDays,
				Start:   start,
				End:     end,
				Enabled: !disabled,
			})
			if err := c.UpdateSchedules(cmd.Context(), schedules); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %q added\n", name)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "schedule name")
	flags.StringVar(&list, "list", models.DefaultBlockListName, "block list to install")
	flags.StringVar(&days, "days", "mon-fri", "days as names or numbers (0=Sunday), e.g. mon,wed or 1-5")
	flags.StringVar(&start, "start", "09:00", "start time HH:MM")
	flags.StringVar(&end, "end", "17:00", "end time HH:MM")
	flags.BoolVar(&disabled, "disabled", false, "add the schedule disabled")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) editScheduleCmd(use, short string, edit func([]models.Schedule, int) []models.Schedule) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id-or-name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			schedules, err := c.Schedules(cmd.Context())
			if err != nil {
				return err
			}
			index := -1
			for i, s := range schedules {
				if s.ID == args[0] || s.Name == args[0] {
					index = i
					break
				}
			}
			if index < 0 {
				return fmt.Errorf("no schedule %q", args[0])
			}
			name := schedules[index].Name
			if err := c.UpdateSchedules(cmd.Context(), edit(schedules, index)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %q updated\n", name)
			return nil
		},
	}
}

// parseDays accepts comma separated day names or numbers, and ranges such
// as "mon-fri" or "1-5".
func parseDays(raw string) ([]int, error) {
	var out []int
	seen := make(map[int]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		from, to := part, part
		if i := strings.Index(part, "-"); i > 0 {
			from, to = part[:i], part[i+1:]
		}
		lo, err := parseDay(from)
		if err != nil {
			return nil, err
		}
		hi, err := parseDay(to)
		if err != nil {
			return nil, err
		}
		if hi < lo {
			return nil, fmt.Errorf("day range %q runs backwards", part)
		}
		for day := lo; day <= hi; day++ {
			if _, dup := seen[day]; !dup {
				seen[day] = struct{}{}
				out = append(out, day)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one day is required")
	}
	return out, nil
}

func parseDay(raw string) (int, error) {
	if day, ok := dayNames[raw[:min(3, len(raw))]]; ok {
		return day, nil
	}
	day, err := strconv.Atoi(raw)
	if err != nil || day < 0 || day > 6 {
		return 0, fmt.Errorf("unknown day %q", raw)
	}
	return day, nil
}

func formatDays(days []int) string {
	names := [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	parts := make([]string, 0, len(days))
	for _, day := range days {
		if day >= 0 && day < len(names) {
			parts = append(parts, names[day])
		}
	}
	return strings.Join(parts, ",")
}
