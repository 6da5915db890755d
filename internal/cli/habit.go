package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/prodhub/internal/analytics"
	"github.com/sadopc/prodhub/internal/model"
)

func newHabitCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "habit",
		Aliases: []string{"habits", "h"},
		Short:   "Track daily habits",
	}
	cmd.AddCommand(
		newHabitAddCmd(g),
		newHabitCheckCmd(g),
		newHabitListCmd(g),
		newHabitRenameCmd(g),
		newHabitDeleteCmd(g),
	)
	return cmd
}

func newHabitAddCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a habit",
		Args:  exactArgs(1, "name is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				id, err := a.sess.Gateway().CreateHabit(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render("created habit"), Highlight.Render(id))
				return nil
			})
		},
	}
}

func newHabitCheckCmd(g *globals) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "check <id>",
		Short: "Toggle a habit for today or --date",
		Args:  exactArgs(1, "habit id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				day := model.DayKeyOf(a.now())
				if date != "" {
					d, err := model.ParseDayKey(date)
					if err != nil {
						return err
					}
					day = d
				}
				done := !analytics.CompletedOn(a.sess.Mirror().Entries(), args[0], day)
				if err := a.sess.ToggleHabit(cmd.Context(), args[0], day); err != nil {
					return err
				}
				state := "unchecked"
				if done {
					state = "checked"
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render(state), Highlight.Render(args[0]), Muted.Render(day.String()))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to toggle (YYYY-MM-DD)")
	return cmd
}

func newHabitListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List habits with streaks and this month's check-ins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				now := a.now()
				entries := a.sess.Mirror().Entries()
				var lines []string
				for _, h := range a.sess.HabitReport(now) {
					days := analytics.MonthDays(entries, h.Habit.ID, now)
					strs := make([]string, len(days))
					for i, d := range days {
						strs[i] = strconv.Itoa(d)
					}
					lines = append(lines,
						fmt.Sprintf("%s %s  %s", check(h.DoneToday), Heading.Render(h.Habit.Name),
							Warn.Render(fmt.Sprintf("%d day streak", h.Streak))),
						Muted.Render(fmt.Sprintf("    %s  %s: %s", h.Habit.ID, now.Format("Jan"), strings.Join(strs, " "))))
				}
				fmt.Fprintln(cmd.OutOrStdout(), section("Habits", lines))
				return nil
			})
		},
	}
}

func newHabitRenameCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a habit",
		Args:  exactArgs(2, "habit id and new name are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				if err := a.sess.Gateway().RenameHabit(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render("renamed"), Highlight.Render(args[0]))
				return nil
			})
		},
	}
}

func newHabitDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a habit and its history",
		Args:  exactArgs(1, "habit id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				if err := a.sess.Gateway().DeleteHabit(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render("deleted habit"), Highlight.Render(args[0]))
				return nil
			})
		},
	}
}
