package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sadopc/prodhub/internal/export"
	"github.com/sadopc/prodhub/internal/model"
	"github.com/sadopc/prodhub/internal/schedule"
	"github.com/sadopc/prodhub/internal/session"
)

func newDashboardCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"status"},
		Short:   "Show overdue and upcoming tasks, projects and today's habits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				d := a.sess.Dashboard(a.now())
				out := cmd.OutOrStdout()

				fmt.Fprintln(out, section("Overdue", taskLines(d.Overdue, Bad)))
				fmt.Fprintln(out, section("Upcoming", taskLines(d.Upcoming, Highlight)))

				var projects []string
				tasks := a.sess.Mirror().Tasks()
				for _, p := range d.Projects {
					projects = append(projects, fmt.Sprintf("%s  %s", progressBar(progressOf(tasks, p), 20), Heading.Render(p.Name)))
				}
				fmt.Fprintln(out, section("Projects", projects))
				fmt.Fprintln(out, section(fmt.Sprintf("Habits  %d%% this week", d.WeeklyConsistency), habitLines(d.Habits)))
				return nil
			})
		},
	}
}

func newScheduleCmd(g *globals) *cobra.Command {
	var (
		sync   bool
		days   int
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show project and task deadlines merged with calendar events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				if sync {
					a.syncCalendar(cmd.Context())
				}
				now := a.now()
				events := a.sess.Schedule(now)
				if days > 0 {
					start := model.StartOfDay(now)
					// Overdue items stay visible whatever the window.
					var window []schedule.Event
					for _, e := range events {
						if e.Overdue {
							window = append(window, e)
						}
					}
					events = append(window, schedule.Between(events, start, start.AddDate(0, 0, days))...)
				}

				write := func(w io.Writer) error {
					return writeSchedule(w, format, events, a.loc, now)
				}
				if out != "" {
					if err := export.WriteFile(out, write); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), Good.Render("exported"), fmt.Sprintf("%d events to %s", len(events), out))
					return nil
				}
				return write(cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Fetch calendar events first")
	cmd.Flags().IntVar(&days, "days", 0, "Only the next N days (0 for everything)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|csv|json)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to a file instead of stdout")
	return cmd
}

func writeSchedule(w io.Writer, format string, events []schedule.Event, loc *time.Location, now time.Time) error {
	switch format {
	case "csv":
		return export.ScheduleCSV(w, events, loc)
	case "json":
		return export.ScheduleJSON(w, events, loc, now)
	case "text":
	default:
		return fmt.Errorf("invalid format %q", format)
	}

	var lines []string
	for _, e := range events {
		when := e.Date.In(loc).Format("Mon Jan 02 15:04")
		if e.AllDay || (e.Origin != schedule.OriginExternal && e.Date.Equal(model.StartOfDay(e.Date))) {
			when = e.Date.Format("Mon Jan 02") + "      "
		}
		style := Heading
		if e.Overdue {
			style = Bad
		}
		lines = append(lines, fmt.Sprintf("%s  %s  %s", Muted.Render(when), style.Render(e.Title), Accent.Render(string(e.Origin))))
	}
	_, err := fmt.Fprintln(w, section("Schedule", lines))
	return err
}

func newReviewCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Weekly review: completed and overdue tasks, habit consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				r := a.sess.WeeklyReview(a.now())
				out := cmd.OutOrStdout()

				fmt.Fprintln(out, Title.Render("Week since "+r.Since.Format("Mon Jan 02")))
				fmt.Fprintln(out, section(fmt.Sprintf("Completed (%d)", len(r.Completed)), taskLines(r.Completed, Good)))
				fmt.Fprintln(out, section(fmt.Sprintf("Still overdue (%d)", len(r.Overdue)), taskLines(r.Overdue, Bad)))

				var projects []string
				tasks := a.sess.Mirror().Tasks()
				for _, p := range r.Projects {
					projects = append(projects, fmt.Sprintf("%s  %s", progressBar(progressOf(tasks, p), 20), Heading.Render(p.Name)))
				}
				fmt.Fprintln(out, section("Projects", projects))
				fmt.Fprintln(out, section(fmt.Sprintf("Habits  %d%% consistency", r.WeeklyConsistency), habitLines(r.Habits)))
				return nil
			})
		},
	}
}

func taskLines(tasks []model.Task, style lipgloss.Style) []string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		line := style.Render(t.Title)
		if t.DueDate != "" {
			line += Muted.Render("  " + t.DueDate)
		}
		lines = append(lines, line)
	}
	return lines
}

func habitLines(habits []session.HabitStatus) []string {
	lines := make([]string, 0, len(habits))
	for _, h := range habits {
		lines = append(lines, fmt.Sprintf("%s %s  %s", check(h.DoneToday), h.Habit.Name,
			Warn.Render(fmt.Sprintf("%dd", h.Streak))))
	}
	return lines
}
