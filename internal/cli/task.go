package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/prodhub/internal/analytics"
	"github.com/sadopc/prodhub/internal/export"
	"github.com/sadopc/prodhub/internal/gateway"
	"github.com/sadopc/prodhub/internal/model"
)

func newTaskCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks", "t"},
		Short:   "Manage tasks",
	}
	cmd.AddCommand(
		newTaskAddCmd(g),
		newTaskEditCmd(g),
		newTaskDoneCmd(g),
		newTaskListCmd(g),
		newTaskDeleteCmd(g),
	)
	return cmd
}

func parsePriority(s string) (model.Priority, error) {
	if s == "" {
		return "", nil
	}
	return model.ParsePriority(s)
}

func newTaskAddCmd(g *globals) *cobra.Command {
	var projectID, due, priority string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  exactArgs(1, "title is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePriority(priority)
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(a *app) error {
				id, err := a.sess.Gateway().CreateTask(cmd.Context(), gateway.NewTask{
					ProjectID: projectID,
					Title:     args[0],
					DueDate:   due,
					Priority:  p,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render("created task"), Highlight.Render(id))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project id")
	cmd.Flags().StringVarP(&due, "due", "d", "", "Due date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (High|Medium|Low)")
	return cmd
}

func newTaskEditCmd(g *globals) *cobra.Command {
	var title, projectID, due, priority string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task's title, project, due date or priority",
		Args:  exactArgs(1, "task id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch gateway.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("project") {
				patch.ProjectID = &projectID
			}
			if flags.Changed("due") {
				patch.DueDate = &due
			}
			if flags.Changed("priority") {
				p, err := model.ParsePriority(priority)
				if err != nil {
					return err
				}
				patch.Priority = &p
			}
			return withApp(cmd, g, func(a *app) error {
				if err := a.sess.Gateway().UpdateTask(cmd.Context(), args[0], patch); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render("updated task"), Highlight.Render(args[0]))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Move to project id (empty for none)")
	cmd.Flags().StringVarP(&due, "due", "d", "", "Due date (empty to clear)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (High|Medium|Low)")
	return cmd
}

func newTaskDoneCmd(g *globals) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task completed",
		Args:  exactArgs(1, "task id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				if err := a.sess.Gateway().SetTaskCompleted(cmd.Context(), args[0], !undo); err != nil {
					return err
				}
				msg := "completed"
				if undo {
					msg = "reopened"
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render(msg), Highlight.Render(args[0]))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "Mark the task not completed")
	return cmd
}

func newTaskListCmd(g *globals) *cobra.Command {
	var projectID, filter, sortBy, format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := analytics.TaskFilter(strings.ToLower(filter))
			switch f {
			case analytics.FilterAll, analytics.FilterActive, analytics.FilterCompleted:
			default:
				return fmt.Errorf("invalid filter %q", filter)
			}
			by := analytics.SortKey(strings.ToLower(sortBy))
			switch by {
			case analytics.SortDueDate, analytics.SortPriority, analytics.SortProject:
			default:
				return fmt.Errorf("invalid sort key %q", sortBy)
			}

			return withApp(cmd, g, func(a *app) error {
				tasks := a.sess.Mirror().Tasks()
				if projectID != "" {
					tasks = a.sess.ProjectTasks(projectID)
				}
				projects := a.sess.Mirror().Projects()
				sorted := analytics.SortTasks(tasks, projects, f, by)
				byID := make(map[string]model.Project, len(projects))
				for _, p := range projects {
					byID[p.ID] = p
				}

				out := cmd.OutOrStdout()
				switch format {
				case "csv":
					return export.TasksCSV(out, sorted, byID)
				case "json":
					return export.TasksJSON(out, sorted, byID, a.now())
				case "text":
				default:
					return fmt.Errorf("invalid format %q", format)
				}

				var lines []string
				for _, t := range sorted {
					line := fmt.Sprintf("%s %s  %s", check(t.Completed), Heading.Render(t.Title),
						priorityStyle(string(t.Priority)).Render(string(t.Priority)))
					if t.DueDate != "" {
						line += Muted.Render("  due " + t.DueDate)
					}
					if p, ok := byID[t.ProjectID]; ok {
						line += Accent.Render("  " + p.Name)
					}
					lines = append(lines, line, Muted.Render("    "+t.ID))
				}
				fmt.Fprintln(out, section("Tasks", lines))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Only tasks of this project")
	cmd.Flags().StringVarP(&filter, "filter", "f", string(analytics.FilterAll), "Filter (all|active|completed)")
	cmd.Flags().StringVarP(&sortBy, "sort", "s", string(analytics.SortDueDate), "Sort by (due|priority|project)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|csv|json)")
	return cmd
}

func newTaskDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  exactArgs(1, "task id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				if err := a.sess.Gateway().DeleteTask(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render("deleted task"), Highlight.Render(args[0]))
				return nil
			})
		},
	}
}
