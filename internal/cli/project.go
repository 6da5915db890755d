package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sadopc/prodhub/internal/analytics"
	"github.com/sadopc/prodhub/internal/gateway"
	"github.com/sadopc/prodhub/internal/model"
)

func exactArgs(n int, msg string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errors.New(msg)
		}
		return nil
	}
}

// progressOf derives progress from the tasks instead of the stored value,
// which may lag behind the latest write.
func progressOf(tasks []model.Task, p model.Project) int {
	return analytics.Progress(tasks, p.ID)
}

func newProjectCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects", "p"},
		Short:   "Manage projects",
	}
	cmd.AddCommand(
		newProjectAddCmd(g),
		newProjectListCmd(g),
		newProjectRenameCmd(g),
		newProjectStatusCmd(g),
		newProjectDeleteCmd(g),
	)
	return cmd
}

func newProjectAddCmd(g *globals) *cobra.Command {
	var category, deadline string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  exactArgs(1, "name is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := model.ParseCategory(category)
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(a *app) error {
				id, err := a.sess.Gateway().CreateProject(cmd.Context(), gateway.NewProject{
					Name:     args[0],
					Category: c,
					Deadline: deadline,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render("created project"), Highlight.Render(id))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", string(model.CategoryPersonal), "Category (Course|Conference|Seminar|Bootcamp|Personal)")
	cmd.Flags().StringVarP(&deadline, "deadline", "d", "", "Deadline (YYYY-MM-DD or RFC 3339)")
	return cmd
}

func newProjectListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects with their progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				tasks := a.sess.Mirror().Tasks()
				var lines []string
				for _, p := range a.sess.Mirror().Projects() {
					line := fmt.Sprintf("%s  %s  %s  %s",
						progressBar(progressOf(tasks, p), 20),
						Heading.Render(p.Name),
						Accent.Render(string(p.Category)),
						Muted.Render(p.Status))
					if p.Deadline != "" {
						line += Muted.Render("  due " + p.Deadline)
					}
					lines = append(lines, line, Muted.Render("  "+p.ID))
				}
				fmt.Fprintln(cmd.OutOrStdout(), section("Projects", lines))
				return nil
			})
		},
	}
}

func newProjectRenameCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a project",
		Args:  exactArgs(2, "project id and new name are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				name := args[1]
				if err := a.sess.Gateway().UpdateProject(cmd.Context(), args[0], gateway.ProjectPatch{Name: &name}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render("renamed"), Highlight.Render(args[0]))
				return nil
			})
		},
	}
}

func newProjectStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set a project's status text",
		Args:  exactArgs(2, "project id and status are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				status := args[1]
				if err := a.sess.Gateway().UpdateProject(cmd.Context(), args[0], gateway.ProjectPatch{Status: &status}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render("updated"), Highlight.Render(args[0]))
				return nil
			})
		},
	}
}

func newProjectDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and all of its tasks",
		Args:  exactArgs(1, "project id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				err := a.sess.Gateway().DeleteProject(cmd.Context(), args[0])
				var ce *gateway.CascadeError
				if errors.As(err, &ce) {
					fmt.Fprintln(cmd.ErrOrStderr(), Warn.Render(fmt.Sprintf(
						"partially deleted: %d tasks removed, %d remain", len(ce.Deleted), len(ce.Remaining))))
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render("deleted project"), Highlight.Render(args[0]))
				return nil
			})
		},
	}
}
