package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSuggestCmd(g *globals) *cobra.Command {
	var instruction string
	var sync bool

	cmd := &cobra.Command{
		Use:   "suggest <project-id>",
		Short: "Generate tasks for a project with Gemini",
		Args:  exactArgs(1, "project id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(a *app) error {
				if sync {
					a.syncCalendar(cmd.Context())
				}
				ids, err := a.sess.Suggest(cmd.Context(), args[0], instruction)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), Good.Render(fmt.Sprintf("created %d tasks", len(ids))))
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), Muted.Render("  "+id))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "What to ask for (default: break the project into steps)")
	cmd.Flags().BoolVar(&sync, "sync", false, "Fetch calendar events first so related ones inform the prompt")
	return cmd
}
