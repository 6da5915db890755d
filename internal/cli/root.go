// Package cli is the prodhub command line: one-shot commands over the
// session plus a long-running watch mode.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	owner      string
	dsn        string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "prodhub",
		Short:         "Personal productivity hub",
		Long:          "prodhub tracks projects, tasks and habits and merges their deadlines with your calendar.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (default ~/.config/prodhub/config.yaml)")
	pf.StringVar(&g.owner, "owner", "", "Owner partition, overrides the config")
	pf.StringVar(&g.dsn, "db", "", "SQLite path or Postgres DSN, overrides the config")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug|info|warn|error)")

	cmd.AddCommand(
		newProjectCmd(g),
		newTaskCmd(g),
		newHabitCmd(g),
		newDashboardCmd(g),
		newScheduleCmd(g),
		newReviewCmd(g),
		newSuggestCmd(g),
		newSettingsCmd(g),
		newWatchCmd(g),
	)
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, Bad.Render("error: "+err.Error()))
		os.Exit(1)
	}
}
