package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sadopc/prodhub/internal/config"
)

func newSettingsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write per-owner preferences",
		Long: "Settings are stored per owner. Known keys: " +
			config.SettingTimezone + " (IANA zone), " +
			config.SettingCalendarExclude + " (comma-separated title keywords).",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a setting",
		Args:  exactArgs(1, "key is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, g, func(s *settingsStore) error {
				v, err := s.st.GetSetting(cmd.Context(), s.owner, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  exactArgs(2, "key and value are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, g, func(s *settingsStore) error {
				if _, err := s.cfg.WithSettings(map[string]string{args[0]: args[1]}); err != nil {
					return err
				}
				return s.st.SetSetting(cmd.Context(), s.owner, args[0], args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, g, func(s *settingsStore) error {
				all, err := s.st.GetAllSettings(cmd.Context(), s.owner)
				if err != nil {
					return err
				}
				for _, st := range all {
					fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", Highlight.Render(st.Key), st.Value)
				}
				return nil
			})
		},
	})
	return cmd
}
