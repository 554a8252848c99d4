// Package cli implements the propsync command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	configPath string
	userFlag   string

	rootCmd = &cobra.Command{
		Use:   "propsync",
		Short: "PropSync - shared-store write-lock coordination",
		Long: `PropSync coordinates exclusive write access to a shared property
database on a LAN drive. One client at a time holds the write lock;
everyone else runs read-only. Crashed holders are reclaimed automatically
once their heartbeat goes stale.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $PROPSYNC_CONFIG or ~/.config/propsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "acting username (default $PROPSYNC_USER or the OS user)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
