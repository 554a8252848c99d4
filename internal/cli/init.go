package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/propsync/propsync/internal/store"
	"github.com/propsync/propsync/pkg/config"
)

var initStorePath string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the shared store and write a default config",
	Long: `Creates the shared SQLite database (applying the schema and seeding the
default admin user) and writes a config file pointing at it. Safe to run
against an existing store: the schema is idempotent.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfgPath := effectiveConfigPath()

		cfg := config.Default()
		if existing, err := config.Load(cfgPath); err == nil {
			cfg = existing
		}
		if initStorePath != "" {
			cfg.Store.Path = initStorePath
		}

		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			fmtErr("initialize store: %v", err)
			os.Exit(1)
		}
		st.Close()

		if err := config.Save(cfgPath, cfg); err != nil {
			fmtErr("write config: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"store":  cfg.Store.Path,
				"marker": cfg.Store.Marker(),
				"config": cfgPath,
			})
			return
		}
		fmt.Printf("Initialized store at %s\n", cfg.Store.Path)
		fmt.Printf("  Marker: %s\n", cfg.Store.Marker())
		fmt.Printf("  Config: %s\n", cfgPath)
	},
}

func init() {
	initCmd.Flags().StringVar(&initStorePath, "store", "", "path to the shared database (default from config)")
	rootCmd.AddCommand(initCmd)
}
