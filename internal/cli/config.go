package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/propsync/propsync/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		path := effectiveConfigPath()
		cfg, err := config.Load(path)
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"path": path, "config": cfg})
			return
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmtErr("render config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("# %s\n%s", path, data)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
