package commands

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// ConfigCmd groups configuration inspection subcommands
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect meteorid configuration",
}

// configShowCmd prints the effective configuration as TOML
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration as TOML",
	Long:  `Print the merged configuration (defaults, config files, environment overrides) in TOML form.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		out, err := toml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
}
