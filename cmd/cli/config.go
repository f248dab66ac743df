package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netsweep/internal/config"
)

const defaultConfigPath = "netsweep.yaml"

// configCmd groups configuration subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage configuration",
}

// configShowCmd prints the effective configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering config: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
	},
}

// configInitCmd writes a default configuration file.
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		path := defaultConfigPath
		if len(args) > 0 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "Error: %s already exists\n", path)
			os.Exit(1)
		}
		if err := config.Default().Write(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
