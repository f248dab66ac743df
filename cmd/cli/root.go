// Package cli provides command-line interface commands for the netsweep
// scan engine. It implements the Cobra-based CLI structure with commands
// for scanning and configuration management.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/logging"
)

const (
	// Default configuration constants.
	defaultWorkerCount = 5
	defaultChunkSize   = 256
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netsweep",
	Short: "Concurrent network scan engine",
	Long: `Netsweep partitions large scan targets into bounded work units, runs an
external scan tool as one subprocess per unit across a capped worker pool,
streams live output, and merges per-unit results into a single deduplicated
host inventory.`,
	Version: getVersion(),
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./netsweep.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("netsweep")
	}

	// Read in environment variables that match
	viper.AutomaticEnv()
	viper.SetEnvPrefix("NETSWEEP")

	setConfigDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	// Initialize structured logging after config is loaded
	initLogging()
}

// setConfigDefaults sets default values for configuration.
func setConfigDefaults() {
	// Scanner configuration
	viper.SetDefault("scanner.binary_path", "nmap")
	viper.SetDefault("scanner.max_workers", defaultWorkerCount)
	viper.SetDefault("scanner.unit_timeout", "10m")
	viper.SetDefault("scanner.kill_grace", "5s")
	viper.SetDefault("scanner.chunk_size", defaultChunkSize)
	viper.SetDefault("scanner.file_chunk_size", 100)

	// Logging configuration
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stderr")
}

// loadConfig loads the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.ConfigFileUsed())
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logConfig := logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.Level == logging.LevelDebug,
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)

	if verbose {
		logging.Info("Structured logging initialized",
			"level", cfg.Logging.Level, "format", cfg.Logging.Format)
	}
}
