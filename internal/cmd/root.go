// Package cmd implements the netmon command line.
package cmd

import (
	"strings"

	"github.com/Iron-Ham/netmon/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "netmon",
	Short: "Per-process network bandwidth monitor",
	Long: `netmon runs the system's per-process network sampling tool (nettop)
under a pseudo-terminal, turns its cumulative byte counters into per-second
rates and shows them live, serves them over HTTP or replays captured output.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/netmon/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level (debug/info/warn/error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NETMON")
	// Replace dots with underscores for nested keys in env vars
	// e.g., NETMON_SAMPLER_ELEVATION for sampler.elevation
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
