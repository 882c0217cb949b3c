// Package cmd provides the command-line interface for the repokit server.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--config, --port, --store)
//  2. REPOKIT_CONFIG_FILE environment variable (custom config file path)
//  3. Individual environment variables (REPOKIT_SERVER_PORT and friends,
//     following the REPOKIT_<SECTION>_<OPTION> pattern)
//  4. Configuration file (.repokit.yml in the working directory)
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "repokit",
	Short: "A centralized software package repository server",
	Long: `Repokit is a centralized repository server for versioned software
packages. Clients check packages in with their dependency lists, the server
assigns version numbers and tracks open, closed and pending states, and
whole components can be extracted as a package plus its full transitive
dependency closure.

Quick start:
  repokit serve                 Start the repository server
  repokit serve --store ./repo  Use an alternate store directory
  repokit version               Show build information`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .repokit.yml, can also use REPOKIT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig wires viper to the config file and REPOKIT_ environment
// variables. A missing config file is not an error; defaults apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("REPOKIT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".repokit")
	}

	viper.SetEnvPrefix("REPOKIT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
