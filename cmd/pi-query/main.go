// Command pi-query is a thin driver over the Prime Infrastructure API
// client: it lists catalog resources, bulk-fetches data resources, and
// invokes service operations, printing JSON to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/maximumG/piapi-go/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pi-query",
	Short: "Cisco Prime Infrastructure REST API client",
	Long: `pi-query talks to the Cisco Prime Infrastructure REST API.

Data resources are fetched in paced, concurrent pages within the server's
rate limits; service resources are invoked with a single call.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelWarn
		if viper.GetBool("verbose") {
			level = logging.LevelDebug
		}
		logging.Setup(logging.Config{Level: level, Pretty: true, Output: os.Stderr})
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.pi-query.yaml)")
	rootCmd.PersistentFlags().String("host", "", "Prime Infrastructure server name")
	rootCmd.PersistentFlags().StringP("username", "u", "", "API username")
	rootCmd.PersistentFlags().StringP("password", "p", "", "API password")
	rootCmd.PersistentFlags().BoolP("insecure", "k", false, "skip TLS certificate verification")
	rootCmd.PersistentFlags().String("virtual-domain", "", "virtual domain to scope requests to")
	rootCmd.PersistentFlags().Int("page-size", 1000, "records per page")
	rootCmd.PersistentFlags().Int("concurrency", 5, "parallel page requests per chunk")
	rootCmd.PersistentFlags().Duration("hold", 0, "pause between chunks (default 1s)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-request timeout (default 300s)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the query cache")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	for _, flag := range []string{
		"host", "username", "password", "insecure", "virtual-domain",
		"page-size", "concurrency", "hold", "timeout", "no-cache", "verbose",
	} {
		_ = viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag))
	}

	rootCmd.AddCommand(newResourcesCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newCallCommand())
	rootCmd.AddCommand(newVersionCommand())
}

func initConfig() {
	cfgFile := viper.GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".pi-query")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("PIAPI")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && viper.GetBool("verbose") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
