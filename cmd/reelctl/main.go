// Command reelctl runs maintenance tasks against the Reelhub database and API.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	output  string
)

var rootCmd = &cobra.Command{
	Use:   "reelctl",
	Short: "Reelhub operations CLI",
	Long: `reelctl runs database maintenance (migrate, seed, reindex, scheduled
publishing) and talks to a running Reelhub API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/reelhub/reelctl.toml)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	rootCmd.PersistentFlags().String("api", "http://localhost:8787", "API base URL")
	rootCmd.PersistentFlags().String("token", "", "API bearer token")
	rootCmd.PersistentFlags().String("impersonate", "", "act as this user's email (admin tokens only)")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "API request timeout")
	rootCmd.PersistentFlags().Bool("debug", false, "log HTTP requests")

	_ = viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("api"))
	_ = viper.BindPFlag("api.token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("api.impersonate", rootCmd.PersistentFlags().Lookup("impersonate"))
	_ = viper.BindPFlag("api.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(migrateCmd, seedCmd, publishCmd, reindexCmd)
	rootCmd.AddCommand(healthCmd, feedCmd, walletCmd, awardCmd)
}

// initConfig layers the config file under REELCTL_* environment variables
// and flags
func initConfig() error {
	viper.SetConfigType("toml")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "reelhub"))
		viper.SetConfigName("reelctl")
	}

	viper.SetEnvPrefix("REELCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
