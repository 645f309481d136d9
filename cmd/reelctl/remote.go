package main

import (
	"fmt"
	"os"

	json "github.com/json-iterator/go"
	"github.com/reelhub/backend/internal/apiclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func apiClient() *apiclient.Client {
	return apiclient.New(apiclient.Options{
		BaseURL:     viper.GetString("api.base_url"),
		Timeout:     viper.GetDuration("api.timeout"),
		Token:       viper.GetString("api.token"),
		Impersonate: viper.GetString("api.impersonate"),
		Debug:       viper.GetBool("debug"),
	})
}

// printResult writes v as JSON with -o json, otherwise the text line
func printResult(v interface{}, text string) error {
	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(text)
	return nil
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check a running API",
	RunE: func(cmd *cobra.Command, args []string) error {
		health, err := apiClient().Health(cmd.Context())
		if health != nil {
			if perr := printResult(health, fmt.Sprintf("%s: %v", health.Status, health.Checks)); perr != nil {
				return perr
			}
		}
		return err
	},
}

var (
	feedLimit  int
	feedOffset int
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print a page of the feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		videos, err := apiClient().Feed(cmd.Context(), feedLimit, feedOffset)
		if err != nil {
			return err
		}
		if output == "json" {
			return printResult(videos, "")
		}
		if len(videos) == 0 {
			fmt.Println("No videos.")
			return nil
		}
		for _, v := range videos {
			fmt.Printf("%s  %-40s  %d likes  %d views\n", v.ID, v.Title, v.LikeCount, v.ViewCount)
		}
		return nil
	},
}

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show the coin balance of the token's user",
	RunE: func(cmd *cobra.Command, args []string) error {
		wallet, err := apiClient().Wallet(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(wallet, fmt.Sprintf("balance: %d coins", wallet.Balance))
	},
}

var (
	awardAmount    int64
	awardReference string
)

var awardCmd = &cobra.Command{
	Use:   "award <user-id>",
	Short: "Credit coins to a user (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := apiClient().AwardCoins(cmd.Context(), args[0], awardAmount, awardReference)
		if err != nil {
			return err
		}
		return printResult(tx, fmt.Sprintf("awarded %d coins, balance now %d", tx.Delta, tx.BalanceAfter))
	},
}

func init() {
	feedCmd.Flags().IntVar(&feedLimit, "limit", 20, "page size")
	feedCmd.Flags().IntVar(&feedOffset, "offset", 0, "page offset")

	awardCmd.Flags().Int64Var(&awardAmount, "amount", 0, "coins to award")
	awardCmd.Flags().StringVar(&awardReference, "reference", "reelctl", "ledger reference")
	_ = awardCmd.MarkFlagRequired("amount")
}
