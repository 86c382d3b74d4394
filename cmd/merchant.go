package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ortizpassos/trustpay/internal/merchant"
)

var merchantCmd = &cobra.Command{
	Use:   "merchant",
	Short: "Merchant credential commands",
	Long:  `Create and deactivate merchants, and sign requests for the merchant API.`,
}

var createMerchantCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a merchant and print its key and secret",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initializeDependencies(mustLoadConfig())
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		creds, err := deps.Merchants.Create(context.Background(), args[0])
		if err != nil {
			log.Fatalf("failed to create merchant: %v", err)
		}
		printMerchantCredentials(creds.ID, creds.Name, creds.MerchantKey, creds.Secret)
	},
}

var deactivateMerchantCmd = &cobra.Command{
	Use:   "deactivate [merchant-id]",
	Short: "Deactivate a merchant; its signed requests are rejected afterwards",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initializeDependencies(mustLoadConfig())
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		if err := deps.Merchants.Deactivate(context.Background(), args[0]); err != nil {
			log.Fatalf("failed to deactivate merchant: %v", err)
		}
		fmt.Println("Merchant deactivated:", args[0])
	},
}

var (
	signAPIKey    string
	signSecret    string
	signMethod    string
	signPath      string
	signBody      string
	signTimestamp int64
)

// signRequestCmd needs no config; it is a client-side helper for building merchant requests by hand.
var signRequestCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print the headers for a signed merchant API request",
	RunE: func(cmd *cobra.Command, args []string) error {
		if signSecret == "" {
			return fmt.Errorf("--secret is required")
		}
		ts := signTimestamp
		if ts == 0 {
			ts = time.Now().Unix()
		}
		timestamp := strconv.FormatInt(ts, 10)
		signature := merchant.Sign(signSecret, signMethod, signPath, timestamp, []byte(signBody))

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", merchant.HeaderAPIKey, signAPIKey)
		fmt.Fprintf(out, "%s: %s\n", merchant.HeaderTimestamp, timestamp)
		fmt.Fprintf(out, "%s: %s\n", merchant.HeaderSignature, signature)
		return nil
	},
}

func printMerchantCredentials(id, name, key, secret string) {
	fmt.Printf("Merchant created: %s (id %s)\n", name, id)
	fmt.Printf("  api key: %s\n", key)
	fmt.Printf("  secret:  %s\n", secret)
	fmt.Fprintln(os.Stderr, "The secret is shown once; store it now.")
}

func init() {
	signRequestCmd.Flags().StringVar(&signAPIKey, "api-key", "", "merchant api key to echo in x-api-key")
	signRequestCmd.Flags().StringVar(&signSecret, "secret", "", "merchant signing secret")
	signRequestCmd.Flags().StringVar(&signMethod, "method", "POST", "HTTP method")
	signRequestCmd.Flags().StringVar(&signPath, "path", "/api/merchant/v1/payment-intents", "request path without host")
	signRequestCmd.Flags().StringVar(&signBody, "body", "", "raw request body exactly as it will be sent")
	signRequestCmd.Flags().Int64Var(&signTimestamp, "timestamp", 0, "unix seconds; defaults to now")

	merchantCmd.AddCommand(createMerchantCmd)
	merchantCmd.AddCommand(deactivateMerchantCmd)
	merchantCmd.AddCommand(signRequestCmd)

	rootCmd.AddCommand(merchantCmd)
}
