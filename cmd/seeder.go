package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/ortizpassos/trustpay/internal/user"
)

var (
	seedPassword string
	seedMerchant string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sandbox users and a merchant",
	Long:  `Seed the database with sample users (and optionally a merchant) for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()

		deps, err := initializeDependencies(cfg)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		ctx := context.Background()
		users := []user.CreateUserDTO{
			{Email: "alice@trustpay.dev", Name: "Alice Sandbox", Password: seedPassword, PixKey: "alice@pix.trustpay.dev"},
			{Email: "bruno@trustpay.dev", Name: "Bruno Sandbox", Password: seedPassword, PixKey: "+5511988887777"},
		}

		for _, dto := range users {
			u, created, err := deps.Users.EnsureUser(ctx, dto)
			if err != nil {
				log.Fatalf("failed to seed user %s: %v", dto.Email, err)
			}
			if !created {
				fmt.Println("user already exists:", u.Email)
				continue
			}
			fmt.Printf("Seeded user: %s (id %s)\n", u.Email, u.ID)
		}

		if seedMerchant == "" {
			return
		}

		creds, err := deps.Merchants.Create(ctx, seedMerchant)
		if err != nil {
			log.Fatalf("failed to seed merchant: %v", err)
		}
		printMerchantCredentials(creds.ID, creds.Name, creds.MerchantKey, creds.Secret)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "sandbox123", "password given to every seeded user")
	seedCmd.Flags().StringVar(&seedMerchant, "merchant", "", "also create a merchant with this name and print its credentials")
}
