package cmd

import (
	"context"
	"fmt"

	"finance-ledger-service/cmd/finledger/config"

	"github.com/spf13/cobra"
)

// categoriesCmd groups category maintenance
var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage transaction categories",
}

var categoriesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the fallback 'Other' categories for the current user",
	Long: `Seed creates the fallback "Other income", "Other expense" and
"Other transfer" categories for the current user. Running it again is a
no-op for categories that already exist.`,
	RunE: runCategoriesSeed,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.AddCommand(categoriesSeedCmd)
}

func runCategoriesSeed(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	categories, err := app.Store.EnsureFallbackCategories(context.Background(), currentUser())
	if err != nil {
		return err
	}

	for _, c := range categories {
		fmt.Printf("%s  %-14s  %s\n", c.ID, c.Type, c.Name)
	}
	return nil
}
