package cmd

import (
	"context"
	"fmt"

	"finance-ledger-service/cmd/finledger/config"
	"finance-ledger-service/internal/models"
	"finance-ledger-service/internal/review"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Flags for the review commands
var (
	reviewCategory string
	reviewNotes    string

	searchText  string
	searchFrom  string
	searchTo    string
	searchMin   string
	searchMax   string
	searchLimit int
)

// reviewCmd groups the staged-transaction review workflow
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Resolve staged transactions",
	Long: `Review resolves the staged transactions produced by a statement import.

Each staged row is approved into the ledger, ignored, or manually matched
against an existing ledger transaction. Automatic duplicate suggestions can
be rejected with unmatch.

Examples:
  finledger review approve 9b2e... --category cat-groceries
  finledger review ignore 9b2e... --notes "duplicate of a manual entry"
  finledger review search 9b2e... --text "coffee" --limit 5
  finledger review match 9b2e... 41d7...
  finledger review unmatch 9b2e...`,
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <staged-id>",
	Short: "Approve a staged transaction into the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewApprove,
}

var reviewIgnoreCmd = &cobra.Command{
	Use:   "ignore <staged-id>",
	Short: "Ignore a staged transaction without creating a ledger entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewIgnore,
}

var reviewMatchCmd = &cobra.Command{
	Use:   "match <staged-id> <transaction-id>",
	Short: "Manually match a staged transaction to an existing ledger entry",
	Args:  cobra.ExactArgs(2),
	RunE:  runReviewMatch,
}

var reviewUnmatchCmd = &cobra.Command{
	Use:   "unmatch <staged-id>",
	Short: "Reject an automatic duplicate suggestion",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewUnmatch,
}

var reviewSetCategoryCmd = &cobra.Command{
	Use:   "set-category <staged-id> <category-id>",
	Short: "Set the suggested category of an unresolved staged transaction",
	Args:  cobra.ExactArgs(2),
	RunE:  runReviewSetCategory,
}

var reviewSearchCmd = &cobra.Command{
	Use:   "search <staged-id>",
	Short: "Search ledger transactions to match a staged transaction against",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewSearch,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewApproveCmd, reviewIgnoreCmd, reviewMatchCmd,
		reviewUnmatchCmd, reviewSetCategoryCmd, reviewSearchCmd)

	reviewApproveCmd.Flags().StringVarP(&reviewCategory, "category", "c", "", "category id for the new ledger entry")
	reviewIgnoreCmd.Flags().StringVar(&reviewNotes, "notes", "", "reason for ignoring the row")

	reviewSearchCmd.Flags().StringVar(&searchText, "text", "", "substring to match in descriptions")
	reviewSearchCmd.Flags().StringVar(&searchFrom, "from", "", "earliest transaction date (YYYY-MM-DD)")
	reviewSearchCmd.Flags().StringVar(&searchTo, "to", "", "latest transaction date (YYYY-MM-DD)")
	reviewSearchCmd.Flags().StringVar(&searchMin, "min", "", "minimum amount")
	reviewSearchCmd.Flags().StringVar(&searchMax, "max", "", "maximum amount")
	reviewSearchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")
}

func runReviewApprove(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Review.Approve(context.Background(), currentUser(), args[0], reviewCategory)
	if err != nil {
		return err
	}

	if result.NoOp {
		fmt.Printf("Staged transaction %s is already %s; nothing to do.\n",
			result.Staged.ID, result.Staged.Status)
		return nil
	}
	fmt.Printf("Approved. Ledger transaction created: %s\n", result.Created.ID)
	return nil
}

func runReviewIgnore(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Review.Ignore(context.Background(), currentUser(), args[0], reviewNotes)
	if err != nil {
		return err
	}

	if result.NoOp {
		fmt.Printf("Staged transaction %s is already %s; nothing to do.\n",
			result.Staged.ID, result.Staged.Status)
		return nil
	}
	fmt.Printf("Ignored staged transaction %s.\n", result.Staged.ID)
	return nil
}

func runReviewMatch(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Review.ManualMatch(context.Background(), currentUser(), args[0], args[1])
	if err != nil {
		return err
	}

	if result.NoOp {
		fmt.Printf("Staged transaction %s is already matched to %s.\n",
			result.Staged.ID, result.Staged.MatchedTransactionID)
		return nil
	}
	fmt.Printf("Matched staged transaction %s to ledger transaction %s.\n",
		result.Staged.ID, result.Staged.MatchedTransactionID)
	return nil
}

func runReviewUnmatch(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Review.Unmatch(context.Background(), currentUser(), args[0])
	if err != nil {
		return err
	}

	if result.NoOp {
		fmt.Printf("Staged transaction %s has no suggestion to reject.\n", result.Staged.ID)
		return nil
	}
	fmt.Printf("Suggestion rejected; staged transaction %s is pending review again.\n", result.Staged.ID)
	return nil
}

func runReviewSetCategory(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Review.SetCategory(context.Background(), currentUser(), args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("Category of staged transaction %s set to %s.\n",
		result.Staged.ID, result.Staged.SuggestedCategoryID)
	return nil
}

func runReviewSearch(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	q, err := buildSearchQuery()
	if err != nil {
		return err
	}

	candidates, err := app.Review.SearchCandidates(context.Background(), currentUser(), args[0], q)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		fmt.Println("No matching ledger transactions found.")
		return nil
	}

	for _, c := range candidates {
		line := fmt.Sprintf("%s  %s  %10s  %s",
			c.Transaction.ID, c.Transaction.TransactionDate.Format(models.DateLayout),
			c.Transaction.Amount.String(), c.Transaction.Description)
		if c.CategoryName != "" {
			line += fmt.Sprintf("  [%s]", c.CategoryName)
		}
		line += fmt.Sprintf("  (%d days away)", c.DateDistanceDays)
		fmt.Println(line)
	}
	return nil
}

// buildSearchQuery assembles the candidate search query from CLI flags
func buildSearchQuery() (review.SearchQuery, error) {
	q := review.SearchQuery{Text: searchText, Limit: searchLimit}

	if searchFrom != "" {
		t, err := models.ParseDate(searchFrom)
		if err != nil {
			return q, fmt.Errorf("invalid --from date: %w", err)
		}
		q.DateFrom = t
	}
	if searchTo != "" {
		t, err := models.ParseDate(searchTo)
		if err != nil {
			return q, fmt.Errorf("invalid --to date: %w", err)
		}
		q.DateTo = t
	}
	if searchMin != "" {
		d, err := decimal.NewFromString(searchMin)
		if err != nil {
			return q, fmt.Errorf("invalid --min amount: %w", err)
		}
		q.AmountMin = &d
	}
	if searchMax != "" {
		d, err := decimal.NewFromString(searchMax)
		if err != nil {
			return q, fmt.Errorf("invalid --max amount: %w", err)
		}
		q.AmountMax = &d
	}

	return q, nil
}
