package cmd

import (
	"context"
	"fmt"
	"time"

	"finance-ledger-service/cmd/finledger/config"
	"finance-ledger-service/internal/models"
	"finance-ledger-service/internal/recurrence"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Flags for the recur commands
var (
	recurDescription string
	recurAmount      string
	recurType        string
	recurCategory    string
	recurFrequency   string
	recurStart       string
	recurEnd         string

	recurProcessDate string
)

// recurCmd groups the recurring transaction workflow
var recurCmd = &cobra.Command{
	Use:   "recur",
	Short: "Manage and process recurring transactions",
	Long: `Recur manages recurring transaction series and materializes their due
occurrences into ledger transactions.

Examples:
  finledger recur add --description "Rent" --amount -1200 --type expense \
    --frequency monthly --start 2025-01-31
  finledger recur pause 3fa8...
  finledger recur resume 3fa8...
  finledger recur process --date 2025-03-01`,
}

var recurAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a recurring transaction series",
	RunE:  runRecurAdd,
}

var recurPauseCmd = &cobra.Command{
	Use:   "pause <recurring-id>",
	Short: "Pause a recurring series so scheduled runs skip it",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecurPause,
}

var recurResumeCmd = &cobra.Command{
	Use:   "resume <recurring-id>",
	Short: "Resume a paused recurring series",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecurResume,
}

var recurProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Materialize all due recurring transactions",
	RunE:  runRecurProcess,
}

func init() {
	rootCmd.AddCommand(recurCmd)
	recurCmd.AddCommand(recurAddCmd, recurPauseCmd, recurResumeCmd, recurProcessCmd)

	recurAddCmd.Flags().StringVar(&recurDescription, "description", "", "description of the recurring entry (required)")
	recurAddCmd.Flags().StringVar(&recurAmount, "amount", "", "amount, negative for outflows (required)")
	recurAddCmd.Flags().StringVar(&recurType, "type", "", "transaction type: income, expense or transfer (required)")
	recurAddCmd.Flags().StringVar(&recurCategory, "category", "", "category id")
	recurAddCmd.Flags().StringVar(&recurFrequency, "frequency", "", "daily, weekly, biweekly, monthly, quarterly or annually (required)")
	recurAddCmd.Flags().StringVar(&recurStart, "start", "", "first occurrence date (YYYY-MM-DD, required)")
	recurAddCmd.Flags().StringVar(&recurEnd, "end", "", "last possible occurrence date (YYYY-MM-DD)")
	recurAddCmd.MarkFlagRequired("description")
	recurAddCmd.MarkFlagRequired("amount")
	recurAddCmd.MarkFlagRequired("type")
	recurAddCmd.MarkFlagRequired("frequency")
	recurAddCmd.MarkFlagRequired("start")

	recurProcessCmd.Flags().StringVar(&recurProcessDate, "date", "", "target date for the run (YYYY-MM-DD, default today)")
}

func runRecurAdd(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	amount, err := decimal.NewFromString(recurAmount)
	if err != nil {
		return fmt.Errorf("invalid --amount: %w", err)
	}
	start, err := models.ParseDate(recurStart)
	if err != nil {
		return fmt.Errorf("invalid --start date: %w", err)
	}

	params := recurrence.CreateParams{
		UserID:      currentUser(),
		Description: recurDescription,
		Amount:      amount,
		Type:        models.TransactionType(recurType),
		CategoryID:  recurCategory,
		Frequency:   models.Frequency(recurFrequency),
		StartDate:   start,
	}
	if recurEnd != "" {
		end, err := models.ParseDate(recurEnd)
		if err != nil {
			return fmt.Errorf("invalid --end date: %w", err)
		}
		params.EndDate = &end
	}

	rec, err := app.Manager.Create(context.Background(), params)
	if err != nil {
		return err
	}

	fmt.Printf("Recurring transaction created: %s\n", rec.ID)
	fmt.Printf("  Next due: %s (%s)\n", rec.NextDueDate.Format(models.DateLayout), rec.Frequency)
	return nil
}

func runRecurPause(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	rec, err := app.Manager.Pause(context.Background(), currentUser(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Recurring transaction %s is now %s.\n", rec.ID, rec.Status)
	return nil
}

func runRecurResume(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	rec, err := app.Manager.Resume(context.Background(), currentUser(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Recurring transaction %s is now %s.\n", rec.ID, rec.Status)
	return nil
}

func runRecurProcess(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	target := time.Now().UTC()
	if recurProcessDate != "" {
		t, err := models.ParseDate(recurProcessDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		target = t
	}

	summary, err := app.Runner.ProcessDue(context.Background(), target)
	if err != nil {
		return err
	}

	fmt.Println(summary.String())
	return nil
}
