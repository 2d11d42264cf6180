package cmd

import (
	"context"
	"fmt"
	"strings"

	"finance-ledger-service/cmd/finledger/config"
	"finance-ledger-service/internal/mapping"
	"finance-ledger-service/internal/models"

	"github.com/spf13/cobra"
)

// Flags for the import commands
var (
	importAccount string
	importFile    string

	mapDateColumn        string
	mapDescriptionColumn string
	mapAmountType        string
	mapAmountColumn      string
	mapDebitColumn       string
	mapCreditColumn      string
)

// importCmd groups the statement import workflow
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import bank statement files",
	Long: `Import manages bank statement import sessions.

A session starts by uploading a CSV export, which is parsed and stored.
Configuring a column mapping then stages every data row for review.

Examples:
  finledger import create --account acc-1 --file statement.csv
  finledger import map 6f1c... --date-column Date --amount-type single --amount-column Amount
  finledger import map 6f1c... --date-column Date --amount-type separate \
    --debit-column Debit --credit-column Credit
  finledger import list
  finledger import show 6f1c...`,
}

var importCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Upload a statement file and open an import session",
	RunE:  runImportCreate,
}

var importMapCmd = &cobra.Command{
	Use:   "map <import-id>",
	Short: "Configure the column mapping and stage the import's rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportMap,
}

var importListCmd = &cobra.Command{
	Use:   "list",
	Short: "List import sessions",
	RunE:  runImportList,
}

var importShowCmd = &cobra.Command{
	Use:   "show <import-id>",
	Short: "Show an import session and its staged transactions",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportShow,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importCreateCmd, importMapCmd, importListCmd, importShowCmd)

	importCreateCmd.Flags().StringVarP(&importAccount, "account", "a", "", "bank account id (required)")
	importCreateCmd.Flags().StringVarP(&importFile, "file", "f", "", "path to the statement CSV file (required)")
	importCreateCmd.MarkFlagRequired("account")
	importCreateCmd.MarkFlagRequired("file")

	importMapCmd.Flags().StringVar(&mapDateColumn, "date-column", "", "column holding the transaction date (required)")
	importMapCmd.Flags().StringVar(&mapDescriptionColumn, "description-column", "", "column holding the description")
	importMapCmd.Flags().StringVar(&mapAmountType, "amount-type", "single", "amount representation: single or separate")
	importMapCmd.Flags().StringVar(&mapAmountColumn, "amount-column", "", "signed amount column (single mode)")
	importMapCmd.Flags().StringVar(&mapDebitColumn, "debit-column", "", "debit magnitude column (separate mode)")
	importMapCmd.Flags().StringVar(&mapCreditColumn, "credit-column", "", "credit magnitude column (separate mode)")
	importMapCmd.MarkFlagRequired("date-column")
}

func runImportCreate(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	imp, err := app.Importer.CreateImport(context.Background(), currentUser(), importAccount, importFile)
	if err != nil {
		return err
	}

	fmt.Printf("Import session created: %s\n", imp.ID)
	fmt.Printf("  File:    %s\n", imp.FileName)
	fmt.Printf("  Rows:    %d\n", imp.TotalRowCount)
	fmt.Printf("  Headers: %s\n", strings.Join(imp.Headers, ", "))
	fmt.Printf("  Status:  %s\n", imp.Status)
	fmt.Println("\nNext: configure the column mapping with 'finledger import map'.")
	return nil
}

func runImportMap(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	cm := &mapping.ColumnMapping{
		TransactionDateColumn: mapDateColumn,
		DescriptionColumn:     mapDescriptionColumn,
		AmountType:            mapping.AmountType(mapAmountType),
		AmountColumn:          mapAmountColumn,
		DebitAmountColumn:     mapDebitColumn,
		CreditAmountColumn:    mapCreditColumn,
	}

	result, err := app.Importer.ConfigureMapping(context.Background(), args[0], cm)
	if err != nil {
		return err
	}

	fmt.Println(result.String())
	for _, rowErr := range result.Errors {
		fmt.Printf("  %s\n", rowErr.Error())
	}
	return nil
}

func runImportList(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	imports, err := app.Importer.ListImports(context.Background(), currentUser())
	if err != nil {
		return err
	}

	if len(imports) == 0 {
		fmt.Println("No imports found.")
		return nil
	}

	for _, imp := range imports {
		fmt.Printf("%s  %-16s  %s (%d/%d rows, %d skipped)\n",
			imp.ID, imp.Status, imp.FileName,
			imp.ProcessedRowCount, imp.TotalRowCount, imp.SkippedRowCount)
	}
	return nil
}

func runImportShow(cmd *cobra.Command, args []string) error {
	app, err := config.BuildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	imp, err := app.Importer.GetImport(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(imp.String())

	staged, err := app.Store.ListStagedByImport(ctx, imp.ID)
	if err != nil {
		return err
	}

	for _, st := range staged {
		line := fmt.Sprintf("  %s  %-19s  %s  %10s  %s",
			st.ID, st.Status, st.TransactionDate.Format(models.DateLayout),
			st.Amount.String(), st.Description)
		if st.MatchedTransactionID != "" {
			line += fmt.Sprintf("  (matched: %s)", st.MatchedTransactionID)
		}
		fmt.Println(line)
	}
	return nil
}
