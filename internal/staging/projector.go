// Package staging projects raw statement rows into staged transactions using
// a validated column mapping.
//
// Projection is row-isolated: a row that fails to parse is recorded in the
// StagingResult and skipped, never aborting the batch. Rows whose content
// hash already exists for the account (in any non-ignored status) are
// suppressed entirely, making re-imports of the same statement idempotent.
package staging

import (
	"context"
	"fmt"
	"strings"

	"finance-ledger-service/internal/mapping"
	"finance-ledger-service/internal/models"
	"finance-ledger-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// maxRecordedErrors caps how many row errors are kept in a StagingResult;
// counts are always complete
const maxRecordedErrors = 25

// StagedStore is the persistence surface the projector needs
type StagedStore interface {
	// ExistsActiveContentHash reports whether a staged transaction with the
	// given content hash and a non-ignored status already exists for the account
	ExistsActiveContentHash(ctx context.Context, bankAccountID, contentHash string) (bool, error)
	// CreateStaged persists a new staged transaction
	CreateStaged(ctx context.Context, st *models.StagedTransaction) error
}

// RowError describes a single data row that could not be staged
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d (%s='%s'): %s", e.Row, e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// StagingResult summarizes one staging pass over an import's rows
type StagingResult struct {
	TotalRows  int         `json:"total_rows"`
	StagedRows int         `json:"staged_rows"`
	Skipped    int         `json:"skipped"`
	Failed     int         `json:"failed"`
	Errors     []*RowError `json:"errors,omitempty"`
}

// addError records a row failure, keeping at most maxRecordedErrors messages
func (r *StagingResult) addError(e *RowError) {
	r.Failed++
	if len(r.Errors) < maxRecordedErrors {
		r.Errors = append(r.Errors, e)
	}
}

// String returns a human-readable summary of the staging result
func (r *StagingResult) String() string {
	return fmt.Sprintf("staged %d of %d rows (%d skipped as duplicates, %d failed)",
		r.StagedRows, r.TotalRows, r.Skipped, r.Failed)
}

// Projector applies a validated column mapping to raw statement rows
type Projector struct {
	store  StagedStore
	logger logger.Logger
}

// NewProjector creates a staging projector backed by the given store
func NewProjector(store StagedStore, log logger.Logger) *Projector {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Projector{
		store:  store,
		logger: log.WithComponent("staging"),
	}
}

// Stage projects every raw data row of an import into staged transactions.
// It returns the staging summary together with the staged transactions it
// created, in row order. Row-level failures are accumulated in the result;
// only infrastructure failures (store errors, unresolvable mapping) return
// a non-nil error.
func (p *Projector) Stage(ctx context.Context, imp *models.BankStatementImport, rows [][]string, cm *mapping.ColumnMapping) (*StagingResult, []*models.StagedTransaction, error) {
	idx, err := cm.ResolveIndexes(imp.Headers)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve mapping columns: %w", err)
	}

	result := &StagingResult{TotalRows: len(rows)}
	var staged []*models.StagedTransaction

	for i, row := range rows {
		// Row numbers are file line numbers: data starts after the header.
		rowNum := i + 2

		st, rowErr := p.projectRow(imp, row, idx, rowNum)
		if rowErr != nil {
			result.addError(rowErr)
			continue
		}

		exists, err := p.store.ExistsActiveContentHash(ctx, imp.BankAccountID, st.ContentHash)
		if err != nil {
			return result, staged, fmt.Errorf("check content hash for row %d: %w", rowNum, err)
		}
		if exists {
			result.Skipped++
			continue
		}

		if err := p.store.CreateStaged(ctx, st); err != nil {
			return result, staged, fmt.Errorf("persist staged transaction for row %d: %w", rowNum, err)
		}

		result.StagedRows++
		staged = append(staged, st)
	}

	p.logger.WithFields(logger.Fields{
		"import_id": imp.ID,
		"staged":    result.StagedRows,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}).Info("staging pass finished")

	return result, staged, nil
}

// projectRow converts one raw row into a staged transaction
func (p *Projector) projectRow(imp *models.BankStatementImport, row []string, idx *mapping.ColumnIndexes, rowNum int) (*models.StagedTransaction, *RowError) {
	dateStr := fieldAt(row, idx.Date)
	date, err := models.ParseDate(dateStr)
	if err != nil {
		return nil, &RowError{
			Row:     rowNum,
			Field:   "transaction_date",
			Value:   dateStr,
			Message: err.Error(),
		}
	}

	amount, rowErr := p.resolveAmount(row, idx, rowNum)
	if rowErr != nil {
		return nil, rowErr
	}

	description := ""
	if idx.Description >= 0 {
		description = strings.TrimSpace(fieldAt(row, idx.Description))
	}

	rawData := make([]string, len(row))
	copy(rawData, row)

	return models.NewStagedTransaction(imp.UserID, imp.BankAccountID, imp.ID, date, description, amount, rawData), nil
}

// resolveAmount computes the signed amount for a row. Single mode takes the
// amount column as-is (positive=credit, negative=debit). Separate mode takes
// credit minus debit, with each side treated as a non-negative magnitude.
func (p *Projector) resolveAmount(row []string, idx *mapping.ColumnIndexes, rowNum int) (decimal.Decimal, *RowError) {
	if idx.Amount >= 0 {
		amountStr := fieldAt(row, idx.Amount)
		amount, err := models.ParseAmount(amountStr)
		if err != nil {
			return decimal.Zero, &RowError{
				Row:     rowNum,
				Field:   "amount",
				Value:   amountStr,
				Message: err.Error(),
			}
		}
		return amount, nil
	}

	debit, rowErr := parseMagnitude(row, idx.Debit, "debit_amount", rowNum)
	if rowErr != nil {
		return decimal.Zero, rowErr
	}

	credit, rowErr := parseMagnitude(row, idx.Credit, "credit_amount", rowNum)
	if rowErr != nil {
		return decimal.Zero, rowErr
	}

	return credit.Sub(debit), nil
}

// parseMagnitude parses one side of a debit/credit pair. Blank cells count
// as zero; signs in the source are discarded since each side is a magnitude.
func parseMagnitude(row []string, col int, field string, rowNum int) (decimal.Decimal, *RowError) {
	raw := strings.TrimSpace(fieldAt(row, col))
	if raw == "" {
		return decimal.Zero, nil
	}

	amount, err := models.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, &RowError{
			Row:     rowNum,
			Field:   field,
			Value:   raw,
			Message: err.Error(),
		}
	}
	return amount.Abs(), nil
}

// fieldAt returns the field at position col, or "" when the row is ragged
func fieldAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
