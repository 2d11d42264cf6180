// Package models defines the core entities of the finance ledger service:
// ledger transactions, staged transactions produced by statement imports,
// the import aggregate itself, recurring transactions and categories,
// together with their status vocabularies and shared parsing helpers.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar-date format used across the service
const DateLayout = "2006-01-02"

// TransactionType represents the type of a ledger transaction
type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense || t == TransactionTypeTransfer
}

// TypeForAmount derives the transaction type from an amount's sign
// (positive amounts are inflows, negative amounts are outflows)
func TypeForAmount(amount decimal.Decimal) TransactionType {
	if amount.IsNegative() {
		return TransactionTypeExpense
	}
	return TransactionTypeIncome
}

// ImportStatus represents the lifecycle state of a bank statement import
type ImportStatus string

const (
	ImportStatusPendingMapping ImportStatus = "pending_mapping"
	ImportStatusAwaitingReview ImportStatus = "awaiting_review"
	ImportStatusProcessing     ImportStatus = "processing"
	ImportStatusCompleted      ImportStatus = "completed"
	ImportStatusFailed         ImportStatus = "failed"
)

// String returns the string representation of ImportStatus
func (s ImportStatus) String() string {
	return string(s)
}

// IsValid checks if the import status is valid
func (s ImportStatus) IsValid() bool {
	switch s {
	case ImportStatusPendingMapping, ImportStatusAwaitingReview,
		ImportStatusProcessing, ImportStatusCompleted, ImportStatusFailed:
		return true
	}
	return false
}

// StagedStatus represents the lifecycle state of a staged transaction
type StagedStatus string

const (
	StagedStatusPendingReview      StagedStatus = "pending_review"
	StagedStatusPotentialDuplicate StagedStatus = "potential_duplicate"
	StagedStatusImported           StagedStatus = "imported"
	StagedStatusIgnored            StagedStatus = "ignored"
)

// String returns the string representation of StagedStatus
func (s StagedStatus) String() string {
	return string(s)
}

// IsValid checks if the staged status is valid
func (s StagedStatus) IsValid() bool {
	switch s {
	case StagedStatusPendingReview, StagedStatusPotentialDuplicate,
		StagedStatusImported, StagedStatusIgnored:
		return true
	}
	return false
}

// IsTerminal reports whether the status is a resolved end state
func (s StagedStatus) IsTerminal() bool {
	return s == StagedStatusImported || s == StagedStatusIgnored
}

// RecurringStatus represents the lifecycle state of a recurring transaction
type RecurringStatus string

const (
	RecurringStatusActive    RecurringStatus = "active"
	RecurringStatusPaused    RecurringStatus = "paused"
	RecurringStatusCompleted RecurringStatus = "completed"
)

// String returns the string representation of RecurringStatus
func (s RecurringStatus) String() string {
	return string(s)
}

// IsValid checks if the recurring status is valid
func (s RecurringStatus) IsValid() bool {
	return s == RecurringStatusActive || s == RecurringStatusPaused || s == RecurringStatusCompleted
}

// Frequency represents how often a recurring transaction occurs
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

// String returns the string representation of Frequency
func (f Frequency) String() string {
	return string(f)
}

// IsValid checks if the frequency is valid
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly,
		FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
		return true
	}
	return false
}

// Transaction represents a ledger entry. It is created directly by the user,
// by approving a staged transaction, or by recurrence materialization.
type Transaction struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"user_id"`
	BankAccountID       string          `json:"bank_account_id,omitempty"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	Type                TransactionType `json:"type"`
	CategoryID          string          `json:"category_id,omitempty"`
	TransactionDate     time.Time       `json:"transaction_date"`
	StagedTransactionID string          `json:"staged_transaction_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return fmt.Errorf("transaction user cannot be empty")
	}

	if !t.Type.IsValid() {
		return fmt.Errorf("invalid transaction type: %s", t.Type)
	}

	if t.TransactionDate.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}

	return nil
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Amount: %s, Type: %s, Date: %s}",
		t.ID, t.Amount.String(), t.Type, t.TransactionDate.Format(DateLayout))
}

// StagedTransaction represents a candidate ledger entry extracted from an
// imported statement, pending human or automatic resolution. Rows are never
// deleted; they remain as an audit trail of the import.
type StagedTransaction struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	BankAccountID        string          `json:"bank_account_id"`
	ImportID             string          `json:"import_id"`
	TransactionDate      time.Time       `json:"transaction_date"`
	Description          string          `json:"description"`
	Amount               decimal.Decimal `json:"amount"`
	RawData              []string        `json:"raw_data"`
	ContentHash          string          `json:"content_hash"`
	Status               StagedStatus    `json:"status"`
	SuggestedCategoryID  string          `json:"suggested_category_id,omitempty"`
	MatchedTransactionID string          `json:"matched_transaction_id,omitempty"`
	ResolvedBy           string          `json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time      `json:"resolved_at,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// NewStagedTransaction creates a staged transaction in pending_review status
// with its content hash derived from the row's semantic fields
func NewStagedTransaction(userID, bankAccountID, importID string, date time.Time, description string, amount decimal.Decimal, rawData []string) *StagedTransaction {
	return &StagedTransaction{
		ID:              uuid.NewString(),
		UserID:          userID,
		BankAccountID:   bankAccountID,
		ImportID:        importID,
		TransactionDate: date,
		Description:     description,
		Amount:          amount,
		RawData:         rawData,
		ContentHash:     ContentHash(bankAccountID, date, description, amount),
		Status:          StagedStatusPendingReview,
		CreatedAt:       time.Now().UTC(),
	}
}

// String returns a string representation of the StagedTransaction
func (st *StagedTransaction) String() string {
	return fmt.Sprintf("StagedTransaction{ID: %s, Amount: %s, Date: %s, Status: %s}",
		st.ID, st.Amount.String(), st.TransactionDate.Format(DateLayout), st.Status)
}

// BankStatementImport is the aggregate root for one statement upload
type BankStatementImport struct {
	ID                string       `json:"id"`
	UserID            string       `json:"user_id"`
	BankAccountID     string       `json:"bank_account_id"`
	FileName          string       `json:"file_name"`
	FilePath          string       `json:"file_path"`
	FileHash          string       `json:"file_hash"`
	Status            ImportStatus `json:"status"`
	Headers           []string     `json:"headers"`
	MappingJSON       string       `json:"mapping,omitempty"`
	TotalRowCount     int          `json:"total_row_count"`
	ProcessedRowCount int          `json:"processed_row_count"`
	SkippedRowCount   int          `json:"skipped_row_count"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// NewBankStatementImport creates an import in pending_mapping status
func NewBankStatementImport(userID, bankAccountID, fileName, filePath, fileHash string, headers []string, totalRows int) *BankStatementImport {
	now := time.Now().UTC()
	return &BankStatementImport{
		ID:            uuid.NewString(),
		UserID:        userID,
		BankAccountID: bankAccountID,
		FileName:      fileName,
		FilePath:      filePath,
		FileHash:      fileHash,
		Status:        ImportStatusPendingMapping,
		Headers:       headers,
		TotalRowCount: totalRows,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// String returns a string representation of the BankStatementImport
func (imp *BankStatementImport) String() string {
	return fmt.Sprintf("Import{ID: %s, File: %s, Status: %s, Rows: %d/%d}",
		imp.ID, imp.FileName, imp.Status, imp.ProcessedRowCount, imp.TotalRowCount)
}

// RecurringTransaction represents a scheduled transaction template. The
// NextDueDate field always points at the next unmaterialized occurrence.
type RecurringTransaction struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Type              TransactionType `json:"type"`
	CategoryID        string          `json:"category_id,omitempty"`
	Frequency         Frequency       `json:"frequency"`
	StartDate         time.Time       `json:"start_date"`
	EndDate           *time.Time      `json:"end_date,omitempty"`
	NextDueDate       time.Time       `json:"next_due_date"`
	LastProcessedDate *time.Time      `json:"last_processed_date,omitempty"`
	Status            RecurringStatus `json:"status"`
}

// Validate performs basic validation on the RecurringTransaction
func (rt *RecurringTransaction) Validate() error {
	if strings.TrimSpace(rt.UserID) == "" {
		return fmt.Errorf("recurring transaction user cannot be empty")
	}

	if !rt.Type.IsValid() {
		return fmt.Errorf("invalid transaction type: %s", rt.Type)
	}

	if rt.StartDate.IsZero() {
		return fmt.Errorf("recurring transaction start date cannot be zero")
	}

	if rt.EndDate != nil && rt.EndDate.Before(rt.StartDate) {
		return fmt.Errorf("recurring transaction end date cannot be before start date")
	}

	return nil
}

// Category represents a transaction category read from the category store
type Category struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Name   string          `json:"name"`
	Type   TransactionType `json:"type"`
}

// ContentHash computes a stable fingerprint of a staged row's semantic
// fields, used to detect re-import of the same data across statements
func ContentHash(bankAccountID string, date time.Time, description string, amount decimal.Decimal) string {
	payload := strings.Join([]string{
		bankAccountID,
		date.Format(DateLayout),
		description,
		amount.String(),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// ParseAmount parses a decimal amount from a CSV field, tolerating common
// currency symbols and thousand separators
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// dateFormats are the calendar-date formats accepted in statement files
var dateFormats = []string{
	DateLayout,            // "2006-01-02"
	time.RFC3339,          // "2006-01-02T15:04:05Z07:00"
	"2006-01-02 15:04:05", // "2006-01-02 15:04:05"
	"02/01/2006",          // "02/01/2006"
	"01/02/2006",          // "01/02/2006"
	"02-01-2006",          // "02-01-2006"
	"2006/01/02",          // "2006/01/02"
	"Jan 2, 2006",         // "Jan 2, 2006"
	"January 2, 2006",     // "January 2, 2006"
}

// ParseDate attempts to parse a calendar date from a string using multiple
// common statement formats. The result is truncated to a date in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	var lastErr error
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			year, month, day := t.Date()
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// DateOnly truncates a time to its calendar date in UTC
func DateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
