// Package errors provides the application error taxonomy for the finance
// ledger service.
//
// All domain errors are represented by LedgerError, which carries a category,
// a machine-readable code, optional context (row numbers, field names,
// offending values) and an optional suggestion shown to CLI users. Specific
// conditions defined by the import and review workflows have dedicated
// constructors and predicates:
//
//   - MalformedFileError: the uploaded statement could not be read or parsed
//   - InvalidMappingError: a column mapping failed validation
//   - DuplicateImportError: the same file was already imported for the account
//   - AlreadyResolvedError: a transition was attempted on a terminal staged row
//   - ConflictingMatchError: the manual-match target is linked elsewhere
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile       ErrorCategory = "file"
	CategoryParse      ErrorCategory = "parse"
	CategoryValidation ErrorCategory = "validation"
	CategoryImport     ErrorCategory = "import"
	CategoryReview     ErrorCategory = "review"
	CategoryRecurrence ErrorCategory = "recurrence"
	CategoryStorage    ErrorCategory = "storage"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound  ErrorCode = "file_not_found"
	CodeMalformedFile ErrorCode = "malformed_file"

	// Parse errors
	CodeInvalidData ErrorCode = "invalid_data"
	CodeInvalidDate ErrorCode = "invalid_date"

	// Validation errors
	CodeInvalidMapping ErrorCode = "invalid_mapping"
	CodeInvalidAmount  ErrorCode = "invalid_amount"
	CodeMissingField   ErrorCode = "missing_field"
	CodeNotFound       ErrorCode = "not_found"
	CodeWrongOwner     ErrorCode = "wrong_owner"

	// Import errors
	CodeDuplicateImport ErrorCode = "duplicate_import"
	CodeImportState     ErrorCode = "import_state"

	// Review errors
	CodeAlreadyResolved  ErrorCode = "already_resolved"
	CodeConflictingMatch ErrorCode = "conflicting_match"

	// Recurrence errors
	CodeSeriesCompleted ErrorCode = "series_completed"

	// Storage errors
	CodeQueryFailed      ErrorCode = "query_failed"
	CodeConstraintFailed ErrorCode = "constraint_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// LedgerError is the base error type for all application errors
type LedgerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *LedgerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryImport, CategoryReview:
		return 4
	case CategoryRecurrence, CategoryStorage, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *LedgerError) WithContext(key string, value interface{}) *LedgerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *LedgerError) WithSuggestion(suggestion string) *LedgerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LedgerError
func New(category ErrorCategory, code ErrorCode, message string) *LedgerError {
	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with LedgerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}

	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// AsLedgerError attempts to extract a LedgerError from an error chain
func AsLedgerError(err error) (*LedgerError, bool) {
	for err != nil {
		if ledgerErr, ok := err.(*LedgerError); ok {
			return ledgerErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}

// hasCode reports whether err is a LedgerError with the given code
func hasCode(err error, code ErrorCode) bool {
	ledgerErr, ok := AsLedgerError(err)
	return ok && ledgerErr.Code == code
}

// NewMalformedFileError creates an error for an unreadable or unparseable upload
func NewMalformedFileError(fileName string, cause error) *LedgerError {
	message := fmt.Sprintf("statement file '%s' could not be parsed", fileName)
	var e *LedgerError
	if cause != nil {
		e = Wrap(cause, CategoryFile, CodeMalformedFile, message)
	} else {
		e = New(CategoryFile, CodeMalformedFile, message)
	}
	return e.WithContext("file", fileName).
		WithSuggestion("verify the file is a CSV export with a single header row")
}

// IsMalformedFile reports whether err represents a malformed statement file
func IsMalformedFile(err error) bool {
	return hasCode(err, CodeMalformedFile)
}

// NewInvalidMappingError creates an error for a column mapping that failed
// validation. fieldErrors holds one message list per offending mapping field
// so the caller can surface every problem at once.
func NewInvalidMappingError(fieldErrors map[string][]string) *LedgerError {
	var parts []string
	for field, msgs := range fieldErrors {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, "; ")))
	}
	e := New(CategoryValidation, CodeInvalidMapping,
		fmt.Sprintf("column mapping is invalid: %s", strings.Join(parts, ", ")))
	return e.WithContext("field_errors", fieldErrors).
		WithSuggestion("map each field to a column name present in the file header")
}

// IsInvalidMapping reports whether err represents a rejected column mapping
func IsInvalidMapping(err error) bool {
	return hasCode(err, CodeInvalidMapping)
}

// NewDuplicateImportError creates an error for re-uploading an already
// imported statement file
func NewDuplicateImportError(bankAccountID, fileHash string) *LedgerError {
	e := New(CategoryImport, CodeDuplicateImport,
		"an identical statement file was already imported for this bank account")
	return e.WithContext("bank_account_id", bankAccountID).
		WithContext("file_hash", fileHash).
		WithSuggestion("review the existing import instead of uploading the file again")
}

// IsDuplicateImport reports whether err represents a duplicate file upload
func IsDuplicateImport(err error) bool {
	return hasCode(err, CodeDuplicateImport)
}

// NewAlreadyResolvedError creates an error for a state transition attempted
// on a staged transaction that is already terminal
func NewAlreadyResolvedError(stagedID, status string) *LedgerError {
	e := New(CategoryReview, CodeAlreadyResolved,
		fmt.Sprintf("staged transaction %s is already resolved (status %s)", stagedID, status))
	return e.WithContext("staged_transaction_id", stagedID).
		WithContext("status", status)
}

// IsAlreadyResolved reports whether err represents a transition on a terminal row
func IsAlreadyResolved(err error) bool {
	return hasCode(err, CodeAlreadyResolved)
}

// NewConflictingMatchError creates an error for a manual match whose target
// ledger transaction is already linked to a different staged row
func NewConflictingMatchError(transactionID, linkedStagedID string) *LedgerError {
	e := New(CategoryReview, CodeConflictingMatch,
		fmt.Sprintf("ledger transaction %s is already matched to staged transaction %s",
			transactionID, linkedStagedID))
	return e.WithContext("transaction_id", transactionID).
		WithContext("linked_staged_transaction_id", linkedStagedID).
		WithSuggestion("unmatch the other staged transaction first, or pick a different target")
}

// IsConflictingMatch reports whether err represents a contested manual match
func IsConflictingMatch(err error) bool {
	return hasCode(err, CodeConflictingMatch)
}

// NewNotFoundError creates an error for a missing entity
func NewNotFoundError(entity, id string) *LedgerError {
	e := New(CategoryValidation, CodeNotFound, fmt.Sprintf("%s %s not found", entity, id))
	return e.WithContext("entity", entity).WithContext("id", id)
}

// IsNotFound reports whether err represents a missing entity
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}
