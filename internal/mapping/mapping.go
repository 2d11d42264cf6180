// Package mapping defines the user-supplied column mapping that connects a
// statement file's headers to the semantic fields the staging projector
// needs: transaction date, optional description, and either a single signed
// amount column or a separate debit/credit pair.
//
// Validation is a closed pass: every offending field is collected into a
// ValidationResult so the caller can surface all errors at once instead of
// fixing them one round trip at a time.
package mapping

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AmountType selects how amounts are represented in the source file
type AmountType string

const (
	// AmountTypeSingle means one signed amount column (positive=credit, negative=debit)
	AmountTypeSingle AmountType = "single"
	// AmountTypeSeparate means distinct debit and credit magnitude columns
	AmountTypeSeparate AmountType = "separate"
)

// IsValid checks if the amount type is valid
func (a AmountType) IsValid() bool {
	return a == AmountTypeSingle || a == AmountTypeSeparate
}

// Mapping field names used in validation results
const (
	FieldTransactionDateColumn = "transaction_date_column"
	FieldDescriptionColumn     = "description_column"
	FieldAmountType            = "amount_type"
	FieldAmountColumn          = "amount_column"
	FieldDebitAmountColumn     = "debit_amount_column"
	FieldCreditAmountColumn    = "credit_amount_column"
)

// ColumnMapping maps semantic fields to raw CSV column names. Column names
// are matched exactly (case-sensitive) against the file's original headers.
type ColumnMapping struct {
	TransactionDateColumn string     `json:"transaction_date_column"`
	DescriptionColumn     string     `json:"description_column,omitempty"`
	AmountType            AmountType `json:"amount_type"`
	AmountColumn          string     `json:"amount_column,omitempty"`
	DebitAmountColumn     string     `json:"debit_amount_column,omitempty"`
	CreditAmountColumn    string     `json:"credit_amount_column,omitempty"`
}

// FieldError describes a single validation problem with a mapping field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult collects every field error found during a validation pass
type ValidationResult struct {
	Errors []FieldError `json:"errors"`
}

// Valid reports whether the validation pass found no errors
func (vr *ValidationResult) Valid() bool {
	return len(vr.Errors) == 0
}

// Add records a field error
func (vr *ValidationResult) Add(field, message string) {
	vr.Errors = append(vr.Errors, FieldError{Field: field, Message: message})
}

// FieldErrors returns the errors grouped by field name
func (vr *ValidationResult) FieldErrors() map[string][]string {
	out := make(map[string][]string, len(vr.Errors))
	for _, fe := range vr.Errors {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// String returns a human-readable summary of the validation result
func (vr *ValidationResult) String() string {
	if vr.Valid() {
		return "mapping is valid"
	}
	parts := make([]string, 0, len(vr.Errors))
	for _, fe := range vr.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(parts, "; ")
}

// Validate checks the mapping against the file's original headers, collecting
// every problem: unknown column references, missing mode-required fields, and
// fields supplied for the wrong amount mode.
func (cm *ColumnMapping) Validate(headers []string) *ValidationResult {
	result := &ValidationResult{}
	headerSet := make(map[string]bool, len(headers))
	for _, h := range headers {
		headerSet[h] = true
	}

	if strings.TrimSpace(cm.TransactionDateColumn) == "" {
		result.Add(FieldTransactionDateColumn, "is required")
	} else if !headerSet[cm.TransactionDateColumn] {
		result.Add(FieldTransactionDateColumn,
			fmt.Sprintf("column '%s' is not present in the file headers", cm.TransactionDateColumn))
	}

	if cm.DescriptionColumn != "" && !headerSet[cm.DescriptionColumn] {
		result.Add(FieldDescriptionColumn,
			fmt.Sprintf("column '%s' is not present in the file headers", cm.DescriptionColumn))
	}

	switch cm.AmountType {
	case AmountTypeSingle:
		if strings.TrimSpace(cm.AmountColumn) == "" {
			result.Add(FieldAmountColumn, "is required when amount_type is 'single'")
		} else if !headerSet[cm.AmountColumn] {
			result.Add(FieldAmountColumn,
				fmt.Sprintf("column '%s' is not present in the file headers", cm.AmountColumn))
		}
		if cm.DebitAmountColumn != "" {
			result.Add(FieldDebitAmountColumn, "must not be set when amount_type is 'single'")
		}
		if cm.CreditAmountColumn != "" {
			result.Add(FieldCreditAmountColumn, "must not be set when amount_type is 'single'")
		}

	case AmountTypeSeparate:
		if strings.TrimSpace(cm.DebitAmountColumn) == "" {
			result.Add(FieldDebitAmountColumn, "is required when amount_type is 'separate'")
		} else if !headerSet[cm.DebitAmountColumn] {
			result.Add(FieldDebitAmountColumn,
				fmt.Sprintf("column '%s' is not present in the file headers", cm.DebitAmountColumn))
		}
		if strings.TrimSpace(cm.CreditAmountColumn) == "" {
			result.Add(FieldCreditAmountColumn, "is required when amount_type is 'separate'")
		} else if !headerSet[cm.CreditAmountColumn] {
			result.Add(FieldCreditAmountColumn,
				fmt.Sprintf("column '%s' is not present in the file headers", cm.CreditAmountColumn))
		}
		if cm.DebitAmountColumn != "" && cm.DebitAmountColumn == cm.CreditAmountColumn {
			result.Add(FieldCreditAmountColumn, "must differ from debit_amount_column")
		}
		if cm.AmountColumn != "" {
			result.Add(FieldAmountColumn, "must not be set when amount_type is 'separate'")
		}

	default:
		result.Add(FieldAmountType,
			fmt.Sprintf("must be '%s' or '%s'", AmountTypeSingle, AmountTypeSeparate))
	}

	return result
}

// ColumnIndexes holds the resolved positions of mapped columns within a
// header row. Unmapped optional columns are -1.
type ColumnIndexes struct {
	Date        int
	Description int
	Amount      int
	Debit       int
	Credit      int
}

// ResolveIndexes resolves the mapping's column names to positions in the
// given header row. The mapping must have been validated against the same
// headers beforehand.
func (cm *ColumnMapping) ResolveIndexes(headers []string) (*ColumnIndexes, error) {
	idx := &ColumnIndexes{Date: -1, Description: -1, Amount: -1, Debit: -1, Credit: -1}

	find := func(name string) int {
		for i, h := range headers {
			if h == name {
				return i
			}
		}
		return -1
	}

	idx.Date = find(cm.TransactionDateColumn)
	if idx.Date < 0 {
		return nil, fmt.Errorf("transaction date column '%s' not found in headers", cm.TransactionDateColumn)
	}

	if cm.DescriptionColumn != "" {
		idx.Description = find(cm.DescriptionColumn)
		if idx.Description < 0 {
			return nil, fmt.Errorf("description column '%s' not found in headers", cm.DescriptionColumn)
		}
	}

	switch cm.AmountType {
	case AmountTypeSingle:
		idx.Amount = find(cm.AmountColumn)
		if idx.Amount < 0 {
			return nil, fmt.Errorf("amount column '%s' not found in headers", cm.AmountColumn)
		}
	case AmountTypeSeparate:
		idx.Debit = find(cm.DebitAmountColumn)
		idx.Credit = find(cm.CreditAmountColumn)
		if idx.Debit < 0 {
			return nil, fmt.Errorf("debit amount column '%s' not found in headers", cm.DebitAmountColumn)
		}
		if idx.Credit < 0 {
			return nil, fmt.Errorf("credit amount column '%s' not found in headers", cm.CreditAmountColumn)
		}
	default:
		return nil, fmt.Errorf("invalid amount type '%s'", cm.AmountType)
	}

	return idx, nil
}

// MarshalString serializes the mapping to its canonical JSON form for storage
func (cm *ColumnMapping) MarshalString() (string, error) {
	data, err := json.Marshal(cm)
	if err != nil {
		return "", fmt.Errorf("marshal column mapping: %w", err)
	}
	return string(data), nil
}

// UnmarshalString restores a mapping from its stored JSON form
func UnmarshalString(s string) (*ColumnMapping, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("column mapping is empty")
	}
	var cm ColumnMapping
	if err := json.Unmarshal([]byte(s), &cm); err != nil {
		return nil, fmt.Errorf("unmarshal column mapping: %w", err)
	}
	return &cm, nil
}
