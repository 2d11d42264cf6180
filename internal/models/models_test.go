package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"100.50", "100.5", false},
		{"-42.00", "-42", false},
		{"$1,234.56", "1234.56", false},
		{" 99.99 ", "99.99", false},
		{"0", "0", false},
		{"", "", true},
		{"abc", "", true},
		{"12.34.56", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q): expected error, got %s", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got.String() != tt.expected {
			t.Errorf("ParseAmount(%q) = %s, expected %s", tt.input, got, tt.expected)
		}
	}
}

func TestParseDate(t *testing.T) {
	expected := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	inputs := []string{
		"2025-03-15",
		"2025-03-15T08:30:00Z",
		"2025/03/15",
		"15/03/2025",
		"Mar 15, 2025",
	}
	for _, input := range inputs {
		got, err := ParseDate(input)
		if err != nil {
			t.Errorf("ParseDate(%q): unexpected error: %v", input, err)
			continue
		}
		if !got.Equal(expected) {
			t.Errorf("ParseDate(%q) = %s, expected %s", input, got, expected)
		}
	}

	if _, err := ParseDate(""); err == nil {
		t.Error("expected error for empty date string")
	}
	if _, err := ParseDate("not a date"); err == nil {
		t.Error("expected error for unparseable date string")
	}
}

func TestParseDateTruncatesToUTCDate(t *testing.T) {
	got, err := ParseDate("2025-03-15T23:45:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 0 || got.Minute() != 0 || got.Location() != time.UTC {
		t.Errorf("expected date truncated to UTC midnight, got %s", got)
	}
}

func TestTypeForAmount(t *testing.T) {
	if got := TypeForAmount(decimal.NewFromFloat(-12.50)); got != TransactionTypeExpense {
		t.Errorf("negative amount: got %s, expected expense", got)
	}
	if got := TypeForAmount(decimal.NewFromFloat(12.50)); got != TransactionTypeIncome {
		t.Errorf("positive amount: got %s, expected income", got)
	}
	if got := TypeForAmount(decimal.Zero); got != TransactionTypeIncome {
		t.Errorf("zero amount: got %s, expected income", got)
	}
}

func TestContentHashStability(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromFloat(-45.90)

	h1 := ContentHash("acc-1", date, "COFFEE SHOP", amount)
	h2 := ContentHash("acc-1", date, "COFFEE SHOP", amount)
	if h1 != h2 {
		t.Error("identical inputs must produce identical hashes")
	}

	if ContentHash("acc-2", date, "COFFEE SHOP", amount) == h1 {
		t.Error("different account must produce a different hash")
	}
	if ContentHash("acc-1", date.AddDate(0, 0, 1), "COFFEE SHOP", amount) == h1 {
		t.Error("different date must produce a different hash")
	}
	if ContentHash("acc-1", date, "COFFEE SHOP", decimal.NewFromFloat(-45.91)) == h1 {
		t.Error("different amount must produce a different hash")
	}
}

func TestNewStagedTransaction(t *testing.T) {
	date := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromFloat(-20)
	raw := []string{"2025-02-01", "LUNCH", "-20.00"}

	st := NewStagedTransaction("user-1", "acc-1", "imp-1", date, "LUNCH", amount, raw)

	if st.ID == "" {
		t.Error("expected a generated id")
	}
	if st.Status != StagedStatusPendingReview {
		t.Errorf("expected pending_review, got %s", st.Status)
	}
	if st.ContentHash != ContentHash("acc-1", date, "LUNCH", amount) {
		t.Error("content hash mismatch")
	}
	if st.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestStagedStatusIsTerminal(t *testing.T) {
	terminal := []StagedStatus{StagedStatusImported, StagedStatusIgnored}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	open := []StagedStatus{StagedStatusPendingReview, StagedStatusPotentialDuplicate}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("expected %s to not be terminal", s)
		}
	}
}

func TestRecurringTransactionValidate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, -1, 0)

	rt := &RecurringTransaction{
		UserID:    "user-1",
		Type:      TransactionTypeExpense,
		StartDate: start,
	}
	if err := rt.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	rt.EndDate = &end
	if err := rt.Validate(); err == nil {
		t.Error("expected error for end date before start date")
	}
}
