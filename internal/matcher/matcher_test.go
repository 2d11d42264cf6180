package matcher

import (
	"context"
	"testing"
	"time"

	"finance-ledger-service/internal/models"
	"finance-ledger-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// fakeLedger is an in-memory LedgerSearcher
type fakeLedger struct {
	transactions []*models.Transaction
}

func (f *fakeLedger) FindUnmatchedInWindow(ctx context.Context, userID, bankAccountID string, from, to time.Time) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, txn := range f.transactions {
		if txn.UserID != userID || txn.BankAccountID != bankAccountID {
			continue
		}
		if txn.TransactionDate.Before(from) || txn.TransactionDate.After(to) {
			continue
		}
		out = append(out, txn)
	}
	return out, nil
}

func testDate(day int) time.Time {
	return time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC)
}

func createTestLedgerTransaction(id string, day int, amount float64, description string) *models.Transaction {
	return &models.Transaction{
		ID:              id,
		UserID:          "user-1",
		BankAccountID:   "acc-1",
		Description:     description,
		Amount:          decimal.NewFromFloat(amount),
		Type:            models.TypeForAmount(decimal.NewFromFloat(amount)),
		TransactionDate: testDate(day),
	}
}

func createTestStaged(day int, amount float64, description string) *models.StagedTransaction {
	return models.NewStagedTransaction("user-1", "acc-1", "imp-1",
		testDate(day), description, decimal.NewFromFloat(amount), nil)
}

func newTestEngine(t *testing.T, ledger LedgerSearcher) *Engine {
	t.Helper()
	engine, err := NewEngine(nil, ledger, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestEvaluateSingleMatchWithinTolerances(t *testing.T) {
	ledger := &fakeLedger{transactions: []*models.Transaction{
		createTestLedgerTransaction("tx-1", 13, 100.02, "GROCERY STORE"),
	}}
	engine := newTestEngine(t, ledger)

	// Staged on day 10, ledger entry on day 13 (within ±7) with amount
	// differing by 0.02 (within ±0.05).
	staged := createTestStaged(10, 100.00, "GROCERY")

	outcome, err := engine.Evaluate(context.Background(), staged)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeSingleMatch {
		t.Fatalf("expected SingleMatch, got %s", outcome.Kind)
	}
	if outcome.Match.ID != "tx-1" {
		t.Errorf("unexpected match: %s", outcome.Match.ID)
	}
}

func TestEvaluateNoMatchOutsideAmountTolerance(t *testing.T) {
	ledger := &fakeLedger{transactions: []*models.Transaction{
		createTestLedgerTransaction("tx-1", 10, 105.00, "GROCERY STORE"),
	}}
	engine := newTestEngine(t, ledger)

	staged := createTestStaged(10, 100.00, "GROCERY")

	outcome, err := engine.Evaluate(context.Background(), staged)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeNoMatch {
		t.Errorf("expected NoMatch, got %s", outcome.Kind)
	}
}

func TestEvaluateNoMatchOutsideDateWindow(t *testing.T) {
	ledger := &fakeLedger{transactions: []*models.Transaction{
		createTestLedgerTransaction("tx-1", 20, 100.00, "GROCERY STORE"),
	}}
	engine := newTestEngine(t, ledger)

	staged := createTestStaged(10, 100.00, "GROCERY")

	outcome, err := engine.Evaluate(context.Background(), staged)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeNoMatch {
		t.Errorf("expected NoMatch for a 10-day distance, got %s", outcome.Kind)
	}
}

func TestEvaluateAmbiguousMatches(t *testing.T) {
	ledger := &fakeLedger{transactions: []*models.Transaction{
		createTestLedgerTransaction("tx-1", 9, 100.00, "PAYMENT ONE"),
		createTestLedgerTransaction("tx-2", 11, 100.00, "PAYMENT TWO"),
	}}
	engine := newTestEngine(t, ledger)

	staged := createTestStaged(10, 100.00, "TRANSFER")

	outcome, err := engine.Evaluate(context.Background(), staged)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeAmbiguousMatches {
		t.Fatalf("expected AmbiguousMatches, got %s", outcome.Kind)
	}
	if len(outcome.Candidates) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(outcome.Candidates))
	}
}

func TestEvaluateDescriptionNarrowsToSingle(t *testing.T) {
	ledger := &fakeLedger{transactions: []*models.Transaction{
		createTestLedgerTransaction("tx-1", 10, 50.00, "ACME UTILITIES DIRECT DEBIT"),
		createTestLedgerTransaction("tx-2", 10, 50.00, "UNRELATED PAYMENT"),
	}}
	engine := newTestEngine(t, ledger)

	staged := createTestStaged(10, 50.00, "acme utilities")

	outcome, err := engine.Evaluate(context.Background(), staged)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeSingleMatch {
		t.Fatalf("expected description narrowing to promote a single match, got %s", outcome.Kind)
	}
	if outcome.Match.ID != "tx-1" {
		t.Errorf("unexpected match: %s", outcome.Match.ID)
	}
}

func TestEvaluateDescriptionContainedInBothStaysAmbiguous(t *testing.T) {
	ledger := &fakeLedger{transactions: []*models.Transaction{
		createTestLedgerTransaction("tx-1", 10, 50.00, "ACME PAYMENT MARCH"),
		createTestLedgerTransaction("tx-2", 10, 50.00, "ACME PAYMENT APRIL"),
	}}
	engine := newTestEngine(t, ledger)

	staged := createTestStaged(10, 50.00, "ACME PAYMENT")

	outcome, err := engine.Evaluate(context.Background(), staged)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeAmbiguousMatches {
		t.Errorf("expected AmbiguousMatches when both descriptions contain the needle, got %s", outcome.Kind)
	}
}

func TestEvaluateCandidatesOrderedByProximity(t *testing.T) {
	ledger := &fakeLedger{transactions: []*models.Transaction{
		createTestLedgerTransaction("tx-far", 16, 100.00, "A"),
		createTestLedgerTransaction("tx-near", 11, 100.00, "B"),
		createTestLedgerTransaction("tx-mid", 13, 100.00, "C"),
	}}
	engine := newTestEngine(t, ledger)

	staged := createTestStaged(10, 100.00, "")

	outcome, err := engine.Evaluate(context.Background(), staged)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeAmbiguousMatches {
		t.Fatalf("expected AmbiguousMatches, got %s", outcome.Kind)
	}

	expected := []string{"tx-near", "tx-mid", "tx-far"}
	for i, want := range expected {
		if outcome.Candidates[i].ID != want {
			t.Errorf("position %d: got %s, expected %s", i, outcome.Candidates[i].ID, want)
		}
	}
}

func TestEvaluateCandidateCapRespected(t *testing.T) {
	config := &MatchConfig{
		DateWindowDays:  7,
		AmountTolerance: decimal.NewFromFloat(0.05),
		MaxCandidates:   2,
	}

	ledger := &fakeLedger{transactions: []*models.Transaction{
		createTestLedgerTransaction("tx-1", 9, 100.00, "A"),
		createTestLedgerTransaction("tx-2", 11, 100.00, "B"),
		createTestLedgerTransaction("tx-3", 13, 100.00, "C"),
	}}

	engine, err := NewEngine(config, ledger, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	outcome, err := engine.Evaluate(context.Background(), createTestStaged(10, 100.00, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Candidates) != 2 {
		t.Errorf("expected candidate set capped at 2, got %d", len(outcome.Candidates))
	}
}

func TestMatchConfigValidate(t *testing.T) {
	if err := DefaultMatchConfig().Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
	if err := StrictMatchConfig().Validate(); err != nil {
		t.Errorf("strict config must validate: %v", err)
	}

	bad := &MatchConfig{DateWindowDays: -1, MaxCandidates: 5}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative date window")
	}

	bad = &MatchConfig{DateWindowDays: 7, AmountTolerance: decimal.NewFromFloat(-0.05), MaxCandidates: 5}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative amount tolerance")
	}
}
