// Package matcher implements duplicate detection for staged transactions.
//
// Each newly staged row is compared against the user's existing ledger
// transactions for the same bank account within a date window and an amount
// tolerance. The outcome is a tagged variant so callers branch explicitly:
//
//   - NoMatch: no candidate satisfies the criteria
//   - SingleMatch: exactly one unlinked candidate; the staged row should be
//     flagged as a potential duplicate with that suggestion
//   - AmbiguousMatches: multiple candidates; the row stays pending review and
//     the set is surfaced for manual disambiguation
//
// When multiple candidates fall inside the tolerances, case-insensitive
// description containment is used to narrow the set; it promotes a single
// match only when exactly one candidate's description contains the staged
// row's description.
//
// The engine is advisory only: it never mutates or persists anything.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"finance-ledger-service/internal/models"
	"finance-ledger-service/pkg/logger"
)

// OutcomeKind tags the variant of a MatchOutcome
type OutcomeKind int

const (
	// OutcomeNoMatch means no ledger transaction satisfied the criteria
	OutcomeNoMatch OutcomeKind = iota
	// OutcomeSingleMatch means exactly one candidate was found
	OutcomeSingleMatch
	// OutcomeAmbiguousMatches means multiple candidates remain after ranking
	OutcomeAmbiguousMatches
)

// String returns the string representation of OutcomeKind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNoMatch:
		return "NoMatch"
	case OutcomeSingleMatch:
		return "SingleMatch"
	case OutcomeAmbiguousMatches:
		return "AmbiguousMatches"
	default:
		return "Unknown"
	}
}

// MatchOutcome is the tagged result of evaluating one staged transaction.
// Match is set only for OutcomeSingleMatch; Candidates only for
// OutcomeAmbiguousMatches.
type MatchOutcome struct {
	Kind       OutcomeKind
	Match      *models.Transaction
	Candidates []*models.Transaction
}

// LedgerSearcher is the query surface the engine needs from persistence
type LedgerSearcher interface {
	// FindUnmatchedInWindow returns the user's ledger transactions for the
	// bank account dated within [from, to] that are not already linked to a
	// staged transaction
	FindUnmatchedInWindow(ctx context.Context, userID, bankAccountID string, from, to time.Time) ([]*models.Transaction, error)
}

// Engine evaluates staged transactions against the ledger
type Engine struct {
	config *MatchConfig
	ledger LedgerSearcher
	logger logger.Logger
}

// NewEngine creates a matching engine with the specified configuration
func NewEngine(config *MatchConfig, ledger LedgerSearcher, log logger.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultMatchConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid match configuration: %w", err)
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger searcher is required")
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Engine{
		config: config,
		ledger: ledger,
		logger: log.WithComponent("matcher"),
	}, nil
}

// Config returns a copy of the engine's configuration
func (e *Engine) Config() *MatchConfig {
	return e.config.Clone()
}

// Evaluate classifies one staged transaction against the existing ledger
func (e *Engine) Evaluate(ctx context.Context, staged *models.StagedTransaction) (MatchOutcome, error) {
	from, to := e.config.WindowAround(staged.TransactionDate)

	inWindow, err := e.ledger.FindUnmatchedInWindow(ctx, staged.UserID, staged.BankAccountID, from, to)
	if err != nil {
		return MatchOutcome{}, fmt.Errorf("search ledger for candidates: %w", err)
	}

	var candidates []*models.Transaction
	for _, txn := range inWindow {
		if e.config.WithinAmountTolerance(txn.Amount, staged.Amount) {
			candidates = append(candidates, txn)
		}
	}

	switch len(candidates) {
	case 0:
		return MatchOutcome{Kind: OutcomeNoMatch}, nil
	case 1:
		return MatchOutcome{Kind: OutcomeSingleMatch, Match: candidates[0]}, nil
	}

	// Multiple candidates: try description containment before giving up.
	if narrowed := narrowByDescription(candidates, staged.Description); narrowed != nil {
		return MatchOutcome{Kind: OutcomeSingleMatch, Match: narrowed}, nil
	}

	sortByProximity(candidates, staged)
	if len(candidates) > e.config.MaxCandidates {
		candidates = candidates[:e.config.MaxCandidates]
	}

	e.logger.WithFields(logger.Fields{
		"staged_transaction_id": staged.ID,
		"candidates":            len(candidates),
	}).Debug("ambiguous match outcome")

	return MatchOutcome{Kind: OutcomeAmbiguousMatches, Candidates: candidates}, nil
}

// narrowByDescription returns the single candidate whose description
// contains the staged description (case-insensitive), or nil when zero or
// several candidates qualify
func narrowByDescription(candidates []*models.Transaction, description string) *models.Transaction {
	needle := strings.ToLower(strings.TrimSpace(description))
	if needle == "" {
		return nil
	}

	var found *models.Transaction
	for _, txn := range candidates {
		if strings.Contains(strings.ToLower(txn.Description), needle) {
			if found != nil {
				return nil
			}
			found = txn
		}
	}
	return found
}

// sortByProximity orders candidates by date distance to the staged row,
// breaking ties by amount difference
func sortByProximity(candidates []*models.Transaction, staged *models.StagedTransaction) {
	sort.SliceStable(candidates, func(i, j int) bool {
		di := absDuration(candidates[i].TransactionDate.Sub(staged.TransactionDate))
		dj := absDuration(candidates[j].TransactionDate.Sub(staged.TransactionDate))
		if di != dj {
			return di < dj
		}
		ai := candidates[i].Amount.Sub(staged.Amount).Abs()
		aj := candidates[j].Amount.Sub(staged.Amount).Abs()
		return ai.LessThan(aj)
	})
}

// absDuration returns the absolute value of a duration
func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
