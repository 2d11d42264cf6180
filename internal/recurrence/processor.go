package recurrence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finance-ledger-service/internal/models"
	"finance-ledger-service/pkg/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the processor needs. Materialize must
// write the new ledger transaction and the recurring record's advancement
// atomically: a failure may never leave the due date advanced without the
// transaction existing, or vice versa.
type Store interface {
	// ListDueRecurring returns active recurring transactions whose next due
	// date is on or before target and whose end date is unset or on/after
	// target
	ListDueRecurring(ctx context.Context, target time.Time) ([]*models.RecurringTransaction, error)

	// Materialize persists the ledger transaction and the updated recurring
	// record in one database transaction
	Materialize(ctx context.Context, rec *models.RecurringTransaction, txn *models.Transaction) error
}

// ProcessFailure records one recurring transaction that failed to process
type ProcessFailure struct {
	RecurringTransactionID string `json:"recurring_transaction_id"`
	Message                string `json:"message"`
}

// ProcessRunSummary reports the outcome of one scheduled processing run
type ProcessRunSummary struct {
	TargetDate time.Time        `json:"target_date"`
	Due        int              `json:"due"`
	Processed  int              `json:"processed"`
	Completed  int              `json:"completed"`
	Failed     int              `json:"failed"`
	Failures   []ProcessFailure `json:"failures,omitempty"`
}

// String returns a human-readable summary of the run
func (s *ProcessRunSummary) String() string {
	out := fmt.Sprintf("processed %d of %d due recurring transactions (%d series completed, %d failed)",
		s.Processed, s.Due, s.Completed, s.Failed)
	if len(s.Failures) > 0 {
		var msgs []string
		for _, f := range s.Failures {
			msgs = append(msgs, fmt.Sprintf("%s: %s", f.RecurringTransactionID, f.Message))
		}
		out += "; failures: " + strings.Join(msgs, ", ")
	}
	return out
}

// Processor materializes due recurring transactions into ledger entries
type Processor struct {
	store  Store
	logger logger.Logger
}

// NewProcessor creates a recurrence processor backed by the given store
func NewProcessor(store Store, log logger.Logger) *Processor {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Processor{
		store:  store,
		logger: log.WithComponent("recurrence"),
	}
}

// ProcessDue runs one scheduled pass: every active recurring transaction due
// on or before target is materialized into a ledger transaction and advanced
// to its next occurrence. Records are processed independently; one failure
// is recorded in the summary and never aborts the others.
func (p *Processor) ProcessDue(ctx context.Context, target time.Time) (*ProcessRunSummary, error) {
	target = models.DateOnly(target)

	due, err := p.store.ListDueRecurring(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("list due recurring transactions: %w", err)
	}

	summary := &ProcessRunSummary{TargetDate: target, Due: len(due)}

	for _, rec := range due {
		if err := p.processOne(ctx, rec, target, summary); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, ProcessFailure{
				RecurringTransactionID: rec.ID,
				Message:                err.Error(),
			})
			p.logger.WithError(err).WithField("recurring_transaction_id", rec.ID).
				Error("failed to process recurring transaction")
		}
	}

	p.logger.WithFields(logger.Fields{
		"target":    target.Format(models.DateLayout),
		"due":       summary.Due,
		"processed": summary.Processed,
		"completed": summary.Completed,
		"failed":    summary.Failed,
	}).Info("recurrence run finished")

	return summary, nil
}

// processOne materializes a single due occurrence and advances the series
func (p *Processor) processOne(ctx context.Context, rec *models.RecurringTransaction, target time.Time, summary *ProcessRunSummary) error {
	if !rec.Frequency.IsValid() {
		p.logger.WithFields(logger.Fields{
			"recurring_transaction_id": rec.ID,
			"frequency":                rec.Frequency.String(),
		}).Warn("unrecognized frequency, falling back to monthly")
	}

	dueDate := models.DateOnly(rec.NextDueDate)

	txn := &models.Transaction{
		ID:              uuid.NewString(),
		UserID:          rec.UserID,
		Description:     rec.Description,
		Amount:          rec.Amount,
		Type:            rec.Type,
		CategoryID:      rec.CategoryID,
		TransactionDate: dueDate,
		CreatedAt:       time.Now().UTC(),
	}

	next := NextDueDate(rec.Frequency, dueDate)
	rec.NextDueDate = next
	rec.LastProcessedDate = &target

	if rec.EndDate != nil && next.After(models.DateOnly(*rec.EndDate)) {
		rec.Status = models.RecurringStatusCompleted
	}

	if err := p.store.Materialize(ctx, rec, txn); err != nil {
		return err
	}

	summary.Processed++
	if rec.Status == models.RecurringStatusCompleted {
		summary.Completed++
	}

	return nil
}
