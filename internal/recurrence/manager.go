package recurrence

import (
	"context"
	"fmt"
	"time"

	"finance-ledger-service/internal/models"
	apperrors "finance-ledger-service/pkg/errors"
	"finance-ledger-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ManagerStore is the persistence surface for recurring-series management
type ManagerStore interface {
	CreateRecurring(ctx context.Context, rec *models.RecurringTransaction) error
	GetRecurring(ctx context.Context, id string) (*models.RecurringTransaction, error)
	UpdateRecurring(ctx context.Context, rec *models.RecurringTransaction) error
}

// Manager handles the lifecycle of recurring transaction series: creation,
// pausing and resuming. Materialization of due occurrences is the Processor's
// job.
type Manager struct {
	store  ManagerStore
	logger logger.Logger
}

// NewManager creates a recurring-series manager backed by the given store
func NewManager(store ManagerStore, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Manager{
		store:  store,
		logger: log.WithComponent("recurrence"),
	}
}

// CreateParams describes a new recurring transaction series
type CreateParams struct {
	UserID      string
	Description string
	Amount      decimal.Decimal
	Type        models.TransactionType
	CategoryID  string
	Frequency   models.Frequency
	StartDate   time.Time
	EndDate     *time.Time
}

// Create validates and persists a new active recurring series. The first
// occurrence is due on the start date itself.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*models.RecurringTransaction, error) {
	if !p.Frequency.IsValid() {
		return nil, apperrors.New(apperrors.CategoryValidation, apperrors.CodeInvalidData,
			fmt.Sprintf("invalid frequency '%s'", p.Frequency)).
			WithSuggestion("use one of: daily, weekly, biweekly, monthly, quarterly, annually")
	}

	start := models.DateOnly(p.StartDate)
	var end *time.Time
	if p.EndDate != nil {
		e := models.DateOnly(*p.EndDate)
		end = &e
	}

	rec := &models.RecurringTransaction{
		ID:          uuid.NewString(),
		UserID:      p.UserID,
		Description: p.Description,
		Amount:      p.Amount,
		Type:        p.Type,
		CategoryID:  p.CategoryID,
		Frequency:   p.Frequency,
		StartDate:   start,
		EndDate:     end,
		NextDueDate: start,
		Status:      models.RecurringStatusActive,
	}

	if err := rec.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryValidation, apperrors.CodeInvalidData,
			"invalid recurring transaction")
	}

	if err := m.store.CreateRecurring(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist recurring transaction: %w", err)
	}

	m.logger.WithFields(logger.Fields{
		"recurring_transaction_id": rec.ID,
		"frequency":                rec.Frequency.String(),
		"next_due":                 rec.NextDueDate.Format(models.DateLayout),
	}).Info("recurring transaction created")

	return rec, nil
}

// Pause suspends an active series so scheduled runs skip it. Pausing a paused
// series is a no-op; pausing a completed series is an error.
func (m *Manager) Pause(ctx context.Context, userID, id string) (*models.RecurringTransaction, error) {
	rec, err := m.loadOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	switch rec.Status {
	case models.RecurringStatusPaused:
		return rec, nil
	case models.RecurringStatusCompleted:
		return nil, apperrors.New(apperrors.CategoryRecurrence, apperrors.CodeSeriesCompleted,
			fmt.Sprintf("recurring transaction %s has already completed", id))
	}

	rec.Status = models.RecurringStatusPaused
	if err := m.store.UpdateRecurring(ctx, rec); err != nil {
		return nil, err
	}

	m.logger.WithField("recurring_transaction_id", rec.ID).Info("recurring transaction paused")
	return rec, nil
}

// Resume reactivates a paused series. Occurrences that came due while paused
// are picked up by the next scheduled run. Resuming an active series is a
// no-op; resuming a completed series is an error.
func (m *Manager) Resume(ctx context.Context, userID, id string) (*models.RecurringTransaction, error) {
	rec, err := m.loadOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	switch rec.Status {
	case models.RecurringStatusActive:
		return rec, nil
	case models.RecurringStatusCompleted:
		return nil, apperrors.New(apperrors.CategoryRecurrence, apperrors.CodeSeriesCompleted,
			fmt.Sprintf("recurring transaction %s has already completed", id))
	}

	rec.Status = models.RecurringStatusActive
	if err := m.store.UpdateRecurring(ctx, rec); err != nil {
		return nil, err
	}

	m.logger.WithField("recurring_transaction_id", rec.ID).Info("recurring transaction resumed")
	return rec, nil
}

// loadOwned fetches a recurring transaction and verifies ownership
func (m *Manager) loadOwned(ctx context.Context, userID, id string) (*models.RecurringTransaction, error) {
	rec, err := m.store.GetRecurring(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.NewNotFoundError("recurring transaction", id)
	}
	if rec.UserID != userID {
		return nil, apperrors.New(apperrors.CategoryValidation, apperrors.CodeWrongOwner,
			fmt.Sprintf("recurring transaction %s does not belong to the current user", id))
	}
	return rec, nil
}
