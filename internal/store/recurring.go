package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finance-ledger-service/internal/models"
)

const recurringColumns = `id, user_id, description, amount, type, category_id,
	frequency, start_date, end_date, next_due_date, last_processed_date, status`

// CreateRecurring persists a new recurring transaction
func (s *Store) CreateRecurring(ctx context.Context, rec *models.RecurringTransaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recurring_transactions (`+recurringColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Description, rec.Amount.String(), rec.Type.String(),
		nullString(rec.CategoryID), rec.Frequency.String(), fmtDate(rec.StartDate),
		nullDate(rec.EndDate), fmtDate(rec.NextDueDate), nullDate(rec.LastProcessedDate),
		rec.Status.String())
	if err != nil {
		return fmt.Errorf("insert recurring transaction: %w", err)
	}
	return nil
}

// GetRecurring fetches a recurring transaction by id, returning nil when absent
func (s *Store) GetRecurring(ctx context.Context, id string) (*models.RecurringTransaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transactions WHERE id = ?`, id)
	rec, err := scanRecurring(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// UpdateRecurring persists changes to a recurring transaction
func (s *Store) UpdateRecurring(ctx context.Context, rec *models.RecurringTransaction) error {
	return s.updateRecurring(ctx, s.db, rec)
}

func (s *Store) updateRecurring(ctx context.Context, db execer, rec *models.RecurringTransaction) error {
	res, err := db.ExecContext(ctx, `
		UPDATE recurring_transactions
		SET description = ?, amount = ?, type = ?, category_id = ?, frequency = ?,
		    start_date = ?, end_date = ?, next_due_date = ?, last_processed_date = ?,
		    status = ?
		WHERE id = ?`,
		rec.Description, rec.Amount.String(), rec.Type.String(),
		nullString(rec.CategoryID), rec.Frequency.String(), fmtDate(rec.StartDate),
		nullDate(rec.EndDate), fmtDate(rec.NextDueDate), nullDate(rec.LastProcessedDate),
		rec.Status.String(), rec.ID)
	if err != nil {
		return fmt.Errorf("update recurring transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("recurring transaction %s not found", rec.ID)
	}
	return nil
}

// ListDueRecurring returns active recurring transactions due on or before
// target whose end date is unset or on/after target
func (s *Store) ListDueRecurring(ctx context.Context, target time.Time) ([]*models.RecurringTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_transactions
		WHERE status = ? AND next_due_date <= ?
		  AND (end_date IS NULL OR end_date >= ?)
		ORDER BY next_due_date, id`,
		models.RecurringStatusActive.String(), fmtDate(target), fmtDate(target))
	if err != nil {
		return nil, fmt.Errorf("list due recurring transactions: %w", err)
	}
	defer rows.Close()

	var due []*models.RecurringTransaction
	for rows.Next() {
		rec, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, rec)
	}
	return due, rows.Err()
}

// Materialize persists the ledger transaction and the recurring record's
// advancement as one atomic unit
func (s *Store) Materialize(ctx context.Context, rec *models.RecurringTransaction, txn *models.Transaction) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		return s.updateRecurring(ctx, tx, rec)
	})
}

// nullDate maps a nil date to NULL
func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtDate(*t), Valid: true}
}

// scanRecurring reads one recurring transaction row
func scanRecurring(sc scanner) (*models.RecurringTransaction, error) {
	var (
		rec                              models.RecurringTransaction
		amount, recType, frequency       string
		category, endDate, lastProcessed sql.NullString
		startDate, nextDue, status       string
	)

	if err := sc.Scan(&rec.ID, &rec.UserID, &rec.Description, &amount, &recType,
		&category, &frequency, &startDate, &endDate, &nextDue, &lastProcessed,
		&status); err != nil {
		return nil, err
	}

	rec.Type = models.TransactionType(recType)
	rec.Frequency = models.Frequency(frequency)
	rec.Status = models.RecurringStatus(status)
	rec.CategoryID = fromNull(category)

	var err error
	if rec.Amount, err = parseAmount(amount); err != nil {
		return nil, fmt.Errorf("parse recurring amount: %w", err)
	}
	if rec.StartDate, err = parseDate(startDate); err != nil {
		return nil, fmt.Errorf("parse recurring start date: %w", err)
	}
	if rec.NextDueDate, err = parseDate(nextDue); err != nil {
		return nil, fmt.Errorf("parse recurring next due date: %w", err)
	}
	if endDate.Valid {
		t, err := parseDate(endDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse recurring end date: %w", err)
		}
		rec.EndDate = &t
	}
	if lastProcessed.Valid {
		t, err := parseDate(lastProcessed.String)
		if err != nil {
			return nil, fmt.Errorf("parse recurring last processed date: %w", err)
		}
		rec.LastProcessedDate = &t
	}

	return &rec, nil
}
