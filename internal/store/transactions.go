package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finance-ledger-service/internal/models"
	"finance-ledger-service/internal/review"
)

const transactionColumns = `id, user_id, bank_account_id, description, amount, type,
	category_id, transaction_date, staged_transaction_id, created_at`

// CreateTransaction persists a new ledger transaction
func (s *Store) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return s.insertTransaction(ctx, s.db, txn)
}

func (s *Store) insertTransaction(ctx context.Context, db execer, txn *models.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.UserID, nullString(txn.BankAccountID), txn.Description,
		txn.Amount.String(), txn.Type.String(), nullString(txn.CategoryID),
		fmtDate(txn.TransactionDate), nullString(txn.StagedTransactionID),
		fmtTime(txn.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetTransaction fetches a ledger transaction by id, returning nil when absent
func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return txn, err
}

// FindUnmatchedInWindow returns the user's ledger transactions for the bank
// account dated within [from, to] that no staged transaction has claimed
func (s *Store) FindUnmatchedInWindow(ctx context.Context, userID, bankAccountID string, from, to time.Time) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE t.user_id = ? AND t.bank_account_id = ?
		  AND t.transaction_date >= ? AND t.transaction_date <= ?
		  AND NOT EXISTS (
			SELECT 1 FROM staged_transactions st
			WHERE st.matched_transaction_id = t.id
		  )
		ORDER BY t.transaction_date, t.id`,
		userID, bankAccountID, fmtDate(from), fmtDate(to))
	if err != nil {
		return nil, fmt.Errorf("find unmatched transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// SearchTransactions finds a user's ledger transactions matching the
// manual-match search query
func (s *Store) SearchTransactions(ctx context.Context, userID string, q review.SearchQuery) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []interface{}{userID}

	if q.Text != "" {
		query += ` AND description LIKE ? COLLATE NOCASE`
		args = append(args, "%"+q.Text+"%")
	}
	if !q.DateFrom.IsZero() {
		query += ` AND transaction_date >= ?`
		args = append(args, fmtDate(q.DateFrom))
	}
	if !q.DateTo.IsZero() {
		query += ` AND transaction_date <= ?`
		args = append(args, fmtDate(q.DateTo))
	}

	query += ` ORDER BY transaction_date, id`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search transactions: %w", err)
	}
	defer rows.Close()

	transactions, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}

	// Amounts are stored as decimal strings, so range filters are applied
	// after scanning rather than in SQL.
	if q.AmountMin == nil && q.AmountMax == nil {
		return transactions, nil
	}

	filtered := transactions[:0]
	for _, txn := range transactions {
		if q.AmountMin != nil && txn.Amount.LessThan(*q.AmountMin) {
			continue
		}
		if q.AmountMax != nil && txn.Amount.GreaterThan(*q.AmountMax) {
			continue
		}
		filtered = append(filtered, txn)
	}
	return filtered, nil
}

// collectTransactions scans all remaining rows into transactions
func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

// scanTransaction reads one ledger transaction row
func scanTransaction(sc scanner) (*models.Transaction, error) {
	var (
		txn                            models.Transaction
		bankAccount, category, staged  sql.NullString
		amount, txnType, date, created string
	)

	if err := sc.Scan(&txn.ID, &txn.UserID, &bankAccount, &txn.Description,
		&amount, &txnType, &category, &date, &staged, &created); err != nil {
		return nil, err
	}

	txn.BankAccountID = fromNull(bankAccount)
	txn.CategoryID = fromNull(category)
	txn.StagedTransactionID = fromNull(staged)
	txn.Type = models.TransactionType(txnType)

	var err error
	if txn.Amount, err = parseAmount(amount); err != nil {
		return nil, fmt.Errorf("parse transaction amount: %w", err)
	}
	if txn.TransactionDate, err = parseDate(date); err != nil {
		return nil, fmt.Errorf("parse transaction date: %w", err)
	}
	if txn.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse transaction created_at: %w", err)
	}

	return &txn, nil
}
