package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"finance-ledger-service/internal/models"
	apperrors "finance-ledger-service/pkg/errors"
)

const stagedColumns = `id, user_id, bank_account_id, import_id, transaction_date,
	description, amount, raw_data, content_hash, status, suggested_category_id,
	matched_transaction_id, resolved_by, resolved_at, notes, created_at`

// CreateStaged persists a new staged transaction
func (s *Store) CreateStaged(ctx context.Context, st *models.StagedTransaction) error {
	return s.insertStaged(ctx, s.db, st)
}

// execer abstracts *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) insertStaged(ctx context.Context, db execer, st *models.StagedTransaction) error {
	rawData, err := json.Marshal(st.RawData)
	if err != nil {
		return fmt.Errorf("marshal staged raw data: %w", err)
	}

	var resolvedAt sql.NullString
	if st.ResolvedAt != nil {
		resolvedAt = sql.NullString{String: fmtTime(*st.ResolvedAt), Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO staged_transactions (`+stagedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.UserID, st.BankAccountID, st.ImportID, fmtDate(st.TransactionDate),
		st.Description, st.Amount.String(), string(rawData), st.ContentHash,
		st.Status.String(), nullString(st.SuggestedCategoryID),
		nullString(st.MatchedTransactionID), nullString(st.ResolvedBy),
		resolvedAt, st.Notes, fmtTime(st.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeConstraintFailed,
				fmt.Sprintf("staged transaction with content hash %s already exists", st.ContentHash))
		}
		return fmt.Errorf("insert staged transaction: %w", err)
	}
	return nil
}

// GetStaged fetches a staged transaction by id, returning nil when absent
func (s *Store) GetStaged(ctx context.Context, id string) (*models.StagedTransaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stagedColumns+` FROM staged_transactions WHERE id = ?`, id)
	st, err := scanStaged(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// ExistsActiveContentHash reports whether a non-ignored staged transaction
// with the content hash exists for the bank account
func (s *Store) ExistsActiveContentHash(ctx context.Context, bankAccountID, contentHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM staged_transactions
		WHERE bank_account_id = ? AND content_hash = ? AND status != ?
		LIMIT 1`,
		bankAccountID, contentHash, models.StagedStatusIgnored.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check content hash: %w", err)
	}
	return true, nil
}

// UpdateStaged persists the mutable fields of a staged transaction
func (s *Store) UpdateStaged(ctx context.Context, st *models.StagedTransaction) error {
	return s.updateStaged(ctx, s.db, st)
}

func (s *Store) updateStaged(ctx context.Context, db execer, st *models.StagedTransaction) error {
	var resolvedAt sql.NullString
	if st.ResolvedAt != nil {
		resolvedAt = sql.NullString{String: fmtTime(*st.ResolvedAt), Valid: true}
	}

	res, err := db.ExecContext(ctx, `
		UPDATE staged_transactions
		SET status = ?, suggested_category_id = ?, matched_transaction_id = ?,
		    resolved_by = ?, resolved_at = ?, notes = ?
		WHERE id = ?`,
		st.Status.String(), nullString(st.SuggestedCategoryID),
		nullString(st.MatchedTransactionID), nullString(st.ResolvedBy),
		resolvedAt, st.Notes, st.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictingMatchError(st.MatchedTransactionID, "unknown")
		}
		return fmt.Errorf("update staged transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("staged transaction %s not found", st.ID)
	}
	return nil
}

// ApproveStaged persists the new ledger transaction and the staged row's
// transition to imported in one database transaction
func (s *Store) ApproveStaged(ctx context.Context, staged *models.StagedTransaction, txn *models.Transaction) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		return s.updateStaged(ctx, tx, staged)
	})
}

// ClaimMatch links the staged row to its matched ledger transaction and marks
// it imported. The "already linked elsewhere" check runs inside the same
// database transaction as the write, and the partial unique index on
// matched_transaction_id backstops it against concurrent claimers.
func (s *Store) ClaimMatch(ctx context.Context, staged *models.StagedTransaction) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var linkedID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM staged_transactions
			WHERE matched_transaction_id = ? AND id != ?
			LIMIT 1`,
			staged.MatchedTransactionID, staged.ID).Scan(&linkedID)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("check existing match link: %w", err)
		}
		if err == nil {
			return apperrors.NewConflictingMatchError(staged.MatchedTransactionID, linkedID)
		}

		if err := s.updateStaged(ctx, tx, staged); err != nil {
			if apperrors.IsConflictingMatch(err) {
				return apperrors.NewConflictingMatchError(staged.MatchedTransactionID, "concurrent claim")
			}
			return err
		}
		return nil
	})
}

// CountUnresolvedForImport counts an import's staged rows that are not yet
// in a terminal status
func (s *Store) CountUnresolvedForImport(ctx context.Context, importID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM staged_transactions
		WHERE import_id = ? AND status NOT IN (?, ?)`,
		importID, models.StagedStatusImported.String(), models.StagedStatusIgnored.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unresolved staged transactions: %w", err)
	}
	return count, nil
}

// ListStagedByImport returns an import's staged transactions in creation order
func (s *Store) ListStagedByImport(ctx context.Context, importID string) ([]*models.StagedTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stagedColumns+` FROM staged_transactions
		WHERE import_id = ? ORDER BY created_at, id`, importID)
	if err != nil {
		return nil, fmt.Errorf("list staged transactions: %w", err)
	}
	defer rows.Close()

	var staged []*models.StagedTransaction
	for rows.Next() {
		st, err := scanStaged(rows)
		if err != nil {
			return nil, err
		}
		staged = append(staged, st)
	}
	return staged, rows.Err()
}

// scanStaged reads one staged transaction row
func scanStaged(sc scanner) (*models.StagedTransaction, error) {
	var (
		st                                 models.StagedTransaction
		date, amount, rawData, status      string
		suggestedCategory, matchedTxn      sql.NullString
		resolvedBy, resolvedAt             sql.NullString
		createdAt                          string
	)

	if err := sc.Scan(&st.ID, &st.UserID, &st.BankAccountID, &st.ImportID, &date,
		&st.Description, &amount, &rawData, &st.ContentHash, &status,
		&suggestedCategory, &matchedTxn, &resolvedBy, &resolvedAt,
		&st.Notes, &createdAt); err != nil {
		return nil, err
	}

	st.Status = models.StagedStatus(status)
	st.SuggestedCategoryID = fromNull(suggestedCategory)
	st.MatchedTransactionID = fromNull(matchedTxn)
	st.ResolvedBy = fromNull(resolvedBy)

	var err error
	if st.TransactionDate, err = parseDate(date); err != nil {
		return nil, fmt.Errorf("parse staged transaction date: %w", err)
	}
	if st.Amount, err = parseAmount(amount); err != nil {
		return nil, fmt.Errorf("parse staged amount: %w", err)
	}
	if err := json.Unmarshal([]byte(rawData), &st.RawData); err != nil {
		return nil, fmt.Errorf("unmarshal staged raw data: %w", err)
	}
	if resolvedAt.Valid {
		t, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse staged resolved_at: %w", err)
		}
		st.ResolvedAt = &t
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse staged created_at: %w", err)
	}

	return &st, nil
}
