package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"finance-ledger-service/internal/models"
)

const importColumns = `id, user_id, bank_account_id, file_name, file_path, file_hash,
	status, headers, mapping, total_row_count, processed_row_count, skipped_row_count,
	created_at, updated_at`

// CreateImport persists a new bank statement import
func (s *Store) CreateImport(ctx context.Context, imp *models.BankStatementImport) error {
	headers, err := json.Marshal(imp.Headers)
	if err != nil {
		return fmt.Errorf("marshal import headers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO imports (`+importColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		imp.ID, imp.UserID, imp.BankAccountID, imp.FileName, imp.FilePath, imp.FileHash,
		imp.Status.String(), string(headers), nullString(imp.MappingJSON),
		imp.TotalRowCount, imp.ProcessedRowCount, imp.SkippedRowCount,
		fmtTime(imp.CreatedAt), fmtTime(imp.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert import: %w", err)
	}
	return nil
}

// GetImport fetches an import by id, returning nil when absent
func (s *Store) GetImport(ctx context.Context, id string) (*models.BankStatementImport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+importColumns+` FROM imports WHERE id = ?`, id)
	imp, err := scanImport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return imp, err
}

// FindImportByHash returns the non-failed import with the given file hash
// for the bank account, or nil when none exists
func (s *Store) FindImportByHash(ctx context.Context, bankAccountID, fileHash string) (*models.BankStatementImport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+importColumns+` FROM imports
		WHERE bank_account_id = ? AND file_hash = ? AND status != ?`,
		bankAccountID, fileHash, models.ImportStatusFailed.String())
	imp, err := scanImport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return imp, err
}

// UpdateImport persists changes to an import's mapping, status and counters
func (s *Store) UpdateImport(ctx context.Context, imp *models.BankStatementImport) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE imports
		SET status = ?, mapping = ?, total_row_count = ?, processed_row_count = ?,
		    skipped_row_count = ?, updated_at = ?
		WHERE id = ?`,
		imp.Status.String(), nullString(imp.MappingJSON),
		imp.TotalRowCount, imp.ProcessedRowCount, imp.SkippedRowCount,
		fmtTime(imp.UpdatedAt), imp.ID)
	if err != nil {
		return fmt.Errorf("update import: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("import %s not found", imp.ID)
	}
	return nil
}

// SetImportStatus updates only an import's status
func (s *Store) SetImportStatus(ctx context.Context, id string, status models.ImportStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE imports SET status = ?, updated_at = ? WHERE id = ?`,
		status.String(), fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set import status: %w", err)
	}
	return nil
}

// ListImports returns a user's imports, newest first
func (s *Store) ListImports(ctx context.Context, userID string) ([]*models.BankStatementImport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+importColumns+` FROM imports
		WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var imports []*models.BankStatementImport
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanImport reads one import row
func scanImport(sc scanner) (*models.BankStatementImport, error) {
	var (
		imp                  models.BankStatementImport
		status               string
		headers              string
		mapping              sql.NullString
		createdAt, updatedAt string
	)

	if err := sc.Scan(&imp.ID, &imp.UserID, &imp.BankAccountID, &imp.FileName,
		&imp.FilePath, &imp.FileHash, &status, &headers, &mapping,
		&imp.TotalRowCount, &imp.ProcessedRowCount, &imp.SkippedRowCount,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	imp.Status = models.ImportStatus(status)
	imp.MappingJSON = fromNull(mapping)

	if err := json.Unmarshal([]byte(headers), &imp.Headers); err != nil {
		return nil, fmt.Errorf("unmarshal import headers: %w", err)
	}

	var err error
	if imp.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse import created_at: %w", err)
	}
	if imp.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse import updated_at: %w", err)
	}

	return &imp, nil
}
