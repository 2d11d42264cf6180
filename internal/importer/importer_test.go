package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finance-ledger-service/internal/ingest"
	"finance-ledger-service/internal/mapping"
	"finance-ledger-service/internal/matcher"
	"finance-ledger-service/internal/models"
	"finance-ledger-service/internal/staging"
	apperrors "finance-ledger-service/pkg/errors"
	"finance-ledger-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// fakeImportStore backs the import service, the staging projector and the
// match engine with one in-memory state
type fakeImportStore struct {
	imports      map[string]*models.BankStatementImport
	staged       map[string]*models.StagedTransaction
	transactions []*models.Transaction
}

func newFakeImportStore() *fakeImportStore {
	return &fakeImportStore{
		imports: make(map[string]*models.BankStatementImport),
		staged:  make(map[string]*models.StagedTransaction),
	}
}

func (f *fakeImportStore) FindImportByHash(ctx context.Context, bankAccountID, fileHash string) (*models.BankStatementImport, error) {
	for _, imp := range f.imports {
		if imp.BankAccountID == bankAccountID && imp.FileHash == fileHash && imp.Status != models.ImportStatusFailed {
			cp := *imp
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeImportStore) CreateImport(ctx context.Context, imp *models.BankStatementImport) error {
	cp := *imp
	f.imports[imp.ID] = &cp
	return nil
}

func (f *fakeImportStore) GetImport(ctx context.Context, id string) (*models.BankStatementImport, error) {
	imp, ok := f.imports[id]
	if !ok {
		return nil, nil
	}
	cp := *imp
	return &cp, nil
}

func (f *fakeImportStore) UpdateImport(ctx context.Context, imp *models.BankStatementImport) error {
	cp := *imp
	f.imports[imp.ID] = &cp
	return nil
}

func (f *fakeImportStore) SetImportStatus(ctx context.Context, id string, status models.ImportStatus) error {
	if imp, ok := f.imports[id]; ok {
		imp.Status = status
	}
	return nil
}

func (f *fakeImportStore) ListImports(ctx context.Context, userID string) ([]*models.BankStatementImport, error) {
	var out []*models.BankStatementImport
	for _, imp := range f.imports {
		if imp.UserID == userID {
			cp := *imp
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeImportStore) UpdateStaged(ctx context.Context, st *models.StagedTransaction) error {
	cp := *st
	f.staged[st.ID] = &cp
	return nil
}

func (f *fakeImportStore) ExistsActiveContentHash(ctx context.Context, bankAccountID, contentHash string) (bool, error) {
	for _, st := range f.staged {
		if st.BankAccountID == bankAccountID && st.ContentHash == contentHash && st.Status != models.StagedStatusIgnored {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeImportStore) CreateStaged(ctx context.Context, st *models.StagedTransaction) error {
	cp := *st
	f.staged[st.ID] = &cp
	return nil
}

func (f *fakeImportStore) FindUnmatchedInWindow(ctx context.Context, userID, bankAccountID string, from, to time.Time) ([]*models.Transaction, error) {
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

func newTestService(t *testing.T, store *fakeImportStore) *Service {
	t.Helper()
	log := logger.NewNopLogger()

	fileStore, err := ingest.NewLocalFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	ingestor, err := ingest.NewIngestor(nil, fileStore, log)
	if err != nil {
		t.Fatalf("failed to create ingestor: %v", err)
	}
	engine, err := matcher.NewEngine(nil, store, log)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	svc, err := NewService(store, ingestor, staging.NewProjector(store, log), engine, log)
	if err != nil {
		t.Fatalf("failed to create import service: %v", err)
	}
	return svc
}

func writeStatement(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statement.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write statement file: %v", err)
	}
	return path
}

func defaultMapping() *mapping.ColumnMapping {
	return &mapping.ColumnMapping{
		TransactionDateColumn: "Date",
		DescriptionColumn:     "Narrative",
		AmountType:            mapping.AmountTypeSingle,
		AmountColumn:          "Amount",
	}
}

func TestCreateImportOpensSession(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestService(t, store)
	path := writeStatement(t, "Date,Narrative,Amount\n2025-01-10,COFFEE,-4.50\n")

	imp, err := svc.CreateImport(context.Background(), "user-1", "acc-1", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if imp.Status != models.ImportStatusPendingMapping {
		t.Errorf("expected pending_mapping, got %s", imp.Status)
	}
	if imp.TotalRowCount != 1 {
		t.Errorf("expected 1 row, got %d", imp.TotalRowCount)
	}
	if len(imp.Headers) != 3 {
		t.Errorf("unexpected headers: %v", imp.Headers)
	}
	if imp.FileHash == "" || imp.FilePath == "" {
		t.Error("expected file hash and stored path to be set")
	}
}

func TestCreateImportRejectsDuplicateFile(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestService(t, store)
	content := "Date,Narrative,Amount\n2025-01-10,COFFEE,-4.50\n"
	ctx := context.Background()

	first, err := svc.CreateImport(ctx, "user-1", "acc-1", writeStatement(t, content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.CreateImport(ctx, "user-1", "acc-1", writeStatement(t, content))
	if !apperrors.IsDuplicateImport(err) {
		t.Errorf("expected DuplicateImportError, got %v", err)
	}

	// Same file for a different account is a separate import.
	if _, err := svc.CreateImport(ctx, "user-1", "acc-2", writeStatement(t, content)); err != nil {
		t.Errorf("same file for a different account must be allowed: %v", err)
	}

	// A failed attempt does not block re-upload.
	store.imports[first.ID].Status = models.ImportStatusFailed
	if _, err := svc.CreateImport(ctx, "user-1", "acc-1", writeStatement(t, content)); err != nil {
		t.Errorf("re-upload after failure must be allowed: %v", err)
	}
}

func TestConfigureMappingStagesRows(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	imp, err := svc.CreateImport(ctx, "user-1", "acc-1",
		writeStatement(t, "Date,Narrative,Amount\n2025-01-10,COFFEE,-4.50\n2025-01-11,SALARY,2500.00\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.ConfigureMapping(ctx, imp.ID, defaultMapping())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.StagedRows != 2 {
		t.Errorf("expected 2 staged rows, got %d", result.StagedRows)
	}
	if len(store.staged) != 2 {
		t.Errorf("expected 2 persisted staged rows, got %d", len(store.staged))
	}

	updated := store.imports[imp.ID]
	if updated.Status != models.ImportStatusAwaitingReview {
		t.Errorf("expected awaiting_review, got %s", updated.Status)
	}
	if updated.ProcessedRowCount != 2 || updated.SkippedRowCount != 0 {
		t.Errorf("counters not updated: %+v", updated)
	}
	if updated.MappingJSON == "" {
		t.Error("mapping must be persisted")
	}
}

func TestConfigureMappingInvalidMapping(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	imp, err := svc.CreateImport(ctx, "user-1", "acc-1",
		writeStatement(t, "Date,Narrative,Amount\n2025-01-10,COFFEE,-4.50\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := &mapping.ColumnMapping{
		TransactionDateColumn: "Datum",
		AmountType:            mapping.AmountTypeSingle,
		AmountColumn:          "Amount",
	}

	_, err = svc.ConfigureMapping(ctx, imp.ID, bad)
	if !apperrors.IsInvalidMapping(err) {
		t.Fatalf("expected InvalidMappingError, got %v", err)
	}

	// The import stays configurable.
	if store.imports[imp.ID].Status != models.ImportStatusPendingMapping {
		t.Errorf("import must stay pending_mapping, got %s", store.imports[imp.ID].Status)
	}

	// A corrected mapping then succeeds.
	if _, err := svc.ConfigureMapping(ctx, imp.ID, defaultMapping()); err != nil {
		t.Errorf("corrected mapping must succeed: %v", err)
	}
}

func TestConfigureMappingWrongState(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	imp, err := svc.CreateImport(ctx, "user-1", "acc-1",
		writeStatement(t, "Date,Narrative,Amount\n2025-01-10,COFFEE,-4.50\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.ConfigureMapping(ctx, imp.ID, defaultMapping()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The session is past mapping; configuring again is rejected.
	if _, err := svc.ConfigureMapping(ctx, imp.ID, defaultMapping()); err == nil {
		t.Error("expected error configuring a non-pending import")
	}
}

func TestConfigureMappingAllRowsFailMarksImportFailed(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	imp, err := svc.CreateImport(ctx, "user-1", "acc-1",
		writeStatement(t, "Date,Narrative,Amount\nnot-a-date,BAD,xx\nalso-bad,WORSE,yy\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.ConfigureMapping(ctx, imp.ID, defaultMapping())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.StagedRows != 0 || result.Failed != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	if store.imports[imp.ID].Status != models.ImportStatusFailed {
		t.Errorf("import with no staged rows must fail, got %s", store.imports[imp.ID].Status)
	}
}

func TestConfigureMappingFlagsPotentialDuplicates(t *testing.T) {
	store := newFakeImportStore()
	// Existing ledger entry close to the first staged row.
	store.transactions = append(store.transactions, &models.Transaction{
		ID:              "tx-1",
		UserID:          "user-1",
		BankAccountID:   "acc-1",
		Description:     "COFFEE SHOP DOWNTOWN",
		Amount:          decimal.NewFromFloat(-4.48),
		Type:            models.TransactionTypeExpense,
		TransactionDate: time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
	})

	svc := newTestService(t, store)
	ctx := context.Background()

	imp, err := svc.CreateImport(ctx, "user-1", "acc-1",
		writeStatement(t, "Date,Narrative,Amount\n2025-01-10,COFFEE,-4.50\n2025-06-01,FAR AWAY,-99.00\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.ConfigureMapping(ctx, imp.ID, defaultMapping()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var flagged, pending int
	for _, st := range store.staged {
		switch st.Status {
		case models.StagedStatusPotentialDuplicate:
			flagged++
			if st.MatchedTransactionID != "tx-1" {
				t.Errorf("flagged row must carry the suggestion, got %q", st.MatchedTransactionID)
			}
		case models.StagedStatusPendingReview:
			pending++
		}
	}

	if flagged != 1 || pending != 1 {
		t.Errorf("expected 1 flagged and 1 pending row, got %d and %d", flagged, pending)
	}
}

func TestGetImportNotFound(t *testing.T) {
	store := newFakeImportStore()
	svc := newTestService(t, store)

	if _, err := svc.GetImport(context.Background(), "missing"); !apperrors.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}
