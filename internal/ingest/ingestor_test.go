package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"finance-ledger-service/pkg/logger"

	apperrors "finance-ledger-service/pkg/errors"
)

func newTestIngestor(t *testing.T) *Ingestor {
	t.Helper()

	store, err := NewLocalFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}

	ing, err := NewIngestor(nil, store, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to create ingestor: %v", err)
	}
	return ing
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestIngestBasicStatement(t *testing.T) {
	ing := newTestIngestor(t)
	path := writeTestFile(t, "statement.csv",
		"Date,Narrative,Amount\n2025-01-10,COFFEE SHOP,-4.50\n2025-01-11,SALARY,2500.00\n")

	file, err := ing.Ingest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if file.FileName != "statement.csv" {
		t.Errorf("unexpected file name: %s", file.FileName)
	}
	if len(file.Headers) != 3 || file.Headers[1] != "Narrative" {
		t.Errorf("unexpected headers: %v", file.Headers)
	}
	if len(file.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(file.Rows))
	}
	if file.Rows[0][2] != "-4.50" {
		t.Errorf("rows must be preserved verbatim, got %v", file.Rows[0])
	}
	if file.Hash == "" {
		t.Error("expected a content hash")
	}
	if file.StoredPath == "" {
		t.Error("expected the file to be stored")
	}
}

func TestIngestHashIsContentDerived(t *testing.T) {
	ing := newTestIngestor(t)
	content := "Date,Amount\n2025-01-10,-4.50\n"

	a, err := ing.Ingest(writeTestFile(t, "a.csv", content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ing.Ingest(writeTestFile(t, "b.csv", content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.Hash != b.Hash {
		t.Error("identical content must produce identical hashes regardless of file name")
	}
}

func TestIngestSkipsEmptyRows(t *testing.T) {
	ing := newTestIngestor(t)
	path := writeTestFile(t, "statement.csv",
		"Date,Amount\n2025-01-10,-4.50\n,\n2025-01-11,10.00\n")

	file, err := ing.Ingest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(file.Rows) != 2 {
		t.Errorf("expected empty row to be skipped, got %d rows", len(file.Rows))
	}
}

func TestIngestRaggedRowsPreserved(t *testing.T) {
	ing := newTestIngestor(t)
	path := writeTestFile(t, "statement.csv",
		"Date,Narrative,Amount\n2025-01-10,COFFEE\n")

	file, err := ing.Ingest(path)
	if err != nil {
		t.Fatalf("ragged rows must not fail ingestion: %v", err)
	}
	if len(file.Rows) != 1 || len(file.Rows[0]) != 2 {
		t.Errorf("unexpected rows: %v", file.Rows)
	}
}

func TestIngestRejectsUnsupportedExtension(t *testing.T) {
	ing := newTestIngestor(t)
	path := writeTestFile(t, "statement.pdf", "not a csv")

	_, err := ing.Ingest(path)
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !apperrors.IsMalformedFile(err) {
		t.Errorf("expected MalformedFileError, got %v", err)
	}
}

func TestIngestRejectsEmptyFile(t *testing.T) {
	ing := newTestIngestor(t)
	path := writeTestFile(t, "empty.csv", "")

	if _, err := ing.Ingest(path); !apperrors.IsMalformedFile(err) {
		t.Errorf("expected MalformedFileError for empty file, got %v", err)
	}
}

func TestIngestRejectsInvalidUTF8(t *testing.T) {
	ing := newTestIngestor(t)
	path := filepath.Join(t.TempDir(), "binary.csv")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x01}, 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if _, err := ing.Ingest(path); !apperrors.IsMalformedFile(err) {
		t.Errorf("expected MalformedFileError for invalid UTF-8, got %v", err)
	}
}

func TestIngestRejectsOversizedFile(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	config := DefaultIngestConfig()
	config.MaxFileSizeBytes = 16

	ing, err := NewIngestor(config, store, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to create ingestor: %v", err)
	}

	path := writeTestFile(t, "big.csv", "Date,Amount\n2025-01-10,-4.50\n")
	if _, err := ing.Ingest(path); !apperrors.IsMalformedFile(err) {
		t.Errorf("expected MalformedFileError for oversized file, got %v", err)
	}
}

func TestIngestMissingFile(t *testing.T) {
	ing := newTestIngestor(t)

	if _, err := ing.Ingest(filepath.Join(t.TempDir(), "missing.csv")); !apperrors.IsMalformedFile(err) {
		t.Errorf("expected MalformedFileError for missing file, got %v", err)
	}
}

func TestReadStoredRoundTrip(t *testing.T) {
	ing := newTestIngestor(t)
	path := writeTestFile(t, "statement.csv",
		"Date,Amount\n2025-01-10,-4.50\n")

	file, err := ing.Ingest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reread, err := ing.ReadStored(file.StoredPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reread.Hash != file.Hash {
		t.Error("re-read file must have the same hash")
	}
	if len(reread.Rows) != len(file.Rows) {
		t.Errorf("re-read rows mismatch: %d vs %d", len(reread.Rows), len(file.Rows))
	}
}
