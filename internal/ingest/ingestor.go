// Package ingest reads uploaded bank statement files. It extracts the header
// row and raw data rows, computes a content hash for duplicate-file
// detection, and persists the raw file to durable storage for later
// re-reading when the user configures a column mapping.
//
// Ingestion is deliberately mapping-agnostic: it preserves rows verbatim as
// string slices. Interpreting columns is the staging projector's job.
package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apperrors "finance-ledger-service/pkg/errors"
	"finance-ledger-service/pkg/logger"
)

// StatementFile is the result of ingesting one uploaded statement
type StatementFile struct {
	FileName   string
	StoredPath string
	Hash       string
	Headers    []string
	Rows       [][]string
}

// IngestConfig holds configuration for statement ingestion
type IngestConfig struct {
	Delimiter         rune
	TrimLeadingSpace  bool
	SkipEmptyRows     bool
	AllowedExtensions []string
	MaxFileSizeBytes  int64
}

// DefaultIngestConfig returns a configuration with sensible defaults
func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		Delimiter:         ',',
		TrimLeadingSpace:  true,
		SkipEmptyRows:     true,
		AllowedExtensions: []string{".csv", ".txt"},
		MaxFileSizeBytes:  20 << 20, // 20MB
	}
}

// Validate checks if the ingest configuration is valid
func (c *IngestConfig) Validate() error {
	if c.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be zero")
	}
	if c.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("max file size must be positive: %d", c.MaxFileSizeBytes)
	}
	return nil
}

// Ingestor reads uploaded statement files into StatementFile values
type Ingestor struct {
	config *IngestConfig
	store  FileStore
	logger logger.Logger
}

// NewIngestor creates an ingestor backed by the given file store
func NewIngestor(config *IngestConfig, store FileStore, log logger.Logger) (*Ingestor, error) {
	if config == nil {
		config = DefaultIngestConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest configuration: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Ingestor{
		config: config,
		store:  store,
		logger: log.WithComponent("ingest"),
	}, nil
}

// Ingest reads an uploaded statement file from the local path, parses its
// header and data rows, computes the content hash and persists the raw file.
// Any read or parse failure is reported as a MalformedFileError; nothing is
// persisted in that case.
func (ing *Ingestor) Ingest(path string) (*StatementFile, error) {
	name := filepath.Base(path)

	if err := ing.checkExtension(name); err != nil {
		return nil, apperrors.NewMalformedFileError(name, err)
	}

	content, err := ing.readAll(path)
	if err != nil {
		return nil, apperrors.NewMalformedFileError(name, err)
	}

	headers, rows, err := ing.parseContent(content)
	if err != nil {
		return nil, apperrors.NewMalformedFileError(name, err)
	}

	storedPath, err := ing.store.Put(name, bytes.NewReader(content))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryFile, apperrors.CodeMalformedFile,
			fmt.Sprintf("failed to persist statement file '%s'", name))
	}

	sum := sha256.Sum256(content)
	file := &StatementFile{
		FileName:   name,
		StoredPath: storedPath,
		Hash:       hex.EncodeToString(sum[:]),
		Headers:    headers,
		Rows:       rows,
	}

	ing.logger.WithFields(logger.Fields{
		"file":    name,
		"rows":    len(rows),
		"headers": len(headers),
	}).Info("statement file ingested")

	return file, nil
}

// ReadStored re-reads a previously stored statement file by its stored path
func (ing *Ingestor) ReadStored(storedPath string) (*StatementFile, error) {
	name := filepath.Base(storedPath)

	rc, err := ing.store.Open(storedPath)
	if err != nil {
		return nil, apperrors.NewMalformedFileError(name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, ing.config.MaxFileSizeBytes+1))
	if err != nil {
		return nil, apperrors.NewMalformedFileError(name, err)
	}

	headers, rows, err := ing.parseContent(content)
	if err != nil {
		return nil, apperrors.NewMalformedFileError(name, err)
	}

	sum := sha256.Sum256(content)
	return &StatementFile{
		FileName:   name,
		StoredPath: storedPath,
		Hash:       hex.EncodeToString(sum[:]),
		Headers:    headers,
		Rows:       rows,
	}, nil
}

// checkExtension verifies the upload looks like a CSV/text file
func (ing *Ingestor) checkExtension(name string) error {
	if len(ing.config.AllowedExtensions) == 0 {
		return nil
	}

	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range ing.config.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("unsupported file extension '%s': expected one of %s",
		ext, strings.Join(ing.config.AllowedExtensions, ", "))
}

// readAll reads the full file content, enforcing the size limit
func (ing *Ingestor) readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open statement file: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, ing.config.MaxFileSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read statement file: %w", err)
	}

	if int64(len(content)) > ing.config.MaxFileSizeBytes {
		return nil, fmt.Errorf("statement file exceeds maximum size of %d bytes", ing.config.MaxFileSizeBytes)
	}

	if len(content) == 0 {
		return nil, fmt.Errorf("statement file is empty")
	}

	if !utf8.Valid(content) {
		return nil, fmt.Errorf("statement file contains invalid UTF-8")
	}

	return content, nil
}

// parseContent splits CSV content into the header row and raw data rows
func (ing *Ingestor) parseContent(content []byte) ([]string, [][]string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = ing.config.Delimiter
	reader.TrimLeadingSpace = ing.config.TrimLeadingSpace
	// Rows may be ragged in real bank exports; the projector validates the
	// columns it actually needs.
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header row: %w", err)
	}

	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read data row %d: %w", len(rows)+2, err)
		}

		if ing.config.SkipEmptyRows && isEmptyRow(record) {
			continue
		}

		rows = append(rows, record)
	}

	return headers, rows, nil
}

// isEmptyRow reports whether every field in the record is blank
func isEmptyRow(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
