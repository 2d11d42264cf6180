// Package importer orchestrates the bank statement import session: file
// ingestion, duplicate-file detection, column mapping configuration, staging
// and the automatic duplicate-detection pass over the freshly staged rows.
//
// The import aggregate moves through pending_mapping -> processing ->
// awaiting_review; it becomes completed only when the review service resolves
// the last staged row, and failed when ingestion or staging leaves nothing to
// review.
package importer

import (
	"context"
	"fmt"
	"time"

	"finance-ledger-service/internal/ingest"
	"finance-ledger-service/internal/mapping"
	"finance-ledger-service/internal/matcher"
	"finance-ledger-service/internal/models"
	"finance-ledger-service/internal/staging"
	apperrors "finance-ledger-service/pkg/errors"
	"finance-ledger-service/pkg/logger"
)

// Store is the persistence surface the import service needs
type Store interface {
	// FindImportByHash returns the non-failed import with the file hash for
	// the bank account, or nil when none exists
	FindImportByHash(ctx context.Context, bankAccountID, fileHash string) (*models.BankStatementImport, error)
	// CreateImport persists a new import
	CreateImport(ctx context.Context, imp *models.BankStatementImport) error
	// GetImport fetches an import by id, returning nil when absent
	GetImport(ctx context.Context, id string) (*models.BankStatementImport, error)
	// UpdateImport persists changes to an import
	UpdateImport(ctx context.Context, imp *models.BankStatementImport) error
	// SetImportStatus updates only an import's status
	SetImportStatus(ctx context.Context, id string, status models.ImportStatus) error
	// ListImports returns a user's imports, newest first
	ListImports(ctx context.Context, userID string) ([]*models.BankStatementImport, error)
	// UpdateStaged persists the mutable fields of a staged transaction
	UpdateStaged(ctx context.Context, st *models.StagedTransaction) error
}

// Service drives import sessions from upload through staging
type Service struct {
	store     Store
	ingestor  *ingest.Ingestor
	projector *staging.Projector
	engine    *matcher.Engine
	logger    logger.Logger
}

// NewService creates an import service
func NewService(store Store, ingestor *ingest.Ingestor, projector *staging.Projector, engine *matcher.Engine, log logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if projector == nil {
		return nil, fmt.Errorf("projector is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("match engine is required")
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Service{
		store:     store,
		ingestor:  ingestor,
		projector: projector,
		engine:    engine,
		logger:    log.WithComponent("importer"),
	}, nil
}

// CreateImport ingests an uploaded statement file and opens an import session
// in pending_mapping status. Uploading a file whose hash matches an existing
// non-failed import for the same bank account is rejected with a
// DuplicateImportError; re-uploading after a failed attempt is allowed.
func (s *Service) CreateImport(ctx context.Context, userID, bankAccountID, filePath string) (*models.BankStatementImport, error) {
	file, err := s.ingestor.Ingest(filePath)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindImportByHash(ctx, bankAccountID, file.Hash)
	if err != nil {
		return nil, fmt.Errorf("check for duplicate import: %w", err)
	}
	if existing != nil {
		return nil, apperrors.NewDuplicateImportError(bankAccountID, file.Hash).
			WithContext("existing_import_id", existing.ID)
	}

	imp := models.NewBankStatementImport(userID, bankAccountID, file.FileName,
		file.StoredPath, file.Hash, file.Headers, len(file.Rows))

	if err := s.store.CreateImport(ctx, imp); err != nil {
		return nil, fmt.Errorf("persist import: %w", err)
	}

	s.logger.WithFields(logger.Fields{
		"import_id": imp.ID,
		"file":      imp.FileName,
		"rows":      imp.TotalRowCount,
	}).Info("import session created")

	return imp, nil
}

// ConfigureMapping validates and attaches a column mapping to a
// pending_mapping import, then runs the full staging pass: each data row is
// projected into a staged transaction, evaluated against the existing ledger,
// and flagged as a potential duplicate when exactly one candidate matches.
//
// An invalid mapping leaves the import in pending_mapping so the user can
// correct and resubmit. A pass that stages nothing marks the import failed.
func (s *Service) ConfigureMapping(ctx context.Context, importID string, cm *mapping.ColumnMapping) (*staging.StagingResult, error) {
	imp, err := s.store.GetImport(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("load import: %w", err)
	}
	if imp == nil {
		return nil, apperrors.NewNotFoundError("import", importID)
	}
	if imp.Status != models.ImportStatusPendingMapping {
		return nil, apperrors.New(apperrors.CategoryImport, apperrors.CodeImportState,
			fmt.Sprintf("import %s is in status %s, expected %s",
				imp.ID, imp.Status, models.ImportStatusPendingMapping)).
			WithSuggestion("mapping can only be configured on a fresh import")
	}

	if vr := cm.Validate(imp.Headers); !vr.Valid() {
		return nil, apperrors.NewInvalidMappingError(vr.FieldErrors())
	}

	mappingJSON, err := cm.MarshalString()
	if err != nil {
		return nil, err
	}
	imp.MappingJSON = mappingJSON
	imp.Status = models.ImportStatusProcessing
	imp.UpdatedAt = now()
	if err := s.store.UpdateImport(ctx, imp); err != nil {
		return nil, fmt.Errorf("persist mapping: %w", err)
	}

	result, err := s.runStaging(ctx, imp, cm)
	if err != nil {
		// Staging failures are infrastructure errors; the import is marked
		// failed so the user can re-upload and retry.
		if stErr := s.store.SetImportStatus(ctx, imp.ID, models.ImportStatusFailed); stErr != nil {
			s.logger.WithError(stErr).Error("failed to mark import as failed")
		}
		return result, err
	}

	return result, nil
}

// runStaging re-reads the stored file, stages its rows and evaluates each
// staged row against the ledger
func (s *Service) runStaging(ctx context.Context, imp *models.BankStatementImport, cm *mapping.ColumnMapping) (*staging.StagingResult, error) {
	file, err := s.ingestor.ReadStored(imp.FilePath)
	if err != nil {
		return nil, err
	}

	result, staged, err := s.projector.Stage(ctx, imp, file.Rows, cm)
	if err != nil {
		return result, err
	}

	imp.TotalRowCount = result.TotalRows
	imp.ProcessedRowCount = result.StagedRows
	imp.SkippedRowCount = result.Skipped

	if result.StagedRows == 0 {
		imp.Status = models.ImportStatusFailed
		imp.UpdatedAt = now()
		if err := s.store.UpdateImport(ctx, imp); err != nil {
			return result, fmt.Errorf("persist import counters: %w", err)
		}
		s.logger.WithField("import_id", imp.ID).Warn("staging produced no rows, import failed")
		return result, nil
	}

	flagged, err := s.flagPotentialDuplicates(ctx, staged)
	if err != nil {
		return result, err
	}

	imp.Status = models.ImportStatusAwaitingReview
	imp.UpdatedAt = now()
	if err := s.store.UpdateImport(ctx, imp); err != nil {
		return result, fmt.Errorf("persist import counters: %w", err)
	}

	s.logger.WithFields(logger.Fields{
		"import_id":            imp.ID,
		"staged":               result.StagedRows,
		"potential_duplicates": flagged,
	}).Info("import ready for review")

	return result, nil
}

// flagPotentialDuplicates evaluates each freshly staged row against the
// ledger. A single unambiguous candidate flags the row as a potential
// duplicate with the candidate as its suggestion; ambiguous sets leave the
// row pending, matching the advisory nature of the engine.
func (s *Service) flagPotentialDuplicates(ctx context.Context, staged []*models.StagedTransaction) (int, error) {
	flagged := 0
	for _, st := range staged {
		outcome, err := s.engine.Evaluate(ctx, st)
		if err != nil {
			return flagged, fmt.Errorf("evaluate staged transaction %s: %w", st.ID, err)
		}
		if outcome.Kind != matcher.OutcomeSingleMatch {
			continue
		}

		st.Status = models.StagedStatusPotentialDuplicate
		st.MatchedTransactionID = outcome.Match.ID
		if err := s.store.UpdateStaged(ctx, st); err != nil {
			return flagged, fmt.Errorf("flag staged transaction %s: %w", st.ID, err)
		}
		flagged++
	}
	return flagged, nil
}

// GetImport fetches one import session
func (s *Service) GetImport(ctx context.Context, importID string) (*models.BankStatementImport, error) {
	imp, err := s.store.GetImport(ctx, importID)
	if err != nil {
		return nil, err
	}
	if imp == nil {
		return nil, apperrors.NewNotFoundError("import", importID)
	}
	return imp, nil
}

// ListImports returns a user's import sessions, newest first
func (s *Service) ListImports(ctx context.Context, userID string) ([]*models.BankStatementImport, error) {
	return s.store.ListImports(ctx, userID)
}

func now() time.Time {
	return time.Now().UTC()
}
