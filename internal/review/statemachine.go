// Package review implements the staged-transaction state machine.
//
// Staged rows move between four states: pending_review, potential_duplicate,
// imported and ignored. The operations here drive every transition:
//
//   - Approve: materializes a ledger transaction from the staged row
//   - Ignore: resolves the row without creating a ledger entry
//   - ManualMatch: links the row to an existing ledger transaction chosen by
//     the user; the link itself resolves the row, since both records describe
//     the same economic event, so no duplicate ledger entry is created
//   - Unmatch: rejects an automatic suggestion, reverting to pending_review
//   - SetCategory: updates the suggested category on unresolved rows
//
// Transitions re-invoked on an already-terminal row return a no-op result
// instead of erroring, with one exception: Approve on an imported row fails
// with AlreadyResolvedError so a double approval can never create a second
// ledger transaction.
package review

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finance-ledger-service/internal/models"
	apperrors "finance-ledger-service/pkg/errors"
	"finance-ledger-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SearchQuery filters the manual-match candidate search
type SearchQuery struct {
	Text      string
	DateFrom  time.Time
	DateTo    time.Time
	AmountMin *decimal.Decimal
	AmountMax *decimal.Decimal
	Limit     int
}

// Candidate is one manual-match search result, annotated with its category
type Candidate struct {
	Transaction      *models.Transaction
	CategoryName     string
	DateDistanceDays int
}

// Store is the persistence surface the state machine needs. Compound
// operations (ApproveStaged, ClaimMatch) are atomic: the implementation must
// perform their writes in a single database transaction.
type Store interface {
	GetStaged(ctx context.Context, id string) (*models.StagedTransaction, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)

	// ApproveStaged persists the new ledger transaction and the staged row's
	// transition to imported as one atomic unit
	ApproveStaged(ctx context.Context, staged *models.StagedTransaction, txn *models.Transaction) error

	// ClaimMatch links the staged row to the target ledger transaction and
	// marks it imported, failing with a ConflictingMatchError if the target
	// is already linked to a different staged row. The conflict check and
	// the link write happen in the same database transaction.
	ClaimMatch(ctx context.Context, staged *models.StagedTransaction) error

	UpdateStaged(ctx context.Context, staged *models.StagedTransaction) error

	SearchTransactions(ctx context.Context, userID string, q SearchQuery) ([]*models.Transaction, error)

	CountUnresolvedForImport(ctx context.Context, importID string) (int, error)
	SetImportStatus(ctx context.Context, importID string, status models.ImportStatus) error
}

// ResolveResult reports the effect of a state-machine operation
type ResolveResult struct {
	Staged  *models.StagedTransaction
	Created *models.Transaction
	NoOp    bool
}

// Service drives the staged-transaction state machine
type Service struct {
	store  Store
	logger logger.Logger
}

// NewService creates a review service backed by the given store
func NewService(store Store, log logger.Logger) *Service {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Service{
		store:  store,
		logger: log.WithComponent("review"),
	}
}

// loadOwned fetches a staged transaction and verifies it belongs to the user
func (s *Service) loadOwned(ctx context.Context, userID, stagedID string) (*models.StagedTransaction, error) {
	staged, err := s.store.GetStaged(ctx, stagedID)
	if err != nil {
		return nil, err
	}
	if staged == nil {
		return nil, apperrors.NewNotFoundError("staged transaction", stagedID)
	}
	if staged.UserID != userID {
		return nil, apperrors.New(apperrors.CategoryValidation, apperrors.CodeWrongOwner,
			fmt.Sprintf("staged transaction %s does not belong to the current user", stagedID))
	}
	return staged, nil
}

// Approve materializes a ledger transaction from a staged row and marks the
// row imported. The staged row's suggested category is used when the caller
// supplies none. Approving an imported row fails with AlreadyResolvedError;
// approving an ignored row is a no-op.
func (s *Service) Approve(ctx context.Context, userID, stagedID, categoryID string) (*ResolveResult, error) {
	staged, err := s.loadOwned(ctx, userID, stagedID)
	if err != nil {
		return nil, err
	}

	switch staged.Status {
	case models.StagedStatusImported:
		return nil, apperrors.NewAlreadyResolvedError(staged.ID, staged.Status.String())
	case models.StagedStatusIgnored:
		return &ResolveResult{Staged: staged, NoOp: true}, nil
	}

	if categoryID == "" {
		categoryID = staged.SuggestedCategoryID
	}
	if categoryID != "" {
		category, err := s.store.GetCategory(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, apperrors.NewNotFoundError("category", categoryID)
		}
	}

	now := time.Now().UTC()
	txn := &models.Transaction{
		ID:                  uuid.NewString(),
		UserID:              staged.UserID,
		BankAccountID:       staged.BankAccountID,
		Description:         staged.Description,
		Amount:              staged.Amount,
		Type:                models.TypeForAmount(staged.Amount),
		CategoryID:          categoryID,
		TransactionDate:     staged.TransactionDate,
		StagedTransactionID: staged.ID,
		CreatedAt:           now,
	}

	staged.Status = models.StagedStatusImported
	staged.MatchedTransactionID = txn.ID
	staged.ResolvedBy = userID
	staged.ResolvedAt = &now

	if err := s.store.ApproveStaged(ctx, staged, txn); err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"staged_transaction_id": staged.ID,
		"transaction_id":        txn.ID,
	}).Info("staged transaction approved")

	if err := s.maybeCompleteImport(ctx, staged.ImportID); err != nil {
		return nil, err
	}

	return &ResolveResult{Staged: staged, Created: txn}, nil
}

// Ignore resolves a staged row without creating a ledger entry, recording
// who ignored it and when. Ignoring a terminal row is a no-op.
func (s *Service) Ignore(ctx context.Context, userID, stagedID, notes string) (*ResolveResult, error) {
	staged, err := s.loadOwned(ctx, userID, stagedID)
	if err != nil {
		return nil, err
	}

	if staged.Status.IsTerminal() {
		return &ResolveResult{Staged: staged, NoOp: true}, nil
	}

	now := time.Now().UTC()
	staged.Status = models.StagedStatusIgnored
	staged.ResolvedBy = userID
	staged.ResolvedAt = &now
	if notes != "" {
		staged.Notes = notes
	}

	if err := s.store.UpdateStaged(ctx, staged); err != nil {
		return nil, err
	}

	s.logger.WithField("staged_transaction_id", staged.ID).Info("staged transaction ignored")

	if err := s.maybeCompleteImport(ctx, staged.ImportID); err != nil {
		return nil, err
	}

	return &ResolveResult{Staged: staged}, nil
}

// ManualMatch links a staged row to an existing ledger transaction chosen by
// the user after a candidate search. The link finalizes the row (status
// imported) without creating a new ledger entry. Targets already linked to a
// different staged row fail with ConflictingMatchError.
func (s *Service) ManualMatch(ctx context.Context, userID, stagedID, transactionID string) (*ResolveResult, error) {
	staged, err := s.loadOwned(ctx, userID, stagedID)
	if err != nil {
		return nil, err
	}

	if staged.Status.IsTerminal() {
		if staged.Status == models.StagedStatusImported && staged.MatchedTransactionID == transactionID {
			return &ResolveResult{Staged: staged, NoOp: true}, nil
		}
		return nil, apperrors.NewAlreadyResolvedError(staged.ID, staged.Status.String())
	}

	target, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperrors.NewNotFoundError("transaction", transactionID)
	}
	if target.UserID != userID {
		return nil, apperrors.New(apperrors.CategoryValidation, apperrors.CodeWrongOwner,
			fmt.Sprintf("transaction %s does not belong to the current user", transactionID))
	}

	now := time.Now().UTC()
	staged.MatchedTransactionID = transactionID
	staged.Status = models.StagedStatusImported
	staged.ResolvedBy = userID
	staged.ResolvedAt = &now

	if err := s.store.ClaimMatch(ctx, staged); err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"staged_transaction_id": staged.ID,
		"transaction_id":        transactionID,
	}).Info("staged transaction manually matched")

	if err := s.maybeCompleteImport(ctx, staged.ImportID); err != nil {
		return nil, err
	}

	return &ResolveResult{Staged: staged}, nil
}

// Unmatch clears an automatic suggestion the user judged wrong, reverting
// the row to pending_review. Valid only from potential_duplicate; calling it
// on a pending_review row is a no-op and on a terminal row an error.
func (s *Service) Unmatch(ctx context.Context, userID, stagedID string) (*ResolveResult, error) {
	staged, err := s.loadOwned(ctx, userID, stagedID)
	if err != nil {
		return nil, err
	}

	if staged.Status.IsTerminal() {
		return nil, apperrors.NewAlreadyResolvedError(staged.ID, staged.Status.String())
	}

	if staged.Status == models.StagedStatusPendingReview {
		return &ResolveResult{Staged: staged, NoOp: true}, nil
	}

	staged.MatchedTransactionID = ""
	staged.Status = models.StagedStatusPendingReview

	if err := s.store.UpdateStaged(ctx, staged); err != nil {
		return nil, err
	}

	s.logger.WithField("staged_transaction_id", staged.ID).Info("staged transaction unmatched")

	return &ResolveResult{Staged: staged}, nil
}

// SetCategory updates the suggested category of an unresolved staged row
// without changing its status
func (s *Service) SetCategory(ctx context.Context, userID, stagedID, categoryID string) (*ResolveResult, error) {
	staged, err := s.loadOwned(ctx, userID, stagedID)
	if err != nil {
		return nil, err
	}

	if staged.Status.IsTerminal() {
		return nil, apperrors.NewAlreadyResolvedError(staged.ID, staged.Status.String())
	}

	if categoryID != "" {
		category, err := s.store.GetCategory(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, apperrors.NewNotFoundError("category", categoryID)
		}
	}

	staged.SuggestedCategoryID = categoryID

	if err := s.store.UpdateStaged(ctx, staged); err != nil {
		return nil, err
	}

	return &ResolveResult{Staged: staged}, nil
}

// SearchCandidates finds ledger transactions a staged row could be manually
// matched against, ordered by date proximity to the staged row's date and
// annotated with their category names
func (s *Service) SearchCandidates(ctx context.Context, userID, stagedID string, q SearchQuery) ([]*Candidate, error) {
	staged, err := s.loadOwned(ctx, userID, stagedID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.store.SearchTransactions(ctx, userID, q)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(transactions, func(i, j int) bool {
		di := absDays(transactions[i].TransactionDate, staged.TransactionDate)
		dj := absDays(transactions[j].TransactionDate, staged.TransactionDate)
		return di < dj
	})

	candidates := make([]*Candidate, 0, len(transactions))
	for _, txn := range transactions {
		candidate := &Candidate{
			Transaction:      txn,
			DateDistanceDays: absDays(txn.TransactionDate, staged.TransactionDate),
		}
		if txn.CategoryID != "" {
			category, err := s.store.GetCategory(ctx, txn.CategoryID)
			if err != nil {
				return nil, err
			}
			if category != nil {
				candidate.CategoryName = category.Name
			}
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// maybeCompleteImport marks the parent import completed once every staged
// row belonging to it is terminal
func (s *Service) maybeCompleteImport(ctx context.Context, importID string) error {
	if importID == "" {
		return nil
	}

	unresolved, err := s.store.CountUnresolvedForImport(ctx, importID)
	if err != nil {
		return err
	}
	if unresolved > 0 {
		return nil
	}

	if err := s.store.SetImportStatus(ctx, importID, models.ImportStatusCompleted); err != nil {
		return err
	}

	s.logger.WithField("import_id", importID).Info("import completed")
	return nil
}

// absDays returns the absolute whole-day distance between two dates
func absDays(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}
