package transfers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opticore/opticore-backend/internal/stock"
	dbpkg "github.com/opticore/opticore-backend/pkg/db"
	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
	"github.com/opticore/opticore-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	NotifyTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind enums.NotificationType, title, message string, link *string) error
}

// Service defines inter-branch transfer lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.StockTransfer, error)
	Approve(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error)
	Reject(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error)
	Dispatch(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error)
	Complete(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error)
	Get(ctx context.Context, id uuid.UUID) (*models.StockTransfer, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo      Repository
	stockRepo stock.Repository
	tx        txRunner
	notify    notifier
}

// CreateInput captures a transfer request between branches.
type CreateInput struct {
	FromBranchID uuid.UUID
	ToBranchID   uuid.UUID
	ProductID    uuid.UUID
	Quantity     int
	Notes        *string
	RequestedBy  uuid.UUID
}

// ListParams configures transfer listings.
type ListParams struct {
	BranchID  *uuid.UUID
	ProductID *uuid.UUID
	Status    *enums.TransferStatus
	Limit     int
	Cursor    string
}

// ListResult wraps transfers and the cursor for the next page.
type ListResult struct {
	Items  []models.StockTransfer `json:"items"`
	Cursor string                 `json:"cursor"`
}

// NewService wires transfer dependencies.
func NewService(repo Repository, stockRepo stock.Repository, tx txRunner, notify notifier) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transfers repository required")
	}
	if stockRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{repo: repo, stockRepo: stockRepo, tx: tx, notify: notify}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.StockTransfer, error) {
	if input.FromBranchID == uuid.Nil || input.ToBranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from and to branch ids required")
	}
	if input.FromBranchID == input.ToBranchID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer stock to the same branch")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.RequestedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requesting user required")
	}

	// Racy pre-check; the partial unique index is the backstop.
	open, err := s.repo.HasOpen(ctx, input.FromBranchID, input.ToBranchID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open transfers")
	}
	if open {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an open transfer for this product and route already exists")
	}

	available, err := s.sourceAvailability(ctx, nil, input.FromBranchID, input.ProductID)
	if err != nil {
		return nil, err
	}
	if available < input.Quantity {
		return nil, pkgerrors.InsufficientStock("source branch lacks available stock", available)
	}

	transfer := &models.StockTransfer{
		ID:           uuid.New(),
		FromBranchID: input.FromBranchID,
		ToBranchID:   input.ToBranchID,
		ProductID:    input.ProductID,
		Quantity:     input.Quantity,
		Status:       enums.TransferStatusPending,
		Notes:        input.Notes,
		RequestedBy:  input.RequestedBy,
	}
	if err := s.repo.Create(ctx, transfer); err != nil {
		if dbpkg.IsUniqueViolation(err, "uq_stock_transfers_open") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an open transfer for this product and route already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transfer")
	}
	return transfer, nil
}

// Approve re-validates source availability under lock. A transfer that can no
// longer be covered lands on rejected instead of staying pending forever.
func (s *service) Approve(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error) {
	if id == uuid.Nil || actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer id and actor id required")
	}

	var updated *models.StockTransfer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		transfer, err := s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if transfer.Status != enums.TransferStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("transfer in status %s cannot be approved", transfer.Status))
		}

		now := time.Now().UTC()
		available, err := s.sourceAvailability(ctx, tx, transfer.FromBranchID, transfer.ProductID)
		if err != nil {
			return err
		}
		if available < transfer.Quantity {
			ok, err := s.repo.UpdateStatus(ctx, tx, id, enums.TransferStatusPending, enums.TransferStatusRejected, &actorID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject transfer")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "transfer changed concurrently")
			}
			transfer.Status = enums.TransferStatusRejected
			transfer.DecidedBy = &actorID
			transfer.DecidedAt = &now
			updated = transfer
			s.notifyRequester(ctx, tx, transfer, "Transfer rejected", "Source branch no longer has enough stock.")
			return nil
		}

		ok, err := s.repo.UpdateStatus(ctx, tx, id, enums.TransferStatusPending, enums.TransferStatusApproved, &actorID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve transfer")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transfer changed concurrently")
		}
		transfer.Status = enums.TransferStatusApproved
		transfer.DecidedBy = &actorID
		transfer.DecidedAt = &now
		updated = transfer
		s.notifyRequester(ctx, tx, transfer, "Transfer approved", "The stock transfer has been approved.")
		return nil
	})
	if err != nil {
		return nil, err
	}
	// An unfillable approval lands on rejected and is still returned to the
	// caller so clients see the final state rather than an error.
	return updated, nil
}

func (s *service) Reject(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error) {
	return s.transition(ctx, id, &actorID,
		[]enums.TransferStatus{enums.TransferStatusPending},
		enums.TransferStatusRejected,
		"Transfer rejected", "The stock transfer was rejected.")
}

func (s *service) Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error) {
	return s.transition(ctx, id, &actorID,
		[]enums.TransferStatus{enums.TransferStatusPending, enums.TransferStatusApproved},
		enums.TransferStatusCancelled,
		"Transfer cancelled", "The stock transfer was cancelled.")
}

func (s *service) Dispatch(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error) {
	return s.transition(ctx, id, nil,
		[]enums.TransferStatus{enums.TransferStatusApproved},
		enums.TransferStatusInTransit,
		"Transfer in transit", "The stock transfer is on its way.")
}

// Complete moves the units: source ledger is debited, destination credited,
// both inside one transaction.
func (s *service) Complete(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error) {
	if id == uuid.Nil || actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer id and actor id required")
	}

	var updated *models.StockTransfer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		transfer, err := s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		from := transfer.Status
		if from != enums.TransferStatusApproved && from != enums.TransferStatusInTransit {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("transfer in status %s cannot be completed", from))
		}

		now := time.Now().UTC()
		ok, err := s.repo.MarkCompleted(ctx, tx, id, from, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete transfer")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transfer changed concurrently")
		}

		deducted, err := s.stockRepo.Deduct(ctx, tx, transfer.FromBranchID, transfer.ProductID, transfer.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deduct source stock")
		}
		if !deducted {
			available, availErr := s.sourceAvailability(ctx, tx, transfer.FromBranchID, transfer.ProductID)
			if availErr != nil {
				return availErr
			}
			return pkgerrors.InsufficientStock("source branch lacks available stock", available)
		}

		if err := s.stockRepo.Add(ctx, tx, transfer.ToBranchID, transfer.ProductID, transfer.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit destination stock")
		}

		transfer.Status = enums.TransferStatusCompleted
		transfer.CompletedAt = &now
		updated = transfer
		s.notifyRequester(ctx, tx, transfer, "Transfer completed", "The stock transfer has been completed.")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.StockTransfer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer id required")
	}
	transfer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transfer")
	}
	return transfer, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListTransfersParams{
		BranchID:  params.BranchID,
		ProductID: params.ProductID,
		Status:    params.Status,
		Limit:     params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transfers")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) transition(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, allowed []enums.TransferStatus, to enums.TransferStatus, title, message string) (*models.StockTransfer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer id required")
	}

	var updated *models.StockTransfer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		transfer, err := s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		from := transfer.Status
		permitted := false
		for _, status := range allowed {
			if from == status {
				permitted = true
				break
			}
		}
		if !permitted {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("transfer in status %s cannot transition to %s", from, to))
		}

		now := time.Now().UTC()
		ok, err := s.repo.UpdateStatus(ctx, tx, id, from, to, actorID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transfer status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transfer changed concurrently")
		}

		transfer.Status = to
		if actorID != nil {
			transfer.DecidedBy = actorID
			transfer.DecidedAt = &now
		}
		updated = transfer
		s.notifyRequester(ctx, tx, transfer, title, message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) loadForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.StockTransfer, error) {
	transfer, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transfer")
	}
	return transfer, nil
}

func (s *service) sourceAvailability(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID) (int, error) {
	repo := s.stockRepo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	row, err := repo.Get(ctx, branchID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source branch stock")
	}
	return row.AvailableQuantity(), nil
}

func (s *service) notifyRequester(ctx context.Context, tx *gorm.DB, transfer *models.StockTransfer, title, message string) {
	if s.notify == nil {
		return
	}
	_ = s.notify.NotifyTx(ctx, tx, transfer.RequestedBy, enums.NotificationTypeTransferUpdate, title, message, nil)
}
