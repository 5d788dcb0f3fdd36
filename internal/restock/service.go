package restock

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

// Service defines restock request lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.RestockRequest, error)
	Approve(ctx context.Context, id, actorID uuid.UUID) (*models.RestockRequest, error)
	Reject(ctx context.Context, id, actorID uuid.UUID) (*models.RestockRequest, error)
	Fulfill(ctx context.Context, id, actorID uuid.UUID) (*models.RestockRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.RestockRequest, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo      Repository
	stockRepo stock.Repository
	tx        txRunner
	notify    notifier
}

// CreateInput captures a restock request for a branch.
type CreateInput struct {
	BranchID    uuid.UUID
	ProductID   uuid.UUID
	Quantity    int
	Notes       *string
	RequestedBy uuid.UUID
}

// ListParams configures restock listings.
type ListParams struct {
	BranchID  *uuid.UUID
	ProductID *uuid.UUID
	Status    *enums.RestockStatus
	Limit     int
	Cursor    string
}

// ListResult wraps restock requests and the cursor for the next page.
type ListResult struct {
	Items  []models.RestockRequest `json:"items"`
	Cursor string                  `json:"cursor"`
}

// NewService wires restock dependencies.
func NewService(repo Repository, stockRepo stock.Repository, tx txRunner, notify notifier) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "restock repository required")
	}
	if stockRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{repo: repo, stockRepo: stockRepo, tx: tx, notify: notify}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.RestockRequest, error) {
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id required")
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
	open, err := s.repo.HasOpen(ctx, input.BranchID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open restock requests")
	}
	if open {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a pending restock request for this product already exists")
	}

	// Snapshot the ledger so reviewers see what prompted the request.
	currentStock := 0
	if row, err := s.stockRepo.Get(ctx, input.BranchID, input.ProductID); err == nil {
		currentStock = row.StockQuantity
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load branch stock")
	}

	request := &models.RestockRequest{
		ID:                uuid.New(),
		BranchID:          input.BranchID,
		ProductID:         input.ProductID,
		RequestedQuantity: input.Quantity,
		CurrentStock:      currentStock,
		Status:            enums.RestockStatusPending,
		Notes:             input.Notes,
		RequestedBy:       input.RequestedBy,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		if dbpkg.IsUniqueViolation(err, "uq_restock_requests_open") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a pending restock request for this product already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create restock request")
	}
	return request, nil
}

func (s *service) Approve(ctx context.Context, id, actorID uuid.UUID) (*models.RestockRequest, error) {
	return s.decide(ctx, id, actorID, enums.RestockStatusApproved,
		"Restock approved", "The restock request has been approved.")
}

func (s *service) Reject(ctx context.Context, id, actorID uuid.UUID) (*models.RestockRequest, error) {
	return s.decide(ctx, id, actorID, enums.RestockStatusRejected,
		"Restock rejected", "The restock request was rejected.")
}

// Fulfill credits the branch ledger with the requested quantity.
func (s *service) Fulfill(ctx context.Context, id, actorID uuid.UUID) (*models.RestockRequest, error) {
	if id == uuid.Nil || actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock id and actor id required")
	}

	var updated *models.RestockRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request, err := s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if request.Status != enums.RestockStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("restock request in status %s cannot be fulfilled", request.Status))
		}

		now := time.Now().UTC()
		ok, err := s.repo.MarkFulfilled(ctx, tx, id, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fulfill restock request")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "restock request changed concurrently")
		}

		if err := s.stockRepo.Add(ctx, tx, request.BranchID, request.ProductID, request.RequestedQuantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit branch stock")
		}

		request.Status = enums.RestockStatusFulfilled
		request.FulfilledAt = &now
		updated = request
		s.notifyRequester(ctx, tx, request, "Restock fulfilled", "The requested stock has arrived.")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.RestockRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock id required")
	}
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restock request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restock request")
	}
	return request, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListRestockParams{
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list restock requests")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) decide(ctx context.Context, id, actorID uuid.UUID, to enums.RestockStatus, title, message string) (*models.RestockRequest, error) {
	if id == uuid.Nil || actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock id and actor id required")
	}

	var updated *models.RestockRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request, err := s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if request.Status != enums.RestockStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("restock request in status %s cannot transition to %s", request.Status, to))
		}

		now := time.Now().UTC()
		ok, err := s.repo.UpdateStatus(ctx, tx, id, enums.RestockStatusPending, to, &actorID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update restock status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "restock request changed concurrently")
		}

		request.Status = to
		request.DecidedBy = &actorID
		request.DecidedAt = &now
		updated = request
		s.notifyRequester(ctx, tx, request, title, message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) loadForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.RestockRequest, error) {
	request, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restock request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restock request")
	}
	return request, nil
}

func (s *service) notifyRequester(ctx context.Context, tx *gorm.DB, request *models.RestockRequest, title, message string) {
	if s.notify == nil {
		return
	}
	_ = s.notify.NotifyTx(ctx, tx, request.RequestedBy, enums.NotificationTypeRestockUpdate, title, message, nil)
}
