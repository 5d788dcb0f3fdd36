package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
	"github.com/opticore/opticore-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines branch stock ledger operations.
type Service interface {
	SetStock(ctx context.Context, input SetStockInput) (*models.BranchStock, error)
	Get(ctx context.Context, branchID, productID uuid.UUID) (*StockView, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Summary(ctx context.Context, branchID *uuid.UUID) (*SummaryCounts, error)
	Available(ctx context.Context, branchID, productID uuid.UUID) (int, error)
}

type service struct {
	repo         Repository
	tx           txRunner
	expiryWindow time.Duration
}

// SetStockInput captures an absolute ledger write from staff.
type SetStockInput struct {
	BranchID          uuid.UUID
	ProductID         uuid.UUID
	StockQuantity     int
	MinStockThreshold *int
	ExpiryDate        *time.Time
}

// ListParams configures ledger listings.
type ListParams struct {
	BranchID  *uuid.UUID
	ProductID *uuid.UUID
	Limit     int
	Cursor    string
}

// StockView decorates a ledger row with its derived availability status.
type StockView struct {
	models.BranchStock
	AvailableQuantity int               `json:"available_quantity"`
	Status            enums.StockStatus `json:"status"`
}

// ListResult wraps ledger rows and the cursor for the next page.
type ListResult struct {
	Items  []StockView `json:"items"`
	Cursor string      `json:"cursor"`
}

// NewService wires stock dependencies.
func NewService(repo Repository, tx txRunner, expiryWindow time.Duration) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if expiryWindow <= 0 {
		expiryWindow = 30 * 24 * time.Hour
	}
	return &service{repo: repo, tx: tx, expiryWindow: expiryWindow}, nil
}

func (s *service) SetStock(ctx context.Context, input SetStockInput) (*models.BranchStock, error) {
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.StockQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}
	if input.MinStockThreshold != nil && *input.MinStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min stock threshold cannot be negative")
	}

	var updated *models.BranchStock
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.GetForUpdate(ctx, tx, input.BranchID, input.ProductID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load branch stock")
		}

		row := &models.BranchStock{
			BranchID:      input.BranchID,
			ProductID:     input.ProductID,
			StockQuantity: input.StockQuantity,
		}
		if current != nil {
			if input.StockQuantity < current.ReservedQuantity {
				return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot drop below reserved quantity")
			}
			row.ID = current.ID
			row.ReservedQuantity = current.ReservedQuantity
			row.MinStockThreshold = current.MinStockThreshold
			row.ExpiryDate = current.ExpiryDate
		} else {
			row.ID = uuid.New()
			row.MinStockThreshold = 5
		}
		if input.MinStockThreshold != nil {
			row.MinStockThreshold = *input.MinStockThreshold
		}
		if input.ExpiryDate != nil {
			row.ExpiryDate = input.ExpiryDate
		}

		if err := repo.Upsert(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert branch stock")
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, branchID, productID uuid.UUID) (*StockView, error) {
	if branchID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id and product id required")
	}
	row, err := s.repo.Get(ctx, branchID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "branch stock not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load branch stock")
	}
	view := s.toView(*row)
	return &view, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListStockParams{
		BranchID:  params.BranchID,
		ProductID: params.ProductID,
		Limit:     params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListByBranch(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list branch stock")
	}

	items := make([]StockView, 0, len(rows))
	for _, row := range rows {
		items = append(items, s.toView(row))
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) Summary(ctx context.Context, branchID *uuid.UUID) (*SummaryCounts, error) {
	counts, err := s.repo.CountByStatus(ctx, branchID, time.Now().UTC(), s.expiryWindow)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize branch stock")
	}
	return counts, nil
}

func (s *service) Available(ctx context.Context, branchID, productID uuid.UUID) (int, error) {
	row, err := s.repo.Get(ctx, branchID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load branch stock")
	}
	return row.AvailableQuantity(), nil
}

func (s *service) toView(row models.BranchStock) StockView {
	available := row.AvailableQuantity()
	return StockView{
		BranchStock:       row,
		AvailableQuantity: available,
		Status:            enums.DeriveStockStatus(available, row.MinStockThreshold),
	}
}
