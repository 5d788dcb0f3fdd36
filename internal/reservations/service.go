package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/opticore/opticore-backend/internal/stock"
	"github.com/opticore/opticore-backend/pkg/db/models"
	dbpkg "github.com/opticore/opticore-backend/pkg/db"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
	"github.com/opticore/opticore-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	AssignBranchIfEmpty(ctx context.Context, tx *gorm.DB, userID, branchID uuid.UUID) error
}

type notifier interface {
	NotifyTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind enums.NotificationType, title, message string, link *string) error
}

// Service defines reservation lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Reservation, error)
	Approve(ctx context.Context, id, actorID uuid.UUID) (*models.Reservation, error)
	Reject(ctx context.Context, id, actorID uuid.UUID) (*models.Reservation, error)
	Cancel(ctx context.Context, id, customerID uuid.UUID) (*models.Reservation, error)
	Complete(ctx context.Context, id, actorID uuid.UUID) (*models.Reservation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Bill(ctx context.Context, customerID uuid.UUID) (*BillResult, error)
}

type service struct {
	repo      Repository
	stockRepo stock.Repository
	tx        txRunner
	customers customerDirectory
	notify    notifier
}

// CreateInput captures a customer's reservation request.
type CreateInput struct {
	CustomerID uuid.UUID
	BranchID   uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
	Notes      *string
}

// ListParams configures reservation listings.
type ListParams struct {
	CustomerID *uuid.UUID
	BranchID   *uuid.UUID
	Status     *enums.ReservationStatus
	Limit      int
	Cursor     string
}

// ListResult wraps reservations and the cursor for the next page.
type ListResult struct {
	Items  []models.Reservation `json:"items"`
	Cursor string               `json:"cursor"`
}

// BillLine is one open reservation priced against the current catalog.
type BillLine struct {
	ReservationID uuid.UUID               `json:"reservation_id"`
	ProductID     uuid.UUID               `json:"product_id"`
	ProductName   string                  `json:"product_name"`
	Status        enums.ReservationStatus `json:"status"`
	Quantity      int                     `json:"quantity"`
	UnitPrice     decimal.Decimal         `json:"unit_price"`
	LineTotal     decimal.Decimal         `json:"line_total"`
}

// BillResult totals the customer's open reservations.
type BillResult struct {
	CustomerID uuid.UUID       `json:"customer_id"`
	Lines      []BillLine      `json:"lines"`
	Total      decimal.Decimal `json:"total"`
}

// NewService wires reservation dependencies.
func NewService(repo Repository, stockRepo stock.Repository, tx txRunner, customers customerDirectory, notify notifier) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reservations repository required")
	}
	if stockRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if customers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customer directory required")
	}
	return &service{repo: repo, stockRepo: stockRepo, tx: tx, customers: customers, notify: notify}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Reservation, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	customer, err := s.customers.Get(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.Role != enums.RoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservations can only be held for customers")
	}

	// Racy pre-check; the partial unique index is the backstop.
	open, err := s.repo.HasOpen(ctx, input.CustomerID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open reservations")
	}
	if open {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a pending reservation for this product already exists")
	}

	reservation := &models.Reservation{
		ID:         uuid.New(),
		CustomerID: input.CustomerID,
		BranchID:   input.BranchID,
		ProductID:  input.ProductID,
		Quantity:   input.Quantity,
		Status:     enums.ReservationStatusPending,
		Notes:      input.Notes,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.stockRepo.Reserve(ctx, tx, input.BranchID, input.ProductID, input.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
		}
		if !ok {
			available, availErr := s.availableQuantity(ctx, tx, input.BranchID, input.ProductID)
			if availErr != nil {
				return availErr
			}
			return pkgerrors.InsufficientStock("not enough stock available to reserve", available)
		}

		if err := s.repo.WithTx(tx).Create(ctx, reservation); err != nil {
			if dbpkg.IsUniqueViolation(err, "uq_reservations_open") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a pending reservation for this product already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}

		if customer.BranchID == nil {
			if err := s.customers.AssignBranchIfEmpty(ctx, tx, input.CustomerID, input.BranchID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *service) Approve(ctx context.Context, id, actorID uuid.UUID) (*models.Reservation, error) {
	return s.decide(ctx, id, actorID, enums.ReservationStatusApproved, nil)
}

func (s *service) Reject(ctx context.Context, id, actorID uuid.UUID) (*models.Reservation, error) {
	release := func(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
		ok, err := s.stockRepo.Release(ctx, tx, reservation.BranchID, reservation.ProductID, reservation.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reserved stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInternal, "reserved stock out of sync with reservation")
		}
		return nil
	}
	return s.decide(ctx, id, actorID, enums.ReservationStatusRejected, release)
}

func (s *service) Cancel(ctx context.Context, id, customerID uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil || customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id and customer id required")
	}

	var updated *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if reservation.CustomerID != customerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another customer")
		}
		// Customers can only withdraw before staff decide; an approved
		// reservation needs a staff reject to undo.
		if reservation.Status != enums.ReservationStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("reservation in status %s cannot be cancelled", reservation.Status))
		}

		now := time.Now().UTC()
		ok, err := s.repo.UpdateStatus(ctx, tx, id, enums.ReservationStatusPending, enums.ReservationStatusCancelled, nil, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel reservation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation changed concurrently")
		}

		released, err := s.stockRepo.Release(ctx, tx, reservation.BranchID, reservation.ProductID, reservation.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reserved stock")
		}
		if !released {
			return pkgerrors.New(pkgerrors.CodeInternal, "reserved stock out of sync with reservation")
		}

		reservation.Status = enums.ReservationStatusCancelled
		updated = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Complete(ctx context.Context, id, actorID uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil || actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id and actor id required")
	}

	var updated *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("reservation in status %s cannot be completed", reservation.Status))
		}

		now := time.Now().UTC()
		ok, err := s.repo.UpdateStatus(ctx, tx, id, enums.ReservationStatusApproved, enums.ReservationStatusCompleted, &actorID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete reservation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation changed concurrently")
		}

		committed, err := s.stockRepo.CommitReserved(ctx, tx, reservation.BranchID, reservation.ProductID, reservation.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit reserved stock")
		}
		if !committed {
			return pkgerrors.New(pkgerrors.CodeInternal, "reserved stock out of sync with reservation")
		}

		reservation.Status = enums.ReservationStatusCompleted
		reservation.DecidedBy = &actorID
		reservation.DecidedAt = &now
		updated = reservation

		s.notifyCustomer(ctx, tx, reservation, "Reservation completed", "Your reservation has been picked up.")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	reservation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return reservation, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListReservationsParams{
		CustomerID: params.CustomerID,
		BranchID:   params.BranchID,
		Status:     params.Status,
		Limit:      params.Limit,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Bill(ctx context.Context, customerID uuid.UUID) (*BillResult, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	rows, err := s.repo.ListApprovedByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list approved reservations")
	}

	bill := &BillResult{
		CustomerID: customerID,
		Lines:      make([]BillLine, 0, len(rows)),
		Total:      decimal.Zero,
	}
	for _, row := range rows {
		if row.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "reservation missing product")
		}
		lineTotal := row.Product.Price.Mul(decimal.NewFromInt(int64(row.Quantity)))
		bill.Lines = append(bill.Lines, BillLine{
			ReservationID: row.ID,
			ProductID:     row.ProductID,
			ProductName:   row.Product.Name,
			Status:        row.Status,
			Quantity:      row.Quantity,
			UnitPrice:     row.Product.Price,
			LineTotal:     lineTotal,
		})
		bill.Total = bill.Total.Add(lineTotal)
	}
	return bill, nil
}

type postTransition func(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error

func (s *service) decide(ctx context.Context, id, actorID uuid.UUID, to enums.ReservationStatus, after postTransition) (*models.Reservation, error) {
	if id == uuid.Nil || actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id and actor id required")
	}

	var updated *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("reservation in status %s cannot transition to %s", reservation.Status, to))
		}

		now := time.Now().UTC()
		ok, err := s.repo.UpdateStatus(ctx, tx, id, enums.ReservationStatusPending, to, &actorID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation changed concurrently")
		}

		if after != nil {
			if err := after(ctx, tx, reservation); err != nil {
				return err
			}
		}

		reservation.Status = to
		reservation.DecidedBy = &actorID
		reservation.DecidedAt = &now
		updated = reservation

		switch to {
		case enums.ReservationStatusApproved:
			s.notifyCustomer(ctx, tx, reservation, "Reservation approved", "Your reservation is ready for pickup.")
		case enums.ReservationStatusRejected:
			s.notifyCustomer(ctx, tx, reservation, "Reservation rejected", "Your reservation could not be fulfilled.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) loadForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	reservation, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return reservation, nil
}

func (s *service) availableQuantity(ctx context.Context, tx *gorm.DB, branchID, productID uuid.UUID) (int, error) {
	row, err := s.stockRepo.WithTx(tx).Get(ctx, branchID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load branch stock")
	}
	return row.AvailableQuantity(), nil
}

// notifyCustomer is best effort inside the transaction; a notification row
// failing to insert should not roll back a stock movement.
func (s *service) notifyCustomer(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, title, message string) {
	if s.notify == nil {
		return
	}
	_ = s.notify.NotifyTx(ctx, tx, reservation.CustomerID, enums.NotificationTypeReservation, title, message, nil)
}
