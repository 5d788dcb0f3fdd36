package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
)

// Service projects the stock ledger into alert views and sweep events.
type Service interface {
	Overview(ctx context.Context, branchID *uuid.UUID) (*Overview, error)
	Sweep(ctx context.Context) ([]Event, error)
}

type service struct {
	repo         Repository
	expiryWindow time.Duration
}

// Alert is one ledger row that tripped a threshold.
type Alert struct {
	BranchID          uuid.UUID         `json:"branch_id"`
	BranchName        string            `json:"branch_name,omitempty"`
	ProductID         uuid.UUID         `json:"product_id"`
	ProductName       string            `json:"product_name,omitempty"`
	AvailableQuantity int               `json:"available_quantity"`
	StockQuantity     int               `json:"stock_quantity"`
	MinStockThreshold int               `json:"min_stock_threshold"`
	ExpiryDate        *time.Time        `json:"expiry_date,omitempty"`
	Status            enums.StockStatus `json:"status"`
}

// Overview groups current alerts for the dashboard endpoints.
type Overview struct {
	LowStock     []Alert `json:"low_stock"`
	OutOfStock   []Alert `json:"out_of_stock"`
	ExpiringSoon []Alert `json:"expiring_soon"`
}

// Event is one alert occurrence the dispatcher turns into notifications.
type Event struct {
	Type  enums.NotificationType
	Alert Alert
}

// NewService wires alert projections.
func NewService(repo Repository, expiryWindow time.Duration) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "alerts repository required")
	}
	if expiryWindow <= 0 {
		expiryWindow = 30 * 24 * time.Hour
	}
	return &service{repo: repo, expiryWindow: expiryWindow}, nil
}

func (s *service) Overview(ctx context.Context, branchID *uuid.UUID) (*Overview, error) {
	low, err := s.repo.LowStock(ctx, branchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "project low stock")
	}
	out, err := s.repo.OutOfStock(ctx, branchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "project out of stock")
	}
	expiring, err := s.repo.Expiring(ctx, branchID, time.Now().UTC(), s.expiryWindow)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "project expiring stock")
	}

	return &Overview{
		LowStock:     toAlerts(low),
		OutOfStock:   toAlerts(out),
		ExpiringSoon: toAlerts(expiring),
	}, nil
}

// Sweep flattens the current projections into events for the dispatcher.
func (s *service) Sweep(ctx context.Context) ([]Event, error) {
	overview, err := s.Overview(ctx, nil)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(overview.LowStock)+len(overview.OutOfStock)+len(overview.ExpiringSoon))
	for _, alert := range overview.OutOfStock {
		events = append(events, Event{Type: enums.NotificationTypeOutOfStock, Alert: alert})
	}
	for _, alert := range overview.LowStock {
		events = append(events, Event{Type: enums.NotificationTypeLowStock, Alert: alert})
	}
	for _, alert := range overview.ExpiringSoon {
		events = append(events, Event{Type: enums.NotificationTypeExpiringStock, Alert: alert})
	}
	return events, nil
}

func toAlerts(rows []models.BranchStock) []Alert {
	alerts := make([]Alert, 0, len(rows))
	for _, row := range rows {
		available := row.AvailableQuantity()
		alert := Alert{
			BranchID:          row.BranchID,
			ProductID:         row.ProductID,
			AvailableQuantity: available,
			StockQuantity:     row.StockQuantity,
			MinStockThreshold: row.MinStockThreshold,
			ExpiryDate:        row.ExpiryDate,
			Status:            enums.DeriveStockStatus(available, row.MinStockThreshold),
		}
		if row.Branch != nil {
			alert.BranchName = row.Branch.Name
		}
		if row.Product != nil {
			alert.ProductName = row.Product.Name
		}
		alerts = append(alerts, alert)
	}
	return alerts
}
