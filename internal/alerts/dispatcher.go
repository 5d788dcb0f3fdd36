package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
	"github.com/opticore/opticore-backend/pkg/logger"
	"github.com/opticore/opticore-backend/pkg/metrics"
)

type directory interface {
	StaffForBranch(ctx context.Context, branchID uuid.UUID) ([]models.User, error)
	Admins(ctx context.Context) ([]models.User, error)
}

type notifier interface {
	NotifyTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind enums.NotificationType, title, message string, link *string) error
}

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Dispatcher fans alert events out to branch staff and admins. A Redis
// SetNX window keeps repeated sweeps from re-notifying the same condition.
type Dispatcher struct {
	alerts    Service
	users     directory
	notify    notifier
	dedupe    dedupeStore
	dedupeTTL time.Duration
	logg      *logger.Logger
	jobs      *metrics.JobMetrics
}

// NewDispatcher wires the alert fan-out. dedupe and jobs may be nil.
func NewDispatcher(alerts Service, users directory, notify notifier, dedupe dedupeStore, dedupeTTL time.Duration, logg *logger.Logger, jobs *metrics.JobMetrics) (*Dispatcher, error) {
	if alerts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "alerts service required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user directory required")
	}
	if notify == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if dedupeTTL <= 0 {
		dedupeTTL = 24 * time.Hour
	}
	return &Dispatcher{
		alerts:    alerts,
		users:     users,
		notify:    notify,
		dedupe:    dedupe,
		dedupeTTL: dedupeTTL,
		logg:      logg,
		jobs:      jobs,
	}, nil
}

// RunSweep projects the ledger once and dispatches notifications for every
// alerting row. Returns how many events were dispatched.
func (d *Dispatcher) RunSweep(ctx context.Context) (int, error) {
	started := time.Now()
	events, err := d.alerts.Sweep(ctx)
	if err != nil {
		d.jobs.IncFailure("stock-alerts")
		return 0, err
	}

	dispatched := 0
	for _, event := range events {
		sent, err := d.dispatch(ctx, event)
		if err != nil {
			d.logg.Error(ctx, "dispatch stock alert", err)
			continue
		}
		if sent {
			dispatched++
			d.jobs.IncAlert(string(event.Type))
		}
	}

	d.jobs.ObserveDuration("stock-alerts", time.Since(started))
	d.jobs.IncSuccess("stock-alerts")
	return dispatched, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event Event) (bool, error) {
	if d.dedupe != nil {
		key := d.dedupe.IdempotencyKey("alerts", dedupeID(event))
		fresh, err := d.dedupe.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), d.dedupeTTL)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "alert dedupe")
		}
		if !fresh {
			return false, nil
		}
	}

	recipients, err := d.recipients(ctx, event.Alert.BranchID)
	if err != nil {
		return false, err
	}

	title, message := describe(event)
	for _, user := range recipients {
		if err := d.notify.NotifyTx(ctx, nil, user.ID, event.Type, title, message, nil); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (d *Dispatcher) recipients(ctx context.Context, branchID uuid.UUID) ([]models.User, error) {
	staff, err := d.users.StaffForBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	admins, err := d.users.Admins(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(staff)+len(admins))
	recipients := make([]models.User, 0, len(staff)+len(admins))
	for _, user := range append(staff, admins...) {
		if _, dup := seen[user.ID]; dup {
			continue
		}
		seen[user.ID] = struct{}{}
		recipients = append(recipients, user)
	}
	return recipients, nil
}

func dedupeID(event Event) string {
	day := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("%s:%s:%s:%s", event.Type, event.Alert.BranchID, event.Alert.ProductID, day)
}

func describe(event Event) (string, string) {
	alert := event.Alert
	switch event.Type {
	case enums.NotificationTypeOutOfStock:
		return "Out of stock",
			fmt.Sprintf("%s is out of stock at %s.", alert.ProductName, alert.BranchName)
	case enums.NotificationTypeExpiringStock:
		when := ""
		if alert.ExpiryDate != nil {
			when = alert.ExpiryDate.Format("2006-01-02")
		}
		return "Stock expiring soon",
			fmt.Sprintf("%s at %s expires on %s.", alert.ProductName, alert.BranchName, when)
	default:
		return "Low stock",
			fmt.Sprintf("%s at %s is down to %d available units (threshold %d).",
				alert.ProductName, alert.BranchName, alert.AvailableQuantity, alert.MinStockThreshold)
	}
}
