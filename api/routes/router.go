package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opticore/opticore-backend/api/controllers"
	"github.com/opticore/opticore-backend/api/middleware"
	"github.com/opticore/opticore-backend/internal/alerts"
	"github.com/opticore/opticore-backend/internal/notifications"
	"github.com/opticore/opticore-backend/internal/reservations"
	"github.com/opticore/opticore-backend/internal/restock"
	"github.com/opticore/opticore-backend/internal/stock"
	"github.com/opticore/opticore-backend/internal/transfers"
	"github.com/opticore/opticore-backend/pkg/config"
	"github.com/opticore/opticore-backend/pkg/db"
	"github.com/opticore/opticore-backend/pkg/enums"
	"github.com/opticore/opticore-backend/pkg/logger"
	pkgredis "github.com/opticore/opticore-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Stock         stock.Service
	Reservations  reservations.Service
	Transfers     transfers.Service
	Restock       restock.Service
	Alerts        alerts.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	staffOrAdmin := middleware.RequireRoles(logg, enums.RoleStaff.String(), enums.RoleAdmin.String())
	adminOnly := middleware.RequireRole(enums.RoleAdmin.String(), logg)
	customerOnly := middleware.RequireRole(enums.RoleCustomer.String(), logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore(redisClient), logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/stock", func(r chi.Router) {
			r.With(adminOnly).Get("/", controllers.ListAllStock(svcs.Stock, logg))
			r.With(staffOrAdmin).Get("/branches/{branchId}", controllers.ListBranchStock(svcs.Stock, logg))
			r.With(staffOrAdmin).Put("/{productId}/branches/{branchId}", controllers.SetBranchStock(svcs.Stock, logg))
			r.Get("/{productId}/branches/{branchId}", controllers.GetBranchStock(svcs.Stock, logg))
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Use(staffOrAdmin)
			r.Get("/", controllers.AlertsOverview(svcs.Alerts, logg))
			r.Get("/low-stock", controllers.LowStockAlerts(svcs.Alerts, logg))
			r.Get("/out-of-stock", controllers.OutOfStockAlerts(svcs.Alerts, logg))
			r.Get("/expiring", controllers.ExpiringAlerts(svcs.Alerts, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.With(customerOnly).Post("/", controllers.CreateReservation(svcs.Reservations, logg))
			r.Get("/", controllers.ListReservations(svcs.Reservations, logg))
			r.With(customerOnly).Get("/bill", controllers.ReservationBill(svcs.Reservations, logg))
			r.Get("/{reservationId}", controllers.GetReservation(svcs.Reservations, logg))
			r.With(staffOrAdmin).Post("/{reservationId}/approve", controllers.ApproveReservation(svcs.Reservations, logg))
			r.With(staffOrAdmin).Post("/{reservationId}/reject", controllers.RejectReservation(svcs.Reservations, logg))
			r.With(staffOrAdmin).Post("/{reservationId}/complete", controllers.CompleteReservation(svcs.Reservations, logg))
			r.With(customerOnly).Post("/{reservationId}/cancel", controllers.CancelReservation(svcs.Reservations, logg))
		})

		r.Route("/transfers", func(r chi.Router) {
			r.With(staffOrAdmin).Post("/", controllers.CreateTransfer(svcs.Transfers, logg))
			r.With(staffOrAdmin).Get("/", controllers.ListTransfers(svcs.Transfers, logg))
			r.With(staffOrAdmin).Get("/{transferId}", controllers.GetTransfer(svcs.Transfers, logg))
			r.With(adminOnly).Post("/{transferId}/approve", controllers.ApproveTransfer(svcs.Transfers, logg))
			r.With(adminOnly).Post("/{transferId}/reject", controllers.RejectTransfer(svcs.Transfers, logg))
			r.With(adminOnly).Post("/{transferId}/dispatch", controllers.DispatchTransfer(svcs.Transfers, logg))
			r.With(adminOnly).Post("/{transferId}/complete", controllers.CompleteTransfer(svcs.Transfers, logg))
			r.With(staffOrAdmin).Post("/{transferId}/cancel", controllers.CancelTransfer(svcs.Transfers, logg))
		})

		r.Route("/restock-requests", func(r chi.Router) {
			r.With(staffOrAdmin).Post("/", controllers.CreateRestock(svcs.Restock, logg))
			r.With(staffOrAdmin).Get("/", controllers.ListRestock(svcs.Restock, logg))
			r.With(staffOrAdmin).Get("/{restockId}", controllers.GetRestock(svcs.Restock, logg))
			r.With(adminOnly).Post("/{restockId}/approve", controllers.ApproveRestock(svcs.Restock, logg))
			r.With(adminOnly).Post("/{restockId}/reject", controllers.RejectRestock(svcs.Restock, logg))
			r.With(adminOnly).Post("/{restockId}/fulfill", controllers.FulfillRestock(svcs.Restock, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})
	})

	return r
}

// idempotencyStore keeps the middleware optional when Redis is not wired,
// e.g. in router tests.
func idempotencyStore(client *pkgredis.Client) pkgredis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}
