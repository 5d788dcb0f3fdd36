package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/api/responses"
	"github.com/opticore/opticore-backend/api/validators"
	"github.com/opticore/opticore-backend/internal/alerts"
	"github.com/opticore/opticore-backend/pkg/logger"
)

// AlertsOverview returns all three alert projections in one payload.
func AlertsOverview(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := alertScope(w, r, logg)
		if !ok {
			return
		}
		overview, err := svc.Overview(r.Context(), scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

// LowStockAlerts lists ledger rows sitting at or under their threshold.
func LowStockAlerts(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return alertSlice(svc, logg, func(o *alerts.Overview) []alerts.Alert { return o.LowStock })
}

// OutOfStockAlerts lists ledger rows with no available units left.
func OutOfStockAlerts(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return alertSlice(svc, logg, func(o *alerts.Overview) []alerts.Alert { return o.OutOfStock })
}

// ExpiringAlerts lists ledger rows whose product expires inside the window.
func ExpiringAlerts(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return alertSlice(svc, logg, func(o *alerts.Overview) []alerts.Alert { return o.ExpiringSoon })
}

func alertSlice(svc alerts.Service, logg *logger.Logger, pick func(*alerts.Overview) []alerts.Alert) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := alertScope(w, r, logg)
		if !ok {
			return
		}
		overview, err := svc.Overview(r.Context(), scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := pick(overview)
		if items == nil {
			items = []alerts.Alert{}
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

func alertScope(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*uuid.UUID, bool) {
	caller, err := actorFromRequest(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	requested, err := validators.ParseQueryUUID(r, "branch_id")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	scope, err := caller.branchFilter(requested)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return scope, true
}
