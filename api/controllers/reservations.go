package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/api/responses"
	"github.com/opticore/opticore-backend/api/validators"
	"github.com/opticore/opticore-backend/internal/reservations"
	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
	"github.com/opticore/opticore-backend/pkg/logger"
	"github.com/opticore/opticore-backend/pkg/pagination"
)

type createReservationRequest struct {
	BranchID  string  `json:"branch_id" validate:"required,uuid"`
	ProductID string  `json:"product_id" validate:"required,uuid"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// CreateReservation files a reservation for the calling customer.
func CreateReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createReservationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		branchID, err := validators.MustUUID(body.BranchID, "branch_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.MustUUID(body.ProductID, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), reservations.CreateInput{
			CustomerID: caller.UserID,
			BranchID:   branchID,
			ProductID:  productID,
			Quantity:   body.Quantity,
			Notes:      body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ListReservations scopes the listing by role: customers see their own,
// staff their branch, admins everything.
func ListReservations(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := reservations.ListParams{}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit
		params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseReservationStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		switch caller.Role {
		case enums.RoleCustomer:
			params.CustomerID = &caller.UserID
		case enums.RoleAdmin:
			branchID, parseErr := validators.ParseQueryUUID(r, "branch_id")
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			params.BranchID = branchID
		default:
			scope, scopeErr := caller.branchFilter(nil)
			if scopeErr != nil {
				responses.WriteError(r.Context(), logg, w, scopeErr)
				return
			}
			params.BranchID = scope
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ReservationBill totals the caller's open reservations at catalog prices.
func ReservationBill(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bill, err := svc.Bill(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bill)
	}
}

// GetReservation returns one reservation; customers may only see their own
// and staff only their branch's.
func GetReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseURLParamUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switch caller.Role {
		case enums.RoleCustomer:
			if reservation.CustomerID != caller.UserID {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "reservation out of scope"))
				return
			}
		case enums.RoleAdmin:
		default:
			if err := caller.requireBranchScope(reservation.BranchID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		responses.WriteSuccess(w, reservation)
	}
}

// ApproveReservation moves a pending reservation to approved.
func ApproveReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationDecision(svc, logg, svc.Approve)
}

// RejectReservation moves a pending reservation to rejected and releases the
// held units.
func RejectReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationDecision(svc, logg, svc.Reject)
}

// CompleteReservation hands the units over: approved only, and staff must
// belong to the reservation's branch.
func CompleteReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseURLParamUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if caller.Role != enums.RoleAdmin {
			reservation, getErr := svc.Get(r.Context(), id)
			if getErr != nil {
				responses.WriteError(r.Context(), logg, w, getErr)
				return
			}
			if err := caller.requireBranchScope(reservation.BranchID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		updated, err := svc.Complete(r.Context(), id, caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// CancelReservation lets the owning customer back out of an open reservation.
func CancelReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseURLParamUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Cancel(r.Context(), id, caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func reservationDecision(svc reservations.Service, logg *logger.Logger,
	decide func(ctx context.Context, id, actorID uuid.UUID) (*models.Reservation, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseURLParamUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := decide(r.Context(), id, caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}
