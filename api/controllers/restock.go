package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/api/responses"
	"github.com/opticore/opticore-backend/api/validators"
	"github.com/opticore/opticore-backend/internal/restock"
	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
	"github.com/opticore/opticore-backend/pkg/logger"
	"github.com/opticore/opticore-backend/pkg/pagination"
)

type createRestockRequest struct {
	BranchID  *string `json:"branch_id,omitempty" validate:"omitempty,uuid"`
	ProductID string  `json:"product_id" validate:"required,uuid"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// CreateRestock files a restock request. Staff default to their home branch;
// admins must name the branch explicitly.
func CreateRestock(svc restock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRestockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.MustUUID(body.ProductID, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var branchID uuid.UUID
		switch {
		case body.BranchID != nil:
			branchID, err = validators.MustUUID(*body.BranchID, "branch_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if err := caller.requireBranchScope(branchID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		case caller.BranchID != nil:
			branchID = *caller.BranchID
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "branch_id required"))
			return
		}

		created, err := svc.Create(r.Context(), restock.CreateInput{
			BranchID:    branchID,
			ProductID:   productID,
			Quantity:    body.Quantity,
			Notes:       body.Notes,
			RequestedBy: caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ListRestock scopes the listing: staff see their branch, admins everything.
func ListRestock(svc restock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := restock.ListParams{}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit
		params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseRestockStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		requested, err := validators.ParseQueryUUID(r, "branch_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := caller.branchFilter(requested)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.BranchID = scope

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GetRestock returns one restock request, branch-scoped for staff.
func GetRestock(svc restock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseURLParamUUID(r, "restockId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if caller.Role != enums.RoleAdmin {
			if err := caller.requireBranchScope(request.BranchID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		responses.WriteSuccess(w, request)
	}
}

// ApproveRestock moves a pending request to approved.
func ApproveRestock(svc restock.Service, logg *logger.Logger) http.HandlerFunc {
	return restockDecision(svc, logg, svc.Approve)
}

// RejectRestock declines a pending request.
func RejectRestock(svc restock.Service, logg *logger.Logger) http.HandlerFunc {
	return restockDecision(svc, logg, svc.Reject)
}

// FulfillRestock credits the requested units onto the branch ledger.
func FulfillRestock(svc restock.Service, logg *logger.Logger) http.HandlerFunc {
	return restockDecision(svc, logg, svc.Fulfill)
}

func restockDecision(svc restock.Service, logg *logger.Logger,
	decide func(ctx context.Context, id, actorID uuid.UUID) (*models.RestockRequest, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseURLParamUUID(r, "restockId")
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
