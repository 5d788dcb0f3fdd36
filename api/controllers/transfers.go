package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/api/responses"
	"github.com/opticore/opticore-backend/api/validators"
	"github.com/opticore/opticore-backend/internal/transfers"
	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
	"github.com/opticore/opticore-backend/pkg/logger"
	"github.com/opticore/opticore-backend/pkg/pagination"
)

type createTransferRequest struct {
	FromBranchID string  `json:"from_branch_id" validate:"required,uuid"`
	ToBranchID   string  `json:"to_branch_id" validate:"required,uuid"`
	ProductID    string  `json:"product_id" validate:"required,uuid"`
	Quantity     int     `json:"quantity" validate:"required,gt=0"`
	Notes        *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// CreateTransfer files a stock transfer request between two branches.
func CreateTransfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createTransferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fromID, err := validators.MustUUID(body.FromBranchID, "from_branch_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		toID, err := validators.MustUUID(body.ToBranchID, "to_branch_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.MustUUID(body.ProductID, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), transfers.CreateInput{
			FromBranchID: fromID,
			ToBranchID:   toID,
			ProductID:    productID,
			Quantity:     body.Quantity,
			Notes:        body.Notes,
			RequestedBy:  caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ListTransfers scopes the listing: staff see transfers touching their
// branch, admins everything.
func ListTransfers(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := transfers.ListParams{}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit
		params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseTransferStatus(raw)
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

// GetTransfer returns one transfer; staff must be on either end of the route.
func GetTransfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseURLParamUUID(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transfer, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if caller.Role != enums.RoleAdmin && !touchesBranch(caller, transfer) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "transfer out of scope"))
			return
		}

		responses.WriteSuccess(w, transfer)
	}
}

// ApproveTransfer re-validates availability; an unfillable transfer lands on
// rejected and is returned as the final state.
func ApproveTransfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return transferDecision(svc, logg, svc.Approve)
}

// RejectTransfer declines a pending transfer.
func RejectTransfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return transferDecision(svc, logg, svc.Reject)
}

// DispatchTransfer marks an approved transfer as on its way.
func DispatchTransfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return transferDecision(svc, logg, svc.Dispatch)
}

// CompleteTransfer moves the units between the two ledgers.
func CompleteTransfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return transferDecision(svc, logg, svc.Complete)
}

// CancelTransfer withdraws an open transfer. Staff must be on either end of
// the route.
func CancelTransfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseURLParamUUID(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if caller.Role != enums.RoleAdmin {
			transfer, getErr := svc.Get(r.Context(), id)
			if getErr != nil {
				responses.WriteError(r.Context(), logg, w, getErr)
				return
			}
			if !touchesBranch(caller, transfer) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "transfer out of scope"))
				return
			}
		}

		updated, err := svc.Cancel(r.Context(), id, caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func touchesBranch(caller *actor, transfer *models.StockTransfer) bool {
	if caller.BranchID == nil {
		return false
	}
	return *caller.BranchID == transfer.FromBranchID || *caller.BranchID == transfer.ToBranchID
}

func transferDecision(svc transfers.Service, logg *logger.Logger,
	decide func(ctx context.Context, id, actorID uuid.UUID) (*models.StockTransfer, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseURLParamUUID(r, "transferId")
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
