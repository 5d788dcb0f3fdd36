package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/opticore/opticore-backend/api/responses"
	"github.com/opticore/opticore-backend/api/validators"
	"github.com/opticore/opticore-backend/internal/stock"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
	"github.com/opticore/opticore-backend/pkg/logger"
	"github.com/opticore/opticore-backend/pkg/pagination"
)

type setStockRequest struct {
	StockQuantity     int     `json:"stock_quantity" validate:"gte=0"`
	MinStockThreshold *int    `json:"min_stock_threshold,omitempty" validate:"omitempty,gte=0"`
	ExpiryDate        *string `json:"expiry_date,omitempty"`
}

type stockListResponse struct {
	Items   []stock.StockView    `json:"items"`
	Cursor  string               `json:"cursor,omitempty"`
	Summary *stock.SummaryCounts `json:"summary,omitempty"`
}

// ListAllStock returns every branch ledger with the fleet-wide summary.
// Admin only; the route guard enforces the role.
func ListAllStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := stock.ListParams{}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit
		params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))

		productID, err := validators.ParseQueryUUID(r, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.ProductID = productID

		branchID, err := validators.ParseQueryUUID(r, "branch_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.BranchID = branchID

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), branchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stockListResponse{Items: result.Items, Cursor: result.Cursor, Summary: summary})
	}
}

// ListBranchStock returns one branch's ledger plus its summary. Staff are
// limited to their home branch.
func ListBranchStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		branchID, err := validators.ParseURLParamUUID(r, "branchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := caller.requireBranchScope(branchID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), stock.ListParams{
			BranchID: &branchID,
			Limit:    limit,
			Cursor:   strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), &branchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stockListResponse{Items: result.Items, Cursor: result.Cursor, Summary: summary})
	}
}

// SetBranchStock writes an absolute quantity for one product at one branch.
func SetBranchStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseURLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		branchID, err := validators.ParseURLParamUUID(r, "branchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := caller.requireBranchScope(branchID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := stock.SetStockInput{
			BranchID:          branchID,
			ProductID:         productID,
			StockQuantity:     body.StockQuantity,
			MinStockThreshold: body.MinStockThreshold,
		}
		if body.ExpiryDate != nil {
			parsed, parseErr := time.Parse("2006-01-02", *body.ExpiryDate)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "expiry_date must be YYYY-MM-DD"))
				return
			}
			input.ExpiryDate = &parsed
		}

		row, err := svc.SetStock(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// GetBranchStock returns the availability view for one product at one branch.
// Any authenticated role may read it.
func GetBranchStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseURLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		branchID, err := validators.ParseURLParamUUID(r, "branchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), branchID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
