package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/internal/stock"
	"github.com/opticore/opticore-backend/pkg/db/models"
)

type testStockService struct {
	setStockFn  func(ctx context.Context, input stock.SetStockInput) (*models.BranchStock, error)
	getFn       func(ctx context.Context, branchID, productID uuid.UUID) (*stock.StockView, error)
	listFn      func(ctx context.Context, params stock.ListParams) (*stock.ListResult, error)
	summaryFn   func(ctx context.Context, branchID *uuid.UUID) (*stock.SummaryCounts, error)
	availableFn func(ctx context.Context, branchID, productID uuid.UUID) (int, error)
}

func (s *testStockService) SetStock(ctx context.Context, input stock.SetStockInput) (*models.BranchStock, error) {
	if s.setStockFn != nil {
		return s.setStockFn(ctx, input)
	}
	return &models.BranchStock{}, nil
}

func (s *testStockService) Get(ctx context.Context, branchID, productID uuid.UUID) (*stock.StockView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, branchID, productID)
	}
	return &stock.StockView{}, nil
}

func (s *testStockService) List(ctx context.Context, params stock.ListParams) (*stock.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &stock.ListResult{}, nil
}

func (s *testStockService) Summary(ctx context.Context, branchID *uuid.UUID) (*stock.SummaryCounts, error) {
	if s.summaryFn != nil {
		return s.summaryFn(ctx, branchID)
	}
	return &stock.SummaryCounts{}, nil
}

func (s *testStockService) Available(ctx context.Context, branchID, productID uuid.UUID) (int, error) {
	if s.availableFn != nil {
		return s.availableFn(ctx, branchID, productID)
	}
	return 0, nil
}

func TestSetBranchStockSuccess(t *testing.T) {
	branchID := uuid.New()
	productID := uuid.New()
	threshold := 3

	var got stock.SetStockInput
	svc := &testStockService{
		setStockFn: func(ctx context.Context, input stock.SetStockInput) (*models.BranchStock, error) {
			got = input
			return &models.BranchStock{BranchID: input.BranchID, ProductID: input.ProductID, StockQuantity: input.StockQuantity}, nil
		},
	}

	body := `{"stock_quantity": 40, "min_stock_threshold": 3, "expiry_date": "2027-01-31"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/stock/"+productID.String()+"/branches/"+branchID.String(), strings.NewReader(body))
	req = asActor(req, uuid.NewString(), "staff", branchID.String())
	req = addRouteParam(req, "productId", productID.String())
	req = addRouteParam(req, "branchId", branchID.String())

	resp := httptest.NewRecorder()
	SetBranchStock(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if got.BranchID != branchID || got.ProductID != productID {
		t.Fatalf("service received wrong identifiers: %+v", got)
	}
	if got.StockQuantity != 40 {
		t.Fatalf("expected quantity 40, got %d", got.StockQuantity)
	}
	if got.MinStockThreshold == nil || *got.MinStockThreshold != threshold {
		t.Fatalf("expected threshold %d, got %v", threshold, got.MinStockThreshold)
	}
	if got.ExpiryDate == nil || got.ExpiryDate.Format("2006-01-02") != "2027-01-31" {
		t.Fatalf("expected expiry 2027-01-31, got %v", got.ExpiryDate)
	}
}

func TestSetBranchStockForeignBranchForbidden(t *testing.T) {
	branchID := uuid.New()
	productID := uuid.New()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/stock/"+productID.String()+"/branches/"+branchID.String(), strings.NewReader(`{"stock_quantity": 5}`))
	req = asActor(req, uuid.NewString(), "staff", uuid.NewString())
	req = addRouteParam(req, "productId", productID.String())
	req = addRouteParam(req, "branchId", branchID.String())

	resp := httptest.NewRecorder()
	SetBranchStock(&testStockService{}, testLogger())(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestSetBranchStockAdminAnyBranch(t *testing.T) {
	branchID := uuid.New()
	productID := uuid.New()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/stock/"+productID.String()+"/branches/"+branchID.String(), strings.NewReader(`{"stock_quantity": 5}`))
	req = asActor(req, uuid.NewString(), "admin", "")
	req = addRouteParam(req, "productId", productID.String())
	req = addRouteParam(req, "branchId", branchID.String())

	resp := httptest.NewRecorder()
	SetBranchStock(&testStockService{}, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestSetBranchStockBadExpiryDate(t *testing.T) {
	branchID := uuid.New()
	productID := uuid.New()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/stock/"+productID.String()+"/branches/"+branchID.String(), strings.NewReader(`{"stock_quantity": 5, "expiry_date": "31/01/2027"}`))
	req = asActor(req, uuid.NewString(), "admin", "")
	req = addRouteParam(req, "productId", productID.String())
	req = addRouteParam(req, "branchId", branchID.String())

	resp := httptest.NewRecorder()
	SetBranchStock(&testStockService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestGetBranchStockInvalidProduct(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock/bad/branches/"+uuid.NewString(), nil)
	req = asActor(req, uuid.NewString(), "customer", "")
	req = addRouteParam(req, "productId", "bad")
	req = addRouteParam(req, "branchId", uuid.NewString())

	resp := httptest.NewRecorder()
	GetBranchStock(&testStockService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestListBranchStockIncludesSummary(t *testing.T) {
	branchID := uuid.New()
	svc := &testStockService{
		listFn: func(ctx context.Context, params stock.ListParams) (*stock.ListResult, error) {
			if params.BranchID == nil || *params.BranchID != branchID {
				t.Fatalf("expected branch filter %s, got %v", branchID, params.BranchID)
			}
			return &stock.ListResult{Items: []stock.StockView{}}, nil
		},
		summaryFn: func(ctx context.Context, scoped *uuid.UUID) (*stock.SummaryCounts, error) {
			return &stock.SummaryCounts{TotalRows: 7, LowStock: 2}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock/branches/"+branchID.String(), nil)
	req = asActor(req, uuid.NewString(), "staff", branchID.String())
	req = addRouteParam(req, "branchId", branchID.String())

	resp := httptest.NewRecorder()
	ListBranchStock(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Summary struct {
				TotalRows int64 `json:"TotalRows"`
				LowStock  int64 `json:"LowStock"`
			} `json:"summary"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Summary.TotalRows != 7 || envelope.Data.Summary.LowStock != 2 {
		t.Fatalf("summary not propagated: %+v", envelope.Data.Summary)
	}
}
