package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opticore/opticore-backend/api/middleware"
	"github.com/opticore/opticore-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx == nil {
		routeCtx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
	}
	routeCtx.URLParams.Add(key, value)
	return r
}

func asActor(r *http.Request, userID, role, branchID string) *http.Request {
	ctx := middleware.WithUserID(r.Context(), userID)
	ctx = middleware.WithRole(ctx, role)
	if branchID != "" {
		ctx = middleware.WithBranchID(ctx, branchID)
	}
	return r.WithContext(ctx)
}
