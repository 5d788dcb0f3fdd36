package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/opticore/opticore-backend/pkg/auth"
	"github.com/opticore/opticore-backend/pkg/config"
	"github.com/opticore/opticore-backend/pkg/enums"
	"github.com/opticore/opticore-backend/pkg/logger"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "opticore-test",
		ExpirationMinutes: 60,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestAuthSeedsContext(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	branchID := uuid.New()

	token, err := pkgauth.MintAccessToken(cfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   userID,
		Role:     enums.RoleStaff,
		BranchID: &branchID,
		JTI:      uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var gotUser, gotRole, gotBranch string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotBranch = BranchIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()

	Auth(cfg, testLogger())(next).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotUser != userID.String() {
		t.Fatalf("expected user %s, got %q", userID, gotUser)
	}
	if gotRole != "staff" {
		t.Fatalf("expected role staff, got %q", gotRole)
	}
	if gotBranch != branchID.String() {
		t.Fatalf("expected branch %s, got %q", branchID, gotBranch)
	}
}

func TestAuthMissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	resp := httptest.NewRecorder()

	Auth(testJWTConfig(), testLogger())(next).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with an invalid token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()

	Auth(testJWTConfig(), testLogger())(next).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequireRolesAllowsListedRole(t *testing.T) {
	handlerRan := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil)
	req = req.WithContext(WithRole(req.Context(), "admin"))
	resp := httptest.NewRecorder()

	RequireRoles(testLogger(), "staff", "admin")(next).ServeHTTP(resp, req)

	if !handlerRan {
		t.Fatal("expected handler to run")
	}
}

func TestRequireRolesRejectsOtherRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for an unlisted role")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil)
	req = req.WithContext(WithRole(req.Context(), "customer"))
	resp := httptest.NewRecorder()

	RequireRoles(testLogger(), "staff", "admin")(next).ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
