package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:        http.StatusUnprocessableEntity,
		CodeUnauthorized:      http.StatusUnauthorized,
		CodeForbidden:         http.StatusForbidden,
		CodeNotFound:          http.StatusNotFound,
		CodeConflict:          http.StatusConflict,
		CodeStateConflict:     http.StatusUnprocessableEntity,
		CodeInsufficientStock: http.StatusUnprocessableEntity,
		CodeInternal:          http.StatusInternalServerError,
	}
	for code, status := range cases {
		if got := MetadataFor(code).HTTPStatus; got != status {
			t.Fatalf("%s: expected %d got %d", code, status, got)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(CodeDependency, cause, "load ledger")
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be discoverable")
	}
	if typed := As(err); typed == nil || typed.Code() != CodeDependency {
		t.Fatalf("unexpected typed error: %v", typed)
	}
}

func TestInsufficientStockDetails(t *testing.T) {
	err := InsufficientStock("insufficient stock at branch", 4)
	details, ok := err.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected map details, got %T", err.Details())
	}
	if details["available_quantity"] != 4 {
		t.Fatalf("expected available_quantity 4, got %v", details["available_quantity"])
	}
	if !MetadataFor(err.Code()).DetailsAllowed {
		t.Fatal("insufficient stock details must be exposed")
	}
}

func TestAsNilSafety(t *testing.T) {
	if As(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	if As(errors.New("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
}
