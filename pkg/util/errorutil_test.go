package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestInvalidTransitionCarriesBothStatuses(t *testing.T) {
	err := NewInvalidTransition("OPEN", "RESOLVED")
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if de.Code != "INVALID_TRANSITION" || de.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("unexpected error: %+v", de)
	}
	if de.Details["current_status"] != "OPEN" || de.Details["attempted_status"] != "RESOLVED" {
		t.Fatalf("details = %v", de.Details)
	}
}

func TestToDomainErrorMapsNoRowsToNotFound(t *testing.T) {
	de := ToDomainError(fmt.Errorf("fetch ticket: %w", pgx.ErrNoRows))
	if de.Code != "NOT_FOUND" || de.HTTPStatus != http.StatusNotFound {
		t.Fatalf("unexpected mapping: %+v", de)
	}
}

func TestToDomainErrorPassesDomainErrorsThrough(t *testing.T) {
	original := NewValidationError("bad payload", map[string]any{"title": "too short"})
	de := ToDomainError(fmt.Errorf("handler: %w", original))
	if de.Code != "VALIDATION_FAILED" {
		t.Fatalf("code = %s, want VALIDATION_FAILED", de.Code)
	}
	if de.Details["title"] != "too short" {
		t.Fatalf("details lost: %v", de.Details)
	}
}

func TestToDomainErrorWrapsUnknownAsInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	if de.Code != "INTERNAL_ERROR" || de.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected mapping: %+v", de)
	}
}
