package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsCarryStatusAndCode(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		wantStatus int
		wantCode   Code
	}{
		{"not found", NotFound("instance %d", 7), http.StatusNotFound, CodeNotFound},
		{"not owner", NotOwner("x"), http.StatusForbidden, CodeNotOwner},
		{"already listed", AlreadyListed("x"), http.StatusConflict, CodeAlreadyListed},
		{"not listed", NotListed("x"), http.StatusConflict, CodeNotListed},
		{"invalid desired set", InvalidDesiredSet("x"), http.StatusUnprocessableEntity, CodeInvalidDesiredSet},
		{"listing not open", ListingNotOpen("x"), http.StatusConflict, CodeListingNotOpen},
		{"not acceptable", NotAcceptable("x"), http.StatusUnprocessableEntity, CodeNotAcceptable},
		{"self swap", SelfSwap("x"), http.StatusConflict, CodeSelfSwap},
		{"conflict", Conflict("x"), http.StatusConflict, CodeConflict},
		{"unauthorized", Unauthorized("x"), http.StatusUnauthorized, CodeUnauthorized},
		{"invalid request", InvalidRequest("x"), http.StatusBadRequest, CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Status != tt.wantStatus {
				t.Fatalf("status: want=%d got=%d", tt.wantStatus, tt.err.Status)
			}
			if tt.err.Code != tt.wantCode {
				t.Fatalf("code: want=%s got=%s", tt.wantCode, tt.err.Code)
			}
		})
	}
}

func TestIsCodeSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("resolve swap: %w", Conflict("instance version moved"))
	if !IsCode(wrapped, CodeConflict) {
		t.Fatal("IsCode should unwrap")
	}
	if IsCode(wrapped, CodeNotFound) {
		t.Fatal("IsCode matched the wrong code")
	}
	if IsCode(errors.New("plain"), CodeConflict) {
		t.Fatal("IsCode matched a non-api error")
	}
	if got := CodeOf(wrapped); got != CodeConflict {
		t.Fatalf("CodeOf: want=%s got=%s", CodeConflict, got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("CodeOf non-api error: want empty got=%s", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Conflict("version moved")) {
		t.Fatal("conflicts are retryable")
	}
	if IsRetryable(NotFound("gone")) {
		t.Fatal("not-found is terminal")
	}
}
