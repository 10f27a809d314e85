package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorfCarriesHTTPShape(t *testing.T) {
	err := Errorf(http.StatusUnauthorized, "invalid_session", "token expired %d seconds ago", 5)

	if err.Status != http.StatusUnauthorized || err.Code != "invalid_session" {
		t.Fatalf("http shape: %+v", err)
	}
	if err.Error() != "token expired 5 seconds ago" {
		t.Fatalf("message: got=%q", err.Error())
	}

	var apiErr *Error
	if !errors.As(error(err), &apiErr) {
		t.Fatalf("errors.As must find *Error")
	}
}

func TestErrorMessageFallbacks(t *testing.T) {
	if got := (&Error{Code: "invalid_state"}).Error(); got != "invalid_state" {
		t.Fatalf("code fallback: got=%q", got)
	}
	if got := (&Error{Status: 400}).Error(); got != "api error (status=400)" {
		t.Fatalf("status fallback: got=%q", got)
	}
	var nilErr *Error
	if got := nilErr.Error(); got != "" {
		t.Fatalf("nil receiver: got=%q", got)
	}
}
