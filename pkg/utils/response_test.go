package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondError(t *testing.T) {
	resp := httptest.NewRecorder()
	RespondError(resp, http.StatusUnauthorized, "unauthorized")

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body := strings.TrimSpace(resp.Body.String()); body != `{"error":"unauthorized"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestRespondText(t *testing.T) {
	resp := httptest.NewRecorder()
	RespondText(resp, http.StatusOK, "OK")

	if resp.Body.String() != "OK" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
}
