package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// okHandler responds 200 "ok".
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func call(t *testing.T, h http.Handler, target, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		key        string
		target     string
		sendHeader string
		sendKey    string
		wantStatus int
	}{
		{"mode none passes through", "none", "secret", "/api/v1/health", "", "", http.StatusOK},
		{"empty key passes through", "apikey", "", "/api/v1/health", "", "", http.StatusOK},
		{"correct key", "apikey", "supersecret", "/api/v1/health", "x-api-key", "supersecret", http.StatusOK},
		{"header is case-insensitive", "apikey", "supersecret", "/api/v1/health", "X-Api-Key", "supersecret", http.StatusOK},
		{"wrong key", "apikey", "supersecret", "/api/v1/health", "x-api-key", "wrong", http.StatusUnauthorized},
		{"missing key", "apikey", "supersecret", "/api/v1/health", "", "", http.StatusUnauthorized},
		{"wrong header name", "apikey", "supersecret", "/api/v1/health", "x-other", "supersecret", http.StatusUnauthorized},
		{"query parameter", "apikey", "supersecret", "/ws/stream?api_key=supersecret", "", "", http.StatusOK},
		{"wrong query parameter", "apikey", "supersecret", "/ws/stream?api_key=nope", "", "", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := APIKey(tc.mode, "x-api-key", tc.key)(okHandler)
			rec := call(t, h, tc.target, tc.sendHeader, tc.sendKey)
			if rec.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestAPIKey_ErrorBody(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "supersecret")(okHandler)
	rec := call(t, h, "/api/v1/health", "x-api-key", "wrong")
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), "invalid api key") {
		t.Errorf("body: got %q", rec.Body.String())
	}
}
