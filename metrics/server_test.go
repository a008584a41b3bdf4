package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		healthy bool
		status  string
		code    int
	}{
		{"registered", true, "Accepted", http.StatusOK},
		{"offline", false, "offline", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(func() (bool, string) { return tt.healthy, tt.status }, nil)
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
			if recorder.Code != tt.code {
				t.Errorf("code = %d, want %d", recorder.Code, tt.code)
			}
			if strings.TrimSpace(recorder.Body.String()) != tt.status {
				t.Errorf("body = %q, want %q", recorder.Body.String(), tt.status)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewRouter(nil, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if recorder.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", recorder.Code)
	}
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/status", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("status without writer: code = %d, want 404", recorder.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router := NewRouter(nil, func(w io.Writer) { _, _ = io.WriteString(w, "connector 1 Available") })
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/status", nil))
	if recorder.Body.String() != "connector 1 Available" {
		t.Errorf("body = %q", recorder.Body.String())
	}
}
