package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("conflict body"))
	})

	req := httptest.NewRequest(http.MethodPatch, "/api/orders/cancel", strings.NewReader(`{"orderId":10}`))
	w := httptest.NewRecorder()

	Logger(logger)(handler).ServeHTTP(w, req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["method"] != http.MethodPatch {
		t.Errorf("method = %v, want PATCH", fields["method"])
	}
	if fields["path"] != "/api/orders/cancel" {
		t.Errorf("path = %v, want /api/orders/cancel", fields["path"])
	}
	if fields["status"] != int64(http.StatusConflict) {
		t.Errorf("status = %v, want %d", fields["status"], http.StatusConflict)
	}
	if fields["size"] != int64(len("conflict body")) {
		t.Errorf("size = %v, want %d", fields["size"], len("conflict body"))
	}
}

func TestLogger_DefaultStatus(t *testing.T) {
	// Обработчик, не вызывающий WriteHeader, логируется как 200.
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/10", nil)
	w := httptest.NewRecorder()

	Logger(logger)(handler).ServeHTTP(w, req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if status := entries[0].ContextMap()["status"]; status != int64(http.StatusOK) {
		t.Errorf("status = %v, want 200", status)
	}
}
