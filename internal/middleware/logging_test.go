package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// captureLogs swaps the default logger for one writing to a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCode  int
		wantLevel string
	}{
		{
			name:      "explicit status",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusConflict) },
			wantCode:  http.StatusConflict,
			wantLevel: "level=INFO",
		},
		{
			name:      "implicit 200 on write",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("{}")) },
			wantCode:  http.StatusOK,
			wantLevel: "level=INFO",
		},
		{
			name:      "server error logged as error",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantCode:  http.StatusInternalServerError,
			wantLevel: "level=ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			rr := httptest.NewRecorder()
			Logger(tt.handler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/jobs", nil))

			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("log %q missing %s", out, tt.wantLevel)
			}
			if !strings.Contains(out, "method=POST") || !strings.Contains(out, "path=/api/jobs") {
				t.Errorf("log %q missing request attributes", out)
			}
			if strings.Contains(out, "request_id=") {
				t.Error("request_id logged without RequestID middleware")
			}
		})
	}
}

func TestLoggerRecordsRequestID(t *testing.T) {
	buf := captureLogs(t)

	handler := chimw.RequestID(Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/abc/batch", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"level=ERROR", "request_id=req-42", "status=500", "path=/api/jobs/abc/batch"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	rw.Write([]byte("late"))

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want 404", rw.statusCode)
	}
}
