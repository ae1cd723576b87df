// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecoverer(t *testing.T) {
	panics := []struct {
		name  string
		value any
	}{
		{"string", "batch exploded"},
		{"int", 42},
		{"error", errors.New("nil map write")},
	}

	for _, p := range panics {
		t.Run(p.name, func(t *testing.T) {
			h := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(p.value)
			}))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/jobs/x/batch", nil))

			if rr.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rr.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("body %q is not JSON: %v", rr.Body.String(), err)
			}
			if body["error"] != "internal server error" {
				t.Errorf("error = %q", body["error"])
			}
		})
	}
}

func TestRecovererPassThrough(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/api/jobs/1")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"1"}`))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/jobs", nil))

	if rr.Code != http.StatusCreated || rr.Body.String() != `{"id":"1"}` {
		t.Errorf("got %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Location") != "/api/jobs/1" {
		t.Error("handler headers lost")
	}
}
