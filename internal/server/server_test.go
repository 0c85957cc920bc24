package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/boundary"
	"github.com/lazypower/affect/internal/engine"
	"github.com/lazypower/affect/internal/inference"
	"github.com/lazypower/affect/internal/store"
)

func testServer(t *testing.T, p inference.Predictor) (*Server, *boundary.Adapter) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e := engine.New(engine.Static(p), engine.Options{BlendRatio: engine.DefaultBlendRatio, Logger: zerolog.Nop()})
	t.Cleanup(func() { e.Close() })
	a := boundary.New(e, zerolog.Nop())
	return New(a, Options{DB: db, Version: "test-version", Logger: zerolog.Nop()}), a
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) boundary.Payload {
	t.Helper()
	var p boundary.Payload
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return p
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t, &inference.Mock{})

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["database"] != true {
		t.Errorf("database = %v, want true", body["database"])
	}
	if body["initialized"] != false {
		t.Errorf("initialized = %v, want false", body["initialized"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t, &inference.Mock{})
	do(t, srv, "GET", "/api/health", "")

	w := do(t, srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "affect_http_requests_total") {
		t.Errorf("metrics output missing request counter")
	}
}

func TestNotInitializedIs503(t *testing.T) {
	srv, _ := testServer(t, &inference.Mock{})

	w := do(t, srv, "GET", "/api/npcs", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if p := decode(t, w); p.Kind != affect.KindNotInitialized {
		t.Errorf("kind = %q, want %q", p.Kind, affect.KindNotInitialized)
	}
}

func TestInitializeTwiceIs409(t *testing.T) {
	srv, _ := testServer(t, &inference.Mock{})
	if w := do(t, srv, "POST", "/api/initialize", ""); w.Code != http.StatusOK {
		t.Fatalf("first initialize: status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/initialize", ""); w.Code != http.StatusConflict {
		t.Fatalf("second initialize: status = %d, want %d", w.Code, http.StatusConflict)
	}
}
