package hello

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	applog "github.com/tapeshchavle/cicd/internal/platform/logging"
	appmiddleware "github.com/tapeshchavle/cicd/internal/platform/middleware"
	"github.com/tapeshchavle/cicd/internal/platform/respond"
)

const wantJSON = `{"message":"Hello from Spring Boot!","status":"success"}`

func newTestRouter() chi.Router {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())
	router.Use(
		appmiddleware.RequestID(),
		chimiddleware.RealIP,
		applog.RequestLogger(""),
		respond.Recoverer(),
	)
	cfg := huma.DefaultConfig("HelloTest", "test")
	cfg.CreateHooks = nil
	api := humachi.New(router, cfg)
	Register(api)
	return router
}

func TestGetJSON(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "hello-get-json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	if got := strings.TrimSpace(resp.Body.String()); got != wantJSON {
		t.Fatalf("expected body %s, got %s", wantJSON, got)
	}

	var hello Data
	if err := json.Unmarshal(resp.Body.Bytes(), &hello); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if hello.Message != Message || hello.Status != StatusSuccess {
		t.Errorf("unexpected greeting: %+v", hello)
	}
}

func TestGetCBOR(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set("Accept", "application/cbor")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/cbor" {
		t.Errorf("expected application/cbor, got %s", ct)
	}

	var hello Data
	if err := cbor.Unmarshal(resp.Body.Bytes(), &hello); err != nil {
		t.Fatalf("cbor unmarshal: %v", err)
	}
	if hello.Message != Message || hello.Status != StatusSuccess {
		t.Errorf("unexpected greeting: %+v", hello)
	}
}

func TestGetFallsBackToJSON(t *testing.T) {
	router := newTestRouter()
	for _, accept := range []string{"", "*/*", "application/*", "text/html"} {
		t.Run("accept="+accept, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/hello", nil)
			if accept != "" {
				req.Header.Set("Accept", accept)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected application/json, got %q", ct)
			}
		})
	}
}

func TestGetIsIdempotent(t *testing.T) {
	router := newTestRouter()

	var first []byte
	for i := range 5 {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/hello", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.Code)
		}
		if i == 0 {
			first = resp.Body.Bytes()
			continue
		}
		if resp.Body.String() != string(first) {
			t.Fatalf("request %d body differs: %q vs %q", i, resp.Body.String(), first)
		}
	}
}

func TestGetIgnoresQueryAndBody(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/hello?name=World&status=failed", strings.NewReader(`{"message":"ignored"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := strings.TrimSpace(resp.Body.String()); got != wantJSON {
		t.Fatalf("expected body %s, got %s", wantJSON, got)
	}
}

func TestPostNotAllowed(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/hello", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if allow := resp.Header().Get("Allow"); allow != http.MethodGet {
		t.Errorf("expected Allow GET, got %q", allow)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected application/problem+json, got %s", ct)
	}
}

func TestOperationDocumented(t *testing.T) {
	cfg := huma.DefaultConfig("HelloTest", "test")
	cfg.CreateHooks = nil
	api := humachi.New(chi.NewRouter(), cfg)
	Register(api)

	item := api.OpenAPI().Paths["/hello"]
	if item == nil || item.Get == nil {
		t.Fatal("expected GET /hello in the OpenAPI document")
	}
	if item.Get.OperationID != OperationID {
		t.Fatalf("expected operation ID %s, got %s", OperationID, item.Get.OperationID)
	}
	if item.Post != nil {
		t.Fatal("did not expect POST /hello to be documented")
	}
}
