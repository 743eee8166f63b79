// Package respond renders transport-level failures (unknown routes, wrong
// methods, panics) as RFC 9457 problem details in JSON or CBOR.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tapeshchavle/cicd/internal/platform/logging"
)

const (
	// ErrorSchemaPath is where huma serves the JSON schema of its ErrorModel
	// when the API is mounted under /api.
	ErrorSchemaPath = "/api/schemas/ErrorModel.json"

	contentTypeProblemJSON = "application/problem+json"
	contentTypeProblemCBOR = "application/problem+cbor"

	msgNotFound          = "resource not found"
	msgInternalServerErr = "internal server error"
)

// problem mirrors huma.ErrorModel with the $schema link huma adds to its own
// error bodies. cbor falls back to the json tags.
type problem struct {
	Schema string `json:"$schema,omitempty"`
	Title  string `json:"title,omitempty"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NotFoundHandler renders 404 problem details.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, msgNotFound, nil)
	}
}

// MethodNotAllowedHandler renders 405 problem details and lists the methods
// the matched path does support in the Allow header.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		detail := fmt.Sprintf("method not allowed for %s", r.Method)
		writeProblem(w, r, http.StatusMethodNotAllowed, detail, nil)
	}
}

// Recoverer turns panics into 500 problem details. http.ErrAbortHandler is
// re-raised so net/http can abort the connection, and nothing is written
// when the handler already sent its headers.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("%v", v)
				}
				if rw.wroteHeader {
					logging.LogError(r.Context(), "panic after response started", err,
						zap.ByteString("stack", debug.Stack()))
					return
				}
				writeProblem(rw, r, http.StatusInternalServerError, msgInternalServerErr, err,
					zap.ByteString("stack", debug.Stack()))
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string, cause error, fields ...zap.Field) {
	fields = append(fields,
		zap.Int("status", status),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	if status >= http.StatusInternalServerError {
		logging.LogError(r.Context(), detail, cause, fields...)
	} else {
		logging.LogWarn(r.Context(), detail, fields...)
	}

	schema := schemaURL(r)
	body := problem{
		Schema: schema,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}

	h := w.Header()
	ensureVary(h, "Origin", "Accept")
	h.Set("Link", "<"+schema+`>; rel="describedBy"`)

	if selectFormat(r.Header.Get("Accept")) {
		data, err := cbor.Marshal(body)
		if err != nil {
			logging.LogError(r.Context(), "failed to encode problem details", err)
			http.Error(w, http.StatusText(status), status)
			return
		}
		h.Set("Content-Type", contentTypeProblemCBOR)
		w.WriteHeader(status)
		_, _ = w.Write(data)
		return
	}

	h.Set("Content-Type", contentTypeProblemJSON)
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		logging.LogError(r.Context(), "failed to encode problem details", err)
	}
}

func schemaURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + ErrorSchemaPath
}

var probeMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// allowedMethods probes the root router for every method registered on the
// request path. rctx.Routes is the top-level mux even inside a mounted
// sub-router, and Match recurses into sub-routers, so the full path is used.
func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}

	path := r.URL.RawPath
	if path == "" {
		path = r.URL.Path
	}
	if path == "" {
		path = "/"
	}

	allowed := make([]string, 0, len(probeMethods))
	for _, method := range probeMethods {
		if rctx.Routes.Match(chi.NewRouteContext(), method, path) {
			allowed = append(allowed, method)
		}
	}
	return allowed
}

// responseWriter records whether the header has gone out so Recoverer knows
// if a problem response can still be written.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
