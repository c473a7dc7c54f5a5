package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
)

func TestChainOrderAndNilSkip(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }), mark("a"), nil, mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Join(order, ",") != "a,b,h" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestWithRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rw.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated id, got ctx=%q header=%q", seen, rw.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if seen != "abc" {
		t.Fatalf("expected incoming id to be kept, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if len(seen) != 32 {
		t.Fatalf("expected oversized id to be replaced, got %q", seen)
	}
}

func TestWithRecoverWritesEnvelope(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), WithRecover(logger))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rw.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error != "internal error" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestWithAccessLogRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), WithRequestID, WithAccessLog(logger))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(ProviderIDHeader, "prov-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["status"] != float64(http.StatusTeapot) || line["provider_id"] != "prov-1" || line["path"] != "/x" {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestWriteErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{apperr.NotFound("appointment not found"), http.StatusNotFound, "appointment not found"},
		{apperr.Forbidden("not your appointment"), http.StatusForbidden, "not your appointment"},
		{apperr.Conflict("already confirmed"), http.StatusConflict, "already confirmed"},
		{apperr.Validation("reason is required"), http.StatusBadRequest, "reason is required"},
		{apperr.Dependency("store unavailable", errors.New("dial tcp")), http.StatusServiceUnavailable, "store unavailable"},
		{errors.New("raw"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		rw := httptest.NewRecorder()
		WriteError(rw, tc.err, false)
		if rw.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rw.Code)
		}
		var body ErrorBody
		if err := json.Unmarshal(rw.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error != tc.msg || body.Debug != "" {
			t.Fatalf("unexpected body %+v", body)
		}
	}
}

func TestWriteErrorDebug(t *testing.T) {
	rw := httptest.NewRecorder()
	WriteError(rw, apperr.Dependency("store unavailable", errors.New("dial tcp")), true)
	if !strings.Contains(rw.Body.String(), "dial tcp") {
		t.Fatalf("expected debug cause, got %s", rw.Body.String())
	}
}

func TestDecodeJSONStrict(t *testing.T) {
	type payload struct {
		Reason string `json:"reason"`
	}
	var p payload
	ok := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"sick"}`))
	if err := DecodeJSON(ok, &p); err != nil || p.Reason != "sick" {
		t.Fatalf("unexpected decode result %+v err=%v", p, err)
	}

	for _, body := range []string{``, `{"reason":"x","extra":1}`, `{"reason":"x"}{}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := DecodeJSON(req, &payload{})
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("body %q: expected validation error, got %v", body, err)
		}
	}
}

func TestCORSWildcardSubdomain(t *testing.T) {
	h := WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://*.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		MaxAge:         10 * time.Minute,
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rw.Code)
	}
	if rw.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("unexpected allow origin %q", rw.Header().Get("Access-Control-Allow-Origin"))
	}
	if rw.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("unexpected max age %q", rw.Header().Get("Access-Control-Max-Age"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.com")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected no CORS headers for foreign origin")
	}
}
