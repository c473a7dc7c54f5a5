package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptdesk/libs/auth"
	"github.com/md-rashed-zaman/apptdesk/libs/httpx"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const testSecret = "test-secret"

// echo reports the identity headers the upstream would see.
func echo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Provider", r.Header.Get(httpx.ProviderIDHeader))
		w.Header().Set("X-Seen-User", r.Header.Get("X-User-Id"))
		w.WriteHeader(http.StatusOK)
	})
}

func sign(t *testing.T, providerID string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:        "user-1",
		ProviderID: providerID,
		Iat:        time.Now().Unix(),
		Exp:        time.Now().Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return token
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	registerRoutes(mux, echo(), auth.Verifier{Secret: testSecret})
	return mux
}

func TestRequireAuthForwardsProvider(t *testing.T) {
	mux := newMux()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?status=pending", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, "acme"))
	req.Header.Set(httpx.ProviderIDHeader, "spoofed")
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if got := rw.Header().Get("X-Seen-Provider"); got != "acme" {
		t.Fatalf("expected provider acme, got %q", got)
	}
	if got := rw.Header().Get("X-Seen-User"); got != "user-1" {
		t.Fatalf("expected user-1, got %q", got)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	mux := newMux()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer badtoken", http.StatusUnauthorized},
		{"no provider", "Bearer " + sign(t, ""), http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/confirm", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, req)
		if rw.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rw.Code)
		}
	}
}

func TestPublicRoutesStripIdentity(t *testing.T) {
	mux := newMux()

	for _, path := range []string{"/api/v1/public/availability?provider_id=acme", "/api/v1/payments/webhooks/stripe"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(httpx.ProviderIDHeader, "spoofed")
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, req)
		if rw.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rw.Code)
		}
		if got := rw.Header().Get("X-Seen-Provider"); got != "" {
			t.Fatalf("%s: provider header leaked: %q", path, got)
		}
	}
}

func TestOpenAPIServed(t *testing.T) {
	rw := httptest.NewRecorder()
	newMux().ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/openapi", nil))
	if rw.Code != http.StatusOK || rw.Header().Get("Content-Type") != "application/yaml" {
		t.Fatalf("unexpected response %d %q", rw.Code, rw.Header().Get("Content-Type"))
	}
}

func TestUpstreamUnavailable(t *testing.T) {
	target, err := parseUpstream("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("parseUpstream: %v", err)
	}
	rw := httptest.NewRecorder()
	newUpstream(target).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/v1/public/availability", nil))
	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rw.Code)
	}
}

func TestParseUpstreamRequiresHost(t *testing.T) {
	if _, err := parseUpstream("booking-service"); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeHealth struct {
	healthpb.HealthClient
	status healthpb.HealthCheckResponse_ServingStatus
	err    error
}

func (f fakeHealth) Check(context.Context, *healthpb.HealthCheckRequest, ...grpc.CallOption) (*healthpb.HealthCheckResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &healthpb.HealthCheckResponse{Status: f.status}, nil
}

func TestCheckServing(t *testing.T) {
	ctx := context.Background()
	if err := checkServing(ctx, fakeHealth{status: healthpb.HealthCheckResponse_SERVING}); err != nil {
		t.Fatalf("expected serving, got %v", err)
	}
	if err := checkServing(ctx, fakeHealth{status: healthpb.HealthCheckResponse_NOT_SERVING}); err == nil {
		t.Fatalf("expected not serving error")
	}
	if err := checkServing(ctx, fakeHealth{err: errors.New("unavailable")}); err == nil {
		t.Fatalf("expected dial error")
	}
}
