package main

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/md-rashed-zaman/apptdesk/libs/auth"
	"github.com/md-rashed-zaman/apptdesk/libs/httpx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

//go:embed assets/gateway.v1.yaml
var openAPISpec embed.FS

// Headers the gateway owns. Inbound values are always discarded.
var identityHeaders = []string{httpx.ProviderIDHeader, "X-User-Id", "X-Role"}

func registerRoutes(mux *http.ServeMux, booking http.Handler, verifier auth.Verifier) {
	// Public booking flow and the Stripe webhook are reachable without a token.
	// The webhook authenticates by signature inside the booking service.
	registerProxy(mux, "/api/v1/public", stripIdentity(booking))
	mux.Handle("/api/v1/payments/webhooks/stripe", stripIdentity(booking))

	registerProxy(mux, "/api/v1/appointments", requireAuth(booking, verifier))
	registerProxy(mux, "/api/v1/customers", requireAuth(booking, verifier))

	mux.HandleFunc("GET /openapi", func(w http.ResponseWriter, _ *http.Request) {
		data, err := openAPISpec.ReadFile("assets/gateway.v1.yaml")
		if err != nil {
			http.Error(w, "openapi not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}

func parseUpstream(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream %q needs a scheme and host", raw)
	}
	return u, nil
}

func newUpstream(target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = otelhttp.NewTransport(http.DefaultTransport)
	proxy.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		httpx.WriteJSON(w, http.StatusBadGateway, httpx.ErrorBody{Error: "upstream unavailable"})
	}
	return proxy
}

func stripIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range identityHeaders {
			r.Header.Del(h)
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth verifies the bearer token and forwards the caller as X-Provider-Id.
func requireAuth(next http.Handler, verifier auth.Verifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "missing or invalid Authorization header"})
			return
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "invalid token"})
			return
		}
		if claims.ProviderID == "" {
			httpx.WriteJSON(w, http.StatusForbidden, httpx.ErrorBody{Error: "token is not bound to a provider"})
			return
		}

		for _, h := range identityHeaders {
			r.Header.Del(h)
		}
		r.Header.Set(httpx.ProviderIDHeader, claims.ProviderID)
		r.Header.Set("X-User-Id", claims.Sub)
		if claims.Role != "" {
			r.Header.Set("X-Role", claims.Role)
		}
		next.ServeHTTP(w, r)
	})
}

func checkServing(ctx context.Context, client healthpb.HealthClient) error {
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("status %s", resp.GetStatus())
	}
	return nil
}
