package access

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/libs/auth"
	"github.com/md-rashed-zaman/apptdesk/libs/httpx"
)

// ProviderLookup maps a token's provider claim (slug or id) to the internal provider id.
type ProviderLookup func(r *http.Request, claim string) (string, error)

// RequireCaller resolves the caller and rejects anonymous requests with 401.
//
// When verifier is enabled a bearer token is verified in-process and its provider_id
// claim is authoritative. Otherwise the X-Provider-Id header set by the gateway is
// trusted, so the service must not be reachable except through the gateway.
func RequireCaller(verifier auth.Verifier, lookup ProviderLookup, logger *slog.Logger, debug bool) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var caller Caller
			if token := auth.BearerToken(r); token != "" && verifier.Enabled() {
				claims, err := verifier.Verify(token)
				if err != nil {
					httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "invalid token"})
					return
				}
				caller = Caller{ProviderID: claims.ProviderID, Subject: claims.Sub}
			} else if !verifier.Enabled() {
				caller = Caller{ProviderID: strings.TrimSpace(r.Header.Get(httpx.ProviderIDHeader))}
			}

			if caller.ProviderID == "" {
				httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "authentication required"})
				return
			}
			if lookup != nil {
				id, err := lookup(r, caller.ProviderID)
				if err != nil {
					if !apperr.Is(err, apperr.KindNotFound) {
						logger.Error("caller provider lookup failed", "err", err)
						httpx.WriteError(w, err, debug)
						return
					}
					httpx.WriteError(w, apperr.Forbidden("unknown provider"), debug)
					return
				}
				caller.ProviderID = id
			}
			r.Header.Set(httpx.ProviderIDHeader, caller.ProviderID)
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}
