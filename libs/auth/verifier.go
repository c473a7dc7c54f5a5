package auth

import (
	"net/http"
	"strings"
)

// Verifier accepts RS256 tokens whose kid resolves through JWKS and HS256 tokens signed
// with Secret. Either source may be left unset.
type Verifier struct {
	Secret string
	JWKS   *JWKSClient
}

func (v Verifier) Enabled() bool {
	return v.Secret != "" || v.JWKS != nil
}

func (v Verifier) Verify(token string) (*Claims, error) {
	header, err := ParseHeader(token)
	if err != nil {
		return nil, err
	}
	switch header.Alg {
	case "RS256":
		if v.JWKS == nil || header.Kid == "" {
			return nil, ErrInvalidToken
		}
		pub, err := v.JWKS.Get(header.Kid)
		if err != nil {
			return nil, ErrInvalidToken
		}
		return VerifyRS256(token, pub)
	case "HS256":
		if v.Secret == "" {
			return nil, ErrInvalidToken
		}
		return ParseAndVerifyHS256(token, v.Secret)
	default:
		return nil, ErrInvalidToken
	}
}

// BearerToken returns the token from an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
