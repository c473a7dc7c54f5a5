package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHS256RoundTrip(t *testing.T) {
	claims := Claims{
		Sub:        "user-1",
		ProviderID: "prov-1",
		Iat:        time.Now().Unix(),
		Exp:        time.Now().Add(1 * time.Hour).Unix(),
	}
	secret := "test-secret"

	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	parsed, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.ProviderID != claims.ProviderID {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
}

func TestExpiredAndNotYetValid(t *testing.T) {
	secret := "test-secret"
	expired, _ := SignHS256(Claims{ProviderID: "p", Exp: time.Now().Add(-time.Hour).Unix()}, secret)
	if _, err := ParseAndVerifyHS256(expired, secret); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
	future, _ := SignHS256(Claims{ProviderID: "p", Nbf: time.Now().Add(time.Hour).Unix()}, secret)
	if _, err := ParseAndVerifyHS256(future, secret); err == nil {
		t.Fatal("expected not-yet-valid token to be rejected")
	}
	skewed, _ := SignHS256(Claims{ProviderID: "p", Exp: time.Now().Add(-5 * time.Second).Unix()}, secret)
	if _, err := ParseAndVerifyHS256(skewed, secret); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
}

func TestRS256Verify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	claims := Claims{
		Sub:        "user-2",
		ProviderID: "prov-2",
		Iat:        time.Now().Unix(),
		Exp:        time.Now().Add(1 * time.Hour).Unix(),
	}

	token, err := signRS256(claims, key, "kid-1")
	if err != nil {
		t.Fatalf("rs256 Sign failed: %v", err)
	}
	parsed, err := VerifyRS256(token, &key.PublicKey)
	if err != nil {
		t.Fatalf("VerifyRS256 failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.ProviderID != claims.ProviderID {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
}

func TestVerifierUsesJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{{
			Kty: "RSA",
			Kid: "kid-1",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	v := Verifier{JWKS: NewJWKSClient(srv.URL, time.Minute)}
	token, err := signRS256(Claims{ProviderID: "prov-3", Exp: time.Now().Add(time.Hour).Unix()}, key, "kid-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.ProviderID != "prov-3" {
		t.Fatalf("unexpected provider %q", claims.ProviderID)
	}

	unknown, _ := signRS256(Claims{ProviderID: "prov-3"}, key, "kid-2")
	if _, err := v.Verify(unknown); err == nil {
		t.Fatal("expected unknown kid to be rejected")
	}
	hs, _ := SignHS256(Claims{ProviderID: "prov-3"}, "s")
	if _, err := v.Verify(hs); err == nil {
		t.Fatal("expected HS256 to be rejected without a secret")
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if BearerToken(req) != "" {
		t.Fatal("expected empty token")
	}
	req.Header.Set("Authorization", "bearer abc ")
	if got := BearerToken(req); got != "abc" {
		t.Fatalf("unexpected token %q", got)
	}
	req.Header.Set("Authorization", "Basic abc")
	if BearerToken(req) != "" {
		t.Fatal("expected non-bearer scheme to be ignored")
	}
}

func signRS256(claims Claims, key *rsa.PrivateKey, kid string) (string, error) {
	headerJSON, err := json.Marshal(Header{Alg: "RS256", Typ: "JWT", Kid: kid})
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	hash := sha256.Sum256([]byte(unsigned))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}
