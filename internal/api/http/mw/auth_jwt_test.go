package mw

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"floors-indexer/internal/config"
	"floors-indexer/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPair(t *testing.T) (*security.RS256Signer, *security.RS256Verifier) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()

	privPath := filepath.Join(dir, "priv.pem")
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPath := filepath.Join(dir, "pub.pem")
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	cfg := &config.JWTConfig{
		PublicKeyPath:  pubPath,
		PrivateKeyPath: privPath,
		Audience:       "floors-api",
		Issuer:         "floors-issuer",
		Leeway:         time.Minute,
	}

	signer, err := security.NewRS256Signer(cfg)
	require.NoError(t, err)
	verifier, err := security.NewRS256Verifier(cfg)
	require.NoError(t, err)

	return signer, verifier
}

func jwtProtected(v *security.RS256Verifier) http.Handler {
	m := NewJWTMiddleware(v)
	return m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(subjectFromContext(r)))
	}))
}

func TestJWT_MissingHeader(t *testing.T) {
	_, verifier := testKeyPair(t)
	h := jwtProtected(verifier)

	req := httptest.NewRequest(http.MethodGet, "/api/global", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWT_ValidTokenPassesSubject(t *testing.T) {
	signer, verifier := testKeyPair(t)
	h := jwtProtected(verifier)

	token, err := signer.Mint("user-42", time.Hour, "", time.Time{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/global", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", rec.Body.String())
}

func TestJWT_TamperedToken(t *testing.T) {
	signer, verifier := testKeyPair(t)
	h := jwtProtected(verifier)

	token, err := signer.Mint("user-42", time.Hour, "", time.Time{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/global", nil)
	req.Header.Set("Authorization", "Bearer "+token+"x")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
