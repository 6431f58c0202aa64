package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"floors-indexer/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func genRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return key
}

func writePublicPEM(t *testing.T, key *rsa.PrivateKey, dir, name string) string {
	t.Helper()

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, pem.Encode(f, &pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	return path
}

func writePrivatePEM(t *testing.T, key *rsa.PrivateKey, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	require.NoError(t, pem.Encode(f, block))
	return path
}

func verifierFor(t *testing.T, key *rsa.PrivateKey, aud, iss string) *RS256Verifier {
	t.Helper()

	dir := t.TempDir()
	v, err := NewRS256Verifier(&config.JWTConfig{
		PublicKeyPath: writePublicPEM(t, key, dir, "pub.pem"),
		Audience:      aud,
		Issuer:        iss,
		Leeway:        time.Minute,
	})
	require.NoError(t, err)
	return v
}

func signerFor(t *testing.T, key *rsa.PrivateKey, aud, iss string) *RS256Signer {
	t.Helper()

	dir := t.TempDir()
	s, err := NewRS256Signer(&config.JWTConfig{
		PrivateKeyPath: writePrivatePEM(t, key, dir, "priv.pem"),
		Audience:       aud,
		Issuer:         iss,
	})
	require.NoError(t, err)
	return s
}

// --- tests ---

func TestVerifyBearer_RoundTrip(t *testing.T) {
	key := genRSAKey(t)
	signer := signerFor(t, key, "floors-api", "floors-issuer")
	verifier := verifierFor(t, key, "floors-api", "floors-issuer")

	token, err := signer.Mint("user-1", time.Hour, "jti-1", time.Time{})
	require.NoError(t, err)

	claims, err := verifier.VerifyBearer("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "floors-issuer", claims.Issuer)
	assert.Equal(t, "jti-1", claims.ID)
}

func TestVerifyBearer_WrongKey(t *testing.T) {
	signer := signerFor(t, genRSAKey(t), "floors-api", "floors-issuer")
	verifier := verifierFor(t, genRSAKey(t), "floors-api", "floors-issuer")

	token, err := signer.Mint("user-1", time.Hour, "", time.Time{})
	require.NoError(t, err)

	_, err = verifier.VerifyBearer("Bearer " + token)
	assert.Error(t, err)
}

func TestVerifyBearer_Expired(t *testing.T) {
	key := genRSAKey(t)
	signer := signerFor(t, key, "floors-api", "floors-issuer")
	verifier := verifierFor(t, key, "floors-api", "floors-issuer")

	// expired beyond the one-minute leeway
	token, err := signer.Mint("user-1", -2*time.Minute, "", time.Time{})
	require.NoError(t, err)

	_, err = verifier.VerifyBearer("Bearer " + token)
	assert.Error(t, err)
}

func TestVerifyBearer_WrongAudience(t *testing.T) {
	key := genRSAKey(t)
	signer := signerFor(t, key, "someone-else", "floors-issuer")
	verifier := verifierFor(t, key, "floors-api", "floors-issuer")

	token, err := signer.Mint("user-1", time.Hour, "", time.Time{})
	require.NoError(t, err)

	_, err = verifier.VerifyBearer("Bearer " + token)
	assert.Error(t, err)
}

func TestVerifyBearer_MalformedHeader(t *testing.T) {
	key := genRSAKey(t)
	verifier := verifierFor(t, key, "", "")

	for _, h := range []string{"", "Bearer", "Bearer ", "Basic abc", "token-without-scheme"} {
		_, err := verifier.VerifyBearer(h)
		assert.ErrorIs(t, err, ErrNoBearerToken, "header %q", h)
	}
}

func TestNewRS256Verifier_MissingFile(t *testing.T) {
	_, err := NewRS256Verifier(&config.JWTConfig{PublicKeyPath: "/nonexistent/pub.pem"})
	assert.Error(t, err)
}

func TestNewRS256Signer_EmptyPath(t *testing.T) {
	_, err := NewRS256Signer(&config.JWTConfig{})
	assert.Error(t, err)
}
