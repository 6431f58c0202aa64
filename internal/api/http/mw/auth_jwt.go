package mw

import (
	"context"
	"net/http"

	"floors-indexer/internal/security"
)

// Key for claims subject in ctx
type claimsCtxKey struct{}

type JWTMiddleware struct {
	verifier *security.RS256Verifier
}

func NewJWTMiddleware(v *security.RS256Verifier) *JWTMiddleware {
	if v == nil {
		panic("JWT verifier cannot be nil")
	}
	return &JWTMiddleware{verifier: v}
}

func (m *JWTMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.verifier.VerifyBearer(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsCtxKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
