package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type contextKey string

const callerIDKey contextKey = "caller_id"

// NewTokenAuth builds the JWT verifier used by the API. Tokens are signed
// with HS256 and carry the caller's user ID in the "sub" claim.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// Authenticator resolves the caller identity from a verified JWT. Requests
// without a token proceed anonymously; requests with an invalid token are
// rejected. Handlers decide whether an operation needs authentication.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())

		if err != nil {
			if errors.Is(err, jwtauth.ErrNoTokenFound) {
				next.ServeHTTP(w, r)
				return
			}
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrorResponse{Error: "invalid token"})
			return
		}

		if token == nil {
			next.ServeHTTP(w, r)
			return
		}

		sub, _ := claims["sub"].(string)
		callerID, err := uuid.Parse(sub)
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrorResponse{Error: "invalid subject claim"})
			return
		}

		ctx := context.WithValue(r.Context(), callerIDKey, callerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerID returns the authenticated caller from the request context.
// uuid.Nil means the request is anonymous.
func CallerID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(callerIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// requireCaller writes 401 and returns false when the request is anonymous.
func requireCaller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	callerID := CallerID(r.Context())
	if callerID == uuid.Nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "authentication required"})
		return uuid.Nil, false
	}
	return callerID, true
}
