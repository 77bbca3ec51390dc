package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"growit/internal/engine/auth"
)

type AuthConfig struct {
	JWTSecret string
}

type principalKey struct{}

func withUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, principalKey{}, id)
}

func userIDFromContext(ctx context.Context) (int64, huma.StatusError) {
	if id, ok := ctx.Value(principalKey{}).(int64); ok && id > 0 {
		return id, nil
	}
	return 0, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// publicPath reports routes that never require authentication: health,
// event collection, login/signup, the curriculum catalog and the docs.
func publicPath(basePath, p string) bool {
	if !strings.HasPrefix(p, basePath+"/") {
		return true
	}
	rel := strings.TrimPrefix(p, basePath+"/")
	switch {
	case rel == "health", rel == "events", rel == "openapi.json":
		return true
	case strings.HasPrefix(rel, "auth/"):
		return true
	case rel == "curricula" || strings.HasPrefix(rel, "curricula/"):
		return true
	}
	return false
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if publicPath(basePath, req.URL.Path) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			sub, err := auth.VerifyToken(cfg.JWTSecret, token)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			userID, err := strconv.ParseInt(sub, 10, 64)
			if err != nil || userID <= 0 {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withUserID(req.Context(), userID)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
