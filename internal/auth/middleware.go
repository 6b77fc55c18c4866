package auth

import "net/http"

// Middleware wraps next, rejecting requests without a valid bearer token
// and attaching its claims to the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.FromRequest(r)
		if err != nil {
			http.Error(w, "unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}
		if claims.Type == "refresh" {
			http.Error(w, "unauthorized: refresh token not valid for API access", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}
