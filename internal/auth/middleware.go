package auth

import (
	"encoding/json"
	"net/http"
)

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// RequireUser resolves the bearer token and attaches the identity to the
// request context.
func (s *Service) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			deny(w, http.StatusUnauthorized, "authentication required")
			return
		}
		id, err := s.Resolve(r.Context(), token)
		if err != nil {
			deny(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireStaff must run after RequireUser.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || !id.IsStaff() {
			deny(w, http.StatusForbidden, "staff role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
