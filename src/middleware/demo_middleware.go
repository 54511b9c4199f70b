package middleware

import (
	"net/http"
)

// Demo instances are read-only for regular users: login, signup, and the
// Plaid webhook are the only writes allowed so the shared ledger data stays
// intact. Super admins are exempt.
var demoWritableEndpoints = map[string]bool{
	"/api/login":         true,
	"/api/register":      true,
	"/api/plaid/webhook": true,
}

func DemoModeMiddleware(isDemo bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isDemo || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			if superAdmin, ok := r.Context().Value("super_admin").(bool); ok && superAdmin {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method == http.MethodPost && demoWritableEndpoints[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Demo mode: only GET requests are allowed", http.StatusForbidden)
		})
	}
}
