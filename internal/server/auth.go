package server

import (
	"fmt"
	"net/http"
	"strings"

	"picstash/internal/auth"
)

// withAuth gates every endpoint except health behind the configured API
// token. Owner identity itself is carried in the URL and trusted: callers
// are authenticated upstream. With no token configured the server is open,
// which is the local single-user default.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		candidate := bearerToken(r)
		if candidate == "" || !auth.VerifyToken(s.apiToken, candidate) {
			err := apiError{
				status:  http.StatusUnauthorized,
				code:    "unauthorized",
				errCode: ErrCodeUnauthorized,
				err:     fmt.Errorf("missing or invalid api token"),
			}
			s.writeErrorReq(w, r, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
