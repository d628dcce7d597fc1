package handlers

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/camden-git/proctorhub/config"
)

// APIKeyHeader is the header edge devices authenticate with
const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware enforces the static edge-device API key on every request.
// A missing key is 401 and a wrong key 403, so the edge script can tell the
// two apart when diagnosing its configuration. When an API_KEY_HASH is set
// the inbound key is checked with bcrypt; otherwise the plain key is compared
// in constant time.
func APIKeyMiddleware(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			WriteAPIError(w, http.StatusUnauthorized, "missing_api_key", "Missing "+APIKeyHeader+" header")
			return
		}

		if !apiKeyValid(cfg, key) {
			WriteAPIError(w, http.StatusForbidden, "invalid_api_key", "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func apiKeyValid(cfg config.Config, key string) bool {
	if cfg.APIKeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.APIKeyHash), []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(cfg.APIKey), []byte(key)) == 1
}
