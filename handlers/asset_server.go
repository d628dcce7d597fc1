package handlers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// AssetServer creates a handler to serve stored files (generated reports,
// confirmed incident images) from the storage root. It expects the request
// path to contain the storage-relative path after the route prefix.
// example Usage in main.go:
//
//	r.Get("/files/*", AssetServer(cfg.StoragePath, "/api/files/"))
func AssetServer(baseStoragePath, routePrefix string) http.HandlerFunc {
	cleanBase := filepath.Clean(baseStoragePath)
	log.Printf("Serving stored files for '%s*' from directory: %s", routePrefix, cleanBase)

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)

		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		requestedAssetPath := filepath.Join(cleanBase, relativePath)
		cleanedAssetPath := filepath.Clean(requestedAssetPath)

		if !strings.HasPrefix(cleanedAssetPath, cleanBase) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Printf("SECURITY: Attempted asset access outside storage root: Request='%s', Resolved='%s', Allowed Base='%s'",
				r.URL.Path, cleanedAssetPath, cleanBase)
			return
		}

		if _, err := os.Stat(cleanedAssetPath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Printf("Error stating asset file %s: %v", cleanedAssetPath, err)
			return
		}

		http.ServeFile(w, r, cleanedAssetPath)
	}
}
