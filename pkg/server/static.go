package server

import (
	"net/http"
	"path/filepath"
	"strings"
)

// spaHandler serves files from dir and falls back to index.html for client
// routes. Unknown API paths keep returning a JSON 404.
func spaHandler(dir string) http.HandlerFunc {
	staticDir := http.Dir(dir)
	fileServer := http.FileServer(staticDir)
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if f, err := staticDir.Open(r.URL.Path); err == nil {
			_ = f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	}
}
