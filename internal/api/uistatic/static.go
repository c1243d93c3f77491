// Package uistatic embeds the single-page wine browser served on non-API paths.
package uistatic

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:app
var distFS embed.FS

const indexFile = "index.html"

// Handler serves embedded assets and falls back to the app shell for any
// other path so client-side views survive a reload. API paths are never
// shadowed.
func Handler() http.Handler {
	app, err := fs.Sub(distFS, "app")
	if err != nil {
		return http.NotFoundHandler()
	}
	return &shell{app: app}
}

type shell struct {
	app fs.FS
}

func (s *shell) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/v1/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
	if name == "." || name == indexFile || !s.isAsset(name) {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, s.app, indexFile)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFileFS(w, r, s.app, name)
}

func (s *shell) isAsset(name string) bool {
	info, err := fs.Stat(s.app, name)
	return err == nil && !info.IsDir()
}
