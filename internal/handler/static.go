package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// pageAliases maps clean URLs that do not follow the name.html pattern.
var pageAliases = map[string]string{
	"/builds": "/builds.html",
}

// StaticSite serves the storefront pages from dir. A path without an
// extension falls back to the matching .html file.
func StaticSite(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean("/" + r.URL.Path)
		if alias, ok := pageAliases[strings.TrimSuffix(p, "/")]; ok {
			p = alias
		} else if p != "/" && path.Ext(p) == "" && !isDir(dir, p) && exists(dir, p+".html") {
			p += ".html"
		}
		r2 := r.Clone(r.Context())
		r2.URL.Path = p
		files.ServeHTTP(w, r2)
	})
}

func exists(dir, p string) bool {
	info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p)))
	return err == nil && !info.IsDir()
}

func isDir(dir, p string) bool {
	info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p)))
	return err == nil && info.IsDir()
}
