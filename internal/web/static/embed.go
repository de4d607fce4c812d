// Package static holds the kiosk page served at the site root.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed all:dist
var distFS embed.FS

// Files returns the embedded dist directory.
func Files() fs.FS {
	fsys, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic(err)
	}
	return fsys
}

// GetFileSystem returns an http.FileSystem for the embedded dist directory.
func GetFileSystem() http.FileSystem {
	return http.FS(Files())
}

// HasFile reports whether name exists in dist and is not a directory.
func HasFile(name string) bool {
	info, err := fs.Stat(Files(), name)
	return err == nil && !info.IsDir()
}
