// Package static holds the kiosk page served at the web root.
package static

import (
	"embed"
	"io/fs"
)

//go:embed dist
var distFS embed.FS

// FS returns the kiosk page assets rooted at the dist directory.
func FS() fs.FS {
	fsys, err := fs.Sub(distFS, "dist")
	if err != nil {
		// dist is embedded at build time, so Sub cannot fail
		panic(err)
	}
	return fsys
}
