package assets

import (
	"embed"
	"io/fs"
)

// --- Embeds ---

//go:embed ROLL.ini
var DefaultIni []byte

//go:embed static
var staticFS embed.FS

// Static returns the built-in web page served when no static dir exists.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
