package web

import (
	"os"
	"path"
	"path/filepath"

	"github.com/valyala/fasthttp"
)

// Static serves files below root for GET and HEAD requests. Requests for
// anything that does not exist on disk, and all other methods, go to fallback.
// A directory is served through its index.html.
func Static(root string, fallback FastRequestHandler) FastRequestHandler {
	fs := &fasthttp.FS{
		Root:               root,
		IndexNames:         []string{"index.html"},
		GenerateIndexPages: false,
		Compress:           false,
		AcceptByteRange:    true,
	}
	serve := fs.NewRequestHandler()

	return func(ctx *FastRequestContext) error {
		method := string(ctx.Method())
		if method != fasthttp.MethodGet && method != fasthttp.MethodHead {
			return fallback(ctx)
		}
		if !staticFileExists(root, string(ctx.Path())) {
			return fallback(ctx)
		}
		serve(ctx.RequestCtx)
		return nil
	}
}

func staticFileExists(root, requestPath string) bool {
	clean := path.Clean("/" + requestPath)
	full := filepath.Join(root, filepath.FromSlash(clean))

	info, err := os.Stat(full)
	if err != nil {
		return false
	}
	if info.IsDir() {
		index, err := os.Stat(filepath.Join(full, "index.html"))
		return err == nil && !index.IsDir()
	}
	return true
}
