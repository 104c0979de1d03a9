package security

import (
	"strconv"
	"strings"

	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/valyala/fasthttp"
)

// CORSConfig configures cross-origin resource sharing
type CORSConfig struct {
	// AllowedOrigins lists exact origins; "*" allows any origin
	AllowedOrigins []string

	AllowedMethods []string
	AllowedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds
	MaxAge int
}

// DefaultCORSConfig allows any origin to call the API
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         600,
	}
}

// CORS middleware sets Access-Control headers for allowed origins and
// answers preflight requests with 204 without calling the next handler.
func CORS(config CORSConfig) web.FastMiddleware {
	allowAny := false
	allowed := make(map[string]bool, len(config.AllowedOrigins))
	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			allowAny = true
		}
		allowed[origin] = true
	}
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			origin := string(ctx.RequestCtx.Request.Header.Peek("Origin"))
			if origin == "" || !(allowAny || allowed[origin]) {
				return next(ctx)
			}

			h := &ctx.RequestCtx.Response.Header
			if allowAny {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Expose-Headers", "X-Request-ID")

			isPreflight := string(ctx.Method()) == fasthttp.MethodOptions &&
				len(ctx.RequestCtx.Request.Header.Peek("Access-Control-Request-Method")) > 0
			if !isPreflight {
				return next(ctx)
			}

			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				h.Set("Access-Control-Allow-Headers", headers)
			}
			if config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
			}
			ctx.RequestCtx.SetStatusCode(fasthttp.StatusNoContent)
			return nil
		}
	}
}
