package security

import (
	"fmt"

	"github.com/fluxorio/todo-service/pkg/web"
)

// HeadersConfig configures security headers
type HeadersConfig struct {
	// HSTS (HTTP Strict Transport Security); only meaningful behind TLS
	HSTS           bool
	HSTSMaxAge     int // in seconds, default 31536000 (1 year)
	HSTSIncludeSub bool

	// CSP (Content Security Policy)
	CSP string

	// X-Frame-Options
	XFrameOptions string // DENY or SAMEORIGIN

	// X-Content-Type-Options
	XContentTypeOptions bool // nosniff

	// Referrer-Policy
	ReferrerPolicy string

	// Cross-Origin-Resource-Policy
	CrossOriginResourcePolicy string

	// Custom headers
	CustomHeaders map[string]string
}

// DefaultHeadersConfig returns headers safe for the JSON API and the bundled
// static frontend, which loads only same-origin scripts and styles.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                       "default-src 'self'; base-uri 'self'; frame-ancestors 'none'; object-src 'none'",
		XFrameOptions:             "DENY",
		XContentTypeOptions:       true,
		ReferrerPolicy:            "no-referrer",
		CrossOriginResourcePolicy: "same-origin",
		CustomHeaders:             make(map[string]string),
	}
}

// Headers middleware adds security headers to responses
func Headers(config HeadersConfig) web.FastMiddleware {
	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			h := &ctx.RequestCtx.Response.Header

			if config.HSTS {
				maxAge := config.HSTSMaxAge
				if maxAge <= 0 {
					maxAge = 31536000
				}
				value := fmt.Sprintf("max-age=%d", maxAge)
				if config.HSTSIncludeSub {
					value += "; includeSubDomains"
				}
				h.Set("Strict-Transport-Security", value)
			}
			if config.CSP != "" {
				h.Set("Content-Security-Policy", config.CSP)
			}
			if config.XFrameOptions != "" {
				h.Set("X-Frame-Options", config.XFrameOptions)
			}
			if config.XContentTypeOptions {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if config.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", config.ReferrerPolicy)
			}
			if config.CrossOriginResourcePolicy != "" {
				h.Set("Cross-Origin-Resource-Policy", config.CrossOriginResourcePolicy)
			}
			for key, value := range config.CustomHeaders {
				h.Set(key, value)
			}

			return next(ctx)
		}
	}
}
