package middleware

import (
	"time"

	"github.com/fluxorio/todo-service/pkg/core"
	"github.com/fluxorio/todo-service/pkg/web"
)

// AccessLogConfig configures request logging
type AccessLogConfig struct {
	Logger core.Logger

	// SkipPaths are not logged, e.g. health probes
	SkipPaths []string
}

// AccessLog logs one line per request after the handler chain returns
func AccessLog(config AccessLogConfig) web.FastMiddleware {
	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			path := string(ctx.Path())
			if skip[path] {
				return next(ctx)
			}

			start := time.Now()
			err := next(ctx)

			status := ctx.RequestCtx.Response.StatusCode()
			fields := map[string]interface{}{
				"request_id":  ctx.RequestID(),
				"method":      string(ctx.Method()),
				"path":        path,
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_ip":   ctx.RequestCtx.RemoteIP().String(),
			}
			entry := logger.WithFields(fields)
			switch {
			case err != nil || status >= 500:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
			return err
		}
	}
}
