package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/fluxorio/todo-service/pkg/core"
	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/valyala/fasthttp"
)

// RecoveryConfig configures panic recovery middleware
type RecoveryConfig struct {
	// Logger is the logger to use for panic logging (default: core.NewDefaultLogger())
	Logger core.Logger

	// StackTrace logs the goroutine stack with the panic
	StackTrace bool
}

// DefaultRecoveryConfig returns a default recovery configuration
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:     core.NewDefaultLogger(),
		StackTrace: false,
	}
}

// Recovery middleware recovers from panics and returns the standard 500 body.
// The panic value is logged, never sent to the client.
func Recovery(config RecoveryConfig) web.FastMiddleware {
	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) (err error) {
			defer func() {
				if r := recover(); r != nil {
					fields := make(map[string]interface{})
					fields["request_id"] = ctx.RequestID()
					fields["method"] = string(ctx.Method())
					fields["path"] = string(ctx.Path())
					if config.StackTrace {
						fields["stack"] = string(debug.Stack())
					}

					logger.WithFields(fields).Errorf("panic recovered: %v", r)

					ctx.RequestCtx.Response.ResetBody()
					if failErr := ctx.Fail(fasthttp.StatusInternalServerError, "Internal server error"); failErr != nil {
						err = fmt.Errorf("write recovery response: %w", failErr)
					}
				}
			}()

			return next(ctx)
		}
	}
}
