package tracing

import (
	"fmt"

	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// headerCarrier adapts fasthttp request headers to propagation.TextMapCarrier
type headerCarrier struct {
	h *fasthttp.RequestHeader
}

func (c headerCarrier) Get(key string) string {
	return string(c.h.Peek(key))
}

func (c headerCarrier) Set(key, value string) {
	c.h.Set(key, value)
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, c.h.Len())
	c.h.VisitAll(func(key, _ []byte) {
		keys = append(keys, string(key))
	})
	return keys
}

// Middleware starts a server span per request, continuing any W3C trace
// context sent by the client. The span is named after the matched route.
func Middleware(p *Provider) web.FastMiddleware {
	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			parent := p.propagator.Extract(ctx.Context(), headerCarrier{&ctx.RequestCtx.Request.Header})
			method := string(ctx.Method())

			spanCtx, span := p.Tracer().Start(parent, method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", method),
					attribute.String("url.path", string(ctx.Path())),
					attribute.String("request.id", ctx.RequestID()),
				),
			)
			defer span.End()
			ctx.SetContext(spanCtx)

			err := next(ctx)

			status := ctx.RequestCtx.Response.StatusCode()
			span.SetName(fmt.Sprintf("%s %s", method, ctx.Route()))
			span.SetAttributes(
				attribute.String("http.route", ctx.Route()),
				attribute.Int("http.response.status_code", status),
			)
			if err != nil {
				span.RecordError(err)
			}
			if err != nil || status >= 500 {
				span.SetStatus(codes.Error, fasthttp.StatusMessage(status))
			}
			return err
		}
	}
}
