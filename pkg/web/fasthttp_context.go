package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluxorio/todo-service/pkg/core"
	"github.com/valyala/fasthttp"
)

// ErrEmptyBody is returned by BindJSON when the request has no body
var ErrEmptyBody = errors.New("empty request body")

// ErrorResponse is the body of every failed API response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// FastRequestContext wraps fasthttp RequestCtx with routing and tracing state
type FastRequestContext struct {
	RequestCtx *fasthttp.RequestCtx
	Params     map[string]string
	Logger     core.Logger
	route      string
	requestID  string
	ctx        context.Context
}

// NewFastRequestContext creates a request context. An empty requestID is
// left empty; the router assigns one before dispatch.
func NewFastRequestContext(rc *fasthttp.RequestCtx, requestID string, logger core.Logger) *FastRequestContext {
	if logger == nil {
		logger = core.NopLogger()
	}
	ctx := context.Background()
	if requestID != "" {
		ctx = core.WithRequestID(ctx, requestID)
	}
	return &FastRequestContext{
		RequestCtx: rc,
		Params:     make(map[string]string),
		Logger:     logger,
		requestID:  requestID,
		ctx:        ctx,
	}
}

// JSON writes JSON response - fail-fast
func (c *FastRequestContext) JSON(statusCode int, data interface{}) error {
	if statusCode < 100 || statusCode > 599 {
		return fmt.Errorf("invalid status code: %d", statusCode)
	}

	jsonData, err := core.JSONEncode(data)
	if err != nil {
		return fmt.Errorf("json encode error: %w", err)
	}

	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.SetContentType("application/json; charset=utf-8")
	c.RequestCtx.SetBody(jsonData)
	return nil
}

// Fail writes the standard {success:false, error:msg} body
func (c *FastRequestContext) Fail(statusCode int, msg string) error {
	return c.JSON(statusCode, ErrorResponse{Success: false, Error: msg})
}

// BindJSON binds JSON request body to v. It returns ErrEmptyBody when
// there is nothing to decode.
func (c *FastRequestContext) BindJSON(v interface{}) error {
	if v == nil {
		return fmt.Errorf("cannot bind to nil value")
	}

	body := c.RequestCtx.PostBody()
	if len(body) == 0 {
		return ErrEmptyBody
	}
	return core.JSONDecode(body, v)
}

// Text writes a plain text response
func (c *FastRequestContext) Text(statusCode int, text string) error {
	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.SetContentType("text/plain; charset=utf-8")
	c.RequestCtx.SetBodyString(text)
	return nil
}

// Param returns path parameter value
func (c *FastRequestContext) Param(key string) string {
	return c.Params[key]
}

// Method returns HTTP method
func (c *FastRequestContext) Method() []byte {
	return c.RequestCtx.Method()
}

// Path returns request path
func (c *FastRequestContext) Path() []byte {
	return c.RequestCtx.Path()
}

// Route returns the matched route pattern, or "" when no route matched
func (c *FastRequestContext) Route() string {
	return c.route
}

// RequestID returns the request ID for this request
func (c *FastRequestContext) RequestID() string {
	return c.requestID
}

// Context returns the request scoped context carrying the request ID
func (c *FastRequestContext) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// SetContext replaces the request scoped context, e.g. to attach a span
func (c *FastRequestContext) SetContext(ctx context.Context) {
	c.ctx = ctx
}
