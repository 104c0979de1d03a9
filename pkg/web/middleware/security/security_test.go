package security

import (
	"testing"
	"time"

	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/valyala/fasthttp"
)

func newCtx(method, path string) *web.FastRequestContext {
	rc := &fasthttp.RequestCtx{}
	rc.Request.Header.SetMethod(method)
	rc.Request.SetRequestURI(path)
	return web.NewFastRequestContext(rc, "test", nil)
}

func ok(ctx *web.FastRequestContext) error {
	return ctx.Text(200, "ok")
}

func TestHeaders(t *testing.T) {
	config := DefaultHeadersConfig()
	config.CustomHeaders["X-Service"] = "todo"
	handler := Headers(config)(ok)

	ctx := newCtx("GET", "/api/todos")
	if err := handler(ctx); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	h := &ctx.RequestCtx.Response.Header
	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"X-Service":              "todo",
	}
	for k, v := range want {
		if got := string(h.Peek(k)); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if got := h.Peek("Strict-Transport-Security"); len(got) != 0 {
		t.Errorf("HSTS set without TLS config: %q", got)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllowed string
	}{
		{"no origin", []string{"*"}, "GET", "", false, 200, ""},
		{"any origin", []string{"*"}, "GET", "http://ui.local", false, 200, "*"},
		{"listed origin", []string{"http://ui.local"}, "GET", "http://ui.local", false, 200, "http://ui.local"},
		{"unlisted origin", []string{"http://ui.local"}, "GET", "http://evil.local", false, 200, ""},
		{"preflight", []string{"*"}, "OPTIONS", "http://ui.local", true, 204, "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultCORSConfig()
			config.AllowedOrigins = tt.origins
			handler := CORS(config)(ok)

			ctx := newCtx(tt.method, "/api/todos")
			if tt.origin != "" {
				ctx.RequestCtx.Request.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				ctx.RequestCtx.Request.Header.Set("Access-Control-Request-Method", "PUT")
			}
			if err := handler(ctx); err != nil {
				t.Fatalf("handler error = %v", err)
			}

			resp := &ctx.RequestCtx.Response
			if resp.StatusCode() != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode(), tt.wantStatus)
			}
			if got := string(resp.Header.Peek("Access-Control-Allow-Origin")); got != tt.wantAllowed {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllowed)
			}
			if tt.preflight && len(resp.Header.Peek("Access-Control-Allow-Methods")) == 0 {
				t.Error("preflight missing Allow-Methods")
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	config := DefaultRateLimitConfig()
	config.RequestsPerMinute = 60
	config.Burst = 2
	config.KeyFunc = func(ctx *web.FastRequestContext) string { return "client" }
	handler := RateLimit(config)(ok)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		ctx := newCtx("GET", "/api/todos")
		if err := handler(ctx); err != nil {
			t.Fatalf("handler error = %v", err)
		}
		statuses = append(statuses, ctx.RequestCtx.Response.StatusCode())
		if i == 2 && len(ctx.RequestCtx.Response.Header.Peek("Retry-After")) == 0 {
			t.Error("limited response missing Retry-After")
		}
	}

	want := []int{200, 200, 429}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, statuses[i], want[i])
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	handler := RateLimit(RateLimitConfig{})(ok)
	for i := 0; i < 5; i++ {
		ctx := newCtx("GET", "/")
		_ = handler(ctx)
		if ctx.RequestCtx.Response.StatusCode() != 200 {
			t.Fatalf("request %d limited with limiting disabled", i)
		}
	}
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(RateLimitConfig{RequestsPerMinute: 60, IdleTTL: time.Minute})
	rl.now = func() time.Time { return now }

	rl.reserve("a")
	now = now.Add(2 * time.Minute)
	rl.reserve("b")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["a"]; ok {
		t.Error("idle client a was not swept")
	}
	if _, ok := rl.limiters["b"]; !ok {
		t.Error("active client b missing")
	}
}
