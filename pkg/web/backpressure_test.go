package web

import (
	"sync"
	"testing"

	"github.com/valyala/fasthttp"
)

func TestBackpressureController(t *testing.T) {
	capacity := 3
	bc := NewBackpressureController(capacity)

	for i := 0; i < capacity; i++ {
		if !bc.TryAcquire() {
			t.Errorf("Should acquire capacity for request %d", i)
		}
	}

	// Beyond capacity is rejected (fail-fast)
	if bc.TryAcquire() {
		t.Error("Should reject request when capacity exceeded")
	}

	metrics := bc.GetMetrics()
	if metrics.CurrentLoad != int64(capacity) {
		t.Errorf("CurrentLoad = %d, want %d", metrics.CurrentLoad, capacity)
	}
	if metrics.Capacity != int64(capacity) {
		t.Errorf("Capacity = %d, want %d", metrics.Capacity, capacity)
	}
	if metrics.RejectedCount != 1 {
		t.Errorf("RejectedCount = %d, want 1", metrics.RejectedCount)
	}
	if metrics.Utilization != 100.0 {
		t.Errorf("Utilization = %.2f%%, want 100%%", metrics.Utilization)
	}

	bc.Release()
	if got := bc.GetMetrics().CurrentLoad; got != int64(capacity-1) {
		t.Errorf("CurrentLoad = %d, want %d", got, capacity-1)
	}
	if !bc.TryAcquire() {
		t.Error("Should acquire capacity after release")
	}
}

func TestBackpressureController_Concurrent(t *testing.T) {
	bc := NewBackpressureController(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if bc.TryAcquire() {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 10 {
		t.Errorf("acquired = %d, want exactly 10", acquired)
	}
	if got := bc.GetMetrics().RejectedCount; got != 90 {
		t.Errorf("RejectedCount = %d, want 90", got)
	}
}

func TestBackpressureMiddleware(t *testing.T) {
	bc := NewBackpressureController(1)
	router := NewFastRouter(nil)
	router.Use(Backpressure(bc))

	var inner *fasthttp.RequestCtx
	router.GET("/slow", func(ctx *FastRequestContext) error {
		// A second request while this one is in flight is rejected
		inner = newRequest("GET", "/slow")
		router.ServeFastHTTP(inner)
		return ctx.Text(200, "ok")
	})

	outer := newRequest("GET", "/slow")
	router.ServeFastHTTP(outer)

	if outer.Response.StatusCode() != 200 {
		t.Errorf("outer status = %d, want 200", outer.Response.StatusCode())
	}
	if inner == nil || inner.Response.StatusCode() != 503 {
		t.Fatalf("inner request not rejected: %v", inner)
	}
	if got := string(inner.Response.Header.Peek("Retry-After")); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	if bc.GetMetrics().CurrentLoad != 0 {
		t.Errorf("CurrentLoad = %d after requests finished, want 0", bc.GetMetrics().CurrentLoad)
	}
}
