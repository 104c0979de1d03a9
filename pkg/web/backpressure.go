package web

import (
	"sync/atomic"

	"github.com/valyala/fasthttp"
)

// BackpressureController caps the number of requests in flight. Requests
// beyond the cap are rejected immediately instead of queueing.
type BackpressureController struct {
	capacity      int64
	currentLoad   atomic.Int64
	rejectedCount atomic.Int64
}

// NewBackpressureController creates a controller admitting at most
// capacity concurrent requests
func NewBackpressureController(capacity int) *BackpressureController {
	return &BackpressureController{capacity: int64(capacity)}
}

// TryAcquire reserves a slot (fail-fast). It returns false when the
// controller is at capacity.
func (bc *BackpressureController) TryAcquire() bool {
	for {
		current := bc.currentLoad.Load()
		if current >= bc.capacity {
			bc.rejectedCount.Add(1)
			return false
		}
		if bc.currentLoad.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release frees a slot taken by TryAcquire
func (bc *BackpressureController) Release() {
	bc.currentLoad.Add(-1)
}

// GetMetrics returns current backpressure metrics
func (bc *BackpressureController) GetMetrics() BackpressureMetrics {
	currentLoad := bc.currentLoad.Load()
	return BackpressureMetrics{
		Capacity:      bc.capacity,
		CurrentLoad:   currentLoad,
		RejectedCount: bc.rejectedCount.Load(),
		Utilization:   float64(currentLoad) / float64(bc.capacity) * 100,
	}
}

// BackpressureMetrics provides backpressure statistics
type BackpressureMetrics struct {
	Capacity      int64   // Maximum concurrent requests
	CurrentLoad   int64   // Requests currently in flight
	RejectedCount int64   // Total rejected requests
	Utilization   float64 // CurrentLoad as a percentage of Capacity
}

// Backpressure rejects requests with 503 while bc is at capacity
func Backpressure(bc *BackpressureController) FastMiddleware {
	return func(next FastRequestHandler) FastRequestHandler {
		return func(ctx *FastRequestContext) error {
			if !bc.TryAcquire() {
				ctx.RequestCtx.Response.Header.Set("Retry-After", "1")
				return ctx.Fail(fasthttp.StatusServiceUnavailable, "Service unavailable")
			}
			defer bc.Release()
			return next(ctx)
		}
	}
}
