package risk

import (
	"sync"
	"time"

	"github.com/suivoice/atm/internal/types"
)

// History is a bounded ring buffer of price observations. When full, the
// oldest entry is evicted first.
type History struct {
	mu     sync.Mutex
	points []types.PricePoint
	max    int
}

// NewHistory constructs a buffer holding at most max points.
func NewHistory(max int) *History {
	if max < 2 {
		max = 2
	}
	return &History{points: make([]types.PricePoint, 0, max), max: max}
}

// Append records one observation, evicting the oldest when the buffer is
// full. Non-positive prices (unavailable sentinel) are dropped.
func (h *History) Append(price float64, ts time.Time) {
	if price <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.points) == h.max {
		copy(h.points, h.points[1:])
		h.points = h.points[:h.max-1]
	}
	h.points = append(h.points, types.PricePoint{Price: price, Timestamp: ts})
}

// Latest returns the most recent observation, false when empty.
func (h *History) Latest() (types.PricePoint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.points) == 0 {
		return types.PricePoint{}, false
	}
	return h.points[len(h.points)-1], true
}

// ChangePct returns the percentage change between the oldest observation
// inside the window and the latest one. Zero until two points exist.
func (h *History) ChangePct(window time.Duration) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.points) < 2 {
		return 0
	}
	latest := h.points[len(h.points)-1]
	cutoff := latest.Timestamp.Add(-window)

	oldest := h.points[0]
	for _, p := range h.points {
		if !p.Timestamp.Before(cutoff) {
			oldest = p
			break
		}
	}
	if oldest.Price == 0 || oldest.Timestamp.Equal(latest.Timestamp) {
		return 0
	}
	return (latest.Price - oldest.Price) / oldest.Price * 100
}

// WindowHigh returns the highest price inside the window ending at the
// latest observation.
func (h *History) WindowHigh(window time.Duration) float64 {
	return h.windowExtreme(window, func(a, b float64) bool { return a > b })
}

// WindowLow returns the lowest price inside the window.
func (h *History) WindowLow(window time.Duration) float64 {
	return h.windowExtreme(window, func(a, b float64) bool { return a < b })
}

func (h *History) windowExtreme(window time.Duration, better func(a, b float64) bool) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.points) == 0 {
		return 0
	}
	cutoff := h.points[len(h.points)-1].Timestamp.Add(-window)
	extreme := 0.0
	for _, p := range h.points {
		if p.Timestamp.Before(cutoff) {
			continue
		}
		if extreme == 0 || better(p.Price, extreme) {
			extreme = p.Price
		}
	}
	return extreme
}

// Len reports the number of buffered observations.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.points)
}
