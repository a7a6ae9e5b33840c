package poll

import (
	"strconv"
	"sync"
	"time"

	"marketdash/internal/market"
)

// Direction classifies a price movement between two consecutive polls.
type Direction int

const (
	Neutral Direction = iota
	Up
	Down
)

// FlashWindow bounds how long a movement highlight stays active before
// reverting to neutral.
const FlashWindow = 800 * time.Millisecond

// FormatPrice renders a price at the instrument's fixed precision. The same
// key always formats with the same decimal count, which is what makes
// consecutive polls numerically comparable without flicker.
func FormatPrice(key string, price float64) string {
	return strconv.FormatFloat(price, 'f', int(market.Precision(key)), 64)
}

// Classify compares two formatted prices numerically. Unparseable or equal
// values are neutral.
func Classify(prev, next string) Direction {
	a, errA := strconv.ParseFloat(prev, 64)
	b, errB := strconv.ParseFloat(next, 64)
	if errA != nil || errB != nil || a == b {
		return Neutral
	}
	if b > a {
		return Up
	}
	return Down
}

type flashEntry struct {
	formatted string
	dir       Direction
	until     time.Time
}

// Flasher tracks the last rendered price string per instrument key and the
// currently active highlight.
type Flasher struct {
	mu      sync.Mutex
	entries map[string]flashEntry
}

// Observe records a newly formatted price for key and returns the movement
// direction relative to the previous observation. A non-neutral movement
// starts (or restarts) the highlight window.
func (f *Flasher) Observe(key, formatted string, now time.Time) Direction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = make(map[string]flashEntry)
	}

	prev, ok := f.entries[key]
	dir := Neutral
	if ok {
		dir = Classify(prev.formatted, formatted)
	}

	e := flashEntry{formatted: formatted, dir: prev.dir, until: prev.until}
	if dir != Neutral {
		e.dir = dir
		e.until = now.Add(FlashWindow)
	}
	f.entries[key] = e
	return dir
}

// Active reports the highlight direction for key at time now, reverting to
// neutral once the window has elapsed.
func (f *Flasher) Active(key string, now time.Time) Direction {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok || !now.Before(e.until) {
		return Neutral
	}
	return e.dir
}
