package graphground

import (
	"sync"
	"time"
)

// SlowQueryEntry describes one Ground call that ran past
// Options.SlowQueryThreshold.
type SlowQueryEntry struct {
	Pattern    string        `json:"pattern"`
	Components int           `json:"components"`
	Clauses    int           `json:"clauses"`
	Groundings int           `json:"groundings"`
	Duration   time.Duration `json:"-"`
	DurationMs float64       `json:"duration_ms"`
	Timestamp  time.Time     `json:"timestamp"`
}

const (
	slowLogCapacity   = 100
	slowLogPatternMax = 500
	slowLogMessageMax = 200
)

// slowGroundingRing keeps the most recent slow entries; the oldest is
// overwritten once the ring is full.
type slowGroundingRing struct {
	mu    sync.Mutex
	buf   []SlowQueryEntry
	next  int
	total int
}

func newSlowGroundingRing(capacity int) *slowGroundingRing {
	if capacity <= 0 {
		capacity = slowLogCapacity
	}
	return &slowGroundingRing{buf: make([]SlowQueryEntry, capacity)}
}

func (r *slowGroundingRing) add(e SlowQueryEntry) {
	r.mu.Lock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.total < len(r.buf) {
		r.total++
	}
	r.mu.Unlock()
}

// recent returns up to n entries, newest first. n <= 0 means all.
func (r *slowGroundingRing) recent(n int) []SlowQueryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || n > r.total {
		n = r.total
	}
	out := make([]SlowQueryEntry, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.buf[(r.next-i+len(r.buf))%len(r.buf)])
	}
	return out
}

// slowQueryCheck records a Ground call slower than the configured threshold.
func (db *DB) slowQueryCheck(pat *Pattern, duration time.Duration, groundings int) {
	threshold := db.opts.SlowQueryThreshold
	if threshold <= 0 || duration < threshold {
		return
	}
	db.metrics.SlowQueries.Add(1)

	text := pat.String()
	db.slowLog.add(SlowQueryEntry{
		Pattern:    clip(text, slowLogPatternMax),
		Components: pat.NumComponents(),
		Clauses:    len(pat.Mandatory()) + len(pat.Optionals()),
		Groundings: groundings,
		Duration:   duration,
		DurationMs: float64(duration.Microseconds()) / 1000.0,
		Timestamp:  time.Now(),
	})
	db.log.Warn("slow grounding",
		"pattern", clip(text, slowLogMessageMax),
		"components", pat.NumComponents(),
		"groundings", groundings,
		"duration", duration,
		"threshold", threshold,
	)
}

// SlowQueries returns the most recent slow Ground calls, newest first.
func (db *DB) SlowQueries(n int) []SlowQueryEntry {
	return db.slowLog.recent(n)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
