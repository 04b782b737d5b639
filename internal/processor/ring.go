package processor

import "sync"

// logRing keeps the most recent run log lines in memory, independent of
// the log persisted on the run row.
type logRing struct {
	mu       sync.Mutex
	capacity int
	lines    []string
}

func newLogRing(capacity int) *logRing {
	if capacity <= 0 {
		capacity = recentLogCapacity
	}
	return &logRing{capacity: capacity}
}

func (r *logRing) Append(line string) {
	r.mu.Lock()
	if len(r.lines) == r.capacity {
		copy(r.lines, r.lines[1:])
		r.lines = r.lines[:r.capacity-1]
	}
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

// Lines returns up to limit of the most recent lines, oldest first.
func (r *logRing) Lines(limit int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > len(r.lines) {
		limit = len(r.lines)
	}
	out := make([]string, limit)
	copy(out, r.lines[len(r.lines)-limit:])
	return out
}

func (r *logRing) Clear() {
	r.mu.Lock()
	r.lines = nil
	r.mu.Unlock()
}
