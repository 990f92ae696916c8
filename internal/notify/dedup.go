package notify

import "sync"

// Dedup is a bounded, concurrency-safe set of recently seen message IDs.
// When the bound is reached the oldest entry is evicted, so duplicates are
// only suppressed within the retention window.
type Dedup struct {
	mu    sync.Mutex
	limit int
	order []string
	seen  map[string]struct{}
}

// NewDedup creates a Dedup retaining up to limit IDs.
func NewDedup(limit int) *Dedup {
	if limit < 1 {
		limit = 1
	}
	return &Dedup{
		limit: limit,
		seen:  make(map[string]struct{}, limit),
	}
}

// Seen records an ID and reports whether it was already present. Empty IDs
// are never deduplicated.
func (d *Dedup) Seen(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if len(d.order) == d.limit {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	d.order = append(d.order, id)
	d.seen[id] = struct{}{}
	return false
}

// Len reports how many IDs are currently retained.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}
