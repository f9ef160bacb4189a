// Package dedupe tracks student identifiers already seen in a batch so a
// repeated id is reported instead of scored twice.
package dedupe

import "sync"

// Deduper records seen identifiers.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(id string) bool

	// Forget removes id so it may be recorded again.
	Forget(id string)

	Size() int
}

// inMemoryDeduper keeps ids in a map. In bounded mode the oldest ids are
// evicted first once maxSize is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order, bounded mode only
	maxSize int      // 0 or negative = unbounded
}

// NewInMemoryDeduper creates a deduper. It is unbounded unless WithMaxSize
// is given.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{seen: make(map[string]struct{})}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize && len(d.order) > 0 {
			oldest := d.order[0]
			d.order = d.order[1:]
			delete(d.seen, oldest)
		}
		d.order = append(d.order, id)
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Forget(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; !ok {
		return
	}
	delete(d.seen, id)
	if d.maxSize > 0 {
		for i, x := range d.order {
			if x == id {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
