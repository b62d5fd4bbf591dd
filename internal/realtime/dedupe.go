package realtime

// dedupeSet is a fixed-capacity set of event ids with FIFO eviction: once
// full, the oldest inserted id is dropped to make room. A repeated id does
// not refresh its position because repeats are rejected before insertion.
// Ring buffer plus map keeps both operations O(1).
type dedupeSet struct {
	cap  int
	ids  map[string]struct{}
	ring []string
	head int
}

func newDedupeSet(capacity int) *dedupeSet {
	return &dedupeSet{
		cap: capacity,
		ids: make(map[string]struct{}, capacity),
	}
}

// Seen records id and reports whether it was already present.
func (d *dedupeSet) Seen(id string) bool {
	if _, ok := d.ids[id]; ok {
		return true
	}
	if len(d.ring) < d.cap {
		d.ring = append(d.ring, id)
	} else {
		delete(d.ids, d.ring[d.head])
		d.ring[d.head] = id
		d.head = (d.head + 1) % d.cap
	}
	d.ids[id] = struct{}{}
	return false
}

func (d *dedupeSet) Len() int { return len(d.ids) }
