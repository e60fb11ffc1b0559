package ecs

// Each2 iterates, in ascending EntityID order, over entities that have both
// component A and B. It walks the smaller store and probes the larger one.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	if sa.Len() <= sb.Len() {
		for _, id := range sa.IDs() {
			a, okA := sa.data[id]
			b, okB := sb.data[id]
			if okA && okB {
				fn(id, a, b)
			}
		}
		return
	}
	for _, id := range sb.IDs() {
		a, okA := sa.data[id]
		b, okB := sb.data[id]
		if okA && okB {
			fn(id, a, b)
		}
	}
}

// Each3 iterates over entities that have components A, B, and C.
func Each3[A, B, C any](sa *Store[A], sb *Store[B], sc *Store[C], fn func(EntityID, *A, *B, *C)) {
	ids := sa.IDs()
	if sb.Len() < len(ids) {
		ids = sb.IDs()
	}
	if sc.Len() < len(ids) {
		ids = sc.IDs()
	}
	for _, id := range ids {
		a, okA := sa.data[id]
		b, okB := sb.data[id]
		c, okC := sc.data[id]
		if okA && okB && okC {
			fn(id, a, b, c)
		}
	}
}
