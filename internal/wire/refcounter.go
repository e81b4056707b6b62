package wire

import "sync/atomic"

// RefCounter hands out the monotonically increasing references spec.md §3
// attaches to a socket: one counter feeds both msg_ref allocation (calls,
// leaves, heartbeats; casts carry no msg_ref) and join_ref allocation (a join's msg_ref and its resulting
// join_ref are the same value), matching how Phoenix's own JS client treats
// refs as a single incrementing sequence.
type RefCounter struct {
	v atomic.Uint64
}

// Next returns the next reference, starting at 1.
func (c *RefCounter) Next() uint64 {
	return c.v.Add(1)
}
