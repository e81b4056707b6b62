package transport

import (
	"math/rand"
	"time"
)

// BackoffSchedule is the capped-exponential reconnect delay sequence from
// spec.md's resource model: each step doubles until Cap, then every
// subsequent attempt waits Cap. Jitter shifts the chosen delay up or down by
// at most JitterFrac of it so many clients reconnecting at once don't thunder the server at
// once, the same shape as findnature/dcrdex's keepAlive reconnect loop
// (reconnectInterval growing up to maxReconnectInterval).
type BackoffSchedule struct {
	Initial    time.Duration
	Cap        time.Duration
	JitterFrac float64
}

// DefaultBackoff doubles from 100ms: 100ms, 200ms, 400ms, 800ms, 1.6s,
// 3.2s, then held at the 5s cap, +/-20% jitter.
func DefaultBackoff() BackoffSchedule {
	return BackoffSchedule{
		Initial:    100 * time.Millisecond,
		Cap:        5 * time.Second,
		JitterFrac: 0.2,
	}
}

// Delay returns the wait before reconnect attempt n (0-indexed: n=0 is the
// delay before the first retry after the initial failure).
func (b BackoffSchedule) Delay(n int, rng *rand.Rand) time.Duration {
	d := b.Initial
	for i := 0; i < n; i++ {
		d *= 2
		if d >= b.Cap {
			d = b.Cap
			break
		}
	}
	if d > b.Cap {
		d = b.Cap
	}
	if b.JitterFrac <= 0 {
		return d
	}
	jitter := float64(d) * b.JitterFrac
	offset := (rng.Float64()*2 - 1) * jitter
	out := time.Duration(float64(d) + offset)
	if out < 0 {
		out = 0
	}
	return out
}
