// Package arbitration provides starvation-bounded arbiters that
// multiplex FIFO-buffered ports onto a shared output.
package arbitration

import "github.com/sarchlab/akita/v4/sim"

// An Arbiter selects, on each grant cycle, which pending input buffers
// may move data toward the shared output.
type Arbiter interface {
	// AddBuffer registers one input buffer with the arbiter.
	AddBuffer(buf sim.Buffer)

	// Arbitrate returns the buffers granted this cycle, in grant order.
	Arbitrate() []sim.Buffer
}

// NewRotating creates an arbiter with rotating priority. A mask marks
// buffers already serviced in the current rotation; each grant picks
// the lowest-indexed pending buffer whose mask bit is clear, and when
// none qualifies the mask resets and a new rotation begins. With N
// persistently pending buffers, every buffer is granted at least once
// in any N consecutive grants.
func NewRotating() Arbiter {
	return &rotatingArbiter{}
}

type rotatingArbiter struct {
	buffers []sim.Buffer
	served  []bool
}

func (a *rotatingArbiter) AddBuffer(buf sim.Buffer) {
	a.buffers = append(a.buffers, buf)
	a.served = append(a.served, false)
}

func (a *rotatingArbiter) Arbitrate() []sim.Buffer {
	picked := a.pickUnserved()
	if picked < 0 {
		a.resetRotation()
		picked = a.pickUnserved()
	}

	if picked < 0 {
		return nil
	}

	a.served[picked] = true

	return []sim.Buffer{a.buffers[picked]}
}

func (a *rotatingArbiter) pickUnserved() int {
	for i, buf := range a.buffers {
		if a.served[i] {
			continue
		}

		if buf.Size() > 0 {
			return i
		}
	}

	return -1
}

func (a *rotatingArbiter) resetRotation() {
	for i := range a.served {
		a.served[i] = false
	}
}
