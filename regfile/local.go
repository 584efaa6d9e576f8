// Package regfile implements the per-node register files of the
// FractalSync tree: the local presence banks that pairwise match
// same-level synchronization requests, and the remote tables that
// remember the back-route of requests propagated toward the root.
package regfile

import (
	"log"

	"github.com/sarchlab/fractalsync/fsync"
)

// A Check is one port's access to a register-file bank in one tick.
type Check struct {
	// Port is the child-port index of the checking port, used as the
	// total order for collision tie-breaking.
	Port int

	// Side is the side of the pair structure the check arrives on
	// (0 or 1).
	Side int

	ID int

	// Contrib is the set of child ports the request represents.
	Contrib fsync.PortMask
}

// A CheckResult reports the outcome of one Check.
type CheckResult struct {
	Check Check

	// Admitted marks the single check per id that won the tie-break
	// and was allowed to update the bank.
	Admitted bool

	// Ignored marks same-tick duplicates of an admitted check. Their
	// contributor bits are still merged, but they are never counted a
	// second time.
	Ignored bool

	// Present is set on the admitted check when the barrier resolved
	// this tick.
	Present bool

	// IDErr is set when the barrier id lies outside the configured
	// register count.
	IDErr bool

	// Contrib is the accumulated contributor set, valid when Present.
	Contrib fsync.PortMask
}

type localEntry struct {
	active  bool
	sides   uint8
	contrib fsync.PortMask
}

// A Local is one pairwise presence bank: one entry per barrier id,
// resolved when both sides of the pair have arrived.
type Local struct {
	name    string
	entries []localEntry
}

// NewLocal creates a presence bank holding numIDs barrier ids.
func NewLocal(name string, numIDs int) *Local {
	if numIDs < 1 {
		log.Panicf("%s: local register file needs at least one entry",
			name)
	}

	return &Local{
		name:    name,
		entries: make([]localEntry, numIDs),
	}
}

// Name returns the name of the bank.
func (l *Local) Name() string {
	return l.name
}

// NumIDs returns the configured register count.
func (l *Local) NumIDs() int {
	return len(l.entries)
}

// Pending reports whether an unresolved entry exists for id.
func (l *Local) Pending(id int) bool {
	return id >= 0 && id < len(l.entries) && l.entries[id].active
}

// CheckAll applies one tick's worth of checks as a single deterministic
// step. Collision handling runs first: among all checks naming the same
// id, the lowest-indexed port is admitted and the rest are ignored, so
// no barrier is ever counted twice. The admitted check then merges its
// side and contributor bits; the entry resolves the moment both sides
// are covered, whether from stored state or from the same tick's batch.
func (l *Local) CheckAll(checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	groups := map[int][]int{}

	for i, c := range checks {
		results[i].Check = c

		if c.ID < 0 || c.ID >= len(l.entries) {
			results[i].IDErr = true
			continue
		}

		groups[c.ID] = append(groups[c.ID], i)
	}

	for id, idxs := range groups {
		l.checkGroup(id, idxs, checks, results)
	}

	return results
}

func (l *Local) checkGroup(
	id int,
	idxs []int,
	checks []Check,
	results []CheckResult,
) {
	winner := idxs[0]
	for _, i := range idxs[1:] {
		if checks[i].Port < checks[winner].Port {
			winner = i
		}
	}

	entry := l.entries[id]
	sides := entry.sides
	contrib := entry.contrib

	for _, i := range idxs {
		if i == winner {
			results[i].Admitted = true
		} else {
			results[i].Ignored = true
		}

		sides |= 1 << uint(checks[i].Side)
		contrib |= checks[i].Contrib
	}

	if sides == 0b11 {
		results[winner].Present = true
		results[winner].Contrib = contrib
		l.entries[id] = localEntry{}
		return
	}

	l.entries[id] = localEntry{active: true, sides: sides, contrib: contrib}
}
