package regfile

import (
	"log"

	"github.com/sarchlab/fractalsync/fsync"
)

type remoteEntry struct {
	active  bool
	contrib fsync.PortMask
}

// A RecordResult reports the outcome of recording one propagated
// request.
type RecordResult struct {
	// First is set when the record allocated a fresh entry: exactly one
	// reduced request per signature must travel upward, and it is the
	// caller that sees First.
	First bool

	// SigErr is set when the signature falls outside the configured
	// space.
	SigErr bool

	// Overflow is set when the CAM has no free line for a fresh entry.
	Overflow bool
}

// A Remote is the back-routing table of one node. Entries are keyed by
// a signature derived from the remaining tree level and the barrier id,
// so requests for different barriers at different levels coexist in one
// address space. Each entry holds a sticky OR of every child port that
// propagated through it; the entry is released when the matching wake
// returns.
//
// The collision discipline of the local banks carries over: callers
// record in ascending port order within a tick, so the lowest-indexed
// port allocates and all same-signature followers merge.
type Remote struct {
	name      string
	kind      fsync.RemoteRegKind
	numIDs    int
	numLevels int
	lines     int

	direct []remoteEntry
	cam    map[int]*remoteEntry
}

// NewRemote creates a remote register file. For the direct-mapped kind
// the table holds every (level, id) combination and lines is ignored;
// for the CAM kind only lines entries may be simultaneously live.
func NewRemote(
	name string,
	kind fsync.RemoteRegKind,
	numIDs, numLevels, lines int,
) *Remote {
	if numIDs < 1 || numLevels < 1 {
		log.Panicf("%s: remote register file needs a non-empty signature space",
			name)
	}

	r := &Remote{
		name:      name,
		kind:      kind,
		numIDs:    numIDs,
		numLevels: numLevels,
		lines:     lines,
	}

	switch kind {
	case fsync.RegDirect:
		r.direct = make([]remoteEntry, numIDs*numLevels)
	case fsync.RegCAM:
		if lines < 1 {
			log.Panicf("%s: CAM needs at least one line", name)
		}
		r.cam = make(map[int]*remoteEntry, lines)
	default:
		log.Panicf("%s: unknown remote register kind %v", name, kind)
	}

	return r
}

// Name returns the name of the table.
func (r *Remote) Name() string {
	return r.name
}

// Signature derives the table key from the absolute resolution level
// and the barrier id. The second return value is false when the
// signature lies outside the configured space.
func (r *Remote) Signature(level, id int) (int, bool) {
	if level < 0 || level >= r.numLevels || id < 0 || id >= r.numIDs {
		return 0, false
	}
	return level*r.numIDs + id, true
}

// Record merges one propagated request into the table.
func (r *Remote) Record(
	level, id int,
	contrib fsync.PortMask,
) RecordResult {
	sig, ok := r.Signature(level, id)
	if !ok {
		return RecordResult{SigErr: true}
	}

	if r.kind == fsync.RegDirect {
		entry := &r.direct[sig]
		first := !entry.active
		entry.active = true
		entry.contrib |= contrib

		return RecordResult{First: first}
	}

	if entry, found := r.cam[sig]; found {
		entry.contrib |= contrib
		return RecordResult{}
	}

	if len(r.cam) >= r.lines {
		return RecordResult{Overflow: true}
	}

	r.cam[sig] = &remoteEntry{active: true, contrib: contrib}

	return RecordResult{First: true}
}

// Peek returns the accumulated destination mask without releasing the
// entry. It returns false when no entry is outstanding for the
// signature.
func (r *Remote) Peek(level, id int) (fsync.PortMask, bool) {
	sig, ok := r.Signature(level, id)
	if !ok {
		return 0, false
	}

	if r.kind == fsync.RegDirect {
		entry := r.direct[sig]
		return entry.contrib, entry.active
	}

	entry, found := r.cam[sig]
	if !found {
		return 0, false
	}

	return entry.contrib, true
}

// Consume looks up the entry for a returning wake, releases it, and
// returns the accumulated destination mask. It returns false when no
// entry is outstanding for the signature.
func (r *Remote) Consume(level, id int) (fsync.PortMask, bool) {
	sig, ok := r.Signature(level, id)
	if !ok {
		return 0, false
	}

	if r.kind == fsync.RegDirect {
		entry := &r.direct[sig]
		if !entry.active {
			return 0, false
		}

		contrib := entry.contrib
		*entry = remoteEntry{}

		return contrib, true
	}

	entry, found := r.cam[sig]
	if !found {
		return 0, false
	}

	contrib := entry.contrib
	delete(r.cam, sig)

	return contrib, true
}

// Outstanding returns the number of live entries.
func (r *Remote) Outstanding() int {
	if r.kind == fsync.RegCAM {
		return len(r.cam)
	}

	n := 0
	for _, e := range r.direct {
		if e.active {
			n++
		}
	}

	return n
}
