package recording

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/fractalsync/fsync"
	"github.com/sarchlab/fractalsync/node"
)

type resolutionEntry struct {
	Node      string
	BarrierID int
	Level     int
	Dests     uint64
	Err       bool
	Time      float64
}

type errorEntry struct {
	Node      string
	Kind      string
	BarrierID int
	Time      float64
}

// A DataBackend is the subset of datarecording.DataRecorder that the
// tracer writes through.
type DataBackend interface {
	CreateTable(table string, sampleEntry any)
	InsertData(table string, entry any)
}

// A BarrierTracer records barrier resolutions and synchronization
// errors into a DataRecorder backend.
type BarrierTracer struct {
	backend DataBackend
}

// NewBarrierTracer creates a tracer writing to the given backend.
func NewBarrierTracer(backend DataBackend) *BarrierTracer {
	t := &BarrierTracer{backend: backend}

	backend.CreateTable("barrier_resolutions", resolutionEntry{})
	backend.CreateTable("sync_errors", errorEntry{})

	return t
}

// Func records the hooked event.
func (t *BarrierTracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case node.HookPosBarrierResolved:
		r := ctx.Item.(node.Resolution)
		t.backend.InsertData("barrier_resolutions", resolutionEntry{
			Node:      r.Node,
			BarrierID: r.BarrierID,
			Level:     r.Level,
			Dests:     uint64(r.Dests),
			Err:       r.Err,
			Time:      float64(r.Time),
		})
	case node.HookPosSyncError:
		kind := ctx.Item.(fsync.ErrorKind)
		t.backend.InsertData("sync_errors", errorEntry{
			Node:      ctx.Domain.(sim.Named).Name(),
			Kind:      kind.String(),
			BarrierID: ctx.Detail.(int),
			Time:      float64(ctx.Domain.(sim.TimeTeller).CurrentTime()),
		})
	}
}

// Collect attaches the tracer to a node so its events are recorded.
func Collect(n *node.Comp, tracer *BarrierTracer) {
	for _, hook := range n.Hooks() {
		if hook == tracer {
			panic(fmt.Sprintf(
				"node %s already has tracer %s",
				n.Name(), reflect.TypeOf(tracer)))
		}
	}

	n.AcceptHook(tracer)
}
