// Package acceptance provides a bus-functional test harness for whole
// synchronization trees: agents standing in for compute units issue
// barrier requests and the Test checks every wake comes back to the
// right unit at the right level.
package acceptance

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/fractalsync/fsync"
	"github.com/sarchlab/fractalsync/tree"
)

// Agent stands in for one compute unit. It issues the next queued
// barrier request once the previous one woke it, the way a blocked
// core would.
type Agent struct {
	*sim.TickingComponent

	test *Test

	X, Y int
	Port sim.Port

	// Fabric is the remote port the agent addresses its requests to.
	Fabric sim.RemotePort

	toSend  []*fsync.SyncReq
	waiting bool
}

// NewAgent creates a new agent at grid position (x, y).
func NewAgent(
	engine sim.Engine,
	freq sim.Freq,
	name string,
	x, y int,
	test *Test,
) *Agent {
	a := &Agent{
		test: test,
		X:    x,
		Y:    y,
	}
	a.TickingComponent = sim.NewTickingComponent(name, engine, freq, a)
	a.Port = sim.NewPort(a, 4, 4, fmt.Sprintf("%s.Port", name))

	test.RegisterAgent(a)

	return a
}

// ConnectTree wires the agent into the synchronization tree at its
// grid position.
func (a *Agent) ConnectTree(t *tree.Tree) {
	a.Fabric = t.ConnectLeaf(a.X, a.Y, a.Port)
}

// Tick tries to receive wakes and send the next pending request.
func (a *Agent) Tick() bool {
	madeProgress := false
	madeProgress = a.recv() || madeProgress
	madeProgress = a.send() || madeProgress

	return madeProgress
}

func (a *Agent) send() bool {
	if a.waiting || len(a.toSend) == 0 {
		return false
	}

	req := a.toSend[0]
	req.Meta().Src = a.Port.AsRemote()
	req.Meta().Dst = a.Fabric

	if err := a.Port.Send(req); err != nil {
		return false
	}

	a.toSend = a.toSend[1:]
	a.waiting = true

	return true
}

func (a *Agent) recv() bool {
	msg := a.Port.RetrieveIncoming()
	if msg == nil {
		return false
	}

	rsp := msg.(*fsync.SyncRsp)
	a.test.receiveWake(a, rsp)
	a.waiting = false

	return true
}
