// Package node implements the FractalSync tree node: the RX stages
// that classify incoming synchronization requests, the per-port
// control-core state machines, the local and remote register files,
// the rotating arbiter funneling reduced requests toward the parent,
// and the TX fan-out of wakes back to the children.
package node

import (
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/fractalsync/arbitration"
	"github.com/sarchlab/fractalsync/fsync"
	"github.com/sarchlab/fractalsync/regfile"
)

// HookPosBarrierResolved marks when a barrier resolves at this node.
var HookPosBarrierResolved = &sim.HookPos{Name: "Barrier Resolved"}

// HookPosSyncError marks when a request errors at this node.
var HookPosSyncError = &sim.HookPos{Name: "Sync Error"}

// A Resolution describes one barrier resolving at a node. It is the
// hook item attached to HookPosBarrierResolved.
type Resolution struct {
	Node      string
	BarrierID int
	Level     int
	Dests     fsync.PortMask
	Err       bool
	Time      sim.VTimeInSec
}

type ccState int

const (
	ccIdle ccState = iota
	ccCheck
)

// A portComplex is the per-child-port infrastructure: the port itself,
// the decoded-request FIFO behind the RX stage, the forward FIFO
// feeding the parent-bound arbiter, the response FIFO feeding the TX
// stage, and the control-core state.
type portComplex struct {
	localPort sim.Port
	remote    sim.RemotePort

	rxBuf      sim.Buffer
	forwardBuf sim.Buffer
	respBuf    sim.Buffer

	cc         ccState
	overflow   bool
	txOverflow bool
}

// Comp is a FractalSync tree node.
type Comp struct {
	*sim.TickingComponent

	role        fsync.Role
	baseLevel   int
	treeLevels  int
	numIDs      int
	fallThrough bool

	complexes []*portComplex

	// ParentPort is nil for apex roles (root, neighbor-pair).
	ParentPort    sim.Port
	parentRemote  sim.RemotePort
	parentSendBuf sim.Buffer

	stage0 []*regfile.Local
	stage1 *regfile.Local
	remote *regfile.Remote

	forwardArbiter arbitration.Arbiter

	errCount map[fsync.ErrorKind]uint64
}

// Role returns the configured node role.
func (c *Comp) Role() fsync.Role {
	return c.role
}

// BaseLevel returns the absolute logical level the node starts at.
func (c *Comp) BaseLevel() int {
	return c.baseLevel
}

// NumChildPorts returns the number of child ports.
func (c *Comp) NumChildPorts() int {
	return len(c.complexes)
}

// ChildPort returns child port i.
func (c *Comp) ChildPort(i int) sim.Port {
	return c.complexes[i].localPort
}

// SetChildRemote binds child port i to the remote port it is wired to.
func (c *Comp) SetChildRemote(i int, remote sim.RemotePort) {
	c.complexes[i].remote = remote
}

// SetParentRemote binds the parent port to the remote port it is wired
// to.
func (c *Comp) SetParentRemote(remote sim.RemotePort) {
	if c.ParentPort == nil {
		log.Panicf("%s: %v node has no parent port", c.Name(), c.role)
	}

	c.parentRemote = remote
}

// ErrorCount returns how many times the node raised the given error
// kind.
func (c *Comp) ErrorCount(kind fsync.ErrorKind) uint64 {
	return c.errCount[kind]
}

// Overflow reports whether child port i saw a FIFO full: the RX stage
// on the most recent tick, or the TX fan-out at any point since build
// (the TX flag is sticky).
func (c *Comp) Overflow(i int) bool {
	return c.complexes[i].overflow || c.complexes[i].txOverflow
}

func (c *Comp) numStages() int {
	return c.role.NumLevels()
}

// Tick updates the node's state. The stage order models the configured
// FIFO output style: with registered FIFOs a request received in tick T
// is processed in T+1; with fall-through FIFOs the RX stage drains
// before the control cores run, so a request can traverse the node in
// the tick it arrives.
func (c *Comp) Tick() bool {
	madeProgress := false

	if c.fallThrough {
		madeProgress = c.receiveRequests() || madeProgress
		madeProgress = c.processResponses() || madeProgress
		madeProgress = c.processRequests() || madeProgress
		madeProgress = c.arbitrateForward() || madeProgress
		madeProgress = c.sendForward() || madeProgress
		madeProgress = c.sendResponses() || madeProgress
	} else {
		madeProgress = c.sendResponses() || madeProgress
		madeProgress = c.sendForward() || madeProgress
		madeProgress = c.arbitrateForward() || madeProgress
		madeProgress = c.processResponses() || madeProgress
		madeProgress = c.processRequests() || madeProgress
		madeProgress = c.receiveRequests() || madeProgress
	}

	return madeProgress
}

// arbitrateForward moves reduced requests from the per-port forward
// FIFOs into the shared parent send buffer, one grant per tick.
func (c *Comp) arbitrateForward() bool {
	if c.ParentPort == nil {
		return false
	}

	madeProgress := false
	for _, buf := range c.forwardArbiter.Arbitrate() {
		item := buf.Peek()
		if item == nil {
			continue
		}

		if !c.parentSendBuf.CanPush() {
			break
		}

		c.parentSendBuf.Push(item)
		buf.Pop()
		madeProgress = true
	}

	return madeProgress
}

func (c *Comp) sendForward() bool {
	if c.ParentPort == nil {
		return false
	}

	item := c.parentSendBuf.Peek()
	if item == nil {
		return false
	}

	req := item.(*fsync.SyncReq)
	req.Meta().Src = c.ParentPort.AsRemote()
	req.Meta().Dst = c.parentRemote

	if err := c.ParentPort.Send(req); err != nil {
		return false
	}

	c.parentSendBuf.Pop()

	return true
}

func (c *Comp) sendResponses() bool {
	madeProgress := false

	for _, pc := range c.complexes {
		item := pc.respBuf.Peek()
		if item == nil {
			continue
		}

		rsp := item.(*fsync.SyncRsp)
		rsp.Meta().Src = pc.localPort.AsRemote()
		rsp.Meta().Dst = pc.remote

		if err := pc.localPort.Send(rsp); err != nil {
			continue
		}

		pc.respBuf.Pop()
		madeProgress = true
	}

	return madeProgress
}

func (c *Comp) recordError(kind fsync.ErrorKind, id int) {
	c.errCount[kind]++

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosSyncError,
		Item:   kind,
		Detail: id,
	})
}
