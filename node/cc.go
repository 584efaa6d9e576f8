package node

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/fractalsync/fsync"
	"github.com/sarchlab/fractalsync/regfile"
)

// processRequests runs the per-port control cores. Each core is a
// two-state machine: a port whose request was taken last tick spends
// one settle tick in CHECK before its next request is accepted, giving
// register-file writes time to commit. Ports are visited in ascending
// index order, which realizes the lowest-port-wins discipline for
// same-tick recordings; local checks are batched per bank and
// tie-broken inside the register file.
//
// Every admitted local check can trigger at most one resolution, and
// every resolution writes at most one wake per response FIFO, so the
// tick's local admissions are bounded by the smallest free response
// capacity. Checks beyond the budget stay queued and retry next tick.
func (c *Comp) processRequests() bool {
	madeProgress := false

	var candidates []int
	for i, pc := range c.complexes {
		switch pc.cc {
		case ccCheck:
			pc.cc = ccIdle
			madeProgress = true
		case ccIdle:
			if pc.rxBuf.Peek() != nil {
				candidates = append(candidates, i)
			}
		}
	}

	if len(candidates) == 0 {
		return madeProgress
	}

	wakeBudget := c.complexes[0].respBuf.Capacity()
	for _, pc := range c.complexes {
		free := pc.respBuf.Capacity() - pc.respBuf.Size()
		if free < wakeBudget {
			wakeBudget = free
		}
	}

	batch := make(map[int]rxRequest)
	stage0Checks := make([][]regfile.Check, len(c.stage0))
	var stage1Checks []regfile.Check
	admitted := 0

	for _, i := range candidates {
		pc := c.complexes[i]
		rx := pc.rxBuf.Peek().(rxRequest)

		switch rx.class {
		case classError:
			madeProgress = c.respondError(pc, rx) || madeProgress

		case classRemote:
			madeProgress = c.propagate(pc, rx) || madeProgress

		case classLocal:
			if admitted >= wakeBudget {
				continue
			}
			if c.localForwards(rx) && !pc.forwardBuf.CanPush() {
				continue
			}

			check := regfile.Check{
				Port:    i,
				ID:      rx.req.BarrierID,
				Contrib: fsync.PortMask(1) << uint(i),
			}

			if rx.entryStage == 0 {
				check.Side = i % 2
				stage0Checks[i/2] = append(stage0Checks[i/2], check)
			} else {
				check.Side = i / 2
				stage1Checks = append(stage1Checks, check)
			}

			pc.rxBuf.Pop()
			pc.cc = ccCheck
			batch[i] = rx
			admitted++
			madeProgress = true
		}
	}

	for bank, checks := range stage0Checks {
		if len(checks) == 0 {
			continue
		}

		for _, result := range c.stage0[bank].CheckAll(checks) {
			if result.IDErr {
				c.respondIDErr(batch[result.Check.Port], result.Check)
				continue
			}
			if !result.Present {
				continue
			}

			rx := batch[result.Check.Port]
			if c.numStages() == 2 && rx.req.Aggregate.Bit(1) {
				stage1Checks = append(stage1Checks, regfile.Check{
					Port:    result.Check.Port,
					Side:    result.Check.Port / 2,
					ID:      result.Check.ID,
					Contrib: result.Contrib,
				})
				continue
			}

			c.finishLocal(result, rx)
		}
	}

	if len(stage1Checks) > 0 {
		for _, result := range c.stage1.CheckAll(stage1Checks) {
			if result.IDErr {
				c.respondIDErr(batch[result.Check.Port], result.Check)
				continue
			}
			if result.Present {
				c.finishLocal(result, batch[result.Check.Port])
			}
		}
	}

	return madeProgress
}

// localForwards reports whether a locally merging request still has
// levels to traverse above this node.
func (c *Comp) localForwards(rx rxRequest) bool {
	return rx.req.Aggregate.Shift(c.numStages()) != 0 && !c.role.IsApex()
}

// finishLocal completes a resolved local merge: the group either wakes
// its contributors here or, when the aggregate names further levels,
// continues upward as one reduced request. Wakes carry the absolute
// resolution level, which is what descending nodes key their remote
// register files by.
func (c *Comp) finishLocal(result regfile.CheckResult, rx rxRequest) {
	if c.localForwards(rx) {
		c.forwardMerged(rx, result)
		return
	}

	c.resolve(c.resolutionLevel(rx), result)
}

// resolutionLevel is the absolute logical level the request's barrier
// resolves at.
func (c *Comp) resolutionLevel(rx rxRequest) int {
	return c.baseLevel + rx.req.Aggregate.Levels() - 1
}

// forwardMerged records the merged group in the remote register file
// and enqueues the reduced request through the winning port's forward
// FIFO. A record that merges into an existing entry produces no second
// forward.
func (c *Comp) forwardMerged(rx rxRequest, result regfile.CheckResult) {
	level := c.resolutionLevel(rx)

	res := c.remote.Record(level, rx.req.BarrierID, result.Contrib)
	if res.SigErr || res.Overflow {
		kind := fsync.ErrSignatureOutOfRange
		if res.Overflow {
			kind = fsync.ErrQueueOverflow
		}

		for i, pc := range c.complexes {
			if !result.Contrib.Has(i) {
				continue
			}

			rsp := fsync.SyncRspBuilder{}.
				WithBarrierID(rx.req.BarrierID).
				WithLevel(level).
				WithErr(true).
				Build()
			pc.respBuf.Push(rsp)
		}

		c.recordError(kind, rx.req.BarrierID)

		return
	}

	if res.First {
		fwd := fsync.SyncReqBuilder{}.
			WithAggregate(rx.req.Aggregate.Shift(c.numStages())).
			WithBarrierID(rx.req.BarrierID).
			WithSourceMask(result.Contrib).
			Build()
		c.complexes[result.Check.Port].forwardBuf.Push(fwd)
	}
}

// respondError terminates an errored request immediately: the source
// port receives an error-flagged wake instead of the request blocking
// unrelated traffic.
func (c *Comp) respondError(pc *portComplex, rx rxRequest) bool {
	if !pc.respBuf.CanPush() {
		return false
	}

	rsp := fsync.SyncRspBuilder{}.
		WithBarrierID(rx.req.BarrierID).
		WithLevel(c.baseLevel).
		WithErr(true).
		Build()
	pc.respBuf.Push(rsp)

	pc.rxBuf.Pop()
	pc.cc = ccCheck

	if rx.errKind != fsync.ErrNone {
		c.recordError(rx.errKind, rx.req.BarrierID)
	}

	return true
}

func (c *Comp) respondIDErr(rx rxRequest, check regfile.Check) {
	pc := c.complexes[check.Port]

	rsp := fsync.SyncRspBuilder{}.
		WithBarrierID(check.ID).
		WithLevel(c.resolutionLevel(rx)).
		WithErr(true).
		Build()
	pc.respBuf.Push(rsp)

	c.recordError(fsync.ErrIDOutOfRange, check.ID)
}

// propagate records a pass-through request in the remote register file
// and, for the first propagation of its signature, enqueues the reduced
// request toward the parent. Later same-signature requests only merge
// their source into the entry's sticky OR.
func (c *Comp) propagate(pc *portComplex, rx rxRequest) bool {
	if !pc.forwardBuf.CanPush() {
		return false
	}

	level := c.resolutionLevel(rx)
	source := fsync.PortMask(1) << uint(rx.port)

	res := c.remote.Record(level, rx.req.BarrierID, source)
	if res.SigErr || res.Overflow {
		if !pc.respBuf.CanPush() {
			return false
		}

		kind := fsync.ErrSignatureOutOfRange
		if res.Overflow {
			kind = fsync.ErrQueueOverflow
		}

		rsp := fsync.SyncRspBuilder{}.
			WithBarrierID(rx.req.BarrierID).
			WithLevel(level).
			WithErr(true).
			Build()
		pc.respBuf.Push(rsp)

		pc.rxBuf.Pop()
		pc.cc = ccCheck
		c.recordError(kind, rx.req.BarrierID)

		return true
	}

	if res.First {
		fwd := fsync.SyncReqBuilder{}.
			WithAggregate(rx.req.Aggregate.Shift(c.numStages())).
			WithBarrierID(rx.req.BarrierID).
			WithSourceMask(source).
			Build()
		pc.forwardBuf.Push(fwd)
	}

	pc.rxBuf.Pop()
	pc.cc = ccCheck

	return true
}

// resolve emits the wake of a locally resolved barrier to every
// contributor port.
func (c *Comp) resolve(level int, result regfile.CheckResult) {
	for i, pc := range c.complexes {
		if !result.Contrib.Has(i) {
			continue
		}

		rsp := fsync.SyncRspBuilder{}.
			WithBarrierID(result.Check.ID).
			WithLevel(level).
			Build()
		pc.respBuf.Push(rsp)
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosBarrierResolved,
		Item: Resolution{
			Node:      c.Name(),
			BarrierID: result.Check.ID,
			Level:     level,
			Dests:     result.Contrib,
			Time:      c.CurrentTime(),
		},
	})
}
