package node

import (
	"log"

	"github.com/sarchlab/fractalsync/fsync"
)

// processResponses drains the parent port. A wake arriving from above
// names the absolute level and barrier ID it resolved at; the matching
// remote register-file entry holds the child ports waiting on it. The
// entry is released and the wake fans out to every recorded port. The
// parent message stays in the port until every destination FIFO can
// take its copy, so a release never loses a destination; a blocked
// destination raises its sticky overflow flag.
func (c *Comp) processResponses() bool {
	if c.ParentPort == nil {
		return false
	}

	item := c.ParentPort.PeekIncoming()
	if item == nil {
		return false
	}

	rsp := item.(*fsync.SyncRsp)

	dests, ok := c.remote.Peek(rsp.Level, rsp.BarrierID)
	if !ok {
		c.recordError(fsync.ErrEmptyPop, rsp.BarrierID)
		log.Panicf("%s: wake for level %d barrier %d without a pending entry",
			c.Name(), rsp.Level, rsp.BarrierID)
	}

	blocked := false
	for i, pc := range c.complexes {
		if !dests.Has(i) || pc.respBuf.CanPush() {
			continue
		}

		if !pc.txOverflow {
			pc.txOverflow = true
			c.recordError(fsync.ErrQueueOverflow, rsp.BarrierID)
		}
		blocked = true
	}
	if blocked {
		return false
	}

	c.remote.Consume(rsp.Level, rsp.BarrierID)

	for i, pc := range c.complexes {
		if !dests.Has(i) {
			continue
		}

		down := fsync.SyncRspBuilder{}.
			WithBarrierID(rsp.BarrierID).
			WithLevel(rsp.Level).
			WithErr(rsp.Err).
			Build()
		pc.respBuf.Push(down)
	}

	c.ParentPort.RetrieveIncoming()

	return true
}
