package node

import "github.com/sarchlab/fractalsync/fsync"

type rxClass int

const (
	classLocal rxClass = iota
	classRemote
	classError
)

// An rxRequest is the RX stage's decoded view of one incoming request.
type rxRequest struct {
	req  *fsync.SyncReq
	port int

	class      rxClass
	entryStage int
	errKind    fsync.ErrorKind
}

// receiveRequests samples at most one request per child port per tick,
// classifies it, and queues it for the control core. A full rx FIFO
// raises the overflow status and leaves the request in the port buffer,
// backpressuring the sender.
func (c *Comp) receiveRequests() bool {
	madeProgress := false

	for i, pc := range c.complexes {
		pc.overflow = false

		item := pc.localPort.PeekIncoming()
		if item == nil {
			continue
		}

		if !pc.rxBuf.CanPush() {
			pc.overflow = true
			continue
		}

		req := item.(*fsync.SyncReq)
		pc.localPort.RetrieveIncoming()
		pc.rxBuf.Push(c.decode(i, req))
		madeProgress = true
	}

	return madeProgress
}

// decode classifies a request by the low aggregate bits covering this
// node's stages: a request that aggregates in at least one of them is
// local and enters at the lowest participating stage; a request whose
// window is all pass-through propagates upward. The apex has no upward
// path, so a request that skips every apex stage is malformed.
func (c *Comp) decode(port int, req *fsync.SyncReq) rxRequest {
	rx := rxRequest{req: req, port: port}

	if req.Err {
		rx.class = classError
		rx.errKind = fsync.ErrNone
		return rx
	}

	if !req.Aggregate.Valid() {
		rx.class = classError
		rx.errKind = fsync.ErrSignatureOutOfRange
		return rx
	}

	entry := -1
	for s := 0; s < c.numStages(); s++ {
		if req.Aggregate.Bit(s) {
			entry = s
			break
		}
	}

	switch {
	case entry >= 0:
		rx.class = classLocal
		rx.entryStage = entry
	case c.role.IsApex():
		rx.class = classError
		rx.errKind = fsync.ErrSignatureOutOfRange
	default:
		rx.class = classRemote
	}

	return rx
}
