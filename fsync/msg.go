package fsync

import "github.com/sarchlab/akita/v4/sim"

// A SyncReq is a synchronization request traveling up the tree. The
// aggregate encodes how many logical levels remain before the
// participants converge; the source mask records which child ports of
// the receiving node the request represents, for back-routing.
type SyncReq struct {
	sim.MsgMeta

	Aggregate  Aggregate
	BarrierID  int
	SourceMask PortMask
	Err        bool
}

// Meta returns the meta data of the message.
func (r *SyncReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a cloned SyncReq with a different ID.
func (r *SyncReq) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// SyncReqBuilder can build SyncReq messages.
type SyncReqBuilder struct {
	src, dst   sim.RemotePort
	aggregate  Aggregate
	barrierID  int
	sourceMask PortMask
	err        bool
}

// WithSrc sets the source of the request.
func (b SyncReqBuilder) WithSrc(src sim.RemotePort) SyncReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request.
func (b SyncReqBuilder) WithDst(dst sim.RemotePort) SyncReqBuilder {
	b.dst = dst
	return b
}

// WithAggregate sets the aggregate field of the request.
func (b SyncReqBuilder) WithAggregate(a Aggregate) SyncReqBuilder {
	b.aggregate = a
	return b
}

// WithBarrierID sets the barrier id of the request.
func (b SyncReqBuilder) WithBarrierID(id int) SyncReqBuilder {
	b.barrierID = id
	return b
}

// WithSourceMask sets the source mask of the request.
func (b SyncReqBuilder) WithSourceMask(m PortMask) SyncReqBuilder {
	b.sourceMask = m
	return b
}

// WithErr marks the request as carrying a sticky error.
func (b SyncReqBuilder) WithErr() SyncReqBuilder {
	b.err = true
	return b
}

// Build creates a new SyncReq.
func (b SyncReqBuilder) Build() *SyncReq {
	r := &SyncReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.Aggregate = b.aggregate
	r.BarrierID = b.barrierID
	r.SourceMask = b.sourceMask
	r.Err = b.err

	return r
}

// A SyncRsp is a wake traveling back down the tree. Level is the
// absolute logical level the barrier resolved at; descending nodes use
// it to regenerate the signature of their remote register-file entry.
type SyncRsp struct {
	sim.MsgMeta

	Wake      bool
	BarrierID int
	Level     int
	Err       bool
}

// Meta returns the meta data of the message.
func (r *SyncRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a cloned SyncRsp with a different ID.
func (r *SyncRsp) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// SyncRspBuilder can build SyncRsp messages.
type SyncRspBuilder struct {
	src, dst  sim.RemotePort
	barrierID int
	level     int
	err       bool
}

// WithSrc sets the source of the response.
func (b SyncRspBuilder) WithSrc(src sim.RemotePort) SyncRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the response.
func (b SyncRspBuilder) WithDst(dst sim.RemotePort) SyncRspBuilder {
	b.dst = dst
	return b
}

// WithBarrierID sets the barrier id of the response.
func (b SyncRspBuilder) WithBarrierID(id int) SyncRspBuilder {
	b.barrierID = id
	return b
}

// WithLevel sets the absolute resolution level of the response.
func (b SyncRspBuilder) WithLevel(level int) SyncRspBuilder {
	b.level = level
	return b
}

// WithErr marks the response as carrying a sticky error.
func (b SyncRspBuilder) WithErr(err bool) SyncRspBuilder {
	b.err = err
	return b
}

// Build creates a new SyncRsp.
func (b SyncRspBuilder) Build() *SyncRsp {
	r := &SyncRsp{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.Wake = true
	r.BarrierID = b.barrierID
	r.Level = b.level
	r.Err = b.err

	return r
}
