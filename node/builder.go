package node

import (
	"fmt"
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/fractalsync/arbitration"
	"github.com/sarchlab/fractalsync/fsync"
	"github.com/sarchlab/fractalsync/regfile"
)

// Builder can help building FractalSync nodes.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	role        fsync.Role
	baseLevel   int
	treeLevels  int
	numIDs      int
	remoteKind  fsync.RemoteRegKind
	remoteLines int
	bufDepth    int
	fallThrough bool
}

// MakeBuilder returns a new Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:       1 * sim.GHz,
		role:       fsync.RoleHorizontal,
		treeLevels: 1,
		numIDs:     fsync.NumBarrierIDs,
		remoteKind: fsync.RegDirect,
		bufDepth:   2,
	}
}

// WithEngine sets the event engine the node uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the node works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithRole sets the node role.
func (b Builder) WithRole(role fsync.Role) Builder {
	b.role = role
	return b
}

// WithBaseLevel sets the absolute logical level of the node's first
// aggregation stage.
func (b Builder) WithBaseLevel(level int) Builder {
	b.baseLevel = level
	return b
}

// WithTreeLevels sets the total number of logical levels in the tree
// the node belongs to.
func (b Builder) WithTreeLevels(levels int) Builder {
	b.treeLevels = levels
	return b
}

// WithNumBarrierIDs sets how many barrier IDs the node tracks.
func (b Builder) WithNumBarrierIDs(n int) Builder {
	b.numIDs = n
	return b
}

// WithRemoteRegKind selects the remote register-file organization.
func (b Builder) WithRemoteRegKind(kind fsync.RemoteRegKind) Builder {
	b.remoteKind = kind
	return b
}

// WithRemoteLines sets the line count of a CAM remote register file.
// Direct-mapped register files ignore it.
func (b Builder) WithRemoteLines(lines int) Builder {
	b.remoteLines = lines
	return b
}

// WithBufDepth sets the depth of the node's internal FIFOs and port
// buffers.
func (b Builder) WithBufDepth(depth int) Builder {
	b.bufDepth = depth
	return b
}

// WithFallThroughFIFOs makes the node process a request in the tick it
// arrives instead of the tick after.
func (b Builder) WithFallThroughFIFOs(fallThrough bool) Builder {
	b.fallThrough = fallThrough
	return b
}

// Build creates the node.
func (b Builder) Build(name string) *Comp {
	b.mustBeValid(name)

	c := &Comp{
		role:        b.role,
		baseLevel:   b.baseLevel,
		treeLevels:  b.treeLevels,
		numIDs:      b.numIDs,
		fallThrough: b.fallThrough,
		errCount:    make(map[fsync.ErrorKind]uint64),
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	c.forwardArbiter = arbitration.NewRotating()

	for i := 0; i < b.role.NumChildPorts(); i++ {
		pc := &portComplex{}
		pc.localPort = sim.NewPort(c, b.bufDepth, b.bufDepth,
			fmt.Sprintf("%s.ChildPort%d", name, i))
		pc.rxBuf = sim.NewBuffer(
			fmt.Sprintf("%s.RxBuf%d", name, i), b.bufDepth)
		pc.forwardBuf = sim.NewBuffer(
			fmt.Sprintf("%s.ForwardBuf%d", name, i), b.bufDepth)
		pc.respBuf = sim.NewBuffer(
			fmt.Sprintf("%s.RespBuf%d", name, i), b.bufDepth)

		c.complexes = append(c.complexes, pc)
		c.forwardArbiter.AddBuffer(pc.forwardBuf)
	}

	numBanks := b.role.NumChildPorts() / 2
	for i := 0; i < numBanks; i++ {
		c.stage0 = append(c.stage0, regfile.NewLocal(
			fmt.Sprintf("%s.LocalRF0[%d]", name, i), b.numIDs))
	}
	if b.role.NumLevels() == 2 {
		c.stage1 = regfile.NewLocal(name+".LocalRF1", b.numIDs)
	}

	if !b.role.IsApex() {
		c.ParentPort = sim.NewPort(c, b.bufDepth, b.bufDepth,
			name+".ParentPort")
		c.parentSendBuf = sim.NewBuffer(name+".ParentSendBuf", b.bufDepth)
		c.remote = regfile.NewRemote(name+".RemoteRF",
			b.remoteKind, b.numIDs, b.treeLevels, b.remoteLines)
	}

	return c
}

func (b Builder) mustBeValid(name string) {
	if b.engine == nil {
		log.Panicf("%s: node requires an engine to operate", name)
	}
	if b.freq == 0 {
		log.Panicf("%s: node frequency cannot be 0", name)
	}
	if b.numIDs < 1 {
		log.Panicf("%s: node requires at least 1 barrier ID", name)
	}
	if b.bufDepth < 1 {
		log.Panicf("%s: node FIFO depth must be at least 1", name)
	}
	if b.baseLevel < 0 || b.treeLevels < 1 {
		log.Panicf("%s: invalid level configuration (base %d, tree %d)",
			name, b.baseLevel, b.treeLevels)
	}

	top := b.baseLevel + b.role.NumLevels()
	if b.role.IsApex() {
		if top != b.treeLevels {
			log.Panicf("%s: apex node must terminate the tree (base %d, stages %d, tree %d)",
				name, b.baseLevel, b.role.NumLevels(), b.treeLevels)
		}
	} else if top >= b.treeLevels {
		log.Panicf("%s: non-apex node cannot reach the tree top (base %d, stages %d, tree %d)",
			name, b.baseLevel, b.role.NumLevels(), b.treeLevels)
	}

	if b.remoteKind == fsync.RegCAM && !b.role.IsApex() && b.remoteLines < 1 {
		log.Panicf("%s: CAM remote register file requires at least 1 line", name)
	}
}
