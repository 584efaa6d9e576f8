// Package tree assembles FractalSync nodes into the synchronization
// tree of a rectangular compute-unit grid and wires them together with
// direct connections.
package tree

import (
	"fmt"
	"log"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/sim/directconnection"

	"github.com/sarchlab/fractalsync/fsync"
	"github.com/sarchlab/fractalsync/node"
)

// A leafBinding names the node child port a compute unit attaches to.
type leafBinding struct {
	node *node.Comp
	port int
}

// A Tree is the assembled synchronization fabric of one grid.
type Tree struct {
	name   string
	engine sim.Engine
	freq   sim.Freq

	plan   fsync.TopologyPlan
	levels [][]*node.Comp
	leaves []leafBinding
}

// Plan returns the topology plan the tree was built from.
func (t *Tree) Plan() fsync.TopologyPlan {
	return t.plan
}

// Nodes returns every node of the tree, bottom level first.
func (t *Tree) Nodes() []*node.Comp {
	var all []*node.Comp
	for _, lvl := range t.levels {
		all = append(all, lvl...)
	}

	return all
}

// NodesAtLevel returns the nodes of one physical level, ordered
// row-major.
func (t *Tree) NodesAtLevel(i int) []*node.Comp {
	return t.levels[i]
}

// Apex returns the tree's top node.
func (t *Tree) Apex() *node.Comp {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// LeafNode returns the node and child-port index that serve the
// compute unit at grid position (x, y).
func (t *Tree) LeafNode(x, y int) (*node.Comp, int) {
	b := t.leaves[y*t.plan.Width+x]
	return b.node, b.port
}

// ConnectLeaf wires the port of a compute unit into the tree at grid
// position (x, y) and returns the remote name the unit must address
// its requests to.
func (t *Tree) ConnectLeaf(x, y int, port sim.Port) sim.RemotePort {
	b := t.leaves[y*t.plan.Width+x]
	childPort := b.node.ChildPort(b.port)

	conn := directconnection.MakeBuilder().
		WithEngine(t.engine).
		WithFreq(t.freq).
		Build(fmt.Sprintf("%s.LeafConn[%d][%d]", t.name, x, y))
	conn.PlugIn(childPort)
	conn.PlugIn(port)

	b.node.SetChildRemote(b.port, port.AsRemote())

	return childPort.AsRemote()
}

// Builder can help building synchronization trees.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	width       int
	height      int
	numIDs      int
	remoteKind  fsync.RemoteRegKind
	remoteLines int
	bufDepth    int
	fallThrough bool
}

// MakeBuilder returns a new Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:     1 * sim.GHz,
		width:    2,
		height:   2,
		numIDs:   fsync.NumBarrierIDs,
		bufDepth: 2,
	}
}

// WithEngine sets the event engine the tree's nodes use.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the tree's nodes work at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithGrid sets the compute-unit grid dimensions.
func (b Builder) WithGrid(width, height int) Builder {
	b.width = width
	b.height = height
	return b
}

// WithNumBarrierIDs sets how many barrier IDs each node tracks.
func (b Builder) WithNumBarrierIDs(n int) Builder {
	b.numIDs = n
	return b
}

// WithRemoteRegKind selects the remote register-file organization of
// every non-apex node.
func (b Builder) WithRemoteRegKind(kind fsync.RemoteRegKind) Builder {
	b.remoteKind = kind
	return b
}

// WithRemoteLines sets the CAM line count of every non-apex node.
func (b Builder) WithRemoteLines(lines int) Builder {
	b.remoteLines = lines
	return b
}

// WithBufDepth sets the FIFO and link buffer depth used throughout the
// tree.
func (b Builder) WithBufDepth(depth int) Builder {
	b.bufDepth = depth
	return b
}

// WithFallThroughFIFOs selects fall-through FIFO timing for every
// node.
func (b Builder) WithFallThroughFIFOs(fallThrough bool) Builder {
	b.fallThrough = fallThrough
	return b
}

// Build creates the tree.
func (b Builder) Build(name string) *Tree {
	plan, err := fsync.PlanGrid(b.width, b.height)
	if err != nil {
		log.Panicf("%s: %v", name, err)
	}

	t := &Tree{
		name:   name,
		engine: b.engine,
		freq:   b.freq,
		plan:   plan,
		leaves: make([]leafBinding, b.width*b.height),
	}

	treeLevels := plan.LogicalLevels()
	front := make([][]*node.Comp, b.width)
	for x := range front {
		front[x] = make([]*node.Comp, b.height)
	}

	w, h := b.width, b.height
	baseLevel := 0

	for li, spec := range plan.Levels {
		nw, nh := levelDims(w, h, spec.Role)
		var lvl []*node.Comp
		next := make([][]*node.Comp, nw)
		for x := range next {
			next[x] = make([]*node.Comp, nh)
		}

		for ny := 0; ny < nh; ny++ {
			for nx := 0; nx < nw; nx++ {
				n := node.MakeBuilder().
					WithEngine(b.engine).
					WithFreq(b.freq).
					WithRole(spec.Role).
					WithBaseLevel(baseLevel).
					WithTreeLevels(treeLevels).
					WithNumBarrierIDs(b.numIDs).
					WithRemoteRegKind(b.remoteKind).
					WithRemoteLines(b.remoteLines).
					WithBufDepth(b.bufDepth).
					WithFallThroughFIFOs(b.fallThrough).
					Build(fmt.Sprintf("%s.L%d.Node[%d][%d]",
						name, li, nx, ny))

				for k := 0; k < spec.Role.NumChildPorts(); k++ {
					cx, cy := childPos(nx, ny, k, spec.Role)

					if li == 0 {
						t.leaves[cy*b.width+cx] =
							leafBinding{node: n, port: k}
						continue
					}

					t.link(n, k, front[cx][cy])
				}

				lvl = append(lvl, n)
				next[nx][ny] = n
			}
		}

		t.levels = append(t.levels, lvl)
		front = next
		w, h = nw, nh
		baseLevel += spec.Role.NumLevels()
	}

	return t
}

// link wires child port k of an upper node to the parent port of a
// lower node through a dedicated direct connection.
func (t *Tree) link(upper *node.Comp, k int, lower *node.Comp) {
	childPort := upper.ChildPort(k)

	conn := directconnection.MakeBuilder().
		WithEngine(t.engine).
		WithFreq(t.freq).
		Build(fmt.Sprintf("%s.Conn.%s", t.name, lower.Name()))
	conn.PlugIn(childPort)
	conn.PlugIn(lower.ParentPort)

	upper.SetChildRemote(k, lower.ParentPort.AsRemote())
	lower.SetParentRemote(childPort.AsRemote())
}

func levelDims(w, h int, role fsync.Role) (int, int) {
	switch role {
	case fsync.RoleHorizontal:
		return w / 2, h
	case fsync.RoleVertical:
		return w, h / 2
	default:
		return w / 2, h / 2
	}
}

// childPos maps child port k of the node at (nx, ny) to the grid
// position it covers one level down. Combined nodes order their quad
// row-major: ports 0,1 are the lower row, 2,3 the upper.
func childPos(nx, ny, k int, role fsync.Role) (int, int) {
	switch role {
	case fsync.RoleHorizontal:
		return 2*nx + k, ny
	case fsync.RoleVertical:
		return nx, 2*ny + k
	default:
		return 2*nx + k%2, 2*ny + k/2
	}
}
