// Package reqgen computes the (aggregate, barrier id) request pairs a
// set of compute units must issue so that they all converge on the
// same barrier. It walks the logical synchronization tree top-down,
// marking one aggregate bit per logical level: set when the
// participant set splits across both children of the covering node,
// clear when the level is crossed pass-through.
package reqgen

import (
	"log"

	"github.com/sarchlab/fractalsync/fsync"
)

// NodeKind names the kind of tree node a barrier converges at.
type NodeKind int

const (
	NodeNone NodeKind = iota
	NodeHorizontal
	NodeVertical
	NodeCombined
	NodeNeighbor
)

func (k NodeKind) String() string {
	switch k {
	case NodeHorizontal:
		return "Horizontal"
	case NodeVertical:
		return "Vertical"
	case NodeCombined:
		return "Combined"
	case NodeNeighbor:
		return "Neighbor"
	default:
		return "None"
	}
}

// A Request is the synchronization request one compute unit issues.
type Request struct {
	Aggregate fsync.Aggregate
	BarrierID int
	Node      NodeKind
}

// A CU is one compute unit of the grid.
type CU struct {
	ID   int
	X, Y int

	Req Request
}

// A Generator derives requests for participant sets on one grid.
type Generator struct {
	width  int
	height int

	// dirs and kinds describe the logical levels top-down: the first
	// entry is the level just below the root.
	dirs  []fsync.Direction
	kinds []NodeKind

	defaults fsync.Direction
}

// NewGenerator creates a request generator for a width x height grid.
// defaultDir picks the barrier id when a set converges at a combined
// node, where both directions meet.
func NewGenerator(
	width, height int,
	defaultDir fsync.Direction,
) *Generator {
	plan, err := fsync.PlanGrid(width, height)
	if err != nil {
		log.Panicf("reqgen: %v", err)
	}

	g := &Generator{
		width:    width,
		height:   height,
		defaults: defaultDir,
	}

	for _, spec := range plan.Levels {
		kind := NodeHorizontal
		switch spec.Role {
		case fsync.RoleVertical:
			kind = NodeVertical
		case fsync.RoleCombined, fsync.RoleRoot:
			kind = NodeCombined
		}

		for _, d := range spec.Dirs {
			g.dirs = append([]fsync.Direction{d}, g.dirs...)
			g.kinds = append([]NodeKind{kind}, g.kinds...)
		}
	}

	return g
}

// Generate fills the request of every given compute unit so they all
// synchronize at one barrier. It reports false for degenerate sets: a
// single unit, duplicated positions, or a set that never splits.
// Coordinates are left untouched.
func (g *Generator) Generate(cus []*CU) bool {
	for _, cu := range cus {
		cu.Req = Request{}
	}

	if len(cus) < 2 {
		return false
	}

	if len(cus) == 2 && g.generateNeighborPair(cus[0], cus[1]) {
		return true
	}

	scratch := make([]*CU, len(cus))
	shadow := make([]CU, len(cus))
	for i, cu := range cus {
		shadow[i] = *cu
		scratch[i] = &shadow[i]
	}

	st := &walkState{top: -1}
	ok := g.walk(st, scratch, 0, g.width/2, g.height/2)
	if !ok {
		return false
	}

	id, kind := g.convergence(st)
	for i, cu := range cus {
		cu.Req = Request{
			Aggregate: shadow[i].Req.Aggregate,
			BarrierID: id,
			Node:      kind,
		}
	}

	return true
}

// convergence derives the barrier id and node kind from the topmost
// splitting level. A set that splits along both dimensions of a
// combined node converges two-dimensionally and takes the configured
// default direction's id; a set that splits along only one keeps that
// direction.
func (g *Generator) convergence(st *walkState) (int, NodeKind) {
	dir := g.dirs[st.top]
	kind := g.kinds[st.top]

	if kind == NodeCombined {
		switch {
		case st.both:
			dir = g.defaults
		case dir == fsync.Horizontal:
			kind = NodeHorizontal
		default:
			kind = NodeVertical
		}
	}

	if dir == fsync.Horizontal {
		return 0, kind
	}
	return 1, kind
}

// Resolver returns the absolute logical level a tree request resolves
// at and the coordinate of the resolving node within that level, for
// the unit at grid position (x, y). It does not apply to neighbor
// pair requests, which resolve outside the tree.
func (g *Generator) Resolver(x, y int, req Request) (level, nx, ny int) {
	level = req.Aggregate.Levels() - 1
	n := len(g.dirs)
	for i := 0; i <= level; i++ {
		if g.dirs[n-1-i] == fsync.Horizontal {
			x /= 2
		} else {
			y /= 2
		}
	}

	return level, x, y
}

// generateNeighborPair handles two units one step apart that straddle
// a subtree boundary: their common ancestor is far away, so the
// barrier routes to the dedicated neighbor pair network instead.
func (g *Generator) generateNeighborPair(a, b *CU) bool {
	xDist := absDiff(a.X, b.X)
	yDist := absDiff(a.Y, b.Y)

	if xDist+yDist != 1 {
		return false
	}

	if xDist == 1 {
		if !straddlesBoundary(a.X, b.X) {
			return false
		}
		a.Req = Request{Aggregate: 1, BarrierID: 2, Node: NodeNeighbor}
	} else {
		if !straddlesBoundary(a.Y, b.Y) {
			return false
		}
		a.Req = Request{Aggregate: 1, BarrierID: 3, Node: NodeNeighbor}
	}
	b.Req = a.Req

	return true
}

type walkState struct {
	// top is the topmost logical level (top-down index) at which the
	// set splits; both marks a combined level splitting along both of
	// its dimensions.
	top  int
	both bool
}

// walk marks the aggregate bit of logical level li (top-down) for
// every unit of the group, then descends into the two halves with the
// split dimension's threshold halved.
func (g *Generator) walk(st *walkState, cus []*CU, li, xTh, yTh int) bool {
	if len(cus) == 0 || li >= len(g.dirs) {
		return false
	}

	var low, high []*CU
	nxTh, nyTh := xTh, yTh
	if g.dirs[li] == fsync.Horizontal {
		low, high = splitX(cus, xTh)
		foldX(high, xTh)
		nxTh /= 2
	} else {
		low, high = splitY(cus, yTh)
		foldY(high, yTh)
		nyTh /= 2
	}

	active := len(low) > 0 && len(high) > 0
	for _, cu := range cus {
		cu.Req.Aggregate <<= 1
		if active {
			cu.Req.Aggregate |= 1
		}
	}

	if active && (st.top == -1 || li < st.top) {
		st.top = li
		st.both = false
		if g.kinds[li] == NodeCombined && g.dirs[li] == fsync.Vertical {
			hLow, hHigh := splitX(cus, xTh)
			st.both = len(hLow) > 0 && len(hHigh) > 0
		}
	}

	lowActive := g.walk(st, low, li+1, nxTh, nyTh)
	highActive := g.walk(st, high, li+1, nxTh, nyTh)

	return active || lowActive || highActive
}

func splitX(cus []*CU, th int) (low, high []*CU) {
	for _, cu := range cus {
		if cu.X < th {
			low = append(low, cu)
		} else {
			high = append(high, cu)
		}
	}
	return low, high
}

func splitY(cus []*CU, th int) (low, high []*CU) {
	for _, cu := range cus {
		if cu.Y < th {
			low = append(low, cu)
		} else {
			high = append(high, cu)
		}
	}
	return low, high
}

func foldX(cus []*CU, th int) {
	for _, cu := range cus {
		if cu.X >= th {
			cu.X -= th
		}
	}
}

func foldY(cus []*CU, th int) {
	for _, cu := range cus {
		if cu.Y >= th {
			cu.Y -= th
		}
	}
}

// straddlesBoundary reports whether two adjacent positions sit in
// different subtrees, which is what makes them neighbor-network
// candidates: siblings share a parent one level up.
func straddlesBoundary(a, b int) bool {
	if a < b {
		return a&1 == 1
	}
	return b&1 == 1
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
