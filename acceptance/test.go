package acceptance

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/sarchlab/fractalsync/fsync"
	"github.com/sarchlab/fractalsync/reqgen"
)

type expectedWake struct {
	barrierID int
	level     int
	err       bool

	round *barrierRound
}

// A roundKey names the node a barrier round resolves at, together with
// its barrier id. Two rounds with the same key merge into one
// register-file entry if they are in flight together.
type roundKey struct {
	level  int
	nx, ny int
	id     int
}

// A barrierRound is one queued barrier. Rounds sharing a key are
// chained and released one at a time, once all wakes of the previous
// round came back.
type barrierRound struct {
	key    roundKey
	agents []*Agent
	reqs   []*fsync.SyncReq
	wants  []expectedWake
	wakes  int
	next   *barrierRound
}

// Test is a test case driving barriers through a synchronization
// fabric.
type Test struct {
	gen *reqgen.Generator

	agents []*Agent
	byPos  map[[2]int]*Agent

	// expected holds, per agent, the wakes still owed to it, in issue
	// order. An agent blocks on each barrier, so its wakes arrive in
	// order.
	expected map[*Agent][]expectedWake

	// tails holds, per round key, the last round of the chain.
	tails map[roundKey]*barrierRound

	numExpected int
	numReceived int
}

// NewTest creates a test for a width x height compute-unit grid.
func NewTest(width, height int) *Test {
	return &Test{
		gen:      reqgen.NewGenerator(width, height, fsync.Horizontal),
		byPos:    make(map[[2]int]*Agent),
		expected: make(map[*Agent][]expectedWake),
		tails:    make(map[roundKey]*barrierRound),
	}
}

// RegisterAgent adds an agent to the test.
func (t *Test) RegisterAgent(agent *Agent) {
	t.agents = append(t.agents, agent)
	t.byPos[[2]int{agent.X, agent.Y}] = agent
}

// Agents returns the registered agents.
func (t *Test) Agents() []*Agent {
	return t.agents
}

// AddBarrier queues one barrier over the agents at the given grid
// positions. Every named agent sends one request and is owed one wake
// at the barrier's resolution level.
func (t *Test) AddBarrier(positions ...[2]int) {
	cus := make([]*reqgen.CU, len(positions))
	agents := make([]*Agent, len(positions))

	for i, pos := range positions {
		agent, found := t.byPos[pos]
		if !found {
			panic(fmt.Sprintf("no agent at (%d, %d)", pos[0], pos[1]))
		}

		agents[i] = agent
		cus[i] = &reqgen.CU{ID: i, X: pos[0], Y: pos[1]}
	}

	if !t.gen.Generate(cus) {
		panic("barrier set is degenerate")
	}

	r := &barrierRound{key: t.keyOf(cus)}
	for i, cu := range cus {
		req := fsync.SyncReqBuilder{}.
			WithAggregate(cu.Req.Aggregate).
			WithBarrierID(cu.Req.BarrierID).
			Build()

		r.agents = append(r.agents, agents[i])
		r.reqs = append(r.reqs, req)
		r.wants = append(r.wants, expectedWake{
			barrierID: cu.Req.BarrierID,
			level:     cu.Req.Aggregate.Levels() - 1,
			round:     r,
		})
		t.numExpected++
	}
	r.wakes = len(cus)

	if tail := t.tails[r.key]; tail != nil {
		tail.next = r
		t.tails[r.key] = r
		return
	}

	t.tails[r.key] = r
	t.release(r)
}

// keyOf derives the round key of a generated barrier. Neighbor pairs
// resolve at the pair node between their two positions, everything
// else at a tree node named by the resolver.
func (t *Test) keyOf(cus []*reqgen.CU) roundKey {
	first := cus[0]

	if first.Req.Node == reqgen.NodeNeighbor {
		x, y := first.X, first.Y
		if cus[1].X < x {
			x = cus[1].X
		}
		if cus[1].Y < y {
			y = cus[1].Y
		}
		return roundKey{level: -1, nx: x, ny: y, id: first.Req.BarrierID}
	}

	level, nx, ny := t.gen.Resolver(first.X, first.Y, first.Req)
	return roundKey{level: level, nx: nx, ny: ny, id: first.Req.BarrierID}
}

// release hands the round's requests to its agents.
func (t *Test) release(r *barrierRound) {
	for i, agent := range r.agents {
		agent.toSend = append(agent.toSend, r.reqs[i])
		t.expected[agent] = append(t.expected[agent], r.wants[i])
		agent.TickLater()
	}
}

// completeRound releases the next round chained on the same key, if
// any.
func (t *Test) completeRound(r *barrierRound) {
	if r.next != nil {
		t.release(r.next)
		return
	}

	if t.tails[r.key] == r {
		delete(t.tails, r.key)
	}
}

// GenerateBarriers queues n rounds of barriers over random subsets of
// the registered agents. Neighbor-pair shaped sets are re-rolled since
// they resolve outside the tree.
func (t *Test) GenerateBarriers(rng *rand.Rand, n int) {
	for i := 0; i < n; i++ {
		positions := t.randomSubset(rng)

		cus := make([]*reqgen.CU, len(positions))
		for j, pos := range positions {
			cus[j] = &reqgen.CU{ID: j, X: pos[0], Y: pos[1]}
		}

		if !t.gen.Generate(cus) || cus[0].Req.Node == reqgen.NodeNeighbor {
			i--
			continue
		}

		t.AddBarrier(positions...)
	}
}

func (t *Test) randomSubset(rng *rand.Rand) [][2]int {
	var positions [][2]int
	for _, agent := range t.agents {
		if rng.Intn(2) == 1 {
			positions = append(positions, [2]int{agent.X, agent.Y})
		}
	}

	if len(positions) < 2 {
		a := t.agents[rng.Intn(len(t.agents))]
		b := t.agents[rng.Intn(len(t.agents))]
		for b == a {
			b = t.agents[rng.Intn(len(t.agents))]
		}
		positions = [][2]int{{a.X, a.Y}, {b.X, b.Y}}
	}

	return positions
}

// receiveWake checks a wake against the head of the agent's owed
// queue.
func (t *Test) receiveWake(agent *Agent, rsp *fsync.SyncRsp) {
	queue := t.expected[agent]
	if len(queue) == 0 {
		panic(fmt.Sprintf("%s: wake for barrier %d was never requested",
			agent.Name(), rsp.BarrierID))
	}

	want := queue[0]
	if rsp.BarrierID != want.barrierID ||
		rsp.Level != want.level ||
		rsp.Err != want.err {
		panic(fmt.Sprintf(
			"%s: woke for barrier %d at level %d (err %t), "+
				"expected barrier %d at level %d (err %t)",
			agent.Name(), rsp.BarrierID, rsp.Level, rsp.Err,
			want.barrierID, want.level, want.err))
	}

	t.expected[agent] = queue[1:]
	t.numReceived++

	want.round.wakes--
	if want.round.wakes == 0 {
		t.completeRound(want.round)
	}
}

// MustHaveReceivedAllWakes asserts that every owed wake arrived.
func (t *Test) MustHaveReceivedAllWakes() {
	if t.numReceived == t.numExpected {
		return
	}

	for _, agent := range t.agents {
		for _, want := range t.expected[agent] {
			log.Printf("%s: still owed wake for barrier %d at level %d\n",
				agent.Name(), want.barrierID, want.level)
		}
	}

	panic("some wakes never arrived")
}

// NumWakesReceived returns how many wakes arrived so far.
func (t *Test) NumWakesReceived() int {
	return t.numReceived
}
