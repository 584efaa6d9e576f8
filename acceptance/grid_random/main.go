package main

import (
	"flag"
	"fmt"
	"math/rand"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/fractalsync/acceptance"
	"github.com/sarchlab/fractalsync/tree"
)

var width = flag.Int("width", 4, "grid width")
var height = flag.Int("height", 4, "grid height")
var numBarriers = flag.Int("num-barriers", 200, "number of barrier rounds")
var seed = flag.Int64("seed", 1, "random seed")

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	test := acceptance.NewTest(*width, *height)
	engine := sim.NewSerialEngine()
	freq := 1 * sim.GHz

	fabric := tree.MakeBuilder().
		WithEngine(engine).
		WithFreq(freq).
		WithGrid(*width, *height).
		Build("Fabric")

	for y := 0; y < *height; y++ {
		for x := 0; x < *width; x++ {
			name := fmt.Sprintf("Agent[%d][%d]", x, y)
			agent := acceptance.NewAgent(engine, freq, name, x, y, test)
			agent.ConnectTree(fabric)
			agent.TickLater()
		}
	}

	test.GenerateBarriers(rng, *numBarriers)

	if err := engine.Run(); err != nil {
		panic(err)
	}

	test.MustHaveReceivedAllWakes()
	fmt.Println("passed!")
}
