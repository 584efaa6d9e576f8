package main

import (
	"flag"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/fractalsync/acceptance"
	"github.com/sarchlab/fractalsync/tree"
)

var width = flag.Int("width", 8, "grid width")
var height = flag.Int("height", 8, "grid height")
var numRounds = flag.Int("num-rounds", 100, "number of full-grid barriers")

func main() {
	flag.Parse()

	test := acceptance.NewTest(*width, *height)
	engine := sim.NewSerialEngine()
	freq := 1 * sim.GHz

	fabric := tree.MakeBuilder().
		WithEngine(engine).
		WithFreq(freq).
		WithGrid(*width, *height).
		Build("Fabric")

	var all [][2]int
	for y := 0; y < *height; y++ {
		for x := 0; x < *width; x++ {
			name := fmt.Sprintf("Agent[%d][%d]", x, y)
			agent := acceptance.NewAgent(engine, freq, name, x, y, test)
			agent.ConnectTree(fabric)
			agent.TickLater()

			all = append(all, [2]int{x, y})
		}
	}

	for i := 0; i < *numRounds; i++ {
		test.AddBarrier(all...)
	}

	if err := engine.Run(); err != nil {
		panic(err)
	}

	test.MustHaveReceivedAllWakes()
	fmt.Println("passed!")
}
