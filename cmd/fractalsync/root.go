package main

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/akita/v4/datarecording"
	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"

	"github.com/sarchlab/fractalsync/acceptance"
	"github.com/sarchlab/fractalsync/recording"
	"github.com/sarchlab/fractalsync/tree"
)

var rootCmd = &cobra.Command{
	Use:   "fractalsync",
	Short: "Simulate a fractal synchronization tree over a compute-unit grid",
	Long: `fractalsync builds the synchronization tree of a rectangular ` +
		`compute-unit grid, drives randomized barrier rounds through it, and ` +
		`checks that every participant is woken exactly once.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().Int("width", 4, "grid width, a power of two")
	rootCmd.Flags().Int("height", 4, "grid height, a power of two")
	rootCmd.Flags().Int("num-barriers", 200, "number of barrier rounds")
	rootCmd.Flags().Int64("seed", 1, "random seed")
	rootCmd.Flags().String("record", "",
		"record barrier resolutions into an SQLite file at the given path")
	rootCmd.Flags().Bool("monitor", false,
		"serve the simulation state monitor over HTTP")
	rootCmd.Flags().Bool("fall-through", false,
		"use fall-through FIFO timing in every node")
}

func run(cmd *cobra.Command, _ []string) error {
	width := mustGetInt(cmd, "width")
	height := mustGetInt(cmd, "height")
	numBarriers := mustGetInt(cmd, "num-barriers")
	seed, _ := cmd.Flags().GetInt64("seed")
	recordPath, _ := cmd.Flags().GetString("record")
	useMonitor, _ := cmd.Flags().GetBool("monitor")
	fallThrough, _ := cmd.Flags().GetBool("fall-through")

	engine := sim.NewSerialEngine()
	freq := 1 * sim.GHz

	var monitor *monitoring.Monitor
	if useMonitor {
		monitor = monitoring.NewMonitor()
		monitor.RegisterEngine(engine)
	}

	fabric := tree.MakeBuilder().
		WithEngine(engine).
		WithFreq(freq).
		WithGrid(width, height).
		WithFallThroughFIFOs(fallThrough).
		Build("Fabric")

	if recordPath != "" {
		writer := datarecording.NewSQLiteWriter(recordPath)
		writer.Init()

		tracer := recording.NewBarrierTracer(writer)
		for _, n := range fabric.Nodes() {
			recording.Collect(n, tracer)
		}
	}

	test := acceptance.NewTest(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			name := fmt.Sprintf("Agent[%d][%d]", x, y)
			agent := acceptance.NewAgent(engine, freq, name, x, y, test)
			agent.ConnectTree(fabric)
			agent.TickLater()

			if monitor != nil {
				monitor.RegisterComponent(agent)
			}
		}
	}

	if monitor != nil {
		for _, n := range fabric.Nodes() {
			monitor.RegisterComponent(n)
		}
		monitor.StartServer()
	}

	rng := rand.New(rand.NewSource(seed))
	test.GenerateBarriers(rng, numBarriers)

	if err := engine.Run(); err != nil {
		return err
	}

	test.MustHaveReceivedAllWakes()
	fmt.Printf("%d barriers completed, %d wakes delivered\n",
		numBarriers, test.NumWakesReceived())

	return nil
}

func mustGetInt(cmd *cobra.Command, name string) int {
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(err)
	}

	return v
}
