package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/delaneyj/cellgraph"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

const (
	scenariosKey = "scenarios"
	repeatsKey   = "repeats"
)

func main() {
	cmd := &cli.Command{
		Name:  "graphbench",
		Usage: "Measure cellgraph across dense layered graphs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  scenariosKey,
				Usage: "HCL scenario file; built-in scenarios run when empty",
			},
			&cli.UintFlag{
				Name:  repeatsKey,
				Usage: "Repeats per scenario, best run wins",
				Value: 5,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

type scenarioFile struct {
	Scenarios []scenario `hcl:"scenario,block"`
}

type scenario struct {
	Name           string  `hcl:"name,label"`
	Width          int     `hcl:"width"`                    // sources per layer
	TotalLayers    int     `hcl:"total_layers"`             // depth of the graph
	StaticFraction float64 `hcl:"static_fraction,optional"` // fraction of nodes with fixed sources
	NSources       int     `hcl:"n_sources"`                // sources feeding each node
	ReadFraction   float64 `hcl:"read_fraction,optional"`   // fraction of leaves read per iteration
	Iterations     int     `hcl:"iterations"`
}

// mirrors the scenario shapes the js-reactivity-benchmark suite runs
var builtinScenarios = []scenario{
	{
		Name:           "simple component",
		Width:          10,
		TotalLayers:    5,
		StaticFraction: 1,
		NSources:       2,
		ReadFraction:   0.2,
		Iterations:     600000,
	},
	{
		Name:           "dynamic component",
		Width:          10,
		TotalLayers:    10,
		StaticFraction: 0.75,
		NSources:       6,
		ReadFraction:   0.2,
		Iterations:     15000,
	},
	{
		Name:           "large web app",
		Width:          1000,
		TotalLayers:    12,
		StaticFraction: 0.95,
		NSources:       4,
		ReadFraction:   1,
		Iterations:     7000,
	},
	{
		Name:           "wide dense",
		Width:          1000,
		TotalLayers:    5,
		StaticFraction: 1,
		NSources:       25,
		ReadFraction:   1,
		Iterations:     3000,
	},
	{
		Name:           "deep",
		Width:          5,
		TotalLayers:    500,
		StaticFraction: 1,
		NSources:       3,
		ReadFraction:   1,
		Iterations:     500,
	},
	{
		Name:           "very dynamic",
		Width:          100,
		TotalLayers:    15,
		StaticFraction: 0.5,
		NSources:       6,
		ReadFraction:   1,
		Iterations:     2000,
	},
}

func run(ctx context.Context, cmd *cli.Command) error {
	log.Print("Starting graphbench, please wait...")
	defer log.Print("Finished graphbench")

	scenarios := builtinScenarios
	if path := cmd.String(scenariosKey); path != "" {
		var file scenarioFile
		if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
			return fmt.Errorf("loading scenarios: %w", err)
		}
		scenarios = file.Scenarios
	}
	repeats := int(cmd.Uint(repeatsKey))

	type result struct {
		sum      int
		count    int64
		duration time.Duration
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{
		"framework", "size", "nSources", "read%", "static%",
		"nTimes", "test", "time", "updateRate", "title",
	})

	for _, cfg := range scenarios {
		log.Printf("Running '%s' scenario", cfg.Name)
		counter := new(int64)
		graph := makeGraph(&cfg, counter)

		runOnce := func() int {
			return runGraph(&cfg, graph)
		}
		// warm up
		runOnce()

		best := result{duration: time.Hour}
		for i := 0; i < repeats; i++ {
			log.Printf("Running '%s' scenario, iteration %d/%d", cfg.Name, i+1, repeats)
			*counter = 0
			start := time.Now()
			sum := runOnce()
			duration := time.Since(start)

			if duration < best.duration {
				best = result{sum: sum, count: *counter, duration: duration}
			}
		}

		makeTitle := func() string {
			sb := strings.Builder{}
			sb.WriteString(fmt.Sprintf("%dx%d %d sources", cfg.Width, cfg.TotalLayers, cfg.NSources))
			if cfg.StaticFraction < 1 {
				sb.WriteString(" dynamic")
			}
			if cfg.ReadFraction < 1 {
				sb.WriteString(fmt.Sprintf(" read %0.2f%%", 100*cfg.ReadFraction))
			}
			return sb.String()
		}

		updateRate := float64(best.count) / (float64(best.duration) / float64(time.Millisecond))

		tbl.Append([]string{
			"cellgraph",
			fmt.Sprintf("%dx%d", cfg.Width, cfg.TotalLayers),
			fmt.Sprint(cfg.NSources),
			fmt.Sprint(cfg.ReadFraction),
			fmt.Sprint(cfg.StaticFraction),
			humanize.Comma(int64(cfg.Iterations)),
			cfg.Name,
			fmt.Sprint(best.duration),
			humanize.Comma(int64(updateRate)),
			makeTitle(),
		})
	}
	tbl.Render()
	return nil
}

type benchGraph struct {
	rs      *cellgraph.ReactiveSystem
	sources []*cellgraph.WritableCell[int]
	layers  [][]*cellgraph.DerivedCell[int]
}

// makeGraph builds width sources and totalLayers-1 rows of derived cells on
// top, each reading nSources cells of the row above. A node that misses the
// static fraction reads a changing subset instead, exercising dependency
// re-tracking.
func makeGraph(cfg *scenario, counter *int64) *benchGraph {
	rs := cellgraph.NewReactiveSystem()
	sources := make([]*cellgraph.WritableCell[int], cfg.Width)
	for i := range sources {
		sources[i] = cellgraph.Cell(rs, i)
	}

	graph := &benchGraph{rs: rs, sources: sources}

	random := rand.New(rand.NewSource(0))
	prevRow := make([]cellgraph.Readable[int], len(sources))
	for i, src := range sources {
		prevRow[i] = src
	}

	for l := 0; l < cfg.TotalLayers-1; l++ {
		row := makeRow(rs, prevRow, cfg, counter, random)
		graph.layers = append(graph.layers, row)
		prevRow = prevRow[:0]
		for _, r := range row {
			prevRow = append(prevRow, r)
		}
	}
	return graph
}

func makeRow(
	rs *cellgraph.ReactiveSystem,
	above []cellgraph.Readable[int],
	cfg *scenario,
	counter *int64,
	random *rand.Rand,
) []*cellgraph.DerivedCell[int] {
	row := make([]*cellgraph.DerivedCell[int], len(above))

	for myDex := range above {
		mySources := make([]cellgraph.Readable[int], 0, cfg.NSources)
		for sourceDex := 0; sourceDex < cfg.NSources; sourceDex++ {
			x := (myDex + sourceDex) % len(above)
			mySources = append(mySources, above[x])
		}

		static := random.Float64() < cfg.StaticFraction
		if static {
			row[myDex] = cellgraph.Derived(rs, func() int {
				*counter++
				sum := 0
				for _, source := range mySources {
					sum += source.Value()
				}
				return sum
			})
		} else {
			first := mySources[0]
			tail := mySources[1:]
			row[myDex] = cellgraph.Derived(rs, func() int {
				*counter++
				sum := first.Value()
				shouldDrop := sum&0x1 > 0
				dropDex := sum % len(tail)

				for i := 0; i < len(tail); i++ {
					if shouldDrop && i == dropDex {
						continue
					}
					sum += tail[i].Value()
				}
				return sum
			})
		}
	}

	return row
}

// runGraph writes one source and reads a fixed subset of the leaves, per
// iteration. Returns the final sum over the read leaves.
func runGraph(cfg *scenario, graph *benchGraph) int {
	random := rand.New(rand.NewSource(0))
	leaves := graph.layers[len(graph.layers)-1]
	skipCount := int(math.Round(float64(len(leaves)) * (1 - cfg.ReadFraction)))
	readLeaves := removeElems(leaves, skipCount, random)

	for i := 0; i < cfg.Iterations; i++ {
		sourceDex := i % len(graph.sources)
		if err := graph.sources[sourceDex].Set(i + sourceDex); err != nil {
			log.Panic(err)
		}

		for _, leaf := range readLeaves {
			leaf.Value()
		}
	}

	sum := 0
	for _, leaf := range readLeaves {
		sum += leaf.Value()
	}
	return sum
}

func removeElems[T any](src []T, rmCount int, random *rand.Rand) []T {
	copyWithRemovals := make([]T, len(src))
	copy(copyWithRemovals, src)
	for i := 0; i < rmCount; i++ {
		rmDex := random.Intn(len(copyWithRemovals))
		copyWithRemovals[rmDex] = copyWithRemovals[len(copyWithRemovals)-1]
		copyWithRemovals = copyWithRemovals[:len(copyWithRemovals)-1]
	}
	return copyWithRemovals
}
