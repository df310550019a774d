package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/delaneyj/cellgraph"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	widthsKey     = "widths"
	heightsKey    = "heights"
	iterationsKey = "iterations"
	cpuProfileKey = "cpuprofile"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure cellgraph propagation across chain grids",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  widthsKey,
				Usage: "Comma separated chain counts",
				Value: "1,10,100,1000",
			},
			&cli.StringFlag{
				Name:  heightsKey,
				Usage: "Comma separated chain depths",
				Value: "1,10,100,1000",
			},
			&cli.UintFlag{
				Name:  iterationsKey,
				Usage: "Writes per grid",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  cpuProfileKey,
				Usage: "Write a CPU profile to this path",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	widths, err := parseSizes(cmd.String(widthsKey))
	if err != nil {
		return err
	}
	heights, err := parseSizes(cmd.String(heightsKey))
	if err != nil {
		return err
	}
	iters := int(cmd.Uint(iterationsKey))

	if path := cmd.String(cpuProfileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")

	tbl := table.NewWriter()
	tbl.SetTitle("cellgraph")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range widths {
		for _, h := range heights {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rs := cellgraph.NewReactiveSystem()
			src := cellgraph.Cell(rs, 1)
			for i := 0; i < w; i++ {
				last := cellgraph.Readable[int](src)
				for j := 0; j < h; j++ {
					prev := last
					last = cellgraph.Derived(rs, func() int {
						return prev.Value() + 1
					})
				}

				if _, err := cellgraph.Effect(rs, func() error {
					last.Value()
					return nil
				}); err != nil {
					return err
				}
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				if err := src.Set(src.Value() + 1); err != nil {
					return err
				}
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("propagate: %d * %d", w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
				},
			})
		}
	}

	tbl.Render()
	return nil
}

func parseSizes(csv string) ([]int, error) {
	parts := strings.Split(csv, ",")
	sizes := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", part, err)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}
