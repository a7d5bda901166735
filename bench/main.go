// Command bench runs trees of sub-orchestrations and activities against a backend and reports timings.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/bench/internal"
	"github.com/cschleiden/go-orchestrations/client"
	"github.com/cschleiden/go-orchestrations/internal/config"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
	"github.com/cschleiden/go-orchestrations/internal/metrics"
	"github.com/cschleiden/go-orchestrations/worker"
)

type Bench struct {
	Backend     string        `help:"Backend to use (memory, sqlite, postgres, mysql, redis, mongo)." default:"memory"`
	Config      string        `help:"Path to a YAML configuration file for backend connection settings." type:"path"`
	Monoprocess bool          `help:"Wrap the backend to signal pollers in this process directly."`
	Timeout     time.Duration `help:"Timeout for the benchmark run." default:"30s"`
	Runs        int           `help:"Number of root orchestrations to start." default:"1"`
	Depth       int           `help:"Depth of mid orchestrations." default:"2"`
	FanOut      int           `name:"fanout" help:"Number of sub-orchestrations per root/mid orchestration." default:"2"`
	LeafFanOut  int           `name:"leaffanout" help:"Number of leaf orchestrations per mid orchestration." default:"2"`
	Activities  int           `help:"Number of activities per leaf orchestration." default:"2"`
	ResultSize  int           `name:"resultsize" help:"Size of activity result payload in bytes." default:"100"`
	Format      string        `help:"Output format." enum:"text,csv" default:"text"`
	CacheSize   int           `name:"cachesize" help:"Size of the orchestration executor cache." default:"128"`
}

func main() {
	var cli Bench
	kctx := kong.Parse(&cli, kong.Name("bench"), kong.UsageOnError())
	kctx.FatalIfErrorf(cli.Run(os.Stdout))
}

func (cli *Bench) Run(out io.Writer) error {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(cli.Timeout).Add(time.Second*5))
	defer cancel()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	cfg.Backend.Type = cli.Backend
	cfg.Backend.Monoprocess = cli.Monoprocess
	if cli.Backend == "sqlite" && cli.Config == "" {
		cfg.Backend.SQLite.Path = ""
	}

	mm := metrics.NewRecorder()
	b, err := cfg.Backend.OpenBackend(backend.WithLogger(slog.New(slog.DiscardHandler)), backend.WithMetrics(mm))
	if err != nil {
		return err
	}
	defer b.Close()

	wo := worker.DefaultOptions
	wo.ExecutorCacheSize = cli.CacheSize
	wo.OrchestrationPollingInterval = 10 * time.Millisecond
	wo.ActivityPollingInterval = 10 * time.Millisecond
	wo.TimerPollingInterval = 10 * time.Millisecond

	wctx, stopWorker := context.WithCancel(ctx)
	w := worker.New(b, &wo)

	for _, o := range []any{internal.Root, internal.Mid, internal.Leaf} {
		if err := w.RegisterOrchestrator(o); err != nil {
			stopWorker()
			return err
		}
	}

	if err := w.RegisterActivity(internal.Activity); err != nil {
		stopWorker()
		return err
	}

	if err := w.Start(wctx); err != nil {
		stopWorker()
		return err
	}

	defer func() {
		stopWorker()
		_ = w.WaitForCompletion()
	}()

	c := client.New(b)

	input := &internal.MidInput{
		FanOut: cli.FanOut,
		Depth:  cli.Depth,

		LeafFanOut: cli.LeafFanOut,

		Activities:       cli.Activities,
		PayloadSizeBytes: cli.ResultSize,
	}

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cli.Runs; i++ {
		id, err := c.CreateOrchestrationInstance(ctx, client.InstanceOptions{
			InstanceID: fmt.Sprintf("root-%d", i),
		}, internal.Root, input)
		if err != nil {
			return err
		}

		g.Go(func() error {
			activities, err := client.GetOrchestrationResult[int](gctx, c, id, cli.Timeout)
			if err != nil {
				return fmt.Errorf("orchestration instance %s failed: %w", id, err)
			}

			if expected := internal.ExpectedActivities(input); activities != expected {
				return fmt.Errorf("orchestration instance %s executed %d activities, expected %d", id, activities, expected)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)

	switch cli.Format {
	case "text":
		fmt.Fprintln(out, "Ran", cli.Runs, "root orchestrations in", elapsed.Seconds(), "seconds")
		fmt.Fprintln(out, "Activities executed:", mm.CounterValue(metrickeys.ActivityTaskScheduled))

		snapshot := mm.Snapshot()
		for _, k := range slices.Sorted(maps.Keys(snapshot)) {
			fmt.Fprintf(out, "%s: %d\n", k, snapshot[k])
		}

	case "csv":
		fmt.Fprintf(out,
			"%s,%v,%d,%d,%d,%d,%d,%d\n",
			cli.Backend, elapsed.Seconds(), cli.Runs, cli.Depth, cli.FanOut, cli.LeafFanOut, cli.Activities, cli.ResultSize)
	}

	return nil
}
