// Package batch replays many traces, each through its own estimator, with a
// bounded number of traces in flight.
package batch

import (
	"context"
	"io"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rowpressure/analysis/overhead"
	"github.com/sarchlab/rowpressure/mem/dram/rowcounter"
	"github.com/sarchlab/rowpressure/mem/trace"
	"github.com/sarchlab/rowpressure/report"
	"github.com/sarchlab/rowpressure/sim"
)

// An EventSource yields events in timestamp order and returns io.EOF after the
// last one.
type EventSource interface {
	Next() (trace.Event, error)
}

// TraceResult is the outcome of one trace.
type TraceResult struct {
	Path      string
	Benchmark string
	Windows   []overhead.WindowReport
	HotRows   []rowcounter.RowCount
	Lines     uint64
	Skipped   uint64
	Err       error
}

// Discover expands the patterns into trace paths. Paths are returned in
// pattern order, each only once. A pattern that matches nothing is an error.
func Discover(patterns []string) ([]string, error) {
	var paths []string

	seen := make(map[string]bool)

	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, errors.Wrapf(err, "bad pattern %q", p)
		}

		if len(matches) == 0 {
			return nil, errors.Errorf("no trace matches %q", p)
		}

		for _, m := range matches {
			if seen[m] {
				continue
			}

			seen[m] = true
			paths = append(paths, m)
		}
	}

	return paths, nil
}

// Replay feeds every event of the source to the estimator and closes the last
// window. It stops early, without closing the window, when the context is done
// or an event is rejected.
func Replay(
	ctx context.Context,
	est *overhead.Estimator,
	source EventSource,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		evt, err := source.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return err
		}

		if err := est.Feed(evt); err != nil {
			return err
		}
	}

	est.Finish()

	return nil
}

// A Runner replays traces. Results go to the sink as they are produced.
type Runner struct {
	builder     overhead.Builder
	parser      *trace.Parser
	sink        report.Sink
	log         *logrus.Entry
	parallelism int
	topRows     int

	sinkLock sync.Mutex
}

// Run replays all the traces and returns their results in the order of paths.
// A failed trace does not stop the others.
func (r *Runner) Run(ctx context.Context, paths []string) []TraceResult {
	results := make([]TraceResult, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup

	workers := min(r.parallelism, len(paths))
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				results[i] = r.RunTrace(ctx, paths[i])
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}

	close(jobs)
	wg.Wait()

	return results
}

// RunTrace replays a single trace.
func (r *Runner) RunTrace(ctx context.Context, path string) TraceResult {
	res := TraceResult{
		Path:      path,
		Benchmark: trace.BenchmarkName(path),
	}

	log := r.log.WithFields(logrus.Fields{
		"trace":     path,
		"benchmark": res.Benchmark,
	})
	log.Info("trace started")

	res.Err = r.runTrace(ctx, &res)
	if res.Err != nil {
		log.WithError(res.Err).Error("trace failed")
		return res
	}

	log.WithFields(logrus.Fields{
		"windows": len(res.Windows),
		"lines":   res.Lines,
	}).Info("trace finished")
	log.WithField("skipped", res.Skipped).Debug("skipped lines")

	return res
}

func (r *Runner) runTrace(ctx context.Context, res *TraceResult) error {
	var sinkErr error

	est, err := r.builder.
		WithHook(sim.HookFunc(func(hookCtx sim.HookCtx) {
			if hookCtx.Pos != overhead.HookPosWindowEnd {
				return
			}

			w := hookCtx.Item.(overhead.WindowReport)
			res.Windows = append(res.Windows, w)

			if sinkErr == nil {
				sinkErr = r.toSink(func() error {
					return r.sink.Window(res.Path, w)
				})
			}
		})).
		Build()
	if err != nil {
		return err
	}

	reader, err := trace.Open(res.Path, r.parser)
	if err != nil {
		return err
	}
	defer reader.Close()

	err = Replay(ctx, est, reader)
	res.Lines = reader.Lines()
	res.Skipped = reader.Skipped()

	if err != nil {
		return errors.Wrapf(err, "replaying %s", res.Path)
	}

	if sinkErr != nil {
		return errors.Wrapf(sinkErr, "reporting %s", res.Path)
	}

	res.HotRows = est.HotRows(r.topRows)

	err = r.toSink(func() error {
		return r.sink.HotRows(res.Path, res.HotRows)
	})
	if err != nil {
		return errors.Wrapf(err, "reporting %s", res.Path)
	}

	return nil
}

func (r *Runner) toSink(f func() error) error {
	if r.sink == nil {
		return nil
	}

	r.sinkLock.Lock()
	defer r.sinkLock.Unlock()

	return f()
}

// Flush flushes the sink.
func (r *Runner) Flush() error {
	return r.toSink(func() error { return r.sink.Flush() })
}

// Failed returns the results that carry an error.
func Failed(results []TraceResult) []TraceResult {
	var failed []TraceResult

	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}

	return failed
}

// Builder can build runners.
type Builder struct {
	estimatorBuilder overhead.Builder
	sideMarker       string
	sink             report.Sink
	logger           *logrus.Entry
	parallelism      int
	topRows          int
}

// MakeBuilder creates a builder with default estimators, one worker per CPU,
// and no sink.
func MakeBuilder() Builder {
	return Builder{
		estimatorBuilder: overhead.MakeBuilder(),
		sideMarker:       trace.DefaultSideMarker,
		parallelism:      runtime.NumCPU(),
		topRows:          10,
	}
}

// WithEstimatorBuilder sets how the estimator of each trace is built.
func (b Builder) WithEstimatorBuilder(eb overhead.Builder) Builder {
	b.estimatorBuilder = eb
	return b
}

// WithSideMarker sets the marker of the trace lines that are replayed.
func (b Builder) WithSideMarker(marker string) Builder {
	b.sideMarker = marker
	return b
}

// WithSink sets where results are reported.
func (b Builder) WithSink(sink report.Sink) Builder {
	b.sink = sink
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *logrus.Entry) Builder {
	b.logger = logger
	return b
}

// WithParallelism sets how many traces are replayed at the same time.
func (b Builder) WithParallelism(n int) Builder {
	b.parallelism = n
	return b
}

// WithTopRows sets how many hot rows each trace reports. A negative number
// reports every accessed row.
func (b Builder) WithTopRows(n int) Builder {
	b.topRows = n
	return b
}

// Build creates the runner.
func (b Builder) Build() (*Runner, error) {
	if b.parallelism <= 0 {
		return nil, errors.Errorf("parallelism must be positive, got %d",
			b.parallelism)
	}

	parser, err := trace.NewParser(b.sideMarker)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Runner{
		builder:     b.estimatorBuilder,
		parser:      parser,
		sink:        b.sink,
		log:         logger,
		parallelism: b.parallelism,
		topRows:     b.topRows,
	}, nil
}
