package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sarchlab/rowpressure/analysis/batch"
	"github.com/sarchlab/rowpressure/analysis/overhead"
	"github.com/sarchlab/rowpressure/config"
	"github.com/sarchlab/rowpressure/datarecording"
	"github.com/sarchlab/rowpressure/logging"
	"github.com/sarchlab/rowpressure/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [trace files or globs...]",
	Short: "Estimate the refresh overhead of one or more traces.",
	Long: "`analyze` replays every trace with its own estimator, logs one " +
		"line per refresh window, and optionally writes the windows and " +
		"the hottest rows to CSV files and a SQLite database.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return err
		}

		configFile, _ := cmd.Flags().GetString("config")

		c, err := config.Load(v, configFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return analyze(ctx, c, args)
	},
}

// flagKeys maps the flags of analyze to configuration keys.
var flagKeys = map[string]string{
	"window":            "window.duration",
	"refresh-threshold": "window.refresh_threshold",
	"dram-latency":      "window.avg_dram_latency",
	"cache-size":        "cache.size",
	"assoc":             "cache.set_assoc",
	"line-size":         "cache.line_size",
	"parallel":          "parallelism",
	"db":                "output.db",
	"csv":               "output.csv",
	"top":               "output.top_rows",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"side-marker":       "trace.side_marker",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}

	return nil
}

func analyze(ctx context.Context, c *config.Config, patterns []string) error {
	logger := logging.New(c.Log, os.Stderr)
	log := logging.WithComponent(logger, "analyze")

	paths, err := batch.Discover(patterns)
	if err != nil {
		return err
	}

	runID := xid.New().String()

	sink, err := buildSink(c, logger, runID)
	if err != nil {
		return err
	}

	runner, err := batch.MakeBuilder().
		WithEstimatorBuilder(c.EstimatorBuilder()).
		WithSideMarker(c.Trace.SideMarker).
		WithSink(sink).
		WithLogger(logging.WithComponent(logger, "batch")).
		WithParallelism(c.Parallelism).
		WithTopRows(c.Output.TopRows).
		Build()
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"run":    runID,
		"traces": len(paths),
	}).Info("analysis started")

	results := runner.Run(ctx, paths)

	if err := runner.Flush(); err != nil {
		return err
	}

	summarize(log, results)

	failed := batch.Failed(results)
	if len(failed) > 0 {
		return errors.Errorf("%d of %d traces failed", len(failed), len(results))
	}

	return nil
}

func buildSink(
	c *config.Config,
	logger *logrus.Logger,
	runID string,
) (report.Sink, error) {
	sinks := report.Multi{
		report.NewLogSink(logging.WithComponent(logger, "report")),
	}

	if c.Output.CSV != "" {
		w := report.NewCSVWriter(c.Output.CSV)
		if err := w.Init(); err != nil {
			return nil, err
		}

		sinks = append(sinks, w)
	}

	if c.Output.DB != "" {
		recorder, err := datarecording.New(c.Output.DB)
		if err != nil {
			return nil, err
		}

		s, err := report.NewDBSink(recorder, runID)
		if err != nil {
			return nil, err
		}

		sinks = append(sinks, s)
	}

	return sinks, nil
}

func summarize(log *logrus.Entry, results []batch.TraceResult) {
	for _, res := range results {
		if res.Err != nil {
			continue
		}

		var realistic, worst float64
		for _, w := range res.Windows {
			realistic = max(realistic, w.RealisticOverhead)
			worst = max(worst, w.WorstCaseOverhead)
		}

		log.WithFields(logrus.Fields{
			"trace":     res.Path,
			"benchmark": res.Benchmark,
			"windows":   len(res.Windows),
		}).Infof("peak real_overhead: %.2f%% peak worst_case: %.2f%%",
			realistic, worst)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	f := analyzeCmd.Flags()
	f.String("config", "", "Configuration file (default ./rowpressure.yaml)")
	f.Uint64("window", overhead.DefaultWindowDuration,
		"Refresh window duration in ticks")
	f.Uint64("refresh-threshold", overhead.DefaultRefreshThreshold,
		"Accesses to a row that trigger a neighbor refresh")
	f.Uint64("dram-latency", overhead.DefaultAvgDRAMLatency,
		"Average DRAM access latency in ticks")
	f.Uint64("cache-size", 32*1024, "Tracking cache size")
	f.Uint64("assoc", 8, "Tracking cache associativity")
	f.Uint64("line-size", 8, "Tracking cache line size")
	f.Int("parallel", 0, "Traces replayed at the same time (default #CPUs)")
	f.String("db", "",
		"SQLite file to record the results into (.sqlite3 is appended if missing)")
	f.String("csv", "", "Prefix of the CSV files to write the results into")
	f.Int("top", 10, "Hot rows reported per trace, -1 for all")
	f.String("log-level", "info", "Log level: debug, info, warn, or error")
	f.String("log-format", "text", "Log format: text or json")
	f.String("side-marker", "mem_side", "Marker of the replayed trace lines")
}
