package report

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rowpressure/analysis/overhead"
	"github.com/sarchlab/rowpressure/mem/dram/rowcounter"
)

// LogSink logs every window and the hottest rows.
type LogSink struct {
	logger *logrus.Entry
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *logrus.Entry) *LogSink {
	return &LogSink{logger: logger}
}

// Window logs one window at info level.
func (s *LogSink) Window(trace string, r overhead.WindowReport) error {
	s.logger.WithFields(logrus.Fields{
		"trace":           trace,
		"window":          r.WindowID,
		"events":          r.NumEvents,
		"extra_refreshes": r.ExtraRefreshes,
		"hot_rows":        r.HotRows,
		"duration_ms":     float64(r.Duration) / 1e9,
	}).Infof("real_overhead: %.2f%% worst_case: %.2f%%",
		r.RealisticOverhead, r.WorstCaseOverhead)

	return nil
}

// HotRows logs the rows at debug level.
func (s *LogSink) HotRows(trace string, rows []rowcounter.RowCount) error {
	for i, r := range rows {
		s.logger.WithFields(logrus.Fields{
			"trace": trace,
			"rank":  i + 1,
			"row":   r.Row,
			"count": r.Count,
		}).Debug("hot row")
	}

	return nil
}

// Flush does nothing.
func (s *LogSink) Flush() error {
	return nil
}
