package report

import (
	"github.com/sarchlab/rowpressure/analysis/overhead"
	"github.com/sarchlab/rowpressure/datarecording"
	"github.com/sarchlab/rowpressure/mem/dram/rowcounter"
)

const (
	windowTable = "window_reports"
	hotRowTable = "hot_rows"
)

type windowEntry struct {
	RunID              string
	Trace              string
	WindowID           uint64
	StartTimestamp     uint64
	Duration           uint64
	NumEvents          uint64
	ReadHits           uint64
	ReadMisses         uint64
	WriteHits          uint64
	WriteMisses        uint64
	WriteEvictions     uint64
	ExtraRefreshes     uint64
	ThresholdRefreshes uint64
	RowsTouched        uint64
	HotRows            uint64
	RealisticOverhead  float64
	WorstCaseOverhead  float64
}

type hotRowEntry struct {
	RunID    string
	Trace    string
	Rank     int
	DRAMRow  uint64
	Accesses uint64
}

// DBSink records windows and hot rows into a database.
type DBSink struct {
	runID    string
	recorder datarecording.DataRecorder
}

// NewDBSink creates the tables and returns a sink tagging every entry with
// runID.
func NewDBSink(
	recorder datarecording.DataRecorder,
	runID string,
) (*DBSink, error) {
	err := recorder.CreateTable(windowTable, windowEntry{})
	if err != nil {
		return nil, err
	}

	err = recorder.CreateTable(hotRowTable, hotRowEntry{})
	if err != nil {
		return nil, err
	}

	return &DBSink{runID: runID, recorder: recorder}, nil
}

// Window records one window.
func (s *DBSink) Window(trace string, r overhead.WindowReport) error {
	return s.recorder.InsertData(windowTable, windowEntry{
		RunID:              s.runID,
		Trace:              trace,
		WindowID:           r.WindowID,
		StartTimestamp:     r.StartTimestamp,
		Duration:           r.Duration,
		NumEvents:          r.NumEvents,
		ReadHits:           r.CacheStats.ReadHits,
		ReadMisses:         r.CacheStats.ReadMisses,
		WriteHits:          r.CacheStats.WriteHits,
		WriteMisses:        r.CacheStats.WriteMisses,
		WriteEvictions:     r.CacheStats.WriteEvictions,
		ExtraRefreshes:     r.ExtraRefreshes,
		ThresholdRefreshes: r.ThresholdRefreshes,
		RowsTouched:        r.RowsTouched,
		HotRows:            r.HotRows,
		RealisticOverhead:  r.RealisticOverhead,
		WorstCaseOverhead:  r.WorstCaseOverhead,
	})
}

// HotRows records the rows of a trace.
func (s *DBSink) HotRows(trace string, rows []rowcounter.RowCount) error {
	for i, r := range rows {
		err := s.recorder.InsertData(hotRowTable, hotRowEntry{
			RunID:    s.runID,
			Trace:    trace,
			Rank:     i + 1,
			DRAMRow:  r.Row,
			Accesses: r.Count,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Flush flushes the recorder.
func (s *DBSink) Flush() error {
	return s.recorder.Flush()
}
