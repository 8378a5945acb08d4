// Package overhead estimates the extra DRAM refresh time that row-hammer
// mitigation would cost, one refresh window at a time.
package overhead

import (
	"github.com/sarchlab/rowpressure/mem/cache"
	"github.com/sarchlab/rowpressure/mem/dram/rowcounter"
	"github.com/sarchlab/rowpressure/mem/trace"
	"github.com/sarchlab/rowpressure/sim"
)

// HookPosWindowEnd is triggered after a window is summarized and the tracking
// cache is flushed. The item is the WindowReport.
var HookPosWindowEnd = &sim.HookPos{Name: "WindowEnd"}

// Each extra refresh is charged eight DRAM latencies.
const refreshLatencyFactor = 8

// trackedSentinel is the data stored for a row once it is tracked.
const trackedSentinel = 1

// WindowReport summarizes one window that saw at least one event.
type WindowReport struct {
	WindowID          uint64
	ExtraRefreshes    uint64
	RealisticOverhead float64

	// WorstCaseOverhead charges an extra refresh for every RefreshThreshold
	// hits, regardless of the row that was hit. It is relative to the nominal
	// window duration rather than the measured one.
	WorstCaseOverhead float64

	StartTimestamp     uint64
	Duration           uint64
	NumEvents          uint64
	RowsTouched        uint64
	HotRows            uint64
	ThresholdRefreshes uint64
	CacheStats         cache.Stats
}

// An Estimator replays events in timestamp order. It is not safe for
// concurrent use.
type Estimator struct {
	*sim.HookableBase

	config   Config
	cache    *cache.Cache
	counters *rowcounter.Table

	started         bool
	initTimestamp   uint64
	lastTimestamp   uint64
	windowID        uint64
	windowStart     uint64
	numEvents       uint64
	windowRowCounts map[uint64]uint64

	reports []WindowReport
}

// Config returns the model constants.
func (e *Estimator) Config() Config {
	return e.config
}

// Cache returns the tracking cache.
func (e *Estimator) Cache() *cache.Cache {
	return e.cache
}

// Counters returns the row counter table. Counters accumulate over the whole
// trace.
func (e *Estimator) Counters() *rowcounter.Table {
	return e.counters
}

// Reports returns the windows summarized so far.
func (e *Estimator) Reports() []WindowReport {
	return e.reports
}

// Feed processes one event. Crossing into a new window summarizes the
// previous one first.
func (e *Estimator) Feed(evt trace.Event) error {
	if !e.started {
		e.started = true
		e.initTimestamp = evt.Timestamp
		e.lastTimestamp = evt.Timestamp
		e.windowStart = evt.Timestamp
	}

	if evt.Timestamp < e.lastTimestamp {
		return &cache.MonotonicityError{
			Address:    evt.StartAddress,
			Timestamp:  evt.Timestamp,
			LastAccess: e.lastTimestamp,
		}
	}

	row := e.counters.AddressToRow(evt.StartAddress)
	if !e.counters.Contains(row) {
		return &rowcounter.IndexError{Row: row, NumRows: e.counters.NumRows()}
	}

	windowID := (evt.Timestamp - e.initTimestamp) / e.config.WindowDuration
	if windowID != e.windowID {
		e.closeWindow(evt.Timestamp - e.windowStart)
		e.windowID = windowID
		e.windowStart = evt.Timestamp
	}

	err := e.track(row, evt)
	if err != nil {
		return err
	}

	_, err = e.counters.Increment(row)
	if err != nil {
		return err
	}

	e.windowRowCounts[row]++
	e.numEvents++
	e.lastTimestamp = evt.Timestamp

	return nil
}

func (e *Estimator) track(row uint64, evt trace.Event) error {
	if evt.Op != trace.Read {
		e.cache.Write(row, trackedSentinel, evt.Timestamp)
		return nil
	}

	res, err := e.cache.Read(row, evt.Timestamp)
	if err != nil {
		return err
	}

	if !res.IsHit() {
		e.cache.Write(row, trackedSentinel, evt.Timestamp)
	}

	return nil
}

// Finish summarizes the window that is still open. The duration of that window
// is the time between its first and last event, or the full window duration if
// they coincide.
func (e *Estimator) Finish() {
	if e.numEvents == 0 {
		return
	}

	duration := e.lastTimestamp - e.windowStart
	if duration == 0 {
		duration = e.config.WindowDuration
	}

	e.closeWindow(duration)
}

// HotRows returns the n rows with the most accesses over the whole trace. A
// negative n returns all rows that were accessed.
func (e *Estimator) HotRows(n int) []rowcounter.RowCount {
	return e.counters.Top(n)
}

func (e *Estimator) closeWindow(duration uint64) {
	stats := e.cache.Stats()
	extra := stats.ReadMisses + stats.WriteMisses

	var thresholdRefreshes, hotRows uint64
	for _, count := range e.windowRowCounts {
		thresholdRefreshes += count / e.config.RefreshThreshold
		if count >= e.config.RefreshThreshold {
			hotRows++
		}
	}

	hits := float64(stats.ReadHits + stats.WriteHits)
	worstRefreshes := hits/float64(e.config.RefreshThreshold) + float64(extra)

	report := WindowReport{
		WindowID:       e.windowID,
		ExtraRefreshes: extra,
		RealisticOverhead: e.overheadPercent(
			float64(extra+thresholdRefreshes), duration),
		WorstCaseOverhead: e.overheadPercent(
			worstRefreshes, e.config.WindowDuration),
		StartTimestamp:     e.windowStart,
		Duration:           duration,
		NumEvents:          e.numEvents,
		RowsTouched:        uint64(len(e.windowRowCounts)),
		HotRows:            hotRows,
		ThresholdRefreshes: thresholdRefreshes,
		CacheStats:         stats,
	}

	e.cache.Flush()
	clear(e.windowRowCounts)
	e.numEvents = 0

	e.reports = append(e.reports, report)

	e.InvokeHook(sim.HookCtx{
		Domain: e,
		Pos:    HookPosWindowEnd,
		Item:   report,
	})
}

func (e *Estimator) overheadPercent(refreshes float64, duration uint64) float64 {
	return refreshes * float64(e.config.AvgDRAMLatency) / float64(duration) *
		refreshLatencyFactor * 100
}
