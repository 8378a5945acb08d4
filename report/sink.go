// Package report writes the results of an analysis run.
package report

import (
	"errors"

	"github.com/sarchlab/rowpressure/analysis/overhead"
	"github.com/sarchlab/rowpressure/mem/dram/rowcounter"
)

// A Sink receives the results of one or more traces. Sinks are not safe for
// concurrent use.
type Sink interface {
	// Window is called once per summarized window.
	Window(trace string, r overhead.WindowReport) error

	// HotRows is called once per trace, after its last window.
	HotRows(trace string, rows []rowcounter.RowCount) error

	// Flush makes sure everything received so far is written.
	Flush() error
}

// Multi forwards everything to several sinks.
type Multi []Sink

// Window forwards the report to every sink.
func (m Multi) Window(trace string, r overhead.WindowReport) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Window(trace, r))
	}

	return errors.Join(errs...)
}

// HotRows forwards the rows to every sink.
func (m Multi) HotRows(trace string, rows []rowcounter.RowCount) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.HotRows(trace, rows))
	}

	return errors.Join(errs...)
}

// Flush flushes every sink.
func (m Multi) Flush() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Flush())
	}

	return errors.Join(errs...)
}
