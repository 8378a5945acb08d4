package report

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/rowpressure/analysis/overhead"
	"github.com/sarchlab/rowpressure/mem/dram/rowcounter"
)

// CSVWriter writes windows into <path>_windows.csv and hot rows into
// <path>_hot_rows.csv.
type CSVWriter struct {
	path       string
	windowFile *os.File
	rowFile    *os.File
	closed     bool

	windows    []windowLine
	bufferSize int
}

type windowLine struct {
	trace  string
	report overhead.WindowReport
}

// NewCSVWriter creates a CSVWriter. An empty path picks a unique name.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Init creates the csv files. Existing files are not overwritten.
func (w *CSVWriter) Init() error {
	if w.path == "" {
		w.path = "rowpressure_" + xid.New().String()
	}

	var err error

	w.windowFile, err = createNew(w.path + "_windows.csv")
	if err != nil {
		return err
	}

	w.rowFile, err = createNew(w.path + "_hot_rows.csv")
	if err != nil {
		w.windowFile.Close()
		return err
	}

	err = writeHeaders(w.windowFile, w.rowFile)
	if err != nil {
		w.windowFile.Close()
		w.rowFile.Close()

		return errors.Wrap(err, "writing csv headers")
	}

	atexit.Register(func() { _ = w.Close() })

	return nil
}

func writeHeaders(windowOut, rowOut io.Writer) error {
	_, err := fmt.Fprintf(windowOut,
		"Trace, WindowID, Start, Duration, Events, ReadHits, ReadMisses, "+
			"WriteHits, WriteMisses, WriteEvictions, ExtraRefreshes, "+
			"ThresholdRefreshes, HotRows, RealisticOverhead, WorstCaseOverhead\n")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(rowOut, "Trace, Rank, Row, Count\n")

	return err
}

func createNew(filename string) (*os.File, error) {
	_, err := os.Stat(filename)
	if err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", filename)
	}

	return f, nil
}

// Window buffers one window.
func (w *CSVWriter) Window(trace string, r overhead.WindowReport) error {
	w.windows = append(w.windows, windowLine{trace: trace, report: r})
	if len(w.windows) >= w.bufferSize {
		return w.Flush()
	}

	return nil
}

// HotRows writes the rows of a trace.
func (w *CSVWriter) HotRows(trace string, rows []rowcounter.RowCount) error {
	for i, r := range rows {
		_, err := fmt.Fprintf(w.rowFile, "%s, %d, %d, %d\n",
			trace, i+1, r.Row, r.Count)
		if err != nil {
			return errors.Wrap(err, "writing hot rows")
		}
	}

	return nil
}

// Flush writes the buffered windows.
func (w *CSVWriter) Flush() error {
	for _, l := range w.windows {
		r := l.report
		_, err := fmt.Fprintf(w.windowFile,
			"%s, %d, %d, %d, %d, %d, %d, %d, %d, %d, %d, %d, %d, %.6f, %.6f\n",
			l.trace,
			r.WindowID,
			r.StartTimestamp,
			r.Duration,
			r.NumEvents,
			r.CacheStats.ReadHits,
			r.CacheStats.ReadMisses,
			r.CacheStats.WriteHits,
			r.CacheStats.WriteMisses,
			r.CacheStats.WriteEvictions,
			r.ExtraRefreshes,
			r.ThresholdRefreshes,
			r.HotRows,
			r.RealisticOverhead,
			r.WorstCaseOverhead,
		)
		if err != nil {
			return errors.Wrap(err, "writing windows")
		}
	}

	w.windows = nil

	return nil
}

// Close flushes and closes both files.
func (w *CSVWriter) Close() error {
	if w.closed || w.windowFile == nil {
		return nil
	}

	w.closed = true

	err := w.Flush()
	if err != nil {
		return err
	}

	err = w.windowFile.Close()
	if err != nil {
		return err
	}

	return w.rowFile.Close()
}
