// Package rowcounter keeps one access counter per DRAM row.
package rowcounter

import (
	"fmt"
	"sort"
)

// Reference DRAM organization.
const (
	DefaultDRAMSize     uint64 = 32 << 30
	DefaultRowSize      uint64 = 8 << 10
	DefaultCounterWidth uint   = 8
)

// IndexError reports a row outside of the table.
type IndexError struct {
	Row     uint64
	NumRows uint64
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("row %d out of range [0, %d)", e.Row, e.NumRows)
}

// Config describes the DRAM the table covers.
type Config struct {
	DRAMSize uint64
	RowSize  uint64

	// CounterWidth is the width, in bits, a hardware counter would have. It
	// only sets the default threshold; counters themselves never saturate.
	CounterWidth uint
}

// DefaultConfig returns a 32 GiB DRAM with 8 KiB rows.
func DefaultConfig() Config {
	return Config{
		DRAMSize:     DefaultDRAMSize,
		RowSize:      DefaultRowSize,
		CounterWidth: DefaultCounterWidth,
	}
}

// Validate checks that the organization has at least one row and that the
// counter width is usable.
func (c Config) Validate() error {
	if c.RowSize == 0 || c.DRAMSize < c.RowSize {
		return fmt.Errorf(
			"invalid DRAM organization: size %d, row size %d",
			c.DRAMSize, c.RowSize)
	}

	if c.CounterWidth == 0 || c.CounterWidth > 64 {
		return fmt.Errorf("invalid counter width %d", c.CounterWidth)
	}

	return nil
}

// RowCount is one line of a report.
type RowCount struct {
	Row   uint64
	Count uint64
}

// Table is a dense array of row counters. It is not safe for concurrent use.
type Table struct {
	rowSize  uint64
	width    uint
	counters []uint64
}

// New allocates a table with every counter at zero.
func New(config Config) (*Table, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	t := &Table{
		rowSize:  config.RowSize,
		width:    config.CounterWidth,
		counters: make([]uint64, config.DRAMSize/config.RowSize),
	}

	return t, nil
}

// AddressToRow returns the row that a byte address falls into.
func AddressToRow(addr, rowSize uint64) uint64 {
	return addr / rowSize
}

// AddressToRow returns the row that a byte address falls into.
func (t *Table) AddressToRow(addr uint64) uint64 {
	return AddressToRow(addr, t.rowSize)
}

// NumRows returns the number of counters.
func (t *Table) NumRows() uint64 {
	return uint64(len(t.counters))
}

// RowSize returns the number of bytes in a row.
func (t *Table) RowSize() uint64 {
	return t.rowSize
}

// Contains tells if a row is covered by the table.
func (t *Table) Contains(row uint64) bool {
	return row < t.NumRows()
}

// DefaultThreshold is half of the range of a CounterWidth-bit counter.
func (t *Table) DefaultThreshold() uint64 {
	return uint64(1) << (t.width - 1)
}

// Increment adds one to the counter of a row and returns the new value.
func (t *Table) Increment(row uint64) (uint64, error) {
	if !t.Contains(row) {
		return 0, &IndexError{Row: row, NumRows: t.NumRows()}
	}

	t.counters[row]++

	return t.counters[row], nil
}

// Get returns the counter of a row.
func (t *Table) Get(row uint64) (uint64, error) {
	if !t.Contains(row) {
		return 0, &IndexError{Row: row, NumRows: t.NumRows()}
	}

	return t.counters[row], nil
}

// RowsAtOrAbove returns, in ascending order, every row whose counter is at
// least threshold.
func (t *Table) RowsAtOrAbove(threshold uint64) []uint64 {
	rows := []uint64{}

	for i, c := range t.counters {
		if c >= threshold {
			rows = append(rows, uint64(i))
		}
	}

	return rows
}

// SortedReport lists the rows with a non-zero counter, hottest first. Rows with
// equal counts are listed in ascending order.
func (t *Table) SortedReport() []RowCount {
	report := []RowCount{}

	for i, c := range t.counters {
		if c > 0 {
			report = append(report, RowCount{Row: uint64(i), Count: c})
		}
	}

	SortRowCounts(report)

	return report
}

// Top returns at most n entries of the sorted report.
func (t *Table) Top(n int) []RowCount {
	report := t.SortedReport()
	if n >= 0 && n < len(report) {
		report = report[:n]
	}

	return report
}

// ClearAll sets every counter to zero.
func (t *Table) ClearAll() {
	clear(t.counters)
}

// SortRowCounts orders counts by descending count, then ascending row.
func SortRowCounts(rc []RowCount) {
	sort.Slice(rc, func(i, j int) bool {
		if rc[i].Count != rc[j].Count {
			return rc[i].Count > rc[j].Count
		}

		return rc[i].Row < rc[j].Row
	})
}
