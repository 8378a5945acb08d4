package trace

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const maxLineLength = 1 << 20

// A Reader yields the events of a log in file order. Lines that the parser
// does not accept are skipped and counted.
type Reader struct {
	scanner *bufio.Scanner
	parser  *Parser
	closer  io.Closer

	lines   uint64
	skipped uint64
}

// NewReader creates a reader on top of r.
func NewReader(r io.Reader, parser *Parser) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	return &Reader{
		scanner: s,
		parser:  parser,
	}
}

// Open creates a reader over a log file. The caller must Close it.
func Open(path string, parser *Parser) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening trace %s", path)
	}

	r := NewReader(f, parser)
	r.closer = f

	return r, nil
}

// Next returns the next event. It returns io.EOF after the last one.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.lines++

		e, ok := r.parser.Parse(r.scanner.Text())
		if ok {
			return e, nil
		}

		r.skipped++
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, errors.Wrapf(err, "reading trace at line %d",
			r.lines+1)
	}

	return Event{}, io.EOF
}

// Lines returns the number of lines consumed so far.
func (r *Reader) Lines() uint64 {
	return r.lines
}

// Skipped returns the number of lines that did not produce an event.
func (r *Reader) Skipped() uint64 {
	return r.skipped
}

// Close releases the file opened by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}

	return r.closer.Close()
}

// BenchmarkName derives the benchmark name from a trace file name, which is
// everything before the first underscore.
func BenchmarkName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	name, _, _ := strings.Cut(base, "_")

	return name
}
