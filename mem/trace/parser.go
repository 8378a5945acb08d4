package trace

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultSideMarker selects requests observed on the memory side of the pipe.
const DefaultSideMarker = "mem_side"

// A Parser turns log lines into events.
type Parser struct {
	pattern *regexp.Regexp
}

// NewParser creates a parser that accepts lines carrying the given side
// marker.
func NewParser(sideMarker string) (*Parser, error) {
	if sideMarker == "" {
		return nil, errors.New("side marker must not be empty")
	}

	p, err := regexp.Compile(
		`^([0-9]+).*` + regexp.QuoteMeta(sideMarker) +
			`.*MEM\s(\w+)\s\[(\w+):(\w+)\]`)
	if err != nil {
		return nil, errors.Wrap(err, "compiling trace pattern")
	}

	return &Parser{pattern: p}, nil
}

// Parse decodes one line. It returns false for lines that do not describe a
// memory-side access.
func (p *Parser) Parse(line string) (Event, bool) {
	m := p.pattern.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}

	ts, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return Event{}, false
	}

	start, ok := parseHex(m[3])
	if !ok {
		return Event{}, false
	}

	end, ok := parseHex(m[4])
	if !ok {
		return Event{}, false
	}

	op := Write
	if strings.Contains(m[2], "Read") {
		op = Read
	}

	return Event{
		Timestamp:    ts,
		StartAddress: start,
		EndAddress:   end,
		Op:           op,
	}, true
}

func parseHex(s string) (uint64, bool) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}
