package overhead

import "fmt"

// Default analysis constants, in trace ticks (1 ps).
const (
	DefaultWindowDuration   uint64 = 64_000_000_000
	DefaultRefreshThreshold uint64 = 250
	DefaultAvgDRAMLatency   uint64 = 25_000
)

// Config holds the constants of the overhead model.
type Config struct {
	// WindowDuration is the length of a refresh window.
	WindowDuration uint64

	// RefreshThreshold is the number of accesses to one row that can be
	// tolerated before an extra refresh is charged.
	RefreshThreshold uint64

	// AvgDRAMLatency is the cost of one extra refresh.
	AvgDRAMLatency uint64
}

// DefaultConfig returns a 64 ms window, a threshold of 250 and a 25 ns DRAM
// latency.
func DefaultConfig() Config {
	return Config{
		WindowDuration:   DefaultWindowDuration,
		RefreshThreshold: DefaultRefreshThreshold,
		AvgDRAMLatency:   DefaultAvgDRAMLatency,
	}
}

// Validate checks that the constants can be used as divisors.
func (c Config) Validate() error {
	if c.WindowDuration == 0 {
		return fmt.Errorf("window duration must be positive")
	}

	if c.RefreshThreshold == 0 {
		return fmt.Errorf("refresh threshold must be positive")
	}

	return nil
}
