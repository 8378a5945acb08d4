// Package cache models the small set-associative cache that tracks which DRAM
// rows have already been counted in the current window.
package cache

import (
	"fmt"

	"github.com/sarchlab/rowpressure/mem/cache/internal/tagging"
	"github.com/sarchlab/rowpressure/sim"
)

// Line is one way of a cache set.
type Line = tagging.Block

// HookPosEviction marks that a valid line is about to be replaced. The hook
// item is the evicted Line.
var HookPosEviction = &sim.HookPos{Name: "CacheEviction"}

// MonotonicityError reports a read hit whose timestamp is earlier than the
// last access of the line. It means the trace is replayed out of order.
type MonotonicityError struct {
	Address    uint64
	Timestamp  uint64
	LastAccess uint64
}

func (e *MonotonicityError) Error() string {
	return fmt.Sprintf(
		"timestamps are not monotonically increasing: "+
			"address 0x%x accessed at %d, last access at %d",
		e.Address, e.Timestamp, e.LastAccess)
}

// ReadKind tells a read hit from a read miss.
type ReadKind int

// Possible outcomes of a read.
const (
	ReadMiss ReadKind = iota
	ReadHit
)

// ReadResult is the outcome of a read. Data is only meaningful on a hit.
type ReadResult struct {
	Kind ReadKind
	Data uint64
}

// IsHit returns true if the read found the address.
func (r ReadResult) IsHit() bool {
	return r.Kind == ReadHit
}

// WriteKind classifies how a write was absorbed by the cache.
type WriteKind int

// Possible outcomes of a write.
const (
	WriteHit WriteKind = iota
	WriteInstalledNoEviction
	WriteInstalledWithEviction
)

func (k WriteKind) String() string {
	switch k {
	case WriteHit:
		return "Hit"
	case WriteInstalledNoEviction:
		return "InstalledNoEviction"
	case WriteInstalledWithEviction:
		return "InstalledWithEviction"
	default:
		return fmt.Sprintf("WriteKind(%d)", int(k))
	}
}

// WriteResult is the outcome of a write. Evicted holds the replaced line, as it
// was before the write, when Kind is WriteInstalledWithEviction.
type WriteResult struct {
	Kind    WriteKind
	Evicted Line
}

// Stats are the cumulative counters of a cache since the last flush.
type Stats struct {
	ReadHits       uint64
	ReadMisses     uint64
	WriteHits      uint64
	WriteMisses    uint64
	WriteEvictions uint64
}

// Accesses returns the number of reads and writes counted.
func (s Stats) Accesses() uint64 {
	return s.ReadHits + s.ReadMisses + s.WriteHits + s.WriteMisses
}

// Cache is a set-associative cache with LRU replacement. It is not safe for
// concurrent use.
type Cache struct {
	*sim.HookableBase

	byteSize uint64
	lineSize uint64
	numWays  uint64
	numSets  uint64

	tags         tagging.TagArray
	victimFinder tagging.VictimFinder
	stats        Stats
}

// Size returns the capacity of the cache in bytes.
func (c *Cache) Size() uint64 { return c.byteSize }

// LineSize returns the size of a line in bytes.
func (c *Cache) LineSize() uint64 { return c.lineSize }

// NumWays returns the associativity.
func (c *Cache) NumWays() uint64 { return c.numWays }

// NumSets returns the number of sets.
func (c *Cache) NumSets() uint64 { return c.numSets }

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

// Read looks the address up. A hit refreshes the access time of the line.
func (c *Cache) Read(addr, timestamp uint64) (ReadResult, error) {
	setID, wayID, found := c.tags.Lookup(addr)
	if !found {
		c.stats.ReadMisses++
		return ReadResult{Kind: ReadMiss}, nil
	}

	block := &c.tags.SetByID(setID).Blocks[wayID]
	if block.LastAccess > timestamp {
		return ReadResult{}, &MonotonicityError{
			Address:    addr,
			Timestamp:  timestamp,
			LastAccess: block.LastAccess,
		}
	}

	block.LastAccess = timestamp
	c.stats.ReadHits++

	return ReadResult{Kind: ReadHit, Data: block.Data}, nil
}

// Write stores data at the address. On a miss the line goes into the first
// invalid way, or replaces exactly one LRU victim if the set is full.
func (c *Cache) Write(addr, data, timestamp uint64) WriteResult {
	setID, wayID, found := c.tags.Lookup(addr)
	set := c.tags.SetByID(setID)

	if found {
		block := &set.Blocks[wayID]
		block.Data = data
		block.LastAccess = timestamp
		c.stats.WriteHits++

		return WriteResult{Kind: WriteHit}
	}

	c.stats.WriteMisses++

	victimID := c.victimFinder.FindVictim(set)
	victim := &set.Blocks[victimID]
	result := WriteResult{Kind: WriteInstalledNoEviction}

	if victim.Valid {
		c.stats.WriteEvictions++
		result = WriteResult{Kind: WriteInstalledWithEviction, Evicted: *victim}

		if c.NumHooks() > 0 {
			c.InvokeHook(sim.HookCtx{
				Domain: c,
				Pos:    HookPosEviction,
				Item:   result.Evicted,
				Detail: setID,
			})
		}
	}

	*victim = Line{
		Tag:        c.tags.Decode(addr).Tag,
		Valid:      true,
		Data:       data,
		LastAccess: timestamp,
	}

	return result
}

// Flush invalidates every line and zeroes the counters.
func (c *Cache) Flush() {
	c.tags.Reset()
	c.stats = Stats{}
}

// ValidLines returns the number of valid lines across all sets.
func (c *Cache) ValidLines() int {
	n := 0

	for i := 0; i < c.tags.NumSets(); i++ {
		for _, b := range c.tags.SetByID(i).Blocks {
			if b.Valid {
				n++
			}
		}
	}

	return n
}

// Set returns a copy of the lines of a set.
func (c *Cache) Set(setID int) []Line {
	blocks := c.tags.SetByID(setID).Blocks
	lines := make([]Line, len(blocks))
	copy(lines, blocks)

	return lines
}

// SetIndexOf returns the set that an address maps to.
func (c *Cache) SetIndexOf(addr uint64) int {
	return int(c.tags.Decode(addr).SetIndex)
}
