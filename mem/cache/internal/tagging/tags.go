// Package tagging holds the tag storage of the tracking cache.
package tagging

import (
	"github.com/sarchlab/rowpressure/mem/addressing"
)

// A Block is one way of a set. A block that is not valid carries no meaning in
// its other fields.
type Block struct {
	Tag        uint64
	Valid      bool
	Data       uint64
	LastAccess uint64
}

// A Set is a fixed-length group of blocks that a certain address can be stored
// at.
type Set struct {
	Blocks []Block
}

// TagArray stores the blocks of all the sets of a cache.
type TagArray interface {
	// Lookup returns the set ID and, if a valid block holds the tag of the
	// address, its way ID.
	Lookup(addr uint64) (setID int, wayID int, found bool)

	// Decode returns the fields of an address.
	Decode(addr uint64) addressing.Fields

	// GetSet returns the set that an address maps to.
	GetSet(addr uint64) (set *Set, setID int)

	// SetByID returns a set by its index.
	SetByID(setID int) *Set

	// Reset invalidates every block.
	Reset()

	NumSets() int
	NumWays() int
}

// NewTagArray creates a tag array with all blocks invalid.
func NewTagArray(
	numSets int,
	numWays int,
	decoder addressing.Decoder,
) TagArray {
	t := &tagArrayImpl{
		numSets: numSets,
		numWays: numWays,
		decoder: decoder,
	}

	t.Reset()

	return t
}

type tagArrayImpl struct {
	numSets int
	numWays int
	decoder addressing.Decoder
	sets    []Set
}

func (t *tagArrayImpl) NumSets() int {
	return t.numSets
}

func (t *tagArrayImpl) NumWays() int {
	return t.numWays
}

func (t *tagArrayImpl) Decode(addr uint64) addressing.Fields {
	return t.decoder.Decode(addr)
}

func (t *tagArrayImpl) GetSet(addr uint64) (set *Set, setID int) {
	setID = int(t.decoder.Decode(addr).SetIndex)
	set = &t.sets[setID]

	return
}

func (t *tagArrayImpl) SetByID(setID int) *Set {
	return &t.sets[setID]
}

func (t *tagArrayImpl) Lookup(addr uint64) (setID int, wayID int, found bool) {
	fields := t.decoder.Decode(addr)
	setID = int(fields.SetIndex)

	for i, block := range t.sets[setID].Blocks {
		if block.Valid && block.Tag == fields.Tag {
			return setID, i, true
		}
	}

	return setID, 0, false
}

func (t *tagArrayImpl) Reset() {
	if t.sets == nil {
		t.sets = make([]Set, t.numSets)
		for i := range t.sets {
			t.sets[i].Blocks = make([]Block, t.numWays)
		}

		return
	}

	for i := range t.sets {
		clear(t.sets[i].Blocks)
	}
}
