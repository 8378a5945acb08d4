package cache

import (
	"slices"

	"github.com/sarchlab/rowpressure/mem/addressing"
	"github.com/sarchlab/rowpressure/mem/cache/internal/tagging"
	"github.com/sarchlab/rowpressure/sim"
)

// Builder can build caches.
type Builder struct {
	byteSize         uint64
	wayAssociativity uint64
	lineSize         uint64
	victimFinder     tagging.VictimFinder
	hooks            []sim.Hook
}

// MakeBuilder creates a builder with the default geometry: 32 KiB, 8-way, 8-byte
// lines.
func MakeBuilder() Builder {
	return Builder{
		byteSize:         32 * 1024,
		wayAssociativity: 8,
		lineSize:         8,
	}
}

// WithByteSize sets the capacity of the cache in bytes.
func (b Builder) WithByteSize(byteSize uint64) Builder {
	b.byteSize = byteSize
	return b
}

// WithWayAssociativity sets the number of ways per set.
func (b Builder) WithWayAssociativity(wayAssociativity uint64) Builder {
	b.wayAssociativity = wayAssociativity
	return b
}

// WithLineSize sets the size of a line in bytes.
func (b Builder) WithLineSize(lineSize uint64) Builder {
	b.lineSize = lineSize
	return b
}

// WithVictimFinder replaces the default LRU replacement policy.
func (b Builder) WithVictimFinder(vf tagging.VictimFinder) Builder {
	b.victimFinder = vf
	return b
}

// WithHook registers a hook on the cache that is being built.
func (b Builder) WithHook(hook sim.Hook) Builder {
	b.hooks = append(slices.Clip(b.hooks), hook)
	return b
}

// Build creates a cache with all lines invalid. It fails with a
// *addressing.GeometryError if the geometry cannot be decoded with bit masks.
func (b Builder) Build() (*Cache, error) {
	err := b.checkGeometry()
	if err != nil {
		return nil, err
	}

	numLines := b.byteSize / b.lineSize
	numSets := numLines / b.wayAssociativity

	decoder, err := addressing.NewDecoder(b.lineSize, numSets)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		HookableBase: sim.NewHookableBase(),
		byteSize:     b.byteSize,
		lineSize:     b.lineSize,
		numWays:      b.wayAssociativity,
		numSets:      numSets,
		tags: tagging.NewTagArray(
			int(numSets), int(b.wayAssociativity), decoder),
		victimFinder: tagging.NewLRUVictimFinder(),
	}

	if b.victimFinder != nil {
		c.victimFinder = b.victimFinder
	}

	for _, h := range b.hooks {
		c.AcceptHook(h)
	}

	return c, nil
}

// MustBuild is like Build but panics on an invalid geometry.
func (b Builder) MustBuild() *Cache {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}

	return c
}

func (b Builder) checkGeometry() error {
	switch {
	case b.lineSize == 0:
		return &addressing.GeometryError{
			Field: "line_size", Value: b.lineSize, Rule: "must be positive"}
	case b.lineSize%2 != 0:
		return &addressing.GeometryError{
			Field: "line_size", Value: b.lineSize, Rule: "must be even"}
	case b.wayAssociativity == 0:
		return &addressing.GeometryError{
			Field: "set_assoc", Value: 0, Rule: "must be positive"}
	case b.byteSize%b.lineSize != 0:
		return &addressing.GeometryError{
			Field: "size", Value: b.byteSize,
			Rule: "must be divisible by line_size"}
	case b.byteSize%b.wayAssociativity != 0:
		return &addressing.GeometryError{
			Field: "size", Value: b.byteSize,
			Rule: "must be divisible by set_assoc"}
	case (b.byteSize/b.lineSize)%b.wayAssociativity != 0:
		return &addressing.GeometryError{
			Field: "set_assoc", Value: b.wayAssociativity,
			Rule: "must divide the number of lines"}
	}

	return nil
}
