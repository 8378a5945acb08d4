// Package addressing splits byte addresses into the tag, set index, and block
// offset fields of a set-associative cache.
package addressing

import (
	"fmt"
	"math/bits"
)

// GeometryError reports a cache geometry that cannot be decoded with plain
// bit masks.
type GeometryError struct {
	Field string
	Value uint64
	Rule  string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("invalid cache geometry: %s=%d %s",
		e.Field, e.Value, e.Rule)
}

// Fields is the result of decoding one address.
type Fields struct {
	Tag         uint64
	SetIndex    uint64
	BlockOffset uint64
}

// A Decoder decodes addresses for a fixed geometry.
type Decoder struct {
	boSize       uint
	boMask       uint64
	setIndexSize uint
	setIndexMask uint64
}

// NewDecoder creates a decoder for caches with lineSize-byte lines organized
// in numSets sets. Both values must be exact powers of two.
func NewDecoder(lineSize, numSets uint64) (Decoder, error) {
	boSize, err := exactLog2("line_size", lineSize)
	if err != nil {
		return Decoder{}, err
	}

	setIndexSize, err := exactLog2("num_sets", numSets)
	if err != nil {
		return Decoder{}, err
	}

	d := Decoder{
		boSize:       boSize,
		boMask:       (uint64(1) << boSize) - 1,
		setIndexSize: setIndexSize,
		setIndexMask: (uint64(1) << setIndexSize) - 1,
	}

	return d, nil
}

// BlockOffsetBits returns the width of the block offset field.
func (d Decoder) BlockOffsetBits() uint {
	return d.boSize
}

// SetIndexBits returns the width of the set index field.
func (d Decoder) SetIndexBits() uint {
	return d.setIndexSize
}

// TagShift returns how far an address is shifted right to obtain the tag.
func (d Decoder) TagShift() uint {
	return d.boSize + d.setIndexSize
}

// Decode splits an address into its fields.
func (d Decoder) Decode(addr uint64) Fields {
	return Fields{
		Tag:         addr >> d.TagShift(),
		SetIndex:    (addr >> d.boSize) & d.setIndexMask,
		BlockOffset: addr & d.boMask,
	}
}

func exactLog2(field string, v uint64) (uint, error) {
	if v == 0 || v&(v-1) != 0 {
		return 0, &GeometryError{
			Field: field,
			Value: v,
			Rule:  "must be a power of two",
		}
	}

	return uint(bits.TrailingZeros64(v)), nil
}
