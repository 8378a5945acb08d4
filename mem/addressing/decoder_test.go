package addressing

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Decoder", func() {
	It("should derive field widths from the geometry", func() {
		d, err := NewDecoder(8, 512)

		Expect(err).NotTo(HaveOccurred())
		Expect(d.BlockOffsetBits()).To(Equal(uint(3)))
		Expect(d.SetIndexBits()).To(Equal(uint(9)))
		Expect(d.TagShift()).To(Equal(uint(12)))
	})

	It("should decode an address", func() {
		d, _ := NewDecoder(8, 512)

		f := d.Decode(0x20000)

		Expect(f.BlockOffset).To(Equal(uint64(0)))
		Expect(f.SetIndex).To(Equal(uint64(0)))
		Expect(f.Tag).To(Equal(uint64(32)))
	})

	It("should decode all three fields", func() {
		d, _ := NewDecoder(4, 2)

		f := d.Decode(0b1101_1_11)

		Expect(f.BlockOffset).To(Equal(uint64(3)))
		Expect(f.SetIndex).To(Equal(uint64(1)))
		Expect(f.Tag).To(Equal(uint64(0b1101)))
	})

	It("should accept a single set", func() {
		d, err := NewDecoder(64, 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Decode(0x1234).SetIndex).To(Equal(uint64(0)))
		Expect(d.Decode(0x1234).Tag).To(Equal(uint64(0x1234 >> 6)))
	})

	DescribeTable("should reject geometries that are not powers of two",
		func(lineSize, numSets uint64, field string) {
			_, err := NewDecoder(lineSize, numSets)

			var geoErr *GeometryError
			Expect(errors.As(err, &geoErr)).To(BeTrue())
			Expect(geoErr.Field).To(Equal(field))
		},
		Entry("line size 12", uint64(12), uint64(4), "line_size"),
		Entry("line size 0", uint64(0), uint64(4), "line_size"),
		Entry("3 sets", uint64(8), uint64(3), "num_sets"),
		Entry("0 sets", uint64(8), uint64(0), "num_sets"),
	)
})
