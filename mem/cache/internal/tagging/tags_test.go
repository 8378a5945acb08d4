package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rowpressure/mem/addressing"
)

var _ = Describe("Tags", func() {
	var (
		tags TagArray
	)

	BeforeEach(func() {
		decoder, err := addressing.NewDecoder(64, 1024)
		Expect(err).NotTo(HaveOccurred())

		tags = NewTagArray(1024, 4, decoder)
	})

	It("should start with every block invalid", func() {
		for i := 0; i < tags.NumSets(); i++ {
			set := tags.SetByID(i)
			Expect(set.Blocks).To(HaveLen(4))
			for _, b := range set.Blocks {
				Expect(b.Valid).To(BeFalse())
			}
		}
	})

	It("should get the set of an address", func() {
		set, setID := tags.GetSet(0x10040)

		Expect(setID).To(Equal(1))
		Expect(set).To(BeIdenticalTo(tags.SetByID(1)))
	})

	It("should lookup", func() {
		set, _ := tags.GetSet(0x10040)
		set.Blocks[2] = Block{Tag: tags.Decode(0x10040).Tag, Valid: true}

		setID, wayID, found := tags.Lookup(0x10040)

		Expect(found).To(BeTrue())
		Expect(setID).To(Equal(1))
		Expect(wayID).To(Equal(2))
	})

	It("should not find invalid blocks", func() {
		set, _ := tags.GetSet(0x10040)
		set.Blocks[0] = Block{Tag: tags.Decode(0x10040).Tag, Valid: false}

		_, _, found := tags.Lookup(0x10040)

		Expect(found).To(BeFalse())
	})

	It("should not find a block with another tag", func() {
		set, _ := tags.GetSet(0x10040)
		set.Blocks[0] = Block{Tag: tags.Decode(0x20040).Tag, Valid: true}

		_, _, found := tags.Lookup(0x10040)

		Expect(found).To(BeFalse())
	})

	It("should reset", func() {
		set, _ := tags.GetSet(0x10040)
		set.Blocks[1] = Block{Tag: 1, Valid: true, Data: 7, LastAccess: 9}

		tags.Reset()

		Expect(tags.SetByID(1).Blocks[1]).To(BeZero())
		Expect(tags.SetByID(1).Blocks).To(HaveLen(4))
	})
})
