package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tags", func() {
	var (
		tags TagArray
	)

	BeforeEach(func() {
		tags = NewTagArray(1024, 4, 64)
	})

	It("should be able to get total size", func() {
		Expect(tags.TotalSize()).To(Equal(uint64(262144)))
	})

	It("should start with invalid blocks", func() {
		set := tags.GetSet(3)

		Expect(set.Blocks).To(HaveLen(4))
		for i, block := range set.Blocks {
			Expect(block.IsValid).To(BeFalse())
			Expect(block.LastAccess).To(BeZero())
			Expect(block.SetID).To(Equal(3))
			Expect(block.WayID).To(Equal(i))
		}
	})

	It("should find a matching tag", func() {
		tags.Update(Block{SetID: 2, WayID: 1, Tag: 0x100, IsValid: true})

		wayID, found := tags.GetSet(2).FindMatchingTag(0x100)

		Expect(found).To(BeTrue())
		Expect(wayID).To(Equal(1))
	})

	It("should not match an invalid block", func() {
		tags.Update(Block{SetID: 2, WayID: 1, Tag: 0x100, IsValid: false})

		_, found := tags.GetSet(2).FindMatchingTag(0x100)

		Expect(found).To(BeFalse())
	})

	It("should not match tag 0 against empty blocks", func() {
		_, found := tags.GetSet(0).FindMatchingTag(0)

		Expect(found).To(BeFalse())
	})

	It("should return a copy on snapshot", func() {
		tags.Update(Block{SetID: 0, WayID: 0, Tag: 0x40, IsValid: true})

		snapshot := tags.Snapshot()
		snapshot[0].Blocks[0].Tag = 0x80

		Expect(tags.GetSet(0).Blocks[0].Tag).To(Equal(uint64(0x40)))
	})

	It("should invalidate everything on reset", func() {
		tags.Update(Block{SetID: 5, WayID: 3, Tag: 0x40, IsValid: true,
			LastAccess: 7})

		tags.Reset()

		Expect(tags.GetSet(5).Blocks[3]).To(Equal(Block{SetID: 5, WayID: 3}))
	})
})

var _ = Describe("LRUVictimFinder", func() {
	var (
		finder *LRUVictimFinder
		set    *Set
	)

	BeforeEach(func() {
		finder = NewLRUVictimFinder()
		set = &Set{Blocks: []Block{
			{WayID: 0}, {WayID: 1}, {WayID: 2}, {WayID: 3},
		}}
	})

	It("should pick the oldest block", func() {
		set.Blocks[0].LastAccess = 5
		set.Blocks[1].LastAccess = 3
		set.Blocks[2].LastAccess = 9
		set.Blocks[3].LastAccess = 4

		Expect(finder.FindVictim(set).WayID).To(Equal(1))
	})

	It("should pick the lowest way on ties", func() {
		set.Blocks[0].LastAccess = 5
		set.Blocks[1].LastAccess = 2
		set.Blocks[2].LastAccess = 2
		set.Blocks[3].LastAccess = 2

		Expect(finder.FindVictim(set).WayID).To(Equal(1))
	})

	It("should pick a valid block stamped at 0 over later empty ways", func() {
		set.Blocks[0] = Block{WayID: 0, Tag: 0x10, IsValid: true}

		Expect(finder.FindVictim(set).WayID).To(Equal(0))
	})
})
