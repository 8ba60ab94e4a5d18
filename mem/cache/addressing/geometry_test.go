package addressing

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BitWidth", func() {
	DescribeTable("should return the position of the highest set bit",
		func(n uint64, expected int) {
			Expect(BitWidth(n)).To(Equal(expected))
		},
		Entry("zero", uint64(0), 0),
		Entry("one", uint64(1), 1),
		Entry("three", uint64(3), 2),
		Entry("four", uint64(4), 3),
		Entry("63", uint64(63), 6),
		Entry("all ones", ^uint64(0), 64),
	)
})

var _ = Describe("Geometry", func() {
	It("should derive the 16/4/2 layout", func() {
		g, err := NewGeometry(Config{
			TotalBytes:    16,
			LineBytes:     4,
			Associativity: 2,
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(g.AddressWidth).To(Equal(DefaultAddressWidth))
		Expect(g.NumLines).To(Equal(4))
		Expect(g.NumSets).To(Equal(2))
		Expect(g.OffsetBits).To(Equal(2))
		Expect(g.SetIndexBits).To(Equal(1))
		Expect(g.TagBits).To(Equal(13))
		Expect(g.OffsetMask).To(Equal(uint64(0x3)))
		Expect(g.SetIndexMask).To(Equal(uint64(0x1)))
		Expect(g.TagMask).To(Equal(uint64(0xfff8)))
	})

	It("should keep the field widths summing to the address width", func() {
		for _, total := range []int{64, 1024, 16384, 65536} {
			for _, line := range []int{1, 4, 16, 64} {
				for _, ways := range []int{1, 2, 4, 8} {
					if total/line < ways {
						continue
					}

					g, err := NewGeometry(Config{
						TotalBytes:    total,
						LineBytes:     line,
						Associativity: ways,
					})
					Expect(err).ToNot(HaveOccurred())

					Expect(g.OffsetBits + g.SetIndexBits + g.TagBits).
						To(Equal(g.AddressWidth))
					Expect(g.NumSets).To(Equal(g.NumLines / ways))
					Expect(g.TagBits).To(BeNumerically(">=", 0))
				}
			}
		}
	})

	It("should build a 64-bit tag mask", func() {
		g, err := NewGeometry(Config{
			TotalBytes:    32 * 1024,
			LineBytes:     64,
			Associativity: 8,
			AddressWidth:  64,
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(g.SetIndexBits).To(Equal(6))
		Expect(g.TagMask).To(Equal(^uint64(0) &^ 0xfff))
		Expect(g.CheckAddress(^uint64(0))).To(Succeed())
	})

	It("should accept a line size that is not a power of two", func() {
		g, err := NewGeometry(Config{
			TotalBytes:    48,
			LineBytes:     12,
			Associativity: 1,
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(g.NumSets).To(Equal(4))
		Expect(g.OffsetBits).To(Equal(4))
		Expect(g.SetIndexBits).To(Equal(2))
		Expect(g.TagBits).To(Equal(10))
		Expect(g.OffsetMask).To(Equal(uint64(0xf)))
		Expect(g.SetIndexOf(0x0030)).To(Equal(3))
	})

	It("should support a fully associative cache", func() {
		g, err := NewGeometry(Config{
			TotalBytes:    256,
			LineBytes:     16,
			Associativity: 16,
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(g.NumSets).To(Equal(1))
		Expect(g.SetIndexBits).To(Equal(0))
		Expect(g.SetIndexOf(0xffff)).To(Equal(0))
	})

	DescribeTable("should reject invalid configs",
		func(c Config, field string) {
			_, err := NewGeometry(c)

			var cfgErr *ConfigError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Field).To(Equal(field))
		},
		Entry("zero size", Config{0, 4, 1, 16}, "TotalBytes"),
		Entry("negative line", Config{16, -4, 1, 16}, "LineBytes"),
		Entry("zero ways", Config{16, 4, 0, 16}, "Associativity"),
		Entry("line not dividing size", Config{18, 4, 1, 16}, "LineBytes"),
		Entry("ways not dividing lines", Config{16, 4, 3, 16}, "Associativity"),
		Entry("non power of two sets", Config{12, 4, 1, 16}, "Associativity"),
		Entry("width too large", Config{16, 4, 1, 65}, "AddressWidth"),
		Entry("width too small", Config{1 << 20, 64, 1, 16}, "AddressWidth"),
	)

	Context("when decomposing addresses", func() {
		var g Geometry

		BeforeEach(func() {
			var err error
			g, err = NewGeometry(Config{
				TotalBytes:    1024,
				LineBytes:     16,
				Associativity: 4,
			})
			Expect(err).ToNot(HaveOccurred())
		})

		It("should split 0xabcd", func() {
			Expect(g.OffsetOf(0xabcd)).To(Equal(uint64(0xd)))
			Expect(g.SetIndexOf(0xabcd)).To(Equal(0xc))
			Expect(g.TagOf(0xabcd)).To(Equal(uint64(0xab00)))
		})

		It("should reject addresses wider than 16 bits", func() {
			err := g.CheckAddress(0x10000)

			var rangeErr *AddressOutOfRangeError
			Expect(errors.As(err, &rangeErr)).To(BeTrue())
			Expect(rangeErr.AddressWidth).To(Equal(16))
			Expect(g.CheckAddress(0xffff)).To(Succeed())
		})

		It("should print addresses with 4 hex digits", func() {
			Expect(g.HexDigits()).To(Equal(4))
		})
	})
})
