// Package addressing splits memory addresses into the tag, set index, and
// offset fields of a set-associative cache.
package addressing

// DefaultAddressWidth is the number of address bits used when none is
// configured. It matches traces made of 4-digit hexadecimal addresses.
const DefaultAddressWidth = 16

// MaxAddressWidth is the widest address the codec can decompose.
const MaxAddressWidth = 64

// Config holds the user-facing parameters of a cache.
type Config struct {
	TotalBytes    int
	LineBytes     int
	Associativity int
	AddressWidth  int
}

// Geometry is the derived, immutable layout of a cache. Create it with
// NewGeometry.
type Geometry struct {
	TotalBytes    int
	LineBytes     int
	Associativity int
	AddressWidth  int

	NumLines int
	NumSets  int

	OffsetBits   int
	SetIndexBits int
	TagBits      int

	OffsetMask   uint64
	SetIndexMask uint64
	TagMask      uint64
}

// NewGeometry validates the config and computes the field widths and masks.
// A zero AddressWidth selects DefaultAddressWidth.
func NewGeometry(c Config) (Geometry, error) {
	if c.AddressWidth == 0 {
		c.AddressWidth = DefaultAddressWidth
	}

	err := validate(c)
	if err != nil {
		return Geometry{}, err
	}

	g := Geometry{
		TotalBytes:    c.TotalBytes,
		LineBytes:     c.LineBytes,
		Associativity: c.Associativity,
		AddressWidth:  c.AddressWidth,
	}

	g.NumLines = c.TotalBytes / c.LineBytes
	g.NumSets = g.NumLines / c.Associativity

	g.OffsetBits = BitWidth(uint64(c.LineBytes - 1))
	g.SetIndexBits = BitWidth(uint64(g.NumSets - 1))
	g.TagBits = c.AddressWidth - g.OffsetBits - g.SetIndexBits

	if g.TagBits < 0 {
		return Geometry{}, &ConfigError{
			Field:  "AddressWidth",
			Value:  c.AddressWidth,
			Reason: "too narrow for the offset and set index bits",
		}
	}

	g.OffsetMask = lowBits(g.OffsetBits)
	g.SetIndexMask = lowBits(g.SetIndexBits)
	g.TagMask = lowBits(c.AddressWidth) &^ lowBits(g.OffsetBits+g.SetIndexBits)

	return g, nil
}

func validate(c Config) error {
	positive := []struct {
		name  string
		value int
	}{
		{"TotalBytes", c.TotalBytes},
		{"LineBytes", c.LineBytes},
		{"Associativity", c.Associativity},
	}

	for _, p := range positive {
		if p.value <= 0 {
			return &ConfigError{Field: p.name, Value: p.value,
				Reason: "must be positive"}
		}
	}

	if c.AddressWidth < 1 || c.AddressWidth > MaxAddressWidth {
		return &ConfigError{Field: "AddressWidth", Value: c.AddressWidth,
			Reason: "must be between 1 and 64"}
	}

	if c.TotalBytes%c.LineBytes != 0 {
		return &ConfigError{Field: "LineBytes", Value: c.LineBytes,
			Reason: "must evenly divide TotalBytes"}
	}

	numLines := c.TotalBytes / c.LineBytes
	if numLines%c.Associativity != 0 {
		return &ConfigError{Field: "Associativity", Value: c.Associativity,
			Reason: "must evenly divide the number of lines"}
	}

	numSets := numLines / c.Associativity
	if !isPowerOfTwo(numSets) {
		return &ConfigError{Field: "Associativity", Value: c.Associativity,
			Reason: "must leave a power-of-two number of sets"}
	}

	return nil
}

// BitWidth returns the 1-based position of the highest set bit of n, or 0 if
// n is 0. BitWidth(n-1) is the number of bits needed to index n values.
func BitWidth(n uint64) int {
	width := 0
	for n != 0 {
		n >>= 1
		width++
	}

	return width
}

// SetIndexOf returns the set that the address maps to.
func (g Geometry) SetIndexOf(addr uint64) int {
	return int((addr >> g.OffsetBits) & g.SetIndexMask)
}

// OffsetOf returns the byte offset of the address within its line.
func (g Geometry) OffsetOf(addr uint64) uint64 {
	return addr & g.OffsetMask
}

// TagOf returns the tag of the address. The tag keeps its position in the
// address word; it is not shifted down.
func (g Geometry) TagOf(addr uint64) uint64 {
	return addr & g.TagMask
}

// CheckAddress returns an AddressOutOfRangeError if the address has bits set
// above the address width.
func (g Geometry) CheckAddress(addr uint64) error {
	if addr&^lowBits(g.AddressWidth) != 0 {
		return &AddressOutOfRangeError{
			Address:      addr,
			AddressWidth: g.AddressWidth,
		}
	}

	return nil
}

// HexDigits is the number of hexadecimal digits used to print an address.
func (g Geometry) HexDigits() int {
	return (g.AddressWidth + 3) / 4
}

func lowBits(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << n) - 1
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
