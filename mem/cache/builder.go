package cache

import (
	"github.com/sarchlab/cachesim/mem/cache/addressing"
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
)

// Builder can build cache simulators.
type Builder struct {
	totalByteSize    int
	lineSize         int
	wayAssociativity int
	addressWidth     int
	replaceStrategy  string
	victimFinder     tagging.VictimFinder
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		totalByteSize:    16 * 1024,
		lineSize:         64,
		wayAssociativity: 4,
		addressWidth:     addressing.DefaultAddressWidth,
		replaceStrategy:  "lru",
	}
}

// WithTotalByteSize sets the capacity of the cache in bytes.
func (b Builder) WithTotalByteSize(totalByteSize int) Builder {
	b.totalByteSize = totalByteSize
	return b
}

// WithLineSize sets the cache line size in bytes.
func (b Builder) WithLineSize(lineSize int) Builder {
	b.lineSize = lineSize
	return b
}

// WithWayAssociativity sets the way associativity of the builder.
func (b Builder) WithWayAssociativity(wayAssociativity int) Builder {
	b.wayAssociativity = wayAssociativity
	return b
}

// WithAddressWidth sets the number of bits in an address.
func (b Builder) WithAddressWidth(addressWidth int) Builder {
	b.addressWidth = addressWidth
	return b
}

// WithConfig copies all the geometry parameters from a config.
func (b Builder) WithConfig(c addressing.Config) Builder {
	b.totalByteSize = c.TotalBytes
	b.lineSize = c.LineBytes
	b.wayAssociativity = c.Associativity
	b.addressWidth = c.AddressWidth

	return b
}

// WithReplaceStrategy selects the replacement policy. Only "lru" is
// supported.
func (b Builder) WithReplaceStrategy(replaceStrategy string) Builder {
	b.replaceStrategy = replaceStrategy
	return b
}

func (b Builder) withVictimFinder(victimFinder tagging.VictimFinder) Builder {
	b.victimFinder = victimFinder
	return b
}

// Build builds a simulator. It returns an *addressing.ConfigError if the
// geometry is invalid.
func (b Builder) Build(name string) (*Simulator, error) {
	geometry, err := addressing.NewGeometry(addressing.Config{
		TotalBytes:    b.totalByteSize,
		LineBytes:     b.lineSize,
		Associativity: b.wayAssociativity,
		AddressWidth:  b.addressWidth,
	})
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		name:     name,
		geometry: geometry,
		tags: tagging.NewTagArray(
			geometry.NumSets,
			geometry.Associativity,
			geometry.LineBytes,
		),
		victimFinder: b.victimFinder,
	}

	if s.victimFinder == nil {
		s.victimFinder = b.createVictimFinder()
	}

	return s, nil
}

func (b Builder) createVictimFinder() tagging.VictimFinder {
	var victimFinder tagging.VictimFinder

	switch b.replaceStrategy {
	case "lru":
		victimFinder = tagging.NewLRUVictimFinder()
	default:
		panic("unknown replace strategy: " + b.replaceStrategy)
	}

	return victimFinder
}
