// Package tagging keeps the tag storage of a set-associative cache.
package tagging

// A Block of a cache is the information that is associated with a cache line.
type Block struct {
	Tag        uint64
	SetID      int
	WayID      int
	IsValid    bool
	LastAccess uint64
}

// A Set is the list of blocks that a group of addresses can be stored at.
type Set struct {
	Blocks []Block
}

// FindMatchingTag returns the way of the first valid block that holds the
// tag.
func (s *Set) FindMatchingTag(tag uint64) (wayID int, found bool) {
	for i, block := range s.Blocks {
		if block.IsValid && block.Tag == tag {
			return i, true
		}
	}

	return 0, false
}

// A TagArray holds all the sets of a cache.
type TagArray interface {
	GetSet(setID int) *Set
	Update(block Block)
	Reset()
	NumSets() int
	NumWays() int
	TotalSize() uint64
	Snapshot() []Set
}

// NewTagArray creates a tag array with all blocks invalid.
func NewTagArray(numSets, numWays, blockSize int) TagArray {
	t := &tagArrayImpl{
		numSets:   numSets,
		numWays:   numWays,
		blockSize: blockSize,
	}

	t.Reset()

	return t
}

type tagArrayImpl struct {
	numSets   int
	numWays   int
	blockSize int
	sets      []Set
}

func (t *tagArrayImpl) NumSets() int {
	return t.numSets
}

func (t *tagArrayImpl) NumWays() int {
	return t.numWays
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (t *tagArrayImpl) TotalSize() uint64 {
	return uint64(t.numSets) * uint64(t.numWays) * uint64(t.blockSize)
}

func (t *tagArrayImpl) GetSet(setID int) *Set {
	return &t.sets[setID]
}

// Update overwrites the block at the block's set and way.
func (t *tagArrayImpl) Update(block Block) {
	t.sets[block.SetID].Blocks[block.WayID] = block
}

// Reset marks all the blocks invalid with a zero access time.
func (t *tagArrayImpl) Reset() {
	blocks := make([]Block, t.numSets*t.numWays)

	t.sets = make([]Set, t.numSets)
	for i := 0; i < t.numSets; i++ {
		t.sets[i].Blocks = blocks[i*t.numWays : (i+1)*t.numWays]
		for j := 0; j < t.numWays; j++ {
			t.sets[i].Blocks[j] = Block{SetID: i, WayID: j}
		}
	}
}

// Snapshot returns a deep copy of the sets.
func (t *tagArrayImpl) Snapshot() []Set {
	sets := make([]Set, len(t.sets))
	for i, s := range t.sets {
		sets[i].Blocks = append([]Block(nil), s.Blocks...)
	}

	return sets
}
