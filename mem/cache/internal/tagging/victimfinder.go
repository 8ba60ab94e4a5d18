package tagging

// A VictimFinder decides which block should be evicted.
type VictimFinder interface {
	FindVictim(set *Set) Block
}

// LRUVictimFinder evicts the block with the oldest access time. It scans the
// set instead of keeping a recency list, which is cheap for the small
// associativities it is used with. Ties go to the lowest way. Invalid blocks
// are not preferred; they only win because their access time is 0.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the least recently used block in a set
func (e *LRUVictimFinder) FindVictim(set *Set) Block {
	victim := set.Blocks[0]

	for _, block := range set.Blocks[1:] {
		if block.LastAccess < victim.LastAccess {
			victim = block
		}
	}

	return victim
}
