// Package cache simulates a single-level set-associative cache with LRU
// replacement.
package cache

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/cache/addressing"
	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// Outcome tells whether an access hit or missed.
type Outcome int

// Possible outcomes of an access.
const (
	Miss Outcome = iota
	Hit
)

func (o Outcome) String() string {
	if o == Hit {
		return "HIT"
	}

	return "MISS"
}

// AccessResult describes what happened to a single access.
type AccessResult struct {
	Address  uint64
	SetIndex int
	WayID    int
	Tag      uint64
	Offset   uint64
	Outcome  Outcome

	// Time is the logical timestamp of the access.
	Time uint64

	// Evicted is set when a miss replaced a valid line.
	Evicted    bool
	EvictedTag uint64
}

// Stats counts the outcomes of the accesses so far.
type Stats struct {
	NumAccesses uint64
	NumHits     uint64
	NumMisses   uint64
}

// HitRate returns the fraction of accesses that hit. It is 0 when there have
// been no accesses.
func (s Stats) HitRate() float64 {
	if s.NumAccesses == 0 {
		return 0
	}

	return float64(s.NumHits) / float64(s.NumAccesses)
}

func (s *Stats) count(o Outcome) {
	s.NumAccesses++

	if o == Hit {
		s.NumHits++
	} else {
		s.NumMisses++
	}
}

// LineState is a copy of one cache line.
type LineState struct {
	SetID      int
	WayID      int
	Tag        uint64
	IsValid    bool
	LastAccess uint64
}

// Simulator replays addresses against a set-associative cache. It is not
// safe for concurrent use; accesses must arrive in trace order.
type Simulator struct {
	hooking.HookableBase

	name         string
	geometry     addressing.Geometry
	tags         tagging.TagArray
	victimFinder tagging.VictimFinder

	clock uint64
	stats Stats
}

// Name returns the name given to the builder.
func (s *Simulator) Name() string {
	return s.name
}

// Geometry returns the layout of the cache.
func (s *Simulator) Geometry() addressing.Geometry {
	return s.geometry
}

// Clock returns the logical timestamp the next access will get.
func (s *Simulator) Clock() uint64 {
	return s.clock
}

// Stats returns the hit and miss counts so far.
func (s *Simulator) Stats() Stats {
	return s.stats
}

// Access looks up an address, filling its line on a miss. An address wider
// than the cache's address width is rejected with an
// *addressing.AddressOutOfRangeError and does not advance the clock.
func (s *Simulator) Access(addr uint64) (AccessResult, error) {
	err := s.geometry.CheckAddress(addr)
	if err != nil {
		return AccessResult{}, err
	}

	result := s.lookup(addr, s.clock)
	s.commit(result)

	return result, nil
}

// Replay accesses all the addresses in order. Nothing is accessed if any
// address is out of range.
func (s *Simulator) Replay(addrs []uint64) ([]AccessResult, error) {
	err := s.checkAll(addrs)
	if err != nil {
		return nil, err
	}

	results := make([]AccessResult, len(addrs))
	for i, addr := range addrs {
		results[i] = s.lookup(addr, s.clock)
		s.commit(results[i])
	}

	return results, nil
}

// Reset invalidates all lines and zeroes the clock and the statistics.
func (s *Simulator) Reset() {
	s.tags.Reset()
	s.clock = 0
	s.stats = Stats{}
}

// Snapshot copies the state of every line, ordered by set and way.
func (s *Simulator) Snapshot() []LineState {
	sets := s.tags.Snapshot()
	lines := make([]LineState, 0, s.tags.NumSets()*s.tags.NumWays())

	for _, set := range sets {
		for _, b := range set.Blocks {
			lines = append(lines, LineState{
				SetID:      b.SetID,
				WayID:      b.WayID,
				Tag:        b.Tag,
				IsValid:    b.IsValid,
				LastAccess: b.LastAccess,
			})
		}
	}

	return lines
}

func (s *Simulator) checkAll(addrs []uint64) error {
	for i, addr := range addrs {
		err := s.geometry.CheckAddress(addr)
		if err != nil {
			return fmt.Errorf("trace entry %d: %w", i, err)
		}
	}

	return nil
}

// lookup performs the hit check and the fill for one address at the given
// time. It only touches the address's set.
func (s *Simulator) lookup(addr uint64, now uint64) AccessResult {
	setID := s.geometry.SetIndexOf(addr)
	tag := s.geometry.TagOf(addr)
	set := s.tags.GetSet(setID)

	result := AccessResult{
		Address:  addr,
		SetIndex: setID,
		Tag:      tag,
		Offset:   s.geometry.OffsetOf(addr),
		Time:     now,
	}

	wayID, found := set.FindMatchingTag(tag)
	if found {
		block := set.Blocks[wayID]
		block.LastAccess = now
		s.tags.Update(block)

		result.WayID = wayID
		result.Outcome = Hit

		return result
	}

	victim := s.victimFinder.FindVictim(set)
	if victim.IsValid {
		result.Evicted = true
		result.EvictedTag = victim.Tag
	}

	victim.Tag = tag
	victim.IsValid = true
	victim.LastAccess = now
	s.tags.Update(victim)

	result.WayID = victim.WayID
	result.Outcome = Miss

	return result
}

func (s *Simulator) commit(result AccessResult) {
	s.clock++
	s.stats.count(result.Outcome)
	s.traceAccess(result)
}
