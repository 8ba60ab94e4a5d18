package cache

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

const cancelCheckInterval = 1024

// ReplayParallel produces the same results as Replay while spreading the
// sets over numWorkers goroutines. Every address keeps its trace position as
// timestamp, and sets never share lines, so sharding by set does not change
// any outcome. Hooks are invoked in trace order after all workers finish.
//
// If ctx is cancelled the error is returned and the cache is left partially
// updated; call Reset before using it again.
func (s *Simulator) ReplayParallel(
	ctx context.Context,
	addrs []uint64,
	numWorkers int,
) ([]AccessResult, error) {
	if numWorkers < 1 {
		numWorkers = 1
	}

	err := s.checkAll(addrs)
	if err != nil {
		return nil, err
	}

	start := s.clock
	results := make([]AccessResult, len(addrs))

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(numWorkers)

	for _, shard := range s.shard(addrs, numWorkers) {
		p.Go(func(ctx context.Context) error {
			for n, i := range shard {
				if n%cancelCheckInterval == 0 && ctx.Err() != nil {
					return ctx.Err()
				}

				results[i] = s.lookup(addrs[i], start+uint64(i))
			}

			return nil
		})
	}

	err = p.Wait()
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		s.commit(result)
	}

	return results, nil
}

// shard groups trace positions by set so that each set is owned by exactly
// one worker. Empty shards are dropped.
func (s *Simulator) shard(addrs []uint64, numWorkers int) [][]int {
	shards := make([][]int, numWorkers)
	for i, addr := range addrs {
		w := s.geometry.SetIndexOf(addr) % numWorkers
		shards[w] = append(shards[w], i)
	}

	nonEmpty := shards[:0]
	for _, shard := range shards {
		if len(shard) > 0 {
			nonEmpty = append(nonEmpty, shard)
		}
	}

	return nonEmpty
}
