package store

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	bloomBits   = 1 << 20
	bloomHashes = 4
)

// bloomPositions: k bit positions in [0, m) for data.
// Background: FNV-64a salted with the hash index, one hash per position.
// Constraints: m and k are fixed per bitmap; changing them invalidates bitmaps already written.
func bloomPositions(data []byte, m uint32, k int) []int64 {
	pos := make([]int64, k)
	for i := 0; i < k; i++ {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write(data)
		pos[i] = int64(uint32(h.Sum64() % uint64(m)))
	}
	return pos
}

// bloomCheckAndSet: set every position in the bitmap at key and report whether any was unset.
// Background: SETBIT returns the previous bit, so one MULTI/EXEC both tests and marks; two
// concurrent calls for the same member cannot both see it as new.
// Constraints: a nil client treats every member as new; ttl is refreshed on each call.
func bloomCheckAndSet(ctx context.Context, rc *redis.Client, key string, positions []int64, ttl time.Duration) (bool, error) {
	if rc == nil {
		return true, nil
	}
	prev := make([]*redis.IntCmd, len(positions))
	_, err := rc.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, pos := range positions {
			prev[i] = p.SetBit(ctx, key, pos, 1)
		}
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return true, err
	}
	for _, c := range prev {
		if c.Val() == 0 {
			return true, nil
		}
	}
	return false, nil
}
