package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledStore(t *testing.T) {
	ctx := context.Background()
	for _, s := range []*Store{nil, New(nil)} {
		assert.False(t, s.Enabled())
		require.NoError(t, s.IncrStats(ctx, "council-area", "203.0.113.7"))
		tot, err := s.GetTotals(ctx)
		require.NoError(t, err)
		assert.Zero(t, tot.Total)
		assert.Zero(t, tot.Today)
		assert.Empty(t, tot.ByAreaType)
	}
}

func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	rc := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rc.Close() })
	return rc
}

func TestUnreachableRedisReportsErrors(t *testing.T) {
	s := New(unreachable(t))
	ctx := context.Background()
	assert.True(t, s.Enabled())
	assert.Error(t, s.IncrStats(ctx, "council-area", ""))
	_, err := s.GetTotals(ctx)
	assert.Error(t, err)
}

func TestDayKeysUseUTC(t *testing.T) {
	s := New(nil)
	loc := time.FixedZone("UTC+10", 10*3600)
	s.now = func() time.Time { return time.Date(2026, 10, 17, 8, 0, 0, 0, loc) }
	assert.Equal(t, "postcode:stats:day:2026-10-16", dayKey(s.now().UTC().Format(dayLayout)))
}

func TestBloomPositions(t *testing.T) {
	a := bloomPositions([]byte("203.0.113.7"), bloomBits, bloomHashes)
	b := bloomPositions([]byte("203.0.113.7"), bloomBits, bloomHashes)
	c := bloomPositions([]byte("198.51.100.1"), bloomBits, bloomHashes)

	require.Len(t, a, bloomHashes)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	for _, p := range a {
		assert.GreaterOrEqual(t, p, int64(0))
		assert.Less(t, p, int64(bloomBits))
	}
}

func TestBloomNilClientTreatsAsNew(t *testing.T) {
	first, err := bloomCheckAndSet(context.Background(), nil, "k", []int64{1, 2}, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
}

func newMiniStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })
	s := New(rc)
	s.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	return s, mr
}

type hit struct {
	areaType string
	visitor  string
}

func TestIncrStatsCounters(t *testing.T) {
	cases := []struct {
		name string
		hits []hit
		want Totals
	}{
		{
			name: "no hits",
			want: Totals{ByAreaType: map[string]int64{}},
		},
		{
			name: "two area types with a repeated visitor",
			hits: []hit{
				{"council-area", "203.0.113.7"},
				{"council-area", "203.0.113.7"},
				{"westminster-parliamentary-constituency", "203.0.113.7"},
				{"council-area", "198.51.100.1"},
				{"westminster-parliamentary-constituency", ""},
			},
			want: Totals{
				Total:         5,
				Today:         5,
				VisitorsToday: 2,
				ByAreaType: map[string]int64{
					"council-area":                           3,
					"westminster-parliamentary-constituency": 2,
				},
			},
		},
		{
			name: "anonymous hits only",
			hits: []hit{{"council-area", ""}, {"council-area", ""}},
			want: Totals{Total: 2, Today: 2, ByAreaType: map[string]int64{"council-area": 2}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, mr := newMiniStore(t)
			ctx := context.Background()
			for _, h := range tc.hits {
				require.NoError(t, s.IncrStats(ctx, h.areaType, h.visitor))
			}

			got, err := s.GetTotals(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)

			if len(tc.hits) > 0 {
				assert.Equal(t, dayKeepTTL, mr.TTL(dayKey("2026-10-16")))
				assert.Equal(t, dayKeepTTL, mr.TTL(bloomKey("2026-10-16")))
				assert.Zero(t, mr.TTL(totalKey()))
			}
			if tc.want.VisitorsToday > 0 {
				assert.Equal(t, dayKeepTTL, mr.TTL(visitKey("2026-10-16")))
			}
		})
	}
}

func TestTodayResetsOnNewDay(t *testing.T) {
	s, _ := newMiniStore(t)
	ctx := context.Background()
	require.NoError(t, s.IncrStats(ctx, "council-area", "203.0.113.7"))

	s.now = func() time.Time { return time.Date(2026, 10, 17, 0, 0, 1, 0, time.UTC) }
	require.NoError(t, s.IncrStats(ctx, "council-area", "203.0.113.7"))

	got, err := s.GetTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Total)
	assert.Equal(t, int64(1), got.Today)
	assert.Equal(t, int64(1), got.VisitorsToday)
}

func TestGetTotalsRejectsCorruptAreaCounter(t *testing.T) {
	s, mr := newMiniStore(t)
	mr.HSet(areaTypesKey(), "council-area", "many")
	_, err := s.GetTotals(context.Background())
	assert.ErrorContains(t, err, "council-area")
}

func TestBloomConcurrentVisitorCountedOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr(), PoolSize: 16})
	t.Cleanup(func() { rc.Close() })
	pos := bloomPositions([]byte("203.0.113.7"), bloomBits, bloomHashes)

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := bloomCheckAndSet(context.Background(), rc, "bloom", pos, time.Minute)
			assert.NoError(t, err)
			if first {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), firsts.Load())
	assert.Equal(t, time.Minute, mr.TTL("bloom"))
}
