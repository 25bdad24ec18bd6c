// Package store keeps query statistics in Redis: total and daily lookups, lookups per area type
// and distinct visitors per day.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"postcode-api/internal/logger"
)

const (
	keyPrefix  = "postcode:stats:"
	dayLayout  = "2006-01-02"
	dayKeepTTL = 48 * time.Hour
)

// Store records statistics. A Store without a Redis client accepts every call and records nothing.
type Store struct {
	rc  *redis.Client
	now func() time.Time
}

func New(rc *redis.Client) *Store {
	return &Store{rc: rc, now: time.Now}
}

// Enabled reports whether statistics are recorded.
func (s *Store) Enabled() bool { return s != nil && s.rc != nil }

// Totals is what /__stats reports.
type Totals struct {
	Total         int64            `json:"total"`
	Today         int64            `json:"today"`
	VisitorsToday int64            `json:"visitors_today"`
	ByAreaType    map[string]int64 `json:"area_types"`
}

func totalKey() string { return keyPrefix + "total" }
func areaTypesKey() string { return keyPrefix + "area_types" }
func dayKey(day string) string { return keyPrefix + "day:" + day }
func bloomKey(day string) string { return keyPrefix + "visitors_bloom:" + day }
func visitKey(day string) string { return keyPrefix + "visitors:" + day }

// IncrStats: count one answered lookup for areaType.
// Background: total, per-day and per-area-type counters move together in one MULTI/EXEC.
// Constraints: visitor, usually the client address, is counted once per UTC day through the bloom
// bitmap; pass "" to skip visitor tracking. Day keys expire after 48h.
func (s *Store) IncrStats(ctx context.Context, areaType, visitor string) error {
	if !s.Enabled() {
		return nil
	}
	day := s.now().UTC().Format(dayLayout)
	_, err := s.rc.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, totalKey())
		p.Incr(ctx, dayKey(day))
		p.Expire(ctx, dayKey(day), dayKeepTTL)
		p.HIncrBy(ctx, areaTypesKey(), areaType, 1)
		return nil
	})
	if err != nil {
		return err
	}
	if visitor != "" {
		first, err := bloomCheckAndSet(ctx, s.rc, bloomKey(day), bloomPositions([]byte(visitor), bloomBits, bloomHashes), dayKeepTTL)
		if err != nil {
			return err
		}
		if first {
			_, err := s.rc.Pipelined(ctx, func(p redis.Pipeliner) error {
				p.Incr(ctx, visitKey(day))
				p.Expire(ctx, visitKey(day), dayKeepTTL)
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
	logger.L().Debug("stats_incr", "area_type", areaType, "day", day)
	return nil
}

// GetTotals reads the counters back. Missing counters read as zero.
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	t := &Totals{ByAreaType: map[string]int64{}}
	if !s.Enabled() {
		return t, nil
	}
	day := s.now().UTC().Format(dayLayout)
	var err error
	if t.Total, err = s.count(ctx, totalKey()); err != nil {
		return nil, err
	}
	if t.Today, err = s.count(ctx, dayKey(day)); err != nil {
		return nil, err
	}
	if t.VisitorsToday, err = s.count(ctx, visitKey(day)); err != nil {
		return nil, err
	}
	m, err := s.rc.HGetAll(ctx, areaTypesKey()).Result()
	if err != nil {
		return nil, err
	}
	for k, v := range m {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("area type counter %q: %w", k, err)
		}
		t.ByAreaType[k] = n
	}
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today)
	return t, nil
}

func (s *Store) count(ctx context.Context, key string) (int64, error) {
	n, err := s.rc.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
