// Package lookup resolves (area type, outcode, incode) to an area code using a positive LRU, a
// negative TTL cache and a partition scan over a localdb.Source.
package lookup

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"postcode-api/internal/cache"
	"postcode-api/internal/localdb"
)

const (
	// CouncilArea is the area type with the Gibraltar special case.
	CouncilArea = "council-area"
	// GibraltarCouncilArea is returned for every council-area lookup of a GX outcode.
	GibraltarCouncilArea = "G99999999"

	gibraltarPrefix = "GX"
)

// Key identifies one lookup.
type Key struct {
	AreaType string
	Outcode  string
	Incode   string
}

func (k Key) String() string {
	return k.AreaType + "\x00" + k.Outcode + "\x00" + k.Incode
}

// Engine answers lookups. A key is never held by both caches at once.
type Engine struct {
	src      localdb.Source
	positive *cache.LRU[Key, string]
	negative *cache.Expiring[Key]

	mu       sync.Mutex
	group    singleflight.Group
	coalesce bool
	drains   sync.WaitGroup
	closing  bool

	onDrainError func(areaType, outcode string, err error)
}

type Option func(*Engine)

// WithCoalescing toggles sharing one scan between concurrent lookups of the same key. On by
// default.
func WithCoalescing(on bool) Option {
	return func(e *Engine) { e.coalesce = on }
}

// WithDrainErrorHandler sets the function told about failures while a partition is drained in the
// background after a match.
func WithDrainErrorHandler(fn func(areaType, outcode string, err error)) Option {
	return func(e *Engine) { e.onDrainError = fn }
}

// New builds an engine over src with the given caches.
func New(src localdb.Source, positive *cache.LRU[Key, string], negative *cache.Expiring[Key], opts ...Option) *Engine {
	e := &Engine{src: src, positive: positive, negative: negative, coalesce: true}
	for _, o := range opts {
		o(e)
	}
	return e
}

type result struct {
	value string
	found bool
}

// Lookup returns the value for the key, found=false when the data holds no such postcode, or a
// *DataSourceError when the source failed. Cancelling ctx does not abort a scan in progress.
func (e *Engine) Lookup(ctx context.Context, areaType, outcode, incode string) (string, bool, error) {
	if areaType == CouncilArea && strings.HasPrefix(outcode, gibraltarPrefix) {
		return GibraltarCouncilArea, true, nil
	}
	key := Key{AreaType: areaType, Outcode: outcode, Incode: incode}
	if e.negative.Has(key) {
		return "", false, nil
	}
	if v, ok := e.positive.Get(key); ok {
		return v, true, nil
	}

	ctx = context.WithoutCancel(ctx)
	if !e.coalesce {
		r, err := e.scan(ctx, key)
		return r.value, r.found, err
	}
	v, err, _ := e.group.Do(key.String(), func() (any, error) {
		r, err := e.scan(ctx, key)
		return r, err
	})
	r, _ := v.(result)
	return r.value, r.found, err
}

// Wait blocks until every background drain has finished. Lookups may still run afterwards; their
// partitions are then drained before Lookup returns.
func (e *Engine) Wait() {
	e.mu.Lock()
	e.closing = true
	e.mu.Unlock()
	e.drains.Wait()
}

// scan: open the partition and mirror each row into the positive cache until key matches.
// Background: one pass over a partition warms the cache for every postcode in it, so the rest is
// drained after the match; in the background normally, inline once Wait has begun.
// Constraints: ErrPartitionNotFound and a scan without a match are cached as negatives; any other
// source failure is returned as *DataSourceError and cached nowhere.
func (e *Engine) scan(ctx context.Context, key Key) (result, error) {
	rows, err := e.src.Open(ctx, key.AreaType, key.Outcode)
	if err != nil {
		if errors.Is(err, localdb.ErrPartitionNotFound) {
			e.markMissing(key)
			return result{}, nil
		}
		return result{}, &DataSourceError{AreaType: key.AreaType, Outcode: key.Outcode, Err: err}
	}

	for rows.Next() {
		row := rows.Row()
		e.remember(key.AreaType, key.Outcode, row)
		if row.Incode == key.Incode {
			e.mu.Lock()
			background := !e.closing
			if background {
				e.drains.Add(1)
			}
			e.mu.Unlock()
			if background {
				go func() {
					defer e.drains.Done()
					e.drain(rows, key.AreaType, key.Outcode)
				}()
			} else {
				e.drain(rows, key.AreaType, key.Outcode)
			}
			return result{value: row.Value, found: true}, nil
		}
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return result{}, &DataSourceError{AreaType: key.AreaType, Outcode: key.Outcode, Err: err}
	}
	e.markMissing(key)
	return result{}, nil
}

func (e *Engine) drain(rows localdb.Rows, areaType, outcode string) {
	for rows.Next() {
		e.remember(areaType, outcode, rows.Row())
	}
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	if err != nil && e.onDrainError != nil {
		e.onDrainError(areaType, outcode, err)
	}
}

func (e *Engine) remember(areaType, outcode string, row localdb.Row) {
	k := Key{AreaType: areaType, Outcode: outcode, Incode: row.Incode}
	e.mu.Lock()
	e.positive.Add(k, row.Value)
	e.negative.Remove(k)
	e.mu.Unlock()
}

// markMissing records a definitive negative unless a concurrent scan has meanwhile found the key.
func (e *Engine) markMissing(k Key) {
	e.mu.Lock()
	if !e.positive.Contains(k) {
		e.negative.Add(k)
	}
	e.mu.Unlock()
}
