// Package chain routes partition opens across several sources in priority order.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"postcode-api/internal/localdb"
)

// Source tries each member in order. A member reporting localdb.ErrPartitionNotFound passes the
// request on to the next; any other error stops the chain. Nil members are skipped.
type Source struct {
	list []localdb.Source
}

func NewSource(list ...localdb.Source) *Source {
	return &Source{list: list}
}

func (c *Source) Open(ctx context.Context, areaType, outcode string) (localdb.Rows, error) {
	for _, s := range c.list {
		if s == nil {
			continue
		}
		rows, err := s.Open(ctx, areaType, outcode)
		if errors.Is(err, localdb.ErrPartitionNotFound) {
			continue
		}
		return rows, err
	}
	return nil, fmt.Errorf("%w: %s/%s", localdb.ErrPartitionNotFound, areaType, outcode)
}

// AreaTypes merges the area types of every member that is also a localdb.Catalog.
func (c *Source) AreaTypes(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, s := range c.list {
		cat, ok := s.(localdb.Catalog)
		if !ok || cat == nil {
			continue
		}
		names, err := cat.AreaTypes(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			seen[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}
