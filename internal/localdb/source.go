// Package localdb defines partitioned postcode reference data: one partition per
// (area type, outcode), each a lazy sequence of incode/value rows.
package localdb

import (
	"context"
	"errors"
	"strings"
)

// ErrPartitionNotFound reports that no partition exists for an (area type, outcode) pair.
// It is a definitive "no data" answer, not a fault.
var ErrPartitionNotFound = errors.New("localdb: partition not found")

// Row is one line of a partition.
type Row struct {
	Incode string
	Value  string
}

// Rows is a forward-only, non-restartable cursor over a partition, in partition order.
// Callers must Close it.
type Rows interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// Source opens partitions. Open returns an error wrapping ErrPartitionNotFound when the
// partition does not exist; any other error is a data source failure.
type Source interface {
	Open(ctx context.Context, areaType, outcode string) (Rows, error)
}

// Catalog lists the area types a store holds.
type Catalog interface {
	AreaTypes(ctx context.Context) ([]string, error)
}

// ValidSegment reports whether s can be used as a single path or key segment.
func ValidSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}
