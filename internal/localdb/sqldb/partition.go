// Package sqldb serves partitions from the postcode_partitions table (see migrate.EnsureSchema).
// Queries use $n placeholders, accepted by both lib/pq and mattn/go-sqlite3.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"postcode-api/internal/localdb"
)

const (
	selectPartition = `SELECT incode, value FROM postcode_partitions WHERE area_type=$1 AND outcode=$2 ORDER BY row_no`
	selectAreaTypes = `SELECT DISTINCT area_type FROM postcode_partitions ORDER BY area_type`
)

// Source reads partitions from a database. A partition with no rows does not exist.
type Source struct {
	db *sql.DB
}

func NewSource(db *sql.DB) *Source { return &Source{db: db} }

// Open queries the partition and peeks its first row so that an absent partition is reported as
// localdb.ErrPartitionNotFound rather than as an empty cursor.
func (s *Source) Open(ctx context.Context, areaType, outcode string) (localdb.Rows, error) {
	rs, err := s.db.QueryContext(ctx, selectPartition, areaType, outcode)
	if err != nil {
		return nil, fmt.Errorf("query partition %s/%s: %w", areaType, outcode, err)
	}
	r := &rows{rs: rs}
	if !r.advance() {
		err := r.Err()
		_ = rs.Close()
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s/%s", localdb.ErrPartitionNotFound, areaType, outcode)
	}
	r.peeked = true
	return r, nil
}

// AreaTypes lists the distinct area types stored.
func (s *Source) AreaTypes(ctx context.Context) ([]string, error) {
	rs, err := s.db.QueryContext(ctx, selectAreaTypes)
	if err != nil {
		return nil, fmt.Errorf("query area types: %w", err)
	}
	defer rs.Close()
	var out []string
	for rs.Next() {
		var name string
		if err := rs.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan area type: %w", err)
		}
		out = append(out, name)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate area types: %w", err)
	}
	return out, nil
}

type rows struct {
	rs     *sql.Rows
	cur    localdb.Row
	peeked bool
	err    error
}

func (r *rows) advance() bool {
	if r.err != nil || !r.rs.Next() {
		return false
	}
	var row localdb.Row
	if err := r.rs.Scan(&row.Incode, &row.Value); err != nil {
		r.err = fmt.Errorf("scan partition row: %w", err)
		return false
	}
	r.cur = row
	return true
}

func (r *rows) Next() bool {
	if r.peeked {
		r.peeked = false
		return true
	}
	return r.advance()
}

func (r *rows) Row() localdb.Row { return r.cur }

func (r *rows) Err() error {
	if r.err != nil {
		return r.err
	}
	if err := r.rs.Err(); err != nil {
		return fmt.Errorf("iterate partition: %w", err)
	}
	return nil
}

func (r *rows) Close() error { return r.rs.Close() }
