// Package ingest loads a partitioned CSV tree into the postcode_partitions table.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"postcode-api/internal/localdb/file"
	"postcode-api/internal/logger"
)

const (
	deletePartition = `DELETE FROM postcode_partitions WHERE area_type=$1 AND outcode=$2`
	insertRow       = `INSERT INTO postcode_partitions(area_type, outcode, incode, value, row_no) VALUES($1,$2,$3,$4,$5) ON CONFLICT (area_type, outcode, incode) DO NOTHING`
	countRows       = `SELECT COUNT(1) FROM postcode_partitions`
)

// Result counts what an import wrote.
type Result struct {
	AreaTypes  int
	Partitions int
	Rows       int
}

// ImportTree loads every <root>/<areaType>/<outcode>.csv into db. Each partition is replaced in
// its own transaction, keeping file order in row_no. When an incode repeats within a file the
// first row wins, matching what a scan of the file returns.
func ImportTree(ctx context.Context, db *sql.DB, root string) (Result, error) {
	l := logger.L()
	src := file.NewSource(root, l)
	areaTypes, err := file.DiscoverAreaTypes(root)
	if err != nil {
		return Result{}, err
	}
	l.Info("import_start", "root", root, "area_types", len(areaTypes))

	var res Result
	for _, at := range areaTypes {
		outcodes, err := src.Outcodes(at)
		if err != nil {
			return res, err
		}
		for _, oc := range outcodes {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			n, err := importPartition(ctx, db, src, at, oc)
			if err != nil {
				return res, fmt.Errorf("import %s/%s: %w", at, oc, err)
			}
			res.Partitions++
			res.Rows += n
			if res.Partitions%500 == 0 {
				l.Info("import_progress", "partitions", res.Partitions, "rows", res.Rows)
			}
		}
		res.AreaTypes++
	}
	l.Info("import_done", "area_types", res.AreaTypes, "partitions", res.Partitions, "rows", res.Rows)
	return res, nil
}

func importPartition(ctx context.Context, db *sql.DB, src *file.Source, areaType, outcode string) (int, error) {
	rows, err := src.Open(ctx, areaType, outcode)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deletePartition, areaType, outcode); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, insertRow)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for pos := 0; rows.Next(); pos++ {
		r := rows.Row()
		res, err := stmt.ExecContext(ctx, areaType, outcode, r.Incode, r.Value, pos)
		if err != nil {
			return n, err
		}
		if k, err := res.RowsAffected(); err == nil {
			n += int(k)
		}
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	logger.L().Debug("import_partition", slog.String("area_type", areaType), slog.String("outcode", outcode), slog.Int("rows", n))
	return n, nil
}

// EnsureImported runs ImportTree when the partition table is empty, so a fresh SQL store is
// seeded from the CSV tree on first start.
func EnsureImported(ctx context.Context, db *sql.DB, root string) error {
	var c int64
	if err := db.QueryRowContext(ctx, countRows).Scan(&c); err != nil {
		return fmt.Errorf("count partition rows: %w", err)
	}
	if c > 0 {
		return nil
	}
	_, err := ImportTree(ctx, db, root)
	return err
}
