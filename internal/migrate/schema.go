// Package migrate prepares reference data: the SQL partition table and the one-time CSV header
// rewrite.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"postcode-api/internal/logger"
)

// EnsureSchema creates the partition table and its scan index if missing. Safe to run repeatedly;
// the statements are valid on both postgres and sqlite.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS postcode_partitions (
            area_type TEXT NOT NULL,
            outcode TEXT NOT NULL,
            incode TEXT NOT NULL,
            value TEXT NOT NULL,
            row_no INTEGER NOT NULL,
            PRIMARY KEY (area_type, outcode, incode)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_postcode_partitions_scan ON postcode_partitions(area_type, outcode, row_no)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
