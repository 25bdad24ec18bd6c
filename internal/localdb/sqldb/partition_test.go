package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcode-api/internal/localdb"
	"postcode-api/internal/migrate"
	"postcode-api/internal/utils"
)

func seed(t *testing.T) *sql.DB {
	t.Helper()
	db, err := utils.OpenDB(utils.DriverSQLite, filepath.Join(t.TempDir(), "partitions.db"), 1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrate.EnsureSchema(context.Background(), db))

	rows := []struct {
		areaType, outcode, incode, value string
		rowNo                            int
	}{
		{"council-area", "AB10", "1AB", "S12000033", 0},
		{"council-area", "AB10", "1AA", "S12000034", 1},
		{"council-area", "AB10", "7JB", "S12000035", 2},
		{"constituency", "AB10", "1AA", "S14000002", 0},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO postcode_partitions(area_type, outcode, incode, value, row_no) VALUES($1,$2,$3,$4,$5)`,
			r.areaType, r.outcode, r.incode, r.value, r.rowNo)
		require.NoError(t, err)
	}
	return db
}

func collect(t *testing.T, rs localdb.Rows) []localdb.Row {
	t.Helper()
	defer rs.Close()
	var out []localdb.Row
	for rs.Next() {
		out = append(out, rs.Row())
	}
	require.NoError(t, rs.Err())
	return out
}

func TestOpenStreamsInRowOrder(t *testing.T) {
	src := NewSource(seed(t))
	rs, err := src.Open(context.Background(), "council-area", "AB10")
	require.NoError(t, err)
	assert.Equal(t, []localdb.Row{
		{Incode: "1AB", Value: "S12000033"},
		{Incode: "1AA", Value: "S12000034"},
		{Incode: "7JB", Value: "S12000035"},
	}, collect(t, rs))
}

func TestOpenMissingPartition(t *testing.T) {
	src := NewSource(seed(t))
	for _, c := range []struct{ areaType, outcode string }{
		{"council-area", "ZZ1"},
		{"ward", "AB10"},
		{"", ""},
	} {
		_, err := src.Open(context.Background(), c.areaType, c.outcode)
		assert.True(t, errors.Is(err, localdb.ErrPartitionNotFound), "%s/%s: %v", c.areaType, c.outcode, err)
	}
}

func TestOpenClosedDB(t *testing.T) {
	db := seed(t)
	src := NewSource(db)
	require.NoError(t, db.Close())

	_, err := src.Open(context.Background(), "council-area", "AB10")
	require.Error(t, err)
	assert.False(t, errors.Is(err, localdb.ErrPartitionNotFound))
}

func TestEarlyCloseReleasesConnection(t *testing.T) {
	src := NewSource(seed(t))
	ctx := context.Background()
	rs, err := src.Open(ctx, "council-area", "AB10")
	require.NoError(t, err)
	require.True(t, rs.Next())
	require.NoError(t, rs.Close())

	// The pool holds a single connection; this blocks forever if Close leaked it.
	rs, err = src.Open(ctx, "constituency", "AB10")
	require.NoError(t, err)
	assert.Len(t, collect(t, rs), 1)
}

func TestAreaTypes(t *testing.T) {
	src := NewSource(seed(t))
	got, err := src.AreaTypes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"constituency", "council-area"}, got)
}
