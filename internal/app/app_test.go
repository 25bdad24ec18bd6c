package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcode-api/internal/config"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func dataTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"council-area/AB10.csv": "incode,value\n1AA,S12000033\n1AB,S12000034\n",
		"constituency/AB10.csv": "incode,value\n1AA,S14000002\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func baseConfig(dataDir string) *config.Config {
	return &config.Config{
		Port:              9999,
		DataDir:           dataDir,
		DataSource:        config.SourceFile,
		DBDriver:          "sqlite3",
		PositiveCacheSize: 100,
		NegativeCacheSize: 10,
		NegativeCacheTTL:  time.Minute,
		CoalesceLookups:   true,
		ShutdownTimeout:   time.Second,
	}
}

func TestBuildFileSource(t *testing.T) {
	cfg := baseConfig(dataTree(t))
	a, err := Build(context.Background(), cfg, quiet())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"constituency", "council-area"}, a.AreaTypes)
	assert.Nil(t, a.DB)

	v, found, err := a.Engine.Lookup(context.Background(), "council-area", "AB10", "1AB")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "S12000034", v)
}

func TestBuildSQLSourceSeedsFromDataDir(t *testing.T) {
	cfg := baseConfig(dataTree(t))
	cfg.DataSource = config.SourceSQL
	cfg.DBDSN = filepath.Join(t.TempDir(), "postcodes.db")

	a, err := Build(context.Background(), cfg, quiet())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.DB)

	assert.Equal(t, []string{"constituency", "council-area"}, a.AreaTypes)
	v, found, err := a.Engine.Lookup(context.Background(), "constituency", "AB10", "1AA")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "S14000002", v)

	_, found, err = a.Engine.Lookup(context.Background(), "constituency", "ZZ1", "1AA")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBuildChainPrefersFiles(t *testing.T) {
	root := dataTree(t)
	cfg := baseConfig(root)
	cfg.DataSource = config.SourceChain
	cfg.DBDSN = filepath.Join(t.TempDir(), "postcodes.db")

	a, err := Build(context.Background(), cfg, quiet())
	require.NoError(t, err)
	_, err = a.DB.Exec(`INSERT INTO postcode_partitions(area_type, outcode, incode, value, row_no) VALUES($1,$2,$3,$4,$5)`,
		"ward", "ZE1", "0AA", "S13002936", 0)
	require.NoError(t, err)
	_, err = a.DB.Exec(`INSERT INTO postcode_partitions(area_type, outcode, incode, value, row_no) VALUES($1,$2,$3,$4,$5)`,
		"council-area", "AB10", "1AA", "from-sql", 0)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// Area types are discovered at build time, so rebuild to pick up the SQL-only one.
	a, err = Build(context.Background(), cfg, quiet())
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, []string{"constituency", "council-area", "ward"}, a.AreaTypes)

	v, _, err := a.Engine.Lookup(context.Background(), "council-area", "AB10", "1AA")
	require.NoError(t, err)
	assert.Equal(t, "S12000033", v)

	v, _, err = a.Engine.Lookup(context.Background(), "ward", "ZE1", "0AA")
	require.NoError(t, err)
	assert.Equal(t, "S13002936", v)
}

func TestBuildMissingDataDir(t *testing.T) {
	_, err := Build(context.Background(), baseConfig(filepath.Join(t.TempDir(), "absent")), quiet())
	assert.Error(t, err)
}

func TestRegisterMetrics(t *testing.T) {
	a, err := Build(context.Background(), baseConfig(dataTree(t)), quiet())
	require.NoError(t, err)
	defer a.Close()
	assert.NoError(t, a.RegisterMetrics(prometheus.NewRegistry()))
}
