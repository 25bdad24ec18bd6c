package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcode-api/internal/localdb"
)

type stubRows struct {
	n, i int
}

func (r *stubRows) Next() bool {
	if r.i >= r.n {
		return false
	}
	r.i++
	return true
}
func (r *stubRows) Row() localdb.Row { return localdb.Row{Incode: "1AA", Value: "v"} }
func (r *stubRows) Err() error       { return nil }
func (r *stubRows) Close() error     { return nil }

type stubSource map[string]error

func (s stubSource) Open(_ context.Context, _ string, outcode string) (localdb.Rows, error) {
	if err := s[outcode]; err != nil {
		return nil, err
	}
	return &stubRows{n: 3}, nil
}

func TestInstrumentSource(t *testing.T) {
	src := InstrumentSource(stubSource{
		"ZZ1":  localdb.ErrPartitionNotFound,
		"BAD1": errors.New("permission denied"),
	})
	hit := testutil.ToFloat64(PartitionOpensTotal.WithLabelValues("hit"))
	missing := testutil.ToFloat64(PartitionOpensTotal.WithLabelValues("missing"))
	failed := testutil.ToFloat64(PartitionOpensTotal.WithLabelValues("error"))
	scanned := testutil.ToFloat64(RowsScannedTotal)

	ctx := context.Background()
	rows, err := src.Open(ctx, "council-area", "AB10")
	require.NoError(t, err)
	for rows.Next() {
	}
	require.NoError(t, rows.Close())

	_, err = src.Open(ctx, "council-area", "ZZ1")
	assert.ErrorIs(t, err, localdb.ErrPartitionNotFound)
	_, err = src.Open(ctx, "council-area", "BAD1")
	assert.Error(t, err)

	assert.Equal(t, hit+1, testutil.ToFloat64(PartitionOpensTotal.WithLabelValues("hit")))
	assert.Equal(t, missing+1, testutil.ToFloat64(PartitionOpensTotal.WithLabelValues("missing")))
	assert.Equal(t, failed+1, testutil.ToFloat64(PartitionOpensTotal.WithLabelValues("error")))
	assert.Equal(t, scanned+3, testutil.ToFloat64(RowsScannedTotal))
}

func TestRegisterCacheGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	pos, neg := 7, 2
	require.NoError(t, RegisterCacheGauges(reg, func() int { return pos }, func() int { return neg }))

	expected := `
# HELP postcode_positive_cache_entries Entries in the positive result cache
# TYPE postcode_positive_cache_entries gauge
postcode_positive_cache_entries 7
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "postcode_positive_cache_entries"))

	neg = 5
	n, err := testutil.GatherAndCount(reg, "postcode_negative_cache_entries")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, RegisterCacheGauges(reg, func() int { return 0 }, func() int { return 0 }))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	RequestsTotal.WithLabelValues("council-area", OutcomeFound).Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `postcode_requests_total{area_type="council-area",outcome="found"}`)
}
