package metrics

import (
	"context"
	"errors"

	"postcode-api/internal/localdb"
)

// InstrumentSource counts partition opens and rows read through src.
func InstrumentSource(src localdb.Source) localdb.Source {
	return &instrumentedSource{src: src}
}

type instrumentedSource struct {
	src localdb.Source
}

func (s *instrumentedSource) Open(ctx context.Context, areaType, outcode string) (localdb.Rows, error) {
	rows, err := s.src.Open(ctx, areaType, outcode)
	switch {
	case err == nil:
		PartitionOpensTotal.WithLabelValues("hit").Inc()
		return &countedRows{Rows: rows}, nil
	case errors.Is(err, localdb.ErrPartitionNotFound):
		PartitionOpensTotal.WithLabelValues("missing").Inc()
	default:
		PartitionOpensTotal.WithLabelValues("error").Inc()
	}
	return nil, err
}

type countedRows struct {
	localdb.Rows
}

func (r *countedRows) Next() bool {
	if !r.Rows.Next() {
		return false
	}
	RowsScannedTotal.Inc()
	return true
}
