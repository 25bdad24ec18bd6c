package lookup

import "fmt"

// DataSourceError is a source failure other than an absent partition. It is never cached.
type DataSourceError struct {
	AreaType string
	Outcode  string
	Err      error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s/%s: %v", e.AreaType, e.Outcode, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }
