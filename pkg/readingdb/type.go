package readingdb

import (
	"database/sql"
	"errors"
	"sync"
)

var ErrSchemaMissing = errors.New("readingdb: readings table missing after migration")

// DbReading is one row of the readings table. Timestamps are unix
// milliseconds; overflow rows store a NULL value.
type DbReading struct {
	ID        int64           `db:"id"`
	Timestamp int64           `db:"timestamp"`
	Function  string          `db:"function"`
	Value     sql.NullFloat64 `db:"value"`
	Overflow  bool            `db:"overflow"`
	Unit      string          `db:"unit"`
	Scale     string          `db:"scale"`
	RangeMode string          `db:"range_mode"`
	RangeStep uint8           `db:"range_step"`
	Flags     string          `db:"flags"`
}

// Store persists readings to SQLite. It implements output.Sink.
type Store struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}
