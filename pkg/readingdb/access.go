package readingdb

import (
	"database/sql"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/types"
)

func FromReading(r types.Reading) *DbReading {
	row := &DbReading{
		Timestamp: r.Timestamp.UnixMilli(),
		Function:  r.Function.String(),
		Overflow:  r.Overflow,
		Unit:      r.Unit,
		Scale:     r.Scale.String(),
		RangeMode: r.Range.Mode.String(),
		RangeStep: r.Range.Step,
		Flags:     r.Flags.String(),
	}
	if !r.Overflow {
		row.Value = sql.NullFloat64{Float64: r.Value, Valid: true}
	}
	return row
}

// Emit stores a reading.
func (s *Store) Emit(r types.Reading) error {
	return s.InsertReading(FromReading(r))
}

func (s *Store) InsertReading(reading *DbReading) error {
	_, err := s.db.Exec(
		"INSERT INTO readings "+
			"(timestamp, function, value, overflow, unit, scale, range_mode, range_step, flags) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		reading.Timestamp,
		reading.Function,
		reading.Value,
		reading.Overflow,
		reading.Unit,
		reading.Scale,
		reading.RangeMode,
		reading.RangeStep,
		reading.Flags,
	)
	return err
}

// ReadingsBetween returns rows with from <= timestamp < to, oldest first.
func (s *Store) ReadingsBetween(from, to time.Time) ([]DbReading, error) {
	rows, err := s.db.Query(
		"SELECT id, timestamp, function, value, overflow, unit, scale, range_mode, range_step, flags "+
			"FROM readings WHERE timestamp >= ? AND timestamp < ? ORDER BY timestamp, id",
		from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DbReading
	for rows.Next() {
		var r DbReading
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Function, &r.Value, &r.Overflow,
			&r.Unit, &r.Scale, &r.RangeMode, &r.RangeStep, &r.Flags); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
