package aggregator

import (
	"database/sql"
	"fmt"
	"time"
)

// roundToHourStart returns the start of the hour for the given time
func roundToHourStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
}

// roundToDayStart returns the start of the day for the given time
func roundToDayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (tf Timeframe) bucketStart(t time.Time) time.Time {
	switch tf {
	case TimeframeHourly:
		return roundToHourStart(t)
	case TimeframeDaily:
		return roundToDayStart(t)
	default:
		return time.Time{}
	}
}

// Summarize computes per function/unit statistics for readings with
// from <= timestamp < to.
func Summarize(db *sql.DB, from, to time.Time) ([]Summary, error) {
	summaries, err := SummarizeBy(db, from, to, TimeframeAll)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		summaries[i].Start = from
	}
	return summaries, nil
}

// SummarizeBy splits the range into UTC hour or day buckets.
func SummarizeBy(db *sql.DB, from, to time.Time, tf Timeframe) ([]Summary, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("aggregator: empty range %s to %s", from, to)
	}

	query := `
		SELECT
			timestamp,
			function,
			unit,
			value,
			overflow
		FROM readings
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, id
	`
	rows, err := db.Query(query, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type key struct {
		start    int64
		function string
		unit     string
	}
	index := make(map[key]int)
	var out []Summary
	var sums []float64

	for rows.Next() {
		var (
			ts       int64
			function string
			unit     string
			value    sql.NullFloat64
			overflow bool
		)
		if err := rows.Scan(&ts, &function, &unit, &value, &overflow); err != nil {
			return nil, err
		}

		start := tf.bucketStart(time.UnixMilli(ts))
		k := key{start: start.Unix(), function: function, unit: unit}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Summary{Start: start, Function: function, Unit: unit})
			sums = append(sums, 0)
		}

		s := &out[i]
		if overflow || !value.Valid {
			s.Overflows++
			continue
		}
		if s.Count == 0 || value.Float64 < s.Min {
			s.Min = value.Float64
		}
		if s.Count == 0 || value.Float64 > s.Max {
			s.Max = value.Float64
		}
		s.Count++
		sums[i] += value.Float64
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Count > 0 {
			out[i].Avg = sums[i] / float64(out[i].Count)
		}
	}
	return out, nil
}
