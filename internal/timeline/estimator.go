// Package timeline derives per-polity start and end year estimates from
// heterogeneous date columns.
package timeline

import (
	"fmt"
	"math"
	"sort"

	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"
	"psychohistory/internal/logging"
)

// Column names used and produced by the estimator
const (
	KeyColumn      = "PolityKey"
	YearColumn     = "Year"
	StartColumn    = "start_year_est"
	EndColumn      = "end_year_est"
	DurationColumn = "duration_years_est"
)

// Record is one polity's estimated span
type Record struct {
	PolityKey string
	StartYear float64
	EndYear   float64
	Duration  float64
}

// Source describes which columns the estimate came from
type Source struct {
	Mode       string // "date_range" or "year"
	FromColumn string
	ToColumn   string
}

type span struct {
	start, end float64
}

// Estimate returns one record per PolityKey, sorted by key. Start is the
// minimum "from" date and end the maximum "to" date seen for the key; keys
// with a missing bound or a non-positive duration are dropped.
func Estimate(frame *dataset.Frame) ([]Record, Source, error) {
	if !frame.HasColumns(KeyColumn) {
		return nil, Source{}, errors.Schema(fmt.Sprintf("no %s column", KeyColumn))
	}

	var src Source
	var spans map[string]*span
	fromCol, hasFrom := frame.FindColumn(nil, "date", "from")
	toCol, hasTo := frame.FindColumn([]string{fromCol}, "date", "to")
	switch {
	case hasFrom && hasTo:
		src = Source{Mode: "date_range", FromColumn: fromCol, ToColumn: toCol}
		spans = aggregate(frame, fromCol, toCol)
	case frame.HasColumns(YearColumn):
		src = Source{Mode: "year", FromColumn: YearColumn, ToColumn: YearColumn}
		spans = aggregate(frame, YearColumn, YearColumn)
	default:
		return nil, Source{}, errors.Schema("no usable date columns")
	}

	keys := make([]string, 0, len(spans))
	for k := range spans {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]Record, 0, len(keys))
	dropped := 0
	for _, k := range keys {
		s := spans[k]
		if math.IsNaN(s.start) || math.IsNaN(s.end) {
			dropped++
			continue
		}
		d := s.end - s.start
		if d <= 0 {
			dropped++
			continue
		}
		records = append(records, Record{PolityKey: k, StartYear: s.start, EndYear: s.end, Duration: d})
	}

	logging.Component("timeline").Info("timeline estimated",
		"mode", src.Mode, "polities", len(records), "dropped", dropped)
	return records, src, nil
}

// aggregate folds min(from) and max(to) per key, skipping missing values
// and rows without a key
func aggregate(frame *dataset.Frame, fromCol, toCol string) map[string]*span {
	spans := make(map[string]*span)
	for _, row := range frame.Rows {
		key := row[KeyColumn]
		if key == "" {
			continue
		}
		s, ok := spans[key]
		if !ok {
			s = &span{start: math.NaN(), end: math.NaN()}
			spans[key] = s
		}
		if from, ok := ParseYear(row[fromCol]); ok {
			if math.IsNaN(s.start) || from < s.start {
				s.start = from
			}
		}
		if to, ok := ParseYear(row[toCol]); ok {
			if math.IsNaN(s.end) || to > s.end {
				s.end = to
			}
		}
	}
	return spans
}

// ToMatrix lays the records out as a matrix indexed by PolityKey
func ToMatrix(records []Record) *dataset.Matrix {
	index := make([]string, len(records))
	data := make([][]float64, len(records))
	for i, r := range records {
		index[i] = r.PolityKey
		data[i] = []float64{r.StartYear, r.EndYear, r.Duration}
	}
	return &dataset.Matrix{
		Index:   index,
		Columns: []string{StartColumn, EndColumn, DurationColumn},
		Data:    data,
	}
}
