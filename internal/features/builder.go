// Package features turns the loaded Seshat table into the merged per-polity
// feature table the trainer consumes: hierarchical principal components,
// their derived terms, aggregated warfare and religion scores, and the
// timeline targets.
package features

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"
	"psychohistory/internal/logging"
	"psychohistory/internal/reduction"
	"psychohistory/internal/timeline"

	"github.com/montanaflynn/stats"
)

// Column names of the merged table
const (
	ComponentSuffix = "_hier"
	PC1Squared      = "PC1_squared"
	PC1xPC2         = "PC1_x_PC2"
	DurationColumn  = "duration_years"
	CollapseColumn  = "collapsed"
)

// DefaultAggregates are carried into the table as the per-polity maximum
var DefaultAggregates = []string{
	"total_warfare_tech", "weapons_count", "armor_count", "cavalry_count",
	"moral_score", "legit_score", "ideol_score",
}

// identifying columns never treated as indicators
var identifiers = []string{"NGA", "Polity", timeline.KeyColumn}

// Options configures the builder
type Options struct {
	// Indicators feeds the reducer; empty selects every numeric column that
	// is not an identifier, date, aggregate or target column.
	Indicators []string
	Aggregates []string
	Reduction  reduction.Options
}

// DefaultOptions uses the default aggregates and reducer settings
func DefaultOptions() Options {
	return Options{
		Aggregates: append([]string(nil), DefaultAggregates...),
		Reduction:  reduction.DefaultOptions(),
	}
}

// Result is the merged table plus the intermediate products
type Result struct {
	Table      *dataset.Matrix
	Wide       *dataset.Matrix
	Reduction  *reduction.Result
	Timeline   []timeline.Record
	Indicators []string
}

// Build merges components, aggregates and timeline targets per PolityKey.
// Rows are the keys that survive the reducer, in key order.
func Build(frame *dataset.Frame, opts Options) (*Result, error) {
	log := logging.Component("features")
	if !frame.HasColumns(timeline.KeyColumn) {
		return nil, errors.Schema(fmt.Sprintf("no %s column", timeline.KeyColumn))
	}

	indicators := opts.Indicators
	if len(indicators) == 0 {
		indicators = detectIndicators(frame, opts.Aggregates)
	}
	if missing := missingColumns(frame, indicators); len(missing) > 0 {
		return nil, errors.Schema("indicator columns not found: " + strings.Join(missing, ", "))
	}
	if len(indicators) == 0 {
		return nil, errors.Degenerate("no numeric indicator columns")
	}

	records, src, err := timeline.Estimate(frame)
	if err != nil {
		return nil, errors.Wrap(err, "estimate timeline")
	}
	log.Debug("timeline estimated", "mode", src.Mode, "polities", len(records))

	groups := groupRows(frame)
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	wide := aggregate(frame, keys, groups, indicators, meanOf)
	red, err := reduction.Reduce(wide, opts.Reduction)
	if err != nil {
		return nil, errors.Wrap(err, "reduce indicators")
	}

	table := assemble(frame, red, records, groups, opts.Aggregates)
	log.Info("feature table built",
		"indicators", len(indicators),
		"polities", len(table.Index),
		"components", len(red.Scores.Columns),
		"dropped_cols", len(red.DroppedCols),
		"dropped_rows", len(red.DroppedRows))

	return &Result{Table: table, Wide: wide, Reduction: red, Timeline: records, Indicators: indicators}, nil
}

func assemble(frame *dataset.Frame, red *reduction.Result, records []timeline.Record, groups map[string][]int, aggregates []string) *dataset.Matrix {
	k := len(red.Scores.Columns)
	var columns []string
	for _, c := range red.Scores.Columns {
		columns = append(columns, c+ComponentSuffix)
	}
	columns = append(columns, PC1Squared)
	if k >= 2 {
		columns = append(columns, PC1xPC2)
	}
	var present []string
	for _, a := range aggregates {
		if frame.HasColumns(a) {
			present = append(present, a)
		}
	}
	columns = append(columns, present...)
	columns = append(columns, DurationColumn)
	hasCollapse := frame.HasColumns(CollapseColumn)
	if hasCollapse {
		columns = append(columns, CollapseColumn)
	}

	durations := make(map[string]float64, len(records))
	for _, r := range records {
		durations[r.PolityKey] = r.Duration
	}

	table := dataset.NewMatrix(red.Scores.Index, columns)
	for i, key := range table.Index {
		row := table.Data[i]
		scores := red.Scores.Data[i]
		copy(row, scores)
		row[k] = scores[0] * scores[0]
		next := k + 1
		if k >= 2 {
			row[next] = scores[0] * scores[1]
			next++
		}
		for _, a := range present {
			row[next] = reduceCells(frame, groups[key], a, maxOf)
			next++
		}
		if d, ok := durations[key]; ok {
			row[next] = d
		}
		next++
		if hasCollapse {
			row[next] = reduceCells(frame, groups[key], CollapseColumn, maxOf)
		}
	}
	return table
}

// detectIndicators picks columns with at least one numeric cell, skipping
// identifiers, date columns, aggregates and targets
func detectIndicators(frame *dataset.Frame, aggregates []string) []string {
	skip := map[string]bool{CollapseColumn: true, DurationColumn: true}
	for _, c := range identifiers {
		skip[c] = true
	}
	for _, c := range aggregates {
		skip[c] = true
	}
	var out []string
	for _, h := range frame.Headers {
		lower := strings.ToLower(h)
		if skip[h] || strings.Contains(lower, "date") || strings.Contains(lower, "year") {
			continue
		}
		for _, row := range frame.Rows {
			if _, ok := parseCell(row[h]); ok {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

func missingColumns(frame *dataset.Frame, names []string) []string {
	var missing []string
	for _, n := range names {
		if !frame.HasColumns(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

func groupRows(frame *dataset.Frame) map[string][]int {
	groups := map[string][]int{}
	for i, row := range frame.Rows {
		key := row[timeline.KeyColumn]
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], i)
	}
	return groups
}

func aggregate(frame *dataset.Frame, keys []string, groups map[string][]int, columns []string, fn func([]float64) float64) *dataset.Matrix {
	m := dataset.NewMatrix(keys, columns)
	for i, key := range keys {
		for j, c := range columns {
			m.Data[i][j] = reduceCells(frame, groups[key], c, fn)
		}
	}
	return m
}

// reduceCells applies fn to the parsed numeric cells of one column over the
// given rows, or returns NaN when none parse
func reduceCells(frame *dataset.Frame, rows []int, column string, fn func([]float64) float64) float64 {
	var vals []float64
	for _, r := range rows {
		if v, ok := parseCell(frame.Rows[r][column]); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return fn(vals)
}

func parseCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func meanOf(v []float64) float64 {
	m, _ := stats.Mean(v)
	return m
}

func maxOf(v []float64) float64 {
	m, _ := stats.Max(v)
	return m
}
