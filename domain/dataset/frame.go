package dataset

import (
	"strings"
)

// RawRowData is one sheet row keyed by trimmed header
type RawRowData map[string]string

// Frame is a string-typed table as read from a sheet or CSV file
type Frame struct {
	Headers []string
	Rows    []RawRowData
	Source  string
}

// NewFrame creates an empty frame with the given headers
func NewFrame(headers ...string) *Frame {
	return &Frame{Headers: append([]string(nil), headers...)}
}

// Len returns the number of data rows
func (f *Frame) Len() int {
	return len(f.Rows)
}

// HasColumns reports whether every named column is present
func (f *Frame) HasColumns(names ...string) bool {
	for _, name := range names {
		if f.ColumnIndex(name) < 0 {
			return false
		}
	}
	return true
}

// ColumnIndex returns the header position of name, or -1
func (f *Frame) ColumnIndex(name string) int {
	for i, h := range f.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// FindColumn returns the first header whose lowercase form contains every
// fragment, skipping the excluded names.
func (f *Frame) FindColumn(exclude []string, fragments ...string) (string, bool) {
	for _, h := range f.Headers {
		if contains(exclude, h) {
			continue
		}
		lower := strings.ToLower(h)
		match := true
		for _, frag := range fragments {
			if !strings.Contains(lower, frag) {
				match = false
				break
			}
		}
		if match {
			return h, true
		}
	}
	return "", false
}

// Column returns the values of a column in row order
func (f *Frame) Column(name string) []string {
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[name]
	}
	return out
}

// Append adds a row; values are matched to headers by position
func (f *Frame) Append(values ...string) {
	row := make(RawRowData, len(f.Headers))
	for i, h := range f.Headers {
		if i < len(values) {
			row[h] = values[i]
		}
	}
	f.Rows = append(f.Rows, row)
}

// DeriveColumn adds (or replaces) a column computed from each row
func (f *Frame) DeriveColumn(name string, fn func(RawRowData) string) {
	if f.ColumnIndex(name) < 0 {
		f.Headers = append(f.Headers, name)
	}
	for _, row := range f.Rows {
		row[name] = fn(row)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
