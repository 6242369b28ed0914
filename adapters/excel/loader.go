package excel

import (
	"fmt"
	"path/filepath"
	"sort"

	"psychohistory/domain/core"
	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"
	"psychohistory/internal/logging"
)

// Identifying columns that form PolityKey
const (
	NGAColumn       = "NGA"
	PolityColumn    = "Polity"
	PolityKeyColumn = "PolityKey"
)

// DiscoveryConfig locates the workbook when no explicit path is given
type DiscoveryConfig struct {
	Dir     string
	Pattern string
}

// Discovery is the outcome of a directory match
type Discovery struct {
	Path       string
	Candidates []string
}

// Ambiguous reports whether more than one file matched
func (d Discovery) Ambiguous() bool {
	return len(d.Candidates) > 1
}

// Discover returns the first file (lexical order) matching the pattern.
// No match is a NOT_FOUND error; several matches are resolved to the first.
func Discover(cfg DiscoveryConfig) (Discovery, error) {
	pattern := filepath.Join(cfg.Dir, cfg.Pattern)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return Discovery{}, errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "bad discovery pattern %q", pattern))
	}
	if len(matches) == 0 {
		return Discovery{}, errors.NotFound(fmt.Sprintf("file matching %s", pattern))
	}
	sort.Strings(matches)
	d := Discovery{Path: matches[0], Candidates: matches}
	if d.Ambiguous() {
		logging.Component("loader").Warn("several workbooks match, using the first",
			"pattern", pattern, "chosen", d.Path, "candidates", len(matches))
	}
	return d, nil
}

// LoadOptions selects the file and sheet to load
type LoadOptions struct {
	Path      string
	Sheet     string
	Discovery DiscoveryConfig
}

// Load reads the social-complexity table. An explicit Path wins over
// discovery. When both NGA and Polity columns exist a PolityKey column is
// derived as "<NGA> | <Polity>".
func Load(opts LoadOptions) (*dataset.Frame, error) {
	path := opts.Path
	if path == "" {
		d, err := Discover(opts.Discovery)
		if err != nil {
			return nil, err
		}
		path = d.Path
	}

	frame, err := NewDataReader(path, opts.Sheet).ReadData()
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}

	if frame.HasColumns(NGAColumn, PolityColumn) {
		frame.DeriveColumn(PolityKeyColumn, func(row dataset.RawRowData) string {
			return core.NewPolityKey(row[NGAColumn], row[PolityColumn]).String()
		})
	}
	return frame, nil
}
