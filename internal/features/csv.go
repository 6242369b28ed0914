package features

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"
)

// IndexColumn heads the first CSV column
const IndexColumn = "PolityKey"

// WriteCSV writes the table with the row index as the first column. Missing
// cells are written empty.
func WriteCSV(m *dataset.Matrix, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := Encode(f, m); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	return nil
}

// Encode writes the CSV form of m to w
func Encode(w io.Writer, m *dataset.Matrix) error {
	cw := csv.NewWriter(w)
	header := append([]string{IndexColumn}, m.Columns...)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}
	record := make([]string, len(header))
	for i, key := range m.Index {
		record[0] = key
		for j, v := range m.Data[i] {
			if math.IsNaN(v) {
				record[j+1] = ""
			} else {
				record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// ReadCSV reads a table written by WriteCSV, or any CSV whose first column
// is the row index. Empty or non-numeric cells become NaN.
func ReadCSV(path string) (*dataset.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("feature table " + path)
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return m, nil
}

// Decode parses the CSV form of a table
func Decode(r io.Reader) (*dataset.Matrix, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeSchema, errors.Wrap(err, "parse csv"))
	}
	if len(records) == 0 || len(records[0]) < 2 {
		return nil, errors.Schema("feature table needs an index column and at least one value column")
	}

	columns := records[0][1:]
	index := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		index = append(index, rec[0])
	}
	m := dataset.NewMatrix(index, columns)
	for i, rec := range records[1:] {
		for j := range columns {
			if j+1 < len(rec) {
				if v, ok := parseCell(rec[j+1]); ok {
					m.Data[i][j] = v
				}
			}
		}
	}
	return m, nil
}
