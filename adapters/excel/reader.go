package excel

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"
	"psychohistory/internal/logging"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the Seshat export sheet
const DefaultSheet = "exportdat_share"

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	log      *slog.Logger
}

// NewDataReader creates a reader for the given file; sheet applies to workbooks only
func NewDataReader(filePath, sheet string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileType,
		sheet:    sheet,
		log:      logging.Component("excel"),
	}
}

// ReadData reads the file into a frame
func (r *DataReader) ReadData() (*dataset.Frame, error) {
	r.log.Debug("reading file", "type", r.fileType, "path", r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("%s file %s", strings.ToUpper(r.fileType), r.filePath))
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	default:
		rows, err = r.readExcelRows()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, errors.Schema(fmt.Sprintf("%s has no header row", r.filePath))
	}
	return r.processRows(rows), nil
}

// readExcelRows reads the configured sheet
func (r *DataReader) readExcelRows() ([][]string, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open workbook %s", r.filePath)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(r.sheet); err != nil || idx < 0 {
		return nil, errors.NotFound(fmt.Sprintf("sheet %q in %s (available: %s)",
			r.sheet, filepath.Base(r.filePath), strings.Join(f.GetSheetList(), ", ")))
	}

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", r.sheet)
	}
	r.log.Debug("sheet read", "sheet", r.sheet, "rows", len(rows), "elapsed", time.Since(startTime))
	return rows, nil
}

// readCSVRows reads a comma-separated file
func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open CSV %s", r.filePath)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read CSV %s", r.filePath)
	}
	return rows, nil
}

// processRows converts raw string rows into a frame. Short rows leave the
// trailing columns empty, which excelize produces for blank trailing cells.
func (r *DataReader) processRows(rows [][]string) *dataset.Frame {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	frame := &dataset.Frame{Headers: headers, Source: r.filePath}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		rowData := make(dataset.RawRowData, len(headers))
		for j, header := range headers {
			if j < len(row) {
				rowData[header] = strings.TrimSpace(row[j])
			} else {
				rowData[header] = ""
			}
		}
		frame.Rows = append(frame.Rows, rowData)
	}

	r.log.Info("file processed", "type", r.fileType, "columns", len(headers), "rows", len(frame.Rows))
	return frame
}
