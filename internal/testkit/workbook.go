package testkit

import (
	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"

	"github.com/xuri/excelize/v2"
)

// WriteWorkbook saves frame as an .xlsx workbook with one named sheet
func WriteWorkbook(frame *dataset.Frame, path, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheet)
	if err != nil {
		return errors.Wrapf(err, "create sheet %s", sheet)
	}
	f.SetActiveSheet(idx)

	header := make([]interface{}, len(frame.Headers))
	for i, h := range frame.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "write header")
	}
	for r, row := range frame.Rows {
		values := make([]interface{}, len(frame.Headers))
		for i, h := range frame.Headers {
			values[i] = row[h]
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.Wrapf(err, "write row %d", r+2)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}
