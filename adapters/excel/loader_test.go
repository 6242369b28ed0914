package excel

import (
	"os"
	"path/filepath"
	"testing"

	"psychohistory/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, path, sheet string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestLoadDerivesPolityKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sc_dataset_2022.xlsx")
	writeWorkbook(t, path, DefaultSheet, [][]interface{}{
		{"NGA", "Polity", "DateFrom", "DateTo", "PropCoded"},
		{"Upper Egypt", "EgOldK1", "2650 BCE", "2350 BCE", 0.8},
		{"Latium", "ItRomPr", "509 BCE", "27 BCE", 0.9},
	})

	frame, err := Load(LoadOptions{Discovery: DiscoveryConfig{Dir: dir, Pattern: "sc_dataset*.xlsx"}})
	require.NoError(t, err)

	require.True(t, frame.HasColumns(PolityKeyColumn))
	assert.Equal(t, []string{"Upper Egypt | EgOldK1", "Latium | ItRomPr"}, frame.Column(PolityKeyColumn))
	assert.Equal(t, "2650 BCE", frame.Rows[0]["DateFrom"])
	assert.Equal(t, "0.8", frame.Rows[0]["PropCoded"])
}

func TestLoadWithoutIdentifyingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.csv")
	require.NoError(t, os.WriteFile(path, []byte("PolityKey,Year\nA,100\nA,200\n"), 0o644))

	frame, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"PolityKey", "Year"}, frame.Headers)
	assert.Equal(t, 2, frame.Len())
}

func TestLoadMissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sc_dataset.xlsx")
	writeWorkbook(t, path, "other", [][]interface{}{{"a"}, {1}})

	_, err := Load(LoadOptions{Path: path, Sheet: DefaultSheet})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	assert.Contains(t, err.Error(), "other")
}

func TestDiscoverNotFound(t *testing.T) {
	_, err := Discover(DiscoveryConfig{Dir: t.TempDir(), Pattern: "sc_dataset*.xlsx"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestDiscoverAmbiguousTakesFirst(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"sc_dataset_b.xlsx", "sc_dataset_a.xlsx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	d, err := Discover(DiscoveryConfig{Dir: dir, Pattern: "sc_dataset*.xlsx"})
	require.NoError(t, err)
	assert.True(t, d.Ambiguous())
	assert.Equal(t, filepath.Join(dir, "sc_dataset_a.xlsx"), d.Path)
}

func TestReadDataMissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "nope.xlsx"), "").ReadData()
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}
