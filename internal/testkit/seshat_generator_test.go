package testkit

import (
	"path/filepath"
	"testing"

	"psychohistory/adapters/excel"
	"psychohistory/internal/timeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShape(t *testing.T) {
	cfg := DefaultSeshatConfig()
	frame := NewSeshatGenerator(cfg).Generate()

	assert.Equal(t, 40*3, frame.Len())
	assert.Equal(t, "NGA 01", frame.Rows[0]["NGA"])
	assert.Equal(t, "Pol01A", frame.Rows[0]["Polity"])
	assert.Contains(t, frame.Rows[0]["Date From"], "CE")
	assert.Equal(t, "1", frame.Rows[0]["collapsed"])
	assert.Equal(t, "0", frame.Rows[3]["collapsed"])
}

func TestGenerateDeterministic(t *testing.T) {
	a := NewSeshatGenerator(DefaultSeshatConfig()).Generate()
	b := NewSeshatGenerator(DefaultSeshatConfig()).Generate()
	assert.Equal(t, a.Rows, b.Rows)
}

func TestWorkbookRoundTrip(t *testing.T) {
	frame := NewSeshatGenerator(DefaultSeshatConfig()).Generate()
	path := filepath.Join(t.TempDir(), "sc_dataset_synthetic.xlsx")
	require.NoError(t, WriteWorkbook(frame, path, excel.DefaultSheet))

	loaded, err := excel.Load(excel.LoadOptions{Path: path})
	require.NoError(t, err)
	assert.Equal(t, frame.Len(), loaded.Len())
	assert.Equal(t, frame.Rows[5]["PolPop"], loaded.Rows[5]["PolPop"])

	records, src, err := timeline.Estimate(loaded)
	require.NoError(t, err)
	assert.Equal(t, "date_range", src.Mode)
	assert.Len(t, records, 40)
	for _, r := range records {
		assert.Greater(t, r.Duration, 0.0)
	}
}
