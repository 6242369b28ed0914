package timeline

import (
	"testing"

	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateDateRange(t *testing.T) {
	f := dataset.NewFrame("PolityKey", "DateFrom", "DateTo")
	f.Append("A", "100 BCE", "50 BCE")
	f.Append("A", "40 BCE", "10 CE")

	records, src, err := Estimate(f)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "date_range", src.Mode)
	assert.Equal(t, "DateFrom", src.FromColumn)
	assert.Equal(t, "DateTo", src.ToColumn)
	assert.Equal(t, Record{PolityKey: "A", StartYear: -100, EndYear: 10, Duration: 110}, records[0])
}

func TestEstimateDropsInvalidSpans(t *testing.T) {
	f := dataset.NewFrame("PolityKey", "Date_From", "Date_To")
	f.Append("zero", "100 CE", "100 CE")
	f.Append("negative", "200 CE", "100 CE")
	f.Append("missing-end", "200 CE", "")
	f.Append("ok", "300", "450")
	f.Append("missing-one-row", "", "600")
	f.Append("missing-one-row", "500", "")

	records, _, err := Estimate(f)
	require.NoError(t, err)

	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.PolityKey
		assert.Greater(t, r.EndYear, r.StartYear)
	}
	assert.Equal(t, []string{"missing-one-row", "ok"}, keys)
	assert.Equal(t, 100.0, records[0].Duration)
}

func TestEstimateSkipsRowsWithoutKey(t *testing.T) {
	f := dataset.NewFrame("PolityKey", "DateFrom", "DateTo")
	f.Append("", "900 BCE", "100 CE")
	f.Append("A", "100", "200")

	records, _, err := Estimate(f)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].PolityKey)
}

func TestEstimateYearColumn(t *testing.T) {
	f := dataset.NewFrame("PolityKey", "Year")
	f.Append("B", "-300")
	f.Append("B", "100")
	f.Append("A", "50")
	f.Append("A", "250")
	f.Append("C", "10")

	records, src, err := Estimate(f)
	require.NoError(t, err)
	assert.Equal(t, "year", src.Mode)
	require.Len(t, records, 2)
	assert.Equal(t, Record{PolityKey: "A", StartYear: 50, EndYear: 250, Duration: 200}, records[0])
	assert.Equal(t, Record{PolityKey: "B", StartYear: -300, EndYear: 100, Duration: 400}, records[1])
}

func TestEstimateNoDateColumns(t *testing.T) {
	f := dataset.NewFrame("PolityKey", "Population")
	f.Append("A", "1000")

	_, _, err := Estimate(f)
	require.Error(t, err)
	assert.Equal(t, errors.CodeSchema, errors.GetCode(err))
}

func TestEstimateNoKey(t *testing.T) {
	f := dataset.NewFrame("Year")
	_, _, err := Estimate(f)
	assert.Equal(t, errors.CodeSchema, errors.GetCode(err))
}

func TestEstimateDeterministic(t *testing.T) {
	f := dataset.NewFrame("PolityKey", "DateFrom", "DateTo")
	for _, k := range []string{"z", "m", "a", "q"} {
		f.Append(k, "900 BCE", "100 CE")
	}
	first, _, err := Estimate(f)
	require.NoError(t, err)
	second, _, err := Estimate(f)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	m := ToMatrix(first)
	assert.Equal(t, []string{"a", "m", "q", "z"}, m.Index)
	assert.Equal(t, []string{StartColumn, EndColumn, DurationColumn}, m.Columns)
	assert.Equal(t, []float64{-900, 100, 1000}, m.Data[0])
}
