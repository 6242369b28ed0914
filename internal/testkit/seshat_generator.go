// Package testkit generates synthetic Seshat-style workbooks for tests.
package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"psychohistory/domain/dataset"
	"psychohistory/internal/features"
)

// SeshatGeneratorConfig configures the synthetic export
type SeshatGeneratorConfig struct {
	NGACount       int      `json:"nga_count"`
	PolitiesPerNGA int      `json:"polities_per_nga"`
	RowsPerPolity  int      `json:"rows_per_polity"`
	Indicators     []string `json:"indicators"`
	MissingRate    float64  `json:"missing_rate"`
	Seed           int64    `json:"seed"`
}

// DefaultSeshatConfig returns 40 polities with three period rows each
func DefaultSeshatConfig() SeshatGeneratorConfig {
	return SeshatGeneratorConfig{
		NGACount:       10,
		PolitiesPerNGA: 4,
		RowsPerPolity:  3,
		Indicators: []string{
			"PolTerr", "PolPop", "CapPop", "AdmLev", "MilLev", "ProfSoldier",
		},
		MissingRate: 0.1,
		Seed:        42,
	}
}

// Header columns written before the indicators
var baseHeaders = []string{"NGA", "Polity", "Date From", "Date To"}

// SeshatGenerator builds frames whose indicators load on one latent
// complexity factor. Every third polity is labelled collapsed.
type SeshatGenerator struct {
	config SeshatGeneratorConfig
	rng    *rand.Rand
}

// NewSeshatGenerator creates a generator
func NewSeshatGenerator(config SeshatGeneratorConfig) *SeshatGenerator {
	return &SeshatGenerator{config: config, rng: rand.New(rand.NewSource(config.Seed))}
}

// Headers returns the column order of generated frames
func (g *SeshatGenerator) Headers() []string {
	h := append([]string(nil), baseHeaders...)
	h = append(h, g.config.Indicators...)
	h = append(h, features.DefaultAggregates...)
	return append(h, features.CollapseColumn)
}

// Generate returns the raw export, without PolityKey
func (g *SeshatGenerator) Generate() *dataset.Frame {
	frame := dataset.NewFrame(g.Headers()...)
	polity := 0
	for n := 0; n < g.config.NGACount; n++ {
		nga := fmt.Sprintf("NGA %02d", n+1)
		for p := 0; p < g.config.PolitiesPerNGA; p++ {
			g.appendPolity(frame, nga, fmt.Sprintf("Pol%02d%c", n+1, 'A'+p), polity)
			polity++
		}
	}
	return frame
}

func (g *SeshatGenerator) appendPolity(frame *dataset.Frame, nga, name string, idx int) {
	complexity := g.rng.NormFloat64()
	start := -3000 + g.rng.Intn(4500)
	duration := int(math.Max(40, 250+90*complexity+30*g.rng.NormFloat64()))
	collapsed := "0"
	if idx%3 == 0 {
		collapsed = "1"
	}

	rows := g.config.RowsPerPolity
	step := duration / rows
	for r := 0; r < rows; r++ {
		from := start + r*step
		to := from + step
		if r == rows-1 {
			to = start + duration
		}
		values := []string{nga, name, yearString(from), yearString(to)}

		for j := range g.config.Indicators {
			if g.rng.Float64() < g.config.MissingRate {
				values = append(values, "")
				continue
			}
			loading := 1 + 0.5*float64(j%3)
			values = append(values, formatFloat(loading*complexity+0.4*g.rng.NormFloat64()+float64(r)*0.1))
		}

		warfare := math.Max(0, math.Round(6+2*complexity+g.rng.NormFloat64()))
		values = append(values,
			formatFloat(warfare),
			strconv.Itoa(g.rng.Intn(8)),
			strconv.Itoa(g.rng.Intn(5)),
			strconv.Itoa(g.rng.Intn(3)),
			formatFloat(g.rng.Float64()),
			formatFloat(g.rng.Float64()),
			formatFloat(g.rng.Float64()),
			collapsed,
		)
		frame.Append(values...)
	}
}

// yearString writes years the way the export does, e.g. "500 BCE"
func yearString(y int) string {
	if y < 0 {
		return fmt.Sprintf("%d BCE", -y)
	}
	return fmt.Sprintf("%d CE", y)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
