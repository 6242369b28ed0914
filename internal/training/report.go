package training

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"psychohistory/internal/errors"

	"github.com/gomarkdown/markdown"
	"github.com/montanaflynn/stats"
	"github.com/prometheus/client_golang/prometheus"
)

// Summary describes the distribution of a target
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	P25    float64
	P75    float64
	Min    float64
	Max    float64
}

func summarize(v []float64) (Summary, error) {
	data := stats.Float64Data(v)
	s := Summary{Count: len(v)}
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, errors.Wrap(err, "target mean")
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, errors.Wrap(err, "target median")
	}
	if s.P25, err = stats.PercentileNearestRank(data, 25); err != nil {
		return s, errors.Wrap(err, "target percentile")
	}
	if s.P75, err = stats.PercentileNearestRank(data, 75); err != nil {
		return s, errors.Wrap(err, "target percentile")
	}
	if s.Min, err = stats.Min(data); err != nil {
		return s, errors.Wrap(err, "target min")
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, errors.Wrap(err, "target max")
	}
	return s, nil
}

// RenderMarkdown formats the run as a markdown document
func RenderMarkdown(res *Result) string {
	m := res.Manifest
	var b strings.Builder
	fmt.Fprintf(&b, "# Training report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n- Created: %s\n- Version: %s\n- Fingerprint: `%s`\n\n",
		m.RunID, m.Created, m.Version, m.Fingerprint.Short())

	fmt.Fprintf(&b, "## Dataset\n\n")
	fmt.Fprintf(&b, "%s: %d polities, %d features, collapse rate %.1f%%.\n\n",
		m.Dataset.Name, m.Dataset.NPolities, m.Dataset.NFeatures, m.Dataset.CollapseRate*100)
	fmt.Fprintf(&b, "Features: %s\n\n", strings.Join(m.Dataset.Features, ", "))
	d := res.DurationStats
	fmt.Fprintf(&b, "Duration (years): median %.1f, IQR %.1f to %.1f, range %.1f to %.1f\n\n",
		d.Median, d.P25, d.P75, d.Min, d.Max)

	if len(res.FeatureProfiles) > 0 {
		fmt.Fprintf(&b, "## Feature profile\n\n| Feature | Mean | Std | Skew | Outliers | Normal |\n|---|---|---|---|---|---|\n")
		for _, p := range res.FeatureProfiles {
			fmt.Fprintf(&b, "| %s | %.3f | %.3f | %.2f | %d | %t |\n", p.Name, p.Mean, p.StdDev, p.Skewness, p.Outliers, p.IsNormal)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Split\n\nTrain %d, test %d (test fraction %.2f, seed %d), stratified on collapse.\n\n",
		m.Training.TrainSize, m.Training.TestSize, m.Training.TestSplit, m.Training.RandomState)

	fmt.Fprintf(&b, "## Duration models\n\n| Model | R² | MAE (years) | Status |\n|---|---|---|---|\n")
	for _, e := range res.Regressors {
		writeRow(&b, e, MetricR2, MetricMAE)
	}
	fmt.Fprintf(&b, "\n## Instability models\n\n| Model | AUC | F1 | Status |\n|---|---|---|---|\n")
	for _, e := range res.Classifiers {
		writeRow(&b, e, MetricAUC, MetricF1)
	}

	c := m.ChampionModels
	fmt.Fprintf(&b, "\n## Champions\n\n- Regressor: **%s** (R² %.3f, MAE %.1f)\n- Classifier: **%s** (AUC %.3f, F1 %.3f)\n",
		c.Regressor.Name, c.Regressor.TestR2, c.Regressor.TestMAE,
		c.Classifier.Name, c.Classifier.TestAUC, c.Classifier.TestF1)
	return b.String()
}

func writeRow(b *strings.Builder, e Evaluation, first, second string) {
	if !e.Available {
		fmt.Fprintf(b, "| %s | | | %s |\n", e.Name, StatusNotInstalled)
		return
	}
	fmt.Fprintf(b, "| %s | %.3f | %.3f | %s |\n", e.Name, e.Metrics[first], e.Metrics[second], StatusTrained)
}

// RenderHTML converts the markdown report to HTML
func RenderHTML(md string) []byte {
	return markdown.ToHTML([]byte(md), nil, nil)
}

func (t *Trainer) writeReport(res *Result) error {
	md := RenderMarkdown(res)
	mdPath := filepath.Join(t.opts.ConfigsDir, ReportMarkdown)
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return errors.ArtifactError(ReportMarkdown, err)
	}
	htmlPath := filepath.Join(t.opts.ConfigsDir, ReportHTML)
	if err := os.WriteFile(htmlPath, RenderHTML(md), 0o644); err != nil {
		return errors.ArtifactError(ReportHTML, err)
	}
	res.Files = append(res.Files, mdPath, htmlPath)

	if t.opts.MetricsFile != "" {
		if err := WriteMetrics(t.opts.MetricsFile, res); err != nil {
			return err
		}
		res.Files = append(res.Files, t.opts.MetricsFile)
	}
	t.log.Info("report written", "markdown", mdPath, "html", htmlPath, "metrics", t.opts.MetricsFile)
	return nil
}

// NewRegistry exposes the run as gauges on a fresh registry
func NewRegistry(res *Result) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	modelMetric := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "psychohistory",
		Subsystem: "training",
		Name:      "model_metric",
		Help:      "Held-out metric of a trained model",
	}, []string{"model", "metric"})
	available := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "psychohistory",
		Subsystem: "training",
		Name:      "model_available",
		Help:      "1 if the model was trained in this run",
	}, []string{"model"})
	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "psychohistory",
		Subsystem: "training",
		Name:      "rows",
		Help:      "Rows per partition",
	}, []string{"partition"})
	collapseRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "psychohistory",
		Subsystem: "training",
		Name:      "collapse_rate",
		Help:      "Fraction of polities labelled collapsed",
	})
	reg.MustRegister(modelMetric, available, rows, collapseRate)

	for _, e := range append(append([]Evaluation(nil), res.Regressors...), res.Classifiers...) {
		if !e.Available {
			available.WithLabelValues(e.Name).Set(0)
			continue
		}
		available.WithLabelValues(e.Name).Set(1)
		names := make([]string, 0, len(e.Metrics))
		for k := range e.Metrics {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			modelMetric.WithLabelValues(e.Name, k).Set(e.Metrics[k])
		}
	}
	rows.WithLabelValues("train").Set(float64(res.Manifest.Training.TrainSize))
	rows.WithLabelValues("test").Set(float64(res.Manifest.Training.TestSize))
	collapseRate.Set(res.Manifest.Dataset.CollapseRate)
	return reg
}

// WriteMetrics writes the run gauges in the node_exporter textfile format
func WriteMetrics(path string, res *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create metrics dir for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, NewRegistry(res)); err != nil {
		return errors.Wrapf(err, "write metrics %s", path)
	}
	return nil
}
