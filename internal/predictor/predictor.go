// Package predictor serves the champion models written by a training run.
package predictor

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"psychohistory/domain/dataset"
	"psychohistory/internal/errors"
	"psychohistory/internal/logging"
	"psychohistory/internal/models"
	"psychohistory/internal/training"

	"gonum.org/v1/gonum/mat"
)

// Output keys of PredictBoth
const (
	InstabilityKey = "instability_prob"
	DurationKey    = "predicted_duration"
)

// Predictor scales raw feature rows and applies the champion models. It is
// immutable after New, so concurrent calls are safe.
type Predictor struct {
	dir        string
	scaler     *models.StandardScaler
	classifier models.Classifier
	regressor  models.Regressor
	log        *slog.Logger
}

// New loads the scaler and champion artifacts from dir. Any missing or
// unreadable artifact fails the load.
func New(dir string) (*Predictor, error) {
	p := &Predictor{dir: dir, log: logging.Component("predictor")}

	a, err := models.LoadArtifact(training.ArtifactPath(dir, training.ScalerArtifact))
	if err != nil {
		return nil, errors.Wrap(err, "load scaler")
	}
	if p.scaler, err = a.StandardScaler(); err != nil {
		return nil, err
	}

	a, err = models.LoadArtifact(training.ArtifactPath(dir, training.BestClassifierArtifact))
	if err != nil {
		return nil, errors.Wrap(err, "load classifier")
	}
	if p.classifier, err = a.Classifier(); err != nil {
		return nil, err
	}

	a, err = models.LoadArtifact(training.ArtifactPath(dir, training.BestRegressorArtifact))
	if err != nil {
		return nil, errors.Wrap(err, "load regressor")
	}
	if p.regressor, err = a.Regressor(); err != nil {
		return nil, err
	}

	p.log.Info("models loaded", "dir", dir,
		"classifier", p.classifier.Kind(), "regressor", p.regressor.Kind(), "features", p.scaler.Width())
	return p, nil
}

// Features returns the ordered feature names the models expect
func (p *Predictor) Features() []string {
	return append([]string(nil), p.scaler.FeatureNames...)
}

// PredictInstability returns P(collapse) per row
func (p *Predictor) PredictInstability(X mat.Matrix) ([]float64, error) {
	z, err := p.prepare(X)
	if err != nil {
		return nil, err
	}
	if r, _ := z.Dims(); r == 0 {
		return []float64{}, nil
	}
	return p.classifier.PredictProba(z)
}

// PredictDuration returns the predicted duration in years per row
func (p *Predictor) PredictDuration(X mat.Matrix) ([]float64, error) {
	z, err := p.prepare(X)
	if err != nil {
		return nil, err
	}
	if r, _ := z.Dims(); r == 0 {
		return []float64{}, nil
	}
	return p.regressor.Predict(z)
}

// prepare scales X after checking its width and rejecting missing values
func (p *Predictor) prepare(X mat.Matrix) (*mat.Dense, error) {
	z, err := p.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(X.At(i, j)) {
				return nil, errors.InvalidInput(fmt.Sprintf("row %d has no value for %s", i, p.scaler.FeatureNames[j]))
			}
		}
	}
	return z, nil
}

// PredictBoth returns instability_prob and predicted_duration
func (p *Predictor) PredictBoth(X mat.Matrix) (map[string][]float64, error) {
	prob, err := p.PredictInstability(X)
	if err != nil {
		return nil, err
	}
	dur, err := p.PredictDuration(X)
	if err != nil {
		return nil, err
	}
	return map[string][]float64{InstabilityKey: prob, DurationKey: dur}, nil
}

// PredictFrame checks that m carries exactly the trained features in the
// trained order before predicting both targets.
func (p *Predictor) PredictFrame(m *dataset.Matrix) (map[string][]float64, error) {
	want := p.scaler.FeatureNames
	if len(m.Columns) != len(want) {
		return nil, errors.ShapeMismatch(len(want), len(m.Columns))
	}
	for i, c := range m.Columns {
		if c != want[i] {
			return nil, errors.Newf(errors.CodeShapeMismatch,
				"column %d is %q, model expects %q (order: %s)", i, c, want[i], strings.Join(want, ", "))
		}
	}
	if len(m.Index) == 0 {
		return map[string][]float64{InstabilityKey: {}, DurationKey: {}}, nil
	}
	for i, row := range m.Data {
		for j, v := range row {
			if math.IsNaN(v) {
				return nil, errors.InvalidInput(fmt.Sprintf("row %s has no value for %s", m.Index[i], m.Columns[j]))
			}
		}
	}
	return p.PredictBoth(m.Dense())
}
