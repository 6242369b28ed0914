package training

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"psychohistory/domain/dataset"
	"psychohistory/domain/run"
	"psychohistory/internal/errors"
	"psychohistory/internal/logging"
	"psychohistory/internal/models"
	"psychohistory/internal/profiling"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// minRows is the smallest table a stratified split can work with
const minRows = 4

// Trainer runs one training pass
type Trainer struct {
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// NewTrainer creates a trainer. Whether the boosted models are fitted is
// fixed here from opts.Boosting for the lifetime of the trainer.
func NewTrainer(opts Options) *Trainer {
	return &Trainer{opts: opts, log: logging.Component("training"), now: time.Now}
}

// Result is everything a run produced
type Result struct {
	Manifest    *run.Manifest
	Regressors  []Evaluation
	Classifiers []Evaluation
	Scaler      *models.StandardScaler

	// unscaled held-out rows and their scaled form
	TestFeatures *dataset.Matrix
	XTrain       *mat.Dense
	XTest        *mat.Dense

	DurationStats   Summary
	FeatureProfiles []profiling.ColumnProfile
	Files           []string
}

type fitter interface {
	Fit(X mat.Matrix, y []float64) error
}

type contextFitter interface {
	FitContext(ctx context.Context, X mat.Matrix, y []float64) error
}

type candidate struct {
	name  string
	model fitter
}

// Train fits every model on the feature table. Rows missing any feature or
// target are dropped first.
func (t *Trainer) Train(ctx context.Context, table *dataset.Matrix) (*Result, error) {
	o := t.opts
	columns := append(append([]string(nil), o.Features...), o.DurationTarget, o.CollapseTarget)
	selected, err := table.SelectColumns(columns)
	if err != nil {
		return nil, errors.WithCode(errors.CodeSchema, errors.Wrap(err, "select training columns"))
	}
	data := selected.DropIncomplete()
	n := len(data.Index)
	if n < minRows {
		return nil, errors.Degenerate(fmt.Sprintf("%d complete rows out of %d, need at least %d", n, len(selected.Index), minRows))
	}
	t.log.Info("training table ready", "rows", n, "dropped", len(selected.Index)-n, "features", len(o.Features))

	X, err := data.SelectColumns(o.Features)
	if err != nil {
		return nil, errors.Wrap(err, "select features")
	}
	duration, _ := data.Column(o.DurationTarget)
	collapsed, _ := data.Column(o.CollapseTarget)
	for i, v := range collapsed {
		if v != 0 && v != 1 {
			return nil, errors.InvalidInput(fmt.Sprintf("%s must be 0 or 1, row %s has %v", o.CollapseTarget, data.Index[i], v))
		}
	}

	split, err := models.StratifiedSplit(collapsed, o.TestSplit, o.Seed)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDegenerate, errors.Wrap(err, "stratified split"))
	}
	trainRaw := X.SelectRows(split.Train)
	testRaw := X.SelectRows(split.Test)
	yDurTrain, yDurTest := models.Take(duration, split.Train), models.Take(duration, split.Test)
	yColTrain, yColTest := models.Take(collapsed, split.Train), models.Take(collapsed, split.Test)
	t.log.Info("split", "train", len(split.Train), "test", len(split.Test), "collapse_rate", mean(collapsed))

	scaler := models.NewStandardScaler(o.Features)
	xTrain, err := scaler.FitTransform(trainRaw.Dense())
	if err != nil {
		return nil, errors.Wrap(err, "fit scaler")
	}
	xTest, err := scaler.Transform(testRaw.Dense())
	if err != nil {
		return nil, errors.Wrap(err, "scale test rows")
	}

	res := &Result{Scaler: scaler, TestFeatures: testRaw, XTrain: xTrain, XTest: xTest}
	if res.DurationStats, err = summarize(duration); err != nil {
		return nil, err
	}
	if res.FeatureProfiles, err = profiling.ProfileMatrix(X); err != nil {
		return nil, errors.Wrap(err, "profile features")
	}
	if err := t.save(res, ScalerArtifact, scaler); err != nil {
		return nil, err
	}

	fitted := map[string]interface{ Kind() models.Kind }{}

	for _, c := range t.regressors() {
		if err := fitModel(ctx, c.model, xTrain, yDurTrain); err != nil {
			return nil, errors.Wrapf(err, "fit %s", c.name)
		}
		eval, err := evaluateRegressor(c.name, c.model.(models.Regressor), xTest, yDurTest)
		if err != nil {
			return nil, err
		}
		t.log.Info("regressor evaluated", "model", c.name, "r2", eval.Metrics[MetricR2], "mae", eval.Metrics[MetricMAE])
		res.Regressors = append(res.Regressors, eval)
		fitted[c.name] = c.model.(models.Regressor)
		if err := t.save(res, c.name, c.model.(models.Regressor)); err != nil {
			return nil, err
		}
	}

	for _, c := range t.classifiers(yColTrain) {
		if err := fitModel(ctx, c.model, xTrain, yColTrain); err != nil {
			return nil, errors.Wrapf(err, "fit %s", c.name)
		}
		eval, err := evaluateClassifier(c.name, c.model.(models.Classifier), xTest, yColTest)
		if err != nil {
			return nil, err
		}
		t.log.Info("classifier evaluated", "model", c.name, "auc", eval.Metrics[MetricAUC], "f1", eval.Metrics[MetricF1])
		res.Classifiers = append(res.Classifiers, eval)
		fitted[c.name] = c.model.(models.Classifier)
		if err := t.save(res, c.name, c.model.(models.Classifier)); err != nil {
			return nil, err
		}
	}

	if !o.Boosting {
		res.Regressors = append(res.Regressors, Evaluation{Name: BoostRegressorArtifact, Kind: string(models.KindBoostRegressor)})
		res.Classifiers = append(res.Classifiers, Evaluation{Name: BoostClassifierArtifact, Kind: string(models.KindBoostClassifier)})
		if err := t.removeStale(BoostRegressorArtifact, BoostClassifierArtifact); err != nil {
			return nil, err
		}
		t.log.Info("boosted models not installed", "enable", "training.boosting")
	}

	regName, regEval := SelectRegressor(res.Regressors[0], res.Regressors[1])
	clfName, clfEval := SelectClassifier(res.Classifiers[0], res.Classifiers[1])
	if err := t.save(res, BestRegressorArtifact, fitted[regEval.Name]); err != nil {
		return nil, err
	}
	if err := t.save(res, BestClassifierArtifact, fitted[clfEval.Name]); err != nil {
		return nil, err
	}
	t.log.Info("champions selected", "regressor", regName, "classifier", clfName)

	fp := run.NewRunFingerprint(o.DatasetName, n, o.Features, o.Seed, o.TestSplit, o.Version)
	manifest := run.NewManifest(o.Version, fp, t.now())
	manifest.Dataset.CollapseRate = mean(collapsed)
	manifest.Training = run.TrainingInfo{
		TrainSize:   len(split.Train),
		TestSize:    len(split.Test),
		TestSplit:   o.TestSplit,
		RandomState: o.Seed,
	}
	manifest.ChampionModels = run.ChampionModels{
		Regressor:  run.RegressorChampion{Name: regName, TestR2: regEval.Metrics[MetricR2], TestMAE: regEval.Metrics[MetricMAE]},
		Classifier: run.ClassifierChampion{Name: clfName, TestAUC: clfEval.Metrics[MetricAUC], TestF1: clfEval.Metrics[MetricF1]},
	}
	for _, e := range append(append([]Evaluation(nil), res.Regressors...), res.Classifiers...) {
		manifest.Models = append(manifest.Models, summary(e))
	}
	if err := manifest.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeInternalError, err)
	}
	manifestPath := filepath.Join(o.ConfigsDir, ManifestFile)
	if err := manifest.Write(manifestPath); err != nil {
		return nil, errors.ArtifactError(ManifestFile, err)
	}
	res.Manifest = manifest
	res.Files = append(res.Files, manifestPath)
	t.log.Info("manifest written", "path", manifestPath, "run_id", manifest.RunID, "fingerprint", manifest.Fingerprint.Short())

	if err := t.writeReport(res); err != nil {
		return nil, err
	}
	return res, nil
}

func (t *Trainer) regressors() []candidate {
	o := t.opts
	out := []candidate{
		{LinearArtifact, models.NewLinearRegression()},
		{ForestRegressorArtifact, models.NewRandomForestRegressor(models.ForestParams{
			Estimators: o.Estimators, MaxDepth: o.ForestRegressorDepth, Seed: o.Seed, Workers: o.Workers,
		})},
	}
	if o.Boosting {
		out = append(out, candidate{BoostRegressorArtifact, models.NewGradientBoostingRegressor(models.BoostParams{
			Estimators: o.Estimators, MaxDepth: o.BoostRegressorDepth, LearningRate: o.LearningRate, Seed: o.Seed,
		})})
	}
	return out
}

func (t *Trainer) classifiers(yTrain []float64) []candidate {
	o := t.opts
	out := []candidate{
		{LogisticArtifact, models.NewLogisticRegression(1000)},
		{ForestClassifierArtifact, models.NewRandomForestClassifier(models.ForestParams{
			Estimators: o.Estimators, MaxDepth: o.ForestClassifierDepth, Seed: o.Seed, Workers: o.Workers,
		})},
	}
	if o.Boosting {
		out = append(out, candidate{BoostClassifierArtifact, models.NewGradientBoostingClassifier(models.BoostParams{
			Estimators: o.Estimators, MaxDepth: o.BoostClassifierDepth, LearningRate: o.LearningRate, Seed: o.Seed,
		}, models.ScalePosWeight(yTrain))})
	}
	return out
}

func (t *Trainer) save(res *Result, name string, model interface{ Kind() models.Kind }) error {
	path := ArtifactPath(t.opts.ModelsDir, name)
	if err := models.SaveModel(path, name, model); err != nil {
		return err
	}
	res.Files = append(res.Files, path)
	t.log.Debug("artifact saved", "name", name, "path", path)
	return nil
}

// removeStale deletes artifacts left by an earlier run that this run does not produce
func (t *Trainer) removeStale(names ...string) error {
	for _, name := range names {
		path := ArtifactPath(t.opts.ModelsDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.WithCode(errors.CodeArtifactFailed, errors.Wrapf(err, "remove stale %s", path))
		}
	}
	return nil
}

func fitModel(ctx context.Context, m fitter, X mat.Matrix, y []float64) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "training cancelled")
	}
	if cf, ok := m.(contextFitter); ok {
		return cf.FitContext(ctx, X, y)
	}
	return m.Fit(X, y)
}

func evaluateRegressor(name string, m models.Regressor, X mat.Matrix, y []float64) (Evaluation, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return Evaluation{}, errors.Wrapf(err, "predict %s", name)
	}
	r2, err := models.R2(y, pred)
	if err != nil {
		return Evaluation{}, errors.Wrapf(err, "score %s", name)
	}
	mae, err := models.MAE(y, pred)
	if err != nil {
		return Evaluation{}, errors.Wrapf(err, "score %s", name)
	}
	return Evaluation{
		Name: name, Kind: string(m.Kind()), Available: true,
		Metrics: map[string]float64{MetricR2: r2, MetricMAE: mae},
	}, nil
}

func evaluateClassifier(name string, m models.Classifier, X mat.Matrix, y []float64) (Evaluation, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return Evaluation{}, errors.Wrapf(err, "predict %s", name)
	}
	auc, err := models.AUC(y, proba)
	if err != nil {
		return Evaluation{}, errors.Wrapf(err, "score %s", name)
	}
	f1, err := models.F1(y, models.PredictLabels(proba))
	if err != nil {
		return Evaluation{}, errors.Wrapf(err, "score %s", name)
	}
	return Evaluation{
		Name: name, Kind: string(m.Kind()), Available: true,
		Metrics: map[string]float64{MetricAUC: auc, MetricF1: f1},
	}, nil
}

func summary(e Evaluation) run.ModelSummary {
	s := run.ModelSummary{
		Name:      e.Name,
		Task:      string(models.Kind(e.Kind).Task()),
		Available: e.Available,
		Metrics:   e.Metrics,
		Status:    StatusNotInstalled,
	}
	if e.Available {
		s.File = e.Name + models.ArtifactExt
		s.Status = StatusTrained
	}
	return s
}

func mean(v []float64) float64 {
	m, _ := stats.Mean(v)
	return m
}
