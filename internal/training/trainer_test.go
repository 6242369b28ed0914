package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"psychohistory/domain/dataset"
	"psychohistory/domain/run"
	"psychohistory/internal/errors"
	"psychohistory/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var testFeatures = []string{"f1", "f2", "f3"}

// syntheticTable has 40 complete rows (12 collapsed) plus one incomplete row
func syntheticTable() *dataset.Matrix {
	rng := rand.New(rand.NewSource(3))
	var index []string
	for i := 0; i < 41; i++ {
		index = append(index, fmt.Sprintf("NGA%02d | Polity%02d", i/3, i))
	}
	m := dataset.NewMatrix(index, []string{"f1", "f2", "f3", "duration_years", "collapsed"})
	for i := 0; i < 40; i++ {
		f1 := rng.NormFloat64()
		f2 := float64(i%10) + rng.Float64()
		f3 := rng.NormFloat64()
		collapsed := 0.0
		if i%10 < 3 {
			collapsed = 1
		}
		m.Data[i] = []float64{f1, f2, f3, 200 + 80*f1 - 30*f3 + 5*rng.NormFloat64(), collapsed}
	}
	m.Data[40] = []float64{0.1, 2, math.NaN(), 150, 0}
	return m
}

func testOptions(t *testing.T, boosting bool) Options {
	dir := t.TempDir()
	return Options{
		DatasetName:           "synthetic",
		Features:              testFeatures,
		DurationTarget:        "duration_years",
		CollapseTarget:        "collapsed",
		TestSplit:             0.2,
		Seed:                  42,
		Estimators:            10,
		ForestRegressorDepth:  4,
		ForestClassifierDepth: 3,
		BoostRegressorDepth:   3,
		BoostClassifierDepth:  3,
		LearningRate:          0.1,
		Boosting:              boosting,
		Workers:               2,
		ModelsDir:             filepath.Join(dir, "models"),
		ConfigsDir:            filepath.Join(dir, "configs"),
		MetricsFile:           filepath.Join(dir, "metrics", "training.prom"),
		Version:               "test",
	}
}

func TestTrainWritesArtifactsAndManifest(t *testing.T) {
	opts := testOptions(t, true)
	res, err := NewTrainer(opts).Train(context.Background(), syntheticTable())
	require.NoError(t, err)

	v, err := Verify(opts.ModelsDir)
	require.NoError(t, err)
	assert.Equal(t, 9, v.Present())
	assert.Equal(t, 9, v.Expected())

	m, err := run.ReadManifest(filepath.Join(opts.ConfigsDir, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "test", m.Version)
	assert.Equal(t, 40, m.Dataset.NPolities)
	assert.Equal(t, testFeatures, m.Dataset.Features)
	assert.Equal(t, 32, m.Training.TrainSize)
	assert.Equal(t, 8, m.Training.TestSize)
	assert.Equal(t, int64(42), m.Training.RandomState)
	assert.InDelta(t, 0.3, m.Dataset.CollapseRate, 1e-12)
	assert.Contains(t, []string{ChampionLinear, ChampionRandomForest}, m.ChampionModels.Regressor.Name)
	assert.Contains(t, []string{ChampionLogistic, ChampionRandomForest}, m.ChampionModels.Classifier.Name)
	assert.Equal(t, res.Manifest.RunID, m.RunID)
	require.Len(t, m.Models, 6)
	for _, s := range m.Models {
		assert.True(t, s.Available, s.Name)
		assert.Equal(t, StatusTrained, s.Status)
	}

	html, err := os.ReadFile(filepath.Join(opts.ConfigsDir, ReportHTML))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1")
	assert.Contains(t, string(html), "Training report")
	require.Len(t, res.FeatureProfiles, 3)
	assert.Equal(t, 40, res.FeatureProfiles[0].Count)
	assert.Contains(t, RenderMarkdown(res), "## Feature profile")

	prom, err := os.ReadFile(opts.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "psychohistory_training_model_metric")
	assert.Contains(t, string(prom), `model="xgboost_classifier"`)
}

func TestTrainWithoutBoosting(t *testing.T) {
	opts := testOptions(t, false)
	res, err := NewTrainer(opts).Train(context.Background(), syntheticTable())
	require.NoError(t, err)

	v, err := Verify(opts.ModelsDir)
	require.NoError(t, err)
	assert.Equal(t, 7, v.Present())
	for _, s := range v.Optional {
		assert.False(t, s.Present, s.Name)
	}

	var out strings.Builder
	require.NoError(t, v.Write(&out))
	assert.Contains(t, out.String(), "○ xgboost_regressor.gob (not installed)")
	assert.Contains(t, out.String(), "Total: 7/9 artifacts")

	var skipped []string
	for _, s := range res.Manifest.Models {
		if !s.Available {
			skipped = append(skipped, s.Name)
			assert.Equal(t, StatusNotInstalled, s.Status)
			assert.Empty(t, s.File)
		}
	}
	assert.ElementsMatch(t, []string{BoostRegressorArtifact, BoostClassifierArtifact}, skipped)
	assert.Contains(t, RenderMarkdown(res), "| xgboost_classifier | | | not installed |")
}

func TestRetrainWithoutBoostingRemovesBoostedArtifacts(t *testing.T) {
	opts := testOptions(t, true)
	_, err := NewTrainer(opts).Train(context.Background(), syntheticTable())
	require.NoError(t, err)
	require.FileExists(t, ArtifactPath(opts.ModelsDir, BoostRegressorArtifact))

	opts.Boosting = false
	_, err = NewTrainer(opts).Train(context.Background(), syntheticTable())
	require.NoError(t, err)
	assert.NoFileExists(t, ArtifactPath(opts.ModelsDir, BoostRegressorArtifact))
	assert.NoFileExists(t, ArtifactPath(opts.ModelsDir, BoostClassifierArtifact))

	v, err := Verify(opts.ModelsDir)
	require.NoError(t, err)
	var out strings.Builder
	require.NoError(t, v.Write(&out))
	assert.Contains(t, out.String(), "○ xgboost_regressor.gob (not installed)")
	assert.Contains(t, out.String(), "○ xgboost_classifier.gob (not installed)")
	assert.Contains(t, out.String(), "Total: 7/9 artifacts")
}

func TestScalerRoundTrip(t *testing.T) {
	opts := testOptions(t, false)
	res, err := NewTrainer(opts).Train(context.Background(), syntheticTable())
	require.NoError(t, err)

	a, err := models.LoadArtifact(ArtifactPath(opts.ModelsDir, ScalerArtifact))
	require.NoError(t, err)
	scaler, err := a.StandardScaler()
	require.NoError(t, err)
	assert.Equal(t, testFeatures, scaler.FeatureNames)

	xTest, err := scaler.Transform(res.TestFeatures.Dense())
	require.NoError(t, err)
	assert.True(t, mat.Equal(res.XTest, xTest))
}

func TestBestArtifactsMatchChampions(t *testing.T) {
	opts := testOptions(t, false)
	res, err := NewTrainer(opts).Train(context.Background(), syntheticTable())
	require.NoError(t, err)

	champion := map[string]string{
		ChampionLinear:       LinearArtifact,
		ChampionRandomForest: ForestRegressorArtifact,
	}[res.Manifest.ChampionModels.Regressor.Name]

	load := func(name string) []float64 {
		a, err := models.LoadArtifact(ArtifactPath(opts.ModelsDir, name))
		require.NoError(t, err)
		r, err := a.Regressor()
		require.NoError(t, err)
		pred, err := r.Predict(res.XTest)
		require.NoError(t, err)
		return pred
	}
	assert.Equal(t, load(champion), load(BestRegressorArtifact))
}

func TestTrainDeterministic(t *testing.T) {
	a, err := NewTrainer(testOptions(t, true)).Train(context.Background(), syntheticTable())
	require.NoError(t, err)
	b, err := NewTrainer(testOptions(t, true)).Train(context.Background(), syntheticTable())
	require.NoError(t, err)

	assert.Equal(t, a.Manifest.Fingerprint, b.Manifest.Fingerprint)
	assert.Equal(t, a.Manifest.ChampionModels, b.Manifest.ChampionModels)
	assert.Equal(t, a.Regressors, b.Regressors)
	assert.Equal(t, a.Classifiers, b.Classifiers)
	assert.NotEqual(t, a.Manifest.RunID, b.Manifest.RunID)
}

func TestTrainErrors(t *testing.T) {
	opts := testOptions(t, false)
	opts.Features = []string{"f1", "absent"}
	_, err := NewTrainer(opts).Train(context.Background(), syntheticTable())
	require.Error(t, err)
	assert.Equal(t, errors.CodeSchema, errors.GetCode(err))

	tiny := syntheticTable()
	tiny.Index = tiny.Index[:3]
	tiny.Data = tiny.Data[:3]
	_, err = NewTrainer(testOptions(t, false)).Train(context.Background(), tiny)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDegenerate, errors.GetCode(err))

	labels := syntheticTable()
	labels.Data[0][4] = 2
	_, err = NewTrainer(testOptions(t, false)).Train(context.Background(), labels)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewTrainer(testOptions(t, false)).Train(ctx, syntheticTable())
	require.Error(t, err)
}

func TestChampionRule(t *testing.T) {
	eval := func(name, metric string, v float64) Evaluation {
		return Evaluation{Name: name, Available: true, Metrics: map[string]float64{metric: v}}
	}

	name, _ := SelectRegressor(eval(LinearArtifact, MetricR2, 0.5), eval(ForestRegressorArtifact, MetricR2, 0.5))
	assert.Equal(t, ChampionRandomForest, name, "ties go to the forest")
	name, e := SelectRegressor(eval(LinearArtifact, MetricR2, 0.6), eval(ForestRegressorArtifact, MetricR2, 0.5))
	assert.Equal(t, ChampionLinear, name)
	assert.Equal(t, LinearArtifact, e.Name)

	name, _ = SelectClassifier(eval(LogisticArtifact, MetricAUC, 0.7), eval(ForestClassifierArtifact, MetricAUC, 0.71))
	assert.Equal(t, ChampionRandomForest, name)
	name, _ = SelectClassifier(eval(LogisticArtifact, MetricAUC, 0.8), eval(ForestClassifierArtifact, MetricAUC, 0.71))
	assert.Equal(t, ChampionLogistic, name)
}

func TestVerifyMissingRequired(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(ArtifactPath(dir, ScalerArtifact), []byte("x"), 0o644))

	v, err := Verify(dir)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	require.NotNil(t, v)
	assert.Equal(t, 1, v.Present())
	assert.NotContains(t, v.Missing(), ScalerArtifact)
	assert.Contains(t, v.Missing(), BestClassifierArtifact)
}
