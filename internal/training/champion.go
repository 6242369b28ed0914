package training

// Evaluation is one model's held-out performance
type Evaluation struct {
	Name      string
	Kind      string
	Available bool
	Metrics   map[string]float64
}

// Metric names
const (
	MetricR2  = "test_r2"
	MetricMAE = "test_mae"
	MetricAUC = "test_auc"
	MetricF1  = "test_f1"
)

// SelectRegressor prefers the random forest unless linear regression has a
// strictly higher R².
func SelectRegressor(linear, forest Evaluation) (string, Evaluation) {
	if forest.Metrics[MetricR2] >= linear.Metrics[MetricR2] {
		return ChampionRandomForest, forest
	}
	return ChampionLinear, linear
}

// SelectClassifier prefers the random forest unless logistic regression has
// a strictly higher AUC.
func SelectClassifier(logistic, forest Evaluation) (string, Evaluation) {
	if forest.Metrics[MetricAUC] >= logistic.Metrics[MetricAUC] {
		return ChampionRandomForest, forest
	}
	return ChampionLogistic, logistic
}
