package models

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"psychohistory/internal/errors"
)

// ArtifactExt is the file extension of persisted models
const ArtifactExt = ".gob"

// Artifact is the on-disk envelope of one fitted model. Exactly one model
// field is set, matching Kind.
type Artifact struct {
	Kind      Kind
	Name      string
	CreatedAt time.Time

	Scaler           *StandardScaler
	Linear           *LinearRegression
	Logistic         *LogisticRegression
	ForestRegressor  *RandomForestRegressor
	ForestClassifier *RandomForestClassifier
	BoostRegressor   *GradientBoostingRegressor
	BoostClassifier  *GradientBoostingClassifier
}

// NewArtifact wraps a scaler, Regressor or Classifier
func NewArtifact(name string, model interface{ Kind() Kind }) (*Artifact, error) {
	a := &Artifact{Kind: model.Kind(), Name: name, CreatedAt: time.Now().UTC()}
	switch m := model.(type) {
	case *StandardScaler:
		a.Scaler = m
	case *LinearRegression:
		a.Linear = m
	case *LogisticRegression:
		a.Logistic = m
	case *RandomForestRegressor:
		a.ForestRegressor = m
	case *RandomForestClassifier:
		a.ForestClassifier = m
	case *GradientBoostingRegressor:
		a.BoostRegressor = m
	case *GradientBoostingClassifier:
		a.BoostClassifier = m
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("cannot persist model of type %T", model))
	}
	return a, nil
}

// Regressor returns the wrapped regressor
func (a *Artifact) Regressor() (Regressor, error) {
	switch {
	case a.Linear != nil:
		return a.Linear, nil
	case a.ForestRegressor != nil:
		return a.ForestRegressor, nil
	case a.BoostRegressor != nil:
		return a.BoostRegressor, nil
	}
	return nil, errors.ArtifactError(a.Name, fmt.Errorf("artifact of kind %s is not a regressor", a.Kind))
}

// Classifier returns the wrapped classifier
func (a *Artifact) Classifier() (Classifier, error) {
	switch {
	case a.Logistic != nil:
		return a.Logistic, nil
	case a.ForestClassifier != nil:
		return a.ForestClassifier, nil
	case a.BoostClassifier != nil:
		return a.BoostClassifier, nil
	}
	return nil, errors.ArtifactError(a.Name, fmt.Errorf("artifact of kind %s is not a classifier", a.Kind))
}

// StandardScaler returns the wrapped scaler
func (a *Artifact) StandardScaler() (*StandardScaler, error) {
	if a.Scaler == nil {
		return nil, errors.ArtifactError(a.Name, fmt.Errorf("artifact of kind %s is not a scaler", a.Kind))
	}
	return a.Scaler, nil
}

// Save writes the artifact to path, creating the parent directory
func (a *Artifact) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.ArtifactError(a.Name, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.ArtifactError(a.Name, err)
	}
	if err := gob.NewEncoder(f).Encode(a); err != nil {
		f.Close()
		return errors.ArtifactError(a.Name, err)
	}
	if err := f.Close(); err != nil {
		return errors.ArtifactError(a.Name, err)
	}
	return nil
}

// LoadArtifact reads an artifact written by Save. A missing file is NOT_FOUND.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("model artifact " + path)
		}
		return nil, errors.ArtifactError(filepath.Base(path), err)
	}
	defer f.Close()

	var a Artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, errors.ArtifactError(filepath.Base(path), err)
	}
	return &a, nil
}

// SaveModel wraps and writes a model in one step
func SaveModel(path, name string, model interface{ Kind() Kind }) error {
	a, err := NewArtifact(name, model)
	if err != nil {
		return err
	}
	return a.Save(path)
}
