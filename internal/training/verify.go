package training

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"psychohistory/internal/errors"
)

// Model status values
const (
	StatusTrained      = "trained"
	StatusNotInstalled = "not installed"
)

// RequiredArtifacts must exist after a successful run
var RequiredArtifacts = []string{
	ScalerArtifact,
	LinearArtifact, ForestRegressorArtifact,
	LogisticArtifact, ForestClassifierArtifact,
	BestRegressorArtifact, BestClassifierArtifact,
}

// OptionalArtifacts exist only when boosting is enabled
var OptionalArtifacts = []string{BoostRegressorArtifact, BoostClassifierArtifact}

// ArtifactStatus is one checked file
type ArtifactStatus struct {
	Name     string
	Path     string
	Required bool
	Present  bool
	Size     int64
}

// Verification lists the artifacts found in a models directory
type Verification struct {
	Dir      string
	Required []ArtifactStatus
	Optional []ArtifactStatus
}

// Present counts the artifacts found
func (v *Verification) Present() int {
	n := 0
	for _, s := range append(append([]ArtifactStatus(nil), v.Required...), v.Optional...) {
		if s.Present {
			n++
		}
	}
	return n
}

// Expected counts every known artifact
func (v *Verification) Expected() int {
	return len(v.Required) + len(v.Optional)
}

// Missing returns the names of absent required artifacts
func (v *Verification) Missing() []string {
	var out []string
	for _, s := range v.Required {
		if !s.Present {
			out = append(out, s.Name)
		}
	}
	return out
}

// Verify stats every required and optional artifact in dir. A missing
// optional artifact is reported as not installed; a missing required one
// makes Verify return a NOT_FOUND error alongside the listing.
func Verify(dir string) (*Verification, error) {
	v := &Verification{Dir: dir}
	for _, name := range RequiredArtifacts {
		s, err := stat(dir, name, true)
		if err != nil {
			return nil, err
		}
		v.Required = append(v.Required, s)
	}
	for _, name := range OptionalArtifacts {
		s, err := stat(dir, name, false)
		if err != nil {
			return nil, err
		}
		v.Optional = append(v.Optional, s)
	}
	if missing := v.Missing(); len(missing) > 0 {
		return v, errors.NotFound(fmt.Sprintf("required artifacts %s in %s", strings.Join(missing, ", "), dir))
	}
	return v, nil
}

func stat(dir, name string, required bool) (ArtifactStatus, error) {
	s := ArtifactStatus{Name: name, Path: ArtifactPath(dir, name), Required: required}
	info, err := os.Stat(s.Path)
	switch {
	case err == nil:
		s.Present = true
		s.Size = info.Size()
	case os.IsNotExist(err):
	default:
		return s, errors.ArtifactError(name, err)
	}
	return s, nil
}

// Write prints the listing in the pipeline's console format
func (v *Verification) Write(w io.Writer) error {
	var b strings.Builder
	b.WriteString("Required models:\n")
	for _, s := range v.Required {
		writeStatus(&b, s)
	}
	b.WriteString("\nOptional models:\n")
	for _, s := range v.Optional {
		writeStatus(&b, s)
	}
	abs, err := filepath.Abs(v.Dir)
	if err != nil {
		abs = v.Dir
	}
	fmt.Fprintf(&b, "\nTotal: %d/%d artifacts\nLocation: %s\n", v.Present(), v.Expected(), abs)
	_, err = io.WriteString(w, b.String())
	return err
}

func writeStatus(b *strings.Builder, s ArtifactStatus) {
	file := filepath.Base(s.Path)
	switch {
	case s.Present:
		fmt.Fprintf(b, "  ✓ %s (%.1f KB)\n", file, float64(s.Size)/1024)
	case s.Required:
		fmt.Fprintf(b, "  ✗ %s (missing)\n", file)
	default:
		fmt.Fprintf(b, "  ○ %s (%s)\n", file, StatusNotInstalled)
	}
}
