package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"psychohistory/adapters/excel"
	"psychohistory/domain/dataset"
	"psychohistory/internal/config"
	"psychohistory/internal/errors"
	"psychohistory/internal/features"
	"psychohistory/internal/predictor"
	"psychohistory/internal/profiling"
	"psychohistory/internal/reduction"
	"psychohistory/internal/timeline"
	"psychohistory/internal/training"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func loadFrame(workbook string) (*dataset.Frame, error) {
	path := cfg.Data.Workbook
	if workbook != "" {
		path = workbook
	}
	return excel.Load(excel.LoadOptions{
		Path:  path,
		Sheet: cfg.Data.Sheet,
		Discovery: excel.DiscoveryConfig{
			Dir:     cfg.Data.Dir,
			Pattern: cfg.Data.Pattern,
		},
	})
}

func featureOptions() features.Options {
	opts := features.DefaultOptions()
	opts.Indicators = cfg.Reduction.Indicators
	opts.Reduction = reduction.Options{
		Components:     cfg.Reduction.Components,
		MinColCoverage: cfg.Reduction.MinColCoverage,
		MinRowCoverage: cfg.Reduction.MinRowCoverage,
	}
	return opts
}

// writeTable writes m as CSV to path, or to stdout when path is empty
func writeTable(m *dataset.Matrix, path string) error {
	if path == "" {
		return features.Encode(os.Stdout, m)
	}
	return features.WriteCSV(m, path)
}

func newTimelineCmd() *cobra.Command {
	var workbook, out string

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Estimate start, end and duration per polity",
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := loadFrame(workbook)
			if err != nil {
				return err
			}
			records, src, err := timeline.Estimate(frame)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ %d polities from %s (%s → %s)\n", len(records), src.Mode, src.FromColumn, src.ToColumn)
			return writeTable(timeline.ToMatrix(records), out)
		},
	}

	cmd.Flags().StringVar(&workbook, "workbook", "", "workbook path (default: discover in data dir)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output CSV (default: stdout)")
	return cmd
}

func newReduceCmd() *cobra.Command {
	var workbook, outDir string

	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Fit principal components of the indicator matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := loadFrame(workbook)
			if err != nil {
				return err
			}
			res, err := features.Build(frame, featureOptions())
			if err != nil {
				return err
			}
			red := res.Reduction

			variance := dataset.NewMatrix(red.Scores.Columns, []string{"explained_variance_ratio"})
			for i, v := range red.ExplainedVar {
				variance.Data[i][0] = v
				fmt.Fprintf(os.Stderr, "  %s  %.1f%%\n", red.Scores.Columns[i], v*100)
			}
			fmt.Fprintf(os.Stderr, "✓ %d indicators kept, %d dropped; %d polities kept, %d dropped\n",
				len(red.Loadings.Index), len(red.DroppedCols), len(red.Scores.Index), len(red.DroppedRows))

			if outDir == "" {
				return writeTable(red.Loadings, "")
			}
			for name, m := range map[string]*dataset.Matrix{
				"loadings.csv":           red.Loadings,
				"scores.csv":             red.Scores,
				"explained_variance.csv": variance,
			} {
				if err := features.WriteCSV(m, filepath.Join(outDir, name)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workbook, "workbook", "", "workbook path (default: discover in data dir)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for loadings, scores and explained variance (default: loadings to stdout)")
	return cmd
}

func newFeaturesCmd() *cobra.Command {
	var workbook, out string
	var profile bool

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Build the merged per-polity feature table",
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := loadFrame(workbook)
			if err != nil {
				return err
			}
			res, err := features.Build(frame, featureOptions())
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.Data.FeaturesFile
			}
			if err := features.WriteCSV(res.Table, out); err != nil {
				return err
			}
			rows, cols := res.Table.Dims()
			fmt.Printf("✓ Saved: %s (%d polities, %d columns)\n", out, rows, cols)
			if profile {
				return printProfile(res.Table)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workbook, "workbook", "", "workbook path (default: discover in data dir)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output CSV (default: data.features_file)")
	cmd.Flags().BoolVar(&profile, "profile", false, "print a distribution profile of every column")
	return cmd
}

func printProfile(m *dataset.Matrix) error {
	profiles, err := profiling.ProfileMatrix(m)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nCOLUMN\tCOVERAGE\tMEAN\tSTD\tMEDIAN\tSKEW\tOUTLIERS")
	for _, p := range profiles {
		fmt.Fprintf(w, "%s\t%.0f%%\t%.3f\t%.3f\t%.3f\t%.2f\t%d\n",
			p.Name, p.Coverage*100, p.Mean, p.StdDev, p.Median, p.Skewness, p.Outliers)
	}
	return w.Flush()
}

func newTrainCmd() *cobra.Command {
	var input string
	var noBoosting bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train, evaluate and persist all models",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				input = cfg.Data.FeaturesFile
			}
			if noBoosting {
				cfg.Training.Boosting = false
			}
			table, err := features.ReadCSV(input)
			if err != nil {
				return err
			}

			res, err := training.NewTrainer(training.OptionsFromConfig(cfg)).Train(cmd.Context(), table)
			if err != nil {
				return err
			}
			if err := config.Save(cfg, filepath.Join(cfg.Output.ConfigsDir, training.RunConfigFile)); err != nil {
				return err
			}

			c := res.Manifest.ChampionModels
			fmt.Printf("Champion regressor:  %s (R²=%.3f, MAE=%.1fy)\n", c.Regressor.Name, c.Regressor.TestR2, c.Regressor.TestMAE)
			fmt.Printf("Champion classifier: %s (AUC=%.3f, F1=%.3f)\n\n", c.Classifier.Name, c.Classifier.TestAUC, c.Classifier.TestF1)

			v, err := training.Verify(cfg.Output.ModelsDir)
			if v != nil {
				if werr := v.Write(os.Stdout); werr != nil {
					return werr
				}
			}
			if err != nil {
				return err
			}
			fmt.Printf("Config: %s\n", filepath.Join(cfg.Output.ConfigsDir, training.ManifestFile))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "feature CSV (default: data.features_file)")
	cmd.Flags().BoolVar(&noBoosting, "no-boosting", false, "skip the gradient-boosted models")
	return cmd
}

func newPredictCmd() *cobra.Command {
	var input, out string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict instability and duration for rows of a feature CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return errors.InvalidInput("--input is required")
			}
			p, err := predictor.New(cfg.Output.ModelsDir)
			if err != nil {
				return err
			}
			table, err := features.ReadCSV(input)
			if err != nil {
				return err
			}
			X, err := table.SelectColumns(p.Features())
			if err != nil {
				return errors.WithCode(errors.CodeShapeMismatch, errors.Wrap(err, "select model features"))
			}
			X = X.DropIncomplete()
			if dropped := len(table.Index) - len(X.Index); dropped > 0 {
				fmt.Fprintf(os.Stderr, "○ %d rows with missing features skipped\n", dropped)
			}

			pred, err := p.PredictFrame(X)
			if err != nil {
				return err
			}
			result := dataset.NewMatrix(X.Index, []string{predictor.InstabilityKey, predictor.DurationKey})
			for i := range result.Index {
				result.Data[i][0] = pred[predictor.InstabilityKey][i]
				result.Data[i][1] = pred[predictor.DurationKey][i]
			}
			return writeTable(result, out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "feature CSV with the trained feature columns")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output CSV (default: stdout)")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "List required and optional model artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := training.Verify(cfg.Output.ModelsDir)
			if v != nil {
				if werr := v.Write(os.Stdout); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

func newConfigCmd() *cobra.Command {
	var write string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if write != "" {
				if err := config.Save(cfg, write); err != nil {
					return err
				}
				fmt.Printf("✓ Saved: %s\n", write)
				return nil
			}
			b, err := yaml.Marshal(cfg)
			if err != nil {
				return errors.Wrap(err, "marshal config")
			}
			_, err = os.Stdout.Write(b)
			return err
		},
	}

	cmd.Flags().StringVar(&write, "write", "", "write the configuration to this path instead of printing it")
	return cmd
}
