package main

import (
	"fmt"
	"log/slog"
	"os"

	"psychohistory/internal/config"
	"psychohistory/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool

	cfg *config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "psychohistory",
		Short: "Seshat instability and duration pipeline",
		Long: `Builds per-polity features from the Seshat social-complexity export,
trains duration regressors and collapse classifiers, and serves the champions.

Typical run: psychohistory features && psychohistory train && psychohistory verify`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (env PSYCHOHISTORY_* overrides it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured log output")

	rootCmd.AddCommand(
		newTimelineCmd(),
		newReduceCmd(),
		newFeaturesCmd(),
		newTrainCmd(),
		newPredictCmd(),
		newVerifyCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment variables")
	}

	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if noColor {
		c.Logging.NoColor = true
	}
	if err := config.Validate(c); err != nil {
		return err
	}
	cfg = c

	logging.Setup(logging.Options{
		Level:   cfg.Logging.Level,
		NoColor: cfg.Logging.NoColor,
		Writer:  os.Stderr,
	})
	return nil
}
