package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"skincheck/adapters/modelstore"
	"skincheck/domain/health"
	"skincheck/internal/config"
	"skincheck/internal/dataset"
	"skincheck/internal/explain"
	"skincheck/internal/logging"
	"skincheck/internal/prediction"
	"skincheck/internal/report"
	"skincheck/internal/training"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var verbose bool
	rootCmd := &cobra.Command{
		Use:          "skincheck-cli",
		Short:        "SkinCheck CLI for training models, predicting and rendering reports",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to the console")

	logger := func() *logging.Logger {
		if !verbose {
			return logging.NewNop()
		}
		l, err := logging.New(logging.Options{Level: "DEBUG", Console: true})
		if err != nil {
			return logging.NewNop()
		}
		return l
	}

	rootCmd.AddCommand(
		newTrainCmd(logger),
		newDatasetCmd(logger),
		newModelsCmd(logger),
		newPredictCmd(logger),
		newReportCmd(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type loggerFunc func() *logging.Logger

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newTrainCmd(logger loggerFunc) *cobra.Command {
	var datasetPath, modelsDir string
	var rows int
	var svm bool
	tc := training.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the classifiers and write their artifacts plus registry.yaml",
		Long: `Fit logistic regression, random forest, gradient boosting and k-nearest
neighbours on the dataset, evaluate them on a hold-out split and write one JSON
artifact per model plus the registry manifest.

When the dataset file does not exist a synthetic cohort is generated.

Example: skincheck-cli train --dataset data/dataset.csv --models-dir data/models`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if datasetPath == "" {
				datasetPath = cfg.Paths.DatasetPath
			}
			if modelsDir == "" {
				modelsDir = cfg.Paths.ModelsDir
			}
			log := logger()

			gen := dataset.DefaultGeneratorConfig()
			gen.Seed = tc.Seed
			if rows > 0 {
				gen.Rows = rows
			}
			ds, err := dataset.Load(datasetPath, gen, log)
			if err != nil {
				return err
			}

			tc.IncludeSVM = svm
			results, err := training.NewTrainer(tc, log).Train(cmd.Context(), ds)
			if err != nil {
				return err
			}
			manifest := filepath.Join(modelsDir, "registry.yaml")
			if err := training.Save(modelsDir, manifest, results); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tACCURACY\tPRECISION\tRECALL\tF1\tROC AUC")
			for _, r := range results {
				m := r.Metrics
				fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n", r.Entry.Name, m.Accuracy, m.Precision, m.Recall, m.F1, m.AUC)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d models to %s\n", len(results), modelsDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "CSV or XLSX dataset (default from DATASET_PATH)")
	cmd.Flags().StringVar(&modelsDir, "models-dir", "", "Output directory (default from MODELS_DIR)")
	cmd.Flags().IntVar(&rows, "rows", 0, "Rows to generate when the dataset is missing")
	cmd.Flags().Int64Var(&tc.Seed, "seed", tc.Seed, "Random seed for deterministic operations")
	cmd.Flags().Float64Var(&tc.TestFraction, "test-fraction", tc.TestFraction, "Hold-out fraction")
	cmd.Flags().IntVar(&tc.Trees, "trees", tc.Trees, "Random forest size")
	cmd.Flags().IntVar(&tc.MaxDepth, "max-depth", tc.MaxDepth, "Random forest tree depth")
	cmd.Flags().IntVar(&tc.BoostRounds, "boost-rounds", tc.BoostRounds, "Gradient boosting rounds")
	cmd.Flags().IntVar(&tc.K, "k", tc.K, "Neighbours for knn")
	cmd.Flags().BoolVar(&svm, "svm", false, "Also fit a linear SVM (no probability output)")

	return cmd
}

func newDatasetCmd(logger loggerFunc) *cobra.Command {
	var datasetPath string

	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Summarise the dataset the dashboard and explanations use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if datasetPath == "" {
				datasetPath = cfg.Paths.DatasetPath
			}
			gen := dataset.DefaultGeneratorConfig()
			gen.Seed = cfg.Explain.Seed
			ds, err := dataset.Load(datasetPath, gen, logger())
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), ds)
		},
	}
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "CSV or XLSX dataset (default from DATASET_PATH)")
	return cmd
}

func writeSummary(out io.Writer, ds *dataset.Dataset) error {
	rate := 0.0
	if ds.Len() > 0 {
		rate = float64(ds.Positives()) / float64(ds.Len())
	}
	fmt.Fprintf(out, "source: %s\nrows: %d\npositive: %d (%.1f%%)\n\n", ds.Source, ds.Len(), ds.Positives(), rate*100)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tMEAN\tSTD\tMIN\tP25\tMEDIAN\tP75\tMAX")
	for _, s := range ds.Summarize() {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n", s.Field, s.Mean, s.StdDev, s.Min, s.P25, s.Median, s.P75, s.Max)
	}
	return w.Flush()
}

func openRegistry(ctx context.Context, cfg *config.Config, log *logging.Logger) (*modelstore.Manager, error) {
	m := modelstore.NewManager(cfg.Paths.ModelsDir, cfg.Paths.ModelRegistry, log)
	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func newModelsCmd(logger loggerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the registry loads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			registry, err := openRegistry(cmd.Context(), cfg, logger())
			if err != nil {
				return err
			}
			names, err := registry.Names()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tLABEL\tKIND\tPROBABILITY\tMETRICS")
			for _, name := range names {
				p, err := registry.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", name, registry.Label(name), p.Kind(), p.HasProba(), formatMetrics(p.Artifact().Metrics))
			}
			return w.Flush()
		},
	}
}

func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.3f", k, m[k])
	}
	return strings.Join(parts, " ")
}

// recordFlags collects Field=value pairs shared by predict and report.
type recordFlags struct {
	model  string
	fields map[string]string
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", prediction.DefaultModel, "Registry model name")
	cmd.Flags().StringToStringVarP(&f.fields, "set", "s", nil, "Record fields, e.g. --set Smoking=Yes,BMI=31")
}

func (f *recordFlags) record() (health.Record, error) {
	return health.Parse(health.MapSource(f.fields))
}

func newPredictCmd(logger loggerFunc) *cobra.Command {
	var rf recordFlags

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict one record and print the result as JSON",
		Long: `Predict one record with a registry model. Unset fields use their defaults.

Example: skincheck-cli predict -m random_forest --set Smoking=Yes,AgeCategory=60-64`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rec, err := rf.record()
			if err != nil {
				return err
			}
			registry, err := openRegistry(cmd.Context(), cfg, logger())
			if err != nil {
				return err
			}
			res, err := prediction.NewService(registry, nil, nil, nil, logger()).Predict(cmd.Context(), rf.model, rec, prediction.ChannelCLI)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	rf.register(cmd)
	return cmd
}

func newReportCmd(logger loggerFunc) *cobra.Command {
	var rf recordFlags
	var out string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the PDF explainability report for one record",
		Long: `Predict one record, compute SHAP and LIME attributions against a background
sample of the dataset and write the PDF report.

Example: skincheck-cli report -m log_reg --set Smoking=Yes -o report.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger()
			rec, err := rf.record()
			if err != nil {
				return err
			}
			registry, err := openRegistry(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			gen := dataset.DefaultGeneratorConfig()
			gen.Seed = cfg.Explain.Seed
			ds, err := dataset.Load(cfg.Paths.DatasetPath, gen, log)
			if err != nil {
				return err
			}
			explainer := explain.New(
				explain.SampleBackground(ds.Records, cfg.Explain.BackgroundSize, cfg.Explain.Seed),
				explain.Options{Samples: cfg.Explain.Samples, Seed: cfg.Explain.Seed},
			)
			reports, err := report.NewGenerator(log)
			if err != nil {
				return err
			}

			svc := prediction.NewService(registry, nil, explainer, reports, log)
			in, pdf, err := svc.Report(cmd.Context(), rf.model, rec, prediction.ChannelCLI)
			if err != nil {
				return err
			}
			if out == "" {
				out = report.Filename(in)
			}
			if err := os.WriteFile(out, pdf, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(pdf))
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default skincheck_report_<model>_<time>.pdf)")
	return cmd
}
