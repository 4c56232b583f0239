// Package training fits the shipped classifiers on a dataset and writes their
// artifacts plus the registry manifest.
package training

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"skincheck/adapters/modelstore"
	"skincheck/domain/pipeline"
	"skincheck/internal/dataset"
	"skincheck/internal/errors"
	"skincheck/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Config tunes every estimator.
type Config struct {
	Seed         int64
	TestFraction float64

	// logistic regression and linear SVM
	Epochs       int
	LearningRate float64
	L2           float64

	// trees
	Trees         int
	MaxDepth      int
	MinLeaf       int
	BoostRounds   int
	BoostLearning float64

	// knn
	K         int
	KNNSample int

	// IncludeSVM adds the linear SVM, which has no probability output.
	IncludeSVM bool
}

// DefaultConfig returns settings that fit the bundled dataset in seconds.
func DefaultConfig() Config {
	return Config{
		Seed:          42,
		TestFraction:  0.2,
		Epochs:        300,
		LearningRate:  0.1,
		L2:            0.001,
		Trees:         25,
		MaxDepth:      6,
		MinLeaf:       5,
		BoostRounds:   60,
		BoostLearning: 0.1,
		K:             15,
		KNNSample:     1500,
	}
}

// Result is one fitted model and its hold-out metrics.
type Result struct {
	Entry    modelstore.Entry
	Artifact *pipeline.Artifact
	Metrics  Metrics
}

// Trainer fits the model family.
type Trainer struct {
	config Config
	logger *logging.Logger
	now    func() time.Time
}

// NewTrainer creates a trainer.
func NewTrainer(config Config, logger *logging.Logger) *Trainer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Trainer{config: config, logger: logger.Named("training"), now: time.Now}
}

type fitFunc func(x [][]float64, y []float64, rng *rand.Rand) (*pipeline.Artifact, error)

type job struct {
	entry modelstore.Entry
	kind  string
	fit   fitFunc
}

func (t *Trainer) jobs() []job {
	entries := modelstore.DefaultManifest().Models
	jobs := []job{
		{entries[0], pipeline.KindLogisticRegression, t.fitLogistic},
		{entries[1], pipeline.KindRandomForest, t.fitForest},
		{entries[2], pipeline.KindGradientBoosting, t.fitBoosting},
		{entries[3], pipeline.KindKNN, t.fitKNN},
	}
	if t.config.IncludeSVM {
		jobs = append(jobs, job{
			modelstore.Entry{Name: "svm", Label: "Linear SVM", File: "pipeline_linear_svm.json"},
			pipeline.KindLinearSVM, t.fitSVM,
		})
	}
	return jobs
}

// Train fits every model concurrently on a shared split. Results follow
// manifest order.
func (t *Trainer) Train(ctx context.Context, ds *dataset.Dataset) ([]Result, error) {
	if ds == nil || ds.Len() < 10 {
		return nil, errors.InvalidInput("training needs at least 10 labelled rows")
	}
	if ds.Positives() == 0 || ds.Positives() == ds.Len() {
		return nil, errors.InvalidInput("training needs both classes")
	}

	trainIdx, testIdx := Split(ds.Len(), t.config.TestFraction, t.config.Seed)
	train, test := ds.Subset(trainIdx), ds.Subset(testIdx)
	spec := pipeline.FitPreprocess(train.Records)
	xTrain, yTrain := encodeAll(spec, train), targets(train.Labels)
	t.logger.Info("training on %d rows, evaluating on %d (%d features)", train.Len(), test.Len(), spec.Width())

	jobs := t.jobs()
	results := make([]Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			started := time.Now()
			rng := rand.New(rand.NewSource(t.config.Seed + int64(i)))
			a, err := j.fit(xTrain, yTrain, rng)
			if err != nil {
				return fmt.Errorf("fit %s: %w", j.entry.Name, err)
			}
			a.Format = pipeline.FormatVersion
			a.Name = j.entry.Name
			a.Kind = j.kind
			a.TrainedAt = t.now().UTC()
			a.Preprocess = spec

			p, err := pipeline.FromArtifact(a)
			if err != nil {
				return fmt.Errorf("validate %s: %w", j.entry.Name, err)
			}
			m := Evaluate(p, test)
			a.Metrics = m.Map()
			results[i] = Result{Entry: j.entry, Artifact: a, Metrics: m}
			t.logger.Info("%s fitted in %s: accuracy %.3f, f1 %.3f", j.entry.Name, time.Since(started).Round(time.Millisecond), m.Accuracy, m.F1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "training failed")
	}
	return results, nil
}

// Save writes every artifact into dir and the manifest to manifestPath.
func Save(dir, manifestPath string, results []Result) error {
	var manifest modelstore.Manifest
	for _, r := range results {
		if err := modelstore.SaveArtifact(dir, r.Entry.File, r.Artifact); err != nil {
			return errors.Wrapf(err, "failed to save %s", r.Entry.Name)
		}
		manifest.Models = append(manifest.Models, r.Entry)
	}
	if err := modelstore.WriteManifest(manifestPath, manifest); err != nil {
		return errors.Wrap(err, "failed to write manifest")
	}
	return nil
}

// Split shuffles row indices and holds out a fraction for evaluation.
func Split(n int, testFraction float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	cut := int(float64(n) * testFraction)
	if cut < 1 {
		cut = 1
	}
	if cut >= n {
		cut = n - 1
	}
	return perm[cut:], perm[:cut]
}

func encodeAll(spec pipeline.PreprocessSpec, ds *dataset.Dataset) [][]float64 {
	x := make([][]float64, ds.Len())
	for i, rec := range ds.Records {
		x[i] = spec.Encode(rec)
	}
	return x
}

func targets(labels []bool) []float64 {
	y := make([]float64, len(labels))
	for i, l := range labels {
		if l {
			y[i] = 1
		}
	}
	return y
}
