package container

import (
	"context"
	"fmt"
	"time"

	"skincheck/adapters/memory"
	"skincheck/adapters/modelstore"
	"skincheck/adapters/postgres"
	"skincheck/internal/config"
	"skincheck/internal/dashboard"
	"skincheck/internal/dataset"
	"skincheck/internal/explain"
	"skincheck/internal/logging"
	"skincheck/internal/migration"
	"skincheck/internal/prediction"
	"skincheck/internal/report"
	"skincheck/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *logging.Logger

	// Infrastructure
	DB *sqlx.DB

	// Data
	Dataset *dataset.Dataset

	// Repositories and registries
	Models      ports.ModelRegistry
	Predictions ports.PredictionRepository

	// Services
	Explainer  *explain.Explainer
	Reports    *report.Generator
	Prediction *prediction.Service
	Dashboard  *dashboard.App
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *logging.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Container{Config: cfg, Logger: logger}, nil
}

// Init builds every component. A configured but unreachable database is
// fatal; without DATABASE_URL the prediction log stays in memory.
func (c *Container) Init(ctx context.Context) error {
	if err := c.initRepositories(ctx); err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	if err := c.initData(); err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	if err := c.initModels(ctx); err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.Logger.Info("container initialized (%d dataset rows, database %t)", c.Dataset.Len(), c.DB != nil)
	return nil
}

// initRepositories picks the prediction log backend
func (c *Container) initRepositories(ctx context.Context) error {
	if !c.Config.Database.Enabled() {
		c.Predictions = memory.NewPredictionRepository()
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := sqlx.ConnectContext(connectCtx, "postgres", c.Config.Database.URL)
	if err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return err
	}
	c.DB = db
	c.Predictions = postgres.NewPredictionRepository(db)
	return nil
}

func (c *Container) initData() error {
	gen := dataset.DefaultGeneratorConfig()
	gen.Seed = c.Config.Explain.Seed
	ds, err := dataset.Load(c.Config.Paths.DatasetPath, gen, c.Logger)
	if err != nil {
		return err
	}
	c.Dataset = ds
	return nil
}

// initModels loads the registry eagerly so a bad manifest surfaces at startup
func (c *Container) initModels(ctx context.Context) error {
	m := modelstore.NewManager(c.Config.Paths.ModelsDir, c.Config.Paths.ModelRegistry, c.Logger)
	if err := m.Load(ctx); err != nil {
		return err
	}
	c.Models = m
	return nil
}

func (c *Container) initServices() error {
	background := explain.SampleBackground(c.Dataset.Records, c.Config.Explain.BackgroundSize, c.Config.Explain.Seed)
	c.Explainer = explain.New(background, explain.Options{
		Samples: c.Config.Explain.Samples,
		Seed:    c.Config.Explain.Seed,
	})

	reports, err := report.NewGenerator(c.Logger)
	if err != nil {
		return err
	}
	c.Reports = reports
	c.Prediction = prediction.NewService(c.Models, c.Predictions, c.Explainer, c.Reports, c.Logger)

	app, err := dashboard.NewApp(dashboard.Config{BasePath: "/dashboard"}, c.Dataset, c.Logger)
	if err != nil {
		return err
	}
	c.Dashboard = app
	return nil
}

// Shutdown releases held resources
func (c *Container) Shutdown() error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	// console sinks report EINVAL on sync; the file sink is written through
	_ = c.Logger.Sync()
	return nil
}
