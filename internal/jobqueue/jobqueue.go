package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"

	"github.com/skillgrid/internal/batch"
	"github.com/skillgrid/internal/matrix"
	"github.com/skillgrid/internal/pipeline"
)

// ColumnRunArgs represents the arguments for a queued column run
type ColumnRunArgs struct {
	MatrixID  string `json:"matrix_id"`
	ColumnID  string `json:"column_id"`
	Mode      string `json:"mode"`
	Confirmed bool   `json:"confirmed"`
}

// Kind returns the job kind for River
func (ColumnRunArgs) Kind() string {
	return "column_run"
}

// ColumnRunner is what a worker drives; workspace.Workspace satisfies it.
type ColumnRunner interface {
	RunColumn(ctx context.Context, matrixID, columnID string, mode batch.Mode, opts batch.RunOptions) (batch.Summary, error)
}

// ColumnRunWorker handles column run jobs
type ColumnRunWorker struct {
	river.WorkerDefaults[ColumnRunArgs]
	runner ColumnRunner
	config *QueueConfig
}

func (w *ColumnRunWorker) Timeout(*river.Job[ColumnRunArgs]) time.Duration {
	return w.config.JobTimeout
}

// Work runs the column. Requests that can never succeed are cancelled
// rather than retried.
func (w *ColumnRunWorker) Work(ctx context.Context, job *river.Job[ColumnRunArgs]) error {
	args := job.Args
	logger := log.With().
		Int64("job", job.ID).
		Str("matrix", args.MatrixID).
		Str("column", args.ColumnID).
		Logger()

	mode, err := batch.ParseMode(args.Mode)
	if err != nil {
		return river.JobCancel(err)
	}
	logger.Info().Str("mode", string(mode)).Int("attempt", job.Attempt).Msg("Queued column run starting")

	sum, err := w.runner.RunColumn(ctx, args.MatrixID, args.ColumnID, mode, batch.RunOptions{Confirmed: args.Confirmed})
	if err != nil {
		if permanent(err) {
			logger.Warn().Err(err).Msg("Queued column run rejected")
			return river.JobCancel(err)
		}
		return fmt.Errorf("column run %s/%s: %w", args.MatrixID, args.ColumnID, err)
	}
	logger.Info().
		Str("run", sum.RunID).
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Bool("cancelled", sum.Cancelled).
		Msg("Queued column run finished")
	return nil
}

func permanent(err error) bool {
	return errors.Is(err, batch.ErrConfirmationRequired) ||
		errors.Is(err, pipeline.ErrNotSkillColumn) ||
		errors.Is(err, matrix.ErrColumnNotFound) ||
		errors.Is(err, matrix.ErrNotFound)
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *QueueConfig
}

// NewJobQueue creates a new job queue instance
func NewJobQueue(ctx context.Context, databaseURL string, runner ColumnRunner, config *QueueConfig) (*JobQueue, error) {
	if config == nil {
		config = DefaultQueueConfig()
	}

	// Create a pgx connection pool
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Create River client
	workers := river.NewWorkers()
	river.AddWorker(workers, &ColumnRunWorker{runner: runner, config: config})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  config.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

// Migrate applies River's schema migrations.
func (jq *JobQueue) Migrate(ctx context.Context) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(jq.pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("failed to migrate river schema: %w", err)
	}
	log.Debug().Int("applied", len(res.Versions)).Msg("River migrations applied")
	return nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers and closes the pool.
func (jq *JobQueue) Stop(ctx context.Context) error {
	defer jq.pool.Close()
	return jq.client.Stop(ctx)
}

// EnqueueColumnRun queues a column run and returns its job id.
func (jq *JobQueue) EnqueueColumnRun(ctx context.Context, matrixID, columnID string, mode batch.Mode, confirmed bool) (int64, error) {
	if mode.Destructive() && !confirmed {
		return 0, batch.ErrConfirmationRequired
	}
	res, err := jq.client.Insert(ctx, ColumnRunArgs{
		MatrixID:  matrixID,
		ColumnID:  columnID,
		Mode:      string(mode),
		Confirmed: confirmed,
	}, jq.config.InsertOpts())
	if err != nil {
		return 0, fmt.Errorf("failed to queue column run: %w", err)
	}
	return res.Job.ID, nil
}
