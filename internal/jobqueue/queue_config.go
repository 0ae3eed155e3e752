/*
Package jobqueue configuration - tunable parameters for durable column runs.

Column runs share one River queue served by a single worker, so runs for the
whole deployment stay strictly sequential, matching the in-process batch
runner. Retries are for infrastructure failures only: a run whose rows fail
validation still completes, with the failures recorded on the cells.
*/
package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueColumnRuns is the River queue column runs are inserted into.
const QueueColumnRuns = "column_runs"

// QueueConfig holds all tunable parameters for the job queue
type QueueConfig struct {
	MaxWorkers int           // concurrent column runs; keep at 1
	MaxRetries int           // attempts after the first
	JobTimeout time.Duration // upper bound for a whole column run
}

// DefaultQueueConfig returns the default configuration.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers: 1,
		MaxRetries: 3,
		JobTimeout: 2 * time.Hour,
	}
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	workers := c.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	return map[string]river.QueueConfig{
		QueueColumnRuns: {MaxWorkers: workers},
	}
}

// InsertOpts are the options every column run is inserted with.
func (c *QueueConfig) InsertOpts() *river.InsertOpts {
	return &river.InsertOpts{
		Queue:       QueueColumnRuns,
		MaxAttempts: c.MaxRetries + 1,
	}
}
