package orbit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/navtrace/navtrace/internal/rinex"
)

// batchJob is a unit of work for the worker pool: one satellite's full run.
type batchJob struct {
	prn     string
	records []rinex.EphemerisRecord
	dt      float64
}

// BatchResult is the output of one satellite's propagation run.
type BatchResult struct {
	PRN     string
	Samples []PositionSample
	Err     error
}

// WorkerPool runs per-satellite propagation in parallel. Satellites share no
// state once parsed, so the only coordination is the job and result channels.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// ComputeBatch propagates every satellite in the dataset over its own toe
// validity window at dt-second cadence. Results arrive in completion order;
// satellites whose sequence fails to sample carry the error in their result.
func (wp *WorkerPool) ComputeBatch(ctx context.Context, ds *rinex.Dataset, dt float64) []BatchResult {
	prns := ds.PRNs()
	if len(prns) == 0 {
		return nil
	}

	jobs := make(chan batchJob, wp.workers*2)
	results := make(chan BatchResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := computeSingle(job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, prn := range prns {
			job := batchJob{prn: prn, records: ds.Records(prn), dt: dt}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]BatchResult, 0, len(prns))
	for result := range results {
		if result.Err != nil {
			wp.logger.Warn("satellite run failed", "prn", result.PRN, "error", result.Err)
		}
		out = append(out, result)
	}
	return out
}

// computeSingle runs one satellite over its own validity window.
func computeSingle(job batchJob) BatchResult {
	minToe, maxToe := TimeBounds(job.records)
	epochs, err := Sequence(minToe, maxToe, job.dt)
	if err != nil {
		return BatchResult{PRN: job.prn, Err: err}
	}
	return BatchResult{
		PRN:     job.prn,
		Samples: ComputePositions(job.records, epochs),
	}
}
