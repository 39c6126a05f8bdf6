package validation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/star/dopplertrack/internal/metrics"
	"github.com/star/dopplertrack/internal/propagation"
	"github.com/star/dopplertrack/internal/rangerate"
)

// sampleJob is a unit of work for the worker pool.
type sampleJob struct {
	index int
	at    time.Time
}

// sampleResult is the output of a single sample.
type sampleResult struct {
	index int
	row   Row
	err   error
}

// workerPool evaluates independent sample instants on a fixed number of goroutines.
// The estimator carries no mutable state, so workers share it.
type workerPool struct {
	workers int
	est     *rangerate.Estimator
	dt      time.Duration
	logger  *slog.Logger
}

func newWorkerPool(workers int, est *rangerate.Estimator, dt time.Duration, logger *slog.Logger) *workerPool {
	if workers < 1 {
		workers = 1
	}
	return &workerPool{workers: workers, est: est, dt: dt, logger: logger}
}

// run evaluates every instant. Rows come back indexed like times; failed
// samples are logged and marked invalid, never fatal.
func (wp *workerPool) run(ctx context.Context, times []time.Time) ([]Row, error) {
	if len(times) == 0 {
		return nil, nil
	}

	jobs := make(chan sampleJob, wp.workers*2)
	results := make(chan sampleResult, wp.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				row, err := wp.sample(job.at)
				select {
				case results <- sampleResult{index: job.index, row: row, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, at := range times {
			select {
			case jobs <- sampleJob{index: i, at: at}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	rows := make([]Row, len(times))
	for result := range results {
		row := result.row
		row.Time = times[result.index]
		if result.err != nil {
			row.Err = result.err
			wp.logger.Debug("validation sample skipped",
				"time", row.Time,
				"error", result.err,
			)
		}
		rows[result.index] = row
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// sample computes both strategies at one instant. A position-only provider
// yields a finite-difference-only row.
func (wp *workerPool) sample(at time.Time) (Row, error) {
	fd, err := wp.est.Estimate(at, rangerate.FiniteDifferenceStrategy(wp.dt))
	if err != nil {
		metrics.RecordSample(rangerate.FiniteDifferenceStrategy(wp.dt).Label(), outcome(err))
		return Row{}, err
	}
	metrics.RecordSample(fd.Strategy.Label(), metrics.OutcomeOK)

	row := Row{
		RangeM:           fd.RangeM,
		ElevationDeg:     fd.ElevationDeg(),
		AzimuthDeg:       fd.AzimuthDeg(),
		FiniteDiffRateMS: fd.RangeRateMS,
		Valid:            true,
	}

	a, err := wp.est.Estimate(at, rangerate.AnalyticStrategy())
	switch {
	case err == nil:
		row.AnalyticRateMS = a.RangeRateMS
		row.HasAnalytic = true
		metrics.RecordSample(a.Strategy.Label(), metrics.OutcomeOK)
	case errors.Is(err, rangerate.ErrNoVelocity):
	default:
		metrics.RecordSample(rangerate.AnalyticStrategy().Label(), outcome(err))
		return Row{}, err
	}
	return row, nil
}

func outcome(err error) string {
	if errors.Is(err, propagation.ErrUnavailable) {
		return metrics.OutcomeUnavailable
	}
	return metrics.OutcomeError
}
