package worker

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gofhir/hl7validator/pkg/registry"
	"github.com/gofhir/hl7validator/pkg/validator"
)

// ValidateFunc validates a single message. (*validator.Validator).Validate
// has this signature.
type ValidateFunc func(ctx context.Context, raw []byte, opts ...validator.ValidateOption) (*validator.Result, error)

// BatchValidator runs validation jobs on a bounded number of goroutines.
type BatchValidator struct {
	validate ValidateFunc
	workers  int
}

// NewBatchValidator creates a new batch validator. If workers <= 0, it
// defaults to runtime.NumCPU().
func NewBatchValidator(validate ValidateFunc, workers int) *BatchValidator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchValidator{
		validate: validate,
		workers:  workers,
	}
}

// Workers returns the parallelism of the batch validator.
func (bv *BatchValidator) Workers() int {
	return bv.workers
}

// ValidateBatch validates jobs in parallel. A malformed message only fails
// its own job. A schema error stops the batch and is returned; jobs that
// did not run are left nil in Results.
func (bv *BatchValidator) ValidateBatch(ctx context.Context, jobs []Job) (*BatchResult, error) {
	start := time.Now()
	results := make([]*JobResult, len(jobs))
	var completed, failed atomic.Int64

	if err := ctx.Err(); err != nil {
		return &BatchResult{Results: results, TotalJobs: len(jobs)}, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bv.workers)

	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			jobStart := time.Now()
			result, err := bv.validate(ctx, job.Data, job.Options...)
			results[i] = &JobResult{
				Name:     job.Name,
				Result:   result,
				Error:    err,
				Duration: time.Since(jobStart).Nanoseconds(),
			}
			completed.Add(1)
			if err != nil {
				failed.Add(1)
			}
			if errors.Is(err, registry.ErrSchema) {
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	return &BatchResult{
		Results:       results,
		TotalJobs:     len(jobs),
		CompletedJobs: int(completed.Load()),
		FailedJobs:    int(failed.Load()),
		TotalDuration: time.Since(start).Nanoseconds(),
	}, err
}

// ValidateBatchSimple is a convenience function for batch validation.
func ValidateBatchSimple(ctx context.Context, validate ValidateFunc, jobs []Job) (*BatchResult, error) {
	return NewBatchValidator(validate, runtime.NumCPU()).ValidateBatch(ctx, jobs)
}
