package worker

import (
	"github.com/gofhir/hl7validator/pkg/validator"
)

// Job is one message to validate.
type Job struct {
	// Name identifies the message, usually its file name.
	Name string

	// Data is the raw message, MLLP framing allowed.
	Data []byte

	// Options are passed to the Validate call of this job.
	Options []validator.ValidateOption
}

// JobResult represents the result of a validation job.
type JobResult struct {
	// Name matches the Job.Name that produced this result.
	Name string

	// Result contains the validation result; nil when Error is set.
	Result *validator.Result

	// Error is set when the message could not be validated at all.
	Error error

	// Duration is the time taken to validate (in nanoseconds).
	Duration int64
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	// Results holds one entry per job, in job order.
	Results []*JobResult

	// TotalJobs is the number of jobs submitted.
	TotalJobs int

	// CompletedJobs is the number of jobs completed (including errors).
	CompletedJobs int

	// FailedJobs is the number of jobs that failed with an error.
	FailedJobs int

	// TotalDuration is the wall time of the batch (in nanoseconds).
	TotalDuration int64
}

// HasErrors returns true if any job failed or has validation errors.
func (br *BatchResult) HasErrors() bool {
	for _, r := range br.Results {
		if r == nil {
			continue
		}
		if r.Error != nil {
			return true
		}
		if r.Result != nil && r.Result.HasErrors() {
			return true
		}
	}
	return false
}

// ErrorCount returns the total number of validation errors across all results.
func (br *BatchResult) ErrorCount() int {
	count := 0
	for _, r := range br.Results {
		if r != nil && r.Result != nil {
			count += r.Result.ErrorCount()
		}
	}
	return count
}
