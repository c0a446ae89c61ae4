package worker

import "github.com/gofhir/fhirpath/types"

// Job is one resource to evaluate.
type Job struct {
	// ID is a caller-chosen identifier echoed in the result.
	ID string

	// Resource is the FHIR resource JSON to evaluate against.
	Resource []byte
}

// JobResult is the outcome of evaluating the pool's expression against one
// resource.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// Result is the evaluation output. Empty collections are normal
	// outcomes, not errors.
	Result types.Collection

	// Error is set when the resource JSON was malformed or evaluation
	// failed structurally.
	Error error

	// Duration is the evaluation time in nanoseconds.
	Duration int64
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	// Results contains all job results, in submission order for batch
	// evaluation.
	Results []*JobResult

	// TotalJobs is the number of jobs submitted.
	TotalJobs int

	// CompletedJobs is the number of jobs completed (including errors).
	CompletedJobs int

	// FailedJobs is the number of jobs that failed with an error.
	FailedJobs int

	// TotalDuration is the summed evaluation time in nanoseconds.
	TotalDuration int64
}

// HasErrors returns true if any job failed.
func (br *BatchResult) HasErrors() bool {
	for _, r := range br.Results {
		if r != nil && r.Error != nil {
			return true
		}
	}
	return false
}

// NonEmptyCount returns the number of jobs whose result collection was
// non-empty.
func (br *BatchResult) NonEmptyCount() int {
	count := 0
	for _, r := range br.Results {
		if r != nil && len(r.Result) > 0 {
			count++
		}
	}
	return count
}
