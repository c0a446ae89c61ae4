package worker

import (
	"context"
	"runtime"
	"strconv"
	"sync"

	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/types"
)

// BatchEvaluator applies one expression to a slice of resources and
// returns results in input order.
type BatchEvaluator struct {
	source  string
	opts    []fhirpath.Option
	workers int
}

// NewBatchEvaluator creates a batch evaluator for the given expression.
func NewBatchEvaluator(source string, workers int, opts ...fhirpath.Option) (*BatchEvaluator, error) {
	if _, err := fhirpath.New(opts...).Parse(source); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchEvaluator{
		source:  source,
		opts:    opts,
		workers: workers,
	}, nil
}

// EvaluateBatch evaluates the expression against every resource in
// parallel. Results[i] corresponds to resources[i].
func (be *BatchEvaluator) EvaluateBatch(ctx context.Context, resources [][]byte) *BatchResult {
	if len(resources) == 0 {
		return &BatchResult{Results: make([]*JobResult, 0)}
	}

	// small batches are not worth the goroutine setup
	if len(resources) <= 2 {
		return be.evaluateSequential(ctx, resources)
	}

	return be.evaluateParallel(ctx, resources)
}

func (be *BatchEvaluator) evaluateSequential(ctx context.Context, resources [][]byte) *BatchResult {
	engine := fhirpath.New(be.opts...)
	expr, parseErr := engine.Parse(be.source)

	results := make([]*JobResult, 0, len(resources))
	failed := 0

	for i, resource := range resources {
		select {
		case <-ctx.Done():
			return &BatchResult{
				Results:       results,
				TotalJobs:     len(resources),
				CompletedJobs: len(results),
				FailedJobs:    failed,
			}
		default:
		}

		var out types.Collection
		err := parseErr
		if err == nil {
			out, err = expr.Evaluate(resource)
		}
		if err != nil {
			failed++
		}
		results = append(results, &JobResult{
			ID:     strconv.Itoa(i),
			Result: out,
			Error:  err,
		})
	}

	return &BatchResult{
		Results:       results,
		TotalJobs:     len(resources),
		CompletedJobs: len(results),
		FailedJobs:    failed,
	}
}

func (be *BatchEvaluator) evaluateParallel(ctx context.Context, resources [][]byte) *BatchResult {
	numWorkers := be.workers
	if numWorkers > len(resources) {
		numWorkers = len(resources)
	}

	jobs := make(chan indexedResource, len(resources))
	resultsChan := make(chan *indexedResult, len(resources))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()

			// shared-nothing: every worker parses its own copy
			engine := fhirpath.New(be.opts...)
			expr, parseErr := engine.Parse(be.source)

			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				var out types.Collection
				err := parseErr
				if err == nil {
					out, err = expr.Evaluate(job.resource)
				}
				resultsChan <- &indexedResult{
					index:  job.index,
					result: out,
					err:    err,
				}
			}
		}()
	}

	go func() {
		for i, resource := range resources {
			select {
			case <-ctx.Done():
			case jobs <- indexedResource{index: i, resource: resource}:
			}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]*JobResult, len(resources))
	completed := 0
	failed := 0

	for ir := range resultsChan {
		results[ir.index] = &JobResult{
			ID:     strconv.Itoa(ir.index),
			Result: ir.result,
			Error:  ir.err,
		}
		completed++
		if ir.err != nil {
			failed++
		}
	}

	return &BatchResult{
		Results:       results,
		TotalJobs:     len(resources),
		CompletedJobs: completed,
		FailedJobs:    failed,
	}
}

type indexedResource struct {
	index    int
	resource []byte
}

type indexedResult struct {
	index  int
	result types.Collection
	err    error
}

// EvaluateBatchSimple is a convenience function for one-shot batch
// evaluation with default workers.
func EvaluateBatchSimple(ctx context.Context, source string, resources [][]byte) (*BatchResult, error) {
	be, err := NewBatchEvaluator(source, runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	return be.EvaluateBatch(ctx, resources), nil
}
