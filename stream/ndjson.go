// Package stream applies one compiled FHIRPath expression to a stream of
// newline-delimited JSON resources without buffering the whole input.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/buger/jsonparser"

	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/types"
)

// maxLineSize bounds a single NDJSON line (16 MiB covers large resources).
const maxLineSize = 16 << 20

// EntryResult is the evaluation outcome for one resource in the stream.
type EntryResult struct {
	// Index is the zero-based line number in the stream. -1 marks a
	// stream-level error.
	Index int

	// ResourceType is the resourceType of the line, when present.
	ResourceType string

	// ResourceID is the id of the resource, when present.
	ResourceID string

	// Result is the evaluation output.
	Result types.Collection

	// Error is set if the line could not be processed.
	Error error
}

// Evaluator streams NDJSON resources through a parsed expression.
// Expressions are immutable, so a single Evaluator is safe for concurrent
// streams.
type Evaluator struct {
	expr        *fhirpath.Expression
	bufferSize  int
	workerCount int
}

// New creates a streaming evaluator for a parsed expression.
func New(expr *fhirpath.Expression) *Evaluator {
	return &Evaluator{
		expr:        expr,
		bufferSize:  100,
		workerCount: 4,
	}
}

// WithBufferSize sets the result channel buffer size.
func (v *Evaluator) WithBufferSize(size int) *Evaluator {
	if size > 0 {
		v.bufferSize = size
	}
	return v
}

// WithWorkerCount sets the number of parallel workers for
// EvaluateStreamParallel.
func (v *Evaluator) WithWorkerCount(count int) *Evaluator {
	if count > 0 {
		v.workerCount = count
	}
	return v
}

// EvaluateStream evaluates each NDJSON line in order, emitting results as
// lines are read. Blank lines are skipped without consuming an index.
func (v *Evaluator) EvaluateStream(ctx context.Context, r io.Reader) <-chan *EntryResult {
	results := make(chan *EntryResult, v.bufferSize)

	go func() {
		defer close(results)

		scanner := newScanner(r)
		index := 0
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				results <- &EntryResult{Index: index, Error: ctx.Err()}
				return
			default:
			}

			line := scanner.Bytes()
			if len(trimSpace(line)) == 0 {
				continue
			}

			// the scanner reuses its buffer; copy before handing off
			resource := make([]byte, len(line))
			copy(resource, line)

			results <- v.processLine(resource, index)
			index++
		}
		if err := scanner.Err(); err != nil {
			results <- &EntryResult{Index: -1, Error: fmt.Errorf("read stream: %w", err)}
		}
	}()

	return results
}

// EvaluateStreamParallel evaluates lines in parallel while preserving
// input order on the output channel.
func (v *Evaluator) EvaluateStreamParallel(ctx context.Context, r io.Reader) <-chan *EntryResult {
	results := make(chan *EntryResult, v.bufferSize)

	go func() {
		defer close(results)

		type workItem struct {
			index    int
			resource []byte
		}

		workChan := make(chan workItem, v.bufferSize)
		resultChan := make(chan *EntryResult, v.bufferSize)

		var wg sync.WaitGroup
		for i := 0; i < v.workerCount; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for work := range workChan {
					select {
					case <-ctx.Done():
						return
					default:
					}
					resultChan <- v.processLine(work.resource, work.index)
				}
			}()
		}

		// read lines and dispatch; total is sent once the reader is done
		totalChan := make(chan int, 1)
		go func() {
			scanner := newScanner(r)
			index := 0
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(trimSpace(line)) == 0 {
					continue
				}
				resource := make([]byte, len(line))
				copy(resource, line)

				select {
				case workChan <- workItem{index: index, resource: resource}:
					index++
				case <-ctx.Done():
					close(workChan)
					totalChan <- index
					return
				}
			}
			close(workChan)
			if err := scanner.Err(); err != nil {
				resultChan <- &EntryResult{Index: -1, Error: fmt.Errorf("read stream: %w", err)}
			}
			totalChan <- index
		}()

		go func() {
			wg.Wait()
			close(resultChan)
		}()

		// collect and reorder
		pending := make(map[int]*EntryResult)
		nextIndex := 0
		for result := range resultChan {
			if result.Index < 0 {
				results <- result
				continue
			}
			pending[result.Index] = result

			for {
				r, ok := pending[nextIndex]
				if !ok {
					break
				}
				results <- r
				delete(pending, nextIndex)
				nextIndex++
			}
		}

		total := <-totalChan
		for nextIndex < total {
			if r, ok := pending[nextIndex]; ok {
				results <- r
				delete(pending, nextIndex)
			}
			nextIndex++
		}
	}()

	return results
}

// processLine evaluates one resource line and decorates the result with
// resource metadata.
func (v *Evaluator) processLine(resource []byte, index int) *EntryResult {
	result := &EntryResult{Index: index}

	if rt, err := jsonparser.GetString(resource, "resourceType"); err == nil {
		result.ResourceType = rt
	}
	if id, err := jsonparser.GetString(resource, "id"); err == nil {
		result.ResourceID = id
	}

	out, err := v.expr.Evaluate(resource)
	if err != nil {
		result.Error = fmt.Errorf("line %d: %w", index, err)
		return result
	}
	result.Result = out
	return result
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	return scanner
}

func trimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && (b[start] == ' ' || b[start] == '\t' || b[start] == '\r') {
		start++
	}
	end := len(b)
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t' || b[end-1] == '\r') {
		end--
	}
	return b[start:end]
}

// StreamResult aggregates results from a streaming evaluation.
type StreamResult struct {
	// TotalResources is the number of lines evaluated.
	TotalResources int

	// NonEmpty is the count of resources whose result was non-empty.
	NonEmpty int

	// ProcessingErrors are errors raised while reading or evaluating.
	ProcessingErrors []error

	// Results maps line index to the evaluation output, for non-empty
	// results only.
	Results map[int]types.Collection
}

// Aggregate drains a result channel into a summary.
func Aggregate(results <-chan *EntryResult) *StreamResult {
	agg := &StreamResult{
		Results: make(map[int]types.Collection),
	}

	for result := range results {
		if result.Error != nil {
			agg.ProcessingErrors = append(agg.ProcessingErrors, result.Error)
			continue
		}
		if result.Index < 0 {
			continue
		}

		agg.TotalResources++
		if len(result.Result) > 0 {
			agg.NonEmpty++
			agg.Results[result.Index] = result.Result
		}
	}

	return agg
}

// HasErrors returns true if any line failed to process.
func (r *StreamResult) HasErrors() bool {
	return len(r.ProcessingErrors) > 0
}

// Summary returns a human-readable summary of the run.
func (r *StreamResult) Summary() string {
	return fmt.Sprintf(
		"Evaluated %d resources: %d with matches, %d processing errors",
		r.TotalResources,
		r.NonEmpty,
		len(r.ProcessingErrors),
	)
}
