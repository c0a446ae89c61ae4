// Package worker provides a worker pool for evaluating one FHIRPath
// expression against many resources in parallel.
//
// Every worker owns a private engine and parsed expression, so the pool
// is shared-nothing: no locks are taken on the evaluation path.
//
// Example usage:
//
//	// Create a worker pool with 4 workers
//	pool, err := worker.NewPool("Patient.name.given", 4)
//	if err != nil {
//	    // malformed expression
//	}
//	defer pool.Close()
//
//	// Submit jobs
//	for id, resource := range resources {
//	    pool.Submit(worker.Job{
//	        ID:       id,
//	        Resource: resource,
//	    })
//	}
//
//	// Collect results
//	for result := range pool.Results() {
//	    if result.Error != nil {
//	        // Handle error
//	    }
//	    // Process result.Result
//	}
package worker
