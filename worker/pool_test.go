package worker

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/gofhir/fhirpath"
)

func patientResource(id string, given string) []byte {
	return []byte(fmt.Sprintf(`{
	  "resourceType": "Patient",
	  "id": %q,
	  "name": [{"given": [%q]}]
	}`, id, given))
}

func TestPool_Basic(t *testing.T) {
	pool, err := NewPool("name.given.first()", 4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	const jobs = 20
	go func() {
		for i := 0; i < jobs; i++ {
			id := strconv.Itoa(i)
			pool.Submit(Job{ID: id, Resource: patientResource(id, "Given"+id)})
		}
	}()

	seen := make(map[string]string, jobs)
	for i := 0; i < jobs; i++ {
		r := <-pool.Results()
		if r.Error != nil {
			t.Fatalf("job %s: %v", r.ID, r.Error)
		}
		if len(r.Result) != 1 {
			t.Fatalf("job %s result = %v; want one element", r.ID, r.Result)
		}
		seen[r.ID] = r.Result[0].String()
	}
	pool.Close()

	for i := 0; i < jobs; i++ {
		id := strconv.Itoa(i)
		if seen[id] != "Given"+id {
			t.Errorf("job %s = %q; want %q", id, seen[id], "Given"+id)
		}
	}

	stats := pool.Stats()
	if stats.JobsSubmitted != jobs || stats.JobsCompleted != jobs {
		t.Errorf("stats = %+v; want %d submitted and completed", stats, jobs)
	}
}

func TestPool_InvalidExpression(t *testing.T) {
	if _, err := NewPool("1 + + ", 2); err == nil {
		t.Fatal("NewPool with malformed expression should fail up front")
	}
}

func TestPool_CloseAndWait(t *testing.T) {
	pool, err := NewPool("name.exists()", 2)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	for i := 0; i < 5; i++ {
		id := strconv.Itoa(i)
		if !pool.Submit(Job{ID: id, Resource: patientResource(id, "A")}) {
			t.Fatalf("Submit(%s) refused", id)
		}
	}
	br := pool.CloseAndWait()
	if br.CompletedJobs != 5 {
		t.Errorf("CompletedJobs = %d; want 5", br.CompletedJobs)
	}
	if br.HasErrors() {
		t.Error("no job should have failed")
	}
	if got := br.NonEmptyCount(); got != 5 {
		t.Errorf("NonEmptyCount = %d; want 5", got)
	}

	// the pool refuses work after close
	if pool.Submit(Job{ID: "late", Resource: patientResource("late", "A")}) {
		t.Error("Submit after close should return false")
	}
}

func TestPool_MalformedResource(t *testing.T) {
	pool, err := NewPool("id", 1)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	pool.Submit(Job{ID: "bad", Resource: []byte(`{"resourceType":`)})
	r := <-pool.Results()
	pool.Close()
	if r.Error == nil {
		t.Error("malformed resource JSON should produce a job error")
	}
}

func TestBatchEvaluator_Order(t *testing.T) {
	// enough resources to take the parallel path
	const n = 16
	resources := make([][]byte, n)
	for i := range resources {
		resources[i] = patientResource(strconv.Itoa(i), "G"+strconv.Itoa(i))
	}

	be, err := NewBatchEvaluator("name.given.first()", 4)
	if err != nil {
		t.Fatalf("NewBatchEvaluator: %v", err)
	}
	br := be.EvaluateBatch(context.Background(), resources)

	if br.TotalJobs != n || br.CompletedJobs != n || br.FailedJobs != 0 {
		t.Fatalf("batch = %d/%d/%d; want %d/%d/0", br.TotalJobs, br.CompletedJobs, br.FailedJobs, n, n)
	}
	// results come back in input order regardless of worker scheduling
	for i, r := range br.Results {
		if r == nil {
			t.Fatalf("Results[%d] missing", i)
		}
		if r.ID != strconv.Itoa(i) {
			t.Errorf("Results[%d].ID = %s", i, r.ID)
		}
		want := "G" + strconv.Itoa(i)
		if len(r.Result) != 1 || r.Result[0].String() != want {
			t.Errorf("Results[%d] = %v; want [%s]", i, r.Result, want)
		}
	}
}

func TestBatchEvaluator_SmallBatch(t *testing.T) {
	resources := [][]byte{
		patientResource("0", "A"),
		patientResource("1", "B"),
	}
	br, err := EvaluateBatchSimple(context.Background(), "name.given.first()", resources)
	if err != nil {
		t.Fatalf("EvaluateBatchSimple: %v", err)
	}
	if len(br.Results) != 2 {
		t.Fatalf("Results = %d; want 2", len(br.Results))
	}
	if br.Results[0].Result[0].String() != "A" || br.Results[1].Result[0].String() != "B" {
		t.Errorf("results out of order: %v, %v", br.Results[0].Result, br.Results[1].Result)
	}
}

func TestBatchEvaluator_Empty(t *testing.T) {
	be, err := NewBatchEvaluator("id", 2)
	if err != nil {
		t.Fatalf("NewBatchEvaluator: %v", err)
	}
	br := be.EvaluateBatch(context.Background(), nil)
	if len(br.Results) != 0 || br.TotalJobs != 0 {
		t.Errorf("empty batch = %+v; want no results", br)
	}
}

func TestBatchEvaluator_MixedErrors(t *testing.T) {
	resources := [][]byte{
		patientResource("0", "A"),
		[]byte(`not json`),
		patientResource("2", "C"),
		[]byte(`{"unterminated":`),
	}
	be, err := NewBatchEvaluator("name.given.first()", 2, fhirpath.WithFastPath(false))
	if err != nil {
		t.Fatalf("NewBatchEvaluator: %v", err)
	}
	br := be.EvaluateBatch(context.Background(), resources)
	if br.FailedJobs != 2 {
		t.Errorf("FailedJobs = %d; want 2", br.FailedJobs)
	}
	if !br.HasErrors() {
		t.Error("HasErrors() = false; want true")
	}
	if br.Results[0].Error != nil || br.Results[2].Error != nil {
		t.Error("valid resources should evaluate cleanly")
	}
	if br.Results[1].Error == nil || br.Results[3].Error == nil {
		t.Error("malformed resources should carry errors")
	}
}
