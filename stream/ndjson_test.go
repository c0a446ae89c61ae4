package stream

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/gofhir/fhirpath"
)

func ndjsonInput(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, `{"resourceType": "Patient", "id": "p%d", "name": [{"given": ["G%d"]}]}`, i, i)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func mustExpr(t *testing.T, source string) *fhirpath.Expression {
	t.Helper()
	expr, err := fhirpath.New().Parse(source)
	if err != nil {
		t.Fatalf("Parse(%q): %v", source, err)
	}
	return expr
}

func TestEvaluateStream_Order(t *testing.T) {
	ev := New(mustExpr(t, "name.given.first()"))
	results := ev.EvaluateStream(context.Background(), strings.NewReader(ndjsonInput(10)))

	i := 0
	for r := range results {
		if r.Error != nil {
			t.Fatalf("line %d: %v", r.Index, r.Error)
		}
		if r.Index != i {
			t.Fatalf("index = %d; want %d (sequential order)", r.Index, i)
		}
		if r.ResourceType != "Patient" || r.ResourceID != fmt.Sprintf("p%d", i) {
			t.Errorf("line %d metadata = %s/%s", i, r.ResourceType, r.ResourceID)
		}
		want := fmt.Sprintf("G%d", i)
		if len(r.Result) != 1 || r.Result[0].String() != want {
			t.Errorf("line %d = %v; want [%s]", i, r.Result, want)
		}
		i++
	}
	if i != 10 {
		t.Errorf("received %d results; want 10", i)
	}
}

func TestEvaluateStream_BlankLines(t *testing.T) {
	input := "\n" + ndjsonInput(2) + "   \n\t\n"
	ev := New(mustExpr(t, "id"))
	results := ev.EvaluateStream(context.Background(), strings.NewReader(input))

	count := 0
	for r := range results {
		if r.Error != nil {
			t.Fatalf("line %d: %v", r.Index, r.Error)
		}
		// blank lines do not consume indexes
		if r.Index != count {
			t.Errorf("index = %d; want %d", r.Index, count)
		}
		count++
	}
	if count != 2 {
		t.Errorf("received %d results; want 2", count)
	}
}

func TestEvaluateStream_MalformedLine(t *testing.T) {
	input := ndjsonInput(1) + "not json\n" + ndjsonInput(1)
	ev := New(mustExpr(t, "id"))
	results := ev.EvaluateStream(context.Background(), strings.NewReader(input))

	var errs int
	var ok int
	for r := range results {
		if r.Error != nil {
			errs++
			continue
		}
		ok++
	}
	if errs != 1 || ok != 2 {
		t.Errorf("errors = %d, ok = %d; want 1 error and 2 results", errs, ok)
	}
}

func TestEvaluateStreamParallel_PreservesOrder(t *testing.T) {
	const n = 200
	ev := New(mustExpr(t, "name.given.first()")).WithWorkerCount(8).WithBufferSize(16)
	results := ev.EvaluateStreamParallel(context.Background(), strings.NewReader(ndjsonInput(n)))

	i := 0
	for r := range results {
		if r.Error != nil {
			t.Fatalf("line %d: %v", r.Index, r.Error)
		}
		if r.Index != i {
			t.Fatalf("index = %d; want %d (results must be emitted in input order)", r.Index, i)
		}
		i++
	}
	if i != n {
		t.Errorf("received %d results; want %d", i, n)
	}
}

func TestAggregate(t *testing.T) {
	input := ndjsonInput(3) +
		`{"resourceType": "Patient", "id": "noname"}` + "\n" +
		"bad line\n"
	ev := New(mustExpr(t, "name.given.first()"))
	agg := Aggregate(ev.EvaluateStream(context.Background(), strings.NewReader(input)))

	if agg.TotalResources != 4 {
		t.Errorf("TotalResources = %d; want 4", agg.TotalResources)
	}
	if agg.NonEmpty != 3 {
		t.Errorf("NonEmpty = %d; want 3", agg.NonEmpty)
	}
	if !agg.HasErrors() || len(agg.ProcessingErrors) != 1 {
		t.Errorf("ProcessingErrors = %v; want one entry", agg.ProcessingErrors)
	}
	if len(agg.Results) != 3 {
		t.Errorf("Results = %v; want three indexed collections", agg.Results)
	}
	if got := agg.Summary(); !strings.Contains(got, "4 resources") {
		t.Errorf("Summary() = %q", got)
	}
}

func TestEvaluateStream_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := New(mustExpr(t, "id"))
	results := ev.EvaluateStream(ctx, strings.NewReader(ndjsonInput(5)))

	sawCancel := false
	for r := range results {
		if r.Error != nil {
			sawCancel = true
		}
	}
	if !sawCancel {
		t.Error("cancelled context should surface an error result")
	}
}
