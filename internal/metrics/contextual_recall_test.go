package metrics

import (
	"context"
	"strings"
	"testing"
)

func TestContextualRecall_Measure(t *testing.T) {
	t.Parallel()

	client, mock := newJudge(t)
	mock.AddResponse("attributed to the nodes of retrieval contexts", `{
		"verdicts": [
			{"verdict": "yes", "reason": "The 1st node states the refund window."},
			{"verdict": "no", "reason": "No node mentions support response times."}
		]
	}`)
	mock.AddResponse("contextual recall score", `{"reason": "The score is 0.50 because support times are unbacked."}`)

	metric := NewContextualRecall(client)
	got, err := metric.Measure(context.Background(), LLMTestCase{
		ExpectedOutput:   "Refunds are available for 30 days. Support answers within 4 hours.",
		RetrievalContext: []string{"All plans come with a 30-day refund window."},
	})
	if err != nil {
		t.Fatalf("Measure() unexpected error: %v", err)
	}

	if got.Score != 0.5 {
		t.Errorf("Score = %v, want 0.5", got.Score)
	}
	if !got.Passed {
		t.Error("Passed = false, want true at threshold 0.5")
	}
	if !strings.Contains(got.Reason, "The score is 0.50") {
		t.Errorf("Reason = %q, want the scored reason", got.Reason)
	}
}

func TestContextualRecall_FullAttribution(t *testing.T) {
	t.Parallel()

	client, mock := newJudge(t)
	mock.AddResponse("attributed to the nodes of retrieval contexts", `{
		"verdicts": [{"verdict": "yes", "reason": "Backed by the 1st node."}]
	}`)
	mock.AddResponse("contextual recall score", `{"reason": "The score is 1.00 because every sentence is backed."}`)

	metric := NewContextualRecall(client)
	got, err := metric.Measure(context.Background(), LLMTestCase{
		ExpectedOutput:   "Refunds last 30 days.",
		RetrievalContext: []string{"All plans come with a 30-day refund window."},
	})
	if err != nil {
		t.Fatalf("Measure() unexpected error: %v", err)
	}
	if got.Score != 1 {
		t.Errorf("Score = %v, want 1", got.Score)
	}
}

func TestContextualRecall_MissingParams(t *testing.T) {
	t.Parallel()

	client, _ := newJudge(t)
	metric := NewContextualRecall(client)

	if _, err := metric.Measure(context.Background(), LLMTestCase{RetrievalContext: []string{"c"}}); err == nil {
		t.Error("Measure() expected error without expected output")
	}
	if _, err := metric.Measure(context.Background(), LLMTestCase{ExpectedOutput: "a"}); err == nil {
		t.Error("Measure() expected error without retrieval context")
	}
}
