package update_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/update"
)

func TestInScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		u      update.Update
		active string
		want   bool
	}{
		{"status for active", update.StatusChanged{JobID: "j1", Status: job.StatusRunning}, "j1", true},
		{"status for other", update.StatusChanged{JobID: "j0", Status: job.StatusRunning}, "j1", false},
		{"chunk for other", update.DocumentEditing{JobID: "j0", ContentChunk: "x"}, "j1", false},
		{"completed for other", update.Completed{JobID: "j0"}, "j1", false},
		{"followup started for other", update.FollowUpStarted{JobID: "j0"}, "j1", false},
		{"followup completed rotated id", update.FollowUpCompleted{JobID: "j2"}, "j1", true},
		{"nothing active", update.FollowUpStarted{JobID: "j1"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := update.InScope(tt.u, tt.active); got != tt.want {
				t.Errorf("InScope = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJSONDecodeProducerPayloads(t *testing.T) {
	t.Parallel()

	report := job.Report{
		Title:            "Will BTC close above 100k?",
		ExecutiveSummary: "Likely.",
		Sections:         []job.Section{{Heading: "Macro", Content: "Rates."}},
		KeyFactors:       []job.KeyFactor{{Factor: "ETF flows", Impact: "bullish", Confidence: "high"}},
		Sources:          []string{"https://example.com"},
	}

	tests := []struct {
		name string
		in   string
		want update.Update
	}{
		{
			"status_changed",
			`{"type":"status_changed","job_id":"j1","status":"running"}`,
			update.StatusChanged{JobID: "j1", Status: job.StatusRunning},
		},
		{
			"status_changed pipeline phase",
			`{"type":"status_changed","job_id":"j1","status":"searching"}`,
			update.StatusChanged{JobID: "j1", Status: job.StatusRunning, Phase: "searching"},
		},
		{
			"progress_update",
			`{"type":"progress_update","job_id":"j1","progress":{"current_step":"search","total_steps":4,"completed_steps":2,"searches_completed":3,"searches_total":8}}`,
			update.ProgressUpdate{JobID: "j1", Progress: job.Progress{CurrentStep: "search", TotalSteps: 4, CompletedSteps: 2, SearchesCompleted: 3, SearchesTotal: 8}},
		},
		{
			"completed",
			`{"type":"completed","job_id":"j1","report":{"title":"Will BTC close above 100k?","executive_summary":"Likely.","sections":[{"heading":"Macro","content":"Rates."}],"key_factors":[{"factor":"ETF flows","impact":"bullish","confidence":"high"}],"confidence_assessment":"","sources":["https://example.com"]}}`,
			update.Completed{JobID: "j1", Report: report},
		},
		{
			"failed",
			`{"type":"failed","job_id":"j1","error":"search quota exhausted"}`,
			update.Failed{JobID: "j1", Error: "search quota exhausted"},
		},
		{
			"followup_started",
			`{"type":"followup_started","job_id":"j1"}`,
			update.FollowUpStarted{JobID: "j1"},
		},
		{
			"document_editing",
			`{"type":"document_editing","job_id":"j1","content_chunk":"## New"}`,
			update.DocumentEditing{JobID: "j1", ContentChunk: "## New"},
		},
	}

	codec := update.JSONCodec{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Decode([]byte(tt.in))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want error
	}{
		{"unknown type", `{"type":"exploded","job_id":"j1"}`, update.ErrUnknownUpdate},
		{"missing job id", `{"type":"failed","error":"x"}`, update.ErrMalformedUpdate},
		{"bad status", `{"type":"status_changed","job_id":"j1","status":"paused"}`, update.ErrMalformedUpdate},
		{"completed without report", `{"type":"completed","job_id":"j1"}`, update.ErrMalformedUpdate},
		{"progress without progress", `{"type":"progress_update","job_id":"j1"}`, update.ErrMalformedUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := update.JSONCodec{}.Decode([]byte(tt.in))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := (update.JSONCodec{}).Decode([]byte(`{not json`)); err == nil {
		t.Error("expected syntax error")
	}
}

func TestCodecsAgree(t *testing.T) {
	t.Parallel()

	updates := []update.Update{
		update.StatusChanged{JobID: "j1", Status: job.StatusRunning, Phase: "analyzing"},
		update.ProgressUpdate{JobID: "j1", Progress: job.Progress{TotalSteps: 2, CompletedSteps: 1}},
		update.FollowUpCompleted{JobID: "j2", Report: job.Report{Title: "v2", Sources: []string{"s"}}},
	}

	for _, name := range []string{update.CodecNameJSON, update.CodecNameMsgpack} {
		codec := update.GetCodec(name)
		if codec.Name() != name {
			t.Fatalf("GetCodec(%q).Name() = %q", name, codec.Name())
		}
		for _, u := range updates {
			data, err := codec.Encode(u)
			if err != nil {
				t.Fatalf("%s Encode(%s): %v", name, u.Kind(), err)
			}
			got, err := codec.Decode(data)
			if err != nil {
				t.Fatalf("%s Decode(%s): %v", name, u.Kind(), err)
			}
			if !reflect.DeepEqual(got, u) {
				t.Errorf("%s: got %#v, want %#v", name, got, u)
			}
		}
	}
}

func TestGetCodecDefaultsToJSON(t *testing.T) {
	if update.GetCodec("protobuf").Name() != update.CodecNameJSON {
		t.Error("unknown codec name should fall back to JSON")
	}
}
