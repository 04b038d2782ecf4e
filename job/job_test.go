package job_test

import (
	"testing"

	"github.com/xraph/researchsync/job"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in        string
		want      job.Status
		wantPhase string
		wantErr   bool
	}{
		{"pending", job.StatusPending, "", false},
		{"running", job.StatusRunning, "", false},
		{"completed", job.StatusCompleted, "", false},
		{"failed", job.StatusFailed, "", false},
		{"Searching", job.StatusRunning, "searching", false},
		{"synthesizing", job.StatusRunning, "synthesizing", false},
		{"cancelled", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, phase, err := job.ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want || phase != tt.wantPhase {
				t.Errorf("ParseStatus(%q) = (%q, %q), want (%q, %q)", tt.in, got, phase, tt.want, tt.wantPhase)
			}
		})
	}
}

func TestStatusOrder(t *testing.T) {
	if !(job.StatusPending.Rank() < job.StatusRunning.Rank()) {
		t.Error("pending should rank below running")
	}
	if !(job.StatusRunning.Rank() < job.StatusCompleted.Rank()) {
		t.Error("running should rank below completed")
	}
	if job.StatusCompleted.Rank() != job.StatusFailed.Rank() {
		t.Error("terminal statuses should share a rank")
	}
	for _, s := range []job.Status{job.StatusCompleted, job.StatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []job.Status{job.StatusPending, job.StatusRunning} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestProgressFraction(t *testing.T) {
	tests := []struct {
		p    job.Progress
		want float64
	}{
		{job.Progress{}, 0},
		{job.Progress{TotalSteps: 4, CompletedSteps: 2}, 0.5},
		{job.Progress{TotalSteps: 5, CompletedSteps: 2}, 0.4},
		{job.Progress{TotalSteps: 2, CompletedSteps: 3}, 1},
	}
	for _, tt := range tests {
		if got := tt.p.Fraction(); got != tt.want {
			t.Errorf("Fraction(%+v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := &job.ResearchJob{
		ID:       "j1",
		Status:   job.StatusRunning,
		Progress: &job.Progress{TotalSteps: 3, CompletedSteps: 1},
		Report: &job.Report{
			Title:    "t",
			Sections: []job.Section{{Heading: "h", Content: "c"}},
			Sources:  []string{"a"},
		},
	}
	c := orig.Clone()
	c.Progress.CompletedSteps = 3
	c.Report.Sections[0].Content = "changed"
	c.Report.Sources[0] = "b"

	if orig.Progress.CompletedSteps != 1 {
		t.Error("progress shared between clone and original")
	}
	if orig.Report.Sections[0].Content != "c" || orig.Report.Sources[0] != "a" {
		t.Error("report shared between clone and original")
	}

	var nilJob *job.ResearchJob
	if nilJob.Clone() != nil {
		t.Error("nil job should clone to nil")
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in      string
		want    job.Platform
		wantErr bool
	}{
		{"kalshi", job.PlatformKalshi, false},
		{"K", job.PlatformKalshi, false},
		{"Polymarket", job.PlatformPolymarket, false},
		{"poly", job.PlatformPolymarket, false},
		{"p", job.PlatformPolymarket, false},
		{"manifold", "", true},
	}
	for _, tt := range tests {
		got, err := job.ParsePlatform(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePlatform(%q) = (%q, %v), want (%q, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestKey(t *testing.T) {
	k := job.Key{Platform: job.PlatformKalshi, MarketID: "KXBTC"}
	if k.String() != "kalshi/KXBTC" {
		t.Errorf("String() = %q", k.String())
	}
	if err := k.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := (job.Key{MarketID: "x"}).Validate(); err == nil {
		t.Error("expected error for missing platform")
	}
}

func TestNormalize(t *testing.T) {
	j := &job.ResearchJob{ID: "j1", Status: "analyzing"}
	if err := j.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if j.Status != job.StatusRunning || j.Phase != "analyzing" {
		t.Errorf("got (%q, %q), want (running, analyzing)", j.Status, j.Phase)
	}

	bad := &job.ResearchJob{ID: "j2", Status: "exploded"}
	if err := bad.Normalize(); err == nil {
		t.Error("expected error for unknown status")
	}
}
