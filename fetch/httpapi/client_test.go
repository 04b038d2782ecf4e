package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xraph/researchsync"
	"github.com/xraph/researchsync/fetch/httpapi"
	"github.com/xraph/researchsync/job"
)

var testKey = job.Key{Platform: job.PlatformKalshi, MarketID: "KXBTC-25"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...httpapi.Option) (*httpapi.Client, *tracetest.SpanRecorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	opts = append([]httpapi.Option{
		httpapi.WithTracerProvider(tp),
		httpapi.WithLogger(testLogger()),
	}, opts...)
	return httpapi.New(srv.URL+"/", opts...), sr
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestStartJob(t *testing.T) {
	var gotAuth string
	c, sr := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/research/kalshi/KXBTC-25" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": "J1", "status": "pending"})
	}, httpapi.WithToken("secret"))

	jobID, err := c.StartJob(context.Background(), testKey)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if jobID != "J1" {
		t.Errorf("job id = %q, want J1", jobID)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "researchsync.http.start_job" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}
}

func TestStartJobInvalidKey(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})
	if _, err := c.StartJob(context.Background(), job.Key{Platform: job.PlatformKalshi}); err == nil {
		t.Fatal("expected error for incomplete key")
	}
}

func TestFetchSnapshotNormalizesPhase(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/research/job/J1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":        "J1",
			"platform":  "kalshi",
			"market_id": "KXBTC-25",
			"status":    "searching",
			"progress": map[string]any{
				"current_step":    "searching",
				"total_steps":     4,
				"completed_steps": 2,
			},
			"created_at": time.Now().UTC().Format(time.RFC3339),
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		})
	})

	j, err := c.FetchSnapshot(context.Background(), "J1")
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if j.Status != job.StatusRunning || j.Phase != "searching" {
		t.Errorf("status = %q phase = %q, want running/searching", j.Status, j.Phase)
	}
	if j.Progress == nil || j.Progress.Fraction() != 0.5 {
		t.Errorf("progress = %+v", j.Progress)
	}
	if j.Key() != testKey {
		t.Errorf("key = %v", j.Key())
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"not found", http.StatusNotFound, researchsync.ErrJobNotFound},
		{"rate limited", http.StatusTooManyRequests, researchsync.ErrRateLimited},
		{"unavailable", http.StatusServiceUnavailable, researchsync.ErrTransport},
		{"internal", http.StatusInternalServerError, researchsync.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, sr := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.code, map[string]string{"error": "nope"})
			})

			_, err := c.FetchSnapshot(context.Background(), "J1")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}

			spans := sr.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			wantCode := codes.Error
			if tt.code == http.StatusNotFound {
				wantCode = codes.Ok
			}
			if spans[0].Status().Code != wantCode {
				t.Errorf("span status = %v, want %v", spans[0].Status().Code, wantCode)
			}
		})
	}
}

func TestFetchSnapshotByKey(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "No cached research found."})
		})
		j, err := c.FetchSnapshotByKey(context.Background(), testKey)
		if err != nil || j != nil {
			t.Fatalf("got (%v, %v), want (nil, nil)", j, err)
		}
	})

	t.Run("present", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/research/kalshi/KXBTC-25" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "J2", "platform": "kalshi", "market_id": "KXBTC-25",
				"status": "completed", "cached": true,
				"report": map[string]any{"title": "BTC"},
			})
		})
		j, err := c.FetchSnapshotByKey(context.Background(), testKey)
		if err != nil {
			t.Fatalf("FetchSnapshotByKey: %v", err)
		}
		if j.ID != "J2" || !j.Cached || j.Report == nil || j.Report.Title != "BTC" {
			t.Errorf("job = %+v", j)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusBadGateway, nil)
		})
		_, err := c.FetchSnapshotByKey(context.Background(), testKey)
		if !errors.Is(err, researchsync.ErrTransport) {
			t.Fatalf("err = %v, want ErrTransport", err)
		}
	})
}

func TestUnknownStatusIsTransportError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "J1", "status": "exploding"})
	})
	_, err := c.FetchSnapshot(context.Background(), "J1")
	if !errors.Is(err, researchsync.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
}

func TestListJobs(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/research/jobs" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "J1", "status": "pending"},
			{"id": "J2", "status": "synthesizing"},
		})
	})
	jobs, err := c.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 || jobs[1].Status != job.StatusRunning || jobs[1].Phase != "synthesizing" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestRateLimitWaitsOnContext(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"id": "J1", "status": "pending"})
	}, httpapi.WithRateLimit(0.001, 1))

	if _, err := c.FetchSnapshot(context.Background(), "J1"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.FetchSnapshot(ctx, "J1")
	if !errors.Is(err, researchsync.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}
