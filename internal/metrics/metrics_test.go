package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func TestRecordPhase_SuccessAndFailure(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordPhase("jobA", "reorg", nil, 2*time.Second)
	RecordPhase("jobB", "delta", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.callsCounters) != 2 {
		t.Fatalf("expected 2 counter calls, got %d", len(fb.callsCounters))
	}
	if len(fb.callsHistograms) != 2 {
		t.Fatalf("expected 2 histogram calls, got %d", len(fb.callsHistograms))
	}

	cc0 := fb.callsCounters[0]
	if cc0.name != "pipeline_phase_total" || cc0.delta != 1 {
		t.Fatalf("counter[0] = %#v; want name=pipeline_phase_total, delta=1", cc0)
	}
	if got := cc0.labels["job"]; got != "jobA" {
		t.Fatalf("counter[0].labels[job]=%q; want %q", got, "jobA")
	}
	if got := cc0.labels["phase"]; got != "reorg" {
		t.Fatalf("counter[0].labels[phase]=%q; want %q", got, "reorg")
	}
	if got := cc0.labels["status"]; got != "success" {
		t.Fatalf("counter[0].labels[status]=%q; want %q", got, "success")
	}

	h0 := fb.callsHistograms[0]
	if h0.name != "pipeline_phase_duration_seconds" {
		t.Fatalf("hist[0].name=%q; want pipeline_phase_duration_seconds", h0.name)
	}
	if h0.value < 2.0-0.001 || h0.value > 2.0+0.001 {
		t.Fatalf("hist[0].value=%v; want ~2.0", h0.value)
	}

	cc1 := fb.callsCounters[1]
	if got := cc1.labels["status"]; got != "failure" {
		t.Fatalf("counter[1].labels[status]=%q; want %q", got, "failure")
	}
}

func TestRecordShards_SkipsNonPositive(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordShards("job", "created", 0)
	RecordShards("job", "failed", -3)
	if len(fb.callsCounters) != 0 {
		t.Fatalf("expected no counter calls, got %d", len(fb.callsCounters))
	}

	RecordShards("job", "processed", 7)
	if len(fb.callsCounters) != 1 {
		t.Fatalf("expected 1 counter call, got %d", len(fb.callsCounters))
	}
	cc := fb.callsCounters[0]
	if cc.name != "pipeline_shards_total" || cc.delta != 7 || cc.labels["kind"] != "processed" {
		t.Fatalf("counter = %#v", cc)
	}
}

func TestRecordIssues(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordIssues("job", "delta", 4)
	RecordIssues("job", "organized", 0)

	if len(fb.callsCounters) != 1 {
		t.Fatalf("expected 1 counter call, got %d", len(fb.callsCounters))
	}
	cc := fb.callsCounters[0]
	if cc.name != "pipeline_validation_issues_total" || cc.labels["target"] != "delta" || cc.delta != 4 {
		t.Fatalf("counter = %#v", cc)
	}
}

func TestSetBackend_NilKeepsExisting(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)
	SetBackend(nil)

	if err := Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("flushCount = %d; want 1 (nil SetBackend must not replace)", fb.flushCount)
	}
}
