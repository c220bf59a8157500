package perf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/bulkmart/fulfillment/internal/documents"
	jobmetrics "github.com/bulkmart/fulfillment/internal/jobs"
	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/outbox"
	"github.com/bulkmart/fulfillment/jobs"
)

type memoryEntries struct {
	mu      sync.Mutex
	entries map[uuid.UUID]outbox.Entry
}

func (m *memoryEntries) add(leadID string, kind orders.DocumentKind) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := outbox.Entry{ID: uuid.New(), LeadID: leadID, Effect: string(kind), Status: outbox.StatusPending, CreatedAt: time.Now()}
	m.entries[e.ID] = e
	return e.ID
}

func (m *memoryEntries) Get(_ context.Context, id uuid.UUID) (outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return outbox.Entry{}, outbox.ErrNotFound
	}
	return e, nil
}

func (m *memoryEntries) MarkDone(_ context.Context, id uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[id]
	e.Status = outbox.StatusDone
	e.DoneAt = &now
	m.entries[id] = e
	return nil
}

func (m *memoryEntries) MarkRetry(_ context.Context, e outbox.Entry, cause error, backoff outbox.Backoff, now time.Time) (outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Attempts++
	msg := cause.Error()
	e.LastError = &msg
	e.NextAttemptAt = now.Add(backoff.Delay(e.Attempts))
	if backoff.Exhausted(e.Attempts) {
		e.Status = outbox.StatusFailed
	}
	m.entries[e.ID] = e
	return e, nil
}

type latencySyncer struct {
	delay   time.Duration
	failFor map[string]bool
}

func (s latencySyncer) SyncWithPrerequisites(_ context.Context, leadID string, kind orders.DocumentKind) ([]documents.Result, error) {
	time.Sleep(s.delay)
	if s.failFor[leadID] {
		return nil, fmt.Errorf("%w: books api 503", documents.ErrExternalFailure)
	}
	return []documents.Result{{Kind: kind, ExternalID: "EXT-" + leadID, Created: true}}, nil
}

func TestDocumentSyncThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	store := &memoryEntries{entries: map[uuid.UUID]outbox.Entry{}}
	failing := map[string]bool{"BM-260312-FA0001": true, "BM-260312-FA0002": true, "BM-260312-FA0003": true}
	job := &jobs.DocumentSyncJob{
		Store:   store,
		Syncer:  latencySyncer{delay: 2 * time.Millisecond, failFor: failing},
		Backoff: outbox.DefaultBackoff,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: metrics,
	}

	var ids []uuid.UUID
	for i := 0; i < 60; i++ {
		ids = append(ids, store.add(fmt.Sprintf("BM-260312-%06X", i), orders.KindInvoice))
	}
	for lead := range failing {
		ids = append(ids, store.add(lead, orders.KindSalesOrder))
	}

	for _, id := range ids {
		task, err := jobs.NewDocumentSyncTask(id)
		if err != nil {
			t.Fatalf("build task: %v", err)
		}
		if err := job.Handle(context.Background(), task); err != nil {
			t.Fatalf("sync failures must stay on the outbox entry, got %v", err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	runs := metricValue(t, families, "fulfillment_jobs_total", map[string]string{"job": jobs.TaskDocumentsSync, "status": "success"})
	if runs != float64(len(ids)) {
		t.Fatalf("expected %d recorded runs, got %f", len(ids), runs)
	}
	created := metricValue(t, families, "fulfillment_documents_total", map[string]string{"kind": "invoice", "outcome": "created"})
	retried := metricValue(t, families, "fulfillment_documents_total", map[string]string{"kind": "sales_order", "outcome": "retry"})
	if ratio := created / (created + retried); ratio < 0.9 {
		t.Fatalf("document success ratio too low: %f", ratio)
	}
	if retried != 3 {
		t.Fatalf("expected 3 retries, got %f", retried)
	}

	mean := histogramMean(t, families, "fulfillment_job_duration_seconds", map[string]string{"job": jobs.TaskDocumentsSync})
	if mean > 0.5 {
		t.Fatalf("document sync duration above budget: %f", mean)
	}

	for _, id := range ids {
		e, _ := store.Get(context.Background(), id)
		if failing[e.LeadID] {
			if e.Status != outbox.StatusPending || e.Attempts != 1 {
				t.Fatalf("failed entry %s should be pending with one attempt, got %s/%d", e.LeadID, e.Status, e.Attempts)
			}
			continue
		}
		if e.Status != outbox.StatusDone {
			t.Fatalf("entry %s not marked done", e.LeadID)
		}
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
