package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/fabricdesk/fabricdesk/internal/inventory"
	jobmetrics "github.com/fabricdesk/fabricdesk/internal/jobs"
)

type stubValuer struct {
	result inventory.WarehouseValuation
	err    error
	calls  int
}

func (s *stubValuer) RecordValuation(context.Context) (inventory.WarehouseValuation, error) {
	s.calls++
	return s.result, s.err
}

type stubGauge struct {
	strategy string
	value    float64
}

func (g *stubGauge) SetWarehouseValue(strategy string, value float64) {
	g.strategy = strategy
	g.value = value
}

type stubCleaner struct {
	retention time.Duration
	removed   int64
	err       error
}

func (c *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	c.retention = olderThan
	return c.removed, c.err
}

func TestValuationSnapshotJobSetsGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	valuer := &stubValuer{result: inventory.WarehouseValuation{Strategy: inventory.StrategyFabricAverage, TotalValue: 420}}
	gauge := &stubGauge{}
	job := &ValuationSnapshotJob{Valuer: valuer, Gauge: gauge, Metrics: metrics}

	task, err := NewValuationSnapshotTask(time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, TaskValuationSnapshot, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, valuer.calls)
	require.Equal(t, "fabric", gauge.strategy)
	require.Equal(t, 420.0, gauge.value)

	count, err := testutil.GatherAndCount(registry, "fabricdesk_job_last_success_timestamp_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestValuationSnapshotJobPropagatesError(t *testing.T) {
	boom := errors.New("db down")
	gauge := &stubGauge{}
	job := &ValuationSnapshotJob{Valuer: &stubValuer{err: boom}, Gauge: gauge, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}

	err := job.Handle(context.Background(), asynq.NewTask(TaskValuationSnapshot, nil))
	require.ErrorIs(t, err, boom)
	require.Empty(t, gauge.strategy)
}

func TestValuationSnapshotJobRejectsBadPayload(t *testing.T) {
	job := &ValuationSnapshotJob{Valuer: &stubValuer{}}
	err := job.Handle(context.Background(), asynq.NewTask(TaskValuationSnapshot, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestIdempotencyCleanupUsesConfiguredRetention(t *testing.T) {
	cleaner := &stubCleaner{removed: 7}
	job := &IdempotencyCleanupJob{Store: cleaner, Retention: 72 * time.Hour}

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 72*time.Hour, cleaner.retention)
}

func TestIdempotencyCleanupPayloadOverride(t *testing.T) {
	cleaner := &stubCleaner{}
	job := &IdempotencyCleanupJob{Store: cleaner, Retention: 72 * time.Hour}

	task, err := NewIdempotencyCleanupTask(24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 24*time.Hour, cleaner.retention)
}

func TestIdempotencyCleanupWithoutRetentionSkips(t *testing.T) {
	job := &IdempotencyCleanupJob{Store: &stubCleaner{}}
	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}
