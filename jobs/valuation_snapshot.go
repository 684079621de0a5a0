package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/fabricdesk/fabricdesk/internal/inventory"
	jobmetrics "github.com/fabricdesk/fabricdesk/internal/jobs"
)

// Valuer records the configured warehouse valuation.
type Valuer interface {
	RecordValuation(ctx context.Context) (inventory.WarehouseValuation, error)
}

// ValueGauge exposes the latest warehouse value.
type ValueGauge interface {
	SetWarehouseValue(strategy string, value float64)
}

// ValuationSnapshotJob persists valuation totals on a schedule.
type ValuationSnapshotJob struct {
	Valuer  Valuer
	Gauge   ValueGauge
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskValuationSnapshot tasks.
func (j *ValuationSnapshotJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Valuer == nil {
		return errors.New("valuation snapshot: handler not configured")
	}
	var payload ValuationSnapshotPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.Metrics.Track(TaskValuationSnapshot)
	defer func() { err = tracker.End(err) }()

	v, err := j.Valuer.RecordValuation(ctx)
	if err != nil {
		logger(j.Logger).Error("valuation snapshot", slog.Any("error", err))
		return err
	}
	if j.Gauge != nil {
		j.Gauge.SetWarehouseValue(string(v.Strategy), v.TotalValue)
	}
	logger(j.Logger).Info("valuation snapshot stored",
		slog.String("strategy", string(v.Strategy)),
		slog.Float64("total_value", v.TotalValue),
		slog.Time("scheduled_for", payload.ScheduledFor))
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
