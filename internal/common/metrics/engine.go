package metrics

import (
	"context"
	"time"

	"nlu-engine/internal/common/observability"
)

// EngineObserver feeds engine measurements to the prometheus vectors and,
// when set, to the otel slot histogram.
type EngineObserver struct {
	otel *observability.Observability
}

func NewEngineObserver(obs *observability.Observability) *EngineObserver {
	return &EngineObserver{otel: obs}
}

func (o *EngineObserver) ParseCompleted(outcome string, duration time.Duration, slots int) {
	ParseTotal.WithLabelValues(outcome).Inc()
	ParseDuration.Observe(duration.Seconds())
	if o.otel != nil {
		o.otel.RecordParseSlots(context.Background(), slots, outcome)
	}
}

func (o *EngineObserver) SlotResolutionFailed(entity string) {
	SlotResolutionFailures.WithLabelValues(entity).Inc()
}
