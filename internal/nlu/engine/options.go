package engine

import (
	"fmt"
	"time"

	"nlu-engine/internal/common/logger"
)

// ResolutionPolicy decides what happens to a builtin slot whose text the
// resolver cannot canonicalize.
type ResolutionPolicy string

const (
	// PolicyDrop removes the slot from the result.
	PolicyDrop ResolutionPolicy = "drop"
	// PolicyCustom keeps the slot with its raw text as a custom value.
	PolicyCustom ResolutionPolicy = "custom"
	// PolicyFail fails the whole query with a ResolutionError.
	PolicyFail ResolutionPolicy = "fail"
)

// ParseResolutionPolicy accepts "drop", "custom" or "fail"; empty means drop.
func ParseResolutionPolicy(s string) (ResolutionPolicy, error) {
	switch ResolutionPolicy(s) {
	case "", PolicyDrop:
		return PolicyDrop, nil
	case PolicyCustom, PolicyFail:
		return ResolutionPolicy(s), nil
	}
	return "", fmt.Errorf("unknown resolution policy %q", s)
}

// Observer receives per-query measurements. The metrics package provides
// the production implementation.
type Observer interface {
	ParseCompleted(outcome string, duration time.Duration, slots int)
	SlotResolutionFailed(entity string)
}

// Parse outcomes reported to the Observer.
const (
	OutcomeIntent = "intent"
	OutcomeNone   = "none"
	OutcomeError  = "error"
)

type nopObserver struct{}

func (nopObserver) ParseCompleted(string, time.Duration, int) {}
func (nopObserver) SlotResolutionFailed(string)               {}

type options struct {
	logger    logger.Logger
	locale    string
	threshold *float64
	policy    ResolutionPolicy
	clock     func() time.Time
	observer  Observer
}

// Option configures an Engine.
type Option func(*options)

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLocale sets the BCP-47 locale used by the builtin resolver. The model
// language is used when unset.
func WithLocale(locale string) Option {
	return func(o *options) { o.locale = locale }
}

// WithNullIntentThreshold overrides the threshold shipped in the bundle.
func WithNullIntentThreshold(threshold float64) Option {
	return func(o *options) { o.threshold = &threshold }
}

func WithResolutionPolicy(p ResolutionPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithClock replaces time.Now as the source of default reference instants.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}
