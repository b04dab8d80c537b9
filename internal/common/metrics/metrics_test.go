package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEngineObserver(t *testing.T) {
	o := NewEngineObserver(nil)

	before := testutil.ToFloat64(ParseTotal.WithLabelValues("none"))
	o.ParseCompleted("none", 3*time.Millisecond, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(ParseTotal.WithLabelValues("none")))

	failures := testutil.ToFloat64(SlotResolutionFailures.WithLabelValues("snips/number"))
	o.SlotResolutionFailed("snips/number")
	assert.Equal(t, failures+1, testutil.ToFloat64(SlotResolutionFailures.WithLabelValues("snips/number")))
}
