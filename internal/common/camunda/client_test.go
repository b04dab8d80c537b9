package camunda

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nlu-engine/internal/common/errors"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"NOT_FOUND: job 42 not found", false},
		{"permission denied", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.msg)))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	cause := stderrors.New("connection reset by peer")
	err := mapZeebeError(cause, "complete job", 2)

	assert.True(t, errors.HasCode(err, errors.ErrCodeBrokerUnavailable))
	stdErr := errors.AsStandardError(err)
	assert.True(t, stdErr.Retryable)
	assert.Equal(t, 3, stdErr.Metadata["attempts"])
	assert.ErrorIs(t, err, cause)

	err = mapZeebeError(stderrors.New("unauthorized"), "activate", 0)
	assert.False(t, errors.AsStandardError(err).Retryable)
}

func TestBackoff(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, backoff(cfg, 0))
	assert.Equal(t, 4*time.Second, backoff(cfg, 2))
	assert.Equal(t, 5*time.Second, backoff(cfg, 4))
}
