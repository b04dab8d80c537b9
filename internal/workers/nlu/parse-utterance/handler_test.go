package parseutterance

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nlu-engine/internal/common/camunda/camundatest"
	"nlu-engine/internal/common/config"
	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/cache"
	"nlu-engine/internal/nlu/engine"
	"nlu-engine/internal/nlu/history"
	"nlu-engine/internal/nlu/nlutest"
)

// ==========================
// Mock Service Implementation
// ==========================

type MockService struct {
	mock.Mock
}

func (m *MockService) Execute(ctx context.Context, input *Input) (*Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Output), args.Error(1)
}

func (m *MockService) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ==========================
// Test Helpers
// ==========================

const reference = "2026-10-19T15:30:00Z"

func createValidConfig() *Config {
	return &Config{
		Enabled:         true,
		MaxJobsActive:   5,
		Timeout:         5 * time.Second,
		ParseTimeout:    time.Second,
		MaxAlternatives: 1,
	}
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(nlutest.Model(t), engine.WithLogger(logger.NewTestLogger(t)))
	require.NoError(t, err)
	return e
}

func newHandler(t *testing.T, deps ServiceDependencies) *Handler {
	t.Helper()
	if deps.Engine == nil {
		deps.Engine = newEngine(t)
	}
	h, err := NewHandler(HandlerOptions{
		CustomConfig: createValidConfig(),
		Dependencies: deps,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func bookingInput() *Input {
	return &Input{Text: "book a table for two tomorrow at 8pm", ReferenceTime: reference}
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid configuration",
			opts:    HandlerOptions{CustomConfig: createValidConfig(), Dependencies: ServiceDependencies{Engine: e}},
			wantErr: false,
		},
		{
			name:    "missing engine",
			opts:    HandlerOptions{CustomConfig: createValidConfig()},
			wantErr: true,
			errMsg:  "engine is required",
		},
		{
			name: "invalid timeout",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, MaxJobsActive: 5, Timeout: -time.Second, ParseTimeout: time.Second},
				Dependencies: ServiceDependencies{Engine: e},
			},
			wantErr: true,
			errMsg:  "timeout must be positive",
		},
		{
			name: "parse timeout longer than job timeout",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, MaxJobsActive: 5, Timeout: time.Second, ParseTimeout: time.Minute},
				Dependencies: ServiceDependencies{Engine: e},
			},
			wantErr: true,
			errMsg:  "parse_timeout must not exceed timeout",
		},
		{
			name: "invalid max jobs active",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, Timeout: time.Second, ParseTimeout: time.Second},
				Dependencies: ServiceDependencies{Engine: e},
			},
			wantErr: true,
			errMsg:  "max_jobs_active must be positive",
		},
		{
			name: "negative alternatives",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Second, ParseTimeout: time.Second, MaxAlternatives: -1},
				Dependencies: ServiceDependencies{Engine: e},
			},
			wantErr: true,
			errMsg:  "max_alternatives must not be negative",
		},
		{
			name:    "defaults from nil app config",
			opts:    HandlerOptions{Dependencies: ServiceDependencies{Engine: e}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewHandler(tt.opts)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, handler)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, handler)
				assert.Equal(t, TaskType, handler.GetTaskType())
				assert.True(t, handler.IsEnabled())
			}
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appConfig := &config.Config{
		Engine: config.EngineConfig{ParseTimeout: 500, MaxAlternatives: 2},
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: false, MaxJobsActive: 9, Timeout: 10000},
		},
	}

	cfg := createConfigFromAppConfig(appConfig, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 9, cfg.MaxJobsActive)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ParseTimeout)
	assert.Equal(t, 2, cfg.MaxAlternatives)

	custom := createValidConfig()
	assert.Same(t, custom, createConfigFromAppConfig(appConfig, custom))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := newHandler(t, ServiceDependencies{})

	tests := []struct {
		name      string
		variables map[string]interface{}
		want      *Input
		wantErr   bool
	}{
		{
			name:      "text only",
			variables: map[string]interface{}{"text": "turn on the lights"},
			want:      &Input{Text: "turn on the lights"},
		},
		{
			name: "all fields and unrelated process variables",
			variables: map[string]interface{}{
				"text":             "turn on the lights",
				"intentsWhitelist": []string{nlutest.TurnLightOn},
				"intentsBlacklist": []string{nlutest.BookRestaurant},
				"referenceTime":    reference,
				"alternatives":     2,
				"customerId":       "c-42",
			},
			want: &Input{
				Text:          "turn on the lights",
				Whitelist:     []string{nlutest.TurnLightOn},
				Blacklist:     []string{nlutest.BookRestaurant},
				ReferenceTime: reference,
				Alternatives:  2,
			},
		},
		{name: "missing text", variables: map[string]interface{}{"alternatives": 1}, wantErr: true},
		{name: "empty text", variables: map[string]interface{}{"text": ""}, wantErr: true},
		{name: "text not a string", variables: map[string]interface{}{"text": 12}, wantErr: true},
		{name: "whitelist of numbers", variables: map[string]interface{}{"text": "hi", "intentsWhitelist": []int{1}}, wantErr: true},
		{name: "bad reference time", variables: map[string]interface{}{"text": "hi", "referenceTime": "tomorrow"}, wantErr: true},
		{name: "negative alternatives", variables: map[string]interface{}{"text": "hi", "alternatives": -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(camundatest.Job(t, 1, TaskType, tt.variables))
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input)
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	h := newHandler(t, ServiceDependencies{})

	output, err := h.Execute(context.Background(), bookingInput())
	require.NoError(t, err)

	assert.Equal(t, nlutest.BookRestaurant, output.Result.Intent.Name())
	require.Len(t, output.Result.Slots, 2)
	assert.Equal(t, "party_size", output.Result.Slots[0].SlotName)
	assert.Equal(t, models.NumberValue{Value: 2}, output.Result.Slots[0].Value)
	assert.Equal(t, "time", output.Result.Slots[1].SlotName)
	assert.Nil(t, output.Alternatives)
	assert.Empty(t, output.HistoryID)
}

func TestHandler_Execute_Filters(t *testing.T) {
	h := newHandler(t, ServiceDependencies{})

	input := bookingInput()
	input.Blacklist = []string{nlutest.BookRestaurant, nlutest.TurnLightOn}

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, output.Result.Intent.IsNone())
	assert.Empty(t, output.Result.Slots)
}

func TestHandler_Execute_AlternativesCapped(t *testing.T) {
	h := newHandler(t, ServiceDependencies{})

	input := bookingInput()
	input.Alternatives = 10

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, nlutest.BookRestaurant, output.Result.Intent.Name())
	require.Len(t, output.Alternatives, 1)
	assert.Equal(t, nlutest.TurnLightOn, output.Alternatives[0].Intent.Name())
}

func TestHandler_Execute_InvalidReference(t *testing.T) {
	h := newHandler(t, ServiceDependencies{})

	_, err := h.Execute(context.Background(), &Input{Text: "hi", ReferenceTime: "noon"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}

func TestHandler_Execute_WhitespaceText(t *testing.T) {
	h := newHandler(t, ServiceDependencies{})

	_, err := h.Execute(context.Background(), &Input{Text: "   "})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}

func TestHandler_Execute_UsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	e := newEngine(t)
	c := cache.New(client, e, e.Model().Fingerprint(), "nlu:test:", time.Minute, logger.NewTestLogger(t))
	h := newHandler(t, ServiceDependencies{Engine: e, Cache: c})

	first, err := h.Execute(context.Background(), bookingInput())
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)

	second, err := h.Execute(context.Background(), bookingInput())
	require.NoError(t, err)
	assert.Equal(t, first.Result, second.Result)
	assert.NoError(t, h.HealthCheck(context.Background()))
}

func TestHandler_Execute_RecordsHistory(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	recorder, err := history.New(db, "parse_history", "fp", logger.NewTestLogger(t))
	require.NoError(t, err)
	h := newHandler(t, ServiceDependencies{History: recorder})

	anyArgs := make([]driver.Value, 8)
	for i := range anyArgs {
		anyArgs[i] = sqlmock.AnyArg()
	}

	t.Run("written", func(t *testing.T) {
		sqlMock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "parse_history"`)).
			WithArgs(anyArgs...).
			WillReturnResult(sqlmock.NewResult(0, 1))

		output, err := h.Execute(context.Background(), bookingInput())
		require.NoError(t, err)
		assert.NotEmpty(t, output.HistoryID)
	})

	t.Run("write failure keeps the parse", func(t *testing.T) {
		sqlMock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "parse_history"`)).
			WithArgs(anyArgs...).
			WillReturnError(stderrors.New("connection reset"))

		output, err := h.Execute(context.Background(), bookingInput())
		require.NoError(t, err)
		assert.Empty(t, output.HistoryID)
		assert.Equal(t, nlutest.BookRestaurant, output.Result.Intent.Name())
	})

	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

// ==========================
// Job Handling Tests
// ==========================

func TestHandler_Handle_Completes(t *testing.T) {
	h := newHandler(t, ServiceDependencies{})
	client := camundatest.NewJobClient()

	job := camundatest.Job(t, 7, TaskType, map[string]interface{}{
		"text":          "book a table for two tomorrow at 8pm",
		"referenceTime": reference,
	})
	require.NoError(t, h.Handle(client, job))

	completed := client.Completed()
	require.Len(t, completed, 1)
	assert.Equal(t, int64(7), completed[0].JobKey)

	vars := camundatest.Variables(t, completed[0].Variables)
	assert.Equal(t, nlutest.BookRestaurant, vars["nluIntent"])
	assert.Equal(t, map[string]interface{}{"party_size": "two", "time": "tomorrow at 8pm"}, vars["nluSlotValues"])

	result := vars["nluResult"].(map[string]interface{})
	assert.Equal(t, "book a table for two tomorrow at 8pm", result["input"])
	assert.Len(t, result["slots"], 2)
	assert.NotContains(t, vars, "nluAlternatives")
	assert.Empty(t, client.Failed())
	assert.Empty(t, client.Thrown())
}

func TestHandler_Handle_InvalidInputThrows(t *testing.T) {
	h := newHandler(t, ServiceDependencies{})
	client := camundatest.NewJobClient()

	err := h.Handle(client, camundatest.Job(t, 8, TaskType, map[string]interface{}{"text": ""}))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

	thrown := client.Thrown()
	require.Len(t, thrown, 1)
	assert.Equal(t, "NLU_INVALID_INPUT", thrown[0].ErrorCode)
	assert.Empty(t, client.Completed())
}

func TestHandler_Handle_TimeoutIsRetried(t *testing.T) {
	h := newHandler(t, ServiceDependencies{})
	svc := &MockService{}
	svc.On("Execute", mock.Anything, mock.AnythingOfType("*parseutterance.Input")).
		Return(nil, errors.NewParseTimeoutError(time.Second))
	h.service = svc

	client := camundatest.NewJobClient()
	err := h.Handle(client, camundatest.Job(t, 9, TaskType, map[string]interface{}{"text": "hello"}))
	assert.True(t, errors.HasCode(err, errors.ErrCodeParseTimeout))

	failed := client.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, int32(2), failed[0].Retries)
	assert.Contains(t, camundatest.Variables(t, failed[0].Variables), "errorCode")
	svc.AssertExpectations(t)
}

func TestHandler_Register_Disabled(t *testing.T) {
	cfg := createValidConfig()
	cfg.Enabled = false
	h, err := NewHandler(HandlerOptions{
		CustomConfig: cfg,
		Dependencies: ServiceDependencies{Engine: newEngine(t)},
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)

	assert.NoError(t, h.Register())
	h.Close(context.Background())
}

func TestOutput_SlotValuesFirstWins(t *testing.T) {
	out := &Output{Result: models.ParseResult{
		Intent: models.NamedIntent("Move", 0.9),
		Slots: []models.Slot{
			{SlotName: "city", RawValue: "paris"},
			{SlotName: "city", RawValue: "rome"},
		},
	}}
	vars := out.Variables()
	assert.Equal(t, map[string]string{"city": "paris"}, vars["nluSlotValues"])
	assert.Equal(t, "Move", vars["nluIntent"])
}
