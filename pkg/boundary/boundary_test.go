package boundary

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/modelstore"
	"nlu-engine/internal/nlu/nlutest"
)

// ==========================
// Test Helper Functions
// ==========================

const lightsText = "turn on the lights in the lounge"

func setup(t *testing.T) (*Shim, Handle) {
	t.Helper()
	s := New(logger.NewTestLogger(t))
	ch := NewChannel()
	h, status := s.CreateFromDir(ch, nlutest.WriteDir(t, nlutest.Bundle()))
	require.Equal(t, StatusOK, status, ch.LastError())
	require.NotEqual(t, NilHandle, h)
	return s, h
}

// ==========================
// Clients
// ==========================

func TestCreate_EverySource(t *testing.T) {
	b := nlutest.Bundle()
	s := New(logger.NewTestLogger(t))
	ch := NewChannel()

	dir, status := s.CreateFromDir(ch, nlutest.WriteDir(t, b))
	require.Equal(t, StatusOK, status)
	archive, status := s.CreateFromArchive(ch, nlutest.Archive(t, b, "model"))
	require.Equal(t, StatusOK, status)
	file, status := s.CreateFromFile(ch, nlutest.WriteFile(t, b))
	require.Equal(t, StatusOK, status)

	var docs []string
	for _, h := range []Handle{dir, archive, file} {
		doc, status := s.RunParseAsJSON(ch, h, lightsText, nil, nil)
		require.Equal(t, StatusOK, status, ch.LastError())
		v, ok := s.StringValue(doc)
		require.True(t, ok)
		docs = append(docs, v)
		s.DestroyString(doc)
		s.DestroyClient(h)
	}
	assert.Equal(t, docs[0], docs[1])
	assert.Equal(t, docs[0], docs[2])
	assert.Zero(t, s.Live())
}

func TestCreate_Failures(t *testing.T) {
	s := New(logger.NewTestLogger(t))
	ch := NewChannel()

	h, status := s.CreateFromDir(ch, filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, StatusError, status)
	assert.Equal(t, NilHandle, h)
	assert.Equal(t, errors.ErrCodeModelLoadFailed, ch.LastCode())
	assert.NotEmpty(t, ch.LastError())

	_, status = s.CreateFromArchive(ch, []byte("not a zip"))
	assert.Equal(t, StatusError, status)

	old := nlutest.Bundle()
	old.ModelVersion = "0.18.0"
	_, status = s.CreateFromFile(ch, nlutest.WriteFile(t, old))
	assert.Equal(t, StatusError, status)
	assert.Contains(t, ch.LastError(), "0.18.0")
	assert.Zero(t, s.Live())
}

func TestGetModelVersion(t *testing.T) {
	s := New(nil)
	ch := NewChannel()

	h, status := s.GetModelVersion(ch)
	require.Equal(t, StatusOK, status)
	v, ok := s.StringValue(h)
	require.True(t, ok)
	assert.Equal(t, modelstore.GetModelVersion(), v)

	s.DestroyString(h)
	_, ok = s.StringValue(h)
	assert.False(t, ok)
}

// ==========================
// Queries
// ==========================

func TestRunParse(t *testing.T) {
	s, client := setup(t)
	ch := NewChannel()

	h, status := s.RunParse(ch, client, lightsText, nil, nil)
	require.Equal(t, StatusOK, status, ch.LastError())

	result, ok := s.Result(h)
	require.True(t, ok)
	assert.Equal(t, nlutest.TurnLightOn, result.Intent.Name())
	require.Len(t, result.Slots, 1)
	assert.Equal(t, models.CustomValue{Value: "living room"}, result.Slots[0].Value)

	assert.Equal(t, StatusOK, s.DestroyResult(h))
	_, ok = s.Result(h)
	assert.False(t, ok)
}

func TestRunParse_Filters(t *testing.T) {
	s, client := setup(t)
	ch := NewChannel()

	h, status := s.RunParse(ch, client, lightsText, nil, []string{nlutest.TurnLightOn})
	require.Equal(t, StatusOK, status)
	result, _ := s.Result(h)
	assert.NotEqual(t, nlutest.TurnLightOn, result.Intent.Name())
}

func TestRunParseAsJSON_MirrorsResult(t *testing.T) {
	s, client := setup(t)
	ch := NewChannel()

	h, status := s.RunParseAsJSON(ch, client, lightsText, nil, nil)
	require.Equal(t, StatusOK, status)
	doc, _ := s.StringValue(h)

	var decoded models.ParseResult
	require.NoError(t, json.Unmarshal([]byte(doc), &decoded))
	assert.Equal(t, lightsText, decoded.Input)
	assert.Equal(t, nlutest.TurnLightOn, decoded.Intent.Name())
	require.Len(t, decoded.Slots, 1)
	assert.Equal(t, "room", decoded.Slots[0].SlotName)
}

func TestRunGetIntents(t *testing.T) {
	s, client := setup(t)
	ch := NewChannel()

	h, status := s.RunGetIntents(ch, client, lightsText)
	require.Equal(t, StatusOK, status)
	ranking, ok := s.Intents(h)
	require.True(t, ok)
	require.Len(t, ranking, 3)
	assert.Equal(t, nlutest.TurnLightOn, ranking[0].Name())
	s.DestroyIntents(h)
}

func TestRunGetSlots(t *testing.T) {
	s, client := setup(t)
	ch := NewChannel()

	h, status := s.RunGetSlots(ch, client, "switch on the kitchen", nlutest.TurnLightOn)
	require.Equal(t, StatusOK, status)
	slots, ok := s.Slots(h)
	require.True(t, ok)
	require.Len(t, slots, 1)
	assert.Equal(t, models.CustomValue{Value: "kitchen"}, slots[0].Value)
	s.DestroySlots(h)

	_, status = s.RunGetSlots(ch, client, "switch on the kitchen", "GetWeather")
	assert.Equal(t, StatusError, status)
	assert.Equal(t, errors.ErrCodeIntentNotFound, ch.LastCode())
}

func TestQueries_InvalidArguments(t *testing.T) {
	s, client := setup(t)
	ch := NewChannel()

	_, status := s.RunParse(ch, client, "", nil, nil)
	assert.Equal(t, StatusError, status)
	assert.Equal(t, errors.ErrCodeInvalidInput, ch.LastCode())

	_, status = s.RunParse(ch, NilHandle, lightsText, nil, nil)
	assert.Equal(t, StatusError, status)
	assert.Contains(t, ch.LastError(), "unknown engine handle")

	s.DestroyClient(client)
	_, status = s.RunGetIntents(ch, client, lightsText)
	assert.Equal(t, StatusError, status)
}

// ==========================
// Error Channel
// ==========================

func TestChannel_SuccessKeepsLastError(t *testing.T) {
	s, client := setup(t)
	ch := NewChannel()

	_, status := s.RunParse(ch, client, "   ", nil, nil)
	require.Equal(t, StatusError, status)
	msg := ch.LastError()

	_, status = s.RunParse(ch, client, lightsText, nil, nil)
	require.Equal(t, StatusOK, status)
	assert.Equal(t, msg, ch.LastError())

	_, status = s.RunGetSlots(ch, client, lightsText, "Unknown")
	require.Equal(t, StatusError, status)
	assert.NotEqual(t, msg, ch.LastError())
}

func TestChannel_Isolation(t *testing.T) {
	s, client := setup(t)

	var wg sync.WaitGroup
	channels := make([]*Channel, 8)
	for i := range channels {
		channels[i] = NewChannel()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := lightsText
			if i%2 == 1 {
				text = ""
			}
			h, status := s.RunParse(channels[i], client, text, nil, nil)
			if status == StatusOK {
				s.DestroyResult(h)
			}
		}(i)
	}
	wg.Wait()

	for i, ch := range channels {
		if i%2 == 1 {
			assert.Equal(t, errors.ErrCodeInvalidInput, ch.LastCode())
		} else {
			assert.Empty(t, ch.LastError())
		}
	}
}

func TestPanicBecomesInternalError(t *testing.T) {
	s := New(logger.NewTestLogger(t))
	ch := NewChannel()

	broken := newHandle()
	s.clients[broken] = nil

	h, status := s.RunParse(ch, broken, lightsText, nil, nil)
	assert.Equal(t, StatusError, status)
	assert.Equal(t, NilHandle, h)
	assert.Equal(t, errors.ErrCodeInternal, ch.LastCode())
	assert.Contains(t, ch.LastError(), "run-parse")
}

// ==========================
// Release
// ==========================

func TestDestroy_Idempotent(t *testing.T) {
	s, client := setup(t)
	ch := NewChannel()

	h, status := s.RunParse(ch, client, lightsText, nil, nil)
	require.Equal(t, StatusOK, status)

	for i := 0; i < 2; i++ {
		assert.Equal(t, StatusOK, s.DestroyResult(h))
		assert.Equal(t, StatusOK, s.DestroyClient(client))
	}
	for _, destroy := range []func(Handle) Status{
		s.DestroyClient, s.DestroyResult, s.DestroySlots, s.DestroyIntents, s.DestroyString,
	} {
		assert.Equal(t, StatusOK, destroy(NilHandle))
		assert.Equal(t, StatusOK, destroy(newHandle()))
	}
	assert.Zero(t, s.Live())
}
