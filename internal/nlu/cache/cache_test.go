package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/engine"
	"nlu-engine/internal/nlu/nlutest"
)

// ==========================
// Test Helper Functions
// ==========================

type countingParser struct {
	calls  atomic.Int32
	engine *engine.Engine
}

func (p *countingParser) Parse(q engine.Query) (models.ParseResult, error) {
	p.calls.Add(1)
	return p.engine.Parse(q)
}

func setup(t *testing.T) (*Cache, *countingParser, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	e, err := engine.New(nlutest.Model(t))
	require.NoError(t, err)
	parser := &countingParser{engine: e}

	c := New(client, parser, e.Model().Fingerprint(), "nlu:parse:", time.Minute, logger.NewTestLogger(t))
	return c, parser, mr
}

func booking() engine.Query {
	return engine.Query{
		Text:      "book a table for two tomorrow at 8pm",
		Reference: nlutest.Reference,
	}
}

// ==========================
// Parse
// ==========================

func TestParse_HitAfterMiss(t *testing.T) {
	c, parser, mr := setup(t)
	ctx := context.Background()

	first, err := c.Parse(ctx, booking())
	require.NoError(t, err)
	second, err := c.Parse(ctx, booking())
	require.NoError(t, err)

	assert.Equal(t, int32(1), parser.calls.Load())
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists(c.Key(booking())))
	assert.Equal(t, time.Minute, mr.TTL(c.Key(booking())))
}

func TestParse_ExpiredEntryReparses(t *testing.T) {
	c, parser, mr := setup(t)
	ctx := context.Background()

	_, err := c.Parse(ctx, booking())
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = c.Parse(ctx, booking())
	require.NoError(t, err)

	assert.Equal(t, int32(2), parser.calls.Load())
}

func TestParse_NoReferenceBypasses(t *testing.T) {
	c, parser, mr := setup(t)
	q := booking()
	q.Reference = time.Time{}

	for i := 0; i < 2; i++ {
		_, err := c.Parse(context.Background(), q)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), parser.calls.Load())
	assert.Empty(t, mr.Keys())
}

func TestParse_ErrorsAreNotCached(t *testing.T) {
	c, parser, mr := setup(t)
	q := booking()
	q.Text = ""

	_, err := c.Parse(context.Background(), q)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
	assert.Equal(t, int32(1), parser.calls.Load())
	assert.Empty(t, mr.Keys())
}

func TestParse_RedisDownFallsBack(t *testing.T) {
	c, parser, mr := setup(t)
	mr.Close()

	result, err := c.Parse(context.Background(), booking())
	require.NoError(t, err)
	assert.Equal(t, nlutest.BookRestaurant, result.Intent.Name())
	assert.Equal(t, int32(1), parser.calls.Load())

	assert.True(t, errors.HasCode(c.Ping(context.Background()), errors.ErrCodeCacheUnavailable))
}

func TestParse_CorruptEntryIsReplaced(t *testing.T) {
	c, parser, mr := setup(t)
	require.NoError(t, mr.Set(c.Key(booking()), "{not json"))

	result, err := c.Parse(context.Background(), booking())
	require.NoError(t, err)
	assert.Equal(t, nlutest.BookRestaurant, result.Intent.Name())
	assert.Equal(t, int32(1), parser.calls.Load())
}

// ==========================
// Keys
// ==========================

func TestKey(t *testing.T) {
	c, _, _ := setup(t)

	base := booking()
	base.Whitelist = []string{"b", "a"}

	permuted := booking()
	permuted.Whitelist = []string{"a", "b"}
	assert.Equal(t, c.Key(base), c.Key(permuted))

	blacklisted := booking()
	blacklisted.Blacklist = []string{"a", "b"}
	assert.NotEqual(t, c.Key(permuted), c.Key(blacklisted))

	later := base
	later.Reference = base.Reference.Add(time.Second)
	assert.NotEqual(t, c.Key(base), c.Key(later))

	other := New(nil, nil, "other-model", "nlu:parse:", 0, logger.NewNoOpLogger())
	assert.NotEqual(t, c.Key(base), other.Key(base))
	assert.Contains(t, c.Key(base), "nlu:parse:")
}
