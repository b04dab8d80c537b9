package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/normalizer"
)

// ==========================
// Test Helper Functions
// ==========================

// Monday afternoon.
var refTime = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

func newResolver(t *testing.T, locale string) *Resolver {
	t.Helper()
	r, err := New(locale)
	require.NoError(t, err)
	return r
}

func strPtr(s string) *string {
	return &s
}

// ==========================
// Numbers
// ==========================

func TestResolve_Number(t *testing.T) {
	r := newResolver(t, "en-US")
	tests := []struct {
		raw      string
		expected float64
	}{
		{"42", 42},
		{"3.5", 3.5},
		{"1,000", 1000},
		{"twenty one", 21},
		{"twenty-one", 21},
		{"two hundred and five", 205},
		{"a dozen", 12},
		{"2 million", 2e6},
		{"three point five", 3.5},
		{"minus seven", -7},
		{"about 10", 10},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := r.Resolve(models.EntityNumber, tt.raw, refTime)
			require.NoError(t, err)
			assert.Equal(t, models.NumberValue{Value: tt.expected}, v)
		})
	}
}

func TestResolve_NumberRejects(t *testing.T) {
	r := newResolver(t, "en-US")
	for _, raw := range []string{"banana", "twenty twenty", "one two", "a", "1,00"} {
		t.Run(raw, func(t *testing.T) {
			_, err := r.Resolve(models.EntityNumber, raw, refTime)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeResolutionFailed))
		})
	}
}

func TestResolve_Ordinal(t *testing.T) {
	r := newResolver(t, "en-US")
	tests := []struct {
		raw      string
		expected int64
		ok       bool
	}{
		{"3rd", 3, true},
		{"first", 1, true},
		{"twenty-first", 21, true},
		{"one hundred and first", 101, true},
		{"11th", 11, true},
		{"2st", 0, false},
		{"eleven first", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := r.Resolve(models.EntityOrdinal, tt.raw, refTime)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.OrdinalValue{Value: tt.expected}, v)
		})
	}
}

func TestResolve_OrdinalOutOfRange(t *testing.T) {
	r := newResolver(t, "en-US")
	for _, raw := range []string{"9223372036854775808th", "99999999999999999999th"} {
		t.Run(raw, func(t *testing.T) {
			v, err := r.Resolve(models.EntityOrdinal, raw, refTime)
			assert.Nil(t, v)
			assert.True(t, errors.HasCode(err, errors.ErrCodeResolutionFailed), "got %v", err)
		})
	}

	v, err := r.Resolve(models.EntityOrdinal, "1000000th", refTime)
	require.NoError(t, err)
	assert.Equal(t, models.OrdinalValue{Value: 1000000}, v)
}

func TestOrdinalValue(t *testing.T) {
	tests := []struct {
		in       float64
		expected int64
		ok       bool
	}{
		{42, 42, true},
		{0, 0, true},
		{1 << 62, 1 << 62, true},
		{1 << 63, 0, false},
		{1e30, 0, false},
		{-1, 0, false},
		{2.5, 0, false},
	}
	for _, tt := range tests {
		v, ok := ordinalValue(tt.in)
		assert.Equal(t, tt.ok, ok, "%g", tt.in)
		assert.Equal(t, tt.expected, v, "%g", tt.in)
	}
}

func TestResolve_Percentage(t *testing.T) {
	r := newResolver(t, "en-US")
	tests := map[string]float64{
		"25%":           25,
		"fifty percent": 50,
		"12.5 per cent": 12.5,
	}
	for raw, expected := range tests {
		v, err := r.Resolve(models.EntityPercentage, raw, refTime)
		require.NoError(t, err, raw)
		assert.Equal(t, models.PercentageValue{Value: expected}, v, raw)
	}

	_, err := r.Resolve(models.EntityPercentage, "25", refTime)
	assert.Error(t, err)
}

// ==========================
// Instants
// ==========================

func TestResolve_InstantTime(t *testing.T) {
	r := newResolver(t, "en-US")
	tests := []struct {
		raw       string
		value     string
		grain     models.Grain
		precision models.Precision
	}{
		{"tomorrow at 8pm", "2026-10-20 20:00:00 +00:00", models.GrainMinute, models.PrecisionExact},
		{"tomorrow", "2026-10-20 00:00:00 +00:00", models.GrainDay, models.PrecisionExact},
		{"8pm", "2026-10-19 20:00:00 +00:00", models.GrainMinute, models.PrecisionExact},
		{"at 9", "2026-10-19 21:00:00 +00:00", models.GrainMinute, models.PrecisionExact},
		{"half past eight", "2026-10-19 20:30:00 +00:00", models.GrainMinute, models.PrecisionExact},
		{"8:30:15 pm", "2026-10-19 20:30:15 +00:00", models.GrainSecond, models.PrecisionExact},
		{"midnight", "2026-10-20 00:00:00 +00:00", models.GrainMinute, models.PrecisionExact},
		{"noon tomorrow", "2026-10-20 12:00:00 +00:00", models.GrainMinute, models.PrecisionExact},
		{"monday", "2026-10-19 00:00:00 +00:00", models.GrainDay, models.PrecisionExact},
		{"next monday", "2026-10-26 00:00:00 +00:00", models.GrainDay, models.PrecisionExact},
		{"next friday", "2026-10-23 00:00:00 +00:00", models.GrainDay, models.PrecisionExact},
		{"next week", "2026-10-26 00:00:00 +00:00", models.GrainWeek, models.PrecisionExact},
		{"this month", "2026-10-01 00:00:00 +00:00", models.GrainMonth, models.PrecisionExact},
		{"march 3rd", "2027-03-03 00:00:00 +00:00", models.GrainDay, models.PrecisionExact},
		{"the 25th of december", "2026-12-25 00:00:00 +00:00", models.GrainDay, models.PrecisionExact},
		{"2026-11-05", "2026-11-05 00:00:00 +00:00", models.GrainDay, models.PrecisionExact},
		{"10/12/2026", "2026-10-12 00:00:00 +00:00", models.GrainDay, models.PrecisionExact},
		{"in 2 hours", "2026-10-19 17:30:00 +00:00", models.GrainMinute, models.PrecisionExact},
		{"3 days ago", "2026-10-16 00:00:00 +00:00", models.GrainDay, models.PrecisionExact},
		{"now", "2026-10-19 15:30:00 +00:00", models.GrainSecond, models.PrecisionExact},
		{"around 8pm", "2026-10-19 20:00:00 +00:00", models.GrainMinute, models.PrecisionApproximate},
		{"tonight", "2026-10-19 21:00:00 +00:00", models.GrainHour, models.PrecisionApproximate},
		{"tomorrow morning", "2026-10-20 08:00:00 +00:00", models.GrainHour, models.PrecisionApproximate},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := r.Resolve(models.EntityDatetime, tt.raw, refTime)
			require.NoError(t, err)
			assert.Equal(t, models.InstantTimeValue{Value: tt.value, Grain: tt.grain, Precision: tt.precision}, v)
		})
	}
}

func TestResolve_InstantTimeDayFirstLocale(t *testing.T) {
	r := newResolver(t, "en-GB")
	v, err := r.Resolve(models.EntityDatetime, "10/12/2026", refTime)
	require.NoError(t, err)
	assert.Equal(t, "2026-12-10 00:00:00 +00:00", v.(models.InstantTimeValue).Value)
}

func TestResolve_InstantTimeRejects(t *testing.T) {
	r := newResolver(t, "en-US")
	for _, raw := range []string{"banana", "february 30", "32nd of march", "may", "8"} {
		t.Run(raw, func(t *testing.T) {
			_, err := r.Resolve(models.EntityDatetime, raw, refTime)
			assert.True(t, errors.HasCode(err, errors.ErrCodeResolutionFailed))
		})
	}
}

func TestResolve_RelativeInstantBounds(t *testing.T) {
	r := newResolver(t, "en-US")

	v, err := r.Resolve(models.EntityDatetime, "in 1000 hours", refTime)
	require.NoError(t, err)
	assert.Equal(t, "2026-11-30 07:30:00 +00:00", v.(models.InstantTimeValue).Value)

	for _, raw := range []string{
		"in 9999999 hours",
		"9999999 hours ago",
		"in 99999999999 minutes",
		"in 20000 years",
		"99999999999999999999 days ago",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := r.Resolve(models.EntityDatetime, raw, refTime)
			assert.True(t, errors.HasCode(err, errors.ErrCodeResolutionFailed), "got %v", err)
		})
	}
}

func TestShift_Bounds(t *testing.T) {
	tests := []struct {
		name string
		d    models.DurationValue
		sign int
		ok   bool
	}{
		{"two hours", models.DurationValue{Hours: 2}, 1, true},
		{"a century back", models.DurationValue{Years: 100}, -1, true},
		{"clock overflow", models.DurationValue{Hours: 9999999}, 1, false},
		{"seconds overflow", models.DurationValue{Seconds: 1 << 40}, -1, false},
		{"past year 9999", models.DurationValue{Years: 8000}, 1, false},
		{"before year 1", models.DurationValue{Years: 2100}, -1, false},
		{"calendar overflow", models.DurationValue{Days: 1 << 50}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := shift(refTime, tt.d, tt.sign)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestResolve_InstantTimeKeepsReferenceZone(t *testing.T) {
	r := newResolver(t, "en-US")
	zone := time.FixedZone("", 2*60*60)
	v, err := r.Resolve(models.EntityDatetime, "tomorrow", refTime.In(zone))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20 00:00:00 +02:00", v.(models.InstantTimeValue).Value)
}

// ==========================
// Intervals
// ==========================

func TestResolve_TimeInterval(t *testing.T) {
	r := newResolver(t, "en-US")
	tests := []struct {
		raw      string
		expected models.TimeIntervalValue
	}{
		{"from 6 to 8pm", models.TimeIntervalValue{
			From: strPtr("2026-10-19 18:00:00 +00:00"), To: strPtr("2026-10-19 20:00:00 +00:00"),
		}},
		{"from 9 to 11", models.TimeIntervalValue{
			From: strPtr("2026-10-19 21:00:00 +00:00"), To: strPtr("2026-10-19 23:00:00 +00:00"),
		}},
		{"between monday and wednesday", models.TimeIntervalValue{
			From: strPtr("2026-10-19 00:00:00 +00:00"), To: strPtr("2026-10-22 00:00:00 +00:00"),
		}},
		{"tomorrow", models.TimeIntervalValue{
			From: strPtr("2026-10-20 00:00:00 +00:00"), To: strPtr("2026-10-21 00:00:00 +00:00"),
		}},
		{"this weekend", models.TimeIntervalValue{
			From: strPtr("2026-10-24 00:00:00 +00:00"), To: strPtr("2026-10-26 00:00:00 +00:00"),
		}},
		{"the next 3 days", models.TimeIntervalValue{
			From: strPtr("2026-10-19 00:00:00 +00:00"), To: strPtr("2026-10-22 00:00:00 +00:00"),
		}},
		{"after 5pm", models.TimeIntervalValue{From: strPtr("2026-10-19 17:00:00 +00:00")}},
		{"before tomorrow", models.TimeIntervalValue{To: strPtr("2026-10-20 00:00:00 +00:00")}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := r.Resolve(models.EntityTimeInterval, tt.raw, refTime)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestResolve_TimeIntervalRejectsReversedRange(t *testing.T) {
	r := newResolver(t, "en-US")
	_, err := r.Resolve(models.EntityTimeInterval, "between wednesday and monday", refTime)
	assert.Error(t, err)
}

// ==========================
// Quantities
// ==========================

func TestResolve_AmountOfMoney(t *testing.T) {
	r := newResolver(t, "en-US")
	tests := []struct {
		raw       string
		unit      string
		value     float64
		precision models.Precision
	}{
		{"$20", "$", 20, models.PrecisionExact},
		{"20 euros", "€", 20, models.PrecisionExact},
		{"about 20 euros", "€", 20, models.PrecisionApproximate},
		{"ten bucks", "$", 10, models.PrecisionExact},
		{"5 dollars and 20 cents", "$", 5.2, models.PrecisionExact},
		{"15 usd", "USD", 15, models.PrecisionExact},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := r.Resolve(models.EntityAmountOfMoney, tt.raw, refTime)
			require.NoError(t, err)
			money, ok := v.(models.AmountOfMoneyValue)
			require.True(t, ok)
			assert.Equal(t, tt.unit, money.Unit)
			assert.InDelta(t, tt.value, money.Value, 1e-9)
			assert.Equal(t, tt.precision, money.Precision)
		})
	}
}

func TestResolve_Temperature(t *testing.T) {
	r := newResolver(t, "en-US")
	tests := []struct {
		raw      string
		expected models.TemperatureValue
	}{
		{"70 degrees fahrenheit", models.TemperatureValue{Unit: "fahrenheit", Value: 70}},
		{"minus 5 degrees", models.TemperatureValue{Unit: "degree", Value: -5}},
		{"-5 °c", models.TemperatureValue{Unit: "celsius", Value: -5}},
		{"20 celsius", models.TemperatureValue{Unit: "celsius", Value: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := r.Resolve(models.EntityTemperature, tt.raw, refTime)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestResolve_Duration(t *testing.T) {
	r := newResolver(t, "en-US")
	tests := []struct {
		raw      string
		expected models.DurationValue
		seconds  int64
	}{
		{"2 hours and 30 minutes", models.DurationValue{Hours: 2, Minutes: 30}, 9000},
		{"an hour and a half", models.DurationValue{Hours: 1, Minutes: 30}, 5400},
		{"one and a half hours", models.DurationValue{Hours: 1, Minutes: 30}, 5400},
		{"half an hour", models.DurationValue{Minutes: 30}, 1800},
		{"1.5 years", models.DurationValue{Years: 1, Months: 6}, 18 * 30 * 86400},
		{"3 weeks", models.DurationValue{Weeks: 3}, 3 * 7 * 86400},
		{"1 day, 2 hours", models.DurationValue{Days: 1, Hours: 2}, 93600},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := r.Resolve(models.EntityDuration, tt.raw, refTime)
			require.NoError(t, err)
			tt.expected.Precision = models.PrecisionExact
			assert.Equal(t, tt.expected, v)
			assert.Equal(t, tt.seconds, v.(models.DurationValue).TotalSeconds())
		})
	}
}

func TestResolve_DurationOutOfRange(t *testing.T) {
	r := newResolver(t, "en-US")
	_, err := r.Resolve(models.EntityDuration, "99999999999999999999 years", refTime)
	assert.True(t, errors.HasCode(err, errors.ErrCodeResolutionFailed), "got %v", err)
}

func TestResolve_DurationApproximate(t *testing.T) {
	r := newResolver(t, "en-US")
	v, err := r.Resolve(models.EntityDuration, "about 3 weeks", refTime)
	require.NoError(t, err)
	assert.Equal(t, models.PrecisionApproximate, v.(models.DurationValue).Precision)

	_, err = r.Resolve(models.EntityDuration, "week", refTime)
	assert.Error(t, err)
}

func TestDecompose_RoundTrip(t *testing.T) {
	// Whole-valued buckets survive the decomposition untouched.
	for _, seconds := range []float64{0, 59, 3600, 86399, 90061} {
		var amounts [unitYear + 1]float64
		amounts[unitSecond] = seconds
		d := decompose(amounts)
		assert.Equal(t, int64(seconds), d.TotalSeconds())
	}
	var amounts [unitYear + 1]float64
	amounts[unitDay] = 2.25
	assert.Equal(t, int64(2*86400+6*3600), decompose(amounts).TotalSeconds())
}

// ==========================
// Music and errors
// ==========================

func TestResolve_MusicVerbatim(t *testing.T) {
	r := newResolver(t, "en-US")
	v, err := r.Resolve(models.EntityMusicAlbum, " Abbey Road ", refTime)
	require.NoError(t, err)
	assert.Equal(t, models.MusicAlbumValue{Value: "Abbey Road"}, v)

	v, err = r.Resolve(models.EntityMusicArtist, "The Beatles", refTime)
	require.NoError(t, err)
	assert.Equal(t, models.MusicArtistValue{Value: "The Beatles"}, v)
}

func TestResolve_UnknownEntity(t *testing.T) {
	r := newResolver(t, "en-US")
	_, err := r.Resolve("snips/shoeSize", "42", refTime)
	assert.True(t, errors.HasCode(err, errors.ErrCodeResolutionFailed))

	_, err = r.Resolve("room", "kitchen", refTime)
	assert.True(t, errors.HasCode(err, errors.ErrCodeResolutionFailed))
}

func TestNew_UnsupportedLanguage(t *testing.T) {
	_, err := New("fr-FR")
	assert.Error(t, err)
	_, err = New("not a locale")
	assert.Error(t, err)
}

// ==========================
// Extraction
// ==========================

func TestExtract_BookingUtterance(t *testing.T) {
	r := newResolver(t, "en-US")
	tokens, err := r.norm.Tokenize("book a table for two tomorrow at 8pm")
	require.NoError(t, err)

	matches := r.Extract(tokens, []string{models.EntityNumber, models.EntityDatetime}, refTime)
	require.Len(t, matches, 3)

	assert.Equal(t, models.EntityNumber, matches[0].Entity)
	assert.Equal(t, 4, matches[0].Start)
	assert.Equal(t, 5, matches[0].End)
	assert.Equal(t, models.NumberValue{Value: 2}, matches[0].Value)

	assert.Equal(t, models.EntityDatetime, matches[1].Entity)
	assert.Equal(t, 5, matches[1].Start)
	assert.Equal(t, 9, matches[1].End)
	assert.Equal(t, models.InstantTimeValue{
		Value:     "2026-10-20 20:00:00 +00:00",
		Grain:     models.GrainMinute,
		Precision: models.PrecisionExact,
	}, matches[1].Value)

	assert.Equal(t, models.EntityNumber, matches[2].Entity)
	assert.Equal(t, 7, matches[2].Start)
}

func TestExtract_SkipsMusicAndCustom(t *testing.T) {
	r := newResolver(t, "en-US")
	tokens, err := r.norm.Tokenize("play abbey road in the kitchen")
	require.NoError(t, err)
	matches := r.Extract(tokens, []string{models.EntityMusicAlbum, "room"}, refTime)
	assert.Empty(t, matches)
}

// ==========================
// Gazetteer
// ==========================

func roomEntity(extensible bool) models.CustomEntity {
	return models.CustomEntity{
		Name:                    "room",
		AutomaticallyExtensible: extensible,
		Values: []models.EntityValue{
			{Value: "kitchen"},
			{Value: "living room", Synonyms: []string{"lounge", "sitting room"}},
			{Value: "bedroom"},
		},
	}
}

func tokenize(t *testing.T, text string) []normalizer.Token {
	t.Helper()
	n, err := normalizer.New("en")
	require.NoError(t, err)
	tokens, err := n.Tokenize(text)
	require.NoError(t, err)
	return tokens
}

func TestGazetteer_Match(t *testing.T) {
	n, err := normalizer.New("en")
	require.NoError(t, err)
	g, err := NewGazetteer(n, roomEntity(false))
	require.NoError(t, err)

	tokens := tokenize(t, "turn on the lights in the Living Room and the lounge")
	matches := g.Match(tokens)
	require.Len(t, matches, 2)
	assert.Equal(t, 6, matches[0].Start)
	assert.Equal(t, 8, matches[0].End)
	assert.Equal(t, models.CustomValue{Value: "living room"}, matches[0].Value)
	assert.Equal(t, models.CustomValue{Value: "living room"}, matches[1].Value)
}

func TestGazetteer_Resolve(t *testing.T) {
	n, err := normalizer.New("en")
	require.NoError(t, err)

	strict, err := NewGazetteer(n, roomEntity(false))
	require.NoError(t, err)
	extensible, err := NewGazetteer(n, roomEntity(true))
	require.NoError(t, err)

	v, ok := strict.Resolve(tokenize(t, "Sitting Room"), "Sitting Room")
	require.True(t, ok)
	assert.Equal(t, models.CustomValue{Value: "living room"}, v)

	_, ok = strict.Resolve(tokenize(t, "garage"), "garage")
	assert.False(t, ok)

	v, ok = extensible.Resolve(tokenize(t, "garage"), "garage")
	require.True(t, ok)
	assert.Equal(t, models.CustomValue{Value: "garage"}, v)
}
