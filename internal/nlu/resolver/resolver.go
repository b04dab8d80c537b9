// Package resolver canonicalizes entity spans: builtin types (numbers,
// dates, quantities) through per-language grammars, custom types through
// gazetteers.
package resolver

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/normalizer"
)

// Resolver resolves builtin entities for one locale.
type Resolver struct {
	g        *grammar
	norm     *normalizer.Normalizer
	dayFirst bool
	locale   string
}

// New returns a resolver for a locale such as "en-US" or "en-GB". Slashed
// dates read month first only for US English.
func New(locale string) (*Resolver, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	base, _ := tag.Base()
	g, ok := grammars[base.String()]
	if !ok {
		return nil, fmt.Errorf("no entity grammar for language %q", base)
	}
	norm, err := normalizer.New(locale)
	if err != nil {
		return nil, err
	}
	region, _ := tag.Region()
	return &Resolver{
		g:        g,
		norm:     norm,
		dayFirst: region.String() != "US",
		locale:   locale,
	}, nil
}

func (r *Resolver) Locale() string {
	return r.locale
}

// Supports reports whether entity is a builtin type this resolver knows.
func (r *Resolver) Supports(entity string) bool {
	_, ok := models.KindForEntity(entity)
	return ok && models.IsBuiltinEntity(entity)
}

// Resolve canonicalizes the raw text of a builtin entity span. Relative
// expressions are anchored at ref, or at the current time when ref is zero.
func (r *Resolver) Resolve(entity, raw string, ref time.Time) (models.SlotValue, error) {
	kind, ok := models.KindForEntity(entity)
	if !ok || kind == models.KindCustom {
		return nil, errors.NewResolutionError(entity, raw)
	}

	switch kind {
	case models.KindMusicAlbum:
		return models.MusicAlbumValue{Value: strings.TrimSpace(raw)}, nil
	case models.KindMusicArtist:
		return models.MusicArtistValue{Value: strings.TrimSpace(raw)}, nil
	case models.KindMusicTrack:
		return models.MusicTrackValue{Value: strings.TrimSpace(raw)}, nil
	}

	tokens, err := r.norm.Tokenize(raw)
	if err != nil {
		return nil, err
	}
	if ref.IsZero() {
		ref = time.Now()
	}
	v, ok := r.resolveWords(kind, words(tokens), ref)
	if !ok {
		return nil, errors.NewResolutionError(entity, raw)
	}
	return v, nil
}

func words(tokens []normalizer.Token) []string {
	ws := make([]string, len(tokens))
	for i, t := range tokens {
		ws[i] = t.Normalized
	}
	return ws
}

func (r *Resolver) timeContext(ref time.Time) *timeContext {
	return &timeContext{g: r.g, ref: ref, dayFirst: r.dayFirst}
}

func (r *Resolver) resolveWords(kind models.SlotValueKind, ws []string, ref time.Time) (models.SlotValue, bool) {
	if len(ws) == 0 {
		return nil, false
	}
	switch kind {
	case models.KindNumber:
		ws, _ = r.g.stripApprox(ws)
		v, ok := r.g.parseNumber(ws)
		if !ok {
			return nil, false
		}
		return models.NumberValue{Value: v}, true

	case models.KindOrdinal:
		v, ok := r.g.parseOrdinal(ws)
		if !ok {
			return nil, false
		}
		return models.OrdinalValue{Value: v}, true

	case models.KindPercentage:
		v, ok := r.g.parsePercentage(ws)
		if !ok {
			return nil, false
		}
		return models.PercentageValue{Value: v}, true

	case models.KindInstantTime:
		spec, ok := r.timeContext(ref).parseInstant(ws)
		if !ok {
			return nil, false
		}
		return models.InstantTimeValue{
			Value:     formatInstant(spec.t),
			Grain:     spec.grain,
			Precision: spec.precision,
		}, true

	case models.KindTimeInterval:
		iv, ok := r.timeContext(ref).parseInterval(ws)
		if !ok {
			return nil, false
		}
		out := models.TimeIntervalValue{}
		if iv.from != nil {
			from := formatInstant(*iv.from)
			out.From = &from
		}
		if iv.to != nil {
			to := formatInstant(*iv.to)
			out.To = &to
		}
		return out, true

	case models.KindAmountOfMoney:
		v, ok := r.g.parseMoney(ws)
		if !ok {
			return nil, false
		}
		return v, true

	case models.KindTemperature:
		v, ok := r.g.parseTemperature(ws)
		if !ok {
			return nil, false
		}
		return v, true

	case models.KindDuration:
		v, ok := r.g.parseDuration(ws)
		if !ok {
			return nil, false
		}
		return v, true
	}
	return nil, false
}
