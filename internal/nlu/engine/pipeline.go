package engine

import (
	"math"
	"sort"
	"strings"
	"time"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/classifier"
	"nlu-engine/internal/nlu/normalizer"
	"nlu-engine/internal/nlu/patterns"
	"nlu-engine/internal/nlu/resolver"
	"nlu-engine/internal/nlu/slotfiller"
)

// state is a stage of one query. Queries move forward only and always end
// in stateAssembled.
type state int

const (
	stateStart state = iota
	stateNormalized
	stateClassified
	stateSlotsFilled
	stateSlotsResolved
	stateAssembled
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateNormalized:
		return "normalized"
	case stateClassified:
		return "classified"
	case stateSlotsFilled:
		return "slots_filled"
	case stateSlotsResolved:
		return "slots_resolved"
	case stateAssembled:
		return "assembled"
	}
	return "unknown"
}

// query carries the per-call state threaded through the pipeline. Nothing
// in it is shared between calls.
type query struct {
	text     string
	ref      time.Time
	tokens   []normalizer.Token
	words    []string
	mentions []resolver.Match
	pattern  *patterns.Result
	state    state
	log      logger.Logger
}

func (q *query) advance(to state) {
	if to <= q.state {
		return
	}
	q.log.Debug("Pipeline transition", map[string]interface{}{
		"from": q.state.String(),
		"to":   to.String(),
	})
	q.state = to
}

// prepare normalizes the input and detects every entity mention the model
// can use: builtin entities referenced by a slot and all custom entities.
func (e *Engine) prepare(text string, ref time.Time) (*query, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewInvalidInputError("text is required")
	}
	if ref.IsZero() {
		ref = e.clock()
	}

	seq, err := e.model.Normalizer().Normalize(text)
	if err != nil {
		return nil, err
	}
	q := &query{text: text, ref: ref, log: e.logger}
	q.tokens = seq.Content()
	q.words = make([]string, len(q.tokens))
	for i, t := range q.tokens {
		q.words[i] = t.Normalized
	}

	q.mentions = e.resolver.Extract(q.tokens, e.model.BuiltinEntities(), ref)
	for _, g := range e.model.Gazetteers() {
		q.mentions = append(q.mentions, g.Match(q.tokens)...)
	}
	sort.SliceStable(q.mentions, func(i, j int) bool {
		if q.mentions[i].Start != q.mentions[j].Start {
			return q.mentions[i].Start < q.mentions[j].Start
		}
		return q.mentions[i].End > q.mentions[j].End
	})

	q.advance(stateNormalized)
	return q, nil
}

func entityFeatures(mentions []resolver.Match) []string {
	out := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if models.IsBuiltinEntity(m.Entity) {
			out = append(out, "builtin:"+m.Entity)
		} else {
			out = append(out, "entity:"+m.Entity)
		}
	}
	return out
}

// match consults the lookup table and then the templates, storing the first
// exact match on q.
func (e *Engine) match(q *query, candidates map[string]bool) bool {
	if res, ok := e.model.Lookup().Match(q.words, q.mentions, candidates); ok {
		q.pattern = &res
		q.log.Debug("Lookup matched", map[string]interface{}{"intent": res.Intent})
		return true
	}
	if res, ok := e.model.Patterns().Match(q.words, q.mentions, candidates); ok {
		q.pattern = &res
		q.log.Debug("Template matched", map[string]interface{}{"intent": res.Intent})
		return true
	}
	return false
}

// classify ranks the candidate intents. An exact lookup or unique template
// match wins with confidence 1.0 and the classifier ranking of the
// remaining intents follows it.
func (e *Engine) classify(q *query, candidates map[string]bool) []models.IntentClassificationResult {
	ranking := e.classifier.Classify(classifier.Input{
		Words:    q.words,
		Entities: entityFeatures(q.mentions),
	}, candidates)

	if e.match(q, candidates) {
		out := []models.IntentClassificationResult{models.NamedIntent(q.pattern.Intent, 1)}
		for _, r := range ranking {
			if r.Name() != q.pattern.Intent {
				out = append(out, r)
			}
		}
		ranking = out
	}

	q.advance(stateClassified)
	return ranking
}

// fill labels the slots of intent, preferring an exact match for the same
// intent over the slot filler.
func (e *Engine) fill(q *query, intent string) []slotfiller.Candidate {
	var out []slotfiller.Candidate
	if q.pattern != nil && q.pattern.Intent == intent {
		for _, s := range q.pattern.Slots {
			out = append(out, slotfiller.Candidate{
				SlotName:   s.SlotName,
				Entity:     s.Entity,
				Start:      s.Start,
				End:        s.End,
				Confidence: 1,
			})
		}
	} else if f := e.model.SlotFiller(intent); f != nil {
		out = f.Fill(q.words, q.mentions)
	}
	q.advance(stateSlotsFilled)
	return out
}

// resolve turns candidates into typed slots. Builtin values detected during
// extraction are reused when a mention covers the slot exactly.
func (e *Engine) resolve(q *query, candidates []slotfiller.Candidate) ([]models.Slot, error) {
	slots := make([]models.Slot, 0, len(candidates))
	for _, c := range candidates {
		if c.Start < 0 || c.End > len(q.tokens) || c.Start >= c.End {
			continue
		}
		tokens := q.tokens[c.Start:c.End]
		start, end := tokens[0].Start, tokens[len(tokens)-1].End
		raw := q.text[start:end]

		value, err := e.resolveValue(q, c, tokens, raw)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		slots = append(slots, models.Slot{
			RawValue:        raw,
			Value:           value,
			Entity:          c.Entity,
			SlotName:        c.SlotName,
			RangeStart:      start,
			RangeEnd:        end,
			ConfidenceScore: clamp(c.Confidence),
		})
	}
	q.advance(stateSlotsResolved)
	return slots, nil
}

// resolveValue returns a nil value, and no error, for a slot that is dropped.
func (e *Engine) resolveValue(q *query, c slotfiller.Candidate, tokens []normalizer.Token, raw string) (models.SlotValue, error) {
	if !models.IsBuiltinEntity(c.Entity) {
		g, ok := e.model.Gazetteer(c.Entity)
		if !ok {
			return nil, nil
		}
		v, ok := g.Resolve(tokens, raw)
		if !ok {
			q.log.Debug("Custom value rejected", map[string]interface{}{"entity": c.Entity, "raw": raw})
			return nil, nil
		}
		return v, nil
	}

	for _, m := range q.mentions {
		if m.Entity == c.Entity && m.Start == c.Start && m.End == c.End {
			return m.Value, nil
		}
	}
	v, err := e.resolver.Resolve(c.Entity, raw, q.ref)
	if err == nil {
		return v, nil
	}

	e.observer.SlotResolutionFailed(c.Entity)
	switch e.policy {
	case PolicyFail:
		return nil, err
	case PolicyCustom:
		return models.CustomValue{Value: strings.TrimSpace(raw)}, nil
	}
	q.log.Debug("Slot dropped", map[string]interface{}{"entity": c.Entity, "raw": raw})
	return nil, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
