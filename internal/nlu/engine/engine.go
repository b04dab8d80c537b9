// Package engine runs queries against a loaded model: normalization,
// intent classification, slot filling, entity resolution and assembly.
package engine

import (
	"fmt"
	"time"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/assembler"
	"nlu-engine/internal/nlu/classifier"
	"nlu-engine/internal/nlu/modelstore"
	"nlu-engine/internal/nlu/resolver"
	"nlu-engine/internal/nlu/slotfiller"
)

// Query is one utterance with its optional intent filters. An empty
// whitelist means every intent is a candidate. A zero Reference means the
// time of the call.
type Query struct {
	Text      string
	Whitelist []string
	Blacklist []string
	Reference time.Time
}

// Engine is safe for concurrent use: the model is read-only and every call
// keeps its state on its own stack.
type Engine struct {
	model      *modelstore.Model
	classifier *classifier.Classifier
	resolver   *resolver.Resolver
	logger     logger.Logger
	policy     ResolutionPolicy
	clock      func() time.Time
	observer   Observer
}

// New binds an engine to a compiled model.
func New(model *modelstore.Model, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, errors.NewInvalidInputError("model is required")
	}
	o := options{
		logger:   logger.NewNoOpLogger(),
		locale:   model.Language(),
		policy:   PolicyDrop,
		clock:    time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := ParseResolutionPolicy(string(o.policy))
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	res, err := resolver.New(o.locale)
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("locale %q: %v", o.locale, err))
	}
	clf := model.Classifier()
	if o.threshold != nil {
		if clf, err = clf.WithThreshold(*o.threshold); err != nil {
			return nil, errors.NewInvalidInputError(err.Error())
		}
	}

	e := &Engine{
		model:      model,
		classifier: clf,
		resolver:   res,
		logger:     o.logger.Named("engine"),
		policy:     policy,
		clock:      o.clock,
		observer:   o.observer,
	}
	e.logger.Info("Engine ready", map[string]interface{}{
		"model_version": model.Version(),
		"language":      model.Language(),
		"locale":        res.Locale(),
		"intents":       len(model.IntentNames()),
		"templates":     model.Patterns().Len(),
		"lookup_keys":   model.Lookup().Len(),
		"threshold":     clf.Threshold(),
		"policy":        string(policy),
	})
	return e, nil
}

func (e *Engine) Model() *modelstore.Model {
	return e.model
}

// Parse returns the best intent and, when it is not the null intent, its
// resolved slots.
func (e *Engine) Parse(q Query) (models.ParseResult, error) {
	started := time.Now()
	result, err := e.parse(q)
	e.report(result, err, started)
	return result, err
}

func (e *Engine) parse(q Query) (models.ParseResult, error) {
	st, err := e.prepare(q.Text, q.Reference)
	if err != nil {
		return models.ParseResult{}, err
	}
	candidates := classifier.Candidates(e.model.IntentNames(), q.Whitelist, q.Blacklist)
	ranking := e.classify(st, candidates)
	best := ranking[0]

	var slots []models.Slot
	if !best.IsNone() {
		slots, err = e.resolve(st, e.fill(st, best.Name()))
		if err != nil {
			return models.ParseResult{}, err
		}
	}
	st.advance(stateAssembled)
	return assembler.Assemble(q.Text, best, slots), nil
}

// ParseWithAlternatives returns the best parse followed by up to n parses
// of the next ranked intents. Null intent alternatives carry no slots.
func (e *Engine) ParseWithAlternatives(q Query, n int) (models.ParseAlternatives, error) {
	started := time.Now()
	out, err := e.parseWithAlternatives(q, n)
	e.report(out.ParseResult, err, started)
	return out, err
}

func (e *Engine) parseWithAlternatives(q Query, n int) (models.ParseAlternatives, error) {
	if n < 0 {
		return models.ParseAlternatives{}, errors.NewInvalidInputError("alternatives count must not be negative")
	}
	st, err := e.prepare(q.Text, q.Reference)
	if err != nil {
		return models.ParseAlternatives{}, err
	}
	candidates := classifier.Candidates(e.model.IntentNames(), q.Whitelist, q.Blacklist)
	ranking := e.classify(st, candidates)

	parses := make([]models.ParseResult, 0, min(len(ranking), n+1))
	for _, r := range ranking[:min(len(ranking), n+1)] {
		var slots []models.Slot
		if !r.IsNone() {
			slots, err = e.resolve(st, e.fill(st, r.Name()))
			if err != nil {
				return models.ParseAlternatives{}, err
			}
		}
		parses = append(parses, assembler.Assemble(q.Text, r, slots))
	}
	st.advance(stateAssembled)
	return models.ParseAlternatives{
		ParseResult:  parses[0],
		Alternatives: parses[1:],
	}, nil
}

// GetIntents returns the full ranking over the candidate intents without
// filling slots.
func (e *Engine) GetIntents(q Query) ([]models.IntentClassificationResult, error) {
	st, err := e.prepare(q.Text, q.Reference)
	if err != nil {
		return nil, err
	}
	candidates := classifier.Candidates(e.model.IntentNames(), q.Whitelist, q.Blacklist)
	ranking := e.classify(st, candidates)
	st.advance(stateAssembled)
	return assembler.AssembleIntents(ranking), nil
}

// GetSlots fills the slots of a caller supplied intent, skipping
// classification. The query filters are ignored.
func (e *Engine) GetSlots(q Query, intent string) ([]models.Slot, error) {
	if _, err := assembler.RequireIntent(e.model, intent); err != nil {
		return nil, err
	}
	st, err := e.prepare(q.Text, q.Reference)
	if err != nil {
		return nil, err
	}
	e.match(st, map[string]bool{intent: true})
	slots, err := e.resolve(st, e.fill(st, intent))
	if err != nil {
		return nil, err
	}
	st.advance(stateAssembled)
	return assembler.AssembleSlots(slots), nil
}

// ExtractSlot reads the whole utterance as the value of one slot, as when
// re-prompting for a missing parameter. Builtin and gazetteer entities use
// the first mention found in text; extensible custom entities fall back to
// the full text. A nil slot means nothing matched.
func (e *Engine) ExtractSlot(text, intent, slot string, ref time.Time) (*models.Slot, error) {
	in, err := assembler.RequireIntent(e.model, intent)
	if err != nil {
		return nil, err
	}
	var schema *models.SlotSchema
	for i := range in.Slots {
		if in.Slots[i].Name == slot {
			schema = &in.Slots[i]
		}
	}
	if schema == nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("intent %s has no slot %q", intent, slot))
	}
	st, err := e.prepare(text, ref)
	if err != nil {
		return nil, err
	}
	if len(st.tokens) == 0 {
		st.advance(stateAssembled)
		return nil, nil
	}

	kind, _ := models.KindForEntity(schema.Entity)
	whole := slotfiller.Candidate{
		SlotName:   schema.Name,
		Entity:     schema.Entity,
		Start:      0,
		End:        len(st.tokens),
		Confidence: 1,
	}
	var candidates []slotfiller.Candidate
	switch kind {
	case models.KindMusicAlbum, models.KindMusicArtist, models.KindMusicTrack:
		candidates = append(candidates, whole)
	default:
		for _, m := range st.mentions {
			if m.Entity == schema.Entity {
				whole.Start, whole.End = m.Start, m.End
				candidates = append(candidates, whole)
				break
			}
		}
		if len(candidates) == 0 && kind == models.KindCustom {
			if g, ok := e.model.Gazetteer(schema.Entity); ok && g.Extensible() {
				candidates = append(candidates, whole)
			}
		}
	}
	st.advance(stateSlotsFilled)

	slots, err := e.resolve(st, candidates)
	if err != nil {
		return nil, err
	}
	st.advance(stateAssembled)
	if len(slots) == 0 {
		return nil, nil
	}
	return &slots[0], nil
}

func (e *Engine) report(result models.ParseResult, err error, started time.Time) {
	outcome := OutcomeIntent
	switch {
	case err != nil:
		outcome = OutcomeError
		e.logger.Warn("Parse failed", map[string]interface{}{
			"error":      err.Error(),
			"error_code": string(errors.CodeOf(err)),
		})
	case result.Intent.IsNone():
		outcome = OutcomeNone
	}
	e.observer.ParseCompleted(outcome, time.Since(started), len(result.Slots))
}
