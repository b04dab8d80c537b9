// Package classifier scores intents with a tf-idf featurizer feeding a
// one-vs-rest logistic regression.
package classifier

import (
	"fmt"
	"math"
	"sort"

	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/lexicon"
)

// Params are the trained weights shipped in a model bundle. A nil class is
// the null intent.
type Params struct {
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	Classes      []*string      `json:"classes"`
	Intercepts   []float64      `json:"intercepts"`
	Coefficients [][]float64    `json:"coefficients"`

	// UseStemming counts every word under its stem. UseWordClusters adds a
	// "cluster:<id>" term for each clustered word.
	UseStemming     bool `json:"use_stemming,omitempty"`
	UseWordClusters bool `json:"use_word_clusters,omitempty"`
}

// MaxNullIntentThreshold keeps a threshold-triggered null intent ranked above
// every named intent.
const MaxNullIntentThreshold = 0.5

// Classifier is immutable and safe for concurrent use.
type Classifier struct {
	vocabulary   map[string]int
	idf          []float64
	names        []string
	nullIndex    int
	intercepts   []float64
	coefficients [][]float64
	stopWords    map[string]bool
	threshold    float64
	stemming     bool
	clustering   bool
	lexicon      *lexicon.Lexicon
}

// Input is one featurized utterance: folded content words plus entity
// feature names such as "builtin:snips/number" or "entity:room".
type Input struct {
	Words    []string
	Entities []string
}

// New validates params against each other and the declared intents.
func New(p Params, intents []string, stopWords []string, threshold float64) (*Classifier, error) {
	if threshold < 0 || threshold > MaxNullIntentThreshold {
		return nil, fmt.Errorf("null intent threshold %v outside [0, %v]", threshold, MaxNullIntentThreshold)
	}
	if len(p.IDF) != len(p.Vocabulary) {
		return nil, fmt.Errorf("idf has %d entries for a vocabulary of %d", len(p.IDF), len(p.Vocabulary))
	}
	for term, idx := range p.Vocabulary {
		if idx < 0 || idx >= len(p.IDF) {
			return nil, fmt.Errorf("vocabulary term %q has index %d out of range", term, idx)
		}
	}
	if len(p.Intercepts) != len(p.Classes) || len(p.Coefficients) != len(p.Classes) {
		return nil, fmt.Errorf("%d classes need as many intercepts and coefficient rows", len(p.Classes))
	}

	declared := make(map[string]bool, len(intents))
	for _, name := range intents {
		declared[name] = true
	}

	c := &Classifier{
		vocabulary:   p.Vocabulary,
		idf:          p.IDF,
		names:        make([]string, len(p.Classes)),
		nullIndex:    -1,
		intercepts:   p.Intercepts,
		coefficients: p.Coefficients,
		stopWords:    make(map[string]bool, len(stopWords)),
		threshold:    threshold,
		stemming:     p.UseStemming,
		clustering:   p.UseWordClusters,
	}
	seen := make(map[string]bool)
	for i, class := range p.Classes {
		if len(p.Coefficients[i]) != len(p.IDF) {
			return nil, fmt.Errorf("coefficient row %d has %d weights, want %d", i, len(p.Coefficients[i]), len(p.IDF))
		}
		if class == nil {
			if c.nullIndex >= 0 {
				return nil, fmt.Errorf("more than one null class")
			}
			c.nullIndex = i
			continue
		}
		if !declared[*class] {
			return nil, fmt.Errorf("class %q is not a declared intent", *class)
		}
		if seen[*class] {
			return nil, fmt.Errorf("class %q appears twice", *class)
		}
		seen[*class] = true
		c.names[i] = *class
	}
	for _, name := range intents {
		if !seen[name] {
			return nil, fmt.Errorf("intent %q has no classifier weights", name)
		}
	}
	for _, w := range stopWords {
		c.stopWords[w] = true
	}
	return c, nil
}

func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// WithThreshold returns a copy using a different null intent threshold.
func (c *Classifier) WithThreshold(threshold float64) (*Classifier, error) {
	if threshold < 0 || threshold > MaxNullIntentThreshold {
		return nil, fmt.Errorf("null intent threshold %v outside [0, %v]", threshold, MaxNullIntentThreshold)
	}
	cp := *c
	cp.threshold = threshold
	return &cp, nil
}

// WithLexicon returns a copy featurizing words through l. It fails when the
// weights were trained with a resource l does not carry.
func (c *Classifier) WithLexicon(l *lexicon.Lexicon) (*Classifier, error) {
	if c.stemming && !l.HasStems() {
		return nil, fmt.Errorf("classifier uses stemming but the model has no stems")
	}
	if c.clustering && !l.HasClusters() {
		return nil, fmt.Errorf("classifier uses word clusters but the model has none")
	}
	cp := *c
	cp.lexicon = l
	return &cp, nil
}

// HasNullClass reports whether the model scores the null intent directly.
func (c *Classifier) HasNullClass() bool {
	return c.nullIndex >= 0
}

// Candidates applies the whitelist, when non-empty, and then the blacklist
// to the model intents. Names unknown to the model are ignored.
func Candidates(intents, whitelist, blacklist []string) map[string]bool {
	out := make(map[string]bool, len(intents))
	allowed := make(map[string]bool, len(whitelist))
	for _, name := range whitelist {
		allowed[name] = true
	}
	for _, name := range intents {
		if len(whitelist) == 0 || allowed[name] {
			out[name] = true
		}
	}
	for _, name := range blacklist {
		delete(out, name)
	}
	return out
}

// features builds the L2-normalized tf-idf vector, dense and in vocabulary order.
func (c *Classifier) features(in Input) []float64 {
	x := make([]float64, len(c.idf))
	add := func(term string) {
		if idx, ok := c.vocabulary[term]; ok {
			x[idx]++
		}
	}
	for _, w := range in.Words {
		if c.stopWords[w] {
			continue
		}
		if c.stemming {
			add(c.lexicon.Stem(w))
		} else {
			add(w)
		}
		if c.clustering {
			if id, ok := c.lexicon.Cluster(w); ok {
				add("cluster:" + id)
			}
		}
	}
	for _, e := range in.Entities {
		add(e)
	}

	var norm float64
	for i := range x {
		x[i] *= c.idf[i]
		norm += x[i] * x[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range x {
			x[i] /= norm
		}
	}
	return x
}

// logSigmoid is log(1/(1+e^-z)), stable for logits of any magnitude.
func logSigmoid(z float64) float64 {
	if z >= 0 {
		return -math.Log1p(math.Exp(-z))
	}
	return z - math.Log1p(math.Exp(z))
}

// logScores returns the log sigmoid score of every class.
func (c *Classifier) logScores(in Input) []float64 {
	x := c.features(in)
	scores := make([]float64, len(c.names))
	for k := range c.names {
		z := c.intercepts[k]
		for i, w := range c.coefficients[k] {
			z += w * x[i]
		}
		scores[k] = logSigmoid(z)
	}
	return scores
}

// normalize turns the log scores of the selected classes into probabilities
// summing to one; unselected classes get zero. It reports false when no
// selected score is finite.
func normalize(scores []float64, selected func(k int) bool) ([]float64, bool) {
	best := math.Inf(-1)
	for k, s := range scores {
		if selected(k) && s > best {
			best = s
		}
	}
	if math.IsInf(best, 0) || math.IsNaN(best) {
		return nil, false
	}

	probs := make([]float64, len(scores))
	var sum float64
	for k, s := range scores {
		if selected(k) {
			probs[k] = math.Exp(s - best)
			sum += probs[k]
		}
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, false
	}
	for k := range probs {
		probs[k] /= sum
	}
	return probs, true
}

// Classify ranks the candidate intents, best first. The null intent leads
// when it outscores every candidate, when the best candidate falls below
// the threshold, or when there are no candidates at all.
func (c *Classifier) Classify(in Input, candidates map[string]bool) []models.IntentClassificationResult {
	if len(candidates) == 0 {
		return []models.IntentClassificationResult{models.NoIntent(1)}
	}

	probs, ok := normalize(c.logScores(in), func(k int) bool {
		return k == c.nullIndex || candidates[c.names[k]]
	})
	if !ok {
		return []models.IntentClassificationResult{models.NoIntent(1)}
	}
	var (
		nullP   float64
		ranking []models.IntentClassificationResult
	)
	if c.nullIndex >= 0 {
		nullP = probs[c.nullIndex]
	}
	for k, name := range c.names {
		if k != c.nullIndex && candidates[name] {
			ranking = append(ranking, models.NamedIntent(name, probs[k]))
		}
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].ConfidenceScore != ranking[j].ConfidenceScore {
			return ranking[i].ConfidenceScore > ranking[j].ConfidenceScore
		}
		return ranking[i].Name() < ranking[j].Name()
	})

	if len(ranking) == 0 {
		return []models.IntentClassificationResult{models.NoIntent(1)}
	}
	top := ranking[0].ConfidenceScore
	switch {
	case c.nullIndex >= 0 && nullP >= top:
		return append([]models.IntentClassificationResult{models.NoIntent(nullP)}, ranking...)
	case top < c.threshold:
		return append([]models.IntentClassificationResult{models.NoIntent(1 - top)}, ranking...)
	case c.nullIndex < 0:
		return ranking
	}

	// A named intent wins; the null class keeps its place in the ranking.
	pos := sort.Search(len(ranking), func(i int) bool {
		return ranking[i].ConfidenceScore <= nullP
	})
	ranking = append(ranking, models.IntentClassificationResult{})
	copy(ranking[pos+1:], ranking[pos:])
	ranking[pos] = models.NoIntent(nullP)
	return ranking
}
