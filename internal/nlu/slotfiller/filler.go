// Package slotfiller labels tokens with slot names using a linear-chain
// conditional random field.
package slotfiller

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/lexicon"
	"nlu-engine/internal/nlu/resolver"
)

// StartLabel keys the transitions allowed at the beginning of a sequence.
const StartLabel = "<start>"

// Params are the trained weights for one intent.
type Params struct {
	TaggingScheme  string                        `json:"tagging_scheme"`
	FeatureWeights map[string]map[string]float64 `json:"feature_weights,omitempty"`
	Transitions    map[string]map[string]float64 `json:"transitions,omitempty"`
}

// Candidate is an unresolved slot over tokens [Start, End).
type Candidate struct {
	SlotName   string
	Entity     string
	Start      int
	End        int
	Confidence float64
}

// Filler decodes slots for a single intent. It is immutable.
type Filler struct {
	intent   string
	scheme   Scheme
	labels   []label
	entities map[string]string
	weights  map[string][]float64
	start    []float64
	trans    [][]float64
	canStart []bool
	canEnd   []bool
	canMove  [][]bool
	lexicon  *lexicon.Lexicon
}

// New compiles params for intent. An intent without slots yields a filler
// that never emits anything.
func New(intent models.Intent, p Params) (*Filler, error) {
	scheme, err := ParseScheme(p.TaggingScheme)
	if err != nil {
		return nil, err
	}

	f := &Filler{
		intent:   intent.Name,
		scheme:   scheme,
		entities: make(map[string]string, len(intent.Slots)),
		weights:  make(map[string][]float64, len(p.FeatureWeights)),
	}
	slots := make([]string, 0, len(intent.Slots))
	for _, s := range intent.Slots {
		if strings.Contains(s.Name, "-") {
			return nil, fmt.Errorf("slot name %q may not contain '-'", s.Name)
		}
		f.entities[s.Name] = s.Entity
		slots = append(slots, s.Name)
	}

	names := scheme.labels(slots)
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
		f.labels = append(f.labels, splitLabel(n))
	}
	n := len(names)

	for feature, byLabel := range p.FeatureWeights {
		row := make([]float64, n)
		for l, w := range byLabel {
			i, ok := index[l]
			if !ok {
				return nil, fmt.Errorf("feature %q weights unknown label %q", feature, l)
			}
			row[i] = w
		}
		f.weights[feature] = row
	}

	f.start = make([]float64, n)
	f.trans = make([][]float64, n)
	for i := range f.trans {
		f.trans[i] = make([]float64, n)
	}
	for from, byLabel := range p.Transitions {
		var row []float64
		if from == StartLabel {
			row = f.start
		} else {
			i, ok := index[from]
			if !ok {
				return nil, fmt.Errorf("transition from unknown label %q", from)
			}
			row = f.trans[i]
		}
		for to, w := range byLabel {
			j, ok := index[to]
			if !ok {
				return nil, fmt.Errorf("transition to unknown label %q", to)
			}
			row[j] = w
		}
	}

	f.canStart = make([]bool, n)
	f.canEnd = make([]bool, n)
	f.canMove = make([][]bool, n)
	for j, to := range f.labels {
		f.canStart[j] = scheme.allowed(nil, to)
		f.canEnd[j] = scheme.allowedEnd(to)
	}
	for i := range f.labels {
		from := f.labels[i]
		f.canMove[i] = make([]bool, n)
		for j, to := range f.labels {
			f.canMove[i][j] = scheme.allowed(&from, to)
		}
	}
	return f, nil
}

func (f *Filler) Intent() string {
	return f.intent
}

func (f *Filler) Scheme() Scheme {
	return f.scheme
}

// WithLexicon returns a copy that also emits stem and word cluster features.
func (f *Filler) WithLexicon(l *lexicon.Lexicon) *Filler {
	cp := *f
	cp.lexicon = l
	return &cp
}

// Fill labels words, the folded content tokens of an utterance, and
// returns non-overlapping maximal slot spans in token order. Mentions are
// builtin and gazetteer matches over the same tokens.
func (f *Filler) Fill(words []string, mentions []resolver.Match) []Candidate {
	if len(words) == 0 || len(f.entities) == 0 {
		return nil
	}
	emissions := f.emissions(words, mentions)
	path := f.viterbi(emissions)

	labels := make([]label, len(path))
	for i, l := range path {
		labels[i] = f.labels[l]
	}
	spans := f.scheme.decode(labels)
	if len(spans) == 0 {
		return nil
	}

	alpha, beta, logZ := f.forwardBackward(emissions)
	out := make([]Candidate, 0, len(spans))
	for _, s := range spans {
		out = append(out, Candidate{
			SlotName:   s.slot,
			Entity:     f.entities[s.slot],
			Start:      s.start,
			End:        s.end,
			Confidence: f.pathMarginal(emissions, alpha, beta, logZ, path, s.start, s.end),
		})
	}
	return out
}

// ==========================
// Features
// ==========================

func shape(w string) string {
	var digits, letters int
	for _, r := range w {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
		}
	}
	switch {
	case digits > 0 && letters == 0:
		return "d"
	case letters > 0 && digits == 0:
		return "x"
	case letters > 0:
		return "xd"
	}
	return "s"
}

func affixes(w string) (string, string) {
	if utf8.RuneCountInString(w) <= 3 {
		return w, w
	}
	runes := []rune(w)
	return string(runes[:3]), string(runes[len(runes)-3:])
}

// tokenFeatures lists the feature names active at position i. lex may be nil.
func tokenFeatures(words []string, mentions []resolver.Match, lex *lexicon.Lexicon, i int) []string {
	w := words[i]
	prefix, suffix := affixes(w)
	features := []string{"bias", "w=" + w, "shape=" + shape(w), "prefix=" + prefix, "suffix=" + suffix}
	if lex.HasStems() {
		features = append(features, "stem="+lex.Stem(w))
	}
	if id, ok := lex.Cluster(w); ok {
		features = append(features, "cluster="+id)
	}
	if i > 0 {
		features = append(features, "w[-1]="+words[i-1])
	} else {
		features = append(features, "w[-1]=<s>")
	}
	if i+1 < len(words) {
		features = append(features, "w[+1]="+words[i+1])
	} else {
		features = append(features, "w[+1]=</s>")
	}
	for _, m := range mentions {
		if i < m.Start || i >= m.End {
			continue
		}
		kind := "entity"
		if models.IsBuiltinEntity(m.Entity) {
			kind = "builtin"
		}
		position := "I"
		if i == m.Start {
			position = "B"
		}
		features = append(features, kind+":"+position+":"+m.Entity)
	}
	sort.Strings(features)
	return features
}

func (f *Filler) emissions(words []string, mentions []resolver.Match) [][]float64 {
	out := make([][]float64, len(words))
	for i := range words {
		row := make([]float64, len(f.labels))
		for _, feature := range tokenFeatures(words, mentions, f.lexicon, i) {
			if weights, ok := f.weights[feature]; ok {
				for l, w := range weights {
					row[l] += w
				}
			}
		}
		out[i] = row
	}
	return out
}

// ==========================
// Inference
// ==========================

var negInf = math.Inf(-1)

func (f *Filler) startScore(l int) float64 {
	if !f.canStart[l] {
		return negInf
	}
	return f.start[l]
}

func (f *Filler) moveScore(from, to int) float64 {
	if !f.canMove[from][to] {
		return negInf
	}
	return f.trans[from][to]
}

func (f *Filler) endScore(l int) float64 {
	if !f.canEnd[l] {
		return negInf
	}
	return 0
}

// viterbi returns the best label index per token. Ties keep the lower label index.
func (f *Filler) viterbi(emissions [][]float64) []int {
	n, k := len(emissions), len(f.labels)
	score := make([][]float64, n)
	back := make([][]int, n)
	for t := range score {
		score[t] = make([]float64, k)
		back[t] = make([]int, k)
	}
	for l := 0; l < k; l++ {
		score[0][l] = f.startScore(l) + emissions[0][l]
	}
	for t := 1; t < n; t++ {
		for l := 0; l < k; l++ {
			best, arg := negInf, 0
			for p := 0; p < k; p++ {
				if s := score[t-1][p] + f.moveScore(p, l); s > best {
					best, arg = s, p
				}
			}
			score[t][l] = best + emissions[t][l]
			back[t][l] = arg
		}
	}

	best, last := negInf, 0
	for l := 0; l < k; l++ {
		if s := score[n-1][l] + f.endScore(l); s > best {
			best, last = s, l
		}
	}
	path := make([]int, n)
	path[n-1] = last
	for t := n - 1; t > 0; t-- {
		path[t-1] = back[t][path[t]]
	}
	return path
}

func logSumExp(values []float64) float64 {
	m := negInf
	for _, v := range values {
		m = math.Max(m, v)
	}
	if math.IsInf(m, -1) {
		return m
	}
	var sum float64
	for _, v := range values {
		sum += math.Exp(v - m)
	}
	return m + math.Log(sum)
}

// forwardBackward returns log-space alpha (emission included) and beta
// (emission excluded) tables and the log partition function.
func (f *Filler) forwardBackward(emissions [][]float64) ([][]float64, [][]float64, float64) {
	n, k := len(emissions), len(f.labels)
	alpha := make([][]float64, n)
	beta := make([][]float64, n)
	for t := range alpha {
		alpha[t] = make([]float64, k)
		beta[t] = make([]float64, k)
	}
	terms := make([]float64, k)

	for l := 0; l < k; l++ {
		alpha[0][l] = f.startScore(l) + emissions[0][l]
	}
	for t := 1; t < n; t++ {
		for l := 0; l < k; l++ {
			for p := 0; p < k; p++ {
				terms[p] = alpha[t-1][p] + f.moveScore(p, l)
			}
			alpha[t][l] = logSumExp(terms) + emissions[t][l]
		}
	}

	for l := 0; l < k; l++ {
		beta[n-1][l] = f.endScore(l)
	}
	for t := n - 2; t >= 0; t-- {
		for l := 0; l < k; l++ {
			for q := 0; q < k; q++ {
				terms[q] = f.moveScore(l, q) + emissions[t+1][q] + beta[t+1][q]
			}
			beta[t][l] = logSumExp(terms)
		}
	}

	for l := 0; l < k; l++ {
		terms[l] = alpha[n-1][l] + beta[n-1][l]
	}
	return alpha, beta, logSumExp(terms)
}

// pathMarginal is the probability, under the full CRF distribution, that
// tokens [start, end) carry exactly the labels of path.
func (f *Filler) pathMarginal(emissions, alpha, beta [][]float64, logZ float64, path []int, start, end int) float64 {
	score := alpha[start][path[start]]
	for t := start + 1; t < end; t++ {
		score += f.moveScore(path[t-1], path[t]) + emissions[t][path[t]]
	}
	score += beta[end-1][path[end-1]]
	p := math.Exp(score - logZ)
	return math.Max(0, math.Min(1, p))
}
