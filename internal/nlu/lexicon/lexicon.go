// Package lexicon maps folded words to their stems and to hierarchical word
// cluster ids, the word-level resources shared by the intent classifier and
// the slot filler.
package lexicon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"nlu-engine/internal/nlu/normalizer"
)

// ClusterDepth is the number of bits in a cluster path.
const ClusterDepth = 16

// Lexicon is immutable. A nil *Lexicon stems every word to itself and
// clusters nothing.
type Lexicon struct {
	stems    map[string]string
	clusters map[string]string
}

// New folds every key with norm. stems maps a stem to the inflected forms
// that reduce to it; clusters maps a word to a binary path such as "0110".
func New(norm *normalizer.Normalizer, stems map[string][]string, clusters map[string]string) (*Lexicon, error) {
	l := &Lexicon{
		stems:    make(map[string]string),
		clusters: make(map[string]string, len(clusters)),
	}

	roots := make([]string, 0, len(stems))
	for stem := range stems {
		roots = append(roots, stem)
	}
	sort.Strings(roots)
	for _, root := range roots {
		stem := norm.Fold(root)
		if stem == "" {
			return nil, fmt.Errorf("empty stem")
		}
		for _, form := range stems[root] {
			key := norm.Fold(form)
			if prev, ok := l.stems[key]; ok && prev != stem {
				return nil, fmt.Errorf("word %q stems to both %q and %q", form, prev, stem)
			}
			l.stems[key] = stem
		}
	}

	for word, path := range clusters {
		id, err := ClusterID(path)
		if err != nil {
			return nil, fmt.Errorf("word cluster of %q: %w", word, err)
		}
		l.clusters[norm.Fold(word)] = id
	}
	return l, nil
}

// ClusterID pads a binary cluster path with zeros to ClusterDepth bits and
// returns it as a decimal id, so "11" and "1100" name the same cluster.
func ClusterID(path string) (string, error) {
	if path == "" || len(path) > ClusterDepth {
		return "", fmt.Errorf("cluster path %q must have 1 to %d bits", path, ClusterDepth)
	}
	v, err := strconv.ParseUint(path+strings.Repeat("0", ClusterDepth-len(path)), 2, ClusterDepth)
	if err != nil {
		return "", fmt.Errorf("cluster path %q is not binary", path)
	}
	return strconv.FormatUint(v, 10), nil
}

// Stem returns the stem of a folded word, or the word itself.
func (l *Lexicon) Stem(word string) string {
	if l == nil {
		return word
	}
	if stem, ok := l.stems[word]; ok {
		return stem
	}
	return word
}

// Cluster returns the cluster id of a folded word.
func (l *Lexicon) Cluster(word string) (string, bool) {
	if l == nil {
		return "", false
	}
	id, ok := l.clusters[word]
	return id, ok
}

func (l *Lexicon) HasStems() bool {
	return l != nil && len(l.stems) > 0
}

func (l *Lexicon) HasClusters() bool {
	return l != nil && len(l.clusters) > 0
}
