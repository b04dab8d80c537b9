package resolver

import (
	"sort"
	"time"

	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/normalizer"
)

// maxMatchTokens bounds the window scanned for a single entity mention.
const maxMatchTokens = 8

// Match is an entity mention over a token slice. Start and End index the
// tokens passed to Extract; End is exclusive.
type Match struct {
	Entity string
	Start  int
	End    int
	Value  models.SlotValue
}

// Extract finds builtin entity mentions. For each entity type it keeps the
// leftmost longest non-overlapping windows that resolve. Mentions of
// different types may overlap. Music entities have no grammar and are
// never extracted.
func (r *Resolver) Extract(tokens []normalizer.Token, entities []string, ref time.Time) []Match {
	if ref.IsZero() {
		ref = time.Now()
	}
	ws := words(tokens)

	var matches []Match
	for _, entity := range entities {
		kind, ok := models.KindForEntity(entity)
		if !ok || kind == models.KindCustom || isMusic(kind) {
			continue
		}
		for start := 0; start < len(ws); {
			end, value := r.longestAt(kind, ws, start, ref)
			if end == 0 {
				start++
				continue
			}
			matches = append(matches, Match{Entity: entity, Start: start, End: end, Value: value})
			start = end
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].End > matches[j].End
	})
	return matches
}

func (r *Resolver) longestAt(kind models.SlotValueKind, ws []string, start int, ref time.Time) (int, models.SlotValue) {
	limit := min(len(ws), start+maxMatchTokens)
	for end := limit; end > start; end-- {
		if v, ok := r.resolveWords(kind, ws[start:end], ref); ok {
			return end, v
		}
	}
	return 0, nil
}

func isMusic(kind models.SlotValueKind) bool {
	return kind == models.KindMusicAlbum || kind == models.KindMusicArtist || kind == models.KindMusicTrack
}
