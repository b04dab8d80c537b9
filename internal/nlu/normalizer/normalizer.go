// Package normalizer splits input text into tokens carrying byte spans over
// the original input and a folded form used for matching.
package normalizer

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"nlu-engine/internal/common/errors"
)

type TokenKind int

const (
	KindWord TokenKind = iota
	KindNumber
	KindSymbol
)

func (k TokenKind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindNumber:
		return "number"
	default:
		return "symbol"
	}
}

// Token is a span of the input. Start and End are byte offsets.
type Token struct {
	Value      string
	Normalized string
	Start      int
	End        int
	Kind       TokenKind
}

const punctuation = ".,!?;:\"()[]{}…¿¡«»“”"

// IsPunctuation reports whether the token carries no lexical content.
func (t Token) IsPunctuation() bool {
	return t.Kind == KindSymbol && strings.Contains(punctuation, t.Value)
}

// Normalizer tokenizes text for one language.
type Normalizer struct {
	tag language.Tag
}

// New returns a normalizer for a BCP-47 language tag such as "en" or "en-GB".
func New(lang string) (*Normalizer, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("unsupported language %q: %w", lang, err)
	}
	return &Normalizer{tag: tag}, nil
}

func (n *Normalizer) Language() language.Tag {
	return n.tag
}

// Fold lowercases s and strips combining marks. Casers and transformers are
// stateful, so each call builds its own.
func (n *Normalizer) Fold(s string) string {
	lowered := cases.Lower(n.tag).String(s)
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		lowered,
	)
	if err != nil {
		return lowered
	}
	return stripped
}

// Sequence is a lazy, restartable token stream over one input.
type Sequence struct {
	text string
	n    *Normalizer
}

// Normalize validates text and returns its token sequence.
func (n *Normalizer) Normalize(text string) (Sequence, error) {
	if !utf8.ValidString(text) {
		return Sequence{}, errors.NewInvalidInputError("input is not valid UTF-8")
	}
	return Sequence{text: text, n: n}, nil
}

func (s Sequence) Text() string {
	return s.text
}

// All scans the input from the beginning on every call.
func (s Sequence) All() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		text := s.text
		i := 0
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) {
				i += size
				continue
			}

			start := i
			var kind TokenKind
			switch {
			case isLetter(r):
				kind = KindWord
				i = scanWord(text, i)
			case unicode.IsDigit(r):
				kind = KindNumber
				i = scanNumber(text, i)
			default:
				kind = KindSymbol
				i += size
			}

			value := text[start:i]
			tok := Token{
				Value:      value,
				Normalized: s.n.Fold(value),
				Start:      start,
				End:        i,
				Kind:       kind,
			}
			if !yield(tok) {
				return
			}
		}
	}
}

// Tokens collects the sequence.
func (s Sequence) Tokens() []Token {
	return slices.Collect(s.All())
}

// Content collects the tokens that are not punctuation.
func (s Sequence) Content() []Token {
	var out []Token
	for tok := range s.All() {
		if !tok.IsPunctuation() {
			out = append(out, tok)
		}
	}
	return out
}

// Tokenize is a convenience for callers holding raw text.
func (n *Normalizer) Tokenize(text string) ([]Token, error) {
	seq, err := n.Normalize(text)
	if err != nil {
		return nil, err
	}
	return seq.Content(), nil
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r) || unicode.Is(unicode.Mn, r)
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}

// scanWord consumes letters and apostrophes that sit between letters.
func scanWord(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if isLetter(r) {
			i += size
			continue
		}
		if isApostrophe(r) && i+size < len(text) {
			next, _ := utf8.DecodeRuneInString(text[i+size:])
			if isLetter(next) {
				i += size
				continue
			}
		}
		break
	}
	return i
}

// scanNumber consumes digits with single '.', ',' or ':' separators between them.
func scanNumber(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsDigit(r) {
			i += size
			continue
		}
		if (r == '.' || r == ',' || r == ':') && i+size < len(text) {
			next, _ := utf8.DecodeRuneInString(text[i+size:])
			if unicode.IsDigit(next) {
				i += size
				continue
			}
		}
		break
	}
	return i
}

// Join folds a token run back into a single space separated string.
func Join(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Normalized
	}
	return strings.Join(parts, " ")
}
