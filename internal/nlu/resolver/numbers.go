package resolver

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var thousandsPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

// parseNumeral reads a single digit token such as "42", "3.5" or "1,000.50".
func parseNumeral(s string) (float64, bool) {
	if s == "" || strings.Contains(s, ":") {
		return 0, false
	}
	if strings.Contains(s, ",") {
		if !thousandsPattern.MatchString(s) {
			return 0, false
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	if s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isInteger(v float64) bool {
	return v == math.Trunc(v) && !math.IsInf(v, 0)
}

// parseNumber reads a signed cardinal written with digits, words or both.
func (g *grammar) parseNumber(ws []string) (float64, bool) {
	if len(ws) == 0 {
		return 0, false
	}
	sign := 1.0
	if g.negatives[ws[0]] && len(ws) > 1 {
		sign = -1
		ws = ws[1:]
	}
	v, ok := g.parseUnsigned(ws)
	return sign * v, ok
}

func (g *grammar) parseUnsigned(ws []string) (float64, bool) {
	switch len(ws) {
	case 0:
		return 0, false
	case 1:
		if v, ok := parseNumeral(ws[0]); ok {
			return v, true
		}
	case 2:
		if v, ok := parseNumeral(ws[0]); ok {
			if scale, ok := g.scales[ws[1]]; ok {
				return v * scale, true
			}
			return 0, false
		}
	}

	for i, w := range ws {
		if w != "point" {
			continue
		}
		whole, ok := g.parseWords(ws[:i])
		if !ok {
			return 0, false
		}
		frac, ok := g.parseDecimalDigits(ws[i+1:])
		if !ok {
			return 0, false
		}
		return whole + frac, true
	}
	return g.parseWords(ws)
}

// parseDecimalDigits reads "five" or "two five" after "point" as .5 or .25.
func (g *grammar) parseDecimalDigits(ws []string) (float64, bool) {
	if len(ws) == 0 {
		return 0, false
	}
	var b strings.Builder
	b.WriteString("0.")
	for _, w := range ws {
		d, ok := g.units[w]
		if !ok || d > 9 {
			return 0, false
		}
		b.WriteByte(byte('0' + d))
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	return v, err == nil
}

type wordClass int

const (
	classNone wordClass = iota
	classUnit
	classTeen
	classTens
	classHundred
	classScale
	classAnd
	classHyphen
	classArticle
)

// parseWords reads spelled-out cardinals such as "two hundred and twenty-one".
func (g *grammar) parseWords(ws []string) (float64, bool) {
	if len(ws) == 0 {
		return 0, false
	}
	var total, current float64
	last := classNone
	seen := false

	for i, w := range ws {
		hasNext := i+1 < len(ws)
		switch {
		case w == "a" || w == "an":
			if i != 0 || !hasNext {
				return 0, false
			}
			if _, ok := g.scales[ws[i+1]]; !ok {
				return 0, false
			}
			current = 1
			last = classArticle

		case w == "and":
			if (last != classHundred && last != classScale) || !hasNext {
				return 0, false
			}
			last = classAnd

		case w == "-":
			if last != classTens || !hasNext {
				return 0, false
			}
			last = classHyphen

		case isUnitWord(g, w):
			v := g.units[w]
			switch last {
			case classUnit, classTeen:
				return 0, false
			case classTens, classHyphen:
				if v == 0 || v >= 10 {
					return 0, false
				}
			}
			current += float64(v)
			if v >= 10 {
				last = classTeen
			} else {
				last = classUnit
			}
			seen = true

		case isTensWord(g, w):
			switch last {
			case classUnit, classTeen, classTens, classHyphen:
				return 0, false
			}
			current += float64(g.tens[w])
			last = classTens
			seen = true

		case w == "hundred":
			if last == classHundred || math.Mod(current, 1000) >= 100 {
				return 0, false
			}
			if current == 0 {
				current = 1
			}
			current *= 100
			last = classHundred

		case w == "dozen":
			if current == 0 {
				current = 1
			}
			current *= 12
			last = classScale

		case w == "thousand" || w == "million" || w == "billion":
			if current == 0 {
				current = 1
			}
			total += current * g.scales[w]
			current = 0
			last = classScale

		default:
			return 0, false
		}
	}

	switch last {
	case classAnd, classHyphen, classArticle:
		return 0, false
	}
	if !seen && last != classHundred && last != classScale {
		return 0, false
	}
	return total + current, true
}

func isUnitWord(g *grammar, w string) bool {
	_, ok := g.units[w]
	return ok
}

func isTensWord(g *grammar, w string) bool {
	_, ok := g.tens[w]
	return ok
}

func ordinalSuffix(n int64) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// parseOrdinal reads "3rd", "third", "twenty-first" or "one hundred and first".
// Values past the int64 range are rejected.
func (g *grammar) parseOrdinal(ws []string) (int64, bool) {
	if len(ws) == 2 && g.ordSuffix[ws[1]] {
		v, ok := parseNumeral(ws[0])
		if !ok || !isInteger(v) || strings.Contains(ws[0], ".") {
			return 0, false
		}
		n, ok := ordinalValue(v)
		if !ok || ordinalSuffix(n) != ws[1] {
			return 0, false
		}
		return n, true
	}
	if len(ws) == 0 {
		return 0, false
	}

	v, ok := g.ordinals[ws[len(ws)-1]]
	if !ok {
		return 0, false
	}
	prefix := ws[:len(ws)-1]
	for len(prefix) > 0 && (prefix[len(prefix)-1] == "-" || prefix[len(prefix)-1] == "and") {
		prefix = prefix[:len(prefix)-1]
	}
	if len(prefix) == 0 {
		return int64(v), true
	}

	p, ok := g.parseWords(prefix)
	if !ok || p <= 0 {
		return 0, false
	}
	if v == 100 || v == 1000 {
		return ordinalValue(p * float64(v))
	}
	if math.Mod(p, 10) != 0 {
		return 0, false
	}
	return ordinalValue(p + float64(v))
}

// int64Limit is 2^63, the smallest magnitude an int64 cannot hold.
const int64Limit = 1 << 63

func ordinalValue(v float64) (int64, bool) {
	if v < 0 || v >= int64Limit || !isInteger(v) {
		return 0, false
	}
	return int64(v), true
}

// parsePercentage reads a number followed by "%", "percent" or "per cent".
func (g *grammar) parsePercentage(ws []string) (float64, bool) {
	switch {
	case len(ws) >= 2 && g.percent[ws[len(ws)-1]]:
		ws = ws[:len(ws)-1]
	case len(ws) >= 3 && ws[len(ws)-2] == "per" && ws[len(ws)-1] == "cent":
		ws = ws[:len(ws)-2]
	default:
		return 0, false
	}
	return g.parseNumber(ws)
}

// stripApprox removes a leading approximation marker.
func (g *grammar) stripApprox(ws []string) ([]string, bool) {
	if len(ws) > 1 && g.approx[ws[0]] {
		return ws[1:], true
	}
	if len(ws) > 3 && ws[0] == "more" && ws[1] == "or" && ws[2] == "less" {
		return ws[3:], true
	}
	return ws, false
}
