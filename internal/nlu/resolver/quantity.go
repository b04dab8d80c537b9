package resolver

import (
	"math"

	"nlu-engine/internal/models"
)

const fractionEpsilon = 1e-9

// ==========================
// Money
// ==========================

func isCurrencySymbol(w string) bool {
	switch w {
	case "$", "€", "£", "¥":
		return true
	}
	return false
}

func (g *grammar) parseMoney(ws []string) (models.AmountOfMoneyValue, bool) {
	ws, approx := g.stripApprox(ws)
	if len(ws) < 2 {
		return models.AmountOfMoneyValue{}, false
	}
	precision := models.PrecisionExact
	if approx {
		precision = models.PrecisionApproximate
	}

	// "$ 20", "€ 1.5 million"
	if isCurrencySymbol(ws[0]) {
		v, ok := g.parseNumber(ws[1:])
		if !ok || v < 0 {
			return models.AmountOfMoneyValue{}, false
		}
		return models.AmountOfMoneyValue{Unit: g.currencies[ws[0]], Value: v, Precision: precision}, true
	}

	for k := 1; k < len(ws); k++ {
		unit, ok := g.currencies[ws[k]]
		if !ok {
			continue
		}
		v, ok := g.parseNumber(ws[:k])
		if !ok || v < 0 {
			return models.AmountOfMoneyValue{}, false
		}
		rest := ws[k+1:]
		if len(rest) == 0 {
			return models.AmountOfMoneyValue{Unit: unit, Value: v, Precision: precision}, true
		}
		// "5 dollars and 20 cents"
		if unit == "cent" || rest[0] != "and" || len(rest) < 3 || g.currencies[rest[len(rest)-1]] != "cent" {
			return models.AmountOfMoneyValue{}, false
		}
		cents, ok := g.parseNumber(rest[1 : len(rest)-1])
		if !ok || cents < 0 || cents >= 100 {
			return models.AmountOfMoneyValue{}, false
		}
		return models.AmountOfMoneyValue{Unit: unit, Value: v + cents/100, Precision: precision}, true
	}
	return models.AmountOfMoneyValue{}, false
}

// ==========================
// Temperature
// ==========================

func (g *grammar) parseTemperature(ws []string) (models.TemperatureValue, bool) {
	ws, _ = g.stripApprox(ws)
	for k := 1; k < len(ws); k++ {
		w := ws[k]
		fullUnit := len(w) > 1 && g.tempUnits[w] != ""
		if !g.degrees[w] && !fullUnit {
			continue
		}
		v, ok := g.parseNumber(ws[:k])
		if !ok {
			return models.TemperatureValue{}, false
		}
		rest := ws[k:]
		switch {
		case len(rest) == 1 && g.degrees[w]:
			return models.TemperatureValue{Unit: "degree", Value: v}, true
		case len(rest) == 1:
			return models.TemperatureValue{Unit: g.tempUnits[w], Value: v}, true
		case len(rest) == 2 && g.degrees[w] && g.tempUnits[rest[1]] != "":
			return models.TemperatureValue{Unit: g.tempUnits[rest[1]], Value: v}, true
		}
		return models.TemperatureValue{}, false
	}
	return models.TemperatureValue{}, false
}

// ==========================
// Duration
// ==========================

// parseQuantity reads the count in front of a duration unit.
func (g *grammar) parseQuantity(ws []string) (float64, bool) {
	if len(ws) == 1 && (ws[0] == "a" || ws[0] == "an") {
		return 1, true
	}
	// "one and a half"
	if n := len(ws); n >= 4 && ws[n-3] == "and" && (ws[n-2] == "a" || ws[n-2] == "an") && ws[n-1] == "half" {
		v, ok := g.parseUnsigned(ws[:n-3])
		return v + 0.5, ok
	}
	v, ok := g.parseUnsigned(ws)
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}

// parseDuration reads "2 hours and 30 minutes", "half an hour" or "an hour and a half".
// Every component needs an explicit count.
func (g *grammar) parseDuration(ws []string) (models.DurationValue, bool) {
	ws, approx := g.stripApprox(ws)
	var amounts [unitYear + 1]float64
	last := durationUnit(-1)
	seen := false

	i := 0
	for i < len(ws) {
		if seen && (ws[i] == "and" || ws[i] == ",") {
			if i+2 < len(ws) && (ws[i+1] == "a" || ws[i+1] == "an") && ws[i+2] == "half" {
				amounts[last] += 0.5
				i += 3
				continue
			}
			i++
			if i == len(ws) {
				return models.DurationValue{}, false
			}
			continue
		}
		if ws[i] == "half" && i+2 < len(ws) && (ws[i+1] == "a" || ws[i+1] == "an") {
			if u, ok := g.durations[ws[i+2]]; ok {
				amounts[u] += 0.5
				last, seen = u, true
				i += 3
				continue
			}
		}

		found := false
		for j := i + 1; j < len(ws) && j <= i+6; j++ {
			u, ok := g.durations[ws[j]]
			if !ok {
				continue
			}
			q, ok := g.parseQuantity(ws[i:j])
			if !ok {
				break
			}
			amounts[u] += q
			last, seen, found = u, true, true
			i = j + 1
			break
		}
		if !found {
			return models.DurationValue{}, false
		}
	}
	if !seen {
		return models.DurationValue{}, false
	}

	for _, a := range amounts {
		if a >= int64Limit {
			return models.DurationValue{}, false
		}
	}

	d := decompose(amounts)
	d.Precision = models.PrecisionExact
	if approx {
		d.Precision = models.PrecisionApproximate
	}
	return d, true
}

// carry lists how a fraction of each unit is expressed in the next finer one.
var carry = [...]struct {
	into   durationUnit
	factor float64
}{
	unitYear:    {unitMonth, 12},
	unitQuarter: {unitMonth, 3},
	unitMonth:   {unitDay, 30},
	unitWeek:    {unitDay, 7},
	unitDay:     {unitHour, 24},
	unitHour:    {unitMinute, 60},
	unitMinute:  {unitSecond, 60},
}

// decompose splits fractional amounts down to whole numbers per bucket.
func decompose(amounts [unitYear + 1]float64) models.DurationValue {
	var whole [unitYear + 1]int64
	for u := unitYear; u > unitSecond; u-- {
		v := amounts[u]
		w := math.Floor(v + fractionEpsilon)
		frac := v - w
		whole[u] = int64(w)
		if frac > fractionEpsilon {
			amounts[carry[u].into] += frac * carry[u].factor
		}
	}
	whole[unitSecond] = int64(math.Round(amounts[unitSecond]))

	return models.DurationValue{
		Years:    whole[unitYear],
		Quarters: whole[unitQuarter],
		Months:   whole[unitMonth],
		Weeks:    whole[unitWeek],
		Days:     whole[unitDay],
		Hours:    whole[unitHour],
		Minutes:  whole[unitMinute],
		Seconds:  whole[unitSecond],
	}
}
