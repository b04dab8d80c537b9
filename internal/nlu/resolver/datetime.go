package resolver

import (
	"strconv"
	"strings"
	"time"

	"nlu-engine/internal/models"
)

// InstantLayout is the wire format of resolved instants.
const InstantLayout = "2006-01-02 15:04:05 -07:00"

type meridiem int

const (
	meridiemNone meridiem = iota
	meridiemAM
	meridiemPM
)

type clockTime struct {
	hour, minute, second int
	grain                models.Grain
	ambiguous            bool
	nextDay              bool
	meridiem             meridiem
}

type dateValue struct {
	day   time.Time
	grain models.Grain
}

// instantSpec is a resolved instant plus the span it denotes and the parts
// it was built from, so interval endpoints can borrow each other's date.
type instantSpec struct {
	t         time.Time
	end       time.Time
	grain     models.Grain
	precision models.Precision
	date      *dateValue
	clock     *clockTime
}

type timeContext struct {
	g        *grammar
	ref      time.Time
	dayFirst bool
	// bareHours lets "3" stand for a time of day inside an interval.
	bareHours bool
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func truncate(t time.Time, grain models.Grain) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch grain {
	case models.GrainYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	case models.GrainQuarter:
		return time.Date(y, ((m-1)/3)*3+1, 1, 0, 0, 0, 0, loc)
	case models.GrainMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case models.GrainWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case models.GrainDay:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case models.GrainHour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case models.GrainMinute:
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
	default:
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, loc)
	}
}

// grainEnd returns the exclusive end of the grain-sized span starting at t.
func grainEnd(t time.Time, grain models.Grain) time.Time {
	switch grain {
	case models.GrainYear:
		return t.AddDate(1, 0, 0)
	case models.GrainQuarter:
		return t.AddDate(0, 3, 0)
	case models.GrainMonth:
		return t.AddDate(0, 1, 0)
	case models.GrainWeek:
		return t.AddDate(0, 0, 7)
	case models.GrainDay:
		return t.AddDate(0, 0, 1)
	case models.GrainHour:
		return t.Add(time.Hour)
	case models.GrainMinute:
		return t.Add(time.Minute)
	default:
		return t.Add(time.Second)
	}
}

func formatInstant(t time.Time) string {
	return t.Format(InstantLayout)
}

func trimPrefix(ws []string, words ...string) []string {
	if len(ws) < 2 {
		return ws
	}
	for _, w := range words {
		if ws[0] == w {
			return ws[1:]
		}
	}
	return ws
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1900 || y > 2100 {
		return 0, false
	}
	return y, true
}

// nextWeekday returns the first day on or after from (strictly after when strict) falling on wd.
func nextWeekday(from time.Time, wd time.Weekday, strict bool) time.Time {
	delta := (int(wd) - int(from.Weekday()) + 7) % 7
	if delta == 0 && strict {
		delta = 7
	}
	return from.AddDate(0, 0, delta)
}

func previousWeekday(from time.Time, wd time.Weekday) time.Time {
	delta := (int(from.Weekday()) - int(wd) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return from.AddDate(0, 0, -delta)
}

// ==========================
// Dates
// ==========================

func (c *timeContext) today() time.Time {
	return startOfDay(c.ref)
}

func (c *timeContext) parseDate(ws []string) (dateValue, bool) {
	ws = trimPrefix(ws, "on")
	if len(ws) == 0 {
		return dateValue{}, false
	}
	today := c.today()

	if len(ws) == 1 {
		w := ws[0]
		switch w {
		case "today":
			return dateValue{today, models.GrainDay}, true
		case "tomorrow":
			return dateValue{today.AddDate(0, 0, 1), models.GrainDay}, true
		case "yesterday":
			return dateValue{today.AddDate(0, 0, -1), models.GrainDay}, true
		}
		if wd, ok := c.g.weekdays[w]; ok {
			return dateValue{nextWeekday(today, wd, false), models.GrainDay}, true
		}
		// "may" alone is far more often a verb.
		if m, ok := c.g.months[w]; ok && w != "may" {
			return c.monthOccurrence(m), true
		}
		if y, ok := parseYear(w); ok {
			return dateValue{time.Date(y, time.January, 1, 0, 0, 0, 0, c.ref.Location()), models.GrainYear}, true
		}
		return c.parseNumericDate(ws)
	}

	switch strings.Join(ws, " ") {
	case "day after tomorrow", "the day after tomorrow":
		return dateValue{today.AddDate(0, 0, 2), models.GrainDay}, true
	case "day before yesterday", "the day before yesterday":
		return dateValue{today.AddDate(0, 0, -2), models.GrainDay}, true
	}

	if ws[0] == "in" {
		return c.parseMonthOrYear(ws[1:])
	}

	if len(ws) == 2 {
		switch ws[0] {
		case "this", "next", "last", "coming":
			return c.parseRelativePeriod(ws[0], ws[1])
		}
	}

	if d, ok := c.parseCalendarDate(ws); ok {
		return d, true
	}
	if d, ok := c.parseNumericDate(ws); ok {
		return d, true
	}
	return c.parseMonthOrYear(ws)
}

// monthOccurrence picks this year's month unless it has already passed.
func (c *timeContext) monthOccurrence(m time.Month) dateValue {
	year := c.ref.Year()
	if m < c.ref.Month() {
		year++
	}
	return dateValue{time.Date(year, m, 1, 0, 0, 0, 0, c.ref.Location()), models.GrainMonth}
}

func (c *timeContext) parseMonthOrYear(ws []string) (dateValue, bool) {
	switch len(ws) {
	case 1:
		if m, ok := c.g.months[ws[0]]; ok {
			return c.monthOccurrence(m), true
		}
		if y, ok := parseYear(ws[0]); ok {
			return dateValue{time.Date(y, time.January, 1, 0, 0, 0, 0, c.ref.Location()), models.GrainYear}, true
		}
	case 2:
		m, okMonth := c.g.months[ws[0]]
		y, okYear := parseYear(ws[1])
		if okMonth && okYear {
			return dateValue{time.Date(y, m, 1, 0, 0, 0, 0, c.ref.Location()), models.GrainMonth}, true
		}
	}
	return dateValue{}, false
}

func (c *timeContext) parseRelativePeriod(modifier, unit string) (dateValue, bool) {
	today := c.today()
	step := 0
	switch modifier {
	case "next", "coming":
		step = 1
	case "last":
		step = -1
	}

	if wd, ok := c.g.weekdays[unit]; ok {
		switch step {
		case 1:
			return dateValue{nextWeekday(today, wd, true), models.GrainDay}, true
		case -1:
			return dateValue{previousWeekday(today, wd), models.GrainDay}, true
		default:
			return dateValue{nextWeekday(today, wd, false), models.GrainDay}, true
		}
	}

	switch unit {
	case "week":
		return dateValue{truncate(today, models.GrainWeek).AddDate(0, 0, 7*step), models.GrainWeek}, true
	case "month":
		return dateValue{truncate(today, models.GrainMonth).AddDate(0, step, 0), models.GrainMonth}, true
	case "quarter":
		return dateValue{truncate(today, models.GrainQuarter).AddDate(0, 3*step, 0), models.GrainQuarter}, true
	case "year":
		return dateValue{truncate(today, models.GrainYear).AddDate(step, 0, 0), models.GrainYear}, true
	}
	return dateValue{}, false
}

func (c *timeContext) dayNumber(ws []string) (int, bool) {
	ws = trimPrefix(ws, "the")
	if len(ws) == 1 {
		if v, ok := parseNumeral(ws[0]); ok && isInteger(v) && !strings.Contains(ws[0], ".") {
			if v >= 1 && v <= 31 {
				return int(v), true
			}
			return 0, false
		}
	}
	n, ok := c.g.parseOrdinal(ws)
	if !ok || n < 1 || n > 31 {
		return 0, false
	}
	return int(n), true
}

// buildDate validates the day of month and rolls year-less dates forward.
func (c *timeContext) buildDate(year int, hasYear bool, m time.Month, day int) (dateValue, bool) {
	if !hasYear {
		year = c.ref.Year()
	}
	t := time.Date(year, m, day, 0, 0, 0, 0, c.ref.Location())
	if t.Day() != day {
		return dateValue{}, false
	}
	if !hasYear && t.Before(c.today()) {
		t = time.Date(year+1, m, day, 0, 0, 0, 0, c.ref.Location())
		if t.Day() != day {
			return dateValue{}, false
		}
	}
	return dateValue{t, models.GrainDay}, true
}

// parseCalendarDate reads "march 3rd", "3 march 2027" and "the 3rd of march".
func (c *timeContext) parseCalendarDate(ws []string) (dateValue, bool) {
	ws = trimPrefix(ws, "the")
	if len(ws) < 2 {
		return dateValue{}, false
	}

	year, hasYear := 0, false
	if y, ok := parseYear(ws[len(ws)-1]); ok && len(ws) > 2 {
		year, hasYear = y, true
		ws = ws[:len(ws)-1]
	}

	if m, ok := c.g.months[ws[0]]; ok {
		if day, ok := c.dayNumber(ws[1:]); ok {
			return c.buildDate(year, hasYear, m, day)
		}
		return dateValue{}, false
	}

	last := len(ws) - 1
	m, ok := c.g.months[ws[last]]
	if !ok {
		return dateValue{}, false
	}
	dayPart := ws[:last]
	if len(dayPart) > 1 && dayPart[len(dayPart)-1] == "of" {
		dayPart = dayPart[:len(dayPart)-1]
	}
	day, ok := c.dayNumber(dayPart)
	if !ok {
		return dateValue{}, false
	}
	return c.buildDate(year, hasYear, m, day)
}

// parseNumericDate reads "2026-10-19", "10/19/2026", "19/10", "19.10.2026".
func (c *timeContext) parseNumericDate(ws []string) (dateValue, bool) {
	var parts []string
	switch {
	case len(ws) == 1 && strings.Count(ws[0], ".") == 2:
		parts = strings.Split(ws[0], ".")
		return c.numericParts(parts[2], parts[1], parts[0], true)
	case len(ws) == 5 && ws[1] == ws[3] && (ws[1] == "-" || ws[1] == "/"):
		parts = []string{ws[0], ws[2], ws[4]}
	case len(ws) == 3 && ws[1] == "/":
		parts = []string{ws[0], ws[2]}
	default:
		return dateValue{}, false
	}

	if len(parts) == 3 && len(parts[0]) == 4 {
		return c.numericParts(parts[0], parts[1], parts[2], true)
	}
	year := ""
	if len(parts) == 3 {
		year = parts[2]
	}
	if c.dayFirst {
		return c.numericParts(year, parts[1], parts[0], year != "")
	}
	return c.numericParts(year, parts[0], parts[1], year != "")
}

func (c *timeContext) numericParts(year, month, day string, hasYear bool) (dateValue, bool) {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return dateValue{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return dateValue{}, false
	}
	y := 0
	if hasYear {
		var ok bool
		if y, ok = parseYear(year); !ok {
			return dateValue{}, false
		}
	}
	return c.buildDate(y, hasYear, time.Month(m), d)
}

// ==========================
// Times of day
// ==========================

// stripMeridiem removes a trailing am/pm marker or a part-of-day qualifier.
func (c *timeContext) stripMeridiem(ws []string) ([]string, meridiem) {
	n := len(ws)
	if n >= 2 {
		switch ws[n-1] {
		case "am":
			return ws[:n-1], meridiemAM
		case "pm":
			return ws[:n-1], meridiemPM
		}
	}
	if n >= 3 && ws[n-1] == "m" && (ws[n-2] == "a" || ws[n-2] == "p") {
		if ws[n-2] == "a" {
			return ws[:n-2], meridiemAM
		}
		return ws[:n-2], meridiemPM
	}
	if n >= 2 && ws[n-1] == "tonight" {
		return ws[:n-1], meridiemPM
	}
	if n >= 3 && ws[n-2] == "at" && ws[n-1] == "night" {
		return ws[:n-2], meridiemPM
	}
	if n >= 4 && ws[n-3] == "in" && ws[n-2] == "the" {
		if pod, ok := c.g.partsOfDay[ws[n-1]]; ok {
			if pod.pm {
				return ws[:n-3], meridiemPM
			}
			return ws[:n-3], meridiemAM
		}
	}
	return ws, meridiemNone
}

// hourWord reads an hour written as digits or a word.
func (c *timeContext) hourWord(w string) (int, bool, bool) {
	if v, ok := parseNumeral(w); ok && isInteger(v) && !strings.ContainsAny(w, ".,") {
		leadingZero := len(w) == 2 && w[0] == '0'
		return int(v), leadingZero, true
	}
	if v, ok := c.g.units[w]; ok && v >= 1 && v <= 12 {
		return v, false, true
	}
	return 0, false, false
}

func (c *timeContext) parseClock(ws []string) (clockTime, bool) {
	hasAt := false
	if len(ws) > 1 && ws[0] == "at" {
		ws = ws[1:]
		hasAt = true
	}
	if len(ws) == 0 {
		return clockTime{}, false
	}

	switch strings.Join(ws, " ") {
	case "noon", "midday", "12 noon":
		return clockTime{hour: 12, grain: models.GrainMinute}, true
	case "midnight", "12 midnight":
		return clockTime{hour: 0, grain: models.GrainMinute, nextDay: true}, true
	}

	if ct, ok := c.parseRelativeClock(ws); ok {
		return ct, true
	}

	rest, mer := c.stripMeridiem(ws)
	oclock := false
	if n := len(rest); n > 1 && (rest[n-1] == "o'clock" || rest[n-1] == "oclock") {
		rest = rest[:n-1]
		oclock = true
	}
	if len(rest) == 0 {
		return clockTime{}, false
	}

	ct := clockTime{grain: models.GrainMinute}
	explicit := false
	leadingZero := false

	if len(rest) == 1 && strings.Contains(rest[0], ":") {
		fields := strings.Split(rest[0], ":")
		if len(fields) > 3 {
			return clockTime{}, false
		}
		values := make([]int, len(fields))
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return clockTime{}, false
			}
			values[i] = v
		}
		if len(fields[1]) != 2 || values[1] > 59 {
			return clockTime{}, false
		}
		ct.hour, ct.minute = values[0], values[1]
		if len(fields) == 3 {
			if len(fields[2]) != 2 || values[2] > 59 {
				return clockTime{}, false
			}
			ct.second = values[2]
			ct.grain = models.GrainSecond
		}
		leadingZero = len(fields[0]) == 2 && fields[0][0] == '0'
		explicit = true
	} else {
		h, zero, ok := c.hourWord(rest[0])
		if !ok {
			return clockTime{}, false
		}
		ct.hour = h
		leadingZero = zero
		if len(rest) > 1 {
			minutes, ok := c.minuteWords(rest[1:])
			if !ok {
				return clockTime{}, false
			}
			ct.minute = minutes
			explicit = true
		}
	}

	// A bare number is not a time of day.
	if !explicit && !oclock && !hasAt && mer == meridiemNone && !c.bareHours {
		return clockTime{}, false
	}
	return applyMeridiem(ct, mer, leadingZero)
}

func (c *timeContext) minuteWords(ws []string) (int, bool) {
	if len(ws) == 2 && (ws[0] == "o" || ws[0] == "oh") {
		if v, ok := c.g.units[ws[1]]; ok && v >= 1 && v <= 9 {
			return v, true
		}
		return 0, false
	}
	if len(ws) == 1 {
		if v, ok := parseNumeral(ws[0]); ok && isInteger(v) && len(ws[0]) == 2 && v <= 59 {
			return int(v), true
		}
	}
	v, ok := c.g.parseWords(ws)
	if !ok || !isInteger(v) || v < 10 || v > 59 {
		return 0, false
	}
	return int(v), true
}

func applyMeridiem(ct clockTime, mer meridiem, leadingZero bool) (clockTime, bool) {
	ct.meridiem = mer
	switch mer {
	case meridiemPM:
		if ct.hour < 1 || ct.hour > 12 {
			return clockTime{}, false
		}
		if ct.hour < 12 {
			ct.hour += 12
		}
	case meridiemAM:
		if ct.hour < 1 || ct.hour > 12 {
			return clockTime{}, false
		}
		if ct.hour == 12 {
			ct.hour = 0
		}
	default:
		if ct.hour > 23 {
			return clockTime{}, false
		}
		ct.ambiguous = ct.hour >= 1 && ct.hour <= 12 && !leadingZero
	}
	return ct, true
}

// parseRelativeClock reads "half past eight", "quarter to 9" and "ten past 4 pm".
func (c *timeContext) parseRelativeClock(ws []string) (clockTime, bool) {
	for i, w := range ws {
		if w != "past" && w != "to" && w != "after" && w != "till" {
			continue
		}
		if i == 0 || i == len(ws)-1 {
			return clockTime{}, false
		}
		left := ws[:i]
		if n := len(left); n > 1 && (left[n-1] == "minutes" || left[n-1] == "minute") {
			left = left[:n-1]
		}
		left = trimPrefix(left, "a")

		var minutes int
		switch strings.Join(left, " ") {
		case "half":
			minutes = 30
		case "quarter":
			minutes = 15
		default:
			v, ok := c.g.parseNumber(left)
			if !ok || !isInteger(v) || v < 1 || v > 59 {
				return clockTime{}, false
			}
			minutes = int(v)
		}

		rest, mer := c.stripMeridiem(ws[i+1:])
		if len(rest) != 1 {
			return clockTime{}, false
		}
		var hour int
		switch rest[0] {
		case "noon":
			hour, mer = 12, meridiemNone
		case "midnight":
			hour, mer = 0, meridiemNone
		default:
			h, _, ok := c.hourWord(rest[0])
			if !ok || h > 12 || h < 1 {
				return clockTime{}, false
			}
			hour = h
		}

		ct := clockTime{hour: hour, minute: minutes, grain: models.GrainMinute}
		if w == "to" || w == "till" {
			ct.hour = (hour + 23) % 24
			ct.minute = 60 - minutes
		}
		if rest[0] == "noon" || rest[0] == "midnight" {
			return ct, true
		}
		if ct.hour == 0 {
			ct.hour = 12
		}
		return applyMeridiem(ct, mer, false)
	}
	return clockTime{}, false
}

// ==========================
// Parts of day
// ==========================

// parsePartOfDay reads "tonight", "this evening", "in the morning" or "last night".
func (c *timeContext) parsePartOfDay(ws []string) (partOfDay, int, bool) {
	offset := 0
	switch {
	case len(ws) == 1:
	case len(ws) == 2 && (ws[0] == "this" || ws[0] == "the" || ws[0] == "at"):
		ws = ws[1:]
	case len(ws) == 2 && ws[0] == "last":
		offset = -1
		ws = ws[1:]
	case len(ws) == 3 && ws[0] == "in" && ws[1] == "the":
		ws = ws[2:]
	default:
		return partOfDay{}, 0, false
	}
	pod, ok := c.g.partsOfDay[ws[0]]
	return pod, offset, ok
}

// ==========================
// Instants
// ==========================

func (c *timeContext) fromDate(d dateValue) instantSpec {
	dv := d
	return instantSpec{
		t:         d.day,
		end:       grainEnd(d.day, d.grain),
		grain:     d.grain,
		precision: models.PrecisionExact,
		date:      &dv,
	}
}

func (c *timeContext) atClock(day time.Time, ct clockTime) time.Time {
	y, m, d := day.Date()
	t := time.Date(y, m, d, ct.hour, ct.minute, ct.second, 0, day.Location())
	if ct.nextDay {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// fromDateAndClock combines an explicit day with a time of day. Ambiguous
// hours from one to seven are read as afternoon.
func (c *timeContext) fromDateAndClock(d dateValue, ct clockTime) instantSpec {
	if ct.ambiguous && ct.hour >= 1 && ct.hour <= 7 {
		ct.hour += 12
		ct.ambiguous = false
	}
	t := c.atClock(d.day, ct)
	dv, cv := d, ct
	return instantSpec{
		t:         t,
		end:       grainEnd(t, ct.grain),
		grain:     ct.grain,
		precision: models.PrecisionExact,
		date:      &dv,
		clock:     &cv,
	}
}

// fromClock places a time of day at its next occurrence after the reference.
func (c *timeContext) fromClock(ct clockTime) instantSpec {
	now := truncate(c.ref, ct.grain)
	today := c.today()

	candidates := []clockTime{ct}
	if ct.ambiguous && ct.hour < 12 {
		pm := ct
		pm.hour += 12
		candidates = append(candidates, pm)
	}

	var t time.Time
	found := false
	for _, cand := range candidates {
		if at := c.atClock(today, cand); !at.Before(now) {
			t, found = at, true
			break
		}
	}
	if !found {
		t = c.atClock(today.AddDate(0, 0, 1), ct)
	}

	cv := ct
	return instantSpec{
		t:         t,
		end:       grainEnd(t, ct.grain),
		grain:     ct.grain,
		precision: models.PrecisionExact,
		clock:     &cv,
	}
}

// clockAfter places a time of day at its first occurrence after anchor.
func (c *timeContext) clockAfter(anchor time.Time, ct clockTime) instantSpec {
	day := startOfDay(anchor)
	candidates := []clockTime{ct}
	if ct.ambiguous && ct.hour < 12 {
		pm := ct
		pm.hour += 12
		candidates = append(candidates, pm)
	}
	t := c.atClock(day.AddDate(0, 0, 1), ct)
	for _, cand := range candidates {
		if at := c.atClock(day, cand); at.After(anchor) {
			t = at
			break
		}
	}
	cv := ct
	return instantSpec{
		t:         t,
		end:       grainEnd(t, ct.grain),
		grain:     ct.grain,
		precision: models.PrecisionExact,
		clock:     &cv,
	}
}

func (c *timeContext) fromPartOfDay(day time.Time, pod partOfDay) instantSpec {
	y, m, d := day.Date()
	loc := day.Location()
	dv := dateValue{day: startOfDay(day), grain: models.GrainDay}
	return instantSpec{
		t:         time.Date(y, m, d, pod.anchor, 0, 0, 0, loc),
		end:       time.Date(y, m, d, pod.end, 0, 0, 0, loc),
		grain:     models.GrainHour,
		precision: models.PrecisionApproximate,
		date:      &dv,
	}
}

func (c *timeContext) parseInstant(ws []string) (instantSpec, bool) {
	ws, approx := c.g.stripApprox(ws)
	if len(ws) == 0 {
		return instantSpec{}, false
	}
	spec, ok := c.parseInstantCore(ws)
	if !ok {
		return instantSpec{}, false
	}
	if approx {
		spec.precision = models.PrecisionApproximate
	}
	return spec, true
}

func (c *timeContext) parseInstantCore(ws []string) (instantSpec, bool) {
	switch strings.Join(ws, " ") {
	case "now", "right now", "right away", "immediately":
		t := truncate(c.ref, models.GrainSecond)
		return instantSpec{t: t, end: grainEnd(t, models.GrainSecond), grain: models.GrainSecond, precision: models.PrecisionExact}, true
	}

	if spec, ok := c.parseRelativeInstant(ws); ok {
		return spec, true
	}
	if d, ok := c.parseDate(ws); ok {
		return c.fromDate(d), true
	}
	if ct, ok := c.parseClock(ws); ok {
		return c.fromClock(ct), true
	}
	if pod, offset, ok := c.parsePartOfDay(ws); ok {
		return c.fromPartOfDay(c.today().AddDate(0, 0, offset), pod), true
	}

	for k := 1; k < len(ws); k++ {
		left, right := ws[:k], ws[k:]
		if d, ok := c.parseDate(left); ok && d.grain == models.GrainDay {
			if ct, ok := c.parseClock(right); ok {
				return c.fromDateAndClock(d, ct), true
			}
			if pod, offset, ok := c.parsePartOfDay(right); ok && offset == 0 {
				return c.fromPartOfDay(d.day, pod), true
			}
		}
		if ct, ok := c.parseClock(left); ok {
			if d, ok := c.parseDate(right); ok && d.grain == models.GrainDay {
				return c.fromDateAndClock(d, ct), true
			}
		}
	}
	return instantSpec{}, false
}

// parseRelativeInstant reads "in 2 hours", "3 days ago" and "a week from now".
func (c *timeContext) parseRelativeInstant(ws []string) (instantSpec, bool) {
	var (
		dur  models.DurationValue
		ok   bool
		sign = 1
	)
	n := len(ws)
	switch {
	case n >= 2 && ws[0] == "in":
		dur, ok = c.g.parseDuration(ws[1:])
	case n >= 2 && ws[n-1] == "ago":
		dur, ok = c.g.parseDuration(ws[:n-1])
		sign = -1
	case n >= 2 && ws[n-1] == "later":
		dur, ok = c.g.parseDuration(ws[:n-1])
	case n >= 3 && ws[n-2] == "from" && (ws[n-1] == "now" || ws[n-1] == "today"):
		dur, ok = c.g.parseDuration(ws[:n-2])
	}
	if !ok {
		return instantSpec{}, false
	}

	t, ok := shift(c.ref, dur, sign)
	if !ok {
		return instantSpec{}, false
	}
	grain := relativeGrain(dur)
	t = truncate(t, grain)
	return instantSpec{t: t, end: grainEnd(t, grain), grain: grain, precision: dur.Precision}, true
}

// maxShiftDays bounds the calendar part of a relative offset.
const maxShiftDays = 10000 * 366

// shift moves t by d. It fails when the clock part does not fit a
// time.Duration or the result leaves years 1 through 9999.
func shift(t time.Time, d models.DurationValue, sign int) (time.Time, bool) {
	days := float64(d.Years)*366 + float64(d.Quarters)*92 + float64(d.Months)*31 +
		float64(d.Weeks)*7 + float64(d.Days)
	clock := float64(d.Hours)*3600 + float64(d.Minutes)*60 + float64(d.Seconds)
	if days > maxShiftDays || clock*float64(time.Second) >= int64Limit {
		return time.Time{}, false
	}

	t = t.AddDate(sign*int(d.Years), sign*int(d.Months+3*d.Quarters), sign*int(d.Days+7*d.Weeks))
	offset := time.Duration(d.Hours)*time.Hour + time.Duration(d.Minutes)*time.Minute + time.Duration(d.Seconds)*time.Second
	t = t.Add(time.Duration(sign) * offset)
	if y := t.Year(); y < 1 || y > 9999 {
		return time.Time{}, false
	}
	return t, true
}

// relativeGrain maps the finest mentioned bucket to an instant grain.
func relativeGrain(d models.DurationValue) models.Grain {
	switch {
	case d.Seconds != 0:
		return models.GrainSecond
	case d.Minutes != 0 || d.Hours != 0:
		return models.GrainMinute
	default:
		return models.GrainDay
	}
}

// ==========================
// Intervals
// ==========================

type interval struct {
	from, to *time.Time
}

func (c *timeContext) parseInterval(ws []string) (interval, bool) {
	ws, _ = c.g.stripApprox(ws)
	if len(ws) == 0 {
		return interval{}, false
	}

	if spec, ok := c.parseInstant(ws); ok {
		from, to := spec.t, spec.end
		return interval{&from, &to}, true
	}
	if iv, ok := c.parseWeekend(ws); ok {
		return iv, true
	}
	if iv, ok := c.parseRolling(ws); ok {
		return iv, true
	}

	head, rest := ws[0], ws[1:]
	switch head {
	case "from":
		if iv, ok := c.splitClosed(rest, "to", "till", "until", "-", "through"); ok {
			return iv, true
		}
		if spec, ok := c.parseInstant(rest); ok {
			from := spec.t
			return interval{from: &from}, true
		}
		return interval{}, false
	case "between":
		return c.splitClosed(rest, "and")
	case "after":
		if spec, ok := c.parseInstant(rest); ok {
			from := spec.t
			if spec.grain.CoarserThan(models.GrainHour) {
				from = spec.end
			}
			return interval{from: &from}, true
		}
		return interval{}, false
	case "since":
		if spec, ok := c.parseInstant(rest); ok {
			from := spec.t
			return interval{from: &from}, true
		}
		return interval{}, false
	case "before", "until", "till":
		if spec, ok := c.parseInstant(rest); ok {
			to := spec.t
			return interval{to: &to}, true
		}
		return interval{}, false
	}

	return c.splitClosed(ws, "to", "till", "until", "-", "through")
}

func (c *timeContext) splitClosed(ws []string, separators ...string) (interval, bool) {
	for i := 1; i < len(ws)-1; i++ {
		for _, sep := range separators {
			if ws[i] != sep {
				continue
			}
			if iv, ok := c.closedInterval(ws[:i], ws[i+1:]); ok {
				return iv, true
			}
		}
	}
	return interval{}, false
}

func (c *timeContext) parseEndpoint(ws []string) (instantSpec, bool) {
	if spec, ok := c.parseInstant(ws); ok {
		return spec, true
	}
	lenient := *c
	lenient.bareHours = true
	return lenient.parseInstant(ws)
}

func (c *timeContext) closedInterval(left, right []string) (interval, bool) {
	l, ok := c.parseEndpoint(left)
	if !ok {
		return interval{}, false
	}
	r, ok := c.parseEndpoint(right)
	if !ok {
		return interval{}, false
	}

	// "from 3 to 5pm": the open side borrows the other side's afternoon.
	if l.clock != nil && r.clock != nil && l.clock.ambiguous && r.clock.meridiem == meridiemPM &&
		l.clock.hour < 12 && l.clock.hour+12 <= r.clock.hour {
		ct := *l.clock
		ct.hour += 12
		ct.ambiguous = false
		if l.date != nil {
			l = c.fromDateAndClock(*l.date, ct)
		} else {
			l = c.fromClock(ct)
		}
	}
	switch {
	case l.clock != nil && l.date == nil && r.date != nil:
		l = c.fromDateAndClock(dateValue{day: startOfDay(r.t), grain: models.GrainDay}, *l.clock)
	case r.clock != nil && r.date == nil && l.date != nil:
		r = c.fromDateAndClock(dateValue{day: startOfDay(l.t), grain: models.GrainDay}, *r.clock)
	case l.clock != nil && r.clock != nil && l.date == nil && r.date == nil:
		r = c.clockAfter(l.t, *r.clock)
	}

	from, to := l.t, r.t
	if r.grain.CoarserThan(models.GrainHour) {
		to = r.end
	}
	if !from.Before(to) {
		return interval{}, false
	}
	return interval{&from, &to}, true
}

// parseWeekend reads "this weekend", "next weekend" or "the weekend".
func (c *timeContext) parseWeekend(ws []string) (interval, bool) {
	ws = trimPrefix(ws, "over", "during")
	step := 0
	switch {
	case len(ws) == 1 && ws[0] == "weekend":
	case len(ws) == 2 && ws[1] == "weekend" && (ws[0] == "this" || ws[0] == "the"):
	case len(ws) == 2 && ws[1] == "weekend" && ws[0] == "next":
		step = 1
	case len(ws) == 2 && ws[1] == "weekend" && ws[0] == "last":
		step = -1
	default:
		return interval{}, false
	}

	today := c.today()
	var saturday time.Time
	switch today.Weekday() {
	case time.Saturday:
		saturday = today
	case time.Sunday:
		saturday = today.AddDate(0, 0, -1)
	default:
		saturday = nextWeekday(today, time.Saturday, false)
	}
	saturday = saturday.AddDate(0, 0, 7*step)
	monday := saturday.AddDate(0, 0, 2)
	return interval{&saturday, &monday}, true
}

// parseRolling reads "the next 3 days" or "the past two weeks".
func (c *timeContext) parseRolling(ws []string) (interval, bool) {
	ws = trimPrefix(ws, "the", "during", "within", "for")
	ws = trimPrefix(ws, "the")
	if len(ws) < 2 {
		return interval{}, false
	}
	forward := false
	switch ws[0] {
	case "next", "coming":
		forward = true
	case "past", "last", "previous":
	default:
		return interval{}, false
	}
	dur, ok := c.g.parseDuration(ws[1:])
	if !ok {
		return interval{}, false
	}
	grain := relativeGrain(dur)
	now := truncate(c.ref, grain)
	if forward {
		to, ok := shift(now, dur, 1)
		if !ok {
			return interval{}, false
		}
		return interval{&now, &to}, true
	}
	from, ok := shift(now, dur, -1)
	if !ok {
		return interval{}, false
	}
	return interval{&from, &now}, true
}
