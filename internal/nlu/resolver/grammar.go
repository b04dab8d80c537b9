package resolver

import "time"

// grammar holds the lexical tables for one language.
type grammar struct {
	units      map[string]int
	tens       map[string]int
	scales     map[string]float64
	ordinals   map[string]int
	ordSuffix  map[string]bool
	approx     map[string]bool
	negatives  map[string]bool
	percent    map[string]bool
	currencies map[string]string
	tempUnits  map[string]string
	degrees    map[string]bool
	durations  map[string]durationUnit
	months     map[string]time.Month
	weekdays   map[string]time.Weekday
	partsOfDay map[string]partOfDay
}

type durationUnit int

const (
	unitSecond durationUnit = iota
	unitMinute
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitQuarter
	unitYear
)

// partOfDay is a vague span of a day. Hours are in 24h; end 24 means midnight.
type partOfDay struct {
	start, end, anchor int
	pm                 bool
}

var english = &grammar{
	units: map[string]int{
		"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
		"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	},
	tens: map[string]int{
		"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
		"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	},
	scales: map[string]float64{
		"hundred": 100, "thousand": 1e3, "million": 1e6, "billion": 1e9,
		"k": 1e3, "dozen": 12,
	},
	ordinals: map[string]int{
		"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
		"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
		"eleventh": 11, "twelfth": 12, "thirteenth": 13, "fourteenth": 14,
		"fifteenth": 15, "sixteenth": 16, "seventeenth": 17, "eighteenth": 18,
		"nineteenth": 19, "twentieth": 20, "thirtieth": 30, "fortieth": 40,
		"fiftieth": 50, "sixtieth": 60, "seventieth": 70, "eightieth": 80,
		"ninetieth": 90, "hundredth": 100, "thousandth": 1000,
	},
	ordSuffix: map[string]bool{"st": true, "nd": true, "rd": true, "th": true},
	approx: map[string]bool{
		"about": true, "around": true, "approximately": true, "roughly": true,
		"nearly": true, "almost": true, "circa": true, "~": true, "approx": true,
	},
	negatives: map[string]bool{"-": true, "minus": true, "negative": true},
	percent:   map[string]bool{"%": true, "percent": true, "pct": true, "percents": true},
	currencies: map[string]string{
		"$": "$", "dollar": "$", "dollars": "$", "buck": "$", "bucks": "$", "usd": "USD",
		"€": "€", "euro": "€", "euros": "€", "eur": "EUR",
		"£": "£", "pound": "£", "pounds": "£", "quid": "£", "gbp": "GBP",
		"¥": "¥", "yen": "¥", "jpy": "JPY",
		"cent": "cent", "cents": "cent",
	},
	tempUnits: map[string]string{
		"celsius": "celsius", "centigrade": "celsius", "c": "celsius",
		"fahrenheit": "fahrenheit", "f": "fahrenheit",
		"kelvin": "kelvin", "k": "kelvin",
	},
	degrees: map[string]bool{"degree": true, "degrees": true, "°": true},
	durations: map[string]durationUnit{
		"second": unitSecond, "seconds": unitSecond, "sec": unitSecond, "secs": unitSecond,
		"minute": unitMinute, "minutes": unitMinute, "min": unitMinute, "mins": unitMinute,
		"hour": unitHour, "hours": unitHour, "hr": unitHour, "hrs": unitHour,
		"day": unitDay, "days": unitDay,
		"week": unitWeek, "weeks": unitWeek,
		"month": unitMonth, "months": unitMonth,
		"quarter": unitQuarter, "quarters": unitQuarter,
		"year": unitYear, "years": unitYear,
	},
	months: map[string]time.Month{
		"january": time.January, "jan": time.January,
		"february": time.February, "feb": time.February,
		"march": time.March, "mar": time.March,
		"april": time.April, "apr": time.April,
		"may": time.May,
		"june": time.June, "jun": time.June,
		"july": time.July, "jul": time.July,
		"august": time.August, "aug": time.August,
		"september": time.September, "sep": time.September, "sept": time.September,
		"october": time.October, "oct": time.October,
		"november": time.November, "nov": time.November,
		"december": time.December, "dec": time.December,
	},
	weekdays: map[string]time.Weekday{
		"monday": time.Monday, "mon": time.Monday,
		"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
		"wednesday": time.Wednesday, "wed": time.Wednesday,
		"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
		"friday": time.Friday, "fri": time.Friday,
		"saturday": time.Saturday, "sat": time.Saturday,
		"sunday": time.Sunday,
	},
	partsOfDay: map[string]partOfDay{
		"morning":   {start: 4, end: 12, anchor: 8},
		"afternoon": {start: 12, end: 19, anchor: 15, pm: true},
		"evening":   {start: 18, end: 24, anchor: 19, pm: true},
		"night":     {start: 18, end: 24, anchor: 21, pm: true},
		"tonight":   {start: 18, end: 24, anchor: 21, pm: true},
	},
}

var grammars = map[string]*grammar{
	"en": english,
}
