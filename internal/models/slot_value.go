// internal/models/slot_value.go
package models

import (
	"encoding/json"
	"fmt"
)

// SlotValueKind discriminates the active SlotValue variant.
type SlotValueKind int

const (
	KindCustom SlotValueKind = iota + 1
	KindNumber
	KindOrdinal
	KindInstantTime
	KindTimeInterval
	KindAmountOfMoney
	KindTemperature
	KindDuration
	KindPercentage
	KindMusicAlbum
	KindMusicArtist
	KindMusicTrack
)

var kindNames = map[SlotValueKind]string{
	KindCustom:        "Custom",
	KindNumber:        "Number",
	KindOrdinal:       "Ordinal",
	KindInstantTime:   "InstantTime",
	KindTimeInterval:  "TimeInterval",
	KindAmountOfMoney: "AmountOfMoney",
	KindTemperature:   "Temperature",
	KindDuration:      "Duration",
	KindPercentage:    "Percentage",
	KindMusicAlbum:    "MusicAlbum",
	KindMusicArtist:   "MusicArtist",
	KindMusicTrack:    "MusicTrack",
}

func (k SlotValueKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SlotValueKind(%d)", int(k))
}

func (k SlotValueKind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("invalid slot value kind %d", int(k))
	}
	return []byte(name), nil
}

func (k *SlotValueKind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown slot value kind %q", string(text))
}

// SlotValue is the resolved value of a slot. Exactly one of the concrete
// *Value types below implements it for any given slot.
type SlotValue interface {
	Kind() SlotValueKind
	isSlotValue()
}

type CustomValue struct {
	Value string `json:"value"`
}

type NumberValue struct {
	Value float64 `json:"value"`
}

type OrdinalValue struct {
	Value int64 `json:"value"`
}

type PercentageValue struct {
	Value float64 `json:"value"`
}

// InstantTimeValue holds an instant formatted as "2006-01-02 15:04:05 -07:00",
// truncated to its grain.
type InstantTimeValue struct {
	Value     string    `json:"value"`
	Grain     Grain     `json:"grain"`
	Precision Precision `json:"precision"`
}

// TimeIntervalValue is a half-open interval. A nil endpoint is unbounded
// and is encoded as JSON null.
type TimeIntervalValue struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

type AmountOfMoneyValue struct {
	Unit      string    `json:"unit"`
	Value     float64   `json:"value"`
	Precision Precision `json:"precision"`
}

type TemperatureValue struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// DurationValue splits a duration into unit buckets. Unmentioned buckets are zero.
type DurationValue struct {
	Years     int64     `json:"years"`
	Quarters  int64     `json:"quarters"`
	Months    int64     `json:"months"`
	Weeks     int64     `json:"weeks"`
	Days      int64     `json:"days"`
	Hours     int64     `json:"hours"`
	Minutes   int64     `json:"minutes"`
	Seconds   int64     `json:"seconds"`
	Precision Precision `json:"precision"`
}

// Seconds per bucket. A month counts 30 days and a year 12 months.
const (
	secondsPerMinute  = 60
	secondsPerHour    = 60 * secondsPerMinute
	secondsPerDay     = 24 * secondsPerHour
	secondsPerWeek    = 7 * secondsPerDay
	secondsPerMonth   = 30 * secondsPerDay
	secondsPerQuarter = 3 * secondsPerMonth
	secondsPerYear    = 12 * secondsPerMonth
)

// TotalSeconds re-sums the buckets into a single magnitude.
func (d DurationValue) TotalSeconds() int64 {
	return d.Years*secondsPerYear +
		d.Quarters*secondsPerQuarter +
		d.Months*secondsPerMonth +
		d.Weeks*secondsPerWeek +
		d.Days*secondsPerDay +
		d.Hours*secondsPerHour +
		d.Minutes*secondsPerMinute +
		d.Seconds
}

type MusicAlbumValue struct {
	Value string `json:"value"`
}

type MusicArtistValue struct {
	Value string `json:"value"`
}

type MusicTrackValue struct {
	Value string `json:"value"`
}

func (CustomValue) Kind() SlotValueKind        { return KindCustom }
func (NumberValue) Kind() SlotValueKind        { return KindNumber }
func (OrdinalValue) Kind() SlotValueKind       { return KindOrdinal }
func (PercentageValue) Kind() SlotValueKind    { return KindPercentage }
func (InstantTimeValue) Kind() SlotValueKind   { return KindInstantTime }
func (TimeIntervalValue) Kind() SlotValueKind  { return KindTimeInterval }
func (AmountOfMoneyValue) Kind() SlotValueKind { return KindAmountOfMoney }
func (TemperatureValue) Kind() SlotValueKind   { return KindTemperature }
func (DurationValue) Kind() SlotValueKind      { return KindDuration }
func (MusicAlbumValue) Kind() SlotValueKind    { return KindMusicAlbum }
func (MusicArtistValue) Kind() SlotValueKind   { return KindMusicArtist }
func (MusicTrackValue) Kind() SlotValueKind    { return KindMusicTrack }

func (CustomValue) isSlotValue()        {}
func (NumberValue) isSlotValue()        {}
func (OrdinalValue) isSlotValue()       {}
func (PercentageValue) isSlotValue()    {}
func (InstantTimeValue) isSlotValue()   {}
func (TimeIntervalValue) isSlotValue()  {}
func (AmountOfMoneyValue) isSlotValue() {}
func (TemperatureValue) isSlotValue()   {}
func (DurationValue) isSlotValue()      {}
func (MusicAlbumValue) isSlotValue()    {}
func (MusicArtistValue) isSlotValue()   {}
func (MusicTrackValue) isSlotValue()    {}

// MarshalSlotValue encodes v as a flat object carrying a "kind" discriminator.
func MarshalSlotValue(v SlotValue) ([]byte, error) {
	type kindField struct {
		Kind SlotValueKind `json:"kind"`
	}
	k := kindField{}
	if v != nil {
		k.Kind = v.Kind()
	}
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case CustomValue:
		return json.Marshal(struct {
			kindField
			CustomValue
		}{k, val})
	case NumberValue:
		return json.Marshal(struct {
			kindField
			NumberValue
		}{k, val})
	case OrdinalValue:
		return json.Marshal(struct {
			kindField
			OrdinalValue
		}{k, val})
	case PercentageValue:
		return json.Marshal(struct {
			kindField
			PercentageValue
		}{k, val})
	case InstantTimeValue:
		return json.Marshal(struct {
			kindField
			InstantTimeValue
		}{k, val})
	case TimeIntervalValue:
		return json.Marshal(struct {
			kindField
			TimeIntervalValue
		}{k, val})
	case AmountOfMoneyValue:
		return json.Marshal(struct {
			kindField
			AmountOfMoneyValue
		}{k, val})
	case TemperatureValue:
		return json.Marshal(struct {
			kindField
			TemperatureValue
		}{k, val})
	case DurationValue:
		return json.Marshal(struct {
			kindField
			DurationValue
		}{k, val})
	case MusicAlbumValue:
		return json.Marshal(struct {
			kindField
			MusicAlbumValue
		}{k, val})
	case MusicArtistValue:
		return json.Marshal(struct {
			kindField
			MusicArtistValue
		}{k, val})
	case MusicTrackValue:
		return json.Marshal(struct {
			kindField
			MusicTrackValue
		}{k, val})
	default:
		return nil, fmt.Errorf("unsupported slot value type %T", v)
	}
}

// UnmarshalSlotValue decodes an object produced by MarshalSlotValue.
func UnmarshalSlotValue(data []byte) (SlotValue, error) {
	if string(data) == "null" {
		return nil, nil
	}
	var head struct {
		Kind SlotValueKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode slot value kind: %w", err)
	}

	var (
		v   SlotValue
		err error
	)
	switch head.Kind {
	case KindCustom:
		v, err = decodeAs[CustomValue](data)
	case KindNumber:
		v, err = decodeAs[NumberValue](data)
	case KindOrdinal:
		v, err = decodeAs[OrdinalValue](data)
	case KindPercentage:
		v, err = decodeAs[PercentageValue](data)
	case KindInstantTime:
		v, err = decodeAs[InstantTimeValue](data)
	case KindTimeInterval:
		v, err = decodeAs[TimeIntervalValue](data)
	case KindAmountOfMoney:
		v, err = decodeAs[AmountOfMoneyValue](data)
	case KindTemperature:
		v, err = decodeAs[TemperatureValue](data)
	case KindDuration:
		v, err = decodeAs[DurationValue](data)
	case KindMusicAlbum:
		v, err = decodeAs[MusicAlbumValue](data)
	case KindMusicArtist:
		v, err = decodeAs[MusicArtistValue](data)
	case KindMusicTrack:
		v, err = decodeAs[MusicTrackValue](data)
	default:
		return nil, fmt.Errorf("unknown slot value kind %d", int(head.Kind))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s value: %w", head.Kind, err)
	}
	return v, nil
}

func decodeAs[T SlotValue](data []byte) (SlotValue, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
