// internal/models/entity.go
package models

import "strings"

// Builtin entity type names as they appear in slot schemas.
const (
	EntityNumber        = "snips/number"
	EntityOrdinal       = "snips/ordinal"
	EntityPercentage    = "snips/percentage"
	EntityDatetime      = "snips/datetime"
	EntityTimeInterval  = "snips/timeInterval"
	EntityAmountOfMoney = "snips/amountOfMoney"
	EntityTemperature   = "snips/temperature"
	EntityDuration      = "snips/duration"
	EntityMusicAlbum    = "snips/musicAlbum"
	EntityMusicArtist   = "snips/musicArtist"
	EntityMusicTrack    = "snips/musicTrack"
)

var builtinKinds = map[string]SlotValueKind{
	EntityNumber:        KindNumber,
	EntityOrdinal:       KindOrdinal,
	EntityPercentage:    KindPercentage,
	EntityDatetime:      KindInstantTime,
	EntityTimeInterval:  KindTimeInterval,
	EntityAmountOfMoney: KindAmountOfMoney,
	EntityTemperature:   KindTemperature,
	EntityDuration:      KindDuration,
	EntityMusicAlbum:    KindMusicAlbum,
	EntityMusicArtist:   KindMusicArtist,
	EntityMusicTrack:    KindMusicTrack,
}

// BuiltinEntities lists every builtin entity type in a stable order.
var BuiltinEntities = []string{
	EntityNumber,
	EntityOrdinal,
	EntityPercentage,
	EntityDatetime,
	EntityTimeInterval,
	EntityAmountOfMoney,
	EntityTemperature,
	EntityDuration,
	EntityMusicAlbum,
	EntityMusicArtist,
	EntityMusicTrack,
}

// IsBuiltinEntity reports whether entity names an engine-provided type.
func IsBuiltinEntity(entity string) bool {
	return strings.HasPrefix(entity, "snips/")
}

// KindForEntity returns the SlotValue variant a slot of the given entity
// type resolves to. Custom entities map to KindCustom.
func KindForEntity(entity string) (SlotValueKind, bool) {
	if !IsBuiltinEntity(entity) {
		return KindCustom, true
	}
	kind, ok := builtinKinds[entity]
	return kind, ok
}

// EntityValue is one canonical value of a custom entity with its synonyms.
type EntityValue struct {
	Value    string   `json:"value"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// CustomEntity is a model-defined gazetteer. When AutomaticallyExtensible is
// false, values outside the list are rejected.
type CustomEntity struct {
	Name                    string        `json:"-"`
	AutomaticallyExtensible bool          `json:"automatically_extensible"`
	Values                  []EntityValue `json:"values"`
}
