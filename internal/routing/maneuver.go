package routing

import (
	"strings"

	"github.com/paulmach/orb"
)

// ManeuverType is the simplified turn direction shown to walkers.
type ManeuverType string

const (
	Left        ManeuverType = "left"
	Right       ManeuverType = "right"
	SlightLeft  ManeuverType = "slight_left"
	SlightRight ManeuverType = "slight_right"
	UTurn       ManeuverType = "uturn"
)

// Maneuver is a turn along the route.
type Maneuver struct {
	Location    orb.Point    `json:"location"`
	Instruction string       `json:"instruction"`
	Type        ManeuverType `json:"type"`
}

// turnKinds are the engine step types that produce a maneuver.
var turnKinds = map[string]bool{
	"turn":            true,
	"end of road":     true,
	"fork":            true,
	"roundabout turn": true,
}

var instructions = map[string]map[ManeuverType]string{
	"en": {
		Left:        "Turn left",
		Right:       "Turn right",
		SlightLeft:  "Bear left",
		SlightRight: "Bear right",
		UTurn:       "Make a U-turn",
	},
	"fr": {
		Left:        "Tournez à gauche",
		Right:       "Tournez à droite",
		SlightLeft:  "Légèrement à gauche",
		SlightRight: "Légèrement à droite",
		UTurn:       "Faites demi-tour",
	},
}

// SupportedLocale reports whether instruction text exists for locale.
func SupportedLocale(locale string) bool {
	_, ok := instructions[locale]
	return ok
}

// classifyModifier maps an engine modifier to a ManeuverType. The second
// return value is false for modifiers that are not turns (e.g. "straight").
func classifyModifier(modifier string) (ManeuverType, bool) {
	switch {
	case strings.Contains(modifier, "uturn"):
		return UTurn, true
	case modifier == "slight left":
		return SlightLeft, true
	case modifier == "slight right":
		return SlightRight, true
	case strings.Contains(modifier, "left"):
		return Left, true
	case strings.Contains(modifier, "right"):
		return Right, true
	}
	return "", false
}

// newManeuver builds a maneuver from a step's kind and modifier, or returns
// false when the step is not a turn worth announcing.
func newManeuver(kind, modifier string, location orb.Point, locale string) (Maneuver, bool) {
	if !turnKinds[kind] {
		return Maneuver{}, false
	}
	t, ok := classifyModifier(modifier)
	if !ok {
		return Maneuver{}, false
	}

	texts, ok := instructions[locale]
	if !ok {
		texts = instructions["en"]
	}
	return Maneuver{Location: location, Instruction: texts[t], Type: t}, true
}
