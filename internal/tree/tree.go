// Package tree names the lights of a drag-race Christmas tree and the
// variants a physical tree may be built as.
package tree

import (
	"encoding/json"
	"fmt"
)

// Light is one lamp position on a lane's tree.
type Light int

const (
	Prestage Light = iota
	Stage
	Amber1
	Amber2
	Amber3
	Green
	Red

	numLights
)

// All lists every light in tree order.
var All = [numLights]Light{Prestage, Stage, Amber1, Amber2, Amber3, Green, Red}

var lightNames = [numLights]string{
	Prestage: "prestage",
	Stage:    "stage",
	Amber1:   "amber1",
	Amber2:   "amber2",
	Amber3:   "amber3",
	Green:    "green",
	Red:      "red",
}

func (l Light) String() string {
	if l < 0 || l >= numLights {
		return fmt.Sprintf("light(%d)", int(l))
	}
	return lightNames[l]
}

// ParseLight returns the light with the given name.
func ParseLight(name string) (Light, error) {
	for l, n := range lightNames {
		if n == name {
			return Light(l), nil
		}
	}
	return 0, fmt.Errorf("unknown light %q", name)
}

// RaceLights are cleared at the start of every sequence; staging lights survive.
var RaceLights = []Light{Amber1, Amber2, Amber3, Green, Red}

// Variant is the set of lights physically present on a tree.
type Variant [numLights]bool

var (
	// Full is a tree with staging bulbs.
	Full = Variant{true, true, true, true, true, true, true}
	// Basic is the five-LED strip tree (three ambers, green, red).
	Basic = Variant{Amber1: true, Amber2: true, Amber3: true, Green: true, Red: true}
)

// ParseVariant maps a configuration name to a Variant.
func ParseVariant(name string) (Variant, error) {
	switch name {
	case "", "full":
		return Full, nil
	case "basic":
		return Basic, nil
	default:
		return Variant{}, fmt.Errorf("unknown tree variant %q", name)
	}
}

// Has reports whether the variant carries light l.
func (v Variant) Has(l Light) bool {
	return l >= 0 && l < numLights && v[l]
}

// State tracks which lights are lit. Lights absent from the variant are
// never set.
type State struct {
	variant Variant
	on      [numLights]bool
}

// NewState returns an all-off state for the variant.
func NewState(v Variant) State {
	return State{variant: v}
}

// Set updates light l and reports whether it exists on this tree.
func (s *State) Set(l Light, on bool) bool {
	if !s.variant.Has(l) {
		return false
	}
	s.on[l] = on
	return true
}

// On reports whether light l is lit.
func (s *State) On(l Light) bool {
	return s.variant.Has(l) && s.on[l]
}

// Clear turns every light off in memory.
func (s *State) Clear() {
	s.on = [numLights]bool{}
}

// Variant returns the tree variant the state was built for.
func (s *State) Variant() Variant { return s.variant }

// MarshalJSON emits {"amber1": false, ...} for the lights present.
func (s State) MarshalJSON() ([]byte, error) {
	m := make(map[string]bool, numLights)
	for _, l := range All {
		if s.variant.Has(l) {
			m[l.String()] = s.on[l]
		}
	}
	return json.Marshal(m)
}
