// Package results turns finished lane state into the text shown on lane
// displays, printed to the log and stored in race history.
package results

import (
	"fmt"
	"strings"
)

// Fixed words for the 4-character lane displays.
const (
	TextReady    = "RDY-"
	TextStandby  = "STBY"
	TextFoul     = "FOUL"
	TextRed      = "RED-"
	TextEarly    = "ERLY"
	TextPosition = "POS"
	TextRace     = "RACE"
)

// Ordinal renders n as 1st, 2nd, 3rd, 4th, ... 11th, 12th, 13th, 21st.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// PositionText is the one-word verdict for a lane: RED LIGHT! for a false
// start, DNF without a place, otherwise the ordinal with the winner
// getting an exclamation mark.
func PositionText(place int, placed, falseStart bool) string {
	switch {
	case falseStart:
		return "RED LIGHT!"
	case !placed:
		return "DNF"
	case place == 1:
		return "1st!"
	default:
		return Ordinal(place)
	}
}

// TimeDecimals is how many decimals a race time gets on a 4-digit display.
func TimeDecimals(ms int) int {
	if ms < 10000 {
		return 3
	}
	return 2
}

// FormatSeconds renders ms as seconds with the given number of decimals.
func FormatSeconds(ms, decimals int) string {
	return fmt.Sprintf("%.*f", decimals, float64(ms)/1000)
}

// FormatTime renders a race time the way lane displays show it.
func FormatTime(ms int) string {
	return FormatSeconds(ms, TimeDecimals(ms))
}

// FormatReaction renders a reaction time. False starts read as "N ms EARLY".
func FormatReaction(ms int, falseStart bool) string {
	if ms < 0 && falseStart {
		return fmt.Sprintf("%d ms EARLY", -ms)
	}
	return fmt.Sprintf("%d ms", ms)
}

// CenteredPosition pads a rank for a 4-digit display.
func CenteredPosition(place int) string {
	if place < 10 {
		return fmt.Sprintf("  %d ", place)
	}
	s := fmt.Sprintf("%d", place)
	if len(s) >= 4 {
		return s[len(s)-4:]
	}
	return strings.Repeat(" ", 4-len(s)) + s
}
