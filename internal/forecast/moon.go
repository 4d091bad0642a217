package forecast

import (
	"math"
	"time"
)

// SynodicMonth is the mean length of the lunar cycle in days.
const SynodicMonth = 29.53058867

// lunarEpoch is a reference new moon (January 6, 2000 UTC).
var lunarEpoch = time.Date(2000, 1, 6, 0, 0, 0, 0, time.UTC)

// Canonical phase labels with their position in the cycle. Dates map onto
// the nearest label by circular distance.
var canonicalPhases = []struct {
	Label    string
	Fraction float64
}{
	{"New Moon", 0.00},
	{"First Quarter", 0.25},
	{"Full Moon", 0.50},
	{"Last Quarter", 0.75},
}

// LunarFraction returns the date's position in the synodic cycle as a
// fraction in [0, 1), evaluated at local noon of the calendar day.
func LunarFraction(t time.Time) float64 {
	day := t.UTC().Truncate(24 * time.Hour)
	days := day.Sub(lunarEpoch).Hours()/24 + 0.5
	frac := math.Mod(days, SynodicMonth) / SynodicMonth
	if frac < 0 {
		frac += 1
	}
	return frac
}

// MoonPhase returns the canonical phase label for a calendar date. Purely a
// function of the date; no network dependency.
func MoonPhase(t time.Time) string {
	frac := LunarFraction(t)
	best := canonicalPhases[0].Label
	bestDist := math.Inf(1)
	for _, p := range canonicalPhases {
		d := math.Abs(frac - p.Fraction)
		if circ := 1 - d; circ < d {
			d = circ
		}
		if d < bestDist {
			bestDist = d
			best = p.Label
		}
	}
	return best
}

// MoonIllumination returns the approximate illuminated fraction as a
// percentage, following a cosine curve from new (0) to full (100).
func MoonIllumination(t time.Time) int {
	angle := LunarFraction(t) * 2 * math.Pi
	return int((1 - math.Cos(angle)) / 2 * 100)
}
