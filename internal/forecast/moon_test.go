package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMoonPhaseKnownDates(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"reference new moon", date(2000, time.January, 6), "New Moon"},
		{"one week in", date(2000, time.January, 13), "First Quarter"},
		{"full moon january 2000", date(2000, time.January, 21), "Full Moon"},
		{"three weeks in", date(2000, time.January, 28), "Last Quarter"},
		{"new moon january 2024", date(2024, time.January, 11), "New Moon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MoonPhase(tt.date))
		})
	}
}

func TestMoonPhaseIgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2025, 10, 14, 3, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 10, 14, 22, 45, 0, 0, time.UTC)
	assert.Equal(t, MoonPhase(morning), MoonPhase(evening))
}

func TestLunarFractionRange(t *testing.T) {
	for d := 0; d < 60; d++ {
		frac := LunarFraction(date(2025, time.January, 1).AddDate(0, 0, d))
		assert.GreaterOrEqual(t, frac, 0.0)
		assert.Less(t, frac, 1.0)
	}
}

func TestLunarFractionBeforeEpoch(t *testing.T) {
	frac := LunarFraction(date(1999, time.June, 1))
	assert.GreaterOrEqual(t, frac, 0.0)
	assert.Less(t, frac, 1.0)
}

func TestMoonIllumination(t *testing.T) {
	newMoon := MoonIllumination(date(2000, time.January, 6))
	fullMoon := MoonIllumination(date(2000, time.January, 21))
	assert.Less(t, newMoon, 10)
	assert.Greater(t, fullMoon, 90)
}
