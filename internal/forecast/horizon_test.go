package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fishcast/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAsOf(t *testing.T) {
	p := NewPlanner()
	now := time.Date(2025, 10, 16, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, date(2025, 10, 13), p.AsOf(now))
}

func TestPlan(t *testing.T) {
	p := NewPlanner()
	latest := date(2025, 10, 13)

	tests := []struct {
		name         string
		target       time.Time
		wantStart    time.Time
		wantLength   int
		wantExtended bool
		wantErr      bool
	}{
		{
			name:       "no target gives default horizon",
			wantStart:  date(2025, 10, 14),
			wantLength: 7,
		},
		{
			name:       "target inside default horizon",
			target:     date(2025, 10, 18),
			wantStart:  date(2025, 10, 14),
			wantLength: 5,
		},
		{
			name:       "target exactly at default edge",
			target:     date(2025, 10, 20),
			wantStart:  date(2025, 10, 14),
			wantLength: 7,
		},
		{
			name:         "target past default extends horizon",
			target:       date(2025, 10, 28),
			wantStart:    date(2025, 10, 14),
			wantLength:   15,
			wantExtended: true,
		},
		{
			name:    "target equal to latest known is rejected",
			target:  date(2025, 10, 13),
			wantErr: true,
		},
		{
			name:    "target in the past is rejected",
			target:  date(2025, 9, 1),
			wantErr: true,
		},
		{
			name:    "target past max lookahead is rejected",
			target:  date(2026, 1, 15),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := p.Plan(latest, tt.target)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, models.KindHorizon, models.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, h.StartDate)
			assert.Equal(t, tt.wantLength, h.LengthDays)
			assert.Equal(t, tt.wantExtended, h.Extended)
			if tt.wantExtended {
				assert.NotEmpty(t, h.ExtensionReason)
			}
			if !tt.target.IsZero() {
				assert.Equal(t, tt.target, h.EndDate(), "horizon must reach the target date")
			}
		})
	}
}

func TestHorizonDatesContiguous(t *testing.T) {
	h := models.ForecastHorizon{StartDate: date(2025, 10, 14), LengthDays: 10}
	dates := h.Dates()
	require.Len(t, dates, 10)
	for i := 1; i < len(dates); i++ {
		assert.Equal(t, dates[i-1].AddDate(0, 0, 1), dates[i])
	}
	assert.Equal(t, dates[len(dates)-1], h.EndDate())
}
