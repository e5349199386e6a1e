package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviousPeriod(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantMonth int
		wantYear  int
	}{
		{
			name:      "mid-year rolls back one month",
			now:       time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC),
			wantMonth: 6,
			wantYear:  2025,
		},
		{
			name:      "january rolls back to december of previous year",
			now:       time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			wantMonth: 12,
			wantYear:  2024,
		},
		{
			name:      "december stays in same year",
			now:       time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC),
			wantMonth: 11,
			wantYear:  2025,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PreviousPeriod(tt.now)
			assert.Equal(t, tt.wantMonth, p.Month)
			assert.Equal(t, tt.wantYear, p.Year)
		})
	}
}

func TestNewPeriod_Validation(t *testing.T) {
	_, err := NewPeriod(0, 2025)
	assert.Error(t, err)

	_, err = NewPeriod(13, 2025)
	assert.Error(t, err)

	p, err := NewPeriod(6, 2025)
	require.NoError(t, err)
	assert.True(t, p.IsValid())
}

func TestPeriod_Bounds(t *testing.T) {
	p := Period{Month: 2, Year: 2024} // leap year

	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), p.Start())
	assert.Equal(t, 29, p.End().Day())
	assert.Equal(t, 29, DaysInMonth(p))

	assert.True(t, p.Contains(time.Date(2024, time.February, 29, 23, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPeriod_Key(t *testing.T) {
	p := Period{Month: 7, Year: 2025}
	assert.Equal(t, "2025-07", p.Key())

	p = Period{Month: 12, Year: 2024}
	assert.Equal(t, "2024-12", p.Key())
}

func TestPeriod_NextPrevious_RoundTrip(t *testing.T) {
	p := Period{Month: 1, Year: 2025}
	assert.Equal(t, p, p.Previous().Next())
	assert.Equal(t, Period{Month: 12, Year: 2024}, p.Previous())
}
