package market_hours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMarketOpen_XNYS_RegularHours(t *testing.T) {
	service := New("XNYS")

	tests := []struct {
		name     string
		datetime time.Time
		expected bool
	}{
		{
			name:     "open during regular hours",
			datetime: time.Date(2024, 1, 16, 15, 0, 0, 0, time.UTC), // Tuesday 10:00 AM EST
			expected: true,
		},
		{
			name:     "closed before open",
			datetime: time.Date(2024, 1, 16, 13, 0, 0, 0, time.UTC), // Tuesday 8:00 AM EST
			expected: false,
		},
		{
			name:     "open at 9:30 AM",
			datetime: time.Date(2024, 1, 16, 14, 30, 0, 0, time.UTC), // Tuesday 9:30 AM EST
			expected: true,
		},
		{
			name:     "closed at exactly 4:00 PM",
			datetime: time.Date(2024, 1, 16, 21, 0, 0, 0, time.UTC),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, service.IsMarketOpen(tt.datetime))
		})
	}
}

func TestIsMarketOpen_Weekend(t *testing.T) {
	service := New("XNYS")

	saturday := time.Date(2024, 1, 13, 15, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 1, 14, 15, 0, 0, 0, time.UTC)

	assert.False(t, service.IsMarketOpen(saturday))
	assert.False(t, service.IsMarketOpen(sunday))
}

func TestIsMarketOpen_Holidays(t *testing.T) {
	service := New("XNYS")

	tests := []struct {
		name     string
		datetime time.Time
	}{
		{"New Year's Day", time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)},
		{"MLK Day", time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC)},
		{"Good Friday", time.Date(2024, 3, 29, 15, 0, 0, 0, time.UTC)},
		{"Independence Day", time.Date(2024, 7, 4, 15, 0, 0, 0, time.UTC)},
		{"Thanksgiving", time.Date(2024, 11, 28, 15, 0, 0, 0, time.UTC)},
		{"Christmas", time.Date(2024, 12, 25, 15, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, service.IsMarketOpen(tt.datetime))
		})
	}
}

func TestIsMarketOpen_EarlyClose(t *testing.T) {
	service := New("XNYS")

	// 2024-11-27 is the Wednesday before Thanksgiving: 1 PM close.
	beforeEarlyClose := time.Date(2024, 11, 27, 17, 0, 0, 0, time.UTC) // 12:00 EST
	afterEarlyClose := time.Date(2024, 11, 27, 19, 0, 0, 0, time.UTC)  // 14:00 EST

	assert.True(t, service.IsMarketOpen(beforeEarlyClose))
	assert.False(t, service.IsMarketOpen(afterEarlyClose))
}

func TestIsTradingDay(t *testing.T) {
	service := New("XNYS")

	assert.True(t, service.IsTradingDay(time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)))   // Tuesday
	assert.False(t, service.IsTradingDay(time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)))  // Saturday
	assert.False(t, service.IsTradingDay(time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC))) // Christmas
}

func TestLastTradingDayBefore(t *testing.T) {
	service := New("XNYS")

	tests := []struct {
		name     string
		from     time.Time
		expected time.Time
	}{
		{
			name:     "midweek returns previous day",
			from:     time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), // Wednesday
			expected: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), // Tuesday
		},
		{
			name:     "Monday skips the weekend",
			from:     time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), // Monday
			expected: time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC), // Friday
		},
		{
			name:     "day after Christmas skips the holiday",
			from:     time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "Tuesday after MLK Day skips holiday and weekend",
			from:     time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), // previous Friday
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.LastTradingDayBefore(tt.from)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNew_UnknownExchangeFallsBackToXNYS(t *testing.T) {
	service := New("no-such-exchange")
	assert.Equal(t, "XNYS", service.Exchange())
}

func TestWithNow(t *testing.T) {
	fixed := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	service := New("XNYS", WithNow(func() time.Time { return fixed }))

	assert.Equal(t, fixed, service.Now())
}

func TestStatus_OpenAndClosed(t *testing.T) {
	service := New("XNYS")

	open := service.Status(time.Date(2024, 1, 16, 15, 0, 0, 0, time.UTC))
	require.True(t, open.Open)
	assert.Equal(t, "16:00", open.ClosesAt)

	// Friday evening: next session is Monday.
	closed := service.Status(time.Date(2024, 1, 19, 23, 0, 0, 0, time.UTC))
	require.False(t, closed.Open)
	assert.Equal(t, "09:30", closed.OpensAt)
	assert.Equal(t, "2024-01-22", closed.OpensDate)
}
