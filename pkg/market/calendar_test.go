package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func eastern(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, Eastern())
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return ts
}

func TestGetSessionState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		at      string
		session Session
	}{
		{"before pre market", "2026-08-19 03:59", SessionClosed},
		{"pre market open", "2026-08-19 04:00", SessionPreMarket},
		{"just before regular", "2026-08-19 09:29", SessionPreMarket},
		{"regular open", "2026-08-19 09:30", SessionRegular},
		{"midday", "2026-08-19 12:00", SessionRegular},
		{"just before close", "2026-08-19 15:59", SessionRegular},
		{"after hours", "2026-08-19 16:00", SessionAfterHour},
		{"after hours end", "2026-08-19 20:00", SessionClosed},
		{"saturday", "2026-08-22 12:00", SessionClosed},
		{"sunday", "2026-08-23 12:00", SessionClosed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			state := GetSessionState(eastern(t, tt.at))
			assert.Equal(t, tt.session, state.Session)
		})
	}
}

func TestGetSessionStateHoliday(t *testing.T) {
	t.Parallel()

	// 感恩节当天即使在常规时段内也休市
	state := GetSessionState(eastern(t, "2026-11-26 12:00"))
	assert.Equal(t, SessionClosed, state.Session)
	assert.True(t, state.IsHoliday)
	assert.Equal(t, "Thanksgiving Day", state.HolidayName)
}

func TestIsTradingDay(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTradingDay(eastern(t, "2026-08-19 12:00")))
	assert.False(t, IsTradingDay(eastern(t, "2026-08-22 12:00")))
	assert.False(t, IsTradingDay(eastern(t, "2026-12-25 12:00")))
}

func TestNextOpenSkipsWeekend(t *testing.T) {
	t.Parallel()

	// 周五收盘后，下一个开盘是下周一
	state := GetSessionState(eastern(t, "2026-08-21 17:00"))
	assert.Equal(t, eastern(t, "2026-08-24 09:30"), state.NextOpen)
}

func TestNextCloseSameDay(t *testing.T) {
	t.Parallel()

	state := GetSessionState(eastern(t, "2026-08-19 10:00"))
	assert.Equal(t, eastern(t, "2026-08-19 16:00"), state.NextClose)
}

func TestTradingDayBounds(t *testing.T) {
	t.Parallel()

	start, end := TradingDayBounds(eastern(t, "2026-08-19 13:45"))
	assert.Equal(t, eastern(t, "2026-08-19 00:00"), start)
	assert.Equal(t, eastern(t, "2026-08-20 00:00"), end)

	// 跨时区输入也按美东自然日切
	utc := time.Date(2026, 8, 20, 1, 0, 0, 0, time.UTC) // ET 2026-08-19 21:00
	start, _ = TradingDayBounds(utc)
	assert.Equal(t, eastern(t, "2026-08-19 00:00"), start)
}
