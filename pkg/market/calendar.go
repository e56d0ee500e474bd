package market

import (
	"time"
)

// 美股交易日历，纯函数实现
// 常规时段 09:30-16:00，盘前 04:00-09:30，盘后 16:00-20:00（美东时间）

// Session 交易时段
type Session string

const (
	SessionClosed    Session = "closed"      // 休市
	SessionPreMarket Session = "pre_market"  // 盘前
	SessionRegular   Session = "regular"     // 常规时段
	SessionAfterHour Session = "after_hours" // 盘后
)

// SessionState 某一时刻的市场状态
type SessionState struct {
	Session           Session   `json:"session"`
	IsRegularSession  bool      `json:"is_regular_session"`
	IsExtendedSession bool      `json:"is_extended_session"` // 盘前或盘后
	IsHoliday         bool      `json:"is_holiday"`
	HolidayName       string    `json:"holiday_name,omitempty"`
	NextOpen          time.Time `json:"next_open"`  // 下一个常规时段开盘
	NextClose         time.Time `json:"next_close"` // 下一个常规时段收盘
}

var easternLocation *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// 无时区数据库时退化为固定偏移，保持函数可用
		loc = time.FixedZone("ET", -5*60*60)
	}
	easternLocation = loc
}

// Eastern 美东时区
func Eastern() *time.Location {
	return easternLocation
}

// holidays NYSE 休市日历
var holidays = map[string]string{
	"2025-01-01": "New Year's Day",
	"2025-01-20": "Martin Luther King, Jr. Day",
	"2025-02-17": "Washington's Birthday",
	"2025-04-18": "Good Friday",
	"2025-05-26": "Memorial Day",
	"2025-06-19": "Juneteenth",
	"2025-07-04": "Independence Day",
	"2025-09-01": "Labor Day",
	"2025-11-27": "Thanksgiving Day",
	"2025-12-25": "Christmas Day",
	"2026-01-01": "New Year's Day",
	"2026-01-19": "Martin Luther King, Jr. Day",
	"2026-02-16": "Washington's Birthday",
	"2026-04-03": "Good Friday",
	"2026-05-25": "Memorial Day",
	"2026-06-19": "Juneteenth",
	"2026-07-03": "Independence Day (observed)",
	"2026-09-07": "Labor Day",
	"2026-11-26": "Thanksgiving Day",
	"2026-12-25": "Christmas Day",
}

const (
	preMarketOpenMinute = 4 * 60
	regularOpenMinute   = 9*60 + 30
	regularCloseMinute  = 16 * 60
	afterHoursEndMinute = 20 * 60
)

// GetSessionState 计算指定时刻的市场状态
func GetSessionState(now time.Time) SessionState {
	et := now.In(easternLocation)

	state := SessionState{Session: SessionClosed}

	if name, ok := holidays[et.Format("2006-01-02")]; ok {
		state.IsHoliday = true
		state.HolidayName = name
	}

	if isTradingDay(et) {
		minute := et.Hour()*60 + et.Minute()
		switch {
		case minute >= preMarketOpenMinute && minute < regularOpenMinute:
			state.Session = SessionPreMarket
			state.IsExtendedSession = true
		case minute >= regularOpenMinute && minute < regularCloseMinute:
			state.Session = SessionRegular
			state.IsRegularSession = true
		case minute >= regularCloseMinute && minute < afterHoursEndMinute:
			state.Session = SessionAfterHour
			state.IsExtendedSession = true
		}
	}

	state.NextOpen = nextRegularOpen(et)
	state.NextClose = nextRegularClose(et)

	return state
}

// IsTradingDay 指定日期是否是交易日
func IsTradingDay(t time.Time) bool {
	return isTradingDay(t.In(easternLocation))
}

func isTradingDay(et time.Time) bool {
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return false
	}
	_, holiday := holidays[et.Format("2006-01-02")]
	return !holiday
}

// TradingDayBounds 指定时刻所属交易日的起止（美东时间的自然日）
func TradingDayBounds(t time.Time) (start, end time.Time) {
	et := t.In(easternLocation)
	start = time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, easternLocation)
	return start, start.AddDate(0, 0, 1)
}

func nextRegularOpen(et time.Time) time.Time {
	day := et
	for i := 0; i < 14; i++ {
		open := time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, easternLocation)
		if isTradingDay(day) && et.Before(open) {
			return open
		}
		day = day.AddDate(0, 0, 1)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, easternLocation)
	}
	return time.Time{}
}

func nextRegularClose(et time.Time) time.Time {
	day := et
	for i := 0; i < 14; i++ {
		closeAt := time.Date(day.Year(), day.Month(), day.Day(), 16, 0, 0, 0, easternLocation)
		if isTradingDay(day) && et.Before(closeAt) {
			return closeAt
		}
		day = day.AddDate(0, 0, 1)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, easternLocation)
	}
	return time.Time{}
}
