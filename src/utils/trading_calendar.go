package utils

import (
	"strings"
	"time"

	"lod-engine/src/logger"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers "is this market open" using scmhub/calendar.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// suffix -> MIC (ISO 10383) as understood by scmhub/calendar
var micBySuffix = map[string]string{
	".L":  "xlon",
	".PA": "xpar",
	".DE": "xfra",
	".AS": "xams",
	".BR": "xbru",
	".MI": "xmil",
	".MC": "xmad",
	".ST": "xsto",
	".CO": "xcse",
	".HE": "xhel",
	".VI": "xwbo",
	".SW": "xswx",
	".TO": "xtse",
	".V":  "xtsx",
	".T":  "xtks",
	".HK": "xhkg",
	".TW": "xtai",
	".SS": "xshg",
	".SZ": "xshe",
}

var calendarLog = logger.NewLogger(nil, "TradingCalendar")

// -----------------------------------------------------------------------------

// MICForSymbol maps a ticker suffix to its exchange, NYSE by default
func MICForSymbol(symbol string) string {
	if i := strings.LastIndex(symbol, "."); i >= 0 {
		if mic, ok := micBySuffix[strings.ToUpper(symbol[i:])]; ok {
			return mic
		}
	}
	return "xnys"
}

// -----------------------------------------------------------------------------

// GetCalendar returns the session calendar of a symbol. An empty symbol means a
// market that never closes and yields nil.
func GetCalendar(symbol string) *TradingCalendar {
	if symbol == "" {
		return nil
	}
	mic := MICForSymbol(symbol)

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}
	if cal == nil {
		calendarLog.Warning("Failed to load calendar for MIC '%s'. Using Mon-Fri 09:30-16:00 New York fallback.", mic)
		nyLoc, err := time.LoadLocation("America/New_York")
		if err != nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
// A nil calendar is always open.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc == nil {
		return true
	}
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		hour, minute := t.Hour(), t.Minute()
		return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
	}

	return tc.Calendar.IsOpen(t)
}
