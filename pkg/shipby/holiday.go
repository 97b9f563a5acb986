package shipby

import (
	"time"
)

// maxHolidayWalk bounds the backward walk. A full leap year of exclusions
// means the configuration can never produce a working day.
const maxHolidayWalk = 366

var weekdayCodes = map[time.Weekday]string{
	time.Sunday:    "sun",
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
}

// WeekdayCode returns the holiday configuration code for a weekday.
func WeekdayCode(d time.Weekday) string {
	return weekdayCodes[d]
}

func (c *HolidayConfig) isHoliday(day time.Time) bool {
	if c == nil {
		return false
	}
	if c.Dates[FormatDate(day)] {
		return true
	}
	return c.Weekdays[WeekdayCode(day.Weekday())]
}

// adjustForHolidays returns the nearest date at or before candidate that
// is neither a listed single-date holiday nor a recurring weekly holiday.
// It never moves forward.
func adjustForHolidays(candidate time.Time, cfg *HolidayConfig) (time.Time, error) {
	day := candidate
	for i := 0; i < maxHolidayWalk; i++ {
		if !cfg.isHoliday(day) {
			return day, nil
		}
		day = day.AddDate(0, 0, -1)
	}
	return time.Time{}, newError(KindHolidayNeverResolves,
		"no working day within %d days at or before %s", maxHolidayWalk, FormatDate(candidate))
}
