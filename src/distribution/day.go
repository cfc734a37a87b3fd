package distribution

import "time"

// DayLayout is the format of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar date formatted YYYY-MM-DD.
type Day string

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	return Day(t.In(loc).Format(DayLayout))
}

// ParseDay checks that s is a valid YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(DayLayout, s); err != nil {
		return "", err
	}
	return Day(s), nil
}

// String ...
func (d Day) String() string {
	return string(d)
}
