package schedule

import "time"

// WeekWindow holds the 7 midnights of a Sunday-start week.
type WeekWindow [7]time.Time

// Midnight truncates t to 00:00 of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ComputeWeek returns the week containing anchor, index 0 being Sunday.
func ComputeWeek(anchor time.Time) WeekWindow {
	sunday := Midnight(anchor).AddDate(0, 0, -int(anchor.Weekday()))

	var w WeekWindow
	for i := range w {
		w[i] = sunday.AddDate(0, 0, i)
	}
	return w
}

// ShiftWeek moves anchor by the given number of weeks (7 days each) and
// returns it at midnight.
func ShiftWeek(anchor time.Time, weeks int) time.Time {
	return Midnight(anchor.AddDate(0, 0, 7*weeks))
}

// SelectDay returns the anchor for a tapped day: that date at midnight.
func SelectDay(date time.Time) time.Time {
	return Midnight(date)
}

func (w WeekWindow) Start() time.Time { return w[0] }

// End is the exclusive upper bound of the week.
func (w WeekWindow) End() time.Time { return w[6].AddDate(0, 0, 1) }

// Contains reports whether t falls on one of the week's days.
func (w WeekWindow) Contains(t time.Time) bool {
	return w.IndexOf(t) >= 0
}

// IndexOf returns the weekday index of t within the window, or -1.
func (w WeekWindow) IndexOf(t time.Time) int {
	day := Midnight(t.In(w[0].Location()))
	for i, d := range w {
		if d.Equal(day) {
			return i
		}
	}
	return -1
}
