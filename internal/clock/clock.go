package clock

import "time"

// Clock supplies "now" to every schedule computation.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in Location (time.Local if nil).
type System struct {
	Location *time.Location
}

func (s System) Now() time.Time {
	if s.Location == nil {
		return time.Now()
	}
	return time.Now().In(s.Location)
}

// Fixed always reports the same instant. It backs the test_date setting
// and every time-dependent test.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time {
	return f.At
}

// FromConfig returns a Fixed clock when testDate is non-zero, System otherwise.
func FromConfig(testDate time.Time, loc *time.Location) Clock {
	if !testDate.IsZero() {
		if loc != nil {
			testDate = testDate.In(loc)
		}
		return Fixed{At: testDate}
	}
	return System{Location: loc}
}
