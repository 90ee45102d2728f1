package schedule

import (
	"time"

	"teachcal/internal/model"
)

// State is the view state owned by the caller: which week is shown and
// which day of it is selected. It is passed into Build on every
// recomputation; nothing here keeps it between calls.
type State struct {
	Anchor      time.Time
	SelectedDay int
}

// NewState starts on today's date.
func NewState(now time.Time) State {
	anchor := Midnight(now)
	return State{Anchor: anchor, SelectedDay: int(anchor.Weekday())}
}

// Shift moves the anchor by weeks and selects the anchor's weekday.
func (s State) Shift(weeks int) State {
	anchor := ShiftWeek(s.Anchor, weeks)
	return State{Anchor: anchor, SelectedDay: int(anchor.Weekday())}
}

// Select picks day index i of the current week.
func (s State) Select(i int) State {
	if i < 0 || i > 6 {
		return s
	}
	w := ComputeWeek(s.Anchor)
	return State{Anchor: SelectDay(w[i]), SelectedDay: i}
}

// View is everything the agenda screen renders for one State.
type View struct {
	Week        WeekWindow
	SelectedDay int
	Date        time.Time
	Sections    []model.DaySection
	Next        *model.NextLessonInfo
}

// Build derives the agenda view from the lesson snapshot, the view state
// and now. Live status (isNow, countdowns, the next lesson) only applies
// when the selected date is today; any other date gets its lessons placed
// on that date, all past or all upcoming, with no next lesson.
func Build(lessons []model.Lesson, s State, now time.Time) View {
	week := ComputeWeek(s.Anchor)
	if s.SelectedDay < 0 || s.SelectedDay > 6 {
		s.SelectedDay = int(s.Anchor.Weekday())
	}
	v := View{
		Week:        week,
		SelectedDay: s.SelectedDay,
		Date:        week[s.SelectedDay],
		Sections:    BuildDaySections(lessons, s.SelectedDay, now),
	}

	today := Midnight(now)
	if !v.Date.Equal(today) {
		past := v.Date.Before(today)
		for i := range v.Sections {
			items := v.Sections[i].Lessons
			for j := range items {
				items[j].Lesson = items[j].Lesson.On(v.Date)
				items[j].IsNow = false
				items[j].IsPast = past
				items[j].MinutesUntilStart = nil
			}
		}
		return v
	}

	if next, ok := ResolveNext(lessons, s.SelectedDay, now); ok {
		v.Next = &next
	}
	return v
}

// IsNext reports whether item is the lesson the next-lesson badge points
// at. Matching is by start instant.
func (v View) IsNext(item model.AgendaItem) bool {
	return v.Next != nil && item.Start.Equal(v.Next.Lesson.Start)
}
