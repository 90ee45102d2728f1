package schedule

import (
	"sort"
	"time"

	"teachcal/internal/model"
)

// WholeMinutesBetween returns the number of complete minutes from a to b,
// truncated toward zero.
func WholeMinutesBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Minute)
}

// BuildDaySections filters lessons to selectedDay, computes each lesson's
// status relative to now and groups them by section label.
//
// Lessons are re-anchored to now's calendar day before comparison. IsNow
// is only ever set when selectedDay is now's weekday. Sections appear in
// the order their label is first seen; lessons inside a section are
// ordered by start time, ties keeping input order.
func BuildDaySections(lessons []model.Lesson, selectedDay int, now time.Time) []model.DaySection {
	today := selectedDay == int(now.Weekday())

	sections := make([]model.DaySection, 0)
	index := make(map[string]int)

	for _, lesson := range lessons {
		if lesson.DayIndex != selectedDay {
			continue
		}
		l := lesson.On(now)

		item := model.AgendaItem{
			Lesson: l,
			IsPast: now.After(l.End),
			IsNow:  today && !now.Before(l.Start) && !now.After(l.End),
		}
		if l.Start.After(now) {
			m := WholeMinutesBetween(now, l.Start)
			item.MinutesUntilStart = &m
		}

		i, ok := index[l.Section]
		if !ok {
			i = len(sections)
			index[l.Section] = i
			sections = append(sections, model.DaySection{Label: l.Section})
		}
		sections[i].Lessons = append(sections[i].Lessons, item)
	}

	for i := range sections {
		items := sections[i].Lessons
		sort.SliceStable(items, func(a, b int) bool {
			return items[a].StartOffset < items[b].StartOffset
		})
	}

	return sections
}

// NowLocation returns the position of the first lesson flagged IsNow.
func NowLocation(sections []model.DaySection) (section, item int, ok bool) {
	for si, sec := range sections {
		for ii, it := range sec.Lessons {
			if it.IsNow {
				return si, ii, true
			}
		}
	}
	return -1, -1, false
}

// Sections lists the distinct section labels across all lessons in
// first-seen order.
func Sections(lessons []model.Lesson) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, l := range lessons {
		if _, ok := seen[l.Section]; ok {
			continue
		}
		seen[l.Section] = struct{}{}
		out = append(out, l.Section)
	}
	return out
}
