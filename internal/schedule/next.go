package schedule

import (
	"time"

	"teachcal/internal/model"
)

// ResolveNext returns the lesson of selectedDay with the earliest start
// after now. Equal starts resolve to the earlier input entry. ok is false
// when no such lesson exists.
func ResolveNext(lessons []model.Lesson, selectedDay int, now time.Time) (info model.NextLessonInfo, ok bool) {
	for _, lesson := range lessons {
		if lesson.DayIndex != selectedDay {
			continue
		}
		l := lesson.On(now)
		if !l.Start.After(now) {
			continue
		}
		if ok && !l.Start.Before(info.Lesson.Start) {
			continue
		}
		info = model.NextLessonInfo{Lesson: l}
		ok = true
	}
	if ok {
		info.MinutesUntil = WholeMinutesBetween(now, info.Lesson.Start)
	}
	return info, ok
}
