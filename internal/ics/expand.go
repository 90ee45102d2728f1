package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "teachcal/internal/log"
	"teachcal/internal/model"
	"teachcal/internal/schedule"
)

const (
	defaultMaxOccurrencesPerLesson = 500
)

// ExpandConfig controls how the weekly template is expanded into dated
// occurrences.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// Until optionally stops every recurrence (end of term).
	Until time.Time

	// MaxOccurrencesPerLesson is a safety cap. If zero,
	// defaultMaxOccurrencesPerLesson is used.
	MaxOccurrencesPerLesson int
}

// ExpandResult wraps the expanded occurrences and the UIDs of lessons
// that hit the cap.
type ExpandResult struct {
	Occurrences []model.Occurrence
	Truncated   []string
}

// Expand turns the weekly lesson template into concrete occurrences in
// [RangeStart, RangeEnd]. Each lesson recurs weekly on its weekday, with
// its first instance in the week containing RangeStart.
func Expand(lessons []model.Lesson, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerLesson <= 0 {
		cfg.MaxOccurrencesPerLesson = defaultMaxOccurrencesPerLesson
	}

	firstWeek := schedule.ComputeWeek(cfg.RangeStart)
	result.Occurrences = make([]model.Occurrence, 0)
	uids := uidSet{}

	for _, lesson := range lessons {
		if lesson.DayIndex < 0 || lesson.DayIndex > 6 {
			continue
		}
		first := lesson.On(firstWeek[lesson.DayIndex])

		opt := rrule.ROption{
			Freq:      rrule.WEEKLY,
			Byweekday: []rrule.Weekday{weekdays[lesson.DayIndex]},
			Dtstart:   first.Start,
		}
		if !cfg.Until.IsZero() {
			opt.Until = cfg.Until
		}
		r, err := rrule.NewRRule(opt)
		if err != nil {
			appLog.Error("expand: failed to build rule", err, "subject", lesson.Subject)
			continue
		}

		starts := r.Between(cfg.RangeStart, cfg.RangeEnd, true)
		uid := uids.next(lesson)
		if len(starts) > cfg.MaxOccurrencesPerLesson {
			starts = starts[:cfg.MaxOccurrencesPerLesson]
			result.Truncated = append(result.Truncated, uid)
			appLog.Error("expand: truncated occurrences due to cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerLesson,
			)
		}

		for _, start := range starts {
			occ := lesson.On(start)
			result.Occurrences = append(result.Occurrences, model.Occurrence{
				UID:         uid,
				InstanceKey: occ.Start.Format(time.RFC3339Nano),
				Subject:     occ.Subject,
				Room:        occ.Room,
				Section:     occ.Section,
				Color:       occ.Color,
				Start:       occ.Start,
				End:         occ.End,
			})
		}
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		return result.Occurrences[i].Start.Before(result.Occurrences[j].Start)
	})
	return result, nil
}
