package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "teachcal/internal/log"
	"teachcal/internal/model"
)

var (
	ErrBadTime  = errors.New("unparseable time")
	ErrBadRange = errors.New("start is not before end")
	ErrBadDay   = errors.New("day index out of range")
)

// clockLayouts are tried in order. 24-hour source format first, then the
// 12-hour display format.
var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"03:04 PM",
	"3:04 PM",
	"03:04PM",
	"03:04:05 PM",
}

// RecordError describes a record dropped during normalization.
type RecordError struct {
	Index  int
	Record model.LessonRecord
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (%s): %v", e.Index, e.Record.Subject, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// NormalizeResult wraps the normalized lessons and the records that were
// dropped.
type NormalizeResult struct {
	Lessons  []model.Lesson
	Rejected []*RecordError
}

// Err joins all rejections into one error, or nil if none.
func (r NormalizeResult) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Rejected))
	for _, re := range r.Rejected {
		errs = append(errs, re)
	}
	return errors.Join(errs...)
}

// ParseClock parses a wall-clock string in either "HH:mm:ss" or
// "hh:mm AM/PM" form into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadTime)
	}
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		return time.Duration(t.Hour())*time.Hour +
			time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
}

// Normalize converts raw records into lessons anchored to ref. Invalid
// records are dropped individually and reported in Rejected; the batch
// itself never fails.
func Normalize(records []model.LessonRecord, ref time.Time) NormalizeResult {
	res := NormalizeResult{
		Lessons: make([]model.Lesson, 0, len(records)),
	}

	for i, rec := range records {
		l, err := normalizeRecord(rec, ref)
		if err != nil {
			re := &RecordError{Index: i, Record: rec, Err: err}
			res.Rejected = append(res.Rejected, re)
			appLog.Error("schedule: dropping lesson record", err,
				"index", i,
				"subject", rec.Subject,
				"start", rec.StartTime,
				"end", rec.EndTime,
			)
			continue
		}
		res.Lessons = append(res.Lessons, l)
	}

	if len(res.Rejected) > 0 {
		appLog.Info("schedule: normalize completed with rejections",
			"accepted", len(res.Lessons),
			"rejected", len(res.Rejected),
		)
	}
	return res
}

func normalizeRecord(rec model.LessonRecord, ref time.Time) (model.Lesson, error) {
	if rec.DayIndex < 0 || rec.DayIndex > 6 {
		return model.Lesson{}, fmt.Errorf("%w: %d", ErrBadDay, rec.DayIndex)
	}
	start, err := ParseClock(rec.StartTime)
	if err != nil {
		return model.Lesson{}, fmt.Errorf("start: %w", err)
	}
	end, err := ParseClock(rec.EndTime)
	if err != nil {
		return model.Lesson{}, fmt.Errorf("end: %w", err)
	}
	if start >= end {
		return model.Lesson{}, fmt.Errorf("%w: %s-%s", ErrBadRange, rec.StartTime, rec.EndTime)
	}

	l := model.Lesson{
		DayIndex:    rec.DayIndex,
		Subject:     rec.Subject,
		Room:        rec.Room,
		Section:     rec.Section,
		Color:       rec.Color,
		StartOffset: start,
		EndOffset:   end,
		Slot:        -1,
	}
	return l.On(ref), nil
}
