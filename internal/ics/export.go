package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "teachcal/internal/log"
	"teachcal/internal/model"
	"teachcal/internal/schedule"
)

// uidNamespace scopes the name-based UUIDs of lesson templates.
var uidNamespace = uuid.MustParse("6f1c9a3e-2b7d-4c55-9e0a-6d2f8b1c4e77")

const (
	uidDomain = "@teachcal"
	// localStamp is an RFC 5545 DATE-TIME in the zone named by TZID.
	localStamp = "20060102T150405"
)

var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// LessonUID returns a stable iCalendar UID for a lesson template. The same
// day, times, subject, room and section always map to the same UID.
func LessonUID(l model.Lesson) string {
	key := fmt.Sprintf("%d|%s|%s|%s|%s|%s", l.DayIndex, l.StartOffset, l.EndOffset, l.Subject, l.Room, l.Section)
	return uuid.NewSHA1(uidNamespace, []byte(key)).String() + uidDomain
}

// uidSet hands out UIDs for one export or expansion. Repeats of an
// identical template get a counter suffix so every event stays distinct.
type uidSet map[string]int

func (s uidSet) next(l model.Lesson) string {
	uid := LessonUID(l)
	n := s[uid]
	s[uid] = n + 1
	if n == 0 {
		return uid
	}
	return strings.TrimSuffix(uid, uidDomain) + "-" + strconv.Itoa(n) + uidDomain
}

// zoneID returns the IANA name to write as TZID, or "" when loc has no
// loadable name (UTC, the process-local zone, fixed offsets).
func zoneID(loc *time.Location) string {
	name := loc.String()
	if name == "" || name == "UTC" || name == "Local" {
		return ""
	}
	if _, err := time.LoadLocation(name); err != nil {
		return ""
	}
	return name
}

// WeeklyRule returns the RRULE value repeating a lesson every week on its
// weekday, optionally bounded by until.
func WeeklyRule(dayIndex int, until time.Time) (string, error) {
	if dayIndex < 0 || dayIndex > 6 {
		return "", fmt.Errorf("ics: day index %d out of range", dayIndex)
	}
	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{weekdays[dayIndex]},
	}
	if !until.IsZero() {
		opt.Until = until.UTC()
	}
	return opt.RRuleString(), nil
}

// ExportConfig controls calendar export.
type ExportConfig struct {
	// Name is written as X-WR-CALNAME.
	Name string
	// Anchor selects the week whose days become each lesson's DTSTART.
	Anchor time.Time
	// Until optionally ends every recurrence (e.g. end of term).
	Until time.Time
	// Stamp is the DTSTAMP of every event; zero means Anchor.
	Stamp time.Time
}

// Export renders the weekly lesson template as an iCalendar feed. Each
// lesson becomes one recurring VEVENT starting in the anchor's week.
//
// DTSTART/DTEND are written as wall-clock times with the anchor's TZID, so
// BYDAY is evaluated on the lesson's own weekday. When the anchor's zone
// has no IANA name, times are written in UTC and BYDAY follows the UTC
// weekday of the start.
func Export(lessons []model.Lesson, cfg ExportConfig) (string, error) {
	week := schedule.ComputeWeek(cfg.Anchor)
	stamp := cfg.Stamp
	if stamp.IsZero() {
		stamp = cfg.Anchor
	}
	tzid := zoneID(cfg.Anchor.Location())

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//teachcal//weekly schedule//PT")
	if cfg.Name != "" {
		cal.SetXWRCalName(cfg.Name)
	}
	if tzid != "" {
		cal.SetXWRTimezone(tzid)
	}

	uids := uidSet{}
	for _, lesson := range lessons {
		if lesson.DayIndex < 0 || lesson.DayIndex > 6 {
			return "", fmt.Errorf("ics: day index %d out of range", lesson.DayIndex)
		}
		l := lesson.On(week[lesson.DayIndex])

		day := l.DayIndex
		if tzid == "" {
			day = int(l.Start.UTC().Weekday())
		}
		rule, err := WeeklyRule(day, cfg.Until)
		if err != nil {
			return "", err
		}

		ev := cal.AddEvent(uids.next(lesson))
		ev.SetDtStampTime(stamp)
		if tzid != "" {
			ev.SetProperty(ical.ComponentPropertyDtStart, l.Start.Format(localStamp), ical.WithTZID(tzid))
			ev.SetProperty(ical.ComponentPropertyDtEnd, l.End.Format(localStamp), ical.WithTZID(tzid))
		} else {
			ev.SetStartAt(l.Start)
			ev.SetEndAt(l.End)
		}
		ev.SetSummary(l.Subject)
		if l.Room != "" {
			ev.SetLocation(l.Room)
		}
		if l.Section != "" {
			ev.SetDescription(l.Section)
			ev.SetProperty(ical.ComponentProperty("CATEGORIES"), l.Section)
		}
		if l.Color != "" {
			ev.SetProperty(ical.ComponentProperty("COLOR"), strings.TrimSpace(l.Color))
		}
		ev.AddRrule(rule)
	}

	appLog.Debug("ics export", "events", len(lessons), "week_start", week.Start().Format(time.DateOnly))
	return cal.Serialize(), nil
}
