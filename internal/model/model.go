package model

import "time"

// LessonRecord is a raw schedule entry as delivered by the schedule
// endpoint or a static file. Times are either "HH:mm:ss" or a 12-hour
// "hh:mm AM/PM" string.
type LessonRecord struct {
	DayIndex  int    `json:"dia_semana" yaml:"dia_semana"`
	StartTime string `json:"horario_inicio" yaml:"horario_inicio"`
	EndTime   string `json:"horario_fim" yaml:"horario_fim"`
	Subject   string `json:"disciplina" yaml:"disciplina"`
	Room      string `json:"sala" yaml:"sala"`
	Section   string `json:"turma" yaml:"turma"`
	Color     string `json:"cor_evento" yaml:"cor_evento"`
}

// Lesson is a normalized LessonRecord. A schedule is a recurring weekly
// template, so Start/End are anchored to whatever reference date the
// lesson was normalized against, not to the lesson's own calendar date.
// StartOffset/EndOffset are the wall-clock offsets from midnight and are
// what builders use to re-anchor a lesson onto the comparison date.
type Lesson struct {
	DayIndex int
	Subject  string
	Room     string
	Section  string
	Color    string

	Start time.Time
	End   time.Time

	StartOffset time.Duration
	EndOffset   time.Duration

	// Slot is the grid slot index, or -1 when the lesson matches no slot.
	Slot int
}

// On returns a copy of l with Start/End anchored to the calendar day of ref.
// Offsets are applied as wall-clock time, so a DST change that day does not
// move the lesson.
func (l Lesson) On(ref time.Time) Lesson {
	l.Start = wallClock(ref, l.StartOffset)
	l.End = wallClock(ref, l.EndOffset)
	return l
}

func wallClock(ref time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int(offset % time.Hour / time.Minute)
	sec := int(offset % time.Minute / time.Second)
	return time.Date(ref.Year(), ref.Month(), ref.Day(), h, m, sec, 0, ref.Location())
}

// AgendaItem is a lesson plus its temporal status at query time.
type AgendaItem struct {
	Lesson

	IsNow  bool
	IsPast bool
	// MinutesUntilStart is nil unless the lesson starts after now.
	MinutesUntilStart *int
}

// DaySection groups a day's lessons under one section label.
type DaySection struct {
	Label   string
	Lessons []AgendaItem
}

// NextLessonInfo is the earliest lesson of a day starting after now.
type NextLessonInfo struct {
	Lesson       Lesson
	MinutesUntil int
}

// MergedGridCell collapses concurrent lessons that share subject, room and
// color into one block. DivisionLabels keeps every label in encounter
// order, duplicates included.
type MergedGridCell struct {
	Subject        string
	Room           string
	Color          string
	DivisionLabels []string
}

// Occurrence is a single dated instance of a lesson template.
type Occurrence struct {
	UID         string
	InstanceKey string

	Subject string
	Room    string
	Section string
	Color   string

	Start time.Time
	End   time.Time
}
