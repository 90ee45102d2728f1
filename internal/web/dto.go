package web

import (
	"time"

	"teachcal/internal/ics"
	"teachcal/internal/model"
	"teachcal/internal/schedule"
	"teachcal/internal/view"
)

// lessonDTO is a JSON-friendly view of a normalized lesson. StartAt/EndAt
// fall on the date the lesson is shown for.
type lessonDTO struct {
	DayIndex int       `json:"day_index"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	Subject  string    `json:"subject"`
	Room     string    `json:"room"`
	Section  string    `json:"section"`
	Color    string    `json:"color"`
	Slot     int       `json:"slot"`
}

type agendaItemDTO struct {
	lessonDTO
	IsNow             bool   `json:"is_now"`
	IsPast            bool   `json:"is_past"`
	IsNext            bool   `json:"is_next"`
	MinutesUntilStart *int   `json:"minutes_until_start"`
	Badge             string `json:"badge,omitempty"`
}

type sectionDTO struct {
	Label   string          `json:"label"`
	Lessons []agendaItemDTO `json:"lessons"`
}

type nextDTO struct {
	Lesson       lessonDTO `json:"lesson"`
	MinutesUntil int       `json:"minutes_until"`
	Countdown    string    `json:"countdown"`
}

type dayDTO struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Day   int    `json:"day"`
}

// weekResponse is the JSON response shape for /api/week.
type weekResponse struct {
	Now         time.Time    `json:"now"`
	Week        []dayDTO     `json:"week"`
	SelectedDay int          `json:"selected_day"`
	Date        string       `json:"date"`
	Header      string       `json:"header"`
	NextBadge   string       `json:"next_badge"`
	Sections    []sectionDTO `json:"sections"`
	Next        *nextDTO     `json:"next"`
	// NowSection / NowItem locate the lesson in progress, -1 when none.
	NowSection int `json:"now_section"`
	NowItem    int `json:"now_item"`
}

type cellDTO struct {
	Subject        string   `json:"subject"`
	Room           string   `json:"room"`
	Color          string   `json:"color"`
	DivisionLabels []string `json:"division_labels"`
	Caption        string   `json:"caption,omitempty"`
}

// gridResponse is the JSON response shape for /api/grid. Cells is indexed
// [slot][day position].
type gridResponse struct {
	Days  []dayDTO      `json:"days"`
	Slots []string      `json:"slots"`
	Cells [][][]cellDTO `json:"cells"`
}

type schoolsResponse struct {
	Schools []string `json:"schools"`
}

type occurrenceDTO struct {
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Subject     string    `json:"subject"`
	Room        string    `json:"room"`
	Section     string    `json:"section"`
	Color       string    `json:"color"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type occurrencesResponse struct {
	RangeStart    time.Time       `json:"range_start"`
	RangeEnd      time.Time       `json:"range_end"`
	Occurrences   []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs []string        `json:"truncated_uids,omitempty"`
}

type refreshResponse struct {
	Status   string    `json:"status"`
	Lessons  int       `json:"lessons"`
	Rejected int       `json:"rejected"`
	LoadedAt time.Time `json:"loaded_at"`
}

type unavailableResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func newLessonDTO(l model.Lesson) lessonDTO {
	return lessonDTO{
		DayIndex: l.DayIndex,
		Start:    view.ClockLabel(l.Start),
		End:      view.ClockLabel(l.End),
		StartAt:  l.Start,
		EndAt:    l.End,
		Subject:  l.Subject,
		Room:     l.Room,
		Section:  l.Section,
		Color:    l.Color,
		Slot:     l.Slot,
	}
}

func newWeekResponse(v schedule.View, now time.Time) weekResponse {
	resp := weekResponse{
		Now:         now,
		Week:        make([]dayDTO, 0, len(v.Week)),
		SelectedDay: v.SelectedDay,
		Date:        v.Date.Format(time.DateOnly),
		Header:      view.HeaderDate(v.Date),
		NextBadge:   view.NextBadge(v.Next),
		Sections:    make([]sectionDTO, 0, len(v.Sections)),
	}
	for i, d := range v.Week {
		resp.Week = append(resp.Week, dayDTO{Date: d.Format(time.DateOnly), Label: view.WeekdayShort[i], Day: d.Day()})
	}

	for _, sec := range v.Sections {
		out := sectionDTO{Label: sec.Label, Lessons: make([]agendaItemDTO, 0, len(sec.Lessons))}
		for _, it := range sec.Lessons {
			item := agendaItemDTO{
				lessonDTO:         newLessonDTO(it.Lesson),
				IsNow:             it.IsNow,
				IsPast:            it.IsPast,
				IsNext:            v.IsNext(it),
				MinutesUntilStart: it.MinutesUntilStart,
			}
			switch {
			case it.IsNow:
				item.Badge = "Agora"
			case item.IsNext && it.MinutesUntilStart != nil:
				item.Badge = view.Countdown(*it.MinutesUntilStart)
			}
			out.Lessons = append(out.Lessons, item)
		}
		resp.Sections = append(resp.Sections, out)
	}

	if v.Next != nil {
		resp.Next = &nextDTO{
			Lesson:       newLessonDTO(v.Next.Lesson),
			MinutesUntil: v.Next.MinutesUntil,
			Countdown:    view.Countdown(v.Next.MinutesUntil),
		}
	}

	resp.NowSection, resp.NowItem, _ = schedule.NowLocation(v.Sections)
	return resp
}

func newGridResponse(g schedule.Grid) gridResponse {
	resp := gridResponse{
		Days:  make([]dayDTO, 0, len(g.Days)),
		Slots: g.Slots,
		Cells: make([][][]cellDTO, len(g.Cells)),
	}
	for _, d := range g.Days {
		resp.Days = append(resp.Days, dayDTO{Label: view.WeekdayShort[d], Day: d})
	}
	for slot, row := range g.Cells {
		outRow := make([][]cellDTO, len(row))
		for col, cells := range row {
			out := make([]cellDTO, 0, len(cells))
			for _, c := range cells {
				caption, _ := view.CellCaption(c)
				out = append(out, cellDTO{
					Subject:        c.Subject,
					Room:           c.Room,
					Color:          c.Color,
					DivisionLabels: c.DivisionLabels,
					Caption:        caption,
				})
			}
			outRow[col] = out
		}
		resp.Cells[slot] = outRow
	}
	return resp
}

func newOccurrencesResponse(week schedule.WeekWindow, res ics.ExpandResult) occurrencesResponse {
	resp := occurrencesResponse{
		RangeStart:    week.Start(),
		RangeEnd:      week.End(),
		Occurrences:   make([]occurrenceDTO, 0, len(res.Occurrences)),
		TruncatedUIDs: res.Truncated,
	}
	for _, occ := range res.Occurrences {
		resp.Occurrences = append(resp.Occurrences, occurrenceDTO{
			UID:         occ.UID,
			InstanceKey: occ.InstanceKey,
			Subject:     occ.Subject,
			Room:        occ.Room,
			Section:     occ.Section,
			Color:       occ.Color,
			Start:       occ.Start,
			End:         occ.End,
		})
	}
	return resp
}
