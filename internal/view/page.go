package view

import (
	"embed"
	"html/template"
	"io"
	"regexp"
	"time"

	"teachcal/internal/model"
	"teachcal/internal/schedule"
)

//go:embed templates/*.html
var templateFS embed.FS

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

var funcs = template.FuncMap{
	"headerDate": HeaderDate,
	"nextBadge":  NextBadge,
	"clock":      ClockLabel,
	"countdown":  Countdown,
	"weekday": func(i int) string {
		if i < 0 || i > 6 {
			return ""
		}
		return WeekdayShort[i]
	},
	"deref": func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	},
	"caption": func(c model.MergedGridCell) string {
		s, _ := CellCaption(c)
		return s
	},
	"color": func(c string) template.CSS {
		if !hexColor.MatchString(c) {
			return template.CSS("transparent")
		}
		return template.CSS(c)
	},
}

var pages = template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

// AgendaPage is the data of the weekly agenda page.
type AgendaPage struct {
	View     schedule.View
	PrevHref string
	NextHref string
	DayHrefs [7]string
	// NowSection / NowItem locate the one card carrying the #now anchor.
	HasNow     bool
	NowSection int
	NowItem    int
	// Err, when set, replaces the agenda with the unavailable message.
	Err error
}

// IsNowAnchor reports whether the card at (section, item) gets id="now".
func (p AgendaPage) IsNowAnchor(section, item int) bool {
	return p.HasNow && section == p.NowSection && item == p.NowItem
}

// GridPage is the data of the day x slot grid page.
type GridPage struct {
	Grid schedule.Grid
}

// NewAgendaPage builds the page and its navigation links. basePath is the
// page's own URL path.
func NewAgendaPage(v schedule.View, basePath string) AgendaPage {
	p := AgendaPage{
		View:     v,
		PrevHref: basePath + "?date=" + schedule.ShiftWeek(v.Date, -1).Format(time.DateOnly),
		NextHref: basePath + "?date=" + schedule.ShiftWeek(v.Date, 1).Format(time.DateOnly),
	}
	for i, d := range v.Week {
		p.DayHrefs[i] = basePath + "?date=" + d.Format(time.DateOnly)
	}
	p.NowSection, p.NowItem, p.HasNow = schedule.NowLocation(v.Sections)
	return p
}

func RenderAgenda(w io.Writer, p AgendaPage) error {
	return pages.ExecuteTemplate(w, "agenda.html", p)
}

func RenderGrid(w io.Writer, p GridPage) error {
	return pages.ExecuteTemplate(w, "grid.html", p)
}
