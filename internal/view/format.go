package view

import (
	"fmt"
	"time"

	"teachcal/internal/model"
)

// WeekdayShort are the day-picker labels, index 0 = Sunday.
var WeekdayShort = [7]string{"Dom", "Seg", "Ter", "Qua", "Qui", "Sex", "Sáb"}

var months = [12]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

const noMoreLessons = "Sem mais aulas hoje"

// HeaderDate formats d as "18 de junho, 2025".
func HeaderDate(d time.Time) string {
	return fmt.Sprintf("%02d de %s, %d", d.Day(), months[d.Month()-1], d.Year())
}

// Countdown renders whole minutes as "Xh Ym".
func Countdown(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// NextBadge is the header line under the date.
func NextBadge(next *model.NextLessonInfo) string {
	if next == nil {
		return noMoreLessons
	}
	return fmt.Sprintf("Próxima: %s em %s", next.Lesson.Subject, Countdown(next.MinutesUntil))
}

// ClockLabel formats a lesson time as "08:50 AM".
func ClockLabel(t time.Time) string {
	return t.Format("03:04 PM")
}

// CellCaption returns the division caption of a merged grid cell. It is
// only shown when the cell holds a single division.
func CellCaption(cell model.MergedGridCell) (string, bool) {
	if len(cell.DivisionLabels) != 1 {
		return "", false
	}
	return "Turma " + cell.DivisionLabels[0], true
}
