package schedule

import (
	"fmt"
	"time"

	"teachcal/internal/model"
)

type cellKey struct {
	subject string
	room    string
	color   string
}

// MergeCell folds the lessons of one (day, slot) cell into merged blocks
// keyed by subject, room and color. A lesson matching an existing block
// appends its division label; labels are never de-duplicated. Blocks keep
// the order in which they were first created.
func MergeCell(lessons []model.Lesson, dayIndex, slotIndex int) []model.MergedGridCell {
	cells := make([]model.MergedGridCell, 0)
	index := make(map[cellKey]int)

	for _, l := range lessons {
		if l.DayIndex != dayIndex || l.Slot != slotIndex {
			continue
		}
		k := cellKey{subject: l.Subject, room: l.Room, color: l.Color}
		if i, ok := index[k]; ok {
			cells[i].DivisionLabels = append(cells[i].DivisionLabels, l.Section)
			continue
		}
		index[k] = len(cells)
		cells = append(cells, model.MergedGridCell{
			Subject:        l.Subject,
			Room:           l.Room,
			Color:          l.Color,
			DivisionLabels: []string{l.Section},
		})
	}
	return cells
}

// SlotTable maps lesson start times onto grid rows.
type SlotTable struct {
	Labels []string
	starts []time.Duration
}

// NewSlotTable parses slot labels ("07:30", "08:20", ...). Labels must be
// in ascending order.
func NewSlotTable(labels []string) (SlotTable, error) {
	t := SlotTable{Labels: labels, starts: make([]time.Duration, 0, len(labels))}
	for i, label := range labels {
		d, err := ParseClock(label)
		if err != nil {
			return SlotTable{}, fmt.Errorf("slot %d: %w", i, err)
		}
		if i > 0 && d <= t.starts[i-1] {
			return SlotTable{}, fmt.Errorf("slot %d (%s) is not after slot %d", i, label, i-1)
		}
		t.starts = append(t.starts, d)
	}
	return t, nil
}

func (t SlotTable) Len() int { return len(t.starts) }

// SlotFor returns the last slot starting at or before offset, or -1 when
// offset is earlier than the first slot.
func (t SlotTable) SlotFor(offset time.Duration) int {
	slot := -1
	for i, s := range t.starts {
		if s > offset {
			break
		}
		slot = i
	}
	return slot
}

// AssignSlots returns a copy of lessons with Slot set from the table.
func AssignSlots(lessons []model.Lesson, t SlotTable) []model.Lesson {
	out := make([]model.Lesson, len(lessons))
	for i, l := range lessons {
		l.Slot = t.SlotFor(l.StartOffset)
		out[i] = l
	}
	return out
}

// Grid is the merged day x slot view.
type Grid struct {
	Days  []int
	Slots []string
	// Cells is indexed [slot][day position in Days].
	Cells [][][]model.MergedGridCell
}

// BuildGrid merges every cell of the grid. Lessons must already carry
// their slot index.
func BuildGrid(lessons []model.Lesson, days []int, t SlotTable) Grid {
	g := Grid{
		Days:  days,
		Slots: t.Labels,
		Cells: make([][][]model.MergedGridCell, t.Len()),
	}
	for slot := range g.Cells {
		row := make([][]model.MergedGridCell, len(days))
		for col, day := range days {
			row[col] = MergeCell(lessons, day, slot)
		}
		g.Cells[slot] = row
	}
	return g
}
