package schedule

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appLog "teachcal/internal/log"
	"teachcal/internal/model"
)

func TestMain(m *testing.M) {
	appLog.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

// 2025-06-18 is a Wednesday.
func wed(hour, min int) time.Time {
	return time.Date(2025, time.June, 18, hour, min, 0, 0, time.UTC)
}

func mustNormalize(t *testing.T, records ...model.LessonRecord) []model.Lesson {
	t.Helper()
	res := Normalize(records, wed(0, 0))
	require.Empty(t, res.Rejected)
	return res.Lessons
}

func rec(day int, start, end, subject, section string) model.LessonRecord {
	return model.LessonRecord{
		DayIndex:  day,
		StartTime: start,
		EndTime:   end,
		Subject:   subject,
		Room:      "Sala 01",
		Section:   section,
		Color:     "#FDE68A",
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Duration
	}{
		{name: "24-hour with seconds", input: "13:10:00", want: 13*time.Hour + 10*time.Minute},
		{name: "24-hour without seconds", input: "07:30", want: 7*time.Hour + 30*time.Minute},
		{name: "12-hour morning", input: "08:50 AM", want: 8*time.Hour + 50*time.Minute},
		{name: "12-hour afternoon", input: "01:00 PM", want: 13 * time.Hour},
		{name: "12-hour noon", input: "12:10 PM", want: 12*time.Hour + 10*time.Minute},
		{name: "12-hour lowercase", input: "09:40 am", want: 9*time.Hour + 40*time.Minute},
		{name: "surrounding spaces", input: "  10:30:00 ", want: 10*time.Hour + 30*time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "25:00:00", "noon", "8h30"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrBadTime, "input %q", bad)
	}
}

func TestNormalize(t *testing.T) {
	t.Run("both formats produce the same instants", func(t *testing.T) {
		ref := wed(0, 0)
		res := Normalize([]model.LessonRecord{
			rec(3, "08:50:00", "09:40:00", "DB", "A"),
			rec(3, "08:50 AM", "09:40 AM", "DB", "A"),
		}, ref)
		require.Len(t, res.Lessons, 2)
		assert.Equal(t, wed(8, 50), res.Lessons[0].Start)
		assert.Equal(t, wed(9, 40), res.Lessons[0].End)
		assert.Equal(t, res.Lessons[0].Start, res.Lessons[1].Start)
		assert.Equal(t, res.Lessons[0].End, res.Lessons[1].End)
		assert.Equal(t, -1, res.Lessons[0].Slot)
	})

	t.Run("invalid records are dropped individually", func(t *testing.T) {
		res := Normalize([]model.LessonRecord{
			rec(3, "08:00:00", "08:50:00", "Math", "A"),
			rec(3, "xx", "08:50:00", "Broken", "A"),
			rec(3, "10:00:00", "09:00:00", "Backwards", "A"),
			rec(9, "10:00:00", "11:00:00", "Nowhere", "A"),
			rec(3, "11:00:00", "11:50:00", "Physics", "A"),
		}, wed(0, 0))

		require.Len(t, res.Lessons, 2)
		assert.Equal(t, "Math", res.Lessons[0].Subject)
		assert.Equal(t, "Physics", res.Lessons[1].Subject)

		require.Len(t, res.Rejected, 3)
		assert.Equal(t, 1, res.Rejected[0].Index)
		assert.ErrorIs(t, res.Rejected[0], ErrBadTime)
		assert.ErrorIs(t, res.Rejected[1], ErrBadRange)
		assert.ErrorIs(t, res.Rejected[2], ErrBadDay)

		err := res.Err()
		require.Error(t, err)
		var re *RecordError
		assert.True(t, errors.As(err, &re))
	})

	t.Run("empty input", func(t *testing.T) {
		res := Normalize(nil, wed(0, 0))
		assert.Empty(t, res.Lessons)
		assert.NoError(t, res.Err())
	})
}

func TestComputeWeek(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	anchors := []time.Time{
		time.Date(2025, time.June, 18, 13, 10, 0, 0, loc),
		time.Date(2025, time.June, 15, 0, 0, 0, 0, loc),
		time.Date(2025, time.June, 21, 23, 59, 0, 0, loc),
		time.Date(2024, time.December, 31, 12, 0, 0, 0, loc),
		time.Date(2024, time.February, 29, 8, 0, 0, 0, loc),
	}
	for _, anchor := range anchors {
		t.Run(anchor.Format("2006-01-02"), func(t *testing.T) {
			w := ComputeWeek(anchor)
			assert.Equal(t, time.Sunday, w[0].Weekday())
			for i := 0; i < 6; i++ {
				assert.Equal(t, w[i].AddDate(0, 0, 1), w[i+1])
			}
			for _, d := range w {
				assert.Equal(t, d, Midnight(d))
			}
			assert.True(t, w.Contains(anchor))
			assert.Equal(t, int(anchor.Weekday()), w.IndexOf(anchor))
		})
	}

	t.Run("known week", func(t *testing.T) {
		w := ComputeWeek(wed(13, 10))
		assert.Equal(t, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC), w.Start())
		assert.Equal(t, time.Date(2025, time.June, 22, 0, 0, 0, 0, time.UTC), w.End())
		assert.False(t, w.Contains(time.Date(2025, time.June, 22, 0, 0, 0, 0, time.UTC)))
	})
}

func TestShiftWeek(t *testing.T) {
	a := wed(13, 10)
	w := ComputeWeek(a)

	forward := ShiftWeek(w[3], 1)
	assert.Equal(t, time.Date(2025, time.June, 25, 0, 0, 0, 0, time.UTC), forward)
	assert.Equal(t, w, ComputeWeek(ShiftWeek(forward, -1)))

	back := ShiftWeek(a, -1)
	assert.Equal(t, time.Date(2025, time.June, 11, 0, 0, 0, 0, time.UTC), back)

	assert.Equal(t, time.Date(2025, time.June, 18, 0, 0, 0, 0, time.UTC), SelectDay(a))
}

func TestBuildDaySections(t *testing.T) {
	lessons := mustNormalize(t,
		rec(3, "08:50:00", "09:40:00", "DB", "Escola A"),
		rec(3, "09:40:00", "10:30:00", "Web", "Escola A"),
		rec(4, "10:30:00", "11:20:00", "Web", "Escola A"),
		rec(3, "07:00:00", "07:50:00", "Math", "Escola B"),
		rec(3, "08:00:00", "08:50:00", "Chem", "Escola A"),
	)

	t.Run("groups by first-seen label and sorts by start", func(t *testing.T) {
		sections := BuildDaySections(lessons, 3, wed(9, 15))
		require.Len(t, sections, 2)
		assert.Equal(t, "Escola A", sections[0].Label)
		assert.Equal(t, "Escola B", sections[1].Label)

		a := sections[0].Lessons
		require.Len(t, a, 3)
		assert.Equal(t, "Chem", a[0].Subject)
		assert.Equal(t, "DB", a[1].Subject)
		assert.Equal(t, "Web", a[2].Subject)

		assert.True(t, a[0].IsPast)
		assert.False(t, a[0].IsNow)
		assert.Nil(t, a[0].MinutesUntilStart)

		assert.True(t, a[1].IsNow)
		assert.False(t, a[1].IsPast)
		assert.Nil(t, a[1].MinutesUntilStart)

		assert.False(t, a[2].IsNow)
		assert.False(t, a[2].IsPast)
		require.NotNil(t, a[2].MinutesUntilStart)
		assert.Equal(t, 25, *a[2].MinutesUntilStart)

		b := sections[1].Lessons
		require.Len(t, b, 1)
		assert.True(t, b[0].IsPast)
	})

	t.Run("now bounds are inclusive", func(t *testing.T) {
		atStart := BuildDaySections(lessons, 3, wed(8, 50))
		atEnd := BuildDaySections(lessons, 3, wed(9, 40))

		find := func(sections []model.DaySection, subject string) model.AgendaItem {
			for _, s := range sections {
				for _, it := range s.Lessons {
					if it.Subject == subject {
						return it
					}
				}
			}
			t.Fatalf("subject %s not found", subject)
			return model.AgendaItem{}
		}

		assert.True(t, find(atStart, "DB").IsNow)
		assert.True(t, find(atEnd, "DB").IsNow)
		assert.True(t, find(atEnd, "Web").IsNow)
		assert.False(t, find(atEnd, "DB").IsPast)
	})

	t.Run("isNow only on the current weekday", func(t *testing.T) {
		thursday := BuildDaySections(lessons, 4, time.Date(2025, time.June, 18, 10, 45, 0, 0, time.UTC))
		require.Len(t, thursday, 1)
		assert.False(t, thursday[0].Lessons[0].IsNow)
	})

	t.Run("past and now are exclusive", func(t *testing.T) {
		for h := 6; h < 12; h++ {
			for m := 0; m < 60; m += 5 {
				for _, sec := range BuildDaySections(lessons, 3, wed(h, m)) {
					for _, it := range sec.Lessons {
						assert.False(t, it.IsNow && it.IsPast, "%02d:%02d %s", h, m, it.Subject)
						if !it.IsNow && !it.IsPast {
							assert.NotNil(t, it.MinutesUntilStart)
						}
					}
				}
			}
		}
	})

	t.Run("empty day", func(t *testing.T) {
		sections := BuildDaySections(lessons, 0, wed(9, 15))
		assert.NotNil(t, sections)
		assert.Empty(t, sections)
	})

	t.Run("idempotent", func(t *testing.T) {
		assert.Equal(t, BuildDaySections(lessons, 3, wed(9, 15)), BuildDaySections(lessons, 3, wed(9, 15)))
	})

	t.Run("now location", func(t *testing.T) {
		sec, item, ok := NowLocation(BuildDaySections(lessons, 3, wed(9, 15)))
		require.True(t, ok)
		assert.Equal(t, 0, sec)
		assert.Equal(t, 1, item)

		_, _, ok = NowLocation(BuildDaySections(lessons, 3, wed(18, 0)))
		assert.False(t, ok)
	})
}

func TestResolveNext(t *testing.T) {
	t.Run("example scenario", func(t *testing.T) {
		lessons := mustNormalize(t,
			rec(3, "08:50:00", "09:40:00", "DB", "A"),
			rec(3, "09:40:00", "10:30:00", "Web", "A"),
		)
		next, ok := ResolveNext(lessons, 3, wed(9, 15))
		require.True(t, ok)
		assert.Equal(t, "Web", next.Lesson.Subject)
		assert.Equal(t, 25, next.MinutesUntil)
	})

	t.Run("picks minimum regardless of input order", func(t *testing.T) {
		lessons := mustNormalize(t,
			rec(3, "15:00:00", "15:50:00", "Late", "A"),
			rec(3, "11:20:00", "12:10:00", "Early", "B"),
			rec(3, "13:00:00", "13:50:00", "Middle", "A"),
		)
		next, ok := ResolveNext(lessons, 3, wed(9, 15))
		require.True(t, ok)
		assert.Equal(t, "Early", next.Lesson.Subject)
		assert.Equal(t, 125, next.MinutesUntil)
	})

	t.Run("ties resolve to first input", func(t *testing.T) {
		lessons := mustNormalize(t,
			rec(3, "10:00:00", "10:50:00", "First", "A"),
			rec(3, "10:00:00", "10:50:00", "Second", "B"),
		)
		next, ok := ResolveNext(lessons, 3, wed(9, 15))
		require.True(t, ok)
		assert.Equal(t, "First", next.Lesson.Subject)
	})

	t.Run("truncates partial minutes", func(t *testing.T) {
		lessons := mustNormalize(t, rec(3, "10:00:00", "10:50:00", "X", "A"))
		now := wed(9, 15).Add(30 * time.Second)
		next, ok := ResolveNext(lessons, 3, now)
		require.True(t, ok)
		assert.Equal(t, 44, next.MinutesUntil)
	})

	t.Run("lesson starting exactly now is not next", func(t *testing.T) {
		lessons := mustNormalize(t, rec(3, "09:15:00", "10:00:00", "X", "A"))
		_, ok := ResolveNext(lessons, 3, wed(9, 15))
		assert.False(t, ok)
	})

	t.Run("empty day", func(t *testing.T) {
		lessons := mustNormalize(t, rec(3, "10:00:00", "10:50:00", "X", "A"))
		_, ok := ResolveNext(lessons, 5, wed(9, 15))
		assert.False(t, ok)
	})
}

func TestMergeCell(t *testing.T) {
	lesson := func(day, slot int, subject, room, color, division string) model.Lesson {
		return model.Lesson{DayIndex: day, Slot: slot, Subject: subject, Room: room, Color: color, Section: division}
	}

	t.Run("same key merges divisions", func(t *testing.T) {
		cells := MergeCell([]model.Lesson{
			lesson(1, 0, "X", "R", "C", "1A"),
			lesson(1, 0, "X", "R", "C", "1B"),
		}, 1, 0)
		require.Len(t, cells, 1)
		assert.Equal(t, []string{"1A", "1B"}, cells[0].DivisionLabels)
	})

	t.Run("different room splits", func(t *testing.T) {
		cells := MergeCell([]model.Lesson{
			lesson(1, 0, "X", "R1", "C", "1A"),
			lesson(1, 0, "X", "R2", "C", "1B"),
		}, 1, 0)
		require.Len(t, cells, 2)
		assert.Equal(t, "R1", cells[0].Room)
		assert.Equal(t, "R2", cells[1].Room)
	})

	t.Run("duplicates are kept and encounter order preserved", func(t *testing.T) {
		cells := MergeCell([]model.Lesson{
			lesson(2, 1, "SO", "Sala 2", "#FDBA74", "A"),
			lesson(2, 1, "PAM", "Sala 2", "#A5B4FC", "B"),
			lesson(2, 1, "SO", "Sala 2", "#FDBA74", "A"),
			lesson(2, 2, "SO", "Sala 2", "#FDBA74", "C"),
			lesson(3, 1, "SO", "Sala 2", "#FDBA74", "D"),
		}, 2, 1)
		require.Len(t, cells, 2)
		assert.Equal(t, "SO", cells[0].Subject)
		assert.Equal(t, []string{"A", "A"}, cells[0].DivisionLabels)
		assert.Equal(t, "PAM", cells[1].Subject)
		assert.Equal(t, []string{"B"}, cells[1].DivisionLabels)
	})

	t.Run("empty cell", func(t *testing.T) {
		cells := MergeCell(nil, 1, 0)
		assert.NotNil(t, cells)
		assert.Empty(t, cells)
	})
}

func TestSlotTable(t *testing.T) {
	table, err := NewSlotTable([]string{"07:30", "08:20", "09:10"})
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	assert.Equal(t, -1, table.SlotFor(7*time.Hour))
	assert.Equal(t, 0, table.SlotFor(7*time.Hour+30*time.Minute))
	assert.Equal(t, 0, table.SlotFor(8*time.Hour))
	assert.Equal(t, 1, table.SlotFor(8*time.Hour+20*time.Minute))
	assert.Equal(t, 2, table.SlotFor(15*time.Hour))

	_, err = NewSlotTable([]string{"08:20", "07:30"})
	assert.Error(t, err)
	_, err = NewSlotTable([]string{"bad"})
	assert.ErrorIs(t, err, ErrBadTime)
}

func TestBuildGrid(t *testing.T) {
	table, err := NewSlotTable([]string{"07:30", "08:20"})
	require.NoError(t, err)

	lessons := AssignSlots(mustNormalize(t,
		model.LessonRecord{DayIndex: 1, StartTime: "07:30:00", EndTime: "08:20:00", Subject: "BD", Room: "Lab 5", Section: "A", Color: "#FDE68A"},
		model.LessonRecord{DayIndex: 1, StartTime: "07:30:00", EndTime: "08:20:00", Subject: "BD", Room: "Lab 5", Section: "B", Color: "#FDE68A"},
		model.LessonRecord{DayIndex: 2, StartTime: "08:20:00", EndTime: "09:10:00", Subject: "PAM", Room: "Lab 4", Section: "A", Color: "#A5B4FC"},
	), table)

	g := BuildGrid(lessons, []int{1, 2}, table)
	require.Len(t, g.Cells, 2)
	require.Len(t, g.Cells[0], 2)

	require.Len(t, g.Cells[0][0], 1)
	assert.Equal(t, []string{"A", "B"}, g.Cells[0][0][0].DivisionLabels)
	assert.Empty(t, g.Cells[0][1])
	assert.Empty(t, g.Cells[1][0])
	require.Len(t, g.Cells[1][1], 1)
	assert.Equal(t, "PAM", g.Cells[1][1][0].Subject)
}

func TestSections(t *testing.T) {
	lessons := mustNormalize(t,
		rec(3, "08:00:00", "08:50:00", "A1", "Ilza"),
		rec(2, "08:00:00", "08:50:00", "A2", "Alceu"),
		rec(4, "08:00:00", "08:50:00", "A3", "Ilza"),
	)
	assert.Equal(t, []string{"Ilza", "Alceu"}, Sections(lessons))
}

func TestBuild(t *testing.T) {
	lessons := mustNormalize(t,
		rec(3, "08:50:00", "09:40:00", "DB", "A"),
		rec(3, "09:40:00", "10:30:00", "Web", "A"),
	)
	now := wed(9, 15)

	s := NewState(now)
	assert.Equal(t, 3, s.SelectedDay)
	assert.Equal(t, wed(0, 0), s.Anchor)

	v := Build(lessons, s, now)
	assert.Equal(t, wed(0, 0), v.Date)
	require.NotNil(t, v.Next)
	assert.Equal(t, "Web", v.Next.Lesson.Subject)
	require.Len(t, v.Sections, 1)
	assert.True(t, v.IsNext(v.Sections[0].Lessons[1]))
	assert.False(t, v.IsNext(v.Sections[0].Lessons[0]))

	t.Run("select another day", func(t *testing.T) {
		friday := s.Select(5)
		assert.Equal(t, 5, friday.SelectedDay)
		assert.Equal(t, time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC), friday.Anchor)

		fv := Build(lessons, friday, now)
		assert.Empty(t, fv.Sections)
		assert.Nil(t, fv.Next)
		assert.Equal(t, v.Week, fv.Week)
	})

	t.Run("shift keeps weekday", func(t *testing.T) {
		next := s.Shift(1)
		assert.Equal(t, 3, next.SelectedDay)
		assert.Equal(t, time.Date(2025, time.June, 25, 0, 0, 0, 0, time.UTC), next.Anchor)
		assert.Equal(t, s, next.Shift(-1))
	})

	t.Run("out of range selection is ignored", func(t *testing.T) {
		assert.Equal(t, s, s.Select(7))
	})

	t.Run("same weekday in another week", func(t *testing.T) {
		tests := []struct {
			name  string
			weeks int
			date  time.Time
			past  bool
		}{
			{"next week", 1, time.Date(2025, time.June, 25, 0, 0, 0, 0, time.UTC), false},
			{"last week", -1, time.Date(2025, time.June, 11, 0, 0, 0, 0, time.UTC), true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ov := Build(lessons, s.Shift(tt.weeks), now)
				assert.Equal(t, tt.date, ov.Date)
				assert.Nil(t, ov.Next)
				require.Len(t, ov.Sections, 1)
				require.Len(t, ov.Sections[0].Lessons, 2)

				for _, it := range ov.Sections[0].Lessons {
					assert.False(t, it.IsNow, it.Subject)
					assert.Equal(t, tt.past, it.IsPast, it.Subject)
					assert.Nil(t, it.MinutesUntilStart, it.Subject)
					assert.Equal(t, tt.date, Midnight(it.Start), it.Subject)
					assert.False(t, ov.IsNext(it), it.Subject)
				}
				assert.Equal(t, tt.date.Add(8*time.Hour+50*time.Minute), ov.Sections[0].Lessons[0].Start)
				_, _, ok := NowLocation(ov.Sections)
				assert.False(t, ok)
			})
		}
	})
}
