package calendar

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func equalTimeRangeSlices(a, b []TimeRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Start.Equal(b[i].Start) || !a[i].End.Equal(b[i].End) {
			return false
		}
	}
	return true
}

func TestWithDefaultEnd(t *testing.T) {
	start := mustTime(t, 2024, 6, 10, 9, 0)

	tr := WithDefaultEnd(start, nil, time.Hour)
	if !tr.End.Equal(mustTime(t, 2024, 6, 10, 10, 0)) {
		t.Fatalf("expected default end 10:00, got %v", tr.End)
	}

	same := start
	tr = WithDefaultEnd(start, &same, time.Hour)
	if tr.Duration() != time.Hour {
		t.Fatalf("expected fallback for empty range, got %v", tr.Duration())
	}

	end := mustTime(t, 2024, 6, 10, 11, 30)
	tr = WithDefaultEnd(start, &end, time.Hour)
	if !tr.End.Equal(end) {
		t.Fatalf("expected explicit end, got %v", tr.End)
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	base := TimeRange{Start: mustTime(t, 2024, 6, 10, 9, 0), End: mustTime(t, 2024, 6, 10, 10, 0)}

	cases := []struct {
		name  string
		other TimeRange
		want  bool
	}{
		{"inside", TimeRange{Start: mustTime(t, 2024, 6, 10, 9, 15), End: mustTime(t, 2024, 6, 10, 9, 45)}, true},
		{"tail", TimeRange{Start: mustTime(t, 2024, 6, 10, 9, 30), End: mustTime(t, 2024, 6, 10, 10, 30)}, true},
		{"touching end", TimeRange{Start: mustTime(t, 2024, 6, 10, 10, 0), End: mustTime(t, 2024, 6, 10, 11, 0)}, false},
		{"touching start", TimeRange{Start: mustTime(t, 2024, 6, 10, 8, 0), End: mustTime(t, 2024, 6, 10, 9, 0)}, false},
		{"covering", TimeRange{Start: mustTime(t, 2024, 6, 10, 8, 0), End: mustTime(t, 2024, 6, 10, 11, 0)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Overlaps(tc.other); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := tc.other.Overlaps(base); got != tc.want {
				t.Fatalf("Overlaps is not symmetric for %s", tc.name)
			}
		})
	}
}

func TestSplitToTimeSlots_Basic(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 12, 0)}

	slots, err := SplitToTimeSlots(tr, 30*time.Minute, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 10, 30)},
		{Start: mustTime(t, 2025, 1, 1, 10, 30), End: mustTime(t, 2025, 1, 1, 11, 0)},
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 11, 30)},
		{Start: mustTime(t, 2025, 1, 1, 11, 30), End: mustTime(t, 2025, 1, 1, 12, 0)},
	}

	if !equalTimeRangeSlices(slots, expected) {
		t.Fatalf("expected %+v, got %+v", expected, slots)
	}
}

func TestSplitToTimeSlots_TailDropped(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 10)}

	slots, err := SplitToTimeSlots(tr, 30*time.Minute, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
}

func TestSplitToTimeSlots_Aligned(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 10), End: mustTime(t, 2025, 1, 1, 11, 30)}

	slots, err := SplitToTimeSlots(tr, 30*time.Minute, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(mustTime(t, 2025, 1, 1, 10, 30)) {
		t.Fatalf("expected first slot at 10:30, got %v", slots[0].Start)
	}
}

func TestSplitToTimeSlots_InvalidDuration(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 0)}
	if _, err := SplitToTimeSlots(tr, 0, 0); err != ErrSlotDuration {
		t.Fatalf("expected ErrSlotDuration, got %v", err)
	}
}

func TestSameDate(t *testing.T) {
	a := mustTime(t, 2024, 6, 10, 0, 0)
	b := time.Date(2024, 6, 10, 23, 59, 0, 0, time.FixedZone("BRT", -3*3600))
	if !SameDate(a, b) {
		t.Fatalf("expected same civil date")
	}
	if SameDate(a, a.AddDate(0, 0, 1)) {
		t.Fatalf("expected different dates")
	}
}

func TestFormatSlotForUser(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2024, 6, 10, 9, 0), End: mustTime(t, 2024, 6, 10, 10, 0)}

	got := FormatSlotForUser(tr, nil, true, "abc")
	want := "Segunda-feira, 10/06/2024, 09:00–10:00 (ID: abc)"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPageFromTotal(t *testing.T) {
	p := PageFromTotal([]int{3, 4}, 2, 2, 5)
	if len(p.Items) != 2 || !p.HasNext || !p.HasPrev || p.Total != 5 {
		t.Fatalf("unexpected page %+v", p)
	}

	last := PageFromTotal([]int{5}, 3, 2, 5)
	if last.HasNext || !last.HasPrev {
		t.Fatalf("unexpected last page %+v", last)
	}

	def := PageFromTotal([]int{1, 2, 3}, 0, 0, 3)
	if def.Page != 1 || def.PageSize != DefaultPageSize || def.HasNext || def.HasPrev {
		t.Fatalf("unexpected default page %+v", def)
	}
}
