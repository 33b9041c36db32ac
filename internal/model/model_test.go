package model

import (
	"errors"
	"testing"
	"time"
)

func testGrid() GridMeta {
	return GridMeta{DayStart: 480, DayEnd: 1200, SlotMinutes: 30, SlotHeight: 20, DayOrder: DefaultDayOrder}
}

func TestGridValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*GridMeta)
		ok     bool
	}{
		{name: "valid", mutate: func(*GridMeta) {}, ok: true},
		{name: "start after end", mutate: func(g *GridMeta) { g.DayStart = 1200; g.DayEnd = 480 }},
		{name: "end past midnight", mutate: func(g *GridMeta) { g.DayEnd = 1440 }},
		{name: "window too short", mutate: func(g *GridMeta) { g.DayEnd = g.DayStart + 15 }},
		{name: "slot does not divide day", mutate: func(g *GridMeta) { g.SlotMinutes = 7 }},
		{name: "zero slot height", mutate: func(g *GridMeta) { g.SlotHeight = 0 }},
		{name: "missing days", mutate: func(g *GridMeta) { g.DayOrder = g.DayOrder[:5] }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			g := testGrid()
			g.DayOrder = append([]string(nil), DefaultDayOrder...)
			tt.mutate(&g)
			err := g.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidGrid) {
				t.Fatalf("Validate() = %v, want ErrInvalidGrid", err)
			}
		})
	}
}

func TestSameRefNeverCrossesKinds(t *testing.T) {
	t.Parallel()
	plain := PlainRef{ID: "7"}
	inst := InstanceRef{TaskID: "7", Date: "2025-01-08"}

	if !SameRef(plain, PlainRef{ID: "7"}) {
		t.Fatal("plain refs with equal ids should match")
	}
	if !SameRef(inst, InstanceRef{TaskID: "7", Date: "2025-01-08"}) {
		t.Fatal("instance refs with equal task and date should match")
	}
	if SameRef(plain, inst) || SameRef(inst, plain) {
		t.Fatal("plain and instance refs must never match each other")
	}
	if SameRef(inst, InstanceRef{TaskID: "7", Date: "2025-01-15"}) {
		t.Fatal("instances of the same task on different dates must not match")
	}
	if SameRef(nil, plain) || SameRef(plain, nil) {
		t.Fatal("nil ref must not match")
	}
}

func TestSnapshotColumnSorted(t *testing.T) {
	t.Parallel()
	s := Snapshot{Entries: []Entry{
		{Ref: PlainRef{ID: "b"}, Day: "Monday", StartMinute: 600, EndMinute: 660},
		{Ref: PlainRef{ID: "c"}, Day: "Tuesday", StartMinute: 480, EndMinute: 540},
		{Ref: PlainRef{ID: "a"}, Day: "Monday", StartMinute: 540, EndMinute: 570},
	}}
	col := s.Column("Monday")
	if len(col) != 2 {
		t.Fatalf("len(Column) = %d, want 2", len(col))
	}
	if col[0].Ref.(PlainRef).ID != "a" || col[1].Ref.(PlainRef).ID != "b" {
		t.Fatalf("Column order = %v, want a then b", col)
	}
	if _, ok := s.Find(PlainRef{ID: "c"}); !ok {
		t.Fatal("Find should locate entry c")
	}
}

func TestWeekStart(t *testing.T) {
	t.Parallel()
	// 2025-01-08 is a Wednesday; 2025-01-12 a Sunday.
	for _, day := range []string{"2025-01-06", "2025-01-08", "2025-01-12"} {
		w, err := ParseWeek(day)
		if err != nil {
			t.Fatalf("ParseWeek(%q) error: %v", day, err)
		}
		if got := w.Format(DateLayout); got != "2025-01-06" {
			t.Fatalf("ParseWeek(%q) = %s, want 2025-01-06", day, got)
		}
		if w.Weekday() != time.Monday {
			t.Fatalf("week start weekday = %v, want Monday", w.Weekday())
		}
	}
	if _, err := ParseWeek("not-a-date"); err == nil {
		t.Fatal("expected error for invalid week")
	}
}

func TestFilterBlocks(t *testing.T) {
	t.Parallel()
	blocks := []BlockType{{ID: "1", Name: "Work"}, {ID: "2", Name: "Work Out"}, {ID: "3", Name: "Family"}}
	if got := FilterBlocks(blocks, ""); len(got) != 3 {
		t.Fatalf("empty query returned %d blocks, want 3", len(got))
	}
	if got := FilterBlocks(blocks, "  wORk "); len(got) != 2 {
		t.Fatalf("query work returned %d blocks, want 2", len(got))
	}
	if got := FilterBlocks(blocks, "zzz"); len(got) != 0 {
		t.Fatalf("query zzz returned %d blocks, want 0", len(got))
	}
}
