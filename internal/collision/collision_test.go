package collision

import (
	"testing"

	"weekplan/internal/model"
)

func TestHasCollision(t *testing.T) {
	t.Parallel()
	existing := []Range{{Start: 540, End: 600}}
	tests := []struct {
		name       string
		start, end int
		want       bool
	}{
		{name: "overlaps tail", start: 570, end: 600, want: true},
		{name: "touches end", start: 600, end: 630, want: false},
		{name: "touches start", start: 510, end: 540, want: false},
		{name: "contains", start: 480, end: 660, want: true},
		{name: "contained", start: 550, end: 560, want: true},
		{name: "identical", start: 540, end: 600, want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCollision(existing, tt.start, tt.end); got != tt.want {
				t.Fatalf("HasCollision(%d,%d) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestHasCollisionEmptyAndOrderIndependent(t *testing.T) {
	t.Parallel()
	if HasCollision(nil, 0, 1440) {
		t.Fatal("empty set must never collide")
	}
	ranges := []Range{{600, 660}, {480, 510}, {900, 960}, {720, 780}}
	reversed := make([]Range, len(ranges))
	for i := range ranges {
		reversed[len(ranges)-1-i] = ranges[i]
	}
	for start := 420; start < 1000; start += 15 {
		a := HasCollision(ranges, start, start+45)
		b := HasCollision(reversed, start, start+45)
		if a != b {
			t.Fatalf("order changed result for start %d: %v vs %v", start, a, b)
		}
	}
}

func TestColumnRangesExcludesByExactIdentity(t *testing.T) {
	t.Parallel()
	entries := []model.Entry{
		{Ref: model.PlainRef{ID: "7"}, StartMinute: 540, EndMinute: 600},
		{Ref: model.InstanceRef{TaskID: "7", Date: "2025-01-08"}, StartMinute: 600, EndMinute: 660},
		{Ref: model.InstanceRef{TaskID: "7", Date: "2025-01-15"}, StartMinute: 700, EndMinute: 760},
	}

	got := ColumnRanges(entries, model.PlainRef{ID: "7"})
	if len(got) != 2 || got[0].Start != 600 {
		t.Fatalf("excluding plain 7 = %v, want both recurring instances kept", got)
	}

	got = ColumnRanges(entries, model.InstanceRef{TaskID: "7", Date: "2025-01-08"})
	if len(got) != 2 || got[0].Start != 540 || got[1].Start != 700 {
		t.Fatalf("excluding instance = %v, want plain entry and other date kept", got)
	}

	if got := ColumnRanges(entries, nil); len(got) != 3 {
		t.Fatalf("nil exclude kept %d ranges, want 3", len(got))
	}
}
