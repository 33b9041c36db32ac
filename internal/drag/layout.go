package drag

import "sort"

// Rect is an element's bounding box in viewport pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside r. Right and bottom edges are
// exclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X < r.Left+r.Width && p.Y >= r.Top && p.Y < r.Top+r.Height
}

// Element is one rendered box. Column names the day column the element sits
// in (its own day when IsColumn is set); elements outside every column leave
// it empty.
type Element struct {
	Rect     Rect
	Z        int
	Column   string
	IsColumn bool
}

// Column is a resolved day column.
type Column struct {
	Day  string
	Rect Rect
}

// HitTester resolves the day column under a viewport point.
type HitTester interface {
	ColumnAt(p Point) (Column, bool)
}

// Layout is a static HitTester built from the host's element boxes.
type Layout struct {
	Elements []Element
}

// ElementsAt returns every element containing p, topmost first.
func (l Layout) ElementsAt(p Point) []Element {
	var out []Element
	for _, el := range l.Elements {
		if el.Rect.Contains(p) {
			out = append(out, el)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Z > out[j].Z })
	return out
}

// ColumnAt walks the element stack at p from the top and returns the day
// column enclosing the first element that belongs to one.
func (l Layout) ColumnAt(p Point) (Column, bool) {
	for _, el := range l.ElementsAt(p) {
		if el.Column == "" {
			continue
		}
		if el.IsColumn {
			return Column{Day: el.Column, Rect: el.Rect}, true
		}
		if col, ok := l.column(el.Column); ok {
			return col, true
		}
	}
	return Column{}, false
}

func (l Layout) column(day string) (Column, bool) {
	for _, el := range l.Elements {
		if el.IsColumn && el.Column == day {
			return Column{Day: day, Rect: el.Rect}, true
		}
	}
	return Column{}, false
}
