package drag

import "weekplan/internal/model"

// Point is a viewport coordinate in CSS pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointerKind tells mouse events from touch events.
type PointerKind int

const (
	PointerMouse PointerKind = iota
	PointerTouch
)

// PointerEvent is a mouse or touch event reduced to what the engine reads.
// Touch events carry their points in Touches, or in Changed for touchend
// where the active list is already empty.
type PointerEvent struct {
	Kind    PointerKind
	Button  int
	Client  Point
	Touches []Point
	Changed []Point
}

// Coords returns the pointer position for either event family.
func (e PointerEvent) Coords() (Point, bool) {
	if e.Kind == PointerMouse {
		return e.Client, true
	}
	if len(e.Touches) > 0 {
		return e.Touches[0], true
	}
	if len(e.Changed) > 0 {
		return e.Changed[0], true
	}
	return Point{}, false
}

// Primary reports whether the event may start a gesture: the main mouse
// button, or any touch start.
func (e PointerEvent) Primary() bool {
	if e.Kind == PointerTouch {
		return true
	}
	return e.Button == 0
}

// TargetKind is the kind of element a pointer-down landed on.
type TargetKind int

const (
	TargetPalette TargetKind = iota
	TargetEntry
	TargetResizeHandle
	TargetDeleteButton
	TargetTitle
)

func (k TargetKind) String() string {
	switch k {
	case TargetPalette:
		return "palette"
	case TargetEntry:
		return "entry"
	case TargetResizeHandle:
		return "resize"
	case TargetDeleteButton:
		return "delete"
	case TargetTitle:
		return "title"
	default:
		return "unknown"
	}
}

// Target is the element under a pointer-down. Palette targets carry a block
// type and the selected duration; the others carry the entry they belong to.
type Target struct {
	Kind        TargetKind
	BlockTypeID string
	Color       string
	Duration    int
	Ref         model.EntryRef
}
