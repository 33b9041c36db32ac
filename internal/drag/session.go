// Package drag runs the pointer gesture state machine: palette creates,
// entry moves and entry resizes, from pointer-down to a committed placement.
package drag

import (
	"errors"
	"fmt"
	"time"

	"weekplan/internal/collision"
	"weekplan/internal/dispatch"
	"weekplan/internal/geometry"
	"weekplan/internal/model"
)

var (
	// ErrNoGrid is returned when the current snapshot has no usable grid, in
	// which case no gesture starts.
	ErrNoGrid = errors.New("no schedule grid available")

	// ErrNotDraggable is returned for targets that never start a gesture.
	ErrNotDraggable = errors.New("target does not start a gesture")

	// ErrUnknownEntry is returned when a move or resize names an entry the
	// snapshot does not hold.
	ErrUnknownEntry = errors.New("entry not in snapshot")
)

// Indicator colors.
const (
	DefaultColor = "#0ea5e9"
	InvalidColor = "#ef4444"
)

// Indicator is the drop preview. It always shows the clamped range, even
// when that range collides and cannot be dropped.
type Indicator struct {
	Visible     bool
	Day         string
	StartMinute int
	Duration    int
	Top         float64
	Height      float64
	Color       string
	Invalid     bool
}

type sessionState int

const (
	stateActive sessionState = iota
	stateAwaitingScope
	stateCommitting
)

// Session is one in-flight gesture. It is owned by a single Controller and
// never shared.
type Session struct {
	mode        model.Mode
	blockTypeID string
	ref         model.EntryRef
	color       string
	duration    int
	anchor      int
	grid        model.GridMeta
	snap        model.Snapshot
	state       sessionState
	started     time.Time

	candidate *model.Placement
}

// NewSession starts a gesture on t against snap. defaultDuration is used for
// palette targets that carry no duration of their own.
func NewSession(snap model.Snapshot, t Target, defaultDuration int) (*Session, error) {
	if err := snap.Grid.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGrid, err)
	}
	s := &Session{grid: snap.Grid, snap: snap, started: time.Now()}

	switch t.Kind {
	case TargetPalette:
		if t.BlockTypeID == "" {
			return nil, fmt.Errorf("%w: palette card without block type", ErrNotDraggable)
		}
		s.mode = model.ModeCreate
		s.blockTypeID = t.BlockTypeID
		s.color = t.Color
		if s.color == "" {
			if b, ok := snap.Block(t.BlockTypeID); ok {
				s.color = b.Color
			}
		}
		s.duration = t.Duration
		if s.duration <= 0 {
			s.duration = defaultDuration
		}

	case TargetEntry, TargetResizeHandle:
		if t.Ref == nil {
			return nil, fmt.Errorf("%w: %s target without entry", ErrNotDraggable, t.Kind)
		}
		e, ok := snap.Find(t.Ref)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEntry, t.Ref)
		}
		s.mode = model.ModeMove
		if t.Kind == TargetResizeHandle {
			s.mode = model.ModeResize
		}
		s.ref = e.Ref
		s.color = e.Color
		s.duration = e.Duration()
		s.anchor = e.StartMinute

	default:
		return nil, fmt.Errorf("%w: %s", ErrNotDraggable, t.Kind)
	}

	if s.color == "" {
		s.color = DefaultColor
	}
	return s, nil
}

func (s *Session) Mode() model.Mode     { return s.mode }
func (s *Session) Ref() model.EntryRef  { return s.ref }
func (s *Session) Grid() model.GridMeta { return s.grid }

// Candidate returns the last valid placement, if any.
func (s *Session) Candidate() (model.Placement, bool) {
	if s.candidate == nil {
		return model.Placement{}, false
	}
	return *s.candidate, true
}

// Move recomputes the candidate for pointer position p. The candidate is
// cleared when no day column is under p or the clamped range collides.
func (s *Session) Move(p Point, hit HitTester) Indicator {
	var col Column
	ok := false
	if hit != nil {
		col, ok = hit.ColumnAt(p)
	}
	if !ok || !s.grid.HasDay(col.Day) {
		s.candidate = nil
		return Indicator{}
	}

	y := p.Y - col.Rect.Top
	if y < 0 {
		y = 0
	}

	start := geometry.PixelYToMinute(y, s.grid)
	duration := s.duration
	if s.mode == model.ModeResize {
		start = s.anchor
		duration = geometry.ResizeDuration(s.anchor, y, s.grid)
	}
	start, duration = geometry.ClampRange(start, duration, s.grid)

	ranges := collision.ColumnRanges(s.snap.Column(col.Day), s.ref)
	collides := collision.HasCollision(ranges, start, start+duration)

	ind := Indicator{
		Visible:     true,
		Day:         col.Day,
		StartMinute: start,
		Duration:    duration,
		Top:         geometry.MinuteToPixelOffset(start, s.grid),
		Height:      geometry.PixelHeight(duration, s.grid),
		Color:       s.color,
	}
	if collides {
		s.candidate = nil
		ind.Color = InvalidColor
		ind.Invalid = true
		return ind
	}
	s.candidate = &model.Placement{Day: col.Day, StartMinute: start, Duration: duration}
	return ind
}

// Commit turns the candidate into a dispatch.Commit for week. It reports
// false when there is nothing to commit and the gesture is cancelled.
func (s *Session) Commit(week time.Time) (dispatch.Commit, bool) {
	p, ok := s.Candidate()
	if !ok {
		return dispatch.Commit{}, false
	}
	return dispatch.Commit{
		Mode:        s.mode,
		BlockTypeID: s.blockTypeID,
		Ref:         s.ref,
		Placement:   p,
		Week:        week,
	}, true
}
