package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidGrid is returned by GridMeta.Validate when the grid cannot host
// a drag gesture.
var ErrInvalidGrid = errors.New("invalid grid metadata")

// MinutesPerDay is the length of the minute-of-day axis.
const MinutesPerDay = 24 * 60

// DateLayout is the wire format for week starts and instance dates.
const DateLayout = "2006-01-02"

// DefaultDayOrder is the Monday-first label order used by the planner.
var DefaultDayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// GridMeta describes the visible day window of the schedule surface.
// It is captured from the current snapshot at gesture start and never
// mutated afterwards.
type GridMeta struct {
	// DayStart / DayEnd bound the visible window in minutes from midnight.
	DayStart int
	DayEnd   int

	// SlotMinutes is the snapping granularity; it must divide 1440.
	SlotMinutes int

	// SlotHeight is the pixel height of one slot.
	SlotHeight float64

	// DayOrder lists the seven day labels in display order.
	DayOrder []string
}

// Validate reports whether the grid can be used for pointer math.
func (g GridMeta) Validate() error {
	switch {
	case g.DayStart < 0 || g.DayEnd > MinutesPerDay-1:
		return fmt.Errorf("%w: day window %d-%d outside 0-1439", ErrInvalidGrid, g.DayStart, g.DayEnd)
	case g.DayStart >= g.DayEnd:
		return fmt.Errorf("%w: day start %d not before day end %d", ErrInvalidGrid, g.DayStart, g.DayEnd)
	case g.DayEnd-g.DayStart < 30:
		// Shorter windows cannot hold the minimum booking.
		return fmt.Errorf("%w: day window shorter than 30 minutes", ErrInvalidGrid)
	case g.SlotMinutes <= 0 || MinutesPerDay%g.SlotMinutes != 0:
		return fmt.Errorf("%w: slot minutes %d must divide 1440", ErrInvalidGrid, g.SlotMinutes)
	case g.SlotHeight <= 0:
		return fmt.Errorf("%w: slot height %v must be positive", ErrInvalidGrid, g.SlotHeight)
	case len(g.DayOrder) != 7:
		return fmt.Errorf("%w: expected 7 day labels, got %d", ErrInvalidGrid, len(g.DayOrder))
	}
	return nil
}

// HasDay reports whether day is one of the grid's day labels.
func (g GridMeta) HasDay(day string) bool {
	for _, d := range g.DayOrder {
		if d == day {
			return true
		}
	}
	return false
}

// Mode is the kind of drag gesture in flight.
type Mode int

const (
	ModeCreate Mode = iota
	ModeMove
	ModeResize
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeMove:
		return "move"
	case ModeResize:
		return "resize"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// EntryRef identifies an existing entry. It is either a PlainRef or an
// InstanceRef; no other implementations exist.
type EntryRef interface {
	isEntryRef()
	String() string
}

// PlainRef identifies a non-recurring entry by its id.
type PlainRef struct {
	ID string
}

// InstanceRef identifies one generated instance of a recurring task.
type InstanceRef struct {
	TaskID string
	// Date is the instance date in DateLayout form.
	Date string
}

func (PlainRef) isEntryRef()    {}
func (InstanceRef) isEntryRef() {}

func (r PlainRef) String() string    { return "entry:" + r.ID }
func (r InstanceRef) String() string { return "recurring:" + r.TaskID + "@" + r.Date }

// SameRef reports whether a and b identify the same entry. A plain entry
// only ever matches by id and a recurring instance only by the
// (task id, date) pair.
func SameRef(a, b EntryRef) bool {
	switch a := a.(type) {
	case PlainRef:
		other, ok := b.(PlainRef)
		return ok && a.ID == other.ID
	case InstanceRef:
		other, ok := b.(InstanceRef)
		return ok && a.TaskID == other.TaskID && a.Date == other.Date
	default:
		return false
	}
}

// IsRecurring reports whether ref points at a recurring-task instance.
func IsRecurring(ref EntryRef) bool {
	_, ok := ref.(InstanceRef)
	return ok
}

// Entry is a placed item in one day column.
type Entry struct {
	Ref         EntryRef
	Day         string
	StartMinute int
	EndMinute   int
	Color       string
	Title       string
}

// Duration returns the entry length in minutes.
func (e Entry) Duration() int { return e.EndMinute - e.StartMinute }

// BlockType is a palette category that create gestures start from.
type BlockType struct {
	ID    string
	Name  string
	Color string
	Icon  string
}

// FilterBlocks returns the blocks whose name contains query, ignoring case.
// An empty query matches everything.
func FilterBlocks(blocks []BlockType, query string) []BlockType {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]BlockType, 0, len(blocks))
	for _, b := range blocks {
		if q == "" || strings.Contains(strings.ToLower(b.Name), q) {
			out = append(out, b)
		}
	}
	return out
}

// Placement is a snapped, clamped position for an entry.
type Placement struct {
	Day         string
	StartMinute int
	Duration    int
}

// End returns the exclusive end minute.
func (p Placement) End() int { return p.StartMinute + p.Duration }

// Snapshot is an immutable view of one rendered week.
type Snapshot struct {
	Grid      GridMeta
	WeekStart time.Time
	Entries   []Entry
	Blocks    []BlockType
}

// Week returns the week start in DateLayout form, or "" when unknown.
func (s Snapshot) Week() string {
	if s.WeekStart.IsZero() {
		return ""
	}
	return s.WeekStart.Format(DateLayout)
}

// Column returns the entries placed on day, ordered by start minute.
func (s Snapshot) Column(day string) []Entry {
	out := make([]Entry, 0)
	for _, e := range s.Entries {
		if e.Day == day {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out
}

// Find looks up the entry identified by ref.
func (s Snapshot) Find(ref EntryRef) (Entry, bool) {
	for _, e := range s.Entries {
		if SameRef(e.Ref, ref) {
			return e, true
		}
	}
	return Entry{}, false
}

// Block looks up a palette block by id.
func (s Snapshot) Block(id string) (BlockType, bool) {
	for _, b := range s.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return BlockType{}, false
}

// WeekStart returns the Monday (00:00, same location) of the week containing t.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

// ParseWeek parses a DateLayout date and normalizes it to its Monday.
func ParseWeek(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse week %q: %w", s, err)
	}
	return WeekStart(t), nil
}
