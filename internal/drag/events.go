package drag

import (
	"weekplan/internal/dispatch"
	"weekplan/internal/model"
)

// Event is anything the Controller reacts to. Events are delivered through
// Controller.Post and handled one at a time in arrival order.
type Event interface {
	isEvent()
}

// PointerDown starts a gesture when it lands on a draggable target.
type PointerDown struct {
	Pointer PointerEvent
	Target  Target
}

// PointerMove updates the candidate of the active gesture.
type PointerMove struct {
	Pointer PointerEvent
}

// PointerUp releases the active gesture.
type PointerUp struct {
	Pointer PointerEvent
}

// Click is a click on an entry's title text.
type Click struct {
	Ref model.EntryRef
}

// ScopeChosen answers a PromptScope. Cancel closes the prompt without a
// request.
type ScopeChosen struct {
	Scope  dispatch.Scope
	Cancel bool
}

// DeleteRequested is a press on an entry's delete button.
type DeleteRequested struct {
	Ref model.EntryRef
}

// QuickTaskRequested adds a titled task without a block type.
type QuickTaskRequested struct {
	Title       string
	Day         string
	StartMinute int
}

// BlockCreateRequested adds a block type to the palette.
type BlockCreateRequested struct {
	Name  string
	Color string
	Icon  string
}

// BlockDeleteRequested removes a block type and every entry placed from it.
type BlockDeleteRequested struct {
	ID string
}

// NoteSaveRequested stores the note of a plain entry. An empty Note clears
// it.
type NoteSaveRequested struct {
	Ref  model.EntryRef
	Note string
}

// NavigateWeek moves the visible week by Offset weeks.
type NavigateWeek struct {
	Offset int
}

// RefreshRequested reloads the visible week.
type RefreshRequested struct{}

// Rebind replaces the snapshot with one the host already holds.
type Rebind struct {
	Snapshot model.Snapshot
}

// SetLayout installs the hit tester used to resolve day columns.
type SetLayout struct {
	Layout HitTester
}

type requestKind int

const (
	requestCommit requestKind = iota
	requestDelete
	requestQuickTask
	requestNote
	requestBlockCreate
	requestBlockDelete
	requestFetch
)

func (k requestKind) palette() bool {
	return k == requestBlockCreate || k == requestBlockDelete
}

// requestDone is posted back by a finished request. gen is the snapshot
// generation the request was sent against; session is the committing
// session for requestCommit.
type requestDone struct {
	kind    requestKind
	control string
	req     dispatch.Request
	gen     uint64
	session *Session
	snap    model.Snapshot
	err     error
}

func (PointerDown) isEvent()          {}
func (PointerMove) isEvent()          {}
func (PointerUp) isEvent()            {}
func (Click) isEvent()                {}
func (ScopeChosen) isEvent()          {}
func (DeleteRequested) isEvent()      {}
func (QuickTaskRequested) isEvent()   {}
func (BlockCreateRequested) isEvent() {}
func (BlockDeleteRequested) isEvent() {}
func (NoteSaveRequested) isEvent()    {}
func (NavigateWeek) isEvent()         {}
func (RefreshRequested) isEvent()     {}
func (Rebind) isEvent()               {}
func (SetLayout) isEvent()            {}
func (requestDone) isEvent()          {}
