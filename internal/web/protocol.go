package web

import (
	"fmt"
	"strings"

	"weekplan/internal/dispatch"
	"weekplan/internal/drag"
	"weekplan/internal/geometry"
	"weekplan/internal/model"
)

// Inbound message types.
const (
	msgLayout      = "layout"
	msgPointerDown = "pointerdown"
	msgPointerMove = "pointermove"
	msgPointerUp   = "pointerup"
	msgClick       = "click"
	msgScope       = "scope"
	msgDelete      = "delete"
	msgQuickTask   = "quicktask"
	msgBlockCreate = "blockcreate"
	msgBlockDelete = "blockdelete"
	msgNote        = "note"
	msgNavigate    = "navigate"
	msgRefresh     = "refresh"
	msgSearch      = "search"
)

// Outbound message types.
const (
	outConfig    = "config"
	outIndicator = "indicator"
	outDrag      = "drag"
	outPrompt    = "prompt"
	outSnapshot  = "snapshot"
	outNotice    = "notice"
	outControl   = "control"
	outNote      = "note"
	outPalette   = "palette"
)

type refMsg struct {
	EntryID         string `json:"entry_id,omitempty"`
	RecurringTaskID string `json:"recurring_task_id,omitempty"`
	InstanceDate    string `json:"instance_date,omitempty"`
}

// toRef mirrors the markup: a recurring task id makes it an instance.
func (r *refMsg) toRef() model.EntryRef {
	switch {
	case r == nil:
		return nil
	case r.RecurringTaskID != "":
		return model.InstanceRef{TaskID: r.RecurringTaskID, Date: r.InstanceDate}
	case r.EntryID != "":
		return model.PlainRef{ID: r.EntryID}
	default:
		return nil
	}
}

func refToMsg(ref model.EntryRef) *refMsg {
	switch ref := ref.(type) {
	case model.PlainRef:
		return &refMsg{EntryID: ref.ID}
	case model.InstanceRef:
		return &refMsg{RecurringTaskID: ref.TaskID, InstanceDate: ref.Date}
	default:
		return nil
	}
}

type targetMsg struct {
	Kind        string `json:"kind"`
	BlockTypeID string `json:"block_type_id,omitempty"`
	Color       string `json:"color,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	refMsg
}

var targetKinds = map[string]drag.TargetKind{
	"palette": drag.TargetPalette,
	"entry":   drag.TargetEntry,
	"resize":  drag.TargetResizeHandle,
	"delete":  drag.TargetDeleteButton,
	"title":   drag.TargetTitle,
}

type elementMsg struct {
	Day    string  `json:"day"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Z      int     `json:"z"`
}

type inbound struct {
	Type string `json:"type"`

	// Pointer events.
	Pointer string       `json:"pointer,omitempty"`
	Button  int          `json:"button,omitempty"`
	X       float64      `json:"x,omitempty"`
	Y       float64      `json:"y,omitempty"`
	Touches []drag.Point `json:"touches,omitempty"`
	Changed []drag.Point `json:"changed,omitempty"`
	Target  *targetMsg   `json:"target,omitempty"`

	// Layout: day columns and boxes stacked inside them.
	Columns  []elementMsg `json:"columns,omitempty"`
	Elements []elementMsg `json:"elements,omitempty"`

	Ref    *refMsg `json:"ref,omitempty"`
	Scope  string  `json:"scope,omitempty"`
	Title  string  `json:"title,omitempty"`
	Day    string  `json:"day,omitempty"`
	Start  string  `json:"start_time,omitempty"`
	Offset int     `json:"offset,omitempty"`
	Query  string  `json:"query,omitempty"`

	// Palette and note forms.
	Name    string `json:"name,omitempty"`
	Color   string `json:"color,omitempty"`
	Icon    string `json:"icon,omitempty"`
	BlockID string `json:"block_id,omitempty"`
	Note    string `json:"note,omitempty"`
}

func (m inbound) pointer() drag.PointerEvent {
	ev := drag.PointerEvent{
		Button:  m.Button,
		Client:  drag.Point{X: m.X, Y: m.Y},
		Touches: m.Touches,
		Changed: m.Changed,
	}
	if m.Pointer == "touch" {
		ev.Kind = drag.PointerTouch
	}
	return ev
}

func (m inbound) layout() drag.Layout {
	var l drag.Layout
	for _, c := range m.Columns {
		l.Elements = append(l.Elements, drag.Element{
			Rect:     drag.Rect{Left: c.Left, Top: c.Top, Width: c.Width, Height: c.Height},
			Z:        c.Z,
			Column:   c.Day,
			IsColumn: true,
		})
	}
	for _, e := range m.Elements {
		l.Elements = append(l.Elements, drag.Element{
			Rect:   drag.Rect{Left: e.Left, Top: e.Top, Width: e.Width, Height: e.Height},
			Z:      e.Z,
			Column: e.Day,
		})
	}
	return l
}

// event translates a message to a controller event. Search is answered
// directly and never reaches the controller.
func (m inbound) event() (drag.Event, error) {
	switch m.Type {
	case msgLayout:
		return drag.SetLayout{Layout: m.layout()}, nil
	case msgPointerDown:
		if m.Target == nil {
			return nil, fmt.Errorf("%s without target", m.Type)
		}
		kind, ok := targetKinds[m.Target.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown target kind %q", m.Target.Kind)
		}
		return drag.PointerDown{Pointer: m.pointer(), Target: drag.Target{
			Kind:        kind,
			BlockTypeID: m.Target.BlockTypeID,
			Color:       m.Target.Color,
			Duration:    m.Target.Duration,
			Ref:         m.Target.refMsg.toRef(),
		}}, nil
	case msgPointerMove:
		return drag.PointerMove{Pointer: m.pointer()}, nil
	case msgPointerUp:
		return drag.PointerUp{Pointer: m.pointer()}, nil
	case msgClick:
		return drag.Click{Ref: m.Ref.toRef()}, nil
	case msgScope:
		if strings.EqualFold(m.Scope, "cancel") {
			return drag.ScopeChosen{Cancel: true}, nil
		}
		scope, ok := dispatch.ParseScope(m.Scope)
		if !ok {
			return nil, fmt.Errorf("unknown scope %q", m.Scope)
		}
		return drag.ScopeChosen{Scope: scope}, nil
	case msgDelete:
		ref := m.Ref.toRef()
		if ref == nil {
			return nil, fmt.Errorf("%s without entry", m.Type)
		}
		return drag.DeleteRequested{Ref: ref}, nil
	case msgQuickTask:
		start, err := geometry.ParseClock(m.Start)
		if err != nil {
			return nil, err
		}
		return drag.QuickTaskRequested{Title: m.Title, Day: m.Day, StartMinute: start}, nil
	case msgBlockCreate:
		return drag.BlockCreateRequested{Name: m.Name, Color: m.Color, Icon: m.Icon}, nil
	case msgBlockDelete:
		if m.BlockID == "" {
			return nil, fmt.Errorf("%s without block_id", m.Type)
		}
		return drag.BlockDeleteRequested{ID: m.BlockID}, nil
	case msgNote:
		ref := m.Ref.toRef()
		if ref == nil {
			return nil, fmt.Errorf("%s without entry", m.Type)
		}
		return drag.NoteSaveRequested{Ref: ref, Note: m.Note}, nil
	case msgNavigate:
		return drag.NavigateWeek{Offset: m.Offset}, nil
	case msgRefresh:
		return drag.RefreshRequested{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
}

type indicatorMsg struct {
	Visible     bool    `json:"visible"`
	Day         string  `json:"day,omitempty"`
	StartMinute int     `json:"start_minute"`
	Duration    int     `json:"duration"`
	Top         float64 `json:"top"`
	Height      float64 `json:"height"`
	Color       string  `json:"color,omitempty"`
	Invalid     bool    `json:"invalid"`
}

type promptMsg struct {
	Action  string  `json:"action"`
	Ref     *refMsg `json:"ref,omitempty"`
	Message string  `json:"message"`
}

type noticeMsg struct {
	Kind    string `json:"kind"`
	Control string `json:"control"`
	Message string `json:"message"`
}

type gridMsg struct {
	DayStart    int      `json:"day_start"`
	DayEnd      int      `json:"day_end"`
	SlotMinutes int      `json:"slot_minutes"`
	SlotHeight  float64  `json:"slot_height"`
	DayOrder    []string `json:"day_order"`
}

type entryMsg struct {
	Ref         *refMsg `json:"ref"`
	Day         string  `json:"day"`
	StartMinute int     `json:"start_minute"`
	EndMinute   int     `json:"end_minute"`
	Start       string  `json:"start_time"`
	End         string  `json:"end_time"`
	Color       string  `json:"color,omitempty"`
	Title       string  `json:"title,omitempty"`
}

type blockMsg struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

type snapshotMsg struct {
	Week    string     `json:"week,omitempty"`
	Grid    gridMsg    `json:"grid"`
	Entries []entryMsg `json:"entries"`
	Blocks  []blockMsg `json:"blocks"`
}

type configMsg struct {
	DurationOptions  []int `json:"duration_options"`
	DefaultDuration  int   `json:"default_duration"`
	QuickTaskMinutes int   `json:"quick_task_minutes"`
	ClickSuppression int64 `json:"click_suppression_ms"`
}

type outbound struct {
	Type      string        `json:"type"`
	Indicator *indicatorMsg `json:"indicator,omitempty"`
	Active    *bool         `json:"active,omitempty"`
	Mode      string        `json:"mode,omitempty"`
	Ref       *refMsg       `json:"ref,omitempty"`
	Prompt    *promptMsg    `json:"prompt,omitempty"`
	Snapshot  *snapshotMsg  `json:"snapshot,omitempty"`
	Notice    *noticeMsg    `json:"notice,omitempty"`
	Control   string        `json:"control,omitempty"`
	Enabled   *bool         `json:"enabled,omitempty"`
	Blocks    []blockMsg    `json:"blocks,omitempty"`
	Config    *configMsg    `json:"config,omitempty"`
}

func snapshotToMsg(s model.Snapshot) *snapshotMsg {
	out := &snapshotMsg{
		Week: s.Week(),
		Grid: gridMsg{
			DayStart:    s.Grid.DayStart,
			DayEnd:      s.Grid.DayEnd,
			SlotMinutes: s.Grid.SlotMinutes,
			SlotHeight:  s.Grid.SlotHeight,
			DayOrder:    s.Grid.DayOrder,
		},
		Entries: make([]entryMsg, 0, len(s.Entries)),
		Blocks:  blocksToMsg(s.Blocks),
	}
	for _, day := range s.Grid.DayOrder {
		for _, e := range s.Column(day) {
			out.Entries = append(out.Entries, entryMsg{
				Ref:         refToMsg(e.Ref),
				Day:         e.Day,
				StartMinute: e.StartMinute,
				EndMinute:   e.EndMinute,
				Start:       geometry.FormatClock(e.StartMinute),
				End:         geometry.FormatClock(e.EndMinute),
				Color:       e.Color,
				Title:       e.Title,
			})
		}
	}
	return out
}

func blocksToMsg(blocks []model.BlockType) []blockMsg {
	out := make([]blockMsg, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockMsg{ID: b.ID, Name: b.Name, Color: b.Color, Icon: b.Icon})
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
