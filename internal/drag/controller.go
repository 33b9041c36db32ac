package drag

import (
	"context"
	"errors"
	"strings"
	"time"

	"weekplan/internal/collision"
	"weekplan/internal/dispatch"
	appLog "weekplan/internal/log"
	"weekplan/internal/model"
)

// Control keys passed to Host.SetControlEnabled.
const (
	ControlDrag        = "drag"
	ControlQuickTask   = "quick-task"
	ControlSchedule    = "schedule"
	ControlBlockCreate = "block-create"
)

// DeleteControl is the control key of ref's delete button.
func DeleteControl(ref model.EntryRef) string {
	return "delete:" + ref.String()
}

// BlockDeleteControl is the control key of a palette block's delete button.
func BlockDeleteControl(id string) string {
	return "block-delete:" + id
}

// NoteControl is the control key of ref's note form.
func NoteControl(ref model.EntryRef) string {
	return "note:" + ref.String()
}

// User-facing messages.
const (
	MsgConflict     = "This time slot is already occupied. Please choose a different time."
	MsgSaveFailed   = "Could not save the change. The schedule may be out of date."
	MsgLoadFailed   = "Could not load the schedule."
	MsgTitleMissing = "Please enter a title."
	MsgNameMissing  = "Please enter a block name."
	MsgScopeMove    = "Do you want to change only this instance or all occurrences?"
	MsgScopeDelete  = "Do you want to delete only this instance or all occurrences?"
)

// NoticeKind classifies a Notice.
type NoticeKind int

const (
	NoticeConflict NoticeKind = iota
	NoticeError
	NoticeInvalid
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeConflict:
		return "conflict"
	case NoticeInvalid:
		return "invalid"
	default:
		return "error"
	}
}

// Notice is a message shown next to the control that caused it.
type Notice struct {
	Kind    NoticeKind
	Control string
	Message string
}

// PromptAction is what a scope prompt is about.
type PromptAction int

const (
	PromptMove PromptAction = iota
	PromptDelete
)

// ScopePrompt asks the user to pick between one occurrence and all of them.
type ScopePrompt struct {
	Action  PromptAction
	Ref     model.EntryRef
	Message string
}

// Host is the rendering side. All calls are made from the goroutine running
// Controller.Run.
type Host interface {
	BeginDrag(mode model.Mode, ref model.EntryRef)
	EndDrag()
	ShowIndicator(Indicator)
	PromptScope(ScopePrompt)
	Replace(model.Snapshot)
	Notify(Notice)
	SetControlEnabled(control string, enabled bool)
	OpenNote(ref model.EntryRef)
}

// Sender performs requests against the persistence collaborator and returns
// the snapshot found in the response.
type Sender interface {
	Send(ctx context.Context, req dispatch.Request) (model.Snapshot, error)
}

// Options tune a Controller. Zero values fall back to defaults.
type Options struct {
	ClickSuppression time.Duration
	DefaultDuration  int
	QuickTaskMinutes int
	RequestTimeout   time.Duration
	Location         *time.Location
}

func (o Options) withDefaults() Options {
	if o.ClickSuppression <= 0 {
		o.ClickSuppression = DefaultClickSuppression
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = 60
	}
	if o.QuickTaskMinutes <= 0 {
		o.QuickTaskMinutes = 60
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

type pendingScope struct {
	action PromptAction
	commit dispatch.Commit
	ref    model.EntryRef
}

// Controller owns the drag session and the current snapshot. Every field
// below events is touched only by the goroutine running Run; other
// goroutines talk to it through Post.
type Controller struct {
	host   Host
	sender Sender
	opts   Options
	events chan Event
	done   chan struct{}
	now    func() time.Time
	spawn  func(func())

	snap     model.Snapshot
	gen      uint64
	layout   HitTester
	session  *Session
	pending  *pendingScope
	inflight map[string]bool
	queued   time.Time
	resync   bool
	guard    clickGuard
}

// NewController builds a Controller for one host surface.
func NewController(host Host, sender Sender, snap model.Snapshot, opts Options) *Controller {
	return &Controller{
		host:     host,
		sender:   sender,
		opts:     opts.withDefaults(),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		now:      time.Now,
		spawn:    func(f func()) { go f() },
		snap:     snap,
		inflight: make(map[string]bool),
	}
}

// Run handles events until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

// Post queues ev for the Run goroutine. It reports false once Run has
// returned.
func (c *Controller) Post(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// SetClickSuppression changes the release suppression window.
func (c *Controller) SetClickSuppression(d time.Duration) {
	c.Post(setSuppression{d})
}

type setSuppression struct{ d time.Duration }

func (setSuppression) isEvent() {}

func (c *Controller) handle(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case PointerDown:
		c.pointerDown(ev)
	case PointerMove:
		c.pointerMove(ev)
	case PointerUp:
		c.pointerUp(ctx)
	case Click:
		c.click(ev)
	case ScopeChosen:
		c.scopeChosen(ctx, ev)
	case DeleteRequested:
		c.deleteRequested(ctx, ev)
	case QuickTaskRequested:
		c.quickTask(ctx, ev)
	case BlockCreateRequested:
		c.blockCreate(ctx, ev)
	case BlockDeleteRequested:
		c.blockDelete(ctx, ev)
	case NoteSaveRequested:
		c.noteSave(ctx, ev)
	case NavigateWeek:
		c.navigate(ctx, ev)
	case RefreshRequested:
		c.refresh(ctx)
	case Rebind:
		c.replace(ev.Snapshot)
	case SetLayout:
		c.layout = ev.Layout
	case setSuppression:
		if ev.d > 0 {
			c.opts.ClickSuppression = ev.d
		}
	case requestDone:
		c.requestDone(ctx, ev)
	}
}

func (c *Controller) pointerDown(ev PointerDown) {
	if !ev.Pointer.Primary() {
		return
	}
	switch ev.Target.Kind {
	case TargetDeleteButton, TargetTitle:
		return
	}
	if c.inflight[ControlDrag] {
		appLog.Debug("pointer down ignored while a commit is in flight")
		return
	}

	if s := c.session; s != nil {
		if s.state != stateActive {
			appLog.Debug("pointer down ignored while committing", "mode", s.mode.String())
			return
		}
		appLog.Warn("discarding stale drag session", "mode", s.mode.String())
		c.session = nil
		c.host.EndDrag()
	}

	s, err := NewSession(c.snap, ev.Target, c.opts.DefaultDuration)
	if err != nil {
		appLog.Debug("gesture not started", "target", ev.Target.Kind.String(), "reason", err.Error())
		return
	}
	c.session = s
	c.host.BeginDrag(s.mode, s.ref)
}

func (c *Controller) pointerMove(ev PointerMove) {
	s := c.session
	if s == nil || s.state != stateActive {
		return
	}
	p, ok := ev.Pointer.Coords()
	if !ok {
		return
	}
	ind := s.Move(p, c.layout)
	if !ind.Visible {
		appLog.Debug("pointer outside day columns", "x", p.X, "y", p.Y)
	}
	c.host.ShowIndicator(ind)
}

func (c *Controller) pointerUp(ctx context.Context) {
	s := c.session
	if s == nil || s.state != stateActive {
		return
	}
	c.host.EndDrag()
	c.guard.arm(c.now(), c.opts.ClickSuppression)

	commit, ok := s.Commit(c.snap.WeekStart)
	if !ok {
		appLog.Debug("gesture cancelled", "mode", s.mode.String(), "held", time.Since(s.started).String())
		c.session = nil
		return
	}

	if commit.Mode != model.ModeCreate && dispatch.NeedsScope(commit.Ref) {
		s.state = stateAwaitingScope
		c.pending = &pendingScope{action: PromptMove, commit: commit, ref: commit.Ref}
		c.host.PromptScope(ScopePrompt{Action: PromptMove, Ref: commit.Ref, Message: MsgScopeMove})
		return
	}

	req, err := dispatch.BuildCommit(commit, dispatch.ScopeUnset)
	if err != nil {
		c.failLocally(ControlDrag, err)
		c.session = nil
		return
	}
	s.state = stateCommitting
	c.send(ctx, requestCommit, ControlDrag, req)
}

func (c *Controller) click(ev Click) {
	if ev.Ref == nil {
		return
	}
	if c.guard.suppressed(c.now()) {
		appLog.Debug("click suppressed after drag", "ref", ev.Ref.String())
		return
	}
	c.host.OpenNote(ev.Ref)
}

func (c *Controller) deleteRequested(ctx context.Context, ev DeleteRequested) {
	if ev.Ref == nil {
		return
	}
	control := DeleteControl(ev.Ref)
	if c.inflight[control] {
		return
	}
	if dispatch.NeedsScope(ev.Ref) {
		if c.pending != nil {
			appLog.Debug("delete ignored while a scope prompt is open", "ref", ev.Ref.String())
			return
		}
		c.pending = &pendingScope{action: PromptDelete, ref: ev.Ref}
		c.host.PromptScope(ScopePrompt{Action: PromptDelete, Ref: ev.Ref, Message: MsgScopeDelete})
		return
	}
	req, err := dispatch.BuildDelete(ev.Ref, dispatch.ScopeUnset, c.snap.WeekStart)
	if err != nil {
		c.failLocally(control, err)
		return
	}
	c.send(ctx, requestDelete, control, req)
}

func (c *Controller) scopeChosen(ctx context.Context, ev ScopeChosen) {
	p := c.pending
	if p == nil {
		return
	}
	c.pending = nil

	if ev.Cancel || ev.Scope == dispatch.ScopeUnset {
		if p.action == PromptMove {
			c.session = nil
		}
		return
	}

	switch p.action {
	case PromptMove:
		if c.inflight[ControlDrag] {
			c.session = nil
			return
		}
		req, err := dispatch.BuildCommit(p.commit, ev.Scope)
		if err != nil {
			c.failLocally(ControlDrag, err)
			c.session = nil
			return
		}
		if c.session != nil {
			c.session.state = stateCommitting
		}
		c.send(ctx, requestCommit, ControlDrag, req)

	case PromptDelete:
		control := DeleteControl(p.ref)
		if c.inflight[control] {
			return
		}
		req, err := dispatch.BuildDelete(p.ref, ev.Scope, c.snap.WeekStart)
		if err != nil {
			c.failLocally(control, err)
			return
		}
		c.send(ctx, requestDelete, control, req)
	}
}

func (c *Controller) quickTask(ctx context.Context, ev QuickTaskRequested) {
	if c.inflight[ControlQuickTask] {
		return
	}
	if strings.TrimSpace(ev.Title) == "" {
		c.host.Notify(Notice{Kind: NoticeInvalid, Control: ControlQuickTask, Message: MsgTitleMissing})
		return
	}
	ranges := collision.ColumnRanges(c.snap.Column(ev.Day), nil)
	if collision.HasCollision(ranges, ev.StartMinute, ev.StartMinute+c.opts.QuickTaskMinutes) {
		appLog.Debug("quick task collides locally", "day", ev.Day, "start", ev.StartMinute)
		c.host.Notify(Notice{Kind: NoticeConflict, Control: ControlQuickTask, Message: MsgConflict})
		return
	}
	req, err := dispatch.BuildQuickTask(ev.Title, ev.Day, ev.StartMinute, c.snap.WeekStart)
	if err != nil {
		c.failLocally(ControlQuickTask, err)
		return
	}
	c.send(ctx, requestQuickTask, ControlQuickTask, req)
}

func (c *Controller) blockCreate(ctx context.Context, ev BlockCreateRequested) {
	if c.inflight[ControlBlockCreate] {
		return
	}
	if strings.TrimSpace(ev.Name) == "" {
		c.host.Notify(Notice{Kind: NoticeInvalid, Control: ControlBlockCreate, Message: MsgNameMissing})
		return
	}
	req, err := dispatch.BuildBlockCreate(ev.Name, ev.Color, ev.Icon)
	if err != nil {
		c.failLocally(ControlBlockCreate, err)
		return
	}
	c.send(ctx, requestBlockCreate, ControlBlockCreate, req)
}

func (c *Controller) blockDelete(ctx context.Context, ev BlockDeleteRequested) {
	control := BlockDeleteControl(ev.ID)
	if c.inflight[control] {
		return
	}
	req, err := dispatch.BuildBlockDelete(ev.ID)
	if err != nil {
		c.failLocally(control, err)
		return
	}
	c.send(ctx, requestBlockDelete, control, req)
}

func (c *Controller) noteSave(ctx context.Context, ev NoteSaveRequested) {
	if ev.Ref == nil {
		return
	}
	control := NoteControl(ev.Ref)
	if c.inflight[control] {
		return
	}
	req, err := dispatch.BuildNoteSave(ev.Ref, ev.Note)
	if err != nil {
		c.failLocally(control, err)
		return
	}
	c.send(ctx, requestNote, control, req)
}

// navigate fetches the week Offset weeks away. While a mutation is in
// flight the target is queued and fetched once every mutation has settled,
// so a late mutation response cannot land on top of the new week.
func (c *Controller) navigate(ctx context.Context, ev NavigateWeek) {
	week := c.queued
	if week.IsZero() {
		week = c.currentWeek()
	}
	week = week.AddDate(0, 0, 7*ev.Offset)
	if c.mutating() {
		appLog.Debug("navigation queued behind pending change", "week", week.Format(model.DateLayout))
		c.queued = week
		return
	}
	c.fetch(ctx, week)
}

func (c *Controller) refresh(ctx context.Context) {
	if c.session != nil {
		appLog.Debug("refresh skipped during gesture", "mode", c.session.mode.String())
		return
	}
	if c.mutating() {
		appLog.Debug("refresh skipped while a change is pending")
		return
	}
	c.fetch(ctx, c.currentWeek())
}

func (c *Controller) currentWeek() time.Time {
	if c.snap.WeekStart.IsZero() {
		return model.WeekStart(c.now().In(c.opts.Location))
	}
	return c.snap.WeekStart
}

// mutating reports whether any request other than a schedule fetch is in
// flight.
func (c *Controller) mutating() bool {
	for control := range c.inflight {
		if control != ControlSchedule {
			return true
		}
	}
	return false
}

// drainQueued runs a queued navigation or reload once nothing blocks it.
func (c *Controller) drainQueued(ctx context.Context) {
	if c.mutating() || c.inflight[ControlSchedule] {
		return
	}
	week := c.queued
	switch {
	case !week.IsZero():
	case c.resync:
		week = c.currentWeek()
	default:
		return
	}
	c.queued = time.Time{}
	c.resync = false
	c.fetch(ctx, week)
}

func (c *Controller) fetch(ctx context.Context, week time.Time) {
	if c.inflight[ControlSchedule] {
		return
	}
	c.send(ctx, requestFetch, ControlSchedule, dispatch.FetchSchedule(week))
}

// send runs req off the event loop and posts its outcome back. The control
// stays disabled until then.
func (c *Controller) send(ctx context.Context, kind requestKind, control string, req dispatch.Request) {
	c.inflight[control] = true
	c.host.SetControlEnabled(control, false)
	appLog.Info("dispatching request", "request", req.String(), "control", control)

	done := requestDone{kind: kind, control: control, req: req, gen: c.gen}
	if kind == requestCommit {
		done.session = c.session
	}
	timeout := c.opts.RequestTimeout
	c.spawn(func() {
		rctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		done.snap, done.err = c.sender.Send(rctx, req)
		c.Post(done)
	})
}

func (c *Controller) requestDone(ctx context.Context, ev requestDone) {
	delete(c.inflight, ev.control)
	if ev.kind == requestCommit && ev.session != nil && c.session == ev.session {
		// The gesture ends with its request, whatever the outcome.
		c.session = nil
	}
	defer c.drainQueued(ctx)

	if ev.err != nil {
		c.host.SetControlEnabled(ev.control, true)
		c.requestFailed(ev)
		return
	}

	switch {
	case ev.kind.palette():
		appLog.Info("palette updated", "request", ev.req.String(), "blocks", len(ev.snap.Blocks))
		c.snap.Blocks = ev.snap.Blocks
		c.gen++
		c.host.Replace(c.snap)
		if ev.kind == requestBlockDelete {
			// Entries placed from the block are gone as well.
			c.resync = true
		}
	case c.stale(ev):
		appLog.Debug("dropping stale response", "request", ev.req.String(), "week", ev.snap.Week(), "current", c.snap.Week())
	default:
		appLog.Info("request completed", "request", ev.req.String(), "entries", len(ev.snap.Entries))
		c.replace(ev.snap)
	}
	c.host.SetControlEnabled(ev.control, true)
}

// stale reports whether a snapshot installed after ev was sent supersedes
// ev's response. A fetch for the visible week is stale once anything newer
// landed; a mutation is stale once the visible week has changed.
func (c *Controller) stale(ev requestDone) bool {
	if ev.gen == c.gen {
		return false
	}
	same := ev.snap.Week() == c.snap.Week()
	if ev.kind == requestFetch {
		return same
	}
	return !same
}

func (c *Controller) requestFailed(ev requestDone) {
	switch {
	case errors.Is(ev.err, dispatch.ErrConflict):
		appLog.Warn("request rejected with conflict", "request", ev.req.String())
		c.host.Notify(Notice{Kind: NoticeConflict, Control: ev.control, Message: MsgConflict})
	case ev.kind == requestFetch:
		appLog.Error("schedule fetch failed", ev.err, "request", ev.req.String())
		c.host.Notify(Notice{Kind: NoticeError, Control: ev.control, Message: MsgLoadFailed})
	default:
		appLog.Error("request failed", ev.err, "request", ev.req.String())
		c.host.Notify(Notice{Kind: NoticeError, Control: ev.control, Message: MsgSaveFailed})
	}
}

// replace installs a fresh snapshot. Any session or prompt tied to the old
// one is dropped.
func (c *Controller) replace(snap model.Snapshot) {
	if s := c.session; s != nil {
		if s.state == stateActive {
			c.host.EndDrag()
		}
		c.session = nil
	}
	c.pending = nil
	c.snap = snap
	c.gen++
	c.host.Replace(snap)
}

func (c *Controller) failLocally(control string, err error) {
	appLog.Error("could not build request", err, "control", control)
	c.host.Notify(Notice{Kind: NoticeError, Control: control, Message: MsgSaveFailed})
}

// Snapshot returns the current snapshot. It must only be called from the
// Run goroutine or before Run starts.
func (c *Controller) Snapshot() model.Snapshot { return c.snap }
