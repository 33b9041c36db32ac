// Package dispatch translates committed placements and deletions into
// requests for the persistence collaborator.
//
// Building a request is pure; sending it is the job of a Sender such as
// internal/client. Recurring-task instances need an explicit Scope before
// any request can be built.
package dispatch

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"weekplan/internal/geometry"
	"weekplan/internal/model"
)

var (
	// ErrScopeRequired is returned when a recurring instance is mutated
	// without choosing between this occurrence and all occurrences.
	ErrScopeRequired = errors.New("recurring entry requires a scope choice")

	// ErrConflict marks a mutation the collaborator rejected because it
	// would overlap an existing entry.
	ErrConflict = errors.New("time slot already occupied")

	// ErrInvalidCommit is returned for commits missing required identity.
	ErrInvalidCommit = errors.New("invalid commit")
)

// Scope selects how a recurring-instance mutation is applied.
type Scope int

const (
	ScopeUnset Scope = iota
	// ScopeInstance writes an exception for the dragged date only.
	ScopeInstance
	// ScopeAll rewrites the base recurring rule.
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeInstance:
		return "instance"
	case ScopeAll:
		return "all"
	default:
		return "unset"
	}
}

// ParseScope maps the wire names "instance" and "all" to a Scope.
func ParseScope(s string) (Scope, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "instance", "this":
		return ScopeInstance, true
	case "all":
		return ScopeAll, true
	}
	return ScopeUnset, false
}

// Exception types accepted by POST /recurring-tasks/{id}/exception.
const (
	ExceptionModified = "modified"
	ExceptionDeleted  = "deleted"
)

// Surface names the fragment a response carries.
type Surface int

const (
	// SurfaceSchedule is the whole schedule: grid, entries and palette.
	SurfaceSchedule Surface = iota
	// SurfacePalette is the block palette alone.
	SurfacePalette
)

// Request is one call to the persistence collaborator.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Form    url.Values
	Surface Surface
}

func (r Request) String() string {
	if len(r.Query) == 0 {
		return r.Method + " " + r.Path
	}
	return r.Method + " " + r.Path + "?" + r.Query.Encode()
}

// Commit is a finalized gesture ready to be turned into a request.
type Commit struct {
	Mode        model.Mode
	BlockTypeID string
	Ref         model.EntryRef
	Placement   model.Placement
	Week        time.Time
}

// NeedsScope reports whether mutating ref requires a Scope choice.
func NeedsScope(ref model.EntryRef) bool {
	return model.IsRecurring(ref)
}

// DayOfWeekIndex maps a day label to its index, Monday=0 through Sunday=6.
func DayOfWeekIndex(day string) (int, error) {
	day = strings.TrimSpace(day)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), day) {
			return (int(wd) + 6) % 7, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown day %q", ErrInvalidCommit, day)
}

// BuildCommit builds the request for a committed create, move or resize.
func BuildCommit(c Commit, scope Scope) (Request, error) {
	p := c.Placement
	if p.Day == "" || p.Duration <= 0 {
		return Request{}, fmt.Errorf("%w: empty placement", ErrInvalidCommit)
	}

	switch c.Mode {
	case model.ModeCreate:
		if c.BlockTypeID == "" {
			return Request{}, fmt.Errorf("%w: create without block type", ErrInvalidCommit)
		}
		form := url.Values{}
		form.Set("day", p.Day)
		form.Set("start_time", geometry.FormatClock(p.StartMinute))
		form.Set("duration_minutes", strconv.Itoa(p.Duration))
		form.Set("block_type_id", c.BlockTypeID)
		form.Set("note", "")
		form.Set("week", formatWeek(c.Week))
		return Request{Method: http.MethodPost, Path: "/entries", Form: form}, nil

	case model.ModeMove, model.ModeResize:
		return buildUpdate(c.Ref, p, c.Week, scope)

	default:
		return Request{}, fmt.Errorf("%w: unknown mode %v", ErrInvalidCommit, c.Mode)
	}
}

func buildUpdate(ref model.EntryRef, p model.Placement, week time.Time, scope Scope) (Request, error) {
	switch ref := ref.(type) {
	case model.PlainRef:
		if ref.ID == "" {
			return Request{}, fmt.Errorf("%w: entry without id", ErrInvalidCommit)
		}
		form := url.Values{}
		form.Set("day", p.Day)
		form.Set("start_minute", strconv.Itoa(p.StartMinute))
		form.Set("duration_minutes", strconv.Itoa(p.Duration))
		setWeek(form, "week", week)
		return Request{
			Method: http.MethodPost,
			Path:   "/entries/" + url.PathEscape(ref.ID) + "/move",
			Form:   form,
		}, nil

	case model.InstanceRef:
		if err := validateInstance(ref); err != nil {
			return Request{}, err
		}
		switch scope {
		case ScopeInstance:
			form := url.Values{}
			form.Set("exception_date", ref.Date)
			form.Set("exception_type", ExceptionModified)
			form.Set("new_day", p.Day)
			form.Set("new_start_minute", strconv.Itoa(p.StartMinute))
			form.Set("new_duration_minutes", strconv.Itoa(p.Duration))
			setWeek(form, "week", week)
			return Request{Method: http.MethodPost, Path: exceptionPath(ref), Form: form}, nil

		case ScopeAll:
			dow, err := DayOfWeekIndex(p.Day)
			if err != nil {
				return Request{}, err
			}
			form := url.Values{}
			form.Set("day_of_week", strconv.Itoa(dow))
			form.Set("start_minute", strconv.Itoa(p.StartMinute))
			form.Set("duration_minutes", strconv.Itoa(p.Duration))
			setWeek(form, "week", week)
			// The dragged instance may already carry an exception; drop it so
			// the instance follows the new base values.
			form.Set("clear_exception_date", ref.Date)
			return Request{
				Method: http.MethodPatch,
				Path:   "/recurring-tasks/" + url.PathEscape(ref.TaskID) + "/move-all",
				Form:   form,
			}, nil

		default:
			return Request{}, ErrScopeRequired
		}

	default:
		return Request{}, fmt.Errorf("%w: unsupported entry ref %T", ErrInvalidCommit, ref)
	}
}

// BuildDelete builds the request deleting ref. Plain entries ignore scope.
func BuildDelete(ref model.EntryRef, scope Scope, week time.Time) (Request, error) {
	switch ref := ref.(type) {
	case model.PlainRef:
		if ref.ID == "" {
			return Request{}, fmt.Errorf("%w: entry without id", ErrInvalidCommit)
		}
		q := url.Values{}
		setWeek(q, "week_start", week)
		return Request{Method: http.MethodDelete, Path: "/entries/" + url.PathEscape(ref.ID), Query: q}, nil

	case model.InstanceRef:
		if err := validateInstance(ref); err != nil {
			return Request{}, err
		}
		switch scope {
		case ScopeInstance:
			form := url.Values{}
			form.Set("exception_date", ref.Date)
			form.Set("exception_type", ExceptionDeleted)
			setWeek(form, "week", week)
			return Request{Method: http.MethodPost, Path: exceptionPath(ref), Form: form}, nil
		case ScopeAll:
			q := url.Values{}
			setWeek(q, "week_start", week)
			return Request{Method: http.MethodDelete, Path: "/recurring-tasks/" + url.PathEscape(ref.TaskID), Query: q}, nil
		default:
			return Request{}, ErrScopeRequired
		}

	default:
		return Request{}, fmt.Errorf("%w: unsupported entry ref %T", ErrInvalidCommit, ref)
	}
}

// BuildQuickTask builds the quick-task create request. Quick tasks carry a
// title instead of a block type and have a server-fixed duration.
func BuildQuickTask(title, day string, startMinute int, week time.Time) (Request, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Request{}, fmt.Errorf("%w: quick task without title", ErrInvalidCommit)
	}
	if day == "" {
		return Request{}, fmt.Errorf("%w: quick task without day", ErrInvalidCommit)
	}
	form := url.Values{}
	form.Set("title", title)
	form.Set("day", day)
	form.Set("start_time", geometry.FormatClock(startMinute))
	setWeek(form, "week", week)
	return Request{Method: http.MethodPost, Path: "/quick-task", Form: form}, nil
}

// BuildNoteSave builds the request storing note on a plain entry. Notes
// on recurring instances are not stored by the collaborator.
func BuildNoteSave(ref model.EntryRef, note string) (Request, error) {
	plain, ok := ref.(model.PlainRef)
	if !ok || plain.ID == "" {
		return Request{}, fmt.Errorf("%w: notes need a plain entry, got %v", ErrInvalidCommit, ref)
	}
	form := url.Values{}
	form.Set("note", strings.TrimSpace(note))
	return Request{
		Method: http.MethodPost,
		Path:   "/entries/" + url.PathEscape(plain.ID) + "/note",
		Form:   form,
	}, nil
}

// BuildBlockCreate builds the request adding a palette block. The response
// carries the palette only.
func BuildBlockCreate(name, color, icon string) (Request, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Request{}, fmt.Errorf("%w: block without name", ErrInvalidCommit)
	}
	form := url.Values{}
	form.Set("name", name)
	form.Set("color", strings.TrimSpace(color))
	form.Set("icon", strings.TrimSpace(icon))
	return Request{Method: http.MethodPost, Path: "/blocks", Form: form, Surface: SurfacePalette}, nil
}

// BuildBlockDelete builds the request removing a palette block together
// with every entry placed from it.
func BuildBlockDelete(id string) (Request, error) {
	if strings.TrimSpace(id) == "" {
		return Request{}, fmt.Errorf("%w: block delete without id", ErrInvalidCommit)
	}
	return Request{Method: http.MethodDelete, Path: "/blocks/" + url.PathEscape(id), Surface: SurfacePalette}, nil
}

// FetchSchedule builds the read-only request for one week's schedule surface.
func FetchSchedule(week time.Time) Request {
	q := url.Values{}
	setWeek(q, "week", week)
	return Request{Method: http.MethodGet, Path: "/schedule", Query: q}
}

func exceptionPath(ref model.InstanceRef) string {
	return "/recurring-tasks/" + url.PathEscape(ref.TaskID) + "/exception"
}

func validateInstance(ref model.InstanceRef) error {
	if ref.TaskID == "" {
		return fmt.Errorf("%w: recurring instance without task id", ErrInvalidCommit)
	}
	if _, err := time.Parse(model.DateLayout, ref.Date); err != nil {
		return fmt.Errorf("%w: instance date %q: %v", ErrInvalidCommit, ref.Date, err)
	}
	return nil
}

func formatWeek(week time.Time) string {
	if week.IsZero() {
		return ""
	}
	return week.Format(model.DateLayout)
}

// setWeek adds the week under key only when it is known.
func setWeek(v url.Values, key string, week time.Time) {
	if s := formatWeek(week); s != "" {
		v.Set(key, s)
	}
}
