package dispatch

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"weekplan/internal/model"
)

var week = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func TestDayOfWeekIndex(t *testing.T) {
	t.Parallel()
	for i, day := range model.DefaultDayOrder {
		got, err := DayOfWeekIndex(day)
		if err != nil {
			t.Fatalf("DayOfWeekIndex(%q) error: %v", day, err)
		}
		if got != i {
			t.Fatalf("DayOfWeekIndex(%q) = %d, want %d", day, got, i)
		}
	}
	if got, err := DayOfWeekIndex(" sunday "); err != nil || got != 6 {
		t.Fatalf("DayOfWeekIndex(sunday) = %d, %v; want 6", got, err)
	}
	if _, err := DayOfWeekIndex("Funday"); err == nil {
		t.Fatal("expected error for unknown day")
	}
}

func TestBuildCreate(t *testing.T) {
	t.Parallel()
	req, err := BuildCommit(Commit{
		Mode:        model.ModeCreate,
		BlockTypeID: "3",
		Placement:   model.Placement{Day: "Tuesday", StartMinute: 555, Duration: 90},
		Week:        week,
	}, ScopeUnset)
	if err != nil {
		t.Fatalf("BuildCommit error: %v", err)
	}
	if req.Method != http.MethodPost || req.Path != "/entries" {
		t.Fatalf("request = %s, want POST /entries", req)
	}
	want := map[string]string{
		"day": "Tuesday", "start_time": "09:15", "duration_minutes": "90",
		"block_type_id": "3", "note": "", "week": "2025-01-06",
	}
	for k, v := range want {
		if got := req.Form.Get(k); got != v {
			t.Fatalf("form[%s] = %q, want %q", k, got, v)
		}
	}
	if _, ok := req.Form["note"]; !ok {
		t.Fatal("note must be sent even when empty")
	}
}

func TestBuildCreateRequiresBlock(t *testing.T) {
	t.Parallel()
	_, err := BuildCommit(Commit{Mode: model.ModeCreate, Placement: model.Placement{Day: "Monday", StartMinute: 600, Duration: 30}}, ScopeUnset)
	if !errors.Is(err, ErrInvalidCommit) {
		t.Fatalf("error = %v, want ErrInvalidCommit", err)
	}
}

func TestBuildMovePlain(t *testing.T) {
	t.Parallel()
	req, err := BuildCommit(Commit{
		Mode:      model.ModeResize,
		Ref:       model.PlainRef{ID: "42"},
		Placement: model.Placement{Day: "Friday", StartMinute: 600, Duration: 60},
		Week:      week,
	}, ScopeUnset)
	if err != nil {
		t.Fatalf("BuildCommit error: %v", err)
	}
	if req.Method != http.MethodPost || req.Path != "/entries/42/move" {
		t.Fatalf("request = %s, want POST /entries/42/move", req)
	}
	if req.Form.Get("start_minute") != "600" || req.Form.Get("duration_minutes") != "60" || req.Form.Get("day") != "Friday" {
		t.Fatalf("unexpected form %v", req.Form)
	}
}

func TestRecurringRequiresScope(t *testing.T) {
	t.Parallel()
	ref := model.InstanceRef{TaskID: "9", Date: "2025-01-07"}
	if !NeedsScope(ref) || NeedsScope(model.PlainRef{ID: "1"}) {
		t.Fatal("NeedsScope should be true only for recurring instances")
	}
	_, err := BuildCommit(Commit{Mode: model.ModeMove, Ref: ref, Placement: model.Placement{Day: "Monday", StartMinute: 600, Duration: 30}}, ScopeUnset)
	if !errors.Is(err, ErrScopeRequired) {
		t.Fatalf("error = %v, want ErrScopeRequired", err)
	}
	if _, err := BuildDelete(ref, ScopeUnset, week); !errors.Is(err, ErrScopeRequired) {
		t.Fatalf("delete error = %v, want ErrScopeRequired", err)
	}
}

func TestBuildRecurringInstance(t *testing.T) {
	t.Parallel()
	ref := model.InstanceRef{TaskID: "9", Date: "2025-01-07"}
	req, err := BuildCommit(Commit{
		Mode:      model.ModeMove,
		Ref:       ref,
		Placement: model.Placement{Day: "Wednesday", StartMinute: 540, Duration: 45},
		Week:      week,
	}, ScopeInstance)
	if err != nil {
		t.Fatalf("BuildCommit error: %v", err)
	}
	if req.Method != http.MethodPost || req.Path != "/recurring-tasks/9/exception" {
		t.Fatalf("request = %s", req)
	}
	want := map[string]string{
		"exception_date": "2025-01-07", "exception_type": "modified", "new_day": "Wednesday",
		"new_start_minute": "540", "new_duration_minutes": "45", "week": "2025-01-06",
	}
	for k, v := range want {
		if got := req.Form.Get(k); got != v {
			t.Fatalf("form[%s] = %q, want %q", k, got, v)
		}
	}
}

// Scenario D: moving a recurring instance to Wednesday 09:00 for all occurrences.
func TestBuildRecurringAll(t *testing.T) {
	t.Parallel()
	ref := model.InstanceRef{TaskID: "9", Date: "2025-01-07"}
	req, err := BuildCommit(Commit{
		Mode:      model.ModeMove,
		Ref:       ref,
		Placement: model.Placement{Day: "Wednesday", StartMinute: 540, Duration: 60},
		Week:      week,
	}, ScopeAll)
	if err != nil {
		t.Fatalf("BuildCommit error: %v", err)
	}
	if req.Method != http.MethodPatch || req.Path != "/recurring-tasks/9/move-all" {
		t.Fatalf("request = %s, want PATCH /recurring-tasks/9/move-all", req)
	}
	if got := req.Form.Get("day_of_week"); got != "2" {
		t.Fatalf("day_of_week = %q, want 2", got)
	}
	if got := req.Form.Get("start_minute"); got != "540" {
		t.Fatalf("start_minute = %q, want 540", got)
	}
	if got := req.Form.Get("clear_exception_date"); got != "2025-01-07" {
		t.Fatalf("clear_exception_date = %q, want 2025-01-07", got)
	}
}

func TestBuildRecurringRejectsBadDate(t *testing.T) {
	t.Parallel()
	ref := model.InstanceRef{TaskID: "9", Date: "07/01/2025"}
	_, err := BuildDelete(ref, ScopeInstance, week)
	if !errors.Is(err, ErrInvalidCommit) {
		t.Fatalf("error = %v, want ErrInvalidCommit", err)
	}
}

func TestBuildDelete(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		ref    model.EntryRef
		scope  Scope
		method string
		path   string
		check  func(t *testing.T, r Request)
	}{
		{
			name: "plain", ref: model.PlainRef{ID: "5"}, scope: ScopeUnset,
			method: http.MethodDelete, path: "/entries/5",
			check: func(t *testing.T, r Request) {
				if r.Query.Get("week_start") != "2025-01-06" {
					t.Fatalf("week_start = %q", r.Query.Get("week_start"))
				}
			},
		},
		{
			name: "instance", ref: model.InstanceRef{TaskID: "9", Date: "2025-01-07"}, scope: ScopeInstance,
			method: http.MethodPost, path: "/recurring-tasks/9/exception",
			check: func(t *testing.T, r Request) {
				if r.Form.Get("exception_type") != "deleted" || r.Form.Get("exception_date") != "2025-01-07" {
					t.Fatalf("unexpected form %v", r.Form)
				}
				if _, ok := r.Form["new_day"]; ok {
					t.Fatal("deleted exception must not carry new placement")
				}
			},
		},
		{
			name: "all", ref: model.InstanceRef{TaskID: "9", Date: "2025-01-07"}, scope: ScopeAll,
			method: http.MethodDelete, path: "/recurring-tasks/9",
			check: func(t *testing.T, r Request) {
				if r.Query.Get("week_start") != "2025-01-06" {
					t.Fatalf("week_start = %q", r.Query.Get("week_start"))
				}
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req, err := BuildDelete(tt.ref, tt.scope, week)
			if err != nil {
				t.Fatalf("BuildDelete error: %v", err)
			}
			if req.Method != tt.method || req.Path != tt.path {
				t.Fatalf("request = %s, want %s %s", req, tt.method, tt.path)
			}
			tt.check(t, req)
		})
	}
}

func TestBuildQuickTaskAndFetch(t *testing.T) {
	t.Parallel()
	req, err := BuildQuickTask("  Call bank ", "Monday", 600, week)
	if err != nil {
		t.Fatalf("BuildQuickTask error: %v", err)
	}
	if req.Path != "/quick-task" || req.Form.Get("title") != "Call bank" || req.Form.Get("start_time") != "10:00" {
		t.Fatalf("unexpected quick task request %s %v", req, req.Form)
	}
	if _, err := BuildQuickTask("   ", "Monday", 600, week); !errors.Is(err, ErrInvalidCommit) {
		t.Fatalf("blank title error = %v, want ErrInvalidCommit", err)
	}

	fetch := FetchSchedule(week)
	if fetch.String() != "GET /schedule?week=2025-01-06" {
		t.Fatalf("FetchSchedule = %s", fetch)
	}
	if FetchSchedule(time.Time{}).String() != "GET /schedule" {
		t.Fatal("zero week must omit the query")
	}
}

func TestBuildNoteSave(t *testing.T) {
	t.Parallel()
	req, err := BuildNoteSave(model.PlainRef{ID: "a b"}, "  bring slides \n")
	if err != nil {
		t.Fatalf("BuildNoteSave error: %v", err)
	}
	if req.Method != http.MethodPost || req.Path != "/entries/a%20b/note" || req.Surface != SurfaceSchedule {
		t.Fatalf("request = %s (surface %d)", req, req.Surface)
	}
	if got := req.Form.Get("note"); got != "bring slides" {
		t.Fatalf("note = %q", got)
	}

	cleared, err := BuildNoteSave(model.PlainRef{ID: "7"}, "   ")
	if err != nil {
		t.Fatalf("clearing a note: %v", err)
	}
	if _, ok := cleared.Form["note"]; !ok || cleared.Form.Get("note") != "" {
		t.Fatalf("clearing a note must send an empty note, got %v", cleared.Form)
	}

	if _, err := BuildNoteSave(model.InstanceRef{TaskID: "r1", Date: "2025-01-07"}, "x"); !errors.Is(err, ErrInvalidCommit) {
		t.Fatalf("recurring note error = %v, want ErrInvalidCommit", err)
	}
	if _, err := BuildNoteSave(nil, "x"); !errors.Is(err, ErrInvalidCommit) {
		t.Fatalf("nil ref error = %v, want ErrInvalidCommit", err)
	}
}

func TestBuildBlockRequests(t *testing.T) {
	t.Parallel()
	create, err := BuildBlockCreate(" Reading ", "#f59e0b", "book")
	if err != nil {
		t.Fatalf("BuildBlockCreate error: %v", err)
	}
	if create.Method != http.MethodPost || create.Path != "/blocks" || create.Surface != SurfacePalette {
		t.Fatalf("create = %s (surface %d)", create, create.Surface)
	}
	if create.Form.Get("name") != "Reading" || create.Form.Get("color") != "#f59e0b" || create.Form.Get("icon") != "book" {
		t.Fatalf("create form = %v", create.Form)
	}
	if _, err := BuildBlockCreate("  ", "#000", ""); !errors.Is(err, ErrInvalidCommit) {
		t.Fatalf("blank name error = %v, want ErrInvalidCommit", err)
	}

	del, err := BuildBlockDelete("12")
	if err != nil {
		t.Fatalf("BuildBlockDelete error: %v", err)
	}
	if del.String() != "DELETE /blocks/12" || del.Surface != SurfacePalette {
		t.Fatalf("delete = %s (surface %d)", del, del.Surface)
	}
	if _, err := BuildBlockDelete(""); !errors.Is(err, ErrInvalidCommit) {
		t.Fatalf("empty id error = %v, want ErrInvalidCommit", err)
	}
}
