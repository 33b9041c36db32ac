package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"weekplan/internal/dispatch"
	"weekplan/internal/model"
)

const fragment = `<div id="schedule" data-day-start="480" data-day-end="1080" data-slot-minutes="30" data-slot-height="40" data-week-start="2025-01-06">
<div class="day-col" data-day="Monday"><div class="entry" data-entry-id="7" data-start-minute="540" data-end-minute="600"></div></div>
</div>`

func TestSendCreate(t *testing.T) {
	t.Parallel()

	var got *http.Request
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		got = r
		form = map[string]string{
			"day":              r.PostForm.Get("day"),
			"start_time":       r.PostForm.Get("start_time"),
			"duration_minutes": r.PostForm.Get("duration_minutes"),
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(fragment))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req, err := dispatch.BuildCommit(dispatch.Commit{
		Mode:        model.ModeCreate,
		BlockTypeID: "3",
		Placement:   model.Placement{Day: "Monday", StartMinute: 600, Duration: 30},
	}, dispatch.ScopeUnset)
	if err != nil {
		t.Fatalf("BuildCommit: %v", err)
	}

	snap, err := c.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Method != http.MethodPost || got.URL.Path != "/entries" {
		t.Fatalf("server saw %s %s", got.Method, got.URL.Path)
	}
	if got.Header.Get("HX-Request") != "true" {
		t.Fatal("HX-Request header missing")
	}
	if form["day"] != "Monday" || form["start_time"] != "10:00" || form["duration_minutes"] != "30" {
		t.Fatalf("form = %v", form)
	}
	if len(snap.Entries) != 1 || snap.Week() != "2025-01-06" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestSendConflict(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"Time slot overlaps an existing entry"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{})
	if err != nil {
		t.Fatal(err)
	}
	req, _ := dispatch.BuildQuickTask("Call", "Monday", 600, time.Time{})
	_, err = c.Send(context.Background(), req)
	if !errors.Is(err, ErrConflict) || !IsConflict(err) {
		t.Fatalf("err = %v, want conflict", err)
	}
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Detail != "Time slot overlaps an existing entry" {
		t.Fatalf("status error = %+v", serr)
	}
}

func TestSendServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Send(context.Background(), dispatch.FetchSchedule(time.Time{}))
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Code != http.StatusInternalServerError || serr.Detail != "boom" {
		t.Fatalf("err = %v", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Fatal("500 must not look like a conflict")
	}
}

func TestSendDeleteEscapesPath(t *testing.T) {
	t.Parallel()

	var path, rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(fragment))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/api", Options{})
	if err != nil {
		t.Fatal(err)
	}
	week := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	req, err := dispatch.BuildDelete(model.PlainRef{ID: "a b"}, dispatch.ScopeUnset, week)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Send(context.Background(), req); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/api/entries/a%20b" || rawQuery != "week_start=2025-01-06" {
		t.Fatalf("server saw %s?%s", path, rawQuery)
	}
}

func TestSendPaletteRequest(t *testing.T) {
	t.Parallel()

	var method, path, name string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		name = r.PostForm.Get("name")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<div id="palette"><div class="palette-card" data-block-id="9" data-name="Read" data-color="#0ea5e9"></div></div>`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{})
	if err != nil {
		t.Fatal(err)
	}
	req, err := dispatch.BuildBlockCreate("Read", "#0ea5e9", "")
	if err != nil {
		t.Fatal(err)
	}
	snap, err := c.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if method != http.MethodPost || path != "/blocks" || name != "Read" {
		t.Fatalf("server saw %s %s name=%q", method, path, name)
	}
	if len(snap.Blocks) != 1 || snap.Blocks[0].ID != "9" || len(snap.Entries) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fragment))
	}))
	defer bad.Close()
	c2, err := New(bad.URL, Options{})
	if err != nil {
		t.Fatal(err)
	}
	del, err := dispatch.BuildBlockDelete("9")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c2.Send(context.Background(), del); err == nil {
		t.Fatal("schedule body accepted as palette")
	}
}

func TestFetchUsesConditionalGet(t *testing.T) {
	t.Parallel()

	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(fragment))
	}))
	defer srv.Close()

	c, err := New(srv.URL, Options{})
	if err != nil {
		t.Fatal(err)
	}
	week := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		snap, err := c.Fetch(context.Background(), week)
		if err != nil {
			t.Fatalf("Fetch #%d: %v", i, err)
		}
		if len(snap.Entries) != 1 {
			t.Fatalf("Fetch #%d entries = %d", i, len(snap.Entries))
		}
	}
	if hits.Load() != 2 || notModified.Load() != 1 {
		t.Fatalf("hits = %d, not modified = %d", hits.Load(), notModified.Load())
	}
}

func TestSendRespectsContext(t *testing.T) {
	t.Parallel()

	c, err := New("http://127.0.0.1:1", Options{RatePerSecond: 0.001, Burst: 1})
	if err != nil {
		t.Fatal(err)
	}
	// Drain the single token so the next Send has to wait.
	c.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Send(ctx, dispatch.FetchSchedule(time.Time{})); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := New("ftp://example.com", Options{}); err == nil {
		t.Fatal("expected scheme error")
	}
}
