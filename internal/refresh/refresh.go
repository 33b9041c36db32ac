// Package refresh fires periodic schedule reloads on a cron schedule and fans
// them out to every open host surface.
package refresh

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "weekplan/internal/log"
)

// Refresher runs one cron entry and notifies subscribers each time it fires.
type Refresher struct {
	parser cron.Parser

	mu      sync.Mutex
	spec    string
	loc     *time.Location
	c       *cron.Cron
	running int
	nextID  int
	subs    map[int]func()
}

// New creates a stopped Refresher.
func New() *Refresher {
	return &Refresher{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		loc:    time.Local,
		subs:   make(map[int]func()),
	}
}

// Validate reports whether spec is a usable schedule. Empty means disabled.
func (r *Refresher) Validate(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	if _, err := r.parser.Parse(spec); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return nil
}

// Subscribe registers fn to run on every tick and returns a function that
// removes it. fn runs on the cron goroutine and must not block.
func (r *Refresher) Subscribe(fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// Subscribers returns the number of registered subscribers.
func (r *Refresher) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Start begins firing on spec in loc. An empty spec leaves the Refresher
// idle. Calling Start again replaces the running schedule.
func (r *Refresher) Start(spec string, loc *time.Location) error {
	if err := r.Validate(spec); err != nil {
		return err
	}
	if loc == nil {
		loc = time.Local
	}
	spec = strings.TrimSpace(spec)

	var next *cron.Cron
	if spec != "" {
		next = cron.New(cron.WithParser(r.parser), cron.WithLocation(loc))
		if _, err := next.AddFunc(spec, r.Tick); err != nil {
			return fmt.Errorf("refresh schedule %q: %w", spec, err)
		}
	}

	r.mu.Lock()
	prev := r.swapLocked(next)
	r.spec = spec
	r.loc = loc
	r.mu.Unlock()

	stop(prev)
	if next == nil {
		appLog.Info("schedule refresh disabled")
		return nil
	}
	appLog.Info("schedule refresh started", "spec", spec, "tz", loc.String())
	return nil
}

// Apply restarts the schedule if spec differs from the running one.
func (r *Refresher) Apply(spec string) error {
	r.mu.Lock()
	same := strings.TrimSpace(spec) == r.spec
	loc := r.loc
	r.mu.Unlock()
	if same {
		return nil
	}
	return r.Start(spec, loc)
}

// Stop halts the schedule and waits for a running tick to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	prev := r.swapLocked(nil)
	r.mu.Unlock()
	stop(prev)
}

// Running returns the number of started cron instances not yet stopped.
func (r *Refresher) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// swapLocked installs next as the live cron and returns the one it
// replaced. The caller stops the returned cron after releasing r.mu, since
// a tick in progress needs r.mu to finish.
func (r *Refresher) swapLocked(next *cron.Cron) *cron.Cron {
	prev := r.c
	r.c = next
	if next != nil {
		next.Start()
		r.running++
	}
	if prev != nil {
		r.running--
	}
	return prev
}

func stop(c *cron.Cron) {
	if c != nil {
		<-c.Stop().Done()
	}
}

// Tick notifies every subscriber once.
func (r *Refresher) Tick() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	appLog.Debug("schedule refresh tick", "subscribers", len(fns))
	for _, fn := range fns {
		fn()
	}
}
