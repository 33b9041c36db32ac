package refresh

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscribeAndTick(t *testing.T) {
	t.Parallel()

	r := New()
	var a, b atomic.Int32
	unsubA := r.Subscribe(func() { a.Add(1) })
	r.Subscribe(func() { b.Add(1) })

	r.Tick()
	unsubA()
	r.Tick()

	if a.Load() != 1 || b.Load() != 2 {
		t.Fatalf("a = %d, b = %d; want 1 and 2", a.Load(), b.Load())
	}
	if r.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", r.Subscribers())
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	r := New()
	for _, spec := range []string{"", "*/5 * * * *", "@hourly", "0 9 * * MON-FRI"} {
		if err := r.Validate(spec); err != nil {
			t.Fatalf("Validate(%q): %v", spec, err)
		}
	}
	for _, spec := range []string{"* * *", "61 * * * *", "*/5 * * * * *"} {
		if err := r.Validate(spec); err == nil {
			t.Fatalf("Validate(%q) should fail", spec)
		}
	}
}

func TestStartStopAndApply(t *testing.T) {
	t.Parallel()

	r := New()
	if err := r.Start("", time.UTC); err != nil {
		t.Fatalf("Start disabled: %v", err)
	}
	if err := r.Start("*/5 * * * *", time.UTC); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Apply("*/5 * * * *"); err != nil {
		t.Fatalf("Apply same: %v", err)
	}
	if err := r.Apply("@hourly"); err != nil {
		t.Fatalf("Apply new: %v", err)
	}
	if err := r.Apply("nonsense"); err == nil {
		t.Fatal("Apply should reject a bad schedule")
	}
	if n := r.Running(); n != 1 {
		t.Fatalf("running = %d after Apply, want 1", n)
	}
	r.Stop()
	r.Stop()
	if n := r.Running(); n != 0 {
		t.Fatalf("running = %d after Stop, want 0", n)
	}
}

func TestConcurrentApplyKeepsOneSchedule(t *testing.T) {
	t.Parallel()

	r := New()
	if err := r.Start("@hourly", time.UTC); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(r.Stop)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(minute int) {
			defer wg.Done()
			if err := r.Apply(fmt.Sprintf("%d * * * *", minute)); err != nil {
				t.Errorf("Apply: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if n := r.Running(); n != 1 {
		t.Fatalf("running = %d after concurrent Apply, want 1", n)
	}
	r.Stop()
	if n := r.Running(); n != 0 {
		t.Fatalf("running = %d after Stop, want 0", n)
	}
}
