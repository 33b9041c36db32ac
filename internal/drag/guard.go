package drag

import "time"

// DefaultClickSuppression swallows the click a browser synthesizes right
// after a pointer-up.
const DefaultClickSuppression = 300 * time.Millisecond

type clickGuard struct {
	until time.Time
}

func (g *clickGuard) arm(now time.Time, window time.Duration) {
	g.until = now.Add(window)
}

// suppressed reports whether now is still inside the armed window and
// disarms the guard once the window has passed.
func (g *clickGuard) suppressed(now time.Time) bool {
	if g.until.IsZero() {
		return false
	}
	if now.After(g.until) {
		g.until = time.Time{}
		return false
	}
	return true
}
