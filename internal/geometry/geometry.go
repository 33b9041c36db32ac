// Package geometry converts between pointer pixels and minutes of day on
// the schedule grid.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"weekplan/internal/model"
)

const (
	// MinBookingMinutes is the shortest range any gesture may produce,
	// independent of the configured slot size.
	MinBookingMinutes = 30

	// MinResizeSlots is the slot floor applied while resizing.
	MinResizeSlots = 2
)

// ErrBadClock is returned by ParseClock for malformed HH:MM values.
var ErrBadClock = errors.New("invalid HH:MM time")

// PixelYToMinute snaps a column-relative y coordinate down to the nearest
// slot boundary. Negative y is treated as 0.
func PixelYToMinute(y float64, g model.GridMeta) int {
	if y < 0 {
		y = 0
	}
	slots := int(math.Floor(y / g.SlotHeight))
	return g.DayStart + slots*g.SlotMinutes
}

// MinuteToPixelOffset returns the column-relative y of minute.
func MinuteToPixelOffset(minute int, g model.GridMeta) float64 {
	return float64(minute-g.DayStart) / float64(g.SlotMinutes) * g.SlotHeight
}

// PixelHeight returns the pixel height of a range of duration minutes.
func PixelHeight(duration int, g model.GridMeta) float64 {
	return float64(duration) / float64(g.SlotMinutes) * g.SlotHeight
}

// ClampRange forces the range to at least MinBookingMinutes and fits it
// inside [DayStart, DayEnd]. The start is pulled back first; the duration is
// only shortened when it is longer than the whole window.
func ClampRange(start, duration int, g model.GridMeta) (int, int) {
	if duration < MinBookingMinutes {
		duration = MinBookingMinutes
	}
	if start > g.DayEnd-duration {
		start = g.DayEnd - duration
	}
	if start < g.DayStart {
		start = g.DayStart
	}
	if start+duration > g.DayEnd {
		duration = g.DayEnd - start
	}
	return start, duration
}

// ResizeDuration derives a duration from how far y is below the fixed top of
// an entry starting at anchor. The distance is rounded to whole slots with a
// floor of MinResizeSlots.
func ResizeDuration(anchor int, y float64, g model.GridMeta) int {
	top := MinuteToPixelOffset(anchor, g)
	height := math.Max(0, y-top)
	// Half-up rounding; height is never negative here.
	slots := int(math.Floor(height/g.SlotHeight + 0.5))
	if slots < MinResizeSlots {
		slots = MinResizeSlots
	}
	return slots * g.SlotMinutes
}

// FormatClock renders a minute of day as zero-padded HH:MM.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseClock parses HH:MM into minutes from midnight.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	return hour*60 + minute, nil
}
