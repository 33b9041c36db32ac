package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "weekplan/internal/log"
	"weekplan/internal/model"
)

// isSeries reports whether ve is a recurring master: it names a recurring
// task and carries an RRULE, but no RECURRENCE-ID.
func isSeries(ve *ical.VEvent) bool {
	if p := ve.GetProperty(ical.ComponentProperty(PropRecurringID)); p == nil || p.Value == "" {
		return false
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p == nil || p.Value == "" {
		return false
	}
	return ve.GetProperty(ical.ComponentProperty(propRecurrence)) == nil
}

// expandAll appends the week's occurrences of every series to the entries
// already in snap. An explicit instance VEVENT for the same task and date
// overrides the generated one. Expansion stops at the decoder: callers only
// ever see concrete entries with InstanceRefs.
func expandAll(snap model.Snapshot, series []*ical.VEvent) []model.Entry {
	entries := snap.Entries
	if snap.WeekStart.IsZero() {
		appLog.Warn("schedule calendar has recurring events but no week; skipping them", "series", len(series))
		return entries
	}

	overridden := make(map[string]bool)
	for _, e := range entries {
		if inst, ok := e.Ref.(model.InstanceRef); ok {
			overridden[inst.String()] = true
		}
	}

	for _, ve := range series {
		occ, err := expandSeries(ve, snap.WeekStart, overridden)
		if err != nil {
			appLog.Warn("skipping recurring event", "err", err.Error())
			continue
		}
		entries = append(entries, occ...)
	}
	return entries
}

// expandSeries returns one instance entry per occurrence of ve inside
// [week, week+7d). EXDATEs and refs in skip are left out.
func expandSeries(ve *ical.VEvent, week time.Time, skip map[string]bool) ([]model.Entry, error) {
	taskID := ve.GetProperty(ical.ComponentProperty(PropRecurringID)).Value
	rule := ve.GetProperty(ical.ComponentPropertyRrule).Value

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("recurring %s: DTSTART: %w", taskID, err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return nil, fmt.Errorf("recurring %s: DTEND: %w", taskID, err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("recurring %s: DTEND not after DTSTART", taskID)
	}

	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("recurring %s: RRULE %q: %w", taskID, rule, err)
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			ex, err := parseExDate(part, start)
			if err != nil {
				appLog.Debug("ignoring EXDATE", "task", taskID, "value", part, "err", err.Error())
				continue
			}
			set.ExDate(ex)
		}
	}

	loc := start.Location()
	from := time.Date(week.Year(), week.Month(), week.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 7)
	minutes := int(end.Sub(start) / time.Minute)

	var out []model.Entry
	for _, occ := range set.Between(from, to, true) {
		if !occ.Before(to) {
			continue
		}
		ref := model.InstanceRef{TaskID: taskID, Date: occ.Format(model.DateLayout)}
		if skip[ref.String()] {
			continue
		}
		e := model.Entry{
			Ref:         ref,
			Day:         occ.Weekday().String(),
			StartMinute: occ.Hour()*60 + occ.Minute(),
		}
		e.EndMinute = e.StartMinute + minutes
		decorate(ve, &e)
		out = append(out, e)
	}
	return out, nil
}

// parseExDate reads one EXDATE value. A bare date excludes the occurrence
// at the series' start time on that day.
func parseExDate(v string, start time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty EXDATE")
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse("20060102T150405Z", v)
		return t.In(start.Location()), err
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, start.Location())
	default:
		d, err := time.ParseInLocation("20060102", v, start.Location())
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(d.Year(), d.Month(), d.Day(), start.Hour(), start.Minute(), start.Second(), 0, start.Location()), nil
	}
}
