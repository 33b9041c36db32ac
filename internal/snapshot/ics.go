package snapshot

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "weekplan/internal/log"
	"weekplan/internal/model"
)

// Calendar-level and event-level extension properties carried by
// text/calendar snapshots.
const (
	PropGrid        = "X-WEEKPLAN-GRID"
	PropWeek        = "X-WEEKPLAN-WEEK"
	PropDayOrder    = "X-WEEKPLAN-DAY-ORDER"
	PropEntryID     = "X-WEEKPLAN-ENTRY-ID"
	PropRecurringID = "X-WEEKPLAN-RECURRING-ID"
	propRecurrence  = "RECURRENCE-ID"
	propColor       = "COLOR"
)

// DecodeICS reads a text/calendar snapshot. A recurring instance is either
// its own VEVENT with a RECURRENCE-ID naming the instance date, or produced
// by expanding a master VEVENT that carries an RRULE over the snapshot week.
// Events are placed by their DTSTART wall clock.
func DecodeICS(body []byte) (model.Snapshot, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("parse schedule calendar: %w", err)
	}

	var snap model.Snapshot
	haveGrid := false
	for _, p := range cal.CalendarProperties {
		switch strings.ToUpper(p.IANAToken) {
		case PropGrid:
			g, err := parseGridValue(p.Value)
			if err != nil {
				return model.Snapshot{}, err
			}
			g.DayOrder = snap.Grid.DayOrder
			snap.Grid = g
			haveGrid = true
		case PropDayOrder:
			var order []string
			for _, d := range strings.Split(p.Value, ",") {
				order = append(order, strings.TrimSpace(d))
			}
			snap.Grid.DayOrder = order
		case PropWeek:
			week, err := model.ParseWeek(p.Value)
			if err != nil {
				appLog.Warn("schedule calendar has unreadable week", "week", p.Value)
				continue
			}
			snap.WeekStart = week
		}
	}
	if !haveGrid {
		return model.Snapshot{}, fmt.Errorf("%w: missing %s", ErrNoSchedule, PropGrid)
	}

	var series []*ical.VEvent
	for _, ve := range cal.Events() {
		if isSeries(ve) {
			series = append(series, ve)
			continue
		}
		e, err := entryFromEvent(ve)
		if err != nil {
			// Log and skip this event, but keep reading the others.
			appLog.Warn("skipping calendar event", "err", err.Error())
			continue
		}
		snap.Entries = append(snap.Entries, e)
	}
	if len(series) > 0 {
		snap.Entries = expandAll(snap, series)
	}

	return finish(snap)
}

// parseGridValue reads "start,end,slot,height" where start and end are
// minutes or HH:MM.
func parseGridValue(v string) (model.GridMeta, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return model.GridMeta{}, fmt.Errorf("%w: %s wants 4 fields, got %q", ErrNoSchedule, PropGrid, v)
	}
	var g model.GridMeta
	var err error
	if g.DayStart, err = minuteValue(parts[0]); err != nil {
		return g, err
	}
	if g.DayEnd, err = minuteValue(parts[1]); err != nil {
		return g, err
	}
	if g.SlotMinutes, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
		return g, fmt.Errorf("%w: slot minutes: %v", ErrNoSchedule, err)
	}
	if g.SlotHeight, err = strconv.ParseFloat(strings.TrimSpace(parts[3]), 64); err != nil {
		return g, fmt.Errorf("%w: slot height: %v", ErrNoSchedule, err)
	}
	return g, nil
}

func minuteValue(s string) (int, error) {
	s = strings.TrimSpace(s)
	if h, m, ok := strings.Cut(s, ":"); ok {
		hour, herr := strconv.Atoi(h)
		minute, merr := strconv.Atoi(m)
		if herr != nil || merr != nil {
			return 0, fmt.Errorf("%w: bad clock %q", ErrNoSchedule, s)
		}
		return hour*60 + minute, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad minute %q", ErrNoSchedule, s)
	}
	return n, nil
}

func entryFromEvent(ve *ical.VEvent) (model.Entry, error) {
	var e model.Entry

	if p := ve.GetProperty(ical.ComponentProperty(PropRecurringID)); p != nil && p.Value != "" {
		rid := ve.GetProperty(ical.ComponentProperty(propRecurrence))
		if rid == nil || rid.Value == "" {
			return e, fmt.Errorf("recurring event %s without %s", p.Value, propRecurrence)
		}
		date, err := instanceDate(rid.Value)
		if err != nil {
			return e, err
		}
		e.Ref = model.InstanceRef{TaskID: p.Value, Date: date}
	} else if p := ve.GetProperty(ical.ComponentProperty(PropEntryID)); p != nil && p.Value != "" {
		e.Ref = model.PlainRef{ID: p.Value}
	} else {
		return e, fmt.Errorf("event without %s or %s", PropEntryID, PropRecurringID)
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return e, fmt.Errorf("%s: DTSTART: %w", e.Ref, err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return e, fmt.Errorf("%s: DTEND: %w", e.Ref, err)
	}
	if !end.After(start) {
		return e, fmt.Errorf("%s: DTEND not after DTSTART", e.Ref)
	}

	e.Day = start.Weekday().String()
	e.StartMinute = start.Hour()*60 + start.Minute()
	e.EndMinute = e.StartMinute + int(end.Sub(start)/time.Minute)
	decorate(ve, &e)
	return e, nil
}

func decorate(ve *ical.VEvent, e *model.Entry) {
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		e.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentProperty(propColor)); p != nil {
		e.Color = p.Value
	}
}

// instanceDate reduces a RECURRENCE-ID value (date or date-time) to its date.
func instanceDate(v string) (string, error) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return "", fmt.Errorf("bad %s %q", propRecurrence, v)
	}
	t, err := time.Parse("20060102", v[:8])
	if err != nil {
		return "", fmt.Errorf("bad %s %q: %w", propRecurrence, v, err)
	}
	return t.Format(model.DateLayout), nil
}
