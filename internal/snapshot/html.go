package snapshot

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	appLog "weekplan/internal/log"
	"weekplan/internal/model"
)

// DecodeHTML reads a schedule fragment. Grid metadata comes from the element
// with id "schedule" (or, failing that, the first element carrying
// data-day-start); entries come from ".entry" elements and palette blocks
// from ".palette-card" elements anywhere in the document.
func DecodeHTML(r io.Reader) (model.Snapshot, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("parse schedule html: %w", err)
	}

	root := findNode(doc, func(n *html.Node) bool { return attr(n, "id") == "schedule" })
	if root == nil {
		root = findNode(doc, func(n *html.Node) bool { return hasAttr(n, "data-day-start") })
	}
	if root == nil {
		return model.Snapshot{}, fmt.Errorf("%w: no #schedule element", ErrNoSchedule)
	}

	var snap model.Snapshot
	snap.Grid, err = gridFromNode(root)
	if err != nil {
		return model.Snapshot{}, err
	}
	if ws := attr(root, "data-week-start"); ws != "" {
		week, err := model.ParseWeek(ws)
		if err != nil {
			appLog.Warn("schedule fragment has unreadable week start", "week_start", ws)
		} else {
			snap.WeekStart = week
		}
	}

	walk(doc, func(n *html.Node) {
		switch {
		case hasClass(n, "entry"):
			if e, ok := entryFromNode(n); ok {
				snap.Entries = append(snap.Entries, e)
			}
		case hasClass(n, "palette-card"):
			if b, ok := blockFromNode(n); ok {
				snap.Blocks = append(snap.Blocks, b)
			}
		}
	})

	return finish(snap)
}

// DecodePalette reads a palette fragment, the answer to block create and
// delete. The fragment must contain the #palette element; an empty palette
// yields no blocks and no error.
func DecodePalette(r io.Reader) ([]model.BlockType, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse palette html: %w", err)
	}
	root := findNode(doc, func(n *html.Node) bool { return attr(n, "id") == "palette" })
	if root == nil {
		return nil, ErrNoPalette
	}
	blocks := make([]model.BlockType, 0)
	walk(root, func(n *html.Node) {
		if !hasClass(n, "palette-card") {
			return
		}
		if b, ok := blockFromNode(n); ok {
			blocks = append(blocks, b)
		}
	})
	return blocks, nil
}

func blockFromNode(n *html.Node) (model.BlockType, bool) {
	id := attr(n, "data-block-id")
	if id == "" {
		return model.BlockType{}, false
	}
	return model.BlockType{
		ID:    id,
		Name:  attr(n, "data-name"),
		Color: attr(n, "data-color"),
		Icon:  attr(n, "data-icon"),
	}, true
}

func gridFromNode(n *html.Node) (model.GridMeta, error) {
	var g model.GridMeta
	var err error
	if g.DayStart, err = intAttr(n, "data-day-start"); err != nil {
		return g, err
	}
	if g.DayEnd, err = intAttr(n, "data-day-end"); err != nil {
		return g, err
	}
	if g.SlotMinutes, err = intAttr(n, "data-slot-minutes"); err != nil {
		return g, err
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(attr(n, "data-slot-height")), 64)
	if err != nil {
		return g, fmt.Errorf("%w: data-slot-height: %v", ErrNoSchedule, err)
	}
	g.SlotHeight = h
	if order := attr(n, "data-day-order"); order != "" {
		for _, d := range strings.Split(order, ",") {
			g.DayOrder = append(g.DayOrder, strings.TrimSpace(d))
		}
	}
	return g, nil
}

// entryFromNode reads one ".entry". A recurring task id makes it an
// instance, whatever else the element carries.
func entryFromNode(n *html.Node) (model.Entry, bool) {
	var e model.Entry
	if taskID := attr(n, "data-recurring-task-id"); taskID != "" {
		e.Ref = model.InstanceRef{TaskID: taskID, Date: attr(n, "data-instance-date")}
	} else if id := attr(n, "data-entry-id"); id != "" {
		e.Ref = model.PlainRef{ID: id}
	} else {
		appLog.Debug("skipping entry without identity")
		return e, false
	}

	start, err := intAttr(n, "data-start-minute")
	if err != nil {
		appLog.Debug("skipping entry without start", "ref", e.Ref.String())
		return e, false
	}
	end, err := intAttr(n, "data-end-minute")
	if err != nil {
		// Older fragments only carry the duration.
		dur, derr := intAttr(n, "data-duration")
		if derr != nil {
			appLog.Debug("skipping entry without end", "ref", e.Ref.String())
			return e, false
		}
		end = start + dur
	}

	e.StartMinute = start
	e.EndMinute = end
	e.Day = attr(n, "data-day")
	if e.Day == "" {
		// Fall back to the enclosing day column.
		for p := n.Parent; p != nil; p = p.Parent {
			if hasClass(p, "day-col") {
				e.Day = attr(p, "data-day")
				break
			}
		}
	}
	e.Color = attr(n, "data-color")
	e.Title = attr(n, "data-title")
	return e, true
}

func intAttr(n *html.Node, key string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(attr(n, key)))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrNoSchedule, key, err)
	}
	return v, nil
}

func attr(n *html.Node, key string) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}
