// Package snapshot decodes the schedule surface returned by the persistence
// collaborator into an immutable model.Snapshot.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"

	"weekplan/internal/model"
)

// ErrNoSchedule is returned when a payload carries no usable grid metadata.
var ErrNoSchedule = errors.New("payload carries no schedule grid")

// ErrNoPalette is returned when a palette payload has no #palette element.
var ErrNoPalette = errors.New("payload carries no palette")

// Content types understood by Decode.
const (
	ContentTypeHTML     = "text/html"
	ContentTypeCalendar = "text/calendar"
)

// Decode picks a decoder from the payload's content type. Unknown or empty
// content types are treated as HTML.
func Decode(contentType string, body []byte) (model.Snapshot, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return model.Snapshot{}, fmt.Errorf("%w: empty body", ErrNoSchedule)
	}
	mt := ContentTypeHTML
	if contentType != "" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
			mt = strings.ToLower(parsed)
		}
	}
	switch mt {
	case ContentTypeCalendar:
		return DecodeICS(body)
	default:
		return DecodeHTML(bytes.NewReader(body))
	}
}

// finish validates the grid and drops entries that cannot be placed on it.
func finish(s model.Snapshot) (model.Snapshot, error) {
	if len(s.Grid.DayOrder) == 0 {
		s.Grid.DayOrder = append([]string(nil), model.DefaultDayOrder...)
	}
	if err := s.Grid.Validate(); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrNoSchedule, err)
	}
	kept := s.Entries[:0]
	for _, e := range s.Entries {
		if e.StartMinute >= e.EndMinute || !s.Grid.HasDay(e.Day) {
			continue
		}
		kept = append(kept, e)
	}
	s.Entries = kept
	return s, nil
}
