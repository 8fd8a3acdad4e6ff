package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dalbodeule/octofree/internal/model"
)

// Stage identifies which step of descriptor resolution failed. It lets the
// caller log a precise diagnostic instead of a generic parse error.
type Stage string

const (
	// StageShape: the descriptor did not split into exactly one
	// time-range part and one date part on the comma.
	StageShape Stage = "shape"
	// StageTimeRange: the time part did not split into start and end on
	// the dash.
	StageTimeRange Stage = "time-range"
	// StageStartTime / StageEndTime: a time token had no leading digits.
	StageStartTime Stage = "start-time"
	StageEndTime   Stage = "end-time"
	// StageDate: the date phrase did not resolve to a calendar date in
	// either the current or the following year.
	StageDate Stage = "date"
)

// Error is a staged resolution failure for one descriptor.
type Error struct {
	Descriptor string
	Stage      Stage
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse %q: stage %s: %v", e.Descriptor, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// dateLayout matches phrases like "Saturday 4 October 2025" after ordinal
// stripping. The weekday is parsed but never cross-validated against the
// computed date; the publisher's weekday token is informational only.
const dateLayout = "Monday 2 January 2006"

var (
	timeTokenRe = regexp.MustCompile(`^(\d+)(am|pm)?`)
	ordinalRe   = regexp.MustCompile(`(?i)(\d+)(st|nd|rd|th)`)
)

// Resolver converts session descriptors ("12-2pm, Saturday 4th October")
// into absolute start/end instants in a fixed timezone.
//
// The publisher never states a year, so the resolver rolls forward: it
// tries the current year first, then the next year if the date does not
// exist in the current year or the resulting instant is already in the
// past. Sessions are always near-future, so this converges.
type Resolver struct {
	loc *time.Location

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewResolver creates a Resolver resolving into the given location.
// A nil location defaults to UTC.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{
		loc: loc,
		now: time.Now,
	}
}

// Resolve parses one descriptor into a model.Session. Malformed input
// never panics; it returns a *Error naming the failing stage.
func (r *Resolver) Resolve(descriptor string) (model.Session, error) {
	parts := strings.Split(descriptor, ",")
	if len(parts) != 2 {
		return model.Session{}, &Error{
			Descriptor: descriptor,
			Stage:      StageShape,
			Err:        fmt.Errorf("want 2 comma-separated parts, got %d", len(parts)),
		}
	}

	timePart := strings.TrimSpace(parts[0])
	datePart := strings.TrimSpace(parts[1])

	timeTokens := strings.Split(timePart, "-")
	if len(timeTokens) != 2 {
		return model.Session{}, &Error{
			Descriptor: descriptor,
			Stage:      StageTimeRange,
			Err:        fmt.Errorf("want 2 dash-separated time tokens, got %d", len(timeTokens)),
		}
	}

	startHour, err := parseHour(timeTokens[0])
	if err != nil {
		return model.Session{}, &Error{Descriptor: descriptor, Stage: StageStartTime, Err: err}
	}
	endHour, err := parseHour(timeTokens[1])
	if err != nil {
		return model.Session{}, &Error{Descriptor: descriptor, Stage: StageEndTime, Err: err}
	}

	date, err := r.resolveDate(datePart, startHour)
	if err != nil {
		return model.Session{}, &Error{Descriptor: descriptor, Stage: StageDate, Err: err}
	}

	// Both instants share the resolved date. End is not rolled to the
	// next day when end <= start; the source grammar never describes a
	// session crossing midnight, so the naive same-day value is kept
	// as observed.
	start := time.Date(date.Year(), date.Month(), date.Day(), startHour, 0, 0, 0, r.loc)
	end := time.Date(date.Year(), date.Month(), date.Day(), endHour, 0, 0, 0, r.loc)

	return model.Session{
		Descriptor: descriptor,
		Start:      start,
		End:        end,
	}, nil
}

// parseHour extracts the leading digits and optional am/pm suffix of one
// time token and converts to 24-hour form. A bare "12" means noon; any
// other bare hour is morning.
func parseHour(token string) (int, error) {
	token = strings.ToLower(strings.TrimSpace(token))

	m := timeTokenRe.FindStringSubmatch(token)
	if m == nil {
		return 0, fmt.Errorf("no leading digits in time token %q", token)
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, err
	}
	if hour < 1 || hour > 12 {
		return 0, fmt.Errorf("hour %d out of 12-hour range", hour)
	}

	ampm := m[2]
	if ampm == "" {
		if hour == 12 {
			ampm = "pm"
		} else {
			ampm = "am"
		}
	}

	switch {
	case ampm == "pm" && hour != 12:
		hour += 12
	case ampm == "am" && hour == 12:
		hour = 0
	}

	return hour, nil
}

// resolveDate turns a year-less date phrase ("Saturday 4th October") into
// a concrete date. hour participates only in the in-the-past check that
// decides whether the year must roll forward.
func (r *Resolver) resolveDate(datePart string, hour int) (time.Time, error) {
	// Strip ordinal suffixes and collapse whitespace so the phrase
	// matches the fixed layout.
	clean := ordinalRe.ReplaceAllString(datePart, "$1")
	clean = strings.Join(strings.Fields(clean), " ")
	if clean == "" {
		return time.Time{}, errors.New("empty date phrase")
	}

	now := r.now()
	year := now.Year()

	date, err := time.ParseInLocation(dateLayout, clean+" "+strconv.Itoa(year), r.loc)
	if err != nil {
		// The date may only exist next year (e.g. Feb 29).
		date, err = time.ParseInLocation(dateLayout, clean+" "+strconv.Itoa(year+1), r.loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("date phrase %q: %w", datePart, err)
		}
		return date, nil
	}

	// Year-less announcements are always near-future: an instant already
	// behind "now" means the announcement refers to next year.
	candidate := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, r.loc)
	if candidate.Before(now) {
		next, err := time.ParseInLocation(dateLayout, clean+" "+strconv.Itoa(year+1), r.loc)
		if err == nil {
			return next, nil
		}
	}

	return date, nil
}
