package ical

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ics "github.com/arran4/golang-ical"

	appLog "github.com/dalbodeule/octofree/internal/log"
	"github.com/dalbodeule/octofree/internal/model"
)

const (
	calendarProdID = "-//Octopus Energy Free Electricity//EN"
	calendarName   = "Octopus Free Electricity"
	calendarDesc   = "Free electricity sessions from Octopus Energy"
	eventSummary   = "Octopus Free Electricity"
	eventLocation  = "UK"
	uidDomain      = "octopus.energy"
)

// Generator serializes resolved sessions into a single iCalendar file.
// The file is rewritten in full on every invocation; an empty session
// list still produces a valid, empty calendar so consumers never see a
// stale file.
type Generator struct {
	timezone      string
	alarmsEnabled bool

	// alarmTimes is the list of minute offsets before event start at
	// which a DISPLAY alarm fires. 0 means "at start".
	alarmTimes []int
}

// NewGenerator creates a Generator. timezone is the display name written
// into the calendar headers, not a resolution zone; sessions arrive with
// their instants already resolved.
func NewGenerator(timezone string, alarmsEnabled bool, alarmTimes []int) *Generator {
	if timezone == "" {
		timezone = "GMT"
	}
	return &Generator{
		timezone:      timezone,
		alarmsEnabled: alarmsEnabled,
		alarmTimes:    alarmTimes,
	}
}

// Generate writes the calendar for the given sessions to path,
// overwriting any prior contents.
func (g *Generator) Generate(sessions []model.Session, path string) error {
	if path == "" {
		return errors.New("ical: output path is empty")
	}

	cal := ics.NewCalendar()
	cal.SetProductId(calendarProdID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(calendarName)
	cal.SetXWRTimezone(g.timezone)
	cal.SetXWRCalDesc(calendarDesc)

	for _, s := range sessions {
		g.addEvent(cal, s)
	}

	if err := writeFileAtomic(path, []byte(cal.Serialize())); err != nil {
		appLog.Error("ical write failed", err, "path", path)
		return err
	}

	appLog.Info("ical file written", "path", path, "event_count", len(sessions))
	return nil
}

// addEvent appends one VEVENT for the session.
//
// The UID is derived from the start instant alone so repeated exports of
// the same session always produce the same identity and calendar clients
// update in place instead of duplicating.
func (g *Generator) addEvent(cal *ics.Calendar, s model.Session) {
	uid := fmt.Sprintf("%s@%s", s.Start.Format("200601021504"), uidDomain)

	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(time.Now())
	ev.SetStartAt(s.Start)
	ev.SetEndAt(s.End)
	ev.SetSummary(eventSummary)
	ev.SetLocation(eventLocation)
	ev.SetStatus(ics.ObjectStatusConfirmed)
	ev.SetTimeTransparency(ics.TransparencyTransparent)
	ev.SetProperty(ics.ComponentPropertyCategories, "Free Electricity,Octopus Energy")

	description := fmt.Sprintf(
		"Free electricity session: %s\nDuration: %s\nMake sure to use electricity during this period!",
		s.Descriptor, s.Duration(),
	)
	ev.SetDescription(description)

	if !g.alarmsEnabled {
		return
	}
	for _, minutes := range g.alarmTimes {
		alarm := ev.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetProperty(ics.ComponentPropertyDescription, alarmDescription(minutes))
		alarm.SetTrigger(alarmTrigger(minutes))
	}
}

// alarmDescription words the alarm text by how far ahead it fires.
func alarmDescription(minutes int) string {
	switch {
	case minutes == 0:
		return "Free electricity session starting NOW!"
	case minutes < 60:
		return fmt.Sprintf("Free electricity session in %d minutes!", minutes)
	default:
		hours := minutes / 60
		if hours == 1 {
			return "Free electricity session in 1 hour!"
		}
		return fmt.Sprintf("Free electricity session in %d hours!", hours)
	}
}

// alarmTrigger renders the VALARM TRIGGER duration. Negative means
// before the event; 0 fires at the start instant.
func alarmTrigger(minutes int) string {
	if minutes == 0 {
		return "PT0S"
	}
	return fmt.Sprintf("-PT%dM", minutes)
}

// writeFileAtomic writes data via a temp file + rename so readers never
// observe a partially-written calendar.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".octofree-ical-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
