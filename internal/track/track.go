package track

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	appLog "github.com/dalbodeule/octofree/internal/log"
)

// Milestone is one of the notification points tracked per session.
type Milestone string

const (
	MilestoneUpcoming Milestone = "upcoming"
	MilestoneStart    Milestone = "start"
	MilestoneEnd      Milestone = "end"
)

// record holds the one-way flags for a single descriptor. Flags are
// monotonic: once set, they are never cleared for that descriptor.
type record struct {
	Seen             bool `json:"seen"`
	NotifiedUpcoming bool `json:"notified_upcoming"`
	NotifiedStart    bool `json:"notified_start"`
	NotifiedEnd      bool `json:"notified_end"`
}

// state is the full persisted tracker contents.
type state struct {
	Sessions map[string]record `json:"sessions"`
}

// Tracker remembers, across process restarts, which session descriptors
// have been seen and which notification milestones already fired for them.
//
// Every mutating call writes the full state to disk before returning.
// This trades write amplification for crash-safety: a crash between two
// mutations loses at most the in-flight mutation and never corrupts
// prior state. The Tracker is the sole writer of its state file.
type Tracker struct {
	path  string
	state state
}

// NewTracker loads (or initializes) tracker state at the given path.
// A missing or corrupt state file degrades to empty state with a log
// line; the tracker never blocks startup on a damaged file.
func NewTracker(path string) *Tracker {
	t := &Tracker{
		path:  path,
		state: state{Sessions: map[string]record{}},
	}
	t.load()
	return t
}

// IsNew reports whether the descriptor has never been seen before.
func (t *Tracker) IsNew(descriptor string) bool {
	_, ok := t.state.Sessions[descriptor]
	return !ok
}

// MarkSeen records the descriptor as seen and persists the state.
func (t *Tracker) MarkSeen(descriptor string) error {
	rec := t.state.Sessions[descriptor]
	rec.Seen = true
	t.state.Sessions[descriptor] = rec
	return t.save()
}

// ShouldNotify reports whether the given milestone has not yet fired for
// the descriptor.
func (t *Tracker) ShouldNotify(descriptor string, m Milestone) bool {
	rec := t.state.Sessions[descriptor]
	switch m {
	case MilestoneUpcoming:
		return !rec.NotifiedUpcoming
	case MilestoneStart:
		return !rec.NotifiedStart
	case MilestoneEnd:
		return !rec.NotifiedEnd
	default:
		return false
	}
}

// MarkNotified records the milestone as fired for the descriptor and
// persists the state. The flag is one-way; there is no way to clear it.
func (t *Tracker) MarkNotified(descriptor string, m Milestone) error {
	rec := t.state.Sessions[descriptor]
	switch m {
	case MilestoneUpcoming:
		rec.NotifiedUpcoming = true
	case MilestoneStart:
		rec.NotifiedStart = true
	case MilestoneEnd:
		rec.NotifiedEnd = true
	default:
		return errors.New("track: unknown milestone")
	}
	t.state.Sessions[descriptor] = rec
	return t.save()
}

// load reads the persisted state. Failures degrade to empty state.
func (t *Tracker) load() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			appLog.Error("tracker state unreadable, starting empty", err, "path", t.path)
		}
		return
	}

	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		appLog.Error("tracker state corrupt, starting empty", err, "path", t.path)
		return
	}
	if s.Sessions == nil {
		s.Sessions = map[string]record{}
	}

	t.state = s
	appLog.Debug("tracker state loaded", "path", t.path, "sessions", len(s.Sessions))
}

// save writes the full state atomically (temp file + rename). On failure
// the in-memory change is kept; the next mutating call will attempt the
// full-state write again.
func (t *Tracker) save() error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		appLog.Error("tracker state save failed", err, "path", t.path)
		return err
	}

	data, err := json.MarshalIndent(&t.state, "", "  ")
	if err != nil {
		appLog.Error("tracker state save failed", err, "path", t.path)
		return err
	}

	tmp, err := os.CreateTemp(dir, ".octofree-state-*.tmp")
	if err != nil {
		appLog.Error("tracker state save failed", err, "path", t.path)
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		appLog.Error("tracker state save failed", err, "path", t.path)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		appLog.Error("tracker state save failed", err, "path", t.path)
		return err
	}
	if err := tmp.Close(); err != nil {
		appLog.Error("tracker state save failed", err, "path", t.path)
		return err
	}

	if err := os.Rename(tmpName, t.path); err != nil {
		appLog.Error("tracker state save failed", err, "path", t.path)
		return err
	}

	appLog.Debug("tracker state saved", "path", t.path, "sessions", len(t.state.Sessions))
	return nil
}
