package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dalbodeule/octofree/internal/ical"
	appLog "github.com/dalbodeule/octofree/internal/log"
	"github.com/dalbodeule/octofree/internal/model"
	"github.com/dalbodeule/octofree/internal/notify"
	"github.com/dalbodeule/octofree/internal/parse"
	"github.com/dalbodeule/octofree/internal/scrape"
	"github.com/dalbodeule/octofree/internal/track"
)

// Source acquires the announcement page and yields extracted descriptors.
// It never fails hard; an unreachable page yields an empty result.
type Source interface {
	Scrape(ctx context.Context) (scrape.Classification, []string)
}

// Params wires a Monitor's collaborators and policies together.
type Params struct {
	Source   Source
	Resolver *parse.Resolver
	Tracker  *track.Tracker
	Calendar *ical.Generator
	Notifier *notify.Notifier

	// ICalPath is where the calendar file is (re)written after each cycle.
	ICalPath string

	// CleanupEnabled / DaysToKeep control how long ended sessions stay
	// in the exported calendar.
	CleanupEnabled bool
	DaysToKeep     int
}

// Monitor is the cycle controller. It owns the in-memory working set of
// resolved sessions and runs two cycles against it:
//
//   - the scrape cycle (slow) acquires descriptors, resolves new ones and
//     announces them;
//   - the notify-check cycle (fast) evaluates milestone windows for every
//     live session.
//
// Both cycles run sequentially on one timeline; a mutex serializes the
// cron entries so a notify check never observes a half-applied scrape.
// Any failure inside a cycle is logged and the next scheduled cycle
// still runs.
type Monitor struct {
	source   Source
	resolver *parse.Resolver
	tracker  *track.Tracker
	calendar *ical.Generator
	notifier *notify.Notifier

	icalPath       string
	cleanupEnabled bool
	daysToKeep     int

	mu       sync.Mutex
	sessions []model.Session

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewMonitor creates a Monitor from its wired collaborators.
func NewMonitor(p Params) *Monitor {
	days := p.DaysToKeep
	if days <= 0 {
		days = 7
	}
	return &Monitor{
		source:         p.Source,
		resolver:       p.Resolver,
		tracker:        p.Tracker,
		calendar:       p.Calendar,
		notifier:       p.Notifier,
		icalPath:       p.ICalPath,
		cleanupEnabled: p.CleanupEnabled,
		daysToKeep:     days,
		now:            time.Now,
	}
}

// Run executes cycles continuously until the context is canceled. An
// immediate scrape runs first so a fresh start does not wait a full
// interval for its first result.
func (m *Monitor) Run(ctx context.Context, scrapeInterval, notifyInterval time.Duration) error {
	appLog.Info("monitor starting",
		"scrape_interval", scrapeInterval,
		"notify_interval", notifyInterval,
	)

	m.RunScrapeCycle(ctx)

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", scrapeInterval), func() {
		m.RunScrapeCycle(ctx)
	}); err != nil {
		return fmt.Errorf("schedule scrape cycle: %w", err)
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", notifyInterval), func() {
		m.RunNotifyCycle(ctx)
	}); err != nil {
		return fmt.Errorf("schedule notify cycle: %w", err)
	}

	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()

	appLog.Info("monitor stopped")
	return nil
}

// RunScrapeCycle acquires the page, resolves new descriptors into the
// working set, announces them, rewrites the calendar and drops ended
// sessions from memory. Failures are logged and never propagate.
func (m *Monitor) RunScrapeCycle(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer recoverCycle("scrape")

	appLog.Info("running scrape cycle")
	m.scrapeSessions(ctx)
	m.updateCalendar()
	m.cleanupEnded()
}

// RunNotifyCycle evaluates milestone windows for every live session and
// rewrites the calendar. Failures are logged and never propagate.
func (m *Monitor) RunNotifyCycle(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer recoverCycle("notify")

	m.checkNotifications(ctx)
	m.updateCalendar()
}

// Sessions returns a snapshot of the current working set.
func (m *Monitor) Sessions() []model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Session, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// scrapeSessions folds one scrape result into the working set. A
// descriptor that fails to resolve is logged and skipped without
// poisoning its siblings.
func (m *Monitor) scrapeSessions(ctx context.Context) {
	class, descriptors := m.source.Scrape(ctx)
	if len(descriptors) == 0 {
		appLog.Info("no sessions found")
		return
	}

	appLog.Info("sessions found", "count", len(descriptors), "classification", string(class))

	for _, d := range descriptors {
		if m.tracker.IsNew(d) {
			s, err := m.resolver.Resolve(d)
			if err != nil {
				appLog.Warn("failed to resolve session", "descriptor", d, "err", err)
				continue
			}
			m.sessions = append(m.sessions, s)
			if err := m.tracker.MarkSeen(d); err != nil {
				appLog.Warn("tracker mark-seen not persisted, will retry on next mutation", "descriptor", d)
			}
			appLog.Info("new session", "descriptor", d, "start", s.Start, "end", s.End)

			// Only a "next" announcement is news; a "last" block
			// describes a session that already happened.
			if class == scrape.ClassNext && m.notifier.Enabled() {
				m.notifier.NotifyNewSession(ctx, s)
			}
			continue
		}

		// Already known: re-resolve statelessly and merge into the
		// working set (e.g. after a restart), without re-announcing.
		if m.hasSession(d) {
			continue
		}
		s, err := m.resolver.Resolve(d)
		if err != nil {
			appLog.Warn("failed to resolve known session", "descriptor", d, "err", err)
			continue
		}
		m.sessions = append(m.sessions, s)
	}
}

// checkNotifications fires at most one notification per milestone per
// session, gated by both the tracker's one-way flags and the notifier's
// time windows.
func (m *Monitor) checkNotifications(ctx context.Context) {
	if !m.notifier.Enabled() {
		return
	}

	now := m.now()
	for _, s := range m.sessions {
		if s.Ended(now) {
			continue
		}

		if m.tracker.ShouldNotify(s.Descriptor, track.MilestoneUpcoming) && m.notifier.ShouldNotifyUpcoming(s) {
			m.notifier.NotifyUpcoming(ctx, s)
			m.markNotified(s.Descriptor, track.MilestoneUpcoming)
		}
		if m.tracker.ShouldNotify(s.Descriptor, track.MilestoneStart) && m.notifier.ShouldNotifyStart(s) {
			m.notifier.NotifyStarting(ctx, s)
			m.markNotified(s.Descriptor, track.MilestoneStart)
		}
		if m.tracker.ShouldNotify(s.Descriptor, track.MilestoneEnd) && m.notifier.ShouldNotifyEnd(s) {
			m.notifier.NotifyEnding(ctx, s)
			m.markNotified(s.Descriptor, track.MilestoneEnd)
		}
	}
}

func (m *Monitor) markNotified(descriptor string, milestone track.Milestone) {
	if err := m.tracker.MarkNotified(descriptor, milestone); err != nil {
		appLog.Warn("tracker flag not persisted, will retry on next mutation",
			"descriptor", descriptor, "milestone", string(milestone))
	}
}

// updateCalendar rewrites the exported calendar from the retained portion
// of the working set. An empty set still produces a valid empty calendar
// so no stale file is left behind.
func (m *Monitor) updateCalendar() {
	now := m.now()

	retained := m.sessions
	if m.cleanupEnabled {
		cutoff := now.AddDate(0, 0, -m.daysToKeep)
		retained = make([]model.Session, 0, len(m.sessions))
		for _, s := range m.sessions {
			if s.End.After(cutoff) {
				retained = append(retained, s)
			}
		}
		if removed := len(m.sessions) - len(retained); removed > 0 {
			appLog.Info("dropped sessions past retention", "count", removed, "days_to_keep", m.daysToKeep)
		}
	}

	upcoming := 0
	for _, s := range retained {
		if !s.Ended(now) {
			upcoming++
		}
	}
	appLog.Debug("updating ical file",
		"total", len(retained), "upcoming", upcoming, "recent_past", len(retained)-upcoming)

	if err := m.calendar.Generate(retained, m.icalPath); err != nil {
		appLog.Error("failed to update ical file", err, "path", m.icalPath)
	}
}

// cleanupEnded drops already-ended sessions from the in-memory working
// set. Tracker records are untouched, so dedup decisions survive.
func (m *Monitor) cleanupEnded() {
	now := m.now()
	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if !s.Ended(now) {
			kept = append(kept, s)
		}
	}
	if removed := len(m.sessions) - len(kept); removed > 0 {
		appLog.Info("removed past sessions from working set", "count", removed)
	}
	m.sessions = kept
}

func (m *Monitor) hasSession(descriptor string) bool {
	for _, s := range m.sessions {
		if s.Descriptor == descriptor {
			return true
		}
	}
	return false
}

// recoverCycle keeps a panicking cycle from taking the process down; the
// next scheduled cycle still runs.
func recoverCycle(name string) {
	if r := recover(); r != nil {
		appLog.Error("cycle panicked", fmt.Errorf("%v", r), "cycle", name)
	}
}
