package notify

import (
	"context"
	"fmt"
	"time"

	appLog "github.com/dalbodeule/octofree/internal/log"
	"github.com/dalbodeule/octofree/internal/model"
)

// WindowTolerance bounds how far from a milestone instant the milestone
// may still fire. The notify-check cycle runs every few minutes and does
// not land exactly on the milestone, so the tolerance absorbs scheduler
// jitter; the tracker's one-way flags still cap each milestone at one
// notification even when a window spans several checks.
const WindowTolerance = 5 * time.Minute

const (
	startTimeLayout = "Monday, 02 January 2006 at 03:04 PM"
	clockLayout     = "03:04 PM"
)

// Sender delivers one formatted notification to a single backend.
// Delivery is fire-and-forget: failures are logged by the Notifier,
// never retried and never fatal.
type Sender interface {
	Name() string
	Send(ctx context.Context, title, body string) error
}

// Options carries the per-milestone notification settings.
type Options struct {
	Enabled       bool
	UpcomingHours int
	NotifyStart   bool
	NotifyEnd     bool
}

// Notifier formats milestone messages and fans them out to all configured
// senders. It also owns the milestone windowing predicates that decide
// whether "now" is close enough to a milestone instant to fire.
type Notifier struct {
	opts    Options
	senders []Sender

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewNotifier creates a Notifier over the given senders.
func NewNotifier(opts Options, senders ...Sender) *Notifier {
	if opts.UpcomingHours <= 0 {
		opts.UpcomingHours = 1
	}
	return &Notifier{
		opts:    opts,
		senders: senders,
		now:     time.Now,
	}
}

// Enabled reports whether notifications are globally enabled.
func (n *Notifier) Enabled() bool {
	return n.opts.Enabled
}

// UpcomingHours returns the configured lead time of the upcoming milestone.
func (n *Notifier) UpcomingHours() int {
	return n.opts.UpcomingHours
}

// ShouldNotifyUpcoming reports whether "now" is within the window of the
// session's upcoming milestone (start minus the configured lead hours).
// The window opens at the target, never before: a reminder sent early
// would promise more lead time than was configured.
func (n *Notifier) ShouldNotifyUpcoming(s model.Session) bool {
	if !n.opts.Enabled {
		return false
	}
	target := s.Start.Add(-time.Duration(n.opts.UpcomingHours) * time.Hour)
	return n.windowOpen(target)
}

// ShouldNotifyStart reports whether "now" is within tolerance of the
// session's start instant, on either side.
func (n *Notifier) ShouldNotifyStart(s model.Session) bool {
	if !n.opts.Enabled || !n.opts.NotifyStart {
		return false
	}
	return n.withinTolerance(s.Start)
}

// ShouldNotifyEnd reports whether "now" is within tolerance of the
// session's end instant. The window is two-sided so the "ending" message
// goes out shortly before the end, while the session is still live.
func (n *Notifier) ShouldNotifyEnd(s model.Session) bool {
	if !n.opts.Enabled || !n.opts.NotifyEnd {
		return false
	}
	return n.withinTolerance(s.End)
}

// windowOpen is one-sided: true from target until target+WindowTolerance.
func (n *Notifier) windowOpen(target time.Time) bool {
	diff := n.now().Sub(target)
	return diff >= 0 && diff < WindowTolerance
}

// withinTolerance is two-sided: true within WindowTolerance of target in
// either direction.
func (n *Notifier) withinTolerance(target time.Time) bool {
	diff := n.now().Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff < WindowTolerance
}

// NotifyNewSession announces a freshly published session.
func (n *Notifier) NotifyNewSession(ctx context.Context, s model.Session) {
	title := "New Free Electricity Session Scheduled"
	body := fmt.Sprintf(
		"Session: %s\nStart: %s\nEnd: %s\nDuration: %s",
		s.Descriptor,
		s.Start.Format(startTimeLayout),
		s.End.Format(clockLayout),
		s.Duration(),
	)
	n.send(ctx, title, body)
}

// NotifyUpcoming announces a session starting in the configured lead time.
func (n *Notifier) NotifyUpcoming(ctx context.Context, s model.Session) {
	hours := n.opts.UpcomingHours
	unit := "hours"
	if hours == 1 {
		unit = "hour"
	}
	title := fmt.Sprintf("Free Electricity in %d %s", hours, unit)
	body := fmt.Sprintf(
		"Session: %s\nStarts: %s\nEnds: %s\nGet ready to use electricity!",
		s.Descriptor,
		s.Start.Format(startTimeLayout),
		s.End.Format(clockLayout),
	)
	n.send(ctx, title, body)
}

// NotifyStarting announces a session starting now.
func (n *Notifier) NotifyStarting(ctx context.Context, s model.Session) {
	title := "Free Electricity Starting NOW!"
	body := fmt.Sprintf(
		"Session: %s\nEnds: %s\nDuration: %s\nStart using electricity now!",
		s.Descriptor,
		s.End.Format(clockLayout),
		s.Duration(),
	)
	n.send(ctx, title, body)
}

// NotifyEnding announces a session ending now.
func (n *Notifier) NotifyEnding(ctx context.Context, s model.Session) {
	title := "Free Electricity Ending NOW"
	body := fmt.Sprintf(
		"Session: %s\nThe free electricity period is ending.\nReduce your electricity usage.",
		s.Descriptor,
	)
	n.send(ctx, title, body)
}

// send fans the message out to every sender. A failing sender does not
// block the others.
func (n *Notifier) send(ctx context.Context, title, body string) {
	if !n.opts.Enabled {
		appLog.Debug("notifications disabled, skipping", "title", title)
		return
	}
	if len(n.senders) == 0 {
		appLog.Warn("no notification backends configured", "title", title)
		return
	}

	for _, s := range n.senders {
		if err := s.Send(ctx, title, body); err != nil {
			appLog.Error("notification send failed", err, "backend", s.Name(), "title", title)
			continue
		}
		appLog.Info("notification sent", "backend", s.Name(), "title", title)
	}
}
