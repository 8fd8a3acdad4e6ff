package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalbodeule/octofree/internal/model"
)

// fakeSender records every message it is asked to deliver.
type fakeSender struct {
	name string
	sent []string
	err  error
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, title, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, title+"\n"+body)
	return nil
}

func newTestNotifier(opts Options, now time.Time, senders ...Sender) *Notifier {
	n := NewNotifier(opts, senders...)
	n.now = func() time.Time { return now }
	return n
}

func sessionStartingIn(now time.Time, d time.Duration) model.Session {
	return model.Session{
		Descriptor: "12-2pm, Saturday 4th October",
		Start:      now.Add(d),
		End:        now.Add(d + 2*time.Hour),
	}
}

func TestUpcomingWindow(t *testing.T) {
	now := time.Date(2025, 10, 4, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		startsIn time.Duration
		want     bool
	}{
		{name: "inside the window", startsIn: 58 * time.Minute, want: true},
		{name: "window not yet open", startsIn: 61 * time.Minute, want: false},
		{name: "well before the window", startsIn: 70 * time.Minute, want: false},
		{name: "exactly at lead time", startsIn: 60 * time.Minute, want: true},
		{name: "window already closed", startsIn: 54 * time.Minute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNotifier(Options{Enabled: true, UpcomingHours: 1}, now)
			s := sessionStartingIn(now, tt.startsIn)
			assert.Equal(t, tt.want, n.ShouldNotifyUpcoming(s))
		})
	}
}

func TestStartAndEndWindows(t *testing.T) {
	now := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)
	n := newTestNotifier(Options{Enabled: true, UpcomingHours: 1, NotifyStart: true, NotifyEnd: true}, now)

	// Start and end windows are two-sided: a check landing a little
	// before or after the instant still fires.
	assert.True(t, n.ShouldNotifyStart(sessionStartingIn(now, 0)))
	assert.True(t, n.ShouldNotifyStart(sessionStartingIn(now, -4*time.Minute)))
	assert.True(t, n.ShouldNotifyStart(sessionStartingIn(now, 2*time.Minute)))
	assert.False(t, n.ShouldNotifyStart(sessionStartingIn(now, -6*time.Minute)))
	assert.False(t, n.ShouldNotifyStart(sessionStartingIn(now, 6*time.Minute)))

	base := model.Session{Descriptor: "d", Start: now.Add(-2 * time.Hour)}

	endingSoon := base
	endingSoon.End = now.Add(2 * time.Minute)
	assert.True(t, n.ShouldNotifyEnd(endingSoon), "fires shortly before the end, while the session is live")

	justEnded := base
	justEnded.End = now.Add(-time.Minute)
	assert.True(t, n.ShouldNotifyEnd(justEnded))

	notEnding := base
	notEnding.End = now.Add(time.Hour)
	assert.False(t, n.ShouldNotifyEnd(notEnding))

	longOver := base
	longOver.End = now.Add(-time.Hour)
	assert.False(t, n.ShouldNotifyEnd(longOver))
}

func TestWindowsRespectEnableFlags(t *testing.T) {
	now := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)
	inWindow := sessionStartingIn(now, 0)

	disabled := newTestNotifier(Options{Enabled: false, NotifyStart: true, NotifyEnd: true}, now)
	assert.False(t, disabled.ShouldNotifyStart(inWindow))
	assert.False(t, disabled.ShouldNotifyUpcoming(sessionStartingIn(now, 58*time.Minute)))

	noStart := newTestNotifier(Options{Enabled: true, NotifyStart: false, NotifyEnd: true}, now)
	assert.False(t, noStart.ShouldNotifyStart(inWindow))

	noEnd := newTestNotifier(Options{Enabled: true, NotifyStart: true, NotifyEnd: false}, now)
	ended := model.Session{Descriptor: "d", Start: now.Add(-2 * time.Hour), End: now}
	assert.False(t, noEnd.ShouldNotifyEnd(ended))
}

func TestNotifyFanOut(t *testing.T) {
	now := time.Date(2025, 10, 4, 11, 0, 0, 0, time.UTC)
	good := &fakeSender{name: "good"}
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	other := &fakeSender{name: "other"}

	n := newTestNotifier(Options{Enabled: true, UpcomingHours: 1}, now, good, bad, other)
	n.NotifyNewSession(context.Background(), sessionStartingIn(now, time.Hour))

	// A failing backend never blocks the others.
	require.Len(t, good.sent, 1)
	require.Len(t, other.sent, 1)
	assert.Contains(t, good.sent[0], "New Free Electricity Session Scheduled")
	assert.Contains(t, good.sent[0], "12-2pm, Saturday 4th October")
}

func TestNotifyDisabledSendsNothing(t *testing.T) {
	now := time.Date(2025, 10, 4, 11, 0, 0, 0, time.UTC)
	s := &fakeSender{name: "s"}

	n := newTestNotifier(Options{Enabled: false}, now, s)
	n.NotifyNewSession(context.Background(), sessionStartingIn(now, time.Hour))
	n.NotifyStarting(context.Background(), sessionStartingIn(now, 0))

	assert.Empty(t, s.sent)
}

func TestMilestoneMessageContents(t *testing.T) {
	now := time.Date(2025, 10, 4, 11, 0, 0, 0, time.UTC)
	s := &fakeSender{name: "s"}
	n := newTestNotifier(Options{Enabled: true, UpcomingHours: 1, NotifyStart: true, NotifyEnd: true}, now, s)

	session := sessionStartingIn(now, time.Hour)
	n.NotifyUpcoming(context.Background(), session)
	n.NotifyStarting(context.Background(), session)
	n.NotifyEnding(context.Background(), session)

	require.Len(t, s.sent, 3)
	assert.Contains(t, s.sent[0], "Free Electricity in 1 hour")
	assert.Contains(t, s.sent[1], "Starting NOW")
	assert.Contains(t, s.sent[2], "Ending NOW")
	for _, msg := range s.sent[:2] {
		assert.Contains(t, msg, session.Descriptor)
	}
}
