package track

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const descriptor = "12-2pm, Saturday 4th October"

func TestTrackerIsNewBeforeAndAfterMarkSeen(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "state.json"))

	assert.True(t, tr.IsNew(descriptor))
	require.NoError(t, tr.MarkSeen(descriptor))
	assert.False(t, tr.IsNew(descriptor))
}

func TestTrackerSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	tr := NewTracker(path)
	require.NoError(t, tr.MarkSeen(descriptor))
	require.NoError(t, tr.MarkNotified(descriptor, MilestoneUpcoming))

	// Simulated process restart: a fresh tracker over the same file.
	tr2 := NewTracker(path)
	assert.False(t, tr2.IsNew(descriptor))
	assert.False(t, tr2.ShouldNotify(descriptor, MilestoneUpcoming))
	assert.True(t, tr2.ShouldNotify(descriptor, MilestoneStart))
	assert.True(t, tr2.ShouldNotify(descriptor, MilestoneEnd))
}

func TestTrackerMilestonesAreMonotonic(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "state.json"))

	for _, m := range []Milestone{MilestoneUpcoming, MilestoneStart, MilestoneEnd} {
		assert.True(t, tr.ShouldNotify(descriptor, m), "milestone %s should fire once", m)
		require.NoError(t, tr.MarkNotified(descriptor, m))

		// Never true again, no matter how often it is queried.
		for i := 0; i < 5; i++ {
			assert.False(t, tr.ShouldNotify(descriptor, m))
		}
	}
}

func TestTrackerMilestonesAreIndependent(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "state.json"))

	require.NoError(t, tr.MarkNotified(descriptor, MilestoneStart))

	assert.True(t, tr.ShouldNotify(descriptor, MilestoneUpcoming))
	assert.False(t, tr.ShouldNotify(descriptor, MilestoneStart))
	assert.True(t, tr.ShouldNotify(descriptor, MilestoneEnd))
}

func TestTrackerCorruptStateDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	tr := NewTracker(path)
	assert.True(t, tr.IsNew(descriptor))

	// The tracker must still be able to persist over the damaged file.
	require.NoError(t, tr.MarkSeen(descriptor))
	tr2 := NewTracker(path)
	assert.False(t, tr2.IsNew(descriptor))
}

func TestTrackerMissingStateStartsEmpty(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "missing", "state.json"))
	assert.True(t, tr.IsNew(descriptor))
}

func TestTrackerUnknownMilestone(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "state.json"))

	assert.False(t, tr.ShouldNotify(descriptor, Milestone("bogus")))
	assert.Error(t, tr.MarkNotified(descriptor, Milestone("bogus")))
}
