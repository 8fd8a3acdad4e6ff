package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNextSessionsWithLineBreaks(t *testing.T) {
	markup := `<h2>Free electricity</h2>
<p>Next Sessions: 12-2pm, Saturday 4th October<br>3-5pm, Sunday 5th October</p>
<h2>How it works</h2>`

	class, descriptors := Extract(markup)

	assert.Equal(t, ClassNext, class)
	require.Len(t, descriptors, 2)
	assert.Contains(t, descriptors, "12-2pm, Saturday 4th October")
	assert.Contains(t, descriptors, "3-5pm, Sunday 5th October")
}

func TestExtractNextSessionsRunTogether(t *testing.T) {
	// The publisher sometimes concatenates announcements without a line
	// break, joined only by separator words.
	markup := `Next Sessions: 12-2pm, Saturday 4th October Next Power Tower 3-5pm, Sunday 5th October`

	class, descriptors := Extract(markup)

	assert.Equal(t, ClassNext, class)
	require.Len(t, descriptors, 2)
	assert.Contains(t, descriptors, "12-2pm, Saturday 4th October")
	assert.Contains(t, descriptors, "3-5pm, Sunday 5th October")
}

func TestExtractNextBlockBoundedByHeading(t *testing.T) {
	markup := `<p>Next Sessions: 12-2pm, Saturday 4th October</p>
<h3>Old news</h3>
<p>3-5pm, Sunday 5th October</p>`

	class, descriptors := Extract(markup)

	assert.Equal(t, ClassNext, class)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "12-2pm, Saturday 4th October", descriptors[0])
}

func TestExtractLastSession(t *testing.T) {
	markup := `<p>Last Session: <strong>12-2pm, Saturday 4th October</strong></p>`

	class, descriptors := Extract(markup)

	assert.Equal(t, ClassLast, class)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "12-2pm, Saturday 4th October", descriptors[0])
}

func TestExtractLastSessionBoundedByNextAnnouncement(t *testing.T) {
	markup := `Last Session: 12-2pm, Saturday 4th October Next Power Tower event coming soon 3-5pm, Sunday 5th October`

	class, descriptors := Extract(markup)

	assert.Equal(t, ClassLast, class)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "12-2pm, Saturday 4th October", descriptors[0])
}

func TestExtractFallbackSingleLine(t *testing.T) {
	markup := `Next Power Tower Sessions: 12-2pm, Saturday 4th October`

	class, descriptors := Extract(markup)

	assert.Equal(t, ClassNext, class)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "12-2pm, Saturday 4th October", descriptors[0])
}

func TestExtractDeduplicates(t *testing.T) {
	markup := `Next Sessions: 12-2pm, Saturday 4th October<br>12-2pm, Saturday 4th October`

	class, descriptors := Extract(markup)

	assert.Equal(t, ClassNext, class)
	assert.Len(t, descriptors, 1)
}

func TestExtractHeadingWithoutGrammar(t *testing.T) {
	// A heading is present, so the rule claims the input, but no text
	// matches the descriptor grammar. This is a normal empty outcome,
	// not an error.
	class, descriptors := Extract(`<p>Next Sessions: to be announced soon!</p>`)

	assert.Equal(t, ClassNext, class)
	assert.Empty(t, descriptors)
}

func TestExtractNothingRecognizable(t *testing.T) {
	tests := []struct {
		name   string
		markup string
	}{
		{name: "empty input", markup: ""},
		{name: "unrelated page", markup: "<html><body><h1>Tariffs</h1><p>Nothing here.</p></body></html>"},
		{name: "descriptor without heading", markup: "12-2pm, Saturday 4th October"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, descriptors := Extract(tt.markup)
			assert.Equal(t, ClassNone, class)
			assert.Empty(t, descriptors)
		})
	}
}
