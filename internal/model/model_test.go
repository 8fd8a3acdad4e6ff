package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionDuration(t *testing.T) {
	s := Session{
		Descriptor: "12-2pm, Saturday 4th October",
		Start:      time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC),
		End:        time.Date(2025, 10, 4, 14, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, 2*time.Hour, s.Duration())
}

func TestSessionEnded(t *testing.T) {
	s := Session{
		Start: time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 10, 4, 14, 0, 0, 0, time.UTC),
	}

	assert.False(t, s.Ended(time.Date(2025, 10, 4, 13, 59, 0, 0, time.UTC)))
	assert.True(t, s.Ended(s.End))
	assert.True(t, s.Ended(time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC)))
}
