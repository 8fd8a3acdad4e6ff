package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookURL(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/123456789/abc-def_ghi")
	require.NoError(t, err)
	assert.Equal(t, "123456789", id)
	assert.Equal(t, "abc-def_ghi", token)
}

func TestParseWebhookURLInvalid(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "no path", url: "https://discord.com"},
		{name: "missing token", url: "https://discord.com/api/webhooks/123456789/"},
		{name: "not a url", url: "://bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseWebhookURL(tt.url)
			assert.Error(t, err)
		})
	}
}

func TestNewDiscordSenderRejectsBadURL(t *testing.T) {
	_, err := NewDiscordSender("https://discord.com")
	assert.Error(t, err)
}
