package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfiguration(t *testing.T) {
	cfg := Configuration([]ICEServer{
		{URLs: []string{"stun:stun.example.org:3478"}},
		{URLs: []string{"turn:turn.example.org:3478"}, Username: "relay", Credential: "secret"},
	})

	require.Len(t, cfg.ICEServers, 2)
	assert.Empty(t, cfg.ICEServers[0].Username)
	assert.Equal(t, "relay", cfg.ICEServers[1].Username)
	assert.Equal(t, webrtc.ICECredentialTypePassword, cfg.ICEServers[1].CredentialType)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(Configuration(DefaultICEServers())))
	assert.Error(t, Validate(Configuration([]ICEServer{{URLs: []string{"http://not-ice"}}})))
}
