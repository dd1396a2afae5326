package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	c := Default()
	assert.Equal(t, 8, c.MaxConcurrentCalls)
	assert.Equal(t, 100, c.SignalingRateLimitPerPeerPerSecond)
	assert.Equal(t, 256, c.PerStreamQueueBounds.Audio)
	assert.Equal(t, 256, c.PerStreamQueueBounds.RTCPFeedback)
	assert.Equal(t, 128, c.PerStreamQueueBounds.Video)
	assert.Equal(t, 64, c.PerStreamQueueBounds.Screen)
	assert.Equal(t, 32, c.PerStreamQueueBounds.Data)
	assert.NotEmpty(t, c.RTPPayloadTypeTable.Audio)
}
