package transport

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRTCPPacketTypeRange(t *testing.T) {
	for pt := 0; pt < 256; pt++ {
		b := []byte{0x80, byte(pt), 0x00, 0x00}
		want := pt >= 200 && pt <= 211
		assert.Equal(t, want, IsRTCP(b), "pt=%d", pt)
	}
}

func TestIsRTPVersionBits(t *testing.T) {
	assert.True(t, IsRTP([]byte{0x80, 0x00, 0x00, 0x00}))
	assert.False(t, IsRTP([]byte{0x00, 0x00}))
	// RTCP takes precedence even when version bits match.
	assert.False(t, IsRTP([]byte{0x80, 200, 0x00, 0x00}))
}

func TestClassifyAudioAndVideoDefault(t *testing.T) {
	r := NewRouter(DefaultPayloadTypeTable())

	audio := []byte{0x80, 0x00, 0x00, 0x01}
	st, err := r.Classify(audio)
	require.NoError(t, err)
	assert.Equal(t, StreamAudio, st)

	video := []byte{0x80, 0x60, 0x00, 0x01} // PT=96
	st, err = r.Classify(video)
	require.NoError(t, err)
	assert.Equal(t, StreamVideo, st)
}

func TestClassifyRTCPAlwaysRoutesToFeedback(t *testing.T) {
	r := NewRouter(DefaultPayloadTypeTable())
	pkt := &rtcp.ReceiverReport{SSRC: 1}
	raw, err := pkt.Marshal()
	require.NoError(t, err)

	st, err := r.Classify(raw)
	require.NoError(t, err)
	assert.Equal(t, StreamRTCPFeedback, st)
}

func TestClassifyRealRTPPacket(t *testing.T) {
	r := NewRouter(DefaultPayloadTypeTable())
	p := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    0,
			SequenceNumber: 1,
			Timestamp:      1000,
			SSRC:           42,
		},
		Payload: []byte{1, 2, 3},
	}
	raw, err := p.Marshal()
	require.NoError(t, err)

	st, err := r.Classify(raw)
	require.NoError(t, err)
	assert.Equal(t, StreamAudio, st)
}

func TestClassifyFailsOnMalformedPayload(t *testing.T) {
	r := NewRouter(DefaultPayloadTypeTable())
	_, err := r.Classify([]byte{0x00})
	assert.ErrorIs(t, err, ErrClassificationFailed)
}
