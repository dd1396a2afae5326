package transport

// PayloadTypeTable maps an RTP payload type number to the media kind
// it carries. It is seeded with a standard default and may be replaced
// through config.Config.RTPPayloadTypeTable; a call.Manager uses one
// table for all of its calls, and negotiated capabilities do not
// change it.
type PayloadTypeTable struct {
	Audio map[byte]bool
	Video map[byte]bool
}

// DefaultPayloadTypeTable returns the standard RTP payload-type
// classification used absent a negotiated override: the common static
// audio assignments plus the dynamic 96-127 range split by codec
// convention (video defaults to the dynamic range not claimed by a
// known audio payload type).
func DefaultPayloadTypeTable() PayloadTypeTable {
	audio := map[byte]bool{}
	for _, pt := range []byte{0, 1, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 25, 97} {
		audio[pt] = true
	}
	video := map[byte]bool{}
	for _, pt := range []byte{26, 32, 33, 34, 96, 98, 99, 100, 101, 102, 103, 104, 105} {
		video[pt] = true
	}
	return PayloadTypeTable{Audio: audio, Video: video}
}

// Router classifies opaque media payloads for outbound stream
// selection and for refining inbound classification. It holds no
// transport state; a Router is stateless apart from its PT table.
type Router struct {
	table PayloadTypeTable
}

// NewRouter constructs a Router with the given payload-type table. An
// empty table (zero value) falls back to DefaultPayloadTypeTable.
func NewRouter(table PayloadTypeTable) *Router {
	if table.Audio == nil && table.Video == nil {
		table = DefaultPayloadTypeTable()
	}
	return &Router{table: table}
}

// IsRTCP reports whether b looks like an RTCP packet: its second byte
// (the RTCP packet type) falls in [200, 211]. This test is applied
// before any RTP heuristic.
func IsRTCP(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	return b[1] >= 200 && b[1] <= 211
}

// IsRTP reports whether b looks like an RTP packet: the top two bits
// of the first byte equal binary 10 (RTP version 2), and it is not
// RTCP.
func IsRTP(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	if IsRTCP(b) {
		return false
	}
	return b[0]&0xC0 == 0x80
}

// Classify decides the outbound StreamType for a raw payload. RTCP
// packets always route to StreamRTCPFeedback. RTP packets are routed
// by payload type through the router's table, defaulting to
// StreamVideo when the payload type is unrecognized but the packet is
// otherwise well-formed RTP, per the injectable-table fallback
// described for the Stream Router. Payloads that are neither
// recognizable RTP nor RTCP report ErrClassificationFailed.
func (r *Router) Classify(b []byte) (StreamType, error) {
	if IsRTCP(b) {
		return StreamRTCPFeedback, nil
	}
	if IsRTP(b) {
		pt := b[1] & 0x7F
		if r.table.Audio[pt] {
			return StreamAudio, nil
		}
		return StreamVideo, nil
	}
	return 0, ErrClassificationFailed
}
