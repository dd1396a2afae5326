// Package codec declares the encoder/decoder interfaces a media
// producer or consumer implements to plug into a track.Backend.
// Codec implementations (Opus, H.264, VP8, ...) are explicitly out of
// this module's scope; this package names the boundary only.
package codec

// AudioEncoder turns raw PCM samples into an encoded payload suitable
// for a track.Backend.Send call.
type AudioEncoder interface {
	EncodeAudio(pcm []int16) ([]byte, error)
}

// AudioDecoder turns a payload received from a track.Backend back into
// PCM samples.
type AudioDecoder interface {
	DecodeAudio(payload []byte) ([]int16, error)
}

// VideoEncoder turns a raw video frame into an encoded payload.
type VideoEncoder interface {
	EncodeVideo(frame []byte, width, height int) ([]byte, error)
}

// VideoDecoder turns an encoded payload back into a raw video frame.
type VideoDecoder interface {
	DecodeVideo(payload []byte) (frame []byte, width, height int, err error)
}
