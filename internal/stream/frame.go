package stream

// Kind tags which payload a Frame carries, mirroring the three variants
// of original_source's FrameData enum (Video/Audio/MetaData).
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindMetadata
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// Frame is one unit of media flowing from a publisher session through
// the hub to every subscriber transmitter: a tagged union over
// video/audio/metadata, re-expressed as a Go struct with a Kind field
// since Go lacks sum types. Data is the frame's payload exactly as it
// arrived off the wire (FLV tag body for RTMP, i.e. no RTMP chunk
// framing and no FLV tag header).
type Frame struct {
	Kind      Kind
	Timestamp uint32
	Data      []byte
}

// Video builds a video Frame.
func Video(timestamp uint32, data []byte) Frame {
	return Frame{Kind: KindVideo, Timestamp: timestamp, Data: data}
}

// Audio builds an audio Frame.
func Audio(timestamp uint32, data []byte) Frame {
	return Frame{Kind: KindAudio, Timestamp: timestamp, Data: data}
}

// Metadata builds a metadata (onMetaData) Frame.
func Metadata(timestamp uint32, data []byte) Frame {
	return Frame{Kind: KindMetadata, Timestamp: timestamp, Data: data}
}

// IsVideoSequenceHeader reports whether data looks like an AVC/HEVC
// sequence header (AVCDecoderConfigurationRecord), identified the same
// way the teacher's gopCache logic in rtmp_session.go classifies the
// first video tag of a GOP: FrameType nibble 1 (key frame) and
// AVCPacketType byte 0 (sequence header).
func IsVideoSequenceHeader(data []byte) bool {
	return len(data) >= 2 && data[0]>>4 == 1 && data[1] == 0
}

// IsAudioSequenceHeader reports whether data looks like an AAC sequence
// header (AACPacketType byte 0), mirroring the video check above for the
// audio codec-config case the cache also special-cases.
func IsAudioSequenceHeader(data []byte) bool {
	return len(data) >= 2 && data[0]>>4 == 10 && data[1] == 0
}

// IsKeyFrame reports whether a video Frame's payload starts a new GOP
// (FrameType nibble 1), the same classification the teacher's
// HandleVideoPacket uses to decide when to reset the GOP cache.
func IsKeyFrame(data []byte) bool {
	return len(data) >= 1 && data[0]>>4 == 1
}
