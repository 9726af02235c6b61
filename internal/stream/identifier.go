// Package stream holds the wire-independent identity and frame types
// shared by every protocol front end and the hub (spec.md §3), grounded
// on original_source/library/streamhub/src/stream.rs's StreamIdentifier
// and utils.rs's Uuid, re-expressed as idiomatic Go value types: a
// tagged struct instead of a Rust enum, and a decimal string instead of
// a [char; 16].
package stream

import "fmt"

// Protocol names which front end originated or is requesting a stream.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	ProtocolRTMP
	ProtocolRTSP
	ProtocolWebRTC
)

func (p Protocol) String() string {
	switch p {
	case ProtocolRTMP:
		return "rtmp"
	case ProtocolRTSP:
		return "rtsp"
	case ProtocolWebRTC:
		return "webrtc"
	default:
		return "unknown"
	}
}

// Identifier names a single logical stream. RTMP and WebRTC streams are
// addressed by an (app, name) pair; RTSP streams by a single path. This
// mirrors the Rust StreamIdentifier enum's three variants as one struct
// with a Protocol tag, since Go has no sum types.
type Identifier struct {
	Protocol   Protocol
	AppName    string
	StreamName string
	StreamPath string // RTSP only
}

// RTMP builds an Identifier for an RTMP app/stream pair.
func RTMP(appName, streamName string) Identifier {
	return Identifier{Protocol: ProtocolRTMP, AppName: appName, StreamName: streamName}
}

// WebRTC builds an Identifier for a WebRTC app/stream pair.
func WebRTC(appName, streamName string) Identifier {
	return Identifier{Protocol: ProtocolWebRTC, AppName: appName, StreamName: streamName}
}

// RTSP builds an Identifier for an RTSP stream path.
func RTSP(streamPath string) Identifier {
	return Identifier{Protocol: ProtocolRTSP, StreamPath: streamPath}
}

// String renders the identifier the way the hub's logs and statistics
// API present it, matching the Display impl of the Rust original.
func (id Identifier) String() string {
	switch id.Protocol {
	case ProtocolRTMP:
		return fmt.Sprintf("RTMP - app_name: %s, stream_name: %s", id.AppName, id.StreamName)
	case ProtocolRTSP:
		return fmt.Sprintf("RTSP - stream_name: %s", id.StreamPath)
	case ProtocolWebRTC:
		return fmt.Sprintf("WebRTC - app_name: %s, stream_name: %s", id.AppName, id.StreamName)
	default:
		return "Unknown"
	}
}

// Key returns a value suitable for use as a map key identifying the
// stream regardless of protocol — the hub's registry is keyed on this,
// not on the Identifier struct directly, so that an RTMP publisher and
// an RTSP publisher of the same logical content under different
// protocols are deliberately treated as distinct streams (spec.md §4.7:
// hub publisher uniqueness is scoped per Identifier, not per name).
func (id Identifier) Key() string {
	switch id.Protocol {
	case ProtocolRTMP, ProtocolWebRTC:
		return fmt.Sprintf("%s/%s/%s", id.Protocol, id.AppName, id.StreamName)
	case ProtocolRTSP:
		return fmt.Sprintf("%s/%s", id.Protocol, id.StreamPath)
	default:
		return "unknown"
	}
}
