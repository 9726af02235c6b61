// Package message classifies RTMP message type IDs and builds the small
// set of protocol-control and user-control messages every session needs
// to send (spec.md §4.5), grounded on the teacher's rtmp_utils.go type
// constants and the Send* helpers of rtmp_session_utils.go, generalized
// from one-off byte-literal builders into Chunk-engine Messages so they
// flow through the same Packer as audio/video/command traffic.
package message

import (
	"encoding/binary"

	"github.com/kaelstream/rtmp-hub/internal/chunk"
)

// Type IDs, spec.md §3 / the teacher's rtmp_utils.go constants.
const (
	TypeSetChunkSize     uint8 = 1
	TypeAbort            uint8 = 2
	TypeAcknowledgement  uint8 = 3
	TypeUserControl      uint8 = 4
	TypeWindowAckSize    uint8 = 5
	TypeSetPeerBandwidth uint8 = 6
	TypeAudio            uint8 = 8
	TypeVideo            uint8 = 9
	TypeDataAMF3         uint8 = 15
	TypeSharedObjectAMF3 uint8 = 16
	TypeCommandAMF3      uint8 = 17
	TypeDataAMF0         uint8 = 18
	TypeSharedObjectAMF0 uint8 = 19
	TypeCommandAMF0      uint8 = 20
	TypeAggregate        uint8 = 22
)

// Chunk stream IDs (csid) the teacher dedicates to particular traffic
// classes — protocol control messages always ride csid 2, invoke/command
// traffic csid 3, audio csid 4, video csid 5, AMF0 data csid 6.
const (
	CSIDProtocol uint32 = 2
	CSIDInvoke   uint32 = 3
	CSIDAudio    uint32 = 4
	CSIDVideo    uint32 = 5
	CSIDData     uint32 = 6
)

// User control event types (spec.md §4.5), the teacher's STREAM_* constants.
const (
	EventStreamBegin      uint16 = 0x00
	EventStreamEOF        uint16 = 0x01
	EventStreamDry        uint16 = 0x02
	EventStreamIsRecorded uint16 = 0x04
	EventStreamEmpty      uint16 = 0x1f
	EventStreamReady      uint16 = 0x20
)

// IsControl reports whether typeID is a protocol control message
// (SetChunkSize/Abort/Ack/WindowAckSize/SetPeerBandwidth), which every
// session handles itself rather than forwarding to the hub.
func IsControl(typeID uint8) bool {
	switch typeID {
	case TypeSetChunkSize, TypeAbort, TypeAcknowledgement, TypeWindowAckSize, TypeSetPeerBandwidth:
		return true
	default:
		return false
	}
}

// IsMedia reports whether typeID carries audio or video payload data.
func IsMedia(typeID uint8) bool {
	return typeID == TypeAudio || typeID == TypeVideo
}

// IsCommand reports whether typeID carries an AMF-encoded command
// (connect/createStream/publish/play/onStatus/...).
func IsCommand(typeID uint8) bool {
	return typeID == TypeCommandAMF0 || typeID == TypeCommandAMF3
}

// SetChunkSize builds a protocol-control SetChunkSize message.
func SetChunkSize(size uint32) *chunk.Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, size)
	return &chunk.Message{CSID: CSIDProtocol, TypeID: TypeSetChunkSize, StreamID: 0, Payload: payload}
}

// Acknowledgement builds an Acknowledgement message reporting the number
// of bytes received so far.
func Acknowledgement(bytesReceived uint32) *chunk.Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, bytesReceived)
	return &chunk.Message{CSID: CSIDProtocol, TypeID: TypeAcknowledgement, StreamID: 0, Payload: payload}
}

// WindowAckSize builds a WindowAcknowledgementSize message.
func WindowAckSize(size uint32) *chunk.Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, size)
	return &chunk.Message{CSID: CSIDProtocol, TypeID: TypeWindowAckSize, StreamID: 0, Payload: payload}
}

// SetPeerBandwidth builds a SetPeerBandwidth message; limitType is 0
// (hard), 1 (soft), or 2 (dynamic) per the RTMP spec.
func SetPeerBandwidth(size uint32, limitType byte) *chunk.Message {
	payload := make([]byte, 5)
	binary.BigEndian.PutUint32(payload[0:4], size)
	payload[4] = limitType
	return &chunk.Message{CSID: CSIDProtocol, TypeID: TypeSetPeerBandwidth, StreamID: 0, Payload: payload}
}

// StreamBegin builds the UserControl "Stream Begin" event for streamID,
// sent once play/publish is accepted (the teacher's SendStreamStatus
// generalized to any of the five well-known event types).
func StreamBegin(streamID uint32) *chunk.Message {
	return streamEvent(EventStreamBegin, streamID)
}

// StreamEOF builds the UserControl "Stream EOF" event.
func StreamEOF(streamID uint32) *chunk.Message {
	return streamEvent(EventStreamEOF, streamID)
}

// StreamIsRecorded builds the UserControl "StreamIsRecorded" event, part
// of the play-path response sequence (spec.md §4.5).
func StreamIsRecorded(streamID uint32) *chunk.Message {
	return streamEvent(EventStreamIsRecorded, streamID)
}

func streamEvent(event uint16, streamID uint32) *chunk.Message {
	payload := make([]byte, 6)
	binary.BigEndian.PutUint16(payload[0:2], event)
	binary.BigEndian.PutUint32(payload[2:6], streamID)
	return &chunk.Message{CSID: CSIDProtocol, TypeID: TypeUserControl, StreamID: 0, Payload: payload}
}

// PingRequest builds a UserControl PingRequest carrying the session's
// current elapsed timestamp, mirroring the teacher's SendPingRequest.
func PingRequest(elapsedMillis uint32) *chunk.Message {
	payload := make([]byte, 6)
	binary.BigEndian.PutUint16(payload[0:2], 6) // PingRequest event code
	binary.BigEndian.PutUint32(payload[2:6], elapsedMillis)
	return &chunk.Message{CSID: CSIDProtocol, TypeID: TypeUserControl, StreamID: 0, Payload: payload, Timestamp: elapsedMillis}
}

// CommandMessage wraps an already AMF0-encoded command/invoke payload
// into a message on the conventional invoke csid.
func CommandMessage(streamID uint32, payload []byte) *chunk.Message {
	return &chunk.Message{CSID: CSIDInvoke, TypeID: TypeCommandAMF0, StreamID: streamID, Payload: payload}
}

// Data wraps an already AMF0-encoded data (onMetaData/...) payload.
func Data(streamID uint32, payload []byte) *chunk.Message {
	return &chunk.Message{CSID: CSIDData, TypeID: TypeDataAMF0, StreamID: streamID, Payload: payload}
}

// Audio wraps a raw audio payload for forwarding through the hub.
func Audio(streamID uint32, timestamp uint32, payload []byte) *chunk.Message {
	return &chunk.Message{CSID: CSIDAudio, TypeID: TypeAudio, StreamID: streamID, Timestamp: timestamp, Payload: payload}
}

// Video wraps a raw video payload for forwarding through the hub.
func Video(streamID uint32, timestamp uint32, payload []byte) *chunk.Message {
	return &chunk.Message{CSID: CSIDVideo, TypeID: TypeVideo, StreamID: streamID, Timestamp: timestamp, Payload: payload}
}
