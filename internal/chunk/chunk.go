// Package chunk implements the RTMP chunk stream: header compression
// across a csid, extended timestamps, and message reassembly (spec.md
// §4.3), grounded on the teacher's rtmp_packet.go (chunk encoding) and
// the ReadChunk method of rtmp_session.go (chunk decoding), generalized
// from a per-connection map embedded directly in the session struct into
// a standalone, independently testable Unpacker/Packer pair.
package chunk

import (
	"encoding/binary"
	"io"

	"github.com/kaelstream/rtmp-hub/internal/rtmperrors"
)

// Chunk basic-header format, spec.md §3.
const (
	Fmt0 uint8 = 0
	Fmt1 uint8 = 1
	Fmt2 uint8 = 2
	Fmt3 uint8 = 3
)

// ExtTSKind records whether a chunk header carries an extended timestamp
// field and, for fmt-3 continuations, whether the predecessor's header
// used one — spec.md §3's chunk-header invariant.
type ExtTSKind int

const (
	ExtTSNone ExtTSKind = iota
	ExtTSInType0
	ExtTSInType12
)

const extendedTimestampMarker = 0xFFFFFF

// Message is a fully reassembled RTMP message (the spec's "ChunkInfo").
type Message struct {
	CSID      uint32
	Fmt       uint8
	TypeID    uint8
	StreamID  uint32
	Timestamp uint32 // absolute, source-relative milliseconds
	Payload   []byte
}

// csidState is the per-CSID decoder state of spec.md §3: the last seen
// header fields plus a partial payload buffer and remaining-bytes
// counter. It lives for the lifetime of the connection and is created
// lazily on first use, mirroring the teacher's inPackets map but keyed
// purely by csid with no RTMPPacket/session coupling.
type csidState struct {
	timestamp      uint32 // absolute timestamp of the in-progress (or last complete) message
	delta          uint32
	length         uint32
	typeID         uint8
	streamID       uint32
	extTSKind      ExtTSKind
	payload        []byte
	remaining      uint32
	haveFirstChunk bool
}

// Unpacker reassembles chunks from a connection into Messages. It is a
// resumable parser: ReadMessage may be called repeatedly on the same
// connection and per-csid state survives across calls and across
// message boundaries, per spec.md §4.3.
type Unpacker struct {
	states    map[uint32]*csidState
	chunkSize uint32
}

// NewUnpacker creates an Unpacker with the default chunk size (128 bytes
// until a SetChunkSize message says otherwise).
func NewUnpacker() *Unpacker {
	return &Unpacker{states: make(map[uint32]*csidState), chunkSize: 128}
}

// ChunkSize returns the unpacker's current chunk size.
func (u *Unpacker) ChunkSize() uint32 { return u.chunkSize }

// byteReader is the minimal interface ReadMessage needs: a single-byte
// reader plus io.Reader, satisfied by bufio.Reader and bytesio.Conn.
type byteReader interface {
	io.Reader
	ReadByte() (byte, error)
}

// ReadMessage reads chunks from r until one full message is assembled,
// applying any SetChunkSize control message immediately as it completes
// (spec.md §4.3's "applied immediately on receipt").
func (u *Unpacker) ReadMessage(r byteReader) (*Message, error) {
	for {
		csid, fmtID, err := readBasicHeader(r)
		if err != nil {
			return nil, err
		}

		st := u.states[csid]
		if st == nil {
			st = &csidState{}
			u.states[csid] = st
		}

		if err := readMessageHeader(r, fmtID, st); err != nil {
			return nil, err
		}

		needsExtended := false
		switch fmtID {
		case Fmt0:
			needsExtended = st.timestamp == extendedTimestampMarker
		case Fmt1, Fmt2:
			needsExtended = st.delta == extendedTimestampMarker
		case Fmt3:
			needsExtended = st.extTSKind == ExtTSInType0 || st.extTSKind == ExtTSInType12
		}

		var extTS uint32
		if needsExtended {
			b, err := readN(r, 4)
			if err != nil {
				return nil, err
			}
			extTS = binary.BigEndian.Uint32(b)
		}

		if st.remaining == 0 && len(st.payload) == 0 {
			// Starting a new message on this csid.
			switch fmtID {
			case Fmt0:
				if needsExtended {
					st.timestamp = extTS
					st.extTSKind = ExtTSInType0
				} else {
					st.extTSKind = ExtTSNone
				}
				st.delta = 0
			case Fmt1, Fmt2:
				effectiveDelta := st.delta
				if needsExtended {
					effectiveDelta = extTS
					st.extTSKind = ExtTSInType12
				} else {
					st.extTSKind = ExtTSNone
				}
				st.timestamp += effectiveDelta
				st.delta = effectiveDelta
			case Fmt3:
				// Continuation of a message whose predecessor required
				// extended timestamps must itself carry one (checked
				// above); otherwise the timestamp advances by the
				// inherited delta.
				if st.extTSKind == ExtTSInType0 && needsExtended {
					st.timestamp = extTS
				} else {
					if needsExtended {
						st.delta = extTS
					}
					st.timestamp += st.delta
				}
			}
			st.remaining = st.length
			st.payload = make([]byte, 0, st.length)
		}

		toRead := u.chunkSize
		if toRead > st.remaining {
			toRead = st.remaining
		}
		if toRead > 0 {
			buf, err := readN(r, int(toRead))
			if err != nil {
				return nil, err
			}
			st.payload = append(st.payload, buf...)
			st.remaining -= toRead
		}

		if st.remaining == 0 {
			msg := &Message{
				CSID:      csid,
				Fmt:       fmtID,
				TypeID:    st.typeID,
				StreamID:  st.streamID,
				Timestamp: st.timestamp,
				Payload:   st.payload,
			}
			st.payload = nil

			if msg.TypeID == 1 && len(msg.Payload) >= 4 {
				newSize := binary.BigEndian.Uint32(msg.Payload[:4])
				if newSize&0x80000000 != 0 {
					return nil, rtmperrors.New(rtmperrors.KindProtocol, "chunk.ReadMessage: SetChunkSize high bit set")
				}
				if newSize > 0 {
					u.chunkSize = newSize
				}
			}

			return msg, nil
		}
		// Message not yet complete: loop back to read the next chunk,
		// which may belong to this csid or another interleaved one.
	}
}

func readN(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, rtmperrors.Wrap(rtmperrors.KindIO, "chunk.readN", err)
	}
	return buf, nil
}

// readBasicHeader reads the 1-3 byte basic header (spec.md §4.3 step 1).
func readBasicHeader(r byteReader) (csid uint32, fmtID uint8, err error) {
	b0, err := r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return 0, 0, io.EOF
		}
		return 0, 0, rtmperrors.Wrap(rtmperrors.KindIO, "chunk.readBasicHeader", err)
	}
	fmtID = b0 >> 6
	low6 := b0 & 0x3F
	switch low6 {
	case 0:
		b1, err := readN(r, 1)
		if err != nil {
			return 0, 0, err
		}
		csid = uint32(b1[0]) + 64
	case 1:
		b := readTwoBytesOrErr(r)
		if b == nil {
			return 0, 0, rtmperrors.New(rtmperrors.KindIO, "chunk.readBasicHeader")
		}
		csid = uint32(b[1])*256 + uint32(b[0]) + 64
	default:
		csid = uint32(low6)
	}
	return csid, fmtID, nil
}

func readTwoBytesOrErr(r io.Reader) []byte {
	b, err := readN(r, 2)
	if err != nil {
		return nil
	}
	return b
}

// readMessageHeader reads the fmt-dependent message header (spec.md
// §4.3 step 2), mutating st with inherited or freshly-read fields.
func readMessageHeader(r byteReader, fmtID uint8, st *csidState) error {
	switch fmtID {
	case Fmt0:
		b, err := readN(r, 11)
		if err != nil {
			return err
		}
		st.timestamp = u24(b[0:3])
		st.length = u24(b[3:6])
		st.typeID = b[6]
		st.streamID = binary.LittleEndian.Uint32(b[7:11])
		st.delta = 0
	case Fmt1:
		b, err := readN(r, 7)
		if err != nil {
			return err
		}
		st.delta = u24(b[0:3])
		st.length = u24(b[3:6])
		st.typeID = b[6]
	case Fmt2:
		b, err := readN(r, 3)
		if err != nil {
			return err
		}
		st.delta = u24(b)
	case Fmt3:
		// No bytes; all fields inherited.
	}
	return nil
}

func u24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
