package amf0

import (
	"encoding/binary"
	"math"

	"github.com/kaelstream/rtmp-hub/internal/rtmperrors"
)

// AMF3 support is intentionally narrow: RTMP only ever surfaces AMF3
// inside a CommandAmf3/DataAmf3 message (type 17/15) or as an AMF0
// "avmplus object" switch marker (0x11), and xiu/most Go RTMP servers
// (per the teacher's amf3.go) only decode the handful of AMF3 primitives
// that actually appear in that position: null/undefined/boolean/integer
// (U29)/double/string. Full AMF3 (arrays, typed objects, references) is
// out of scope, matching spec.md's framing of AMF3 as a message-type to
// classify and dispatch, not a codec to implement end-to-end.
const (
	amf3Undefined = 0x00
	amf3Null      = 0x01
	amf3False     = 0x02
	amf3True      = 0x03
	amf3Integer   = 0x04
	amf3Double    = 0x05
	amf3String    = 0x06
)

// DecodeAMF3Value decodes a single AMF3 primitive value, wrapping it in
// the ordinary AMF0 Value model (KindNumber/KindBoolean/KindString/
// KindNull/KindUndefined) so callers never need a parallel type switch.
func DecodeAMF3Value(buf []byte) (*Value, int, error) {
	if len(buf) < 1 {
		return nil, 0, rtmperrors.New(rtmperrors.KindParse, "amf0.DecodeAMF3Value")
	}
	pos := 1
	switch buf[0] {
	case amf3Undefined:
		return Undefined(), pos, nil
	case amf3Null:
		return Null(), pos, nil
	case amf3False:
		return Boolean(false), pos, nil
	case amf3True:
		return Boolean(true), pos, nil
	case amf3Integer:
		n, used, err := decodeU29(buf[pos:])
		if err != nil {
			return nil, 0, err
		}
		return Number(float64(int32(n))), pos + used, nil
	case amf3Double:
		if len(buf) < pos+8 {
			return nil, 0, rtmperrors.New(rtmperrors.KindParse, "amf0.DecodeAMF3Value")
		}
		n := math.Float64frombits(binary.BigEndian.Uint64(buf[pos : pos+8]))
		return Number(n), pos + 8, nil
	case amf3String:
		u29, used, err := decodeU29(buf[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += used
		l := int(u29 >> 1) // low bit is the inline/reference flag
		if len(buf) < pos+l {
			return nil, 0, rtmperrors.New(rtmperrors.KindParse, "amf0.DecodeAMF3Value")
		}
		return String(string(buf[pos : pos+l])), pos + l, nil
	default:
		return nil, 0, rtmperrors.New(rtmperrors.KindParse, "amf0.DecodeAMF3Value: unsupported marker")
	}
}

func decodeU29(buf []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		if i >= len(buf) {
			return 0, 0, rtmperrors.New(rtmperrors.KindParse, "amf0.decodeU29")
		}
		b := buf[i]
		if i == 3 {
			v = (v << 8) | uint32(b)
			return v, i + 1, nil
		}
		v = (v << 7) | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return v, 4, nil
}

// EncodeAMF3Value encodes the narrow subset above.
func EncodeAMF3Value(v *Value) ([]byte, error) {
	switch v.Kind {
	case KindUndefined:
		return []byte{amf3Undefined}, nil
	case KindNull:
		return []byte{amf3Null}, nil
	case KindBoolean:
		if v.Bool {
			return []byte{amf3True}, nil
		}
		return []byte{amf3False}, nil
	case KindNumber:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(v.Num))
		return append([]byte{amf3Double}, b...), nil
	case KindString:
		u29 := encodeU29(uint32(len(v.Str))<<1 | 1)
		out := append([]byte{amf3String}, u29...)
		return append(out, []byte(v.Str)...), nil
	default:
		return nil, rtmperrors.New(rtmperrors.KindParse, "amf0.EncodeAMF3Value: unsupported kind")
	}
}

func encodeU29(v uint32) []byte {
	switch {
	case v < 0x80:
		return []byte{byte(v)}
	case v < 0x4000:
		return []byte{byte(v>>7) | 0x80, byte(v & 0x7F)}
	case v < 0x200000:
		return []byte{byte(v>>14) | 0x80, byte(v>>7)&0x7F | 0x80, byte(v & 0x7F)}
	default:
		return []byte{byte(v>>22) | 0x80, byte(v>>15)&0x7F | 0x80, byte(v>>8)&0x7F | 0x80, byte(v)}
	}
}
