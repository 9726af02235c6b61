package amf0

import (
	"encoding/binary"
	"math"

	"github.com/kaelstream/rtmp-hub/internal/rtmperrors"
)

const maxNormalStringLen = 0xFFFF

// Encode serializes a single AMF0 value.
func Encode(v *Value) ([]byte, error) {
	return encodeOne(v)
}

// EncodeAll serializes a sequence of AMF0 values back to back, as used
// for a full command or data message body.
func EncodeAll(values []*Value) ([]byte, error) {
	var out []byte
	for _, v := range values {
		b, err := encodeOne(v)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func encodeOne(v *Value) ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return append([]byte{markerNumber}, encodeNumber(v.Num)...), nil
	case KindBoolean:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return []byte{markerBoolean, b}, nil
	case KindString:
		body, err := encodeNormalString(v.Str)
		if err != nil {
			return nil, err
		}
		return append([]byte{markerString}, body...), nil
	case KindLongString:
		return append([]byte{markerLongString}, encodeLongStringBody(v.Str)...), nil
	case KindNull:
		return []byte{markerNull}, nil
	case KindUndefined:
		return []byte{markerUndefined}, nil
	case KindReference:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, v.Ref)
		return append([]byte{markerReference}, b...), nil
	case KindDate:
		b := append([]byte{0x00, 0x00}, encodeNumber(v.Num)...)
		return append([]byte{markerDate}, b...), nil
	case KindObject:
		body, err := encodeObjectBody(v.Obj)
		if err != nil {
			return nil, err
		}
		return append([]byte{markerObject}, body...), nil
	case KindTypedObject:
		nameBody, err := encodeNormalString(v.Str)
		if err != nil {
			return nil, err
		}
		objBody, err := encodeObjectBody(v.Obj)
		if err != nil {
			return nil, err
		}
		out := append([]byte{markerTypedObject}, nameBody...)
		return append(out, objBody...), nil
	case KindEcmaArray:
		lenBytes := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBytes, uint32(v.Obj.Len()))
		body, err := encodeObjectBody(v.Obj)
		if err != nil {
			return nil, err
		}
		out := append([]byte{markerEcmaArray}, lenBytes...)
		return append(out, body...), nil
	case KindStrictArray:
		lenBytes := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBytes, uint32(len(v.Arr)))
		out := append([]byte{markerStrictArray}, lenBytes...)
		for _, el := range v.Arr {
			b, err := encodeOne(el)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil
	case KindObjectEnd:
		return []byte{0x00, 0x00, markerObjectEnd}, nil
	default:
		return nil, rtmperrors.New(rtmperrors.KindParse, "amf0.Encode")
	}
}

func encodeNumber(n float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(n))
	return b
}

// encodeNormalString rejects strings over 65535 bytes, per spec.md §4.2:
// "strings > 65535 bytes in normal-string context return
// NormalStringTooLong".
func encodeNormalString(s string) ([]byte, error) {
	b := []byte(s)
	if len(b) > maxNormalStringLen {
		return nil, rtmperrors.New(rtmperrors.KindParse, "amf0.NormalStringTooLong")
	}
	l := make([]byte, 2)
	binary.BigEndian.PutUint16(l, uint16(len(b)))
	return append(l, b...), nil
}

func encodeLongStringBody(s string) []byte {
	b := []byte(s)
	l := make([]byte, 4)
	binary.BigEndian.PutUint32(l, uint32(len(b)))
	return append(l, b...)
}

// encodeObjectBody writes key/value pairs in insertion order followed by
// the empty-key ObjectEnd sentinel, preserving the order OrderedMap
// tracks instead of the teacher's sort.Strings(keys) alphabetical pass.
func encodeObjectBody(m *OrderedMap) ([]byte, error) {
	var out []byte
	var encErr error
	m.Each(func(key string, val *Value) {
		if encErr != nil {
			return
		}
		keyBytes, err := encodeNormalString(key)
		if err != nil {
			encErr = err
			return
		}
		valBytes, err := encodeOne(val)
		if err != nil {
			encErr = err
			return
		}
		out = append(out, keyBytes...)
		out = append(out, valBytes...)
	})
	if encErr != nil {
		return nil, encErr
	}
	out = append(out, 0x00, 0x00, markerObjectEnd)
	return out, nil
}

// Decoder reads a sequence of AMF0 values from a buffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps buf for sequential decoding.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Done reports whether the buffer has been fully consumed.
func (d *Decoder) Done() bool { return d.pos >= len(d.buf) }

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return rtmperrors.New(rtmperrors.KindParse, "amf0.Decode")
	}
	return nil
}

func (d *Decoder) readBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// DecodeAll decodes every value remaining in the buffer.
func DecodeAll(buf []byte) ([]*Value, error) {
	d := NewDecoder(buf)
	var values []*Value
	for !d.Done() {
		v, err := d.DecodeOne()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Decode decodes exactly one value from buf and returns it along with
// the number of bytes consumed.
func Decode(buf []byte) (*Value, int, error) {
	d := NewDecoder(buf)
	v, err := d.DecodeOne()
	if err != nil {
		return nil, 0, err
	}
	return v, d.pos, nil
}

// DecodeOne reads and returns the next value, tag-dispatching on the
// 1-byte marker. Unknown markers are a hard error, per spec.md §4.2.
func (d *Decoder) DecodeOne() (*Value, error) {
	markerB, err := d.readBytes(1)
	if err != nil {
		return nil, err
	}
	switch markerB[0] {
	case markerNumber:
		n, err := d.readNumber()
		if err != nil {
			return nil, err
		}
		return Number(n), nil
	case markerBoolean:
		b, err := d.readBytes(1)
		if err != nil {
			return nil, err
		}
		return Boolean(b[0] != 0), nil
	case markerString:
		s, err := d.readNormalString()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case markerLongString:
		s, err := d.readLongString()
		if err != nil {
			return nil, err
		}
		return LongString(s), nil
	case markerNull:
		return Null(), nil
	case markerUndefined:
		return Undefined(), nil
	case markerReference:
		b, err := d.readBytes(2)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindReference, Ref: binary.BigEndian.Uint16(b)}, nil
	case markerDate:
		if _, err := d.readBytes(2); err != nil {
			return nil, err
		}
		n, err := d.readNumber()
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindDate, Num: n}, nil
	case markerObject:
		m, err := d.readObjectBody()
		if err != nil {
			return nil, err
		}
		return Object(m), nil
	case markerTypedObject:
		name, err := d.readNormalString()
		if err != nil {
			return nil, err
		}
		m, err := d.readObjectBody()
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindTypedObject, Str: name, Obj: m}, nil
	case markerEcmaArray:
		if _, err := d.readBytes(4); err != nil {
			return nil, err
		}
		m, err := d.readObjectBody()
		if err != nil {
			return nil, err
		}
		return EcmaArray(m), nil
	case markerStrictArray:
		lenBytes, err := d.readBytes(4)
		if err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint32(lenBytes)
		arr := make([]*Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.DecodeOne()
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return &Value{Kind: KindStrictArray, Arr: arr}, nil
	case markerObjectEnd:
		return &Value{Kind: KindObjectEnd}, nil
	default:
		return nil, rtmperrors.New(rtmperrors.KindParse, "amf0.DecodeOne: unknown marker")
	}
}

func (d *Decoder) readNumber() (float64, error) {
	b, err := d.readBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (d *Decoder) readNormalString() (string, error) {
	lb, err := d.readBytes(2)
	if err != nil {
		return "", err
	}
	l := binary.BigEndian.Uint16(lb)
	sb, err := d.readBytes(int(l))
	if err != nil {
		return "", err
	}
	return string(sb), nil
}

func (d *Decoder) readLongString() (string, error) {
	lb, err := d.readBytes(4)
	if err != nil {
		return "", err
	}
	l := binary.BigEndian.Uint32(lb)
	sb, err := d.readBytes(int(l))
	if err != nil {
		return "", err
	}
	return string(sb), nil
}

// readObjectBody reads key/value pairs until the 3-byte "00 00 09"
// ObjectEnd sentinel, per spec.md §4.2.
func (d *Decoder) readObjectBody() (*OrderedMap, error) {
	m := NewOrderedMap()
	for {
		if d.pos+3 <= len(d.buf) &&
			d.buf[d.pos] == 0x00 && d.buf[d.pos+1] == 0x00 && d.buf[d.pos+2] == markerObjectEnd {
			d.pos += 3
			return m, nil
		}
		key, err := d.readNormalString()
		if err != nil {
			return nil, err
		}
		val, err := d.DecodeOne()
		if err != nil {
			return nil, err
		}
		m.Set(key, val)
	}
}
