// Package handshake implements the RTMP simple and digest handshakes
// (spec.md §4.4), grounded on the teacher's handshake.go, generalized
// into explicit server/client state machines instead of one
// generateS0S1S2 helper invoked from rtmp_session.go's HandleSession.
package handshake

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"github.com/kaelstream/rtmp-hub/internal/rtmperrors"
)

const (
	rtmpVersion = 3
	sigSize     = 1536
	digestLen   = 32
)

// Schema selects which of the two digest-offset layouts C1 used.
type Schema int

const (
	SchemaSimple Schema = iota // no digest at all (version bytes all zero)
	Schema0
	Schema1
)

var genuineFMSConst = []byte("Genuine Adobe Flash Media Server 001")
var genuineFPConst = []byte("Genuine Adobe Flash Player 001")

var randomCrud = []byte{
	0xf0, 0xee, 0xc2, 0x4a, 0x80, 0x68, 0xbe, 0xe8,
	0x2e, 0x00, 0xd0, 0xd1, 0x02, 0x9e, 0x7e, 0x57,
	0x6e, 0xec, 0x5d, 0x2d, 0x29, 0x80, 0x6f, 0xab,
	0x93, 0xb8, 0xe6, 0x36, 0xcf, 0xeb, 0x31, 0xae,
}

var genuineFMSConstCrud = append(append([]byte{}, genuineFMSConst...), randomCrud...)

func hmacSHA256(message, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(message)
	return h.Sum(nil)
}

// schema0Offset computes the digest offset for the C1 layout where the
// digest sits in the first 764-byte block.
func schema0Offset(buf []byte) uint32 {
	sum := uint32(buf[0]) + uint32(buf[1]) + uint32(buf[2]) + uint32(buf[3])
	return (sum % 728) + 12
}

// schema1Offset computes the digest offset for the C1 layout where the
// digest sits in the second 764-byte block.
func schema1Offset(buf []byte) uint32 {
	sum := uint32(buf[0]) + uint32(buf[1]) + uint32(buf[2]) + uint32(buf[3])
	return (sum % 728) + 776
}

// messageWithoutDigest builds the 1504-byte message used to validate or
// compute a digest: the 1536-byte signature minus its 32-byte digest,
// padded/truncated to exactly 1504 bytes.
func messageWithoutDigest(sig []byte, offset uint32) []byte {
	msg := make([]byte, 0, 1504)
	msg = append(msg, sig[:offset]...)
	msg = append(msg, sig[offset+digestLen:]...)
	if len(msg) < 1504 {
		msg = append(msg, make([]byte, 1504-len(msg))...)
	} else {
		msg = msg[:1504]
	}
	return msg
}

// DetectSchema classifies a 1536-byte C1 (or S1) signature as the simple
// handshake, schema 0, or schema 1, trying schema 0 first then schema 1,
// per spec.md §4.4. A digest is accepted when it is keyed with either the
// player key (a client's C1) or the server key (a server's S1).
func DetectSchema(sig []byte) Schema {
	if len(sig) < sigSize {
		return SchemaSimple
	}
	if sig[4] == 0 && sig[5] == 0 && sig[6] == 0 && sig[7] == 0 {
		return SchemaSimple
	}

	for _, schema := range []Schema{Schema0, Schema1} {
		off := digestOffsetForSchema(sig, schema)
		msg := messageWithoutDigest(sig, off)
		for _, key := range [][]byte{genuineFPConst, genuineFMSConst} {
			if hmac.Equal(hmacSHA256(msg, key), sig[off:off+digestLen]) {
				return schema
			}
		}
	}

	return SchemaSimple
}

func digestOffsetForSchema(sig []byte, schema Schema) uint32 {
	if schema == Schema0 {
		return schema0Offset(sig[772:776])
	}
	return schema1Offset(sig[8:12])
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failure is unrecoverable, matches teacher's handshake.go
	}
	return b
}

// buildS1 generates the server's own 1536-byte signature, digesting it
// with the server key at the offset dictated by the detected schema.
func buildS1(schema Schema) []byte {
	sig := make([]byte, sigSize)
	copy(sig[8:], randomBytes(sigSize-8))

	if schema == SchemaSimple {
		// A real simple-handshake C1/S1 carries an all-zero version field;
		// DetectSchema uses exactly that to short-circuit without touching
		// HMAC at all.
		return sig
	}
	copy(sig[0:8], []byte{0, 0, 0, 0, 1, 2, 3, 4})

	offset := digestOffsetForSchema(sig, schema)
	msg := messageWithoutDigest(sig, offset)
	d := hmacSHA256(msg, genuineFMSConst)
	copy(sig[offset:offset+digestLen], d)
	return sig
}

// buildS2 generates the server's echo/response signature, keyed off the
// client's own digest (so the client can validate it came from a real
// server holding the FMS constant).
func buildS2(schema Schema, clientSig []byte) []byte {
	if schema == SchemaSimple {
		return append([]byte{}, clientSig...)
	}
	offset := digestOffsetForSchema(clientSig, schema)
	challengeKey := clientSig[offset : offset+digestLen]

	randPart := randomBytes(sigSize - digestLen)
	key := hmacSHA256(challengeKey, genuineFMSConstCrud)
	sig := hmacSHA256(randPart, key)

	s2 := append([]byte{}, randPart...)
	s2 = append(s2, sig...)
	return s2
}

// conn is the minimal transport handshake needs: any type satisfying
// io.Reader and io.Writer, which *bytesio.Conn does directly.
type conn interface {
	io.Reader
	io.Writer
}

// ServerHandshake drives the server's side of the handshake state machine
// (ReadC0C1 → WriteS0S1S2 → ReadC2 → Finish), over either the simple or
// digest variant depending on what C1 looks like.
func ServerHandshake(c conn) error {
	c0c1 := make([]byte, 1+sigSize)
	if _, err := io.ReadFull(c, c0c1); err != nil {
		return rtmperrors.Wrap(rtmperrors.KindIO, "handshake.ServerHandshake.ReadC0C1", err)
	}
	if c0c1[0] != rtmpVersion {
		return rtmperrors.New(rtmperrors.KindProtocol, "handshake.S0VersionNotCorrect")
	}
	c1 := c0c1[1:]
	schema := DetectSchema(c1)

	s0 := []byte{rtmpVersion}
	s1 := buildS1(schema)
	s2 := buildS2(schema, c1)

	if _, err := c.Write(append(append(s0, s1...), s2...)); err != nil {
		return rtmperrors.Wrap(rtmperrors.KindIO, "handshake.ServerHandshake.WriteS0S1S2", err)
	}

	c2 := make([]byte, sigSize)
	if _, err := io.ReadFull(c, c2); err != nil {
		return rtmperrors.Wrap(rtmperrors.KindIO, "handshake.ServerHandshake.ReadC2", err)
	}
	return nil
}

// ClientHandshake drives the client's side (WriteC0C1 → ReadS0S1S2 →
// WriteC2 → Finish). useDigest selects whether C1 advertises a non-zero
// version and carries a digest, or falls back to the simple handshake.
func ClientHandshake(c conn, useDigest bool) error {
	schema := SchemaSimple
	if useDigest {
		schema = Schema0
	}

	c1 := buildS1(schema) // the C1 layout is identical to S1's
	if _, err := c.Write(append([]byte{rtmpVersion}, c1...)); err != nil {
		return rtmperrors.Wrap(rtmperrors.KindIO, "handshake.ClientHandshake.WriteC0C1", err)
	}

	s0s1s2 := make([]byte, 1+2*sigSize)
	if _, err := io.ReadFull(c, s0s1s2); err != nil {
		return rtmperrors.Wrap(rtmperrors.KindIO, "handshake.ClientHandshake.ReadS0S1S2", err)
	}
	if s0s1s2[0] != rtmpVersion {
		return rtmperrors.New(rtmperrors.KindProtocol, "handshake.S0VersionNotCorrect")
	}
	s1 := s0s1s2[1 : 1+sigSize]

	serverSchema := DetectSchema(s1)
	c2 := buildS2(serverSchema, s1)
	if _, err := c.Write(c2); err != nil {
		return rtmperrors.Wrap(rtmperrors.KindIO, "handshake.ClientHandshake.WriteC2", err)
	}
	return nil
}

// CompareConstantTime is reused by the auth package for the same
// timing-safe key comparison the teacher's AddPlayer performed with
// crypto/subtle.ConstantTimeCompare.
func CompareConstantTime(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
