package amf0

import "testing"

func TestRoundTripScalars(t *testing.T) {
	cases := []*Value{
		Number(3.25),
		Boolean(true),
		Boolean(false),
		String("live"),
		LongString(make3kString()),
		Null(),
		Undefined(),
	}
	for _, v := range cases {
		enc, err := Encode(v)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		dec, n, err := Decode(enc)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if n != len(enc) {
			t.Fatalf("consumed %d, want %d", n, len(enc))
		}
		if !v.Equal(dec) {
			t.Fatalf("round trip mismatch: %+v != %+v", v, dec)
		}
	}
}

func TestObjectPreservesKeyOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set("zeta", Number(1))
	m.Set("alpha", Number(2))
	m.Set("mid", String("x"))

	obj := Object(m)
	enc, err := Encode(obj)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, _, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	gotKeys := dec.GetObject().Keys()
	want := []string{"zeta", "alpha", "mid"}
	if len(gotKeys) != len(want) {
		t.Fatalf("got %v want %v", gotKeys, want)
	}
	for i := range want {
		if gotKeys[i] != want[i] {
			t.Fatalf("key order mismatch at %d: got %s want %s", i, gotKeys[i], want[i])
		}
	}
	if !obj.Equal(dec) {
		t.Fatalf("object round trip mismatch")
	}
}

func TestNormalStringTooLong(t *testing.T) {
	_, err := Encode(String(make70kString()))
	if err == nil {
		t.Fatal("expected NormalStringTooLong error")
	}
}

func TestUnknownMarkerIsHardError(t *testing.T) {
	_, _, err := Decode([]byte{0xFE})
	if err == nil {
		t.Fatal("expected error for unknown marker")
	}
}

func TestEcmaArrayRoundTrip(t *testing.T) {
	m := NewOrderedMap()
	m.Set("duration", Number(0))
	m.Set("width", Number(1920))
	m.Set("height", Number(1080))
	v := EcmaArray(m)

	enc, err := Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, _, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.Equal(dec) {
		t.Fatalf("ecma array mismatch")
	}
}

func make3kString() string {
	b := make([]byte, 3000)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func make70kString() string {
	b := make([]byte, 70000)
	for i := range b {
		b[i] = 'b'
	}
	return string(b)
}
