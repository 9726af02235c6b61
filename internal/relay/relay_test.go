package relay

import "testing"

func TestParseTargetSplitsHostAppStream(t *testing.T) {
	tg, err := parseTarget("rtmp://example.com:1936/live/stream1")
	if err != nil {
		t.Fatalf("parseTarget: %v", err)
	}
	if tg.addr != "example.com:1936" || tg.app != "live" || tg.streamName != "stream1" {
		t.Fatalf("unexpected target: %+v", tg)
	}
}

func TestParseTargetDefaultsPort(t *testing.T) {
	tg, err := parseTarget("rtmp://example.com/live/stream1")
	if err != nil {
		t.Fatalf("parseTarget: %v", err)
	}
	if tg.addr != "example.com:1935" {
		t.Fatalf("expected default RTMP port 1935, got %q", tg.addr)
	}
}

func TestParseTargetRejectsMissingStreamName(t *testing.T) {
	if _, err := parseTarget("rtmp://example.com/live"); err == nil {
		t.Fatalf("expected error for a path with no stream name")
	}
}

func TestParseMappingsParsesMultipleEntries(t *testing.T) {
	raw := "live/a>rtmp://one.example.com/live/a, live/b>rtmp://two.example.com/pub/b"
	mappings := ParseMappings(raw)
	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d: %+v", len(mappings), mappings)
	}
	if mappings[0].LocalApp != "live" || mappings[0].LocalStream != "a" || mappings[0].RemoteURL != "rtmp://one.example.com/live/a" {
		t.Fatalf("unexpected first mapping: %+v", mappings[0])
	}
	if mappings[1].LocalApp != "live" || mappings[1].LocalStream != "b" || mappings[1].RemoteURL != "rtmp://two.example.com/pub/b" {
		t.Fatalf("unexpected second mapping: %+v", mappings[1])
	}
}

func TestParseMappingsSkipsMalformedEntries(t *testing.T) {
	mappings := ParseMappings("not-a-valid-entry,live/a>rtmp://example.com/live/a")
	if len(mappings) != 1 {
		t.Fatalf("expected malformed entry to be skipped, got %+v", mappings)
	}
}

func TestParseMappingsEmptyStringYieldsNone(t *testing.T) {
	if mappings := ParseMappings(""); len(mappings) != 0 {
		t.Fatalf("expected no mappings, got %+v", mappings)
	}
}
