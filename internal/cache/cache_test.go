package cache

import (
	"bytes"
	"testing"

	"github.com/kaelstream/rtmp-hub/internal/stream"
)

func TestReplayOrderMetadataThenSeqHeadersThenGOP(t *testing.T) {
	c := New(2)

	c.SaveVideo(stream.Video(0, []byte{0x17, 0x00, 0xAA})) // video seq header
	c.SaveAudio(stream.Audio(0, []byte{0xAF, 0x00, 0xBB})) // audio seq header
	c.SaveMetadata(stream.Metadata(0, []byte("meta")))

	c.SaveVideo(stream.Video(40, []byte{0x17, 0x01, 0x01})) // keyframe, opens GOP
	c.SaveAudio(stream.Audio(40, []byte{0xAF, 0x01, 0x02})) // raw audio, in GOP

	replay := c.Replay()
	if len(replay) != 5 {
		t.Fatalf("expected 5 replayed frames, got %d", len(replay))
	}
	if replay[0].Kind != stream.KindMetadata {
		t.Fatalf("expected metadata first, got %v", replay[0].Kind)
	}
	if replay[1].Kind != stream.KindVideo || !bytes.Equal(replay[1].Data, []byte{0x17, 0x00, 0xAA}) {
		t.Fatalf("expected video sequence header second, got %+v", replay[1])
	}
	if replay[2].Kind != stream.KindAudio || !bytes.Equal(replay[2].Data, []byte{0xAF, 0x00, 0xBB}) {
		t.Fatalf("expected audio sequence header third, got %+v", replay[2])
	}
	if replay[3].Kind != stream.KindVideo || replay[3].Timestamp != 40 {
		t.Fatalf("expected the GOP's keyframe fourth, got %+v", replay[3])
	}
	if replay[4].Kind != stream.KindAudio || replay[4].Timestamp != 40 {
		t.Fatalf("expected the GOP's audio frame fifth, got %+v", replay[4])
	}
}

// TestGOPEvictionKeepsOnlyLastNKeyframes exercises spec.md §8's "GOP
// eviction" scenario literally: with ring size N, after inserting
// frames across k keyframes with k > N, the retained gops are the last
// N keyframes and their following inter-frames only.
func TestGOPEvictionKeepsOnlyLastNKeyframes(t *testing.T) {
	const ringLen = 2
	c := New(ringLen)
	c.SaveVideo(stream.Video(0, []byte{0x17, 0x00})) // sequence header, not a keyframe payload

	const keyframes = 5
	for k := 0; k < keyframes; k++ {
		ts := uint32(k * 100)
		c.SaveVideo(stream.Video(ts, []byte{0x17, 0x01, byte(k)}))    // keyframe, opens a new GOP
		c.SaveVideo(stream.Video(ts+10, []byte{0x27, 0x01, byte(k)})) // inter-frame, same GOP
	}

	if len(c.gops) != ringLen {
		t.Fatalf("expected ring to hold exactly %d gops, got %d", ringLen, len(c.gops))
	}

	replay := c.Replay()
	var keyframesSeen []byte
	for _, f := range replay {
		if f.Kind == stream.KindVideo && len(f.Data) == 3 && f.Data[0] == 0x17 && f.Data[1] == 0x01 {
			keyframesSeen = append(keyframesSeen, f.Data[2])
		}
	}
	want := []byte{keyframes - 2, keyframes - 1} // last N keyframe markers, in order
	if len(keyframesSeen) != len(want) || keyframesSeen[0] != want[0] || keyframesSeen[1] != want[1] {
		t.Fatalf("expected retained keyframes %v, got %v", want, keyframesSeen)
	}
}

func TestNewSequenceHeaderResetsGOPRing(t *testing.T) {
	c := New(10)
	c.SaveVideo(stream.Video(0, []byte{0x17, 0x00, 0x01}))  // seq header
	c.SaveVideo(stream.Video(5, []byte{0x17, 0x01}))        // keyframe, opens GOP
	c.SaveVideo(stream.Video(10, []byte{0x27, 0x01}))       // inter frame, same GOP

	if got := len(c.Replay()); got != 3 {
		t.Fatalf("expected 3 frames before reset, got %d", got)
	}

	c.SaveVideo(stream.Video(20, []byte{0x17, 0x00, 0x02})) // new seq header resets the ring

	replay := c.Replay()
	if len(replay) != 1 {
		t.Fatalf("expected GOP ring cleared after new sequence header, got %d frames", len(replay))
	}
	if !bytes.Equal(replay[0].Data, []byte{0x17, 0x00, 0x02}) {
		t.Fatalf("expected the newest sequence header to be replayed")
	}
}

func TestAudioBeforeAnyKeyframeIsDropped(t *testing.T) {
	c := New(2)
	c.SaveAudio(stream.Audio(0, []byte{0xAF, 0x01, 0x00})) // no GOP open yet, dropped

	if got := len(c.Replay()); got != 0 {
		t.Fatalf("expected audio with no open GOP to be dropped, got %d frames", got)
	}
}

func TestDisabledCacheNeverStoresGOPFrames(t *testing.T) {
	c := New(0)
	c.SaveVideo(stream.Video(0, []byte{0x17, 0x00})) // sequence header still stored
	c.SaveVideo(stream.Video(10, []byte{0x17, 0x01, 0x02}))

	replay := c.Replay()
	if len(replay) != 1 {
		t.Fatalf("expected only the sequence header with GOP caching disabled, got %d", len(replay))
	}
}
