// Package cache implements the per-stream GOP cache every new subscriber
// replays before seeing live frames (spec.md §4.6/§3): a ring of up to N
// Gops, each starting at a video keyframe, with the oldest whole Gop
// evicted once the ring is full. Grounded on the teacher's
// HandleAudioPacket/HandleVideoPacket gopCache logic in rtmp_session.go
// for the sequence-header/metadata bookkeeping, but the GOP structure
// itself follows original_source's keyframe-bounded ring (the teacher's
// own gopCache is a single byte-capped list that never tracks keyframe
// boundaries at all), generalized out of the session struct into a
// standalone type the hub's per-stream state can own independently of
// any one publisher connection.
package cache

import (
	"github.com/kaelstream/rtmp-hub/internal/stream"
)

// Gop holds every frame from one video keyframe up to (but not
// including) the next one, in arrival order.
type Gop struct {
	frames []stream.Frame
}

// Cache holds one stream's metadata, sequence headers, and a ring of up
// to N Gops.
type Cache struct {
	metadata *stream.Frame

	videoSeqHeader *stream.Frame
	audioSeqHeader *stream.Frame

	gops     []*Gop
	ringLen  int
	disabled bool
}

// New creates a Cache whose GOP ring holds up to ringLen Gops
// (config.Config.GopCacheRingLen, spec.md §3: "N configurable, default
// 1"). A ringLen of 0 disables GOP caching entirely (metadata and
// sequence headers are still replayed) matching the teacher's
// gopCacheDisabled flag.
func New(ringLen int) *Cache {
	return &Cache{
		ringLen:  ringLen,
		disabled: ringLen <= 0,
	}
}

// SaveMetadata stores the stream's current onMetaData frame, replacing
// any previous one.
func (c *Cache) SaveMetadata(f stream.Frame) {
	c.metadata = &f
}

// SaveAudio appends an audio frame to the current GOP. A frame
// recognized as an AAC sequence header is stored separately and never
// evicted, mirroring aacSequenceHeader. An audio frame arriving before
// any video keyframe has opened a GOP is dropped — there is nowhere to
// anchor it, since replay always starts a new subscriber at a keyframe
// boundary.
func (c *Cache) SaveAudio(f stream.Frame) {
	if stream.IsAudioSequenceHeader(f.Data) {
		c.audioSeqHeader = &f
		return
	}
	if c.disabled {
		return
	}
	c.appendToCurrentGop(f)
}

// SaveVideo appends a video frame to the current GOP, opening a new GOP
// first if the frame is a keyframe (spec.md §3/§8's "each Gop starts at
// a video keyframe" and eviction-by-gop-count rule). A frame recognized
// as an AVC/HEVC sequence header replaces the stored header AND clears
// the entire ring, mirroring the teacher's avcSequenceHeader branch
// which reinitializes rtmpGopCache on every new sequence header (a new
// encoder configuration starts a new GOP lineage).
func (c *Cache) SaveVideo(f stream.Frame) {
	if stream.IsVideoSequenceHeader(f.Data) {
		c.videoSeqHeader = &f
		c.gops = nil
		return
	}
	if c.disabled {
		return
	}
	if stream.IsKeyFrame(f.Data) {
		c.openGop()
	}
	c.appendToCurrentGop(f)
}

// openGop starts a new Gop, evicting the oldest one if the ring is
// already at capacity (spec.md §8's GOP eviction: "the retained gops
// are the last N keyframes and their following inter-frames only").
func (c *Cache) openGop() {
	c.gops = append(c.gops, &Gop{})
	if len(c.gops) > c.ringLen {
		c.gops = c.gops[1:]
	}
}

func (c *Cache) appendToCurrentGop(f stream.Frame) {
	if len(c.gops) == 0 {
		return
	}
	cur := c.gops[len(c.gops)-1]
	cur.frames = append(cur.frames, f)
}

// Replay returns the frames a newly subscribing player must receive
// before live frames, in the fixed order spec.md §4.6 mandates:
// metadata, then the video sequence header, then the audio sequence
// header, then every frame still held in the GOP ring in arrival order,
// oldest GOP first. Any of the first three may be absent if the stream
// hasn't produced them yet.
func (c *Cache) Replay() []stream.Frame {
	total := 0
	for _, g := range c.gops {
		total += len(g.frames)
	}
	out := make([]stream.Frame, 0, total+3)
	if c.metadata != nil {
		out = append(out, *c.metadata)
	}
	if c.videoSeqHeader != nil {
		out = append(out, *c.videoSeqHeader)
	}
	if c.audioSeqHeader != nil {
		out = append(out, *c.audioSeqHeader)
	}
	for _, g := range c.gops {
		out = append(out, g.frames...)
	}
	return out
}

// Reset clears all cached state, used when a publisher disconnects and
// a new one takes over the same stream identifier.
func (c *Cache) Reset() {
	c.metadata = nil
	c.videoSeqHeader = nil
	c.audioSeqHeader = nil
	c.gops = nil
}
