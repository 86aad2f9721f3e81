package source

import "testing"

func TestVideoTextureAtBinarySearch(t *testing.T) {
	p := &Preloaded{
		array:      7,
		frameTimes: []int64{100, 200, 300, 400},
	}

	cases := []struct {
		ts   int64
		want int32
	}{
		{0, 0},
		{50, 0},
		{100, 1},
		{150, 1},
		{399, 3},
		{400, 3},
		{10000, 3}, // past the end clamps to the last frame
	}
	for _, c := range cases {
		tex, err := p.VideoTextureAt(c.ts)
		if err != nil {
			t.Fatalf("VideoTextureAt(%d): %v", c.ts, err)
		}
		if tex.Index != c.want {
			t.Errorf("VideoTextureAt(%d).Index = %d, want %d", c.ts, tex.Index, c.want)
		}
		if tex.Kind != KindLayeredArray || tex.Array != 7 {
			t.Errorf("VideoTextureAt(%d) did not return a layered-array texture bound to array 7", c.ts)
		}
	}
}

func TestVideoTextureAtNoFrames(t *testing.T) {
	p := &Preloaded{}
	if _, err := p.VideoTextureAt(0); err == nil {
		t.Fatal("expected an error when no frames were preloaded")
	}
}

func TestAudioSamplesClampsToRemaining(t *testing.T) {
	p := &Preloaded{audio: []byte{1, 2, 3, 4, 5}}
	out := make([]byte, 10)

	n, err := p.AudioSamples(out, 10)
	if err != nil {
		t.Fatalf("AudioSamples: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5 (clamped to remaining)", n)
	}
	if n, _ := p.AudioSamples(out, 10); n != 0 {
		t.Fatalf("second read should return 0 once exhausted, got %d", n)
	}
}

func TestSeekMovesAudioCursor(t *testing.T) {
	p := &Preloaded{
		audio:          make([]byte, 48000*2), // 1 second of 16-bit mono @ 48kHz
		sampleRate:     48000,
		bytesPerSample: 2,
	}
	if err := p.Seek(500_000_000); err != nil { // 0.5s
		t.Fatalf("Seek: %v", err)
	}
	want := 24000 * 2
	if p.audioPos != want {
		t.Errorf("audioPos = %d, want %d", p.audioPos, want)
	}
}
