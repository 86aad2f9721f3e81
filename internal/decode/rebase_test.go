package decode

import "testing"

func TestRebaseTSBasic(t *testing.T) {
	cases := []struct {
		ts, num, den int64
		want         int64
	}{
		{0, 1, 1000, 0},
		{1000, 1, 1000, NSPerSec},
		{48000, 1, 48000, NSPerSec}, // one second of 48kHz samples
		{-48000, 1, 48000, -NSPerSec},
		{5, 1, 2, 5 * NSPerSec / 2},
	}
	for _, c := range cases {
		got := RebaseTS(c.ts, c.num, c.den)
		if got != c.want {
			t.Errorf("RebaseTS(%d,%d,%d) = %d, want %d", c.ts, c.num, c.den, got, c.want)
		}
	}
}

func TestRebaseTSHighSampleRateNoOverflow(t *testing.T) {
	// 192kHz audio, one day in: ts*NSPerSec (about 1.66e19) would overflow
	// a naive int64 ts*num*NSPerSec computation.
	const sampleRate = 192000
	ts := int64(sampleRate * 86400)
	got := RebaseTS(ts, 1, sampleRate)
	want := int64(86400) * NSPerSec
	if got != want {
		t.Errorf("RebaseTS overflow check: got %d, want %d", got, want)
	}
}
