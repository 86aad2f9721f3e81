package hwbridge

import "testing"

func TestAlignUp(t *testing.T) {
	cases := []struct{ x, n, want int }{
		{0, 128, 0},
		{1, 128, 128},
		{128, 128, 128},
		{129, 128, 256},
		{1920, 128, 1920},
		{1080, 64, 1088},
		{1081, 64, 1088},
	}
	for _, c := range cases {
		if got := AlignUp(c.x, c.n); got != c.want {
			t.Errorf("AlignUp(%d,%d) = %d, want %d", c.x, c.n, got, c.want)
		}
	}
}

func TestComputeNV12Layout1080p(t *testing.T) {
	l := ComputeNV12Layout(1920, 1080)
	if l.AllocW != 1920 {
		t.Errorf("AllocW = %d, want 1920 (already 128-aligned)", l.AllocW)
	}
	if l.AllocH != 1088 {
		t.Errorf("AllocH = %d, want 1088 (1080 rounded up to 64)", l.AllocH)
	}
	if l.UVOffsetRows != 1088 {
		t.Errorf("UVOffsetRows = %d, want 1088 (align_up(height,64))", l.UVOffsetRows)
	}
	wantUVOffset := 1088 * 1920
	if l.UVOffsetBytes != wantUVOffset {
		t.Errorf("UVOffsetBytes = %d, want %d", l.UVOffsetBytes, wantUVOffset)
	}
	wantSize := wantUVOffset + (1088/2)*1920
	if l.ObjectSizeBytes != wantSize {
		t.Errorf("ObjectSizeBytes = %d, want %d", l.ObjectSizeBytes, wantSize)
	}
}

func TestComputeNV12LayoutOddDimensions(t *testing.T) {
	// A non-128/64-aligned frame must still round up, not truncate.
	l := ComputeNV12Layout(1280, 720)
	if l.AllocW != 1280 {
		t.Errorf("AllocW = %d, want 1280", l.AllocW)
	}
	if l.AllocH != 768 {
		t.Errorf("AllocH = %d, want 768 (720 -> align_up 64)", l.AllocH)
	}
}

func TestAlignUpPanicsOnNonPositiveAlignment(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected AlignUp(x, 0) to panic")
		}
	}()
	AlignUp(10, 0)
}
