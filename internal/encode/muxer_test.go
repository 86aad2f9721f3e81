package encode

import (
	"os"
	"path/filepath"
	"testing"

	astiav "github.com/asticode/go-astiav"
)

func TestNewMuxerInfersGlobalHeaderFromExtension(t *testing.T) {
	dir := t.TempDir()

	mp4, err := NewMuxer(filepath.Join(dir, "out.mp4"))
	if err != nil {
		t.Fatalf("NewMuxer(mp4): %v", err)
	}
	defer mp4.Close()
	if !mp4.GlobalHeaderRequired() {
		t.Error("mp4 muxer should require a global header")
	}
}

func TestSubmitRejectsOutOfRangeStreamIndex(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMuxer(filepath.Join(dir, "out.mp4"))
	if err != nil {
		t.Fatalf("NewMuxer: %v", err)
	}
	defer m.Close()

	if err := m.Submit(nil, 0); err == nil {
		t.Fatal("Submit on a muxer with no streams should fail")
	}
}

// TestMuxRawVideoStream exercises the full NewStream/Begin/Submit/End
// lifecycle against a real rawvideo codec, writing one frame to a nut
// container. It is skipped if the FFmpeg build has no rawvideo encoder,
// mirroring the teacher's own environment-dependent codec checks.
func TestMuxRawVideoStream(t *testing.T) {
	codec := astiav.FindEncoder(astiav.CodecIDRawvideo)
	if codec == nil {
		t.Skip("rawvideo encoder not available in this FFmpeg build")
	}

	dir := t.TempDir()
	m, err := NewMuxer(filepath.Join(dir, "out.nut")) // nut tolerates arbitrary codecs
	if err != nil {
		t.Fatalf("NewMuxer: %v", err)
	}
	defer m.Close()

	idx, err := m.NewStream(Params{Width: 16, Height: 16, FPS: 25}, codec, false, func(cc *astiav.CodecContext) {
		cc.SetPixelFormat(astiav.PixelFormatYuv420P)
	})
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	if err := m.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	frame := astiav.AllocFrame()
	defer frame.Free()
	frame.SetWidth(16)
	frame.SetHeight(16)
	frame.SetPixelFormat(astiav.PixelFormatYuv420P)
	if err := frame.AllocBuffer(1); err != nil {
		t.Fatalf("AllocBuffer: %v", err)
	}
	frame.SetPts(0)

	if err := m.Submit(frame, idx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := m.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	if fi, err := os.Stat(filepath.Join(dir, "out.nut")); err != nil || fi.Size() == 0 {
		t.Fatalf("expected a non-empty output file, stat: %v", err)
	}
}
