package hwbridge

import "testing"

type fakeBackend struct {
	nextImage  uintptr
	nextTex    uint32
	nextFd     int
	destroyed  []uintptr
	deleted    []uint32
	importErrs map[int]bool // plane index -> fail
}

func (f *fakeBackend) ImportImage(fd int, layerFormat uint32, width, height, pitch, offset int, modifier uint64) (uintptr, uint32, error) {
	f.nextImage++
	f.nextTex++
	return f.nextImage, f.nextTex, nil
}

func (f *fakeBackend) ExportTexture(texture uint32, layout NV12Layout) (int, error) {
	f.nextFd++
	return f.nextFd, nil
}

func (f *fakeBackend) DestroyImage(image uintptr) { f.destroyed = append(f.destroyed, image) }
func (f *fakeBackend) DeleteTexture(tex uint32)   { f.deleted = append(f.deleted, tex) }

func withFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	f := &fakeBackend{}
	prev := active
	SetBackend(f)
	t.Cleanup(func() { SetBackend(prev) })
	return f
}

func TestImportFrameBindsOnePlanePerDescriptorPlane(t *testing.T) {
	withFakeBackend(t)
	desc := NV12Descriptor(7, 1920, 1080, 0)

	tex, err := ImportFrame(desc)
	if err != nil {
		t.Fatalf("ImportFrame: %v", err)
	}
	if tex.Planes() != 2 {
		t.Fatalf("Planes() = %d, want 2", tex.Planes())
	}
	if tex.IsNull() {
		t.Fatal("texture should not be null after a successful import")
	}
}

func TestExportThenUnmapReleasesEverything(t *testing.T) {
	f := withFakeBackend(t)
	tex := FromGL(0 /* astiav.PixelFormatNv12-ish placeholder */, 42)

	desc, err := ExportNV12(&tex, 1920, 1080)
	if err != nil {
		t.Fatalf("ExportNV12: %v", err)
	}
	if len(desc.Planes) != 2 {
		t.Fatalf("expected NV12 descriptor with 2 planes, got %d", len(desc.Planes))
	}

	imported, err := ImportFrame(desc)
	if err != nil {
		t.Fatalf("re-import of exported descriptor: %v", err)
	}

	Unmap(&imported, false)
	if !imported.IsNull() {
		t.Fatal("texture should be null after Unmap")
	}
	if len(f.destroyed) != 2 {
		t.Fatalf("expected 2 EGLImages destroyed, got %d", len(f.destroyed))
	}
	if len(f.deleted) != 2 {
		t.Fatalf("expected 2 GL textures deleted (keepGLTextures=false), got %d", len(f.deleted))
	}
}

func TestUnmapKeepGLTexturesPreservesTextureObjects(t *testing.T) {
	f := withFakeBackend(t)
	desc := NV12Descriptor(9, 640, 480, 0)
	tex, err := ImportFrame(desc)
	if err != nil {
		t.Fatalf("ImportFrame: %v", err)
	}

	Unmap(&tex, true)
	if len(f.deleted) != 0 {
		t.Fatalf("expected no GL textures deleted when keepGLTextures=true, got %d", len(f.deleted))
	}
	if !tex.IsNull() {
		// EGLImages and fds are still released even when textures are kept.
		t.Fatal("texture should report null once its images/fds are released")
	}
}

func TestUnmapIsIdempotent(t *testing.T) {
	withFakeBackend(t)
	tex := Blank(0)
	Unmap(&tex, false)
	Unmap(&tex, false)
	if !tex.IsNull() {
		t.Fatal("blank texture double-unmap should remain null")
	}
}

func TestImportFrameRequiresBackend(t *testing.T) {
	prev := active
	SetBackend(nil)
	defer SetBackend(prev)

	_, err := ImportFrame(NV12Descriptor(1, 64, 64, 0))
	if err == nil {
		t.Fatal("expected an error when no backend is installed")
	}
}
