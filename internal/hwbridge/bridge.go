package hwbridge

import (
	"errors"
	"fmt"

	astiav "github.com/asticode/go-astiav"
)

// ImportFrame maps a decoded DRM-PRIME frame into GL textures, one per
// plane, via the active Backend. It is the zero-copy counterpart to
// uploading decoded pixels with glTexImage2D: no pixel data crosses the
// CPU/GPU boundary, only the dma-buf fd and its layout.
func ImportFrame(desc DRMDescriptor) (Texture, error) {
	if active == nil {
		return Texture{}, errors.New("hwbridge: no backend installed, call SetBackend first")
	}
	if len(desc.Planes) == 0 {
		return Texture{}, errors.New("hwbridge: ImportFrame: descriptor has no planes")
	}
	if len(desc.Planes) > maxPlanes {
		return Texture{}, fmt.Errorf("hwbridge: ImportFrame: %d planes exceeds max %d", len(desc.Planes), maxPlanes)
	}

	t := Texture{format: astiav.PixelFormatNv12, planes: len(desc.Planes)}
	clearFds(&t)
	layerFormats := nv12LayerFormats(len(desc.Planes))

	for i, p := range desc.Planes {
		w, h := planeDimensions(desc.Width, desc.Height, i)
		image, tex, err := active.ImportImage(p.Fd, layerFormats[i], w, h, p.Pitch, p.Offset, p.Modifier)
		if err != nil {
			unmapPartial(t, i)
			return Texture{}, fmt.Errorf("hwbridge: ImportImage(plane %d): %w", i, err)
		}
		t.eglImages[i] = image
		t.glTextures[i] = tex
		t.fds[i] = p.Fd
	}
	return t, nil
}

// ExportNV12 exports t's bound GL texture (the engine's render target)
// as the DRM-PRIME descriptor of an NV12 surface sized width x height.
// The returned descriptor's single fd owns both the luma and chroma
// layers, packed per ComputeNV12Layout.
func ExportNV12(t *Texture, width, height int) (DRMDescriptor, error) {
	if active == nil {
		return DRMDescriptor{}, errors.New("hwbridge: no backend installed, call SetBackend first")
	}
	if t.planes == 0 || t.glTextures[0] == 0 {
		return DRMDescriptor{}, errors.New("hwbridge: ExportNV12: texture has no bound GL object")
	}

	layout := ComputeNV12Layout(width, height)
	fd, err := active.ExportTexture(t.glTextures[0], layout)
	if err != nil {
		return DRMDescriptor{}, fmt.Errorf("hwbridge: ExportTexture: %w", err)
	}
	return NV12Descriptor(fd, width, height, 0), nil
}

// Unmap releases every EGLImage and dma-buf fd this texture holds. When
// keepGLTextures is true the underlying GL texture objects are not deleted,
// so their creator can reuse them (the render target case); otherwise they
// are deleted too (the imported-decoded-frame case). Either way t stops
// referring to them and is null afterwards. Unmap is idempotent: calling
// it on an already-blank Texture is a no-op.
func Unmap(t *Texture, keepGLTextures bool) {
	if active == nil {
		return
	}
	for i := 0; i < maxPlanes; i++ {
		if t.eglImages[i] != 0 {
			active.DestroyImage(t.eglImages[i])
			t.eglImages[i] = 0
		}
		if t.fds[i] != -1 {
			closeFd(t.fds[i])
			t.fds[i] = -1
		}
		if t.glTextures[i] != 0 {
			if !keepGLTextures {
				active.DeleteTexture(t.glTextures[i])
			}
			t.glTextures[i] = 0
		}
	}
	t.planes = 0
}

func unmapPartial(t Texture, upTo int) {
	if active == nil {
		return
	}
	for i := 0; i < upTo; i++ {
		if t.eglImages[i] != 0 {
			active.DestroyImage(t.eglImages[i])
		}
		if t.glTextures[i] != 0 {
			active.DeleteTexture(t.glTextures[i])
		}
	}
}

// nv12LayerFormats returns the DRM fourcc layer format for each plane of
// an n-plane NV12 surface: a single-component luma layer followed by a
// two-component interleaved chroma layer.
func nv12LayerFormats(n int) []uint32 {
	f := make([]uint32, n)
	if n > 0 {
		f[0] = DRMFormatR8
	}
	if n > 1 {
		f[1] = DRMFormatRG88
	}
	return f
}

// planeDimensions returns the pixel dimensions of plane i of an NV12
// surface: full resolution for the luma plane (0), half resolution in
// each dimension for the chroma plane (1).
func planeDimensions(width, height, plane int) (int, int) {
	if plane == 0 {
		return width, height
	}
	return width / 2, height / 2
}
