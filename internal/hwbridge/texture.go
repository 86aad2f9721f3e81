package hwbridge

import astiav "github.com/asticode/go-astiav"

const maxPlanes = 4

// Texture is the bridge's handle to a mapped surface: up to maxPlanes GL
// textures, each backed by an EGLImage created from a DRM-PRIME dma-buf
// fd. A Texture from Blank is the "no image bound yet" state; a Go zero
// value is not, since its fd slots hold 0 rather than -1.
type Texture struct {
	format astiav.PixelFormat
	planes int

	glTextures [maxPlanes]uint32
	eglImages  [maxPlanes]uintptr
	fds        [maxPlanes]int
}

// Blank returns a Texture with no image state bound, ready to be filled by
// ImportFrame.
func Blank(format astiav.PixelFormat) Texture {
	t := Texture{format: format}
	clearFds(&t)
	return t
}

// FromGL wraps caller-owned GL textures (no EGLImage/dma-buf of their
// own) for use as an export target, e.g. the off-screen framebuffer's
// color attachment before ExportNV12 maps it to a DRM-PRIME frame.
func FromGL(format astiav.PixelFormat, textures ...uint32) Texture {
	t := Texture{format: format, planes: len(textures)}
	copy(t.glTextures[:], textures)
	clearFds(&t)
	return t
}

// clearFds sets every fd slot to -1, the "not set" sentinel. 0 is a valid
// fd (stdin), so it cannot double as "unmapped".
func clearFds(t *Texture) {
	for i := range t.fds {
		t.fds[i] = -1
	}
}

// IsNull reports whether the texture holds no GL textures, EGLImages, or
// dma-buf fds. Checking all three keeps IsNull accurate regardless of
// which lifecycle stage last touched this value.
func (t *Texture) IsNull() bool {
	for i := 0; i < maxPlanes; i++ {
		if t.glTextures[i] != 0 || t.eglImages[i] != 0 || t.fds[i] != -1 {
			return false
		}
	}
	return true
}

// Planes reports how many GL texture/EGLImage planes are bound.
func (t *Texture) Planes() int { return t.planes }

// GLTexture returns the GL texture object for the given plane index.
func (t *Texture) GLTexture(plane int) uint32 { return t.glTextures[plane] }
