package hwbridge

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// eglBackend talks to libEGL/libGL via purego-resolved function
// pointers instead of cgo, the same reason the teacher's own audio stack
// (oto/v2, which already pulls in purego) avoids a build-time link
// dependency: the bridge degrades to a clear runtime error on a headless
// box instead of failing the whole binary's link step.
type eglBackend struct {
	display uintptr
	context uintptr

	eglCreateImage                func(display, context uintptr, target uint32, buffer uintptr, attribs *int32) uintptr
	eglDestroyImage               func(display, image uintptr) int32
	eglExportDMABUFImageQueryMESA func(display, image uintptr, fourcc, numPlanes *int32, modifiers *uint64) int32
	eglExportDMABUFImageMESA      func(display, image uintptr, fds, strides, offsets *int32) int32
	glGenTextures                 func(n int32, textures *uint32)
	glDeleteTextures              func(n int32, textures *uint32)
	glBindTexture                 func(target uint32, texture uint32)
	glEGLImageTargetTexture2DOES  func(target uint32, image uintptr)
	glReadPixels                  func(x, y, width, height int32, format, typ uint32, data uintptr)
}

const (
	eglNone           int32 = 0x3038
	eglLinuxDMABufExt int32 = 0x3270

	eglWidth       int32 = 0x3057
	eglHeight      int32 = 0x3056
	eglFdAttr      int32 = 0x3272 // EGL_DMA_BUF_PLANE0_FD_EXT
	eglOffAttr     int32 = 0x3273 // EGL_DMA_BUF_PLANE0_OFFSET_EXT
	eglStride      int32 = 0x3274 // EGL_DMA_BUF_PLANE0_PITCH_EXT
	eglFourcc      int32 = 0x3271 // EGL_LINUX_DRM_FOURCC_EXT
	eglGLTexture2D uint32 = 0x30B1 // EGL_GL_TEXTURE_2D
	glTexture2D    uint32 = 0x0DE1
)

// NewEGLBackend dlopens libEGL.so.1 and libGL.so.1 and resolves the
// functions this package needs. eglDisplay and eglContext must already be
// initialized and current on the calling thread, matching the original
// context_init's GL setup sequencing. eglExportDMABUFImageQueryMESA and
// eglExportDMABUFImageMESA come from the EGL_MESA_image_dma_buf_export
// extension, the same pair gl_to_drm_prime uses to turn a rendered GL
// texture back into a dma-buf for the encoder side of the bridge.
func NewEGLBackend(eglDisplay, eglContext uintptr) (Backend, error) {
	eglLib, err := purego.Dlopen("libEGL.so.1", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("hwbridge: dlopen libEGL.so.1: %w", err)
	}
	glLib, err := purego.Dlopen("libGL.so.1", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("hwbridge: dlopen libGL.so.1: %w", err)
	}

	b := &eglBackend{display: eglDisplay, context: eglContext}
	purego.RegisterLibFunc(&b.eglCreateImage, eglLib, "eglCreateImage")
	purego.RegisterLibFunc(&b.eglDestroyImage, eglLib, "eglDestroyImage")
	purego.RegisterLibFunc(&b.eglExportDMABUFImageQueryMESA, eglLib, "eglExportDMABUFImageQueryMESA")
	purego.RegisterLibFunc(&b.eglExportDMABUFImageMESA, eglLib, "eglExportDMABUFImageMESA")
	purego.RegisterLibFunc(&b.glGenTextures, glLib, "glGenTextures")
	purego.RegisterLibFunc(&b.glDeleteTextures, glLib, "glDeleteTextures")
	purego.RegisterLibFunc(&b.glBindTexture, glLib, "glBindTexture")
	purego.RegisterLibFunc(&b.glEGLImageTargetTexture2DOES, glLib, "glEGLImageTargetTexture2DOES")
	purego.RegisterLibFunc(&b.glReadPixels, glLib, "glReadPixels")

	return b, nil
}

func (b *eglBackend) ImportImage(fd int, layerFormat uint32, width, height, pitch, offset int, modifier uint64) (uintptr, uint32, error) {
	attribs := []int32{
		eglWidth, int32(width),
		eglHeight, int32(height),
		eglFourcc, int32(layerFormat),
		eglFdAttr, int32(fd),
		eglOffAttr, int32(offset),
		eglStride, int32(pitch),
		eglNone,
	}
	image := b.eglCreateImage(b.display, 0, uint32(eglLinuxDMABufExt), 0, &attribs[0])
	if image == 0 {
		return 0, 0, fmt.Errorf("hwbridge: eglCreateImage failed for fd=%d fourcc=%#x", fd, layerFormat)
	}

	var tex uint32
	b.glGenTextures(1, &tex)
	b.glBindTexture(glTexture2D, tex)
	b.glEGLImageTargetTexture2DOES(glTexture2D, image)

	return image, tex, nil
}

// ExportTexture turns texture (the engine's render target, already holding
// a packed NV12 surface sized per layout) into a dma-buf fd the encoder's
// hardware frame pool can import, mirroring gl_to_drm_prime: wrap the GL
// texture as an EGLImage, then hand that image to the
// EGL_MESA_image_dma_buf_export pair to learn its backing fd.
func (b *eglBackend) ExportTexture(texture uint32, layout NV12Layout) (int, error) {
	attribs := []int32{eglNone}
	image := b.eglCreateImage(b.display, b.context, eglGLTexture2D, uintptr(texture), &attribs[0])
	if image == 0 {
		return 0, fmt.Errorf("hwbridge: eglCreateImage failed for texture %d", texture)
	}
	defer b.eglDestroyImage(b.display, image)

	var fourcc, numPlanes int32
	var modifiers [1]uint64
	if b.eglExportDMABUFImageQueryMESA(b.display, image, &fourcc, &numPlanes, &modifiers[0]) == 0 {
		return 0, fmt.Errorf("hwbridge: eglExportDMABUFImageQueryMESA failed for texture %d", texture)
	}
	if numPlanes < 1 {
		return 0, fmt.Errorf("hwbridge: eglExportDMABUFImageQueryMESA: texture %d exported 0 planes", texture)
	}

	var fd, stride, offset int32
	if b.eglExportDMABUFImageMESA(b.display, image, &fd, &stride, &offset) == 0 {
		return 0, fmt.Errorf("hwbridge: eglExportDMABUFImageMESA failed for texture %d", texture)
	}
	if fd < 0 {
		return 0, fmt.Errorf("hwbridge: eglExportDMABUFImageMESA returned invalid fd for texture %d", texture)
	}
	return int(fd), nil
}

func (b *eglBackend) DestroyImage(image uintptr) {
	b.eglDestroyImage(b.display, image)
}

func (b *eglBackend) DeleteTexture(tex uint32) {
	b.glDeleteTextures(1, &tex)
}
