package hwbridge

// Backend is the GPU-interop surface this package needs: turning a
// dma-buf-backed DRM plane into a sampleable GL texture, and the reverse
// direction, exporting a rendered GL texture back out as a DRM-PRIME
// surface an encoder's hardware frame pool can consume. Exactly one
// concrete Backend ships today (eglBackend, VAAPI/DRM on Linux); the
// interface is the documented seam for other GPU vendors spec.md's
// Non-goals leave unimplemented.
type Backend interface {
	// ImportImage creates an EGLImage (and a bound GL texture) for one
	// plane of desc, using the given DRM fourcc layer format.
	ImportImage(fd int, layerFormat uint32, width, height, pitch, offset int, modifier uint64) (image uintptr, texture uint32, err error)

	// ExportTexture exports a GL texture's backing storage as a dma-buf,
	// returning the owning fd. The EGL backend does not use layout.
	ExportTexture(texture uint32, layout NV12Layout) (fd int, err error)

	// DestroyImage releases an EGLImage created by ImportImage.
	DestroyImage(image uintptr)

	// DeleteTexture releases a GL texture object.
	DeleteTexture(texture uint32)
}

var active Backend

// SetBackend installs the Backend used by ImportFrame/ExportNV12/Unmap.
// Call once during engine startup after a GL/EGL context has been made
// current on the calling thread. Tests substitute a fake Backend instead
// of calling SetBackend.
func SetBackend(b Backend) { active = b }
