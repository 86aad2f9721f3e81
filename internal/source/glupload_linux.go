package source

import (
	"fmt"
	"image"
	"image/draw"
	"sync"
	"unsafe"

	astiav "github.com/asticode/go-astiav"
	"github.com/ebitengine/purego"
)

const (
	glTextureArrayTarget uint32 = 0x8C1A // GL_TEXTURE_2D_ARRAY
	glBGRAFormat         uint32 = 0x80E1 // GL_BGRA
	glUnsignedByte       uint32 = 0x1401 // GL_UNSIGNED_BYTE
)

var (
	glOnce          sync.Once
	glOnceErr       error
	glBindTexture   func(target uint32, texture uint32)
	glTexSubImage3D func(target uint32, level, xoffset, yoffset, zoffset, width, height, depth int32, format, typ uint32, pixels unsafe.Pointer)
)

// ensureGL dlopens libGL.so.1 and resolves the two calls Preloaded needs
// to land a decoded frame's pixels in a caller-allocated texture array
// layer, the same purego-over-cgo approach hwbridge's eglBackend uses.
func ensureGL() error {
	glOnce.Do(func() {
		lib, err := purego.Dlopen("libGL.so.1", purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			glOnceErr = fmt.Errorf("source: dlopen libGL.so.1: %w", err)
			return
		}
		purego.RegisterLibFunc(&glBindTexture, lib, "glBindTexture")
		purego.RegisterLibFunc(&glTexSubImage3D, lib, "glTexSubImage3D")
	})
	return glOnceErr
}

// uploadLayer converts frame to packed BGRA via scaler (the same
// libswscale path Streamed's CPU fallback uses) and uploads it into
// layer of array.
func uploadLayer(array uint32, layer int32, frame *astiav.Frame, scaler *bgraScaler) error {
	if err := ensureGL(); err != nil {
		return err
	}
	w, h, pixels, err := scaler.toBGRA(frame)
	if err != nil {
		return fmt.Errorf("source: uploadLayer: %w", err)
	}
	if len(pixels) == 0 {
		return nil
	}
	glBindTexture(glTextureArrayTarget, array)
	glTexSubImage3D(glTextureArrayTarget, 0, 0, 0, layer, int32(w), int32(h), 1, glBGRAFormat, glUnsignedByte, unsafe.Pointer(&pixels[0]))
	return nil
}

// uploadImageLayer uploads a decoded PNG/JPEG frame the same way
// uploadLayer does, converting through image/draw into packed BGRA since
// the standard library's image types carry no BGRA representation of
// their own.
func uploadImageLayer(array uint32, layer int32, img image.Image) error {
	if err := ensureGL(); err != nil {
		return err
	}
	w, h, pixels := bgraFromImage(img)
	if len(pixels) == 0 {
		return nil
	}

	glBindTexture(glTextureArrayTarget, array)
	glTexSubImage3D(glTextureArrayTarget, 0, 0, 0, layer, int32(w), int32(h), 1, glBGRAFormat, glUnsignedByte, unsafe.Pointer(&pixels[0]))
	return nil
}

// bgraFromImage converts img to a tightly packed BGRA buffer via
// image/draw, since the standard library's image types carry no BGRA
// representation of their own. Kept free of any GL call so it can be
// exercised without a display.
func bgraFromImage(img image.Image) (width, height int, pixels []byte) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0, 0, nil
	}

	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)

	pixels = make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		dst := pixels[y*w*4 : (y+1)*w*4]
		for x := 0; x < w; x++ {
			r, g, bch, a := src[x*4], src[x*4+1], src[x*4+2], src[x*4+3]
			dst[x*4], dst[x*4+1], dst[x*4+2], dst[x*4+3] = bch, g, r, a
		}
	}
	return w, h, pixels
}
