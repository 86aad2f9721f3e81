package source

import (
	"fmt"

	astiav "github.com/asticode/go-astiav"
)

// bgraScaler converts a software-decoded frame to a tightly packed BGRA
// buffer via libswscale, reused across calls as long as the source
// dimensions and pixel format stay stable. This is the software-decode
// counterpart to the hardware bridge's DRM-PRIME import path.
type bgraScaler struct {
	ssc        *astiav.SoftwareScaleContext
	dst        *astiav.Frame
	srcW, srcH int
	srcPix     astiav.PixelFormat
}

func (s *bgraScaler) close() {
	if s.dst != nil {
		s.dst.Free()
		s.dst = nil
	}
	if s.ssc != nil {
		s.ssc.Free()
		s.ssc = nil
	}
}

func (s *bgraScaler) ensure(src *astiav.Frame) error {
	sw, sh := src.Width(), src.Height()
	sp := src.PixelFormat()
	if s.ssc != nil && sw == s.srcW && sh == s.srcH && sp == s.srcPix {
		return nil
	}
	s.close()

	ssc, err := astiav.CreateSoftwareScaleContext(
		sw, sh, sp,
		sw, sh, astiav.PixelFormatBgra,
		astiav.NewSoftwareScaleContextFlags(),
	)
	if err != nil {
		return fmt.Errorf("source: CreateSoftwareScaleContext(%dx%d %v -> BGRA): %w", sw, sh, sp, err)
	}

	dst := astiav.AllocFrame()
	dst.SetWidth(sw)
	dst.SetHeight(sh)
	dst.SetPixelFormat(astiav.PixelFormatBgra)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ssc.Free()
		return fmt.Errorf("source: dst.AllocBuffer: %w", err)
	}

	s.ssc = ssc
	s.dst = dst
	s.srcW, s.srcH, s.srcPix = sw, sh, sp
	return nil
}

// toBGRA scales src into the reused dst frame and copies the result into
// a newly allocated, contiguous BGRA Go slice.
func (s *bgraScaler) toBGRA(src *astiav.Frame) (width, height int, pixels []byte, err error) {
	if err := s.ensure(src); err != nil {
		return 0, 0, nil, err
	}
	if err := s.ssc.ScaleFrame(src, s.dst); err != nil {
		return 0, 0, nil, fmt.Errorf("source: ScaleFrame: %w", err)
	}
	n, err := s.dst.ImageBufferSize(1)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("source: ImageBufferSize: %w", err)
	}
	out := make([]byte, n)
	if _, err := s.dst.ImageCopyToBuffer(out, 1); err != nil {
		return 0, 0, nil, fmt.Errorf("source: ImageCopyToBuffer: %w", err)
	}
	return s.srcW, s.srcH, out, nil
}
