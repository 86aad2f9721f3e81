package hwbridge

// DRM fourcc codes used by the NV12 zero-copy path. Values match the
// kernel's drm_fourcc.h.
const (
	DRMFormatNV12 uint32 = 0x3231564e // 'NV12'
	DRMFormatR8   uint32 = 0x20203852 // 'R8  ', the Y-plane layer format
	DRMFormatRG88 uint32 = 0x38384752 // 'RG88', the interleaved UV-plane layer format
)

// DRMPlane describes one dma-buf-backed plane of a DRM-PRIME frame: the
// fd owning the memory, the byte offset of this plane's data within that
// fd, the row pitch, and the format modifier (tiling layout) the GPU used
// to write it.
type DRMPlane struct {
	Fd       int
	Offset   int
	Pitch    int
	Modifier uint64
}

// DRMDescriptor is the plane layout of one hardware frame, in the shape
// av_hwframe_map(..., AV_PIX_FMT_DRM_PRIME) produces: a DRM fourcc for the
// overall surface plus one DRMPlane per layer the GPU driver exposed.
//
// For the NV12 single-object packing this bridge targets, Planes has
// exactly two entries sharing one Fd: a DRMFormatR8 luma layer at
// offset 0, and a DRMFormatRG88 chroma layer at the Y-plane's
// height-aligned-to-64 offset (see ComputeNV12Layout).
type DRMDescriptor struct {
	Width, Height int
	Planes        []DRMPlane
}

// NV12Descriptor builds the DRMDescriptor for a single-dma-buf-object NV12
// surface of the given visible dimensions, using fd as the backing
// allocation for both layers. This is the shape ExportNV12 produces and
// ImportFrame expects for a decoded VAAPI NV12 frame.
func NV12Descriptor(fd int, width, height int, modifier uint64) DRMDescriptor {
	l := ComputeNV12Layout(width, height)
	return DRMDescriptor{
		Width:  width,
		Height: height,
		Planes: []DRMPlane{
			{Fd: fd, Offset: 0, Pitch: l.YPitch, Modifier: modifier},
			{Fd: fd, Offset: l.UVOffsetBytes, Pitch: l.UVPitch, Modifier: modifier},
		},
	}
}
