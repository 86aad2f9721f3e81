package source

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"

	astiav "github.com/asticode/go-astiav"

	"sve2/internal/clock"
	"sve2/internal/decode"
	"sve2/internal/demux"
	"sve2/internal/hwbridge"
	"sve2/internal/resample"
	"sve2/internal/ringchan"
	"sve2/internal/streamix"
)

// Preloaded decodes an entire stream up front into a GL texture array
// (video) and a contiguous PCM buffer (audio), trading startup latency for
// allocation-free, seek-anywhere playback.
type Preloaded struct {
	array      uint32 // caller-allocated GL_TEXTURE_2D_ARRAY name
	frameTimes []int64 // ns; frameTimes[i] is the PTS->end-of-frame time of layer i
	layerCount int32

	audio      []byte
	audioPos   int
	sampleRate int
	bytesPerSample int
}

// OpenPreloaded decodes path's selected video/audio streams fully into
// memory. array must already be an allocated GL_TEXTURE_2D_ARRAY object
// with storage for at least as many layers as the stream has frames; this
// mirrors the teacher's pattern of the GUI thread owning all GL object
// creation, with decode-and-upload work handed to this function.
func OpenPreloaded(path string, video streamix.Ref, audio *streamix.Ref, array uint32, audioParams Params) (*Preloaded, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("source: AllocFormatContext: nil")
	}
	defer fc.Free()
	if err := fc.OpenInput(path, nil, nil); err != nil {
		return nil, fmt.Errorf("source: OpenInput: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("source: FindStreamInfo: %w", err)
	}

	vAbs, ok := video.Resolve(fc)
	if !ok {
		return nil, fmt.Errorf("source: video stream %s not found", video.String())
	}

	vChan := ringchan.New[demux.PacketMsg](64, 1.5)
	selected := []demux.Selected{{AbsoluteIndex: vAbs, Channel: vChan}}

	aAbs := -1
	var aChan *ringchan.Channel[demux.PacketMsg]
	if audio != nil {
		if abs, ok := audio.Resolve(fc); ok {
			aAbs = abs
			aChan = ringchan.New[demux.PacketMsg](256, 1.5)
			selected = append(selected, demux.Selected{AbsoluteIndex: aAbs, Channel: aChan})
		}
	}

	vDec, err := decode.New(fc, selected[0], false)
	if err != nil {
		return nil, fmt.Errorf("source: video decoder: %w", err)
	}
	defer vDec.Close()

	p := &Preloaded{array: array, sampleRate: audioParams.SampleRate}

	var aDec *decode.Decoder
	var resampler *resample.Resampler
	if aAbs >= 0 {
		aDec, err = decode.New(fc, selected[1], false)
		if err != nil {
			return nil, fmt.Errorf("source: audio decoder: %w", err)
		}
		defer aDec.Close()
		resampler, err = resample.New(resample.Params(audioParams))
		if err != nil {
			return nil, fmt.Errorf("source: resampler: %w", err)
		}
		defer resampler.Close()
		p.bytesPerSample = bytesPerSample(audioParams.SampleFormat) * audioParams.ChannelLayout.Channels()
	}

	worker := demux.Start(fc, selected, 1<<20)
	defer func() {
		worker.Exit()
		_ = worker.Join()
	}()

	frame := astiav.AllocFrame()
	defer frame.Free()
	tb := fc.Streams()[vAbs].TimeBase()

	var scaler bgraScaler
	defer scaler.close()

	var layer int32
	for {
		res, err := vDec.Decode(frame, clock.DeadlineInfinite)
		if err != nil {
			return nil, fmt.Errorf("source: preload decode video: %w", err)
		}
		if res == decode.ResultEOF {
			break
		}
		if err := uploadLayer(array, layer, frame, &scaler); err != nil {
			return nil, fmt.Errorf("source: preload upload layer %d: %w", layer, err)
		}
		pts := decode.RebaseTS(frame.Pts(), int64(tb.Num()), int64(tb.Den()))
		dur := decode.RebaseTS(frame.Duration(), int64(tb.Num()), int64(tb.Den()))
		p.frameTimes = append(p.frameTimes, pts+dur)
		frame.Unref()
		layer++
	}
	p.layerCount = layer

	if aDec != nil {
		aFrame := astiav.AllocFrame()
		defer aFrame.Free()
		resampled := astiav.AllocFrame()
		defer resampled.Free()

		for {
			res, err := aDec.Decode(aFrame, clock.DeadlineInfinite)
			if err != nil {
				return nil, fmt.Errorf("source: preload decode audio: %w", err)
			}
			if res == decode.ResultEOF {
				break
			}
			if err := resampler.Convert(aFrame, resampled); err != nil {
				return nil, fmt.Errorf("source: preload resample audio: %w", err)
			}
			n, err := resampled.ImageBufferSize(1)
			if err != nil {
				return nil, fmt.Errorf("source: preload resampled buffer size: %w", err)
			}
			buf := make([]byte, n)
			if _, err := resampled.ImageCopyToBuffer(buf, 1); err != nil {
				return nil, fmt.Errorf("source: preload copy resampled: %w", err)
			}
			p.audio = append(p.audio, buf...)
			aFrame.Unref()
		}
	}

	return p, nil
}

// OpenImageSequence decodes a numbered PNG/JPEG sequence (e.g.
// "frame%04d.png") into a Preloaded video-only source at fps frames per
// second, the dedicated importer for animated formats no codec library
// covers.
func OpenImageSequence(pattern string, fps int, array uint32) (*Preloaded, error) {
	if fps <= 0 {
		return nil, errors.New("source: OpenImageSequence: fps must be positive")
	}
	p := &Preloaded{array: array}
	frameDur := decode.NSPerSec / int64(fps)

	var layer int32
	for {
		name := fmt.Sprintf(pattern, layer)
		f, err := os.Open(name)
		if err != nil {
			if layer == 0 {
				return nil, fmt.Errorf("source: OpenImageSequence: no frame at %s: %w", name, err)
			}
			break
		}
		img, format, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("source: OpenImageSequence: decode %s: %w", name, err)
		}
		if format != "png" && format != "jpeg" {
			return nil, fmt.Errorf("source: OpenImageSequence: unsupported format %q for %s", format, name)
		}
		if err := uploadImageLayer(array, layer, img); err != nil {
			return nil, fmt.Errorf("source: OpenImageSequence: upload layer %d: %w", layer, err)
		}
		p.frameTimes = append(p.frameTimes, int64(layer+1)*frameDur)
		layer++
	}
	p.layerCount = layer
	return p, nil
}

func bytesPerSample(f astiav.SampleFormat) int {
	switch f {
	case astiav.SampleFormatS16:
		return 2
	case astiav.SampleFormatS32, astiav.SampleFormatFlt:
		return 4
	case astiav.SampleFormatDbl:
		return 8
	default:
		return 2
	}
}

// Close is a no-op: the GL texture array and any GPU resources are owned
// by the caller that allocated them, not by Preloaded.
func (p *Preloaded) Close() error { return nil }

// Seek is effectively free: VideoTextureAt/AudioSamples binary-search or
// index into already-resident data, so Seek only needs to move the audio
// cursor (video has no cursor; VideoTextureAt is always given an absolute
// ts).
func (p *Preloaded) Seek(ts int64) error {
	if p.sampleRate > 0 && p.bytesPerSample > 0 {
		idx := ts * int64(p.sampleRate) / decode.NSPerSec
		pos := int(idx) * p.bytesPerSample
		if pos < 0 {
			pos = 0
		}
		if pos > len(p.audio) {
			pos = len(p.audio)
		}
		p.audioPos = pos
	}
	return nil
}

// VideoTextureAt binary-searches the frame-end-time array for the first
// layer whose coverage includes ts.
func (p *Preloaded) VideoTextureAt(ts int64) (VideoTexture, error) {
	if len(p.frameTimes) == 0 {
		return VideoTexture{}, errors.New("source: Preloaded has no video frames")
	}
	idx := sort.Search(len(p.frameTimes), func(i int) bool { return p.frameTimes[i] > ts })
	if idx >= len(p.frameTimes) {
		idx = len(p.frameTimes) - 1
	}
	return VideoTexture{Kind: KindLayeredArray, Array: p.array, Index: int32(idx)}, nil
}

// AudioSamples copies min(want, remaining) bytes starting at the cursor
// and advances it, the preloaded variant's entire job per spec.
func (p *Preloaded) AudioSamples(out []byte, want int) (int, error) {
	if len(out) < want {
		want = len(out)
	}
	remaining := len(p.audio) - p.audioPos
	if want > remaining {
		want = remaining
	}
	if want <= 0 {
		return 0, nil
	}
	copy(out[:want], p.audio[p.audioPos:p.audioPos+want])
	p.audioPos += want
	return want, nil
}

// uploadLayer and uploadImageLayer are implemented in glupload_linux.go:
// both convert their source pixel data to packed BGRA (the bgraScaler's
// libswscale path for decoded frames, image/draw for still images) and
// land it in layer of array via glTexSubImage3D.
