package source

import (
	"errors"
	"fmt"

	astiav "github.com/asticode/go-astiav"

	"sve2/internal/clock"
	"sve2/internal/decode"
	"sve2/internal/demux"
	"sve2/internal/ffmpegutil"
	"sve2/internal/hwbridge"
	"sve2/internal/resample"
	"sve2/internal/ringchan"
	"sve2/internal/streamix"
)

// Streamed demuxes and decodes on demand: a demuxer worker goroutine feeds
// per-stream channels, and decoders pull from those channels only as new
// frames are requested.
type Streamed struct {
	fc       *astiav.FormatContext
	worker   *demux.Worker
	hardware bool

	videoAbs    int
	videoDec    *decode.Decoder
	videoChan   *ringchan.Channel[demux.PacketMsg]
	videoFrame  *astiav.Frame
	nextVidPTS  int64 // ns, end time of the frame currently exposed
	hasVidFrame bool
	curTexture  hwbridge.Texture
	cpuScaler   bgraScaler
	curCPU      VideoTexture

	audioAbs      int // -1 if no audio stream selected
	audioDec      *decode.Decoder
	audioChan     *ringchan.Channel[demux.PacketMsg]
	audioFrame    *astiav.Frame
	resampler     *resample.Resampler
	resampled     *astiav.Frame
	resampledLeft int // unread bytes remaining in resampled, at resampledOff
	resampledOff  int
	audioEOF      bool
	audioOut      Params // resampler's output format, needed to size seek drops
}

// OpenStreamed opens path, selects the video and (optionally) audio
// streams video/audio name, and starts the demuxer worker. A nil audio
// skips audio entirely; an audio Ref that does not resolve in the
// container also leaves the source without audio. formatOptions is a
// whitespace-separated "-key=value" string applied to the format
// context's open dictionary (e.g. "-rtsp_transport=tcp"), the way the
// teacher's applyFmtParams feeds camera.go's per-stream FFmpegParams into
// OpenInput's rd dictionary; pass "" for no extra options.
func OpenStreamed(path string, video streamix.Ref, audio *streamix.Ref, hardware bool, bufferedPackets int, audioParams Params, formatOptions string) (*Streamed, error) {
	if hardware {
		// drmDescriptorOf has no way to pull an AVDRMFrameDescriptor out of a
		// decoded astiav.Frame: the binding exposes no accessor for it, so
		// remapCurrentFrame's hardware branch can never succeed today. Fail
		// here instead of after decode has already started.
		return nil, errors.New("source: hardware decode is not supported: go-astiav exposes no AVDRMFrameDescriptor accessor")
	}
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("source: AllocFormatContext: nil")
	}

	var rd *astiav.Dictionary
	if formatOptions != "" {
		rd = astiav.NewDictionary()
		defer rd.Free()
		ffmpegutil.Apply(ffmpegutil.ParseOptions(formatOptions), rd)
	}
	if err := fc.OpenInput(path, nil, rd); err != nil {
		fc.Free()
		return nil, fmt.Errorf("source: OpenInput: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("source: FindStreamInfo: %w", err)
	}

	vAbs, ok := video.Resolve(fc)
	if !ok {
		fc.Free()
		return nil, fmt.Errorf("source: video stream %s not found", video.String())
	}

	selected := []demux.Selected{{AbsoluteIndex: vAbs, Channel: ringchan.New[demux.PacketMsg](bufferedPackets, -1)}}
	aAbs := -1
	if audio != nil {
		if abs, ok := audio.Resolve(fc); ok {
			aAbs = abs
			selected = append(selected, demux.Selected{AbsoluteIndex: aAbs, Channel: ringchan.New[demux.PacketMsg](bufferedPackets, -1)})
		}
	}

	s := &Streamed{
		fc:         fc,
		hardware:   hardware,
		videoAbs:   vAbs,
		videoChan:  selected[0].Channel,
		videoFrame: astiav.AllocFrame(),
		curTexture: hwbridge.Blank(astiav.PixelFormatNv12),
		audioAbs:   -1,
	}

	vDec, err := decode.New(fc, selected[0], hardware)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("source: video decoder: %w", err)
	}
	s.videoDec = vDec

	if aAbs >= 0 {
		aSel := selected[1]
		aDec, err := decode.New(fc, aSel, false)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("source: audio decoder: %w", err)
		}
		s.audioAbs = aAbs
		s.audioChan = aSel.Channel
		s.audioDec = aDec
		s.audioFrame = astiav.AllocFrame()
		s.resampled = astiav.AllocFrame()

		par := fc.Streams()[aAbs].CodecParameters()
		rs, err := resample.New(resample.Params(audioParams))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("source: resampler: %w", err)
		}
		s.resampler = rs
		s.audioOut = audioParams
		_ = par
	}

	s.worker = demux.Start(fc, selected, bufferedPackets)
	return s, nil
}

// Close tears down the decoders, resampler, demuxer worker, and the
// underlying container, in roughly the reverse order they were created.
func (s *Streamed) Close() error {
	if s.worker != nil {
		s.worker.Exit()
		_ = s.worker.Join()
	}
	if s.videoDec != nil {
		s.videoDec.Close()
	}
	if s.audioDec != nil {
		s.audioDec.Close()
	}
	if s.resampler != nil {
		s.resampler.Close()
	}
	if s.videoFrame != nil {
		s.videoFrame.Free()
	}
	if s.audioFrame != nil {
		s.audioFrame.Free()
	}
	if s.resampled != nil {
		s.resampled.Free()
	}
	hwbridge.Unmap(&s.curTexture, false)
	s.cpuScaler.close()
	if s.fc != nil {
		s.fc.Free()
	}
	return nil
}

// Seek relocates the container to ts (nanoseconds) and synchronizes both
// decoders to the seek barrier before returning.
func (s *Streamed) Seek(ts int64) error {
	avTS := astiav.RescaleQ(ts, astiav.NewRational(1, int(decode.NSPerSec)), s.fc.Streams()[s.videoAbs].TimeBase())
	s.worker.Seek(s.videoAbs, avTS, astiav.NewSeekFlags(astiav.SeekFlagBackward))

	if !s.videoDec.WaitForSeek(clock.DeadlineInfinite) {
		return errors.New("source: seek: video decoder did not observe a seek marker")
	}
	s.hasVidFrame = false
	hwbridge.Unmap(&s.curTexture, false)

	if s.audioDec != nil {
		if !s.audioDec.WaitForSeek(clock.DeadlineInfinite) {
			return errors.New("source: seek: audio decoder did not observe a seek marker")
		}
		s.audioEOF = false
		s.resampledLeft = 0
		s.resampledOff = 0
		// Decode forward to the first audio frame straddling ts, tell the
		// resampler to drop the part of its output that lands before ts,
		// then convert that frame, so the first sample handed back by
		// AudioSamples afterward is ts exactly (DropOutput runs before
		// Convert; see DESIGN.md, internal/resample).
		for {
			res, err := s.audioDec.Decode(s.audioFrame, clock.DeadlineInfinite)
			if err != nil {
				return fmt.Errorf("source: seek: decode audio: %w", err)
			}
			if res == decode.ResultEOF {
				s.audioEOF = true
				break
			}
			tb := s.fc.Streams()[s.audioAbs].TimeBase()
			framePTS := decode.RebaseTS(s.audioFrame.Pts(), int64(tb.Num()), int64(tb.Den()))
			frameDur := decode.RebaseTS(int64(s.audioFrame.NbSamples()), 1, int64(s.audioFrame.SampleRate()))
			frameEnd := framePTS + frameDur
			if frameEnd < ts {
				s.audioFrame.Unref()
				continue
			}

			// ts falls inside this frame: tell the resampler up front how
			// many leading output samples to discard, so the single
			// Convert call below produces output that already starts at
			// ts instead of at this frame's first sample.
			offsetNS := ts - framePTS
			if offsetNS < 0 {
				offsetNS = 0
			} else if offsetNS > frameDur {
				offsetNS = frameDur
			}
			dropFrames := int(astiav.RescaleQ(offsetNS, astiav.NewRational(1, int(decode.NSPerSec)), astiav.NewRational(1, s.audioOut.SampleRate)))
			if dropFrames > 0 {
				if err := s.resampler.DropOutput(dropFrames); err != nil {
					s.audioFrame.Unref()
					return fmt.Errorf("source: seek: drop output: %w", err)
				}
			}

			if err := s.resampler.Convert(s.audioFrame, s.resampled); err != nil {
				s.audioFrame.Unref()
				return fmt.Errorf("source: seek: resample: %w", err)
			}
			s.audioFrame.Unref()

			n, err := s.resampled.ImageBufferSize(1)
			if err != nil {
				return fmt.Errorf("source: seek: resampled buffer size: %w", err)
			}
			s.resampledOff = 0
			s.resampledLeft = n
			break
		}
	}

	// Decode forward to the first video frame whose end covers ts.
	for {
		res, err := s.videoDec.Decode(s.videoFrame, clock.DeadlineInfinite)
		if err != nil {
			return fmt.Errorf("source: seek: decode video: %w", err)
		}
		if res == decode.ResultEOF {
			break
		}
		if err := s.remapCurrentFrame(); err != nil {
			return err
		}
		tb := s.fc.Streams()[s.videoAbs].TimeBase()
		pts := decode.RebaseTS(s.videoFrame.Pts(), int64(tb.Num()), int64(tb.Den()))
		dur := decode.RebaseTS(s.videoFrame.Duration(), int64(tb.Num()), int64(tb.Den()))
		s.nextVidPTS = pts + dur
		s.videoFrame.Unref()
		if s.nextVidPTS >= ts {
			break
		}
	}
	return nil
}

func (s *Streamed) remapCurrentFrame() error {
	if !s.hardware {
		w, h, pixels, err := s.cpuScaler.toBGRA(s.videoFrame)
		if err != nil {
			return fmt.Errorf("source: remap frame: %w", err)
		}
		s.curCPU = VideoTexture{Kind: KindCPUFrame, Pixels: pixels, Width: w, Height: h}
		s.hasVidFrame = true
		return nil
	}

	hwbridge.Unmap(&s.curTexture, false)
	desc, err := drmDescriptorOf(s.videoFrame)
	if err != nil {
		return fmt.Errorf("source: remap frame: %w", err)
	}
	tex, err := hwbridge.ImportFrame(desc)
	if err != nil {
		return fmt.Errorf("source: remap frame: %w", err)
	}
	s.curTexture = tex
	s.hasVidFrame = true
	return nil
}

// VideoTextureAt decodes forward until the frame covering ts is current.
// Every frame it decodes is remapped in turn (through the hardware bridge,
// or bgraScaler when hardware is false), so a call that decodes several
// frames remaps each of them, not only the last.
func (s *Streamed) VideoTextureAt(ts int64) (VideoTexture, error) {
	decodedAny := false
	for !s.hasVidFrame || s.nextVidPTS < ts {
		res, err := s.videoDec.Decode(s.videoFrame, clock.DeadlineNow)
		if err != nil {
			return VideoTexture{}, fmt.Errorf("source: decode video: %w", err)
		}
		if res != decode.ResultSuccess {
			break
		}
		tb := s.fc.Streams()[s.videoAbs].TimeBase()
		pts := decode.RebaseTS(s.videoFrame.Pts(), int64(tb.Num()), int64(tb.Den()))
		dur := decode.RebaseTS(s.videoFrame.Duration(), int64(tb.Num()), int64(tb.Den()))
		if err := s.remapCurrentFrame(); err != nil {
			s.videoFrame.Unref()
			return VideoTexture{}, err
		}
		s.nextVidPTS = pts + dur
		s.videoFrame.Unref()
		decodedAny = true
	}
	_ = decodedAny
	if !s.hardware {
		return s.curCPU, nil
	}
	return VideoTexture{Kind: KindPlanarPlanes, Planes: s.curTexture, SWFormat: s.videoDec.SWFormat()}, nil
}

// AudioSamples copies up to want bytes of resampled audio into out,
// decoding and resampling further source audio as needed.
func (s *Streamed) AudioSamples(out []byte, want int) (int, error) {
	if s.audioDec == nil {
		return 0, nil
	}
	if len(out) < want {
		want = len(out)
	}

	written := 0
	for written < want {
		if s.resampledLeft > 0 {
			data, err := s.resampled.Data().Bytes(0)
			if err != nil {
				return written, fmt.Errorf("source: audio resampled bytes: %w", err)
			}
			n := copy(out[written:want], data[s.resampledOff:s.resampledOff+s.resampledLeft])
			written += n
			s.resampledOff += n
			s.resampledLeft -= n
			continue
		}
		if s.audioEOF {
			break
		}

		res, err := s.audioDec.Decode(s.audioFrame, clock.DeadlineNow)
		if err != nil {
			return written, fmt.Errorf("source: decode audio: %w", err)
		}
		switch res {
		case decode.ResultSuccess:
			if err := s.resampler.Convert(s.audioFrame, s.resampled); err != nil {
				s.audioFrame.Unref()
				return written, err
			}
			s.audioFrame.Unref()
			n, err := s.resampled.ImageBufferSize(1)
			if err != nil {
				return written, fmt.Errorf("source: resampled buffer size: %w", err)
			}
			s.resampledOff = 0
			s.resampledLeft = n
		case decode.ResultEOF:
			s.audioEOF = true
		default:
			return written, nil
		}
	}
	return written, nil
}

var errNoDRMFrame = errors.New("source: frame is not backed by a DRM-PRIME hardware surface")

// drmDescriptorOf always returns an error: errNoDRMFrame for a frame that
// is not a VAAPI surface, otherwise an error saying DRM-PRIME export is not
// wired, because go-astiav's Go-level API does not expose
// AVDRMFrameDescriptor (see DESIGN.md, internal/source). Only
// remapCurrentFrame's hardware=true branch calls this, and OpenStreamed
// rejects hardware=true; the software path (the teacher's own default)
// converts through bgraScaler instead and never reaches here.
func drmDescriptorOf(f *astiav.Frame) (hwbridge.DRMDescriptor, error) {
	if f.PixelFormat() != astiav.PixelFormatVaapi {
		return hwbridge.DRMDescriptor{}, errNoDRMFrame
	}
	return hwbridge.DRMDescriptor{}, errors.New("source: DRM-PRIME export not wired for this build")
}
