// Package engine implements the per-process context: the preview/render
// mode split, the per-frame begin/end protocol, and the audio clock that
// is the authoritative timeline in preview mode and the derived timeline
// in render mode.
package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"

	astiav "github.com/asticode/go-astiav"
	"github.com/hajimehoshi/oto/v2"

	"sve2/internal/encode"
	"sve2/internal/hwbridge"
)

// Mode selects between on-screen preview playback and off-screen,
// muxed-file rendering.
type Mode int

const (
	ModePreview Mode = iota
	ModeRender
)

// Params describes the engine's frame and audio format, shared by both
// modes.
type Params struct {
	Width, Height, FPS, SampleRate int
	ChannelLayout                  astiav.ChannelLayout
	SampleFormat                   astiav.SampleFormat
}

// previewFIFOBufferedFrames bounds how far ahead of the device the preview
// audio FIFO is allowed to fill before map_audio reports no free space,
// mirroring the hardware frame pool's own 4-frame headroom (see
// internal/encode's hwFramePoolSize).
const previewFIFOBufferedFrames = 4

// Engine is the per-process context. Exactly one of the preview or render
// fields is populated, selected by mode.
type Engine struct {
	mode        Mode
	params      Params
	frameNumber int64

	audioMu          sync.Mutex
	audioTimerOffset int64
	samplesSinceSeek int64
	samplesThisFrame int64
	totalSamples     int64
	audioFrameTarget int64 // render mode: desired totalSamples once this frame's audio is submitted
	bytesPerFrame    int

	// preview mode
	fifo      *byteFifo
	staging   []byte
	otoCtx    *oto.Context
	otoPlayer oto.Player
	pipeW     *io.PipeWriter

	// render mode
	muxer          *encode.Muxer
	videoStreamIdx int
	audioStreamIdx int
	renderTexture  hwbridge.Texture
	pendingAudio   *astiav.Frame
}

// New opens an engine in the given mode. Only ModePreview is accepted;
// ModeRender returns an error (see the comment below), and outputPath is
// not used.
func New(mode Mode, p Params, outputPath string) (*Engine, error) {
	if p.SampleRate <= 0 || p.FPS <= 0 {
		return nil, errors.New("engine: SampleRate and FPS must be positive")
	}

	e := &Engine{mode: mode, params: p, renderTexture: hwbridge.Blank(astiav.PixelFormatRgba)}
	e.bytesPerFrame = bytesPerSample(p.SampleFormat) * p.ChannelLayout.Channels()
	if e.bytesPerFrame <= 0 {
		return nil, errors.New("engine: invalid sample format/channel layout")
	}

	switch mode {
	case ModePreview:
		if err := e.initPreviewAudio(); err != nil {
			return nil, err
		}
	case ModeRender:
		// EndFrame's ModeRender path always calls frameFromDRM, which always
		// fails: go-astiav exposes no accessor for populating an AVFrame's
		// AVDRMFrameDescriptor from a raw dma-buf fd. Fail at construction
		// instead of letting every EndFrame call discover this at runtime.
		return nil, errors.New("engine: ModeRender is not supported: go-astiav exposes no AVDRMFrameDescriptor accessor for frameFromDRM")
	default:
		return nil, fmt.Errorf("engine: unknown mode %d", mode)
	}
	return e, nil
}

func (e *Engine) initPreviewAudio() error {
	ctx, ready, err := oto.NewContext(e.params.SampleRate, e.params.ChannelLayout.Channels(), oto.FormatSignedInt16LE)
	if err != nil {
		return fmt.Errorf("engine: oto.NewContext: %w", err)
	}
	go func() { <-ready }()

	pr, pw := io.Pipe()
	player := ctx.NewPlayer(pr)
	if player == nil {
		pw.Close()
		return errors.New("engine: oto NewPlayer failed")
	}
	player.Play()

	thresholdFrames := e.params.SampleRate / e.params.FPS * previewFIFOBufferedFrames
	e.fifo = newByteFifo()
	e.staging = make([]byte, thresholdFrames*e.bytesPerFrame)
	e.otoCtx = ctx
	e.otoPlayer = player
	e.pipeW = pw
	go e.fifo.feed(pw)
	return nil
}

func (e *Engine) initRenderOutput(outputPath string) error {
	m, err := encode.NewMuxer(outputPath)
	if err != nil {
		return err
	}

	videoCodec := astiav.FindEncoderByName("h264_vaapi")
	if videoCodec == nil {
		m.Close()
		return errors.New("engine: h264_vaapi encoder not found")
	}
	vIdx, err := m.NewStream(encode.Params{Width: e.params.Width, Height: e.params.Height, FPS: e.params.FPS}, videoCodec, true, nil)
	if err != nil {
		m.Close()
		return fmt.Errorf("engine: video stream: %w", err)
	}

	audioCodec := astiav.FindEncoder(astiav.CodecIDPcmS16le)
	if audioCodec == nil {
		m.Close()
		return errors.New("engine: pcm_s16le encoder not found")
	}
	aIdx, err := m.NewStream(encode.Params{SampleRate: e.params.SampleRate, ChannelLayout: e.params.ChannelLayout}, audioCodec, false, nil)
	if err != nil {
		m.Close()
		return fmt.Errorf("engine: audio stream: %w", err)
	}

	if err := m.Begin(); err != nil {
		m.Close()
		return err
	}

	e.muxer = m
	e.videoStreamIdx = vIdx
	e.audioStreamIdx = aIdx
	return nil
}

// SetRenderTexture binds the off-screen framebuffer's color attachment as
// the source EndFrame exports to NV12 each frame. The embedder owns GL
// context and framebuffer creation; this just records the texture name.
func (e *Engine) SetRenderTexture(glTexture uint32) {
	e.renderTexture = hwbridge.FromGL(astiav.PixelFormatRgba, glTexture)
}

// BeginFrame resets the per-frame audio sample counter and, in render
// mode, recomputes this frame's target cumulative sample count by
// rounding frame_number * sample_rate / fps to the nearest sample — the
// rounded-quotient accumulation that keeps drift under one sample per
// frame when sample_rate isn't evenly divisible by fps. Windowing event
// polling, shader hot-reload, and framebuffer/viewport binding are the
// embedder's responsibility (owning the GL context is out of this
// package's scope); this only carries the audio-clock half of the
// protocol that lives on Engine itself.
func (e *Engine) BeginFrame() {
	e.audioMu.Lock()
	e.samplesThisFrame = 0
	if e.mode == ModeRender {
		numerator := (e.frameNumber+1)*int64(e.params.SampleRate) + int64(e.params.FPS)/2
		e.audioFrameTarget = numerator / int64(e.params.FPS)
	}
	e.audioMu.Unlock()
}

// EndFrame runs the render-mode NV12 export/submit or, in preview mode,
// is a no-op (buffer swap is the embedder's GL call). Either way the
// frame counter advances.
func (e *Engine) EndFrame() error {
	defer func() { e.frameNumber++ }()

	if e.mode != ModeRender {
		return nil
	}

	desc, err := hwbridge.ExportNV12(&e.renderTexture, e.params.Width, e.params.Height)
	if err != nil {
		return fmt.Errorf("engine: EndFrame: ExportNV12: %w", err)
	}

	frame, err := frameFromDRM(desc, e.frameNumber)
	if err != nil {
		return fmt.Errorf("engine: EndFrame: %w", err)
	}
	defer frame.Free()

	if err := e.muxer.Submit(frame, e.videoStreamIdx); err != nil {
		return fmt.Errorf("engine: EndFrame: Submit: %w", err)
	}
	return nil
}

// Close tears down whichever mode's resources are live.
func (e *Engine) Close() error {
	if e.fifo != nil {
		e.fifo.close()
	}
	if e.otoPlayer != nil {
		e.otoPlayer.Close()
	}
	if e.pipeW != nil {
		e.pipeW.Close()
	}
	if e.muxer != nil {
		if err := e.muxer.End(); err != nil {
			e.muxer.Close()
			return fmt.Errorf("engine: Close: %w", err)
		}
		return e.muxer.Close()
	}
	return nil
}

func bytesPerSample(f astiav.SampleFormat) int {
	switch f {
	case astiav.SampleFormatU8:
		return 1
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

// frameFromDRM builds an astiav.Frame wrapping desc for delivery to the
// video encoder's hardware frames pool. It always returns an error:
// go-astiav exposes no accessor for populating an AVFrame's
// AVDRMFrameDescriptor from a raw dma-buf fd (internal/source's
// drmDescriptorOf has the same gap in the decode direction).
func frameFromDRM(desc hwbridge.DRMDescriptor, pts int64) (*astiav.Frame, error) {
	_ = desc
	_ = pts
	return nil, errors.New("engine: DRM-PRIME frame construction not wired for this build")
}
