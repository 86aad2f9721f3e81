// Command sve2 is the embedder-facing demonstration binary: it opens one
// media source, drives the engine's begin/end-frame and audio-pump
// protocol, and tails a textual command FIFO if one is configured.
// Windowing, GL context creation, and shader hot-reload are out of scope
// (the caller's responsibility per spec) — this binary exists so the
// engine can build and be driven end-to-end without an embedder.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	astiav "github.com/asticode/go-astiav"

	"sve2/internal/cmdqueue"
	"sve2/internal/config"
	"sve2/internal/engine"
	"sve2/internal/source"
	"sve2/internal/streamix"
)

func main() {
	debugFF := flag.Bool("debugstreams", false, "log ffmpeg's own diagnostics")
	flag.Parse()

	cfg := config.FromEnv()
	logger := config.NewLogger(cfg.LogLevel)

	if *debugFF {
		astiav.SetLogLevel(astiav.LogLevelDebug)
		astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, format, msg string) {
			logger.Debugf("ffmpeg: %s (level %d)", msg, l)
		})
	}

	if flag.NArg() < 1 {
		log.Fatal("usage: sve2 [flags] <media-path>")
	}
	mediaPath := flag.Arg(0)

	mode := engine.ModePreview
	if cfg.OutputPath != "" {
		mode = engine.ModeRender
	}

	chLayout, err := probeAudioChannelLayout(mediaPath)
	if err != nil {
		log.Fatalf("probeAudioChannelLayout: %v", err)
	}

	params := engine.Params{
		Width:         1920,
		Height:        1080,
		FPS:           60,
		SampleRate:    48000,
		ChannelLayout: chLayout,
		SampleFormat:  astiav.SampleFormatFlt,
	}

	eng, err := engine.New(mode, params, cfg.OutputPath)
	if err != nil {
		log.Fatalf("engine.New: %v", err)
	}
	defer eng.Close()

	// params.SampleFormat is fixed to Flt above (4 bytes/sample); Engine's
	// MapAudio reports room in sample-frames but Source.AudioSamples wants
	// a byte budget, so the demo loop converts between the two units here.
	bytesPerFrame := 4 * chLayout.Channels()

	audioParams := source.Params{
		SampleRate:    params.SampleRate,
		ChannelLayout: params.ChannelLayout,
		SampleFormat:  params.SampleFormat,
	}
	src, err := source.OpenStreamed(mediaPath, streamix.Video(0), audioRef(), mode == engine.ModeRender, 64, audioParams, "")
	if err != nil {
		log.Fatalf("source.OpenStreamed: %v", err)
	}
	defer src.Close()

	var cmds *cmdqueue.Reader
	if cfg.CmdFile != "" {
		cmds, err = cmdqueue.Open(cfg.CmdFile)
		if err != nil {
			logger.Warnf("cmdqueue.Open(%q): %v", cfg.CmdFile, err)
		} else {
			defer cmds.Close()
		}
	}

	closeRequested := false
	for !closeRequested {
		eng.BeginFrame()

		if cmds != nil {
			for {
				line, ok, err := cmds.Next()
				if err != nil {
					logger.Warnf("cmdqueue: %v", err)
					break
				}
				if !ok {
					break
				}
				logger.Infof("command: %s", line)
				if line == "quit" {
					closeRequested = true
				}
			}
		}

		if err := pumpAudio(eng, src, bytesPerFrame); err != nil {
			logger.Warnf("pumpAudio: %v", err)
		}

		if _, err := src.VideoTextureAt(eng.AudioTimer()); err != nil {
			logger.Warnf("VideoTextureAt: %v", err)
		}

		if err := eng.EndFrame(); err != nil {
			logger.Errorf("EndFrame: %v", err)
			closeRequested = true
		}

		if mode == engine.ModeRender {
			// A render-mode run has no external clock to wait on; one pass
			// through begin/pump/end per invocation is the batch unit, so
			// exit once this frame is flushed. A real render driver loops
			// here until the source reports EOF; left as future work since
			// EOF propagation from Source is a property of internal/source,
			// not this binary.
			closeRequested = true
		}
	}

	logger.Infof("exiting")
}

// audioRef selects the first audio stream if the container has one;
// OpenStreamed itself treats an unresolvable Ref as "no audio stream"
// rather than an error.
func audioRef() *streamix.Ref {
	ref := streamix.Audio(0)
	return &ref
}

// probeAudioChannelLayout opens path just long enough to read the first
// audio stream's channel layout out of its codec parameters, the way the
// teacher always obtains a ChannelLayout value: by copying one out of an
// already-populated codec context rather than constructing one from
// scratch (video.go's ctx.SetChannelLayout(aCtx.ChannelLayout())).
func probeAudioChannelLayout(path string) (astiav.ChannelLayout, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return astiav.ChannelLayout{}, errors.New("AllocFormatContext: nil")
	}
	defer fc.Free()
	if err := fc.OpenInput(path, nil, nil); err != nil {
		return astiav.ChannelLayout{}, fmt.Errorf("OpenInput: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		return astiav.ChannelLayout{}, fmt.Errorf("FindStreamInfo: %w", err)
	}

	abs, ok := streamix.Audio(0).Resolve(fc)
	if !ok {
		return astiav.ChannelLayout{}, errors.New("no audio stream")
	}
	par := fc.Streams()[abs].CodecParameters()

	dec := astiav.FindDecoder(par.CodecID())
	if dec == nil {
		return astiav.ChannelLayout{}, fmt.Errorf("FindDecoder(%s): no decoder", par.CodecID())
	}
	cc := astiav.AllocCodecContext(dec)
	if cc == nil {
		return astiav.ChannelLayout{}, errors.New("AllocCodecContext: nil")
	}
	defer cc.Free()
	if err := par.ToCodecContext(cc); err != nil {
		return astiav.ChannelLayout{}, fmt.Errorf("ToCodecContext: %w", err)
	}
	return cc.ChannelLayout(), nil
}

// pumpAudio fills every sample-frame MapAudio currently has room for from
// src, converting between Engine's sample-frame accounting and Source's
// byte-oriented AudioSamples.
func pumpAudio(eng *engine.Engine, src *source.Streamed, bytesPerFrame int) error {
	for {
		buf, count, ok := eng.MapAudio()
		if !ok {
			return nil
		}
		wantBytes := count * bytesPerFrame
		if wantBytes > len(buf) {
			wantBytes = len(buf)
		}
		n, err := src.AudioSamples(buf, wantBytes)
		if err != nil {
			eng.UnmapAudio(0)
			return err
		}
		eng.UnmapAudio(n / bytesPerFrame)
		if n == 0 {
			return nil
		}
	}
}
