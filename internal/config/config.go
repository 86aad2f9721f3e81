// Package config derives the engine's run configuration from environment
// variables and, optionally, a YAML stream manifest — the same split the
// teacher's config.go makes between ad hoc settings and a persisted
// CameraConfig list, adapted to an embeddable engine that has no
// per-user settings directory of its own.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// RunConfig is the environment-derived half of configuration: the
// handful of knobs cmd/sve2 and embedders read once at startup.
type RunConfig struct {
	OutputPath string // non-empty selects render mode
	LogLevel   int    // gates Logger's verbosity; higher is quieter
	CmdFile    string // path to the textual command FIFO, if any
}

// FromEnv reads OUTPUT_PATH, LOG_LEVEL, and CMD_FILE, mirroring the
// teacher's own reliance on plain getenv calls in main.go rather than a
// flag/env parsing library.
func FromEnv() RunConfig {
	level := 0
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			level = n
		}
	}
	return RunConfig{
		OutputPath: os.Getenv("OUTPUT_PATH"),
		LogLevel:   level,
		CmdFile:    os.Getenv("CMD_FILE"),
	}
}

// StreamConfig describes one source an embedder wants opened, the
// manifest analogue of the teacher's CameraConfig entries.
type StreamConfig struct {
	ID           string `yaml:"id,omitempty"`
	Path         string `yaml:"path"`
	Hardware     bool   `yaml:"hardware,omitempty"`
	Caching      int    `yaml:"caching_ms,omitempty"`
	Probesize    int64  `yaml:"probesize,omitempty"`
	AnalyzeUS    int64  `yaml:"analyze_us,omitempty"`
	Threads      int    `yaml:"threads,omitempty"`
	FFmpegParams string `yaml:"ffmpeg_params,omitempty"` // "-key=value" tokens, see internal/ffmpegutil
}

// Manifest is the top-level YAML document, one list of streams, mirroring
// AppConfig.Cameras.
type Manifest struct {
	Streams []StreamConfig `yaml:"streams"`
}

// LoadManifest reads and parses a stream manifest from path.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("config: LoadManifest: %w", err)
	}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("config: LoadManifest: %w", err)
	}
	return m, nil
}
