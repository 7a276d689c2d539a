// Package config loads the application settings from a TOML file.
package config

import (
	"bytes"
	"os"

	"GPU_scene_renderer/logging"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

type Window struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type Renderer struct {
	FramesInFlight   uint32     `toml:"frames_in_flight"`
	Validation       bool       `toml:"validation"`
	ValidationLayers []string   `toml:"validation_layers"`
	ShaderDir        string     `toml:"shader_dir"`
	ClearColor       [4]float32 `toml:"clear_color"`
}

type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

type Scene struct {
	// Mesh is an optional binary STL file placed in the scene.
	Mesh string `toml:"mesh"`
}

type Settings struct {
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Log      Log      `toml:"log"`
	Scene    Scene    `toml:"scene"`
}

func Default() Settings {
	return Settings{
		Window: Window{Title: "GPU Scene Renderer", Width: 1280, Height: 720},
		Renderer: Renderer{
			FramesInFlight:   3,
			ValidationLayers: []string{"VK_LAYER_KHRONOS_validation"},
			ShaderDir:        "shaders",
			ClearColor:       [4]float32{0.1, 0.1, 0.12, 1},
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path on top of the defaults. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	s := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Logger().Info("No config file found, using defaults", "path", path)
		return s, nil
	}
	if err != nil {
		return s, errors.Wrap(err, "read config")
	}

	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return s, errors.Wrapf(err, "parse config %s", path)
	}
	return s, s.Validate()
}

func (s Settings) Validate() error {
	if s.Window.Width == 0 || s.Window.Height == 0 {
		return errors.Errorf("window size %dx%d is invalid", s.Window.Width, s.Window.Height)
	}
	if s.Renderer.FramesInFlight < 1 || s.Renderer.FramesInFlight > 8 {
		return errors.Errorf("frames_in_flight must be within [1, 8], got %d", s.Renderer.FramesInFlight)
	}
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown log level %q", s.Log.Level)
	}
	return nil
}
