// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package settings has the renderer settings, which are loaded from
// and saved to TOML files, and can be watched for live changes.
package settings

import (
	"log/slog"
	"time"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/base/iox/tomlx"
	"cogentcore.org/core/base/logx"
	"cogentcore.org/core/base/reflectx"
	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
)

// Settings are the settings of a renderer. Width, Height,
// FramesInFlight and AcquireTimeout only take effect when the
// renderer is made; everything else can be changed on a running
// renderer.
type Settings struct {

	// Width is the initial width of offscreen rendering.
	Width int `default:"1280"`

	// Height is the initial height of offscreen rendering.
	Height int `default:"720"`

	// FramesInFlight is the number of frame slots.
	FramesInFlight int `default:"3"`

	// AcquireTimeout is how long to wait for a frame slot,
	// in seconds, before the device is considered lost.
	AcquireTimeout float32 `default:"5"`

	// Shadows turns on the shadow pass.
	Shadows bool `default:"true"`

	// ShadowSize is the width and height of shadow maps.
	ShadowSize int `default:"1024"`

	// Unlit turns off the lighting pass, showing plain albedo.
	Unlit bool

	// Overlay turns on the overlay pass.
	Overlay bool `default:"true"`

	// Exposure scales the scene color before tone mapping.
	Exposure float32 `default:"1"`

	// FogColor is the color of distance fog.
	FogColor math32.Vector3

	// FogDensity is the exponential density of distance fog.
	FogDensity float32 `default:"0.02"`

	// BloomThreshold is the luminance above which bloom starts.
	BloomThreshold float32 `default:"1"`

	// BloomScale is the resolution of the bloom stages relative to
	// the display.
	BloomScale float32 `default:"0.5"`

	// Stages turns post-processing stages on or off by name.
	// Stages not listed keep their state.
	Stages map[string]bool

	// LogLevel is the level of log messages shown.
	LogLevel slog.Level

	// Debug makes programmer errors panic.
	Debug bool
}

// New returns new settings with defaults.
func New() *Settings {
	s := &Settings{}
	s.Defaults()
	return s
}

// Defaults sets all fields to their defaults.
func (s *Settings) Defaults() {
	errors.Log(reflectx.SetFromDefaultTags(s))
	s.FogColor = math32.Vec3(0.5, 0.6, 0.7)
	s.Stages = map[string]bool{}
}

// Timeout returns the AcquireTimeout as a duration.
func (s *Settings) Timeout() time.Duration {
	return time.Duration(float64(s.AcquireTimeout) * float64(time.Second))
}

// Open returns the settings in the given TOML file, with defaults
// for the fields that are not in the file.
func Open(filename string) (*Settings, error) {
	s := New()
	if err := errors.Log(tomlx.Open(s, filename)); err != nil {
		return nil, err
	}
	return s, nil
}

// Save saves the settings to the given TOML file.
func (s *Settings) Save(filename string) error {
	return errors.Log(tomlx.Save(s, filename))
}

// Apply applies the process-wide settings: the log level and debug mode.
func (s *Settings) Apply() {
	logx.UserLevel = s.LogLevel
	gpu.Debug = s.Debug
}

// Context returns a new device context with the frame settings.
func (s *Settings) Context(dev gpu.Device) *gpu.Context {
	cx := gpu.NewContext(dev)
	if s.FramesInFlight > 0 {
		cx.FramesInFlight = s.FramesInFlight
	}
	if s.AcquireTimeout > 0 {
		cx.AcquireTimeout = s.Timeout()
	}
	return cx
}
