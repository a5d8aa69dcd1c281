// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pyro renders a demo scene with the Pyro renderer,
// offscreen into an image file or live in a window.
package main

import (
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/base/iox/imagex"
	"cogentcore.org/core/cli"
	"cogentcore.org/pyro/engine"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/gpu/soft"
	"cogentcore.org/pyro/settings"
	"cogentcore.org/pyro/shaders"
)

// Config is the configuration of the pyro command.
type Config struct {

	// Settings is the TOML file with the renderer settings.
	// The defaults are used if it does not exist.
	Settings string `default:"pyro.toml"`

	// Output is the image file written by render.
	Output string `cmd:"render" default:"pyro.png"`

	// Frames is the number of frames rendered before the output,
	// each advancing the scene by 1/60 s.
	Frames int `cmd:"render" default:"3"`

	// Dir is the directory of the compiled shaders, written by
	// the shaders command and read by the window command.
	Dir string `default:"spv"`
}

func main() {
	opts := cli.DefaultOptions("pyro", "Pyro renders a demo scene offscreen or in a window.")
	cli.Run(opts, &Config{}, Render, Window, Shaders)
}

// loadSettings opens the settings file, or returns the defaults
// if there is none.
func loadSettings(c *Config) (*settings.Settings, error) {
	if _, err := os.Stat(c.Settings); errors.Is(err, fs.ErrNotExist) {
		slog.Info("pyro: no settings file, using defaults", "file", c.Settings)
		st := settings.New()
		st.Apply()
		return st, nil
	}
	st, err := settings.Open(c.Settings)
	if err != nil {
		return nil, err
	}
	st.Apply()
	return st, nil
}

// Render renders the demo scene offscreen with the software driver,
// and saves the last frame.
func Render(c *Config) error { //cli:cmd -root
	st, err := loadSettings(c)
	if err != nil {
		return err
	}
	cx := st.Context(soft.NewDevice(soft.Options{Name: "pyro"}))
	defer cx.Release()
	lib := gpu.NewProgramLibrary(cx)
	defer lib.Release()
	engine.AddPrograms(lib)

	r, err := engine.NewRenderer(cx, nil, newDemoScene(), lib, st)
	if err != nil {
		return err
	}
	defer r.Release()
	var img *image.RGBA
	for i := range max(c.Frames, 1) {
		r.Update(1.0 / 60)
		if i < c.Frames-1 {
			if err := r.Draw(); err != nil {
				return err
			}
			continue
		}
		err := r.DrawReadback(func(im *image.RGBA) {
			img = image.NewRGBA(im.Rect)
			copy(img.Pix, im.Pix)
		})
		if err != nil {
			return err
		}
	}
	if img == nil {
		return fmt.Errorf("pyro: no frame rendered")
	}
	if err := imagex.Save(img, c.Output); err != nil {
		return err
	}
	slog.Info("pyro: saved", "file", c.Output, "size", img.Rect.Size(), "stats", r.Stats())
	return nil
}

// Shaders compiles the shaders of all built-in programs with glslc.
func Shaders(c *Config) error {
	return shaders.Compile(c.Dir)
}
