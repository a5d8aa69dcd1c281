// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !offscreen && ((darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd)

package main

import (
	"context"
	"image"
	"log/slog"
	"os"
	"runtime"
	"time"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/pyro/engine"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/gpu/vkgpu"
	"cogentcore.org/pyro/settings"
	"cogentcore.org/pyro/shaders"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	// glfw must run on the main thread
	runtime.LockOSThread()
}

// Window renders the demo scene live in a window with the Vulkan
// driver, until it is closed. The settings file is watched, and
// reapplied when it changes.
func Window(c *Config) error {
	st, err := loadSettings(c)
	if err != nil {
		return err
	}
	if err := vkgpu.Init(); err != nil {
		return err
	}
	defer vkgpu.Terminate()
	win, err := vkgpu.NewWindow("Pyro", image.Pt(st.Width, st.Height))
	if errors.Log(err) != nil {
		return err
	}
	defer win.Destroy()
	dev, err := vkgpu.NewWindowDevice(win, vkgpu.Options{Name: "pyro", Validation: st.Debug})
	if err != nil {
		return err
	}
	cx := st.Context(dev)
	defer cx.Release()
	sf, err := vkgpu.NewWindowSurface(dev, win)
	if err != nil {
		return err
	}
	defer sf.Release()
	lib := gpu.NewProgramLibrary(cx)
	defer lib.Release()
	engine.AddPrograms(lib)
	if err := shaders.Open(lib, os.DirFS(c.Dir), "."); err != nil {
		return err
	}

	r, err := engine.NewRenderer(cx, sf, newDemoScene(), lib, st)
	if err != nil {
		return err
	}
	defer r.Release()
	win.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		r.OnResize(width, height)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan *settings.Settings, 1)
	if _, err := os.Stat(c.Settings); err == nil {
		err := settings.Watch(ctx, c.Settings, func(s *settings.Settings) {
			// only the latest settings matter
			select {
			case <-updates:
			default:
			}
			updates <- s
		})
		if err != nil {
			return err
		}
	}

	last := time.Now()
	for !win.ShouldClose() {
		if w, h := win.GetFramebufferSize(); w == 0 || h == 0 {
			glfw.WaitEvents()
		} else {
			glfw.PollEvents()
		}
		select {
		case s := <-updates:
			r.ApplySettings(s)
			slog.Info("pyro: settings reloaded", "file", c.Settings)
		default:
		}
		now := time.Now()
		r.Update(float32(now.Sub(last).Seconds()))
		last = now
		if err := r.Draw(); err != nil {
			return err
		}
	}
	slog.Info("pyro: window closed", "stats", r.Stats())
	return nil
}
