// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !offscreen && ((darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd)

package vkgpu

import (
	"image"

	"cogentcore.org/core/base/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

// note: this file contains the glfw dependencies, for desktop platform builds.

// Init initializes glfw and loads vulkan through it.
// IMPORTANT: must be called on the main initial thread!
func Init() error {
	err := glfw.Init()
	if err != nil {
		return errors.Log(err)
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	return errors.Log(vk.Init())
}

// Terminate shuts down glfw: call as the last thing before quitting.
// IMPORTANT: must be called on the main initial thread!
func Terminate() {
	glfw.Terminate()
}

// NewWindow opens a window without a client API, for vulkan rendering.
func NewWindow(title string, size image.Point) (*glfw.Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	return glfw.CreateWindow(size.X, size.Y, title, nil, nil)
}

// NewWindowDevice creates a device that can present to the window.
func NewWindowDevice(win *glfw.Window, opts Options) (*Device, error) {
	opts.InstanceExts = append(opts.InstanceExts, win.GetRequiredInstanceExtensions()...)
	return NewDevice(opts)
}

// NewWindowSurface makes a presentation surface for the window.
func NewWindowSurface(dv *Device, win *glfw.Window) (*Surface, error) {
	ptr, err := win.CreateWindowSurface(dv.Instance, nil)
	if err != nil {
		return nil, errors.Log(err)
	}
	w, h := win.GetFramebufferSize()
	return NewSurface(dv, vk.SurfaceFromPointer(ptr), image.Pt(w, h))
}
