// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"log/slog"
	"time"
)

// DefaultFramesInFlight is the default number of frame slots.
const DefaultFramesInFlight = 3

// MaxFramesInFlight is the largest number of frame slots.
const MaxFramesInFlight = 64

// Context is the device context shared by all frame pipeline
// components. It is constructed once at startup and passed
// explicitly to every component that needs the device, so that
// there is no process-wide device state.
type Context struct {

	// Device is the logical device everything is created on.
	Device Device

	// FramesInFlight is the number of frame slots N. Every per-frame
	// resource (fences, recorders, uniform buffer copies) has N copies.
	FramesInFlight int

	// AcquireTimeout bounds the wait for a frame slot fence.
	// Exceeding it is treated as device loss.
	AcquireTimeout time.Duration
}

// NewContext returns a new context for the device with defaults.
func NewContext(dev Device) *Context {
	cx := &Context{Device: dev}
	cx.Defaults()
	slog.Info("gpu: context created", "device", dev.Name(), "framesInFlight", cx.FramesInFlight)
	return cx
}

func (cx *Context) Defaults() {
	cx.FramesInFlight = DefaultFramesInFlight
	cx.AcquireTimeout = 5 * time.Second
}

// Release waits for the device to go idle and releases it.
func (cx *Context) Release() {
	if cx.Device == nil {
		return
	}
	cx.Device.WaitIdle()
	cx.Device.Release()
	cx.Device = nil
}
