// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package soft is a headless software implementation of the gpu
// driver interfaces. Submitted work runs asynchronously on its own
// goroutine, standing in for the GPU timeline, and every barrier, pass
// and sampled texture is checked against the actual layout of the
// images involved, with mismatches collected by [Device.Validation].
//
// Programs are Go [Kernel] functions that are run for every pixel of
// the target framebuffer.
package soft

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"cogentcore.org/pyro/gpu"
)

// Options are the options for a new [Device].
type Options struct {

	// Name is the device name.
	Name string

	// Manual holds all submissions until [Device.Retire] is called,
	// instead of executing them on the queue goroutine. This gives
	// tests exact control over GPU progress.
	Manual bool
}

// Device is the software device.
type Device struct {
	Options

	queue *Queue

	mu         sync.Mutex
	validation []string
	stats      Stats
}

// Stats counts executed work.
type Stats struct {
	Submissions int
	Barriers    int
	Passes      int
	Draws       int
	Blits       int
	Presents    int
}

// NewDevice returns a new device, starting its queue.
func NewDevice(opts Options) *Device {
	if opts.Name == "" {
		opts.Name = "soft"
	}
	dv := &Device{Options: opts}
	dv.queue = newQueue(dv, opts.Manual)
	return dv
}

func (dv *Device) Name() string {
	return dv.Options.Name
}

// Validation returns the validation errors found so far.
func (dv *Device) Validation() []string {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return append([]string(nil), dv.validation...)
}

// ClearValidation clears the validation errors.
func (dv *Device) ClearValidation() {
	dv.mu.Lock()
	dv.validation = nil
	dv.mu.Unlock()
}

// Stats returns the execution counts so far.
func (dv *Device) Stats() Stats {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.stats
}

func (dv *Device) count(fn func(st *Stats)) {
	dv.mu.Lock()
	fn(&dv.stats)
	dv.mu.Unlock()
}

// validate records a validation error.
func (dv *Device) validate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn("soft: validation", "msg", msg)
	dv.mu.Lock()
	dv.validation = append(dv.validation, msg)
	dv.mu.Unlock()
}

// Retire executes the oldest pending submission, in manual mode.
// Returns false if there was none.
func (dv *Device) Retire() bool {
	return dv.queue.retire()
}

// RetireAll executes all pending submissions, in manual mode.
func (dv *Device) RetireAll() int {
	n := 0
	for dv.queue.retire() {
		n++
	}
	return n
}

// Pending returns the number of submissions not yet executed.
func (dv *Device) Pending() int {
	return dv.queue.pending()
}

func (dv *Device) NewImage(desc *gpu.ImageDesc) (gpu.DeviceImage, error) {
	if desc.Size.X <= 0 || desc.Size.Y <= 0 {
		return nil, fmt.Errorf("soft.NewImage %q: invalid size %v", desc.Name, desc.Size)
	}
	return newImage(desc.Name, desc.Format, desc.Size), nil
}

func (dv *Device) NewBuffer(size int, usage gpu.BufferUsage) (gpu.DeviceBuffer, error) {
	return &Buffer{data: make([]byte, size), usage: usage}, nil
}

func (dv *Device) NewFence(signaled bool) (gpu.Fence, error) {
	return newFence(signaled), nil
}

func (dv *Device) NewSemaphore() (gpu.Semaphore, error) {
	return &Semaphore{}, nil
}

func (dv *Device) NewCommandBuffer() (gpu.CommandBuffer, error) {
	return &CommandBuffer{dev: dv}, nil
}

func (dv *Device) NewRenderPass(atts []gpu.Attachment) (gpu.DeviceRenderPass, error) {
	return &RenderPass{Attachments: append([]gpu.Attachment(nil), atts...)}, nil
}

func (dv *Device) NewFramebuffer(rp gpu.DeviceRenderPass, images []gpu.DeviceImage, size image.Point) (gpu.DeviceFramebuffer, error) {
	srp := rp.(*RenderPass)
	if len(images) != len(srp.Attachments) {
		return nil, fmt.Errorf("soft.NewFramebuffer: %d images for %d attachments", len(images), len(srp.Attachments))
	}
	fb := &Framebuffer{RenderPass: srp, Size: size}
	for i, h := range images {
		im := h.(*Image)
		if im.Size != size {
			return nil, fmt.Errorf("soft.NewFramebuffer: image %q size %v != %v", im.Name, im.Size, size)
		}
		if im.Format != srp.Attachments[i].Format {
			return nil, fmt.Errorf("soft.NewFramebuffer: image %q format %s != %s", im.Name, im.Format, srp.Attachments[i].Format)
		}
		fb.Images = append(fb.Images, im)
	}
	return fb, nil
}

func (dv *Device) NewProgram(src *gpu.ProgramSource, rp gpu.DeviceRenderPass) (gpu.DeviceProgram, error) {
	pr := &Program{Name: src.Name, Interface: src.Interface, Blend: src.Blend, Depth: src.Depth, DepthReadOnly: src.DepthReadOnly, PushSize: src.PushSize}
	switch k := src.Kernel.(type) {
	case nil:
	case Kernel:
		pr.Kernel = k
	case func(*Fragment):
		pr.Kernel = k
	default:
		return nil, fmt.Errorf("soft.NewProgram %q: kernel type %T is not a soft.Kernel", src.Name, src.Kernel)
	}
	return pr, nil
}

func (dv *Device) NewDescriptorSet(prog gpu.DeviceProgram) (gpu.DescriptorSet, error) {
	return &DescriptorSet{program: prog.(*Program), images: map[int]*Image{}}, nil
}

func (dv *Device) Queue() gpu.Queue {
	return dv.queue
}

// WaitIdle waits until all submitted work has executed.
// In manual mode, it retires all pending submissions.
func (dv *Device) WaitIdle() error {
	if dv.Manual {
		dv.RetireAll()
		return nil
	}
	dv.queue.waitIdle()
	return nil
}

// Release stops the queue.
func (dv *Device) Release() {
	dv.queue.close()
}
