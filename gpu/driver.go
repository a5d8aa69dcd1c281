// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"image"
	"time"
)

// Device is the logical device implemented by a driver.
// It creates all other device objects, and owns the single
// graphics queue that all work is submitted to.
type Device interface {
	// Name is the human-readable name of the device.
	Name() string

	// NewImage allocates a new image.
	NewImage(desc *ImageDesc) (DeviceImage, error)

	// NewBuffer allocates a new host-visible buffer of given size in bytes.
	NewBuffer(size int, usage BufferUsage) (DeviceBuffer, error)

	// NewFence creates a fence, optionally already signaled.
	NewFence(signaled bool) (Fence, error)

	// NewSemaphore creates a binary semaphore.
	NewSemaphore() (Semaphore, error)

	// NewCommandBuffer allocates a primary command buffer.
	NewCommandBuffer() (CommandBuffer, error)

	// NewRenderPass creates a render pass for given attachments.
	NewRenderPass(atts []Attachment) (DeviceRenderPass, error)

	// NewFramebuffer binds images to the attachments of a render pass.
	NewFramebuffer(rp DeviceRenderPass, images []DeviceImage, size image.Point) (DeviceFramebuffer, error)

	// NewProgram builds a program compatible with the given render pass.
	NewProgram(src *ProgramSource, rp DeviceRenderPass) (DeviceProgram, error)

	// NewDescriptorSet allocates a descriptor set for the program's interface.
	NewDescriptorSet(prog DeviceProgram) (DescriptorSet, error)

	// Queue returns the graphics queue.
	Queue() Queue

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error

	// Release destroys the device. All objects created from it
	// must have been released first.
	Release()
}

// Releaser is implemented by all device objects, which hold memory
// that is not managed by the GC and must be released explicitly
// by their owner.
type Releaser interface {
	Release()
}

// ImageDesc describes an image to allocate.
type ImageDesc struct {
	Name   string
	Size   image.Point
	Format Format
	Mips   int
	Layers int
	Usage  Usage

	// Cube makes a cube map; Layers must be 6.
	Cube bool
}

// DeviceImage is the driver handle of an image.
type DeviceImage interface {
	Releaser
}

// DeviceBuffer is a host-visible device buffer.
type DeviceBuffer interface {
	Releaser

	// Size returns the size of the buffer in bytes.
	Size() int

	// Write copies data into the buffer at the given byte offset.
	Write(offset int, data []byte) error

	// Read copies data out of the buffer at the given byte offset.
	Read(offset int, data []byte) error
}

// Fence is a GPU-to-CPU signal that a submission has completed.
type Fence interface {
	Releaser

	// Wait blocks until the fence is signaled, returning
	// [ErrTimeout] if that does not happen within timeout.
	Wait(timeout time.Duration) error

	// Reset sets the fence back to the unsignaled state.
	Reset() error

	// Signaled returns the current state without blocking.
	Signaled() bool
}

// Semaphore is a GPU-to-GPU signal ordering one queue
// operation after another.
type Semaphore interface {
	Releaser
}

// Attachment describes one attachment of a render pass.
type Attachment struct {
	Format Format
	Load   LoadOp

	// Layout is the layout the attachment is in during the pass.
	Layout Layout

	// Final is the layout the attachment is left in after the pass.
	Final Layout
}

// ClearValue is the clear color or depth of an attachment.
type ClearValue struct {
	Color [4]float32
	Depth float32
}

// DeviceRenderPass is the driver handle of a render pass.
type DeviceRenderPass interface {
	Releaser
}

// DeviceFramebuffer is the driver handle of a framebuffer.
type DeviceFramebuffer interface {
	Releaser
}

// ProgramSource is everything a driver needs to build a program.
// Shader compilation happens elsewhere: Vertex and Fragment are
// compiled binaries, Kernel is the software implementation used
// by the headless driver.
type ProgramSource struct {
	Name      string
	Interface *Interface
	Vertex    []byte
	Fragment  []byte
	Kernel    any
	Blend     BlendMode

	// PushSize is the size of the push constant block in bytes.
	PushSize int

	// Depth enables the depth test and depth writes.
	Depth bool

	// DepthReadOnly disables depth writes of a program with Depth,
	// for passes where the depth attachment is read-only.
	DepthReadOnly bool

	// VertexStride is the size of one vertex in the bound vertex
	// buffer, read as consecutive float32 vec4 attributes.
	// It is 0 for programs that generate their own vertices,
	// such as full-screen passes.
	VertexStride int
}

// DeviceProgram is the driver handle of a program (pipeline).
type DeviceProgram interface {
	Releaser
}

// DescriptorSet binds uniform buffers and textures to a program.
type DescriptorSet interface {
	Releaser
	BindBuffer(binding int, buf DeviceBuffer)
	BindImage(binding int, img DeviceImage)
}

// CommandBuffer is the driver side of a [Recorder].
type CommandBuffer interface {
	Releaser
	Begin() error
	End() error
	Reset() error
	Barrier(b []Barrier)
	BeginPass(rp DeviceRenderPass, fb DeviceFramebuffer, size image.Point, clear []ClearValue)
	EndPass()
	BindProgram(p DeviceProgram)
	BindDescriptors(p DeviceProgram, ds DescriptorSet)
	PushConstants(p DeviceProgram, data []byte)
	SetVertexBuffer(buf DeviceBuffer)
	Draw(vertices, instances int)
	Blit(src DeviceImage, srcSize image.Point, dst DeviceImage, dstSize image.Point, filter Filter)
	CopyToBuffer(src DeviceImage, size image.Point, dst DeviceBuffer)
}

// SubmitInfo is one batch of command buffers in a queue submission.
type SubmitInfo struct {
	Commands []CommandBuffer
	Wait     []Semaphore
	Signal   []Semaphore
}

// Queue executes submitted command buffers in submission order.
type Queue interface {
	// Submit hands the batches to the device. The fence, if non-nil,
	// is signaled when all of them have completed.
	Submit(infos []SubmitInfo, fence Fence) error
}

// Surface is a display surface yielding presentable images.
type Surface interface {
	Releaser

	// Size returns the current size of the surface images.
	Size() image.Point

	// Format returns the format of the surface images.
	Format() Format

	// Acquire gets the next presentable image, signaling the
	// semaphore when it is ready to be written.
	// Returns [ErrOutOfDate] or [ErrSuboptimal] when the surface
	// must be recreated.
	Acquire(signal Semaphore, timeout time.Duration) (int, DeviceImage, error)

	// Present queues the image for display once wait is signaled.
	Present(index int, wait Semaphore) error

	// Recreate rebuilds the presentable images at the given size.
	Recreate(size image.Point) error
}
