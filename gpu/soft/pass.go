// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"image"

	"cogentcore.org/pyro/gpu"
)

// RenderPass holds the attachment descriptions.
type RenderPass struct {
	Attachments []gpu.Attachment
}

func (rp *RenderPass) Release() {}

// Framebuffer binds images to the attachments of a render pass.
type Framebuffer struct {
	RenderPass *RenderPass
	Images     []*Image
	Size       image.Point
}

func (fb *Framebuffer) Release() {}

// depth returns the depth attachment or nil.
func (fb *Framebuffer) depth() *Image {
	for _, im := range fb.Images {
		if im.Format.IsDepth() {
			return im
		}
	}
	return nil
}

// colors returns the color attachments.
func (fb *Framebuffer) colors() []*Image {
	var cs []*Image
	for _, im := range fb.Images {
		if !im.Format.IsDepth() {
			cs = append(cs, im)
		}
	}
	return cs
}

// Program is a software program: a [Kernel] with its
// interface and fixed function state.
type Program struct {
	Name      string
	Interface *gpu.Interface
	Kernel    Kernel
	Blend     gpu.BlendMode
	Depth     bool
	PushSize  int

	// DepthReadOnly tests without writing depth.
	DepthReadOnly bool
}

func (pr *Program) Release() {}

// DescriptorSet holds the bound uniform buffer and textures.
type DescriptorSet struct {
	program *Program
	buffer  *Buffer
	images  map[int]*Image
}

func (ds *DescriptorSet) BindBuffer(binding int, buf gpu.DeviceBuffer) {
	ds.buffer = buf.(*Buffer)
}

func (ds *DescriptorSet) BindImage(binding int, img gpu.DeviceImage) {
	ds.images[binding] = img.(*Image)
}

func (ds *DescriptorSet) Release() {}

// Buffer returns the bound uniform buffer.
func (ds *DescriptorSet) Buffer() *Buffer {
	return ds.buffer
}

// Image returns the image bound at binding.
func (ds *DescriptorSet) Image(binding int) *Image {
	return ds.images[binding]
}
