// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"image"

	"cogentcore.org/core/base/errors"
)

// RenderPass describes the attachments a pass renders into, with
// the layout each is in during the pass and is left in after it.
// The driver render pass itself performs no layout transitions:
// [Recorder.BeginPass] and [Recorder.EndPass] record them explicitly
// through each attachment [Image], so that the tracked layouts are
// always correct.
type RenderPass struct {

	// Name is used in logging.
	Name string

	// Attachments are the color attachments, followed by an
	// optional depth attachment.
	Attachments []Attachment

	// Clear has the clear value for each attachment.
	Clear []ClearValue

	handle DeviceRenderPass
}

// NewRenderPass creates a new render pass on the context device.
func NewRenderPass(cx *Context, name string, atts ...Attachment) (*RenderPass, error) {
	h, err := cx.Device.NewRenderPass(atts)
	if errors.Log(err) != nil {
		return nil, err
	}
	rp := &RenderPass{Name: name, Attachments: atts, Clear: make([]ClearValue, len(atts)), handle: h}
	for i, at := range atts {
		if at.Format.IsDepth() {
			rp.Clear[i].Depth = 1
		}
	}
	return rp, nil
}

// ColorAttachment returns an attachment rendered as a color target and
// then left in [LayoutShaderRead] for sampling by later passes.
func ColorAttachment(format Format, load LoadOp) Attachment {
	return Attachment{Format: format, Load: load, Layout: LayoutColorAttachment, Final: LayoutShaderRead}
}

// DepthAttachment returns a depth attachment left in
// [LayoutDepthAttachment] after the pass.
func DepthAttachment(format Format, load LoadOp) Attachment {
	return Attachment{Format: format, Load: load, Layout: LayoutDepthAttachment, Final: LayoutDepthAttachment}
}

// SetClearColor sets the clear color of attachment i.
func (rp *RenderPass) SetClearColor(i int, r, g, b, a float32) {
	rp.Clear[i].Color = [4]float32{r, g, b, a}
}

// Handle returns the driver render pass.
func (rp *RenderPass) Handle() DeviceRenderPass {
	return rp.handle
}

// Release destroys the render pass.
func (rp *RenderPass) Release() {
	if rp.handle != nil {
		rp.handle.Release()
		rp.handle = nil
	}
}

// Framebuffer is a set of images bound to the attachments of a
// [RenderPass]. It owns its images, and recreates them on [Framebuffer.SetSize].
type Framebuffer struct {

	// Name is used in logging.
	Name string

	// RenderPass is the pass the framebuffer renders with.
	RenderPass *RenderPass

	// Size is the size of all attachments.
	Size image.Point

	// Attachments has one image per render pass attachment.
	Attachments []*Image

	// Usage is the extra usage of all attachment images beyond
	// rendering, such as [UsageSampled].
	Usage Usage

	cx     *Context
	handle DeviceFramebuffer

	// external attachments, indexed like Attachments, are not owned
	external []bool
}

// NewFramebuffer allocates images for all render pass attachments at
// the given size, and binds them.
func NewFramebuffer(cx *Context, name string, rp *RenderPass, size image.Point, usage Usage) (*Framebuffer, error) {
	fb := &Framebuffer{Name: name, RenderPass: rp, Usage: usage, cx: cx}
	if err := fb.SetSize(size); err != nil {
		return nil, err
	}
	return fb, nil
}

// SetAttachment replaces attachment i with an image owned elsewhere,
// such as a depth buffer shared between passes. It rebinds the
// framebuffer.
func (fb *Framebuffer) SetAttachment(i int, im *Image) error {
	if !Assert(im.Size == fb.Size, "Framebuffer %q: attachment %q size %v != %v", fb.Name, im.Name, im.Size, fb.Size) {
		return fmt.Errorf("gpu.Framebuffer.SetAttachment %q: size mismatch", fb.Name)
	}
	if !fb.external[i] {
		fb.Attachments[i].Release()
	}
	fb.Attachments[i] = im
	fb.external[i] = true
	return fb.bind()
}

// Attachment returns attachment image i.
func (fb *Framebuffer) Attachment(i int) *Image {
	return fb.Attachments[i]
}

// Depth returns the depth attachment, or nil if there is none.
func (fb *Framebuffer) Depth() *Image {
	for _, im := range fb.Attachments {
		if im.Format.IsDepth() {
			return im
		}
	}
	return nil
}

// SetSize recreates the owned attachment images at a new size.
// It does nothing if the size is unchanged. External attachments
// must already have been resized by their owner.
func (fb *Framebuffer) SetSize(size image.Point) error {
	if size == fb.Size && fb.handle != nil {
		return nil
	}
	if len(fb.external) != len(fb.RenderPass.Attachments) {
		fb.external = make([]bool, len(fb.RenderPass.Attachments))
		fb.Attachments = make([]*Image, len(fb.RenderPass.Attachments))
	}
	fb.Size = size
	for i, at := range fb.RenderPass.Attachments {
		if fb.external[i] {
			continue
		}
		if im := fb.Attachments[i]; im != nil {
			if err := im.SetSize(fb.cx, size); err != nil {
				return err
			}
			continue
		}
		usage := fb.Usage | UsageColorAttachment
		if at.Format.IsDepth() {
			usage = fb.Usage | UsageDepthAttachment
		}
		im, err := NewImage(fb.cx, &ImageDesc{Name: fmt.Sprintf("%s.%d", fb.Name, i), Size: size, Format: at.Format, Usage: usage})
		if err != nil {
			return err
		}
		fb.Attachments[i] = im
	}
	return fb.bind()
}

func (fb *Framebuffer) bind() error {
	if fb.handle != nil {
		fb.handle.Release()
		fb.handle = nil
	}
	hs := make([]DeviceImage, len(fb.Attachments))
	for i, im := range fb.Attachments {
		hs[i] = im.handle
	}
	h, err := fb.cx.Device.NewFramebuffer(fb.RenderPass.handle, hs, fb.Size)
	if errors.Log(err) != nil {
		return err
	}
	fb.handle = h
	return nil
}

// Release destroys the framebuffer and its owned images.
func (fb *Framebuffer) Release() {
	if fb.handle != nil {
		fb.handle.Release()
		fb.handle = nil
	}
	for i, im := range fb.Attachments {
		if im != nil && !fb.external[i] {
			im.Release()
		}
	}
	fb.Attachments = nil
	fb.external = nil
}

func (fb *Framebuffer) String() string {
	if fb == nil {
		return "<nil>"
	}
	return fb.Name
}
