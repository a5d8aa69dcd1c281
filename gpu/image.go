// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"image"
	"log/slog"

	"cogentcore.org/core/base/errors"
)

// Image is a device image together with the single authoritative
// record of its current layout. All layout changes must go through
// [Image.RequestLayout] (directly or via a [Recorder]); an image whose
// layout is changed by any other path will be out of sync with the
// device, which is a caller bug that is not checked at runtime.
//
// An Image is exclusively owned by whatever created it (a [Framebuffer],
// a texture loader), which is the only one that may Release it.
type Image struct {

	// Name is used in logging.
	Name string

	// Format is the pixel format.
	Format Format

	// Size is the width and height in pixels.
	Size image.Point

	// Mips is the number of mip levels.
	Mips int

	// Layers is the number of array layers (6 for a cube).
	Layers int

	// Usage is the set of ways the image may be used.
	Usage Usage

	// current layout
	layout Layout

	// driver handle
	handle DeviceImage

	// true if the handle is owned elsewhere, e.g., a swapchain image
	external bool
}

// NewImage allocates a new image on the context device.
// Its layout starts out as [LayoutUndefined].
func NewImage(cx *Context, desc *ImageDesc) (*Image, error) {
	if desc.Mips < 1 {
		desc.Mips = 1
	}
	if desc.Layers < 1 {
		desc.Layers = 1
	}
	if desc.Size.X <= 0 || desc.Size.Y <= 0 {
		return nil, errors.Log(fmt.Errorf("gpu.NewImage %q: invalid size %v", desc.Name, desc.Size))
	}
	h, err := cx.Device.NewImage(desc)
	if errors.Log(err) != nil {
		return nil, err
	}
	return &Image{Name: desc.Name, Format: desc.Format, Size: desc.Size, Mips: desc.Mips, Layers: desc.Layers, Usage: desc.Usage, handle: h}, nil
}

// WrapImage returns an Image for a handle that is owned elsewhere,
// such as a swapchain image, in the given current layout.
// Release does not destroy the handle.
func WrapImage(h DeviceImage, name string, format Format, size image.Point, layout Layout) *Image {
	return &Image{Name: name, Format: format, Size: size, Mips: 1, Layers: 1, Usage: UsageColorAttachment | UsageTransferDst, layout: layout, handle: h, external: true}
}

// Layout returns the current layout of the image.
func (im *Image) Layout() Layout {
	return im.layout
}

// Handle returns the driver handle of the image.
func (im *Image) Handle() DeviceImage {
	return im.handle
}

// Discard marks the contents as no longer needed, so that the next
// transition starts from [LayoutUndefined]. This is used for images
// whose contents are replaced wholesale, like freshly acquired
// swapchain images.
func (im *Image) Discard() {
	im.layout = LayoutUndefined
}

// RequestLayout records a barrier on rec that transitions the image
// from its current layout to the given one, and then sets the current
// layout. A request for the current layout still records a barrier,
// so callers should avoid requesting no-op transitions. If rec is not
// recording, the layout is unchanged and a zero Barrier is returned.
func (im *Image) RequestLayout(rec *Recorder, layout Layout) Barrier {
	if rec.recording("RequestLayout") != nil {
		return Barrier{}
	}
	b := im.barrier(layout)
	rec.recordBarriers(b)
	return b
}

// barrier computes the transition to layout and updates the
// current layout without recording it.
func (im *Image) barrier(layout Layout) Barrier {
	b := TransitionBarrier(im.layout, layout)
	b.Image = im.handle
	b.Aspect = im.Format.Aspect()
	if Debug {
		slog.Debug("gpu.Image.RequestLayout", "image", im.Name, "barrier", b.String())
	}
	im.layout = layout
	return b
}

// SetSize reallocates an owned image at a new size, keeping the
// same Image so that everything referring to it stays valid.
// The contents are lost, so the layout becomes [LayoutUndefined].
func (im *Image) SetSize(cx *Context, size image.Point) error {
	if !Assert(!im.external, "Image %q: SetSize on external image", im.Name) {
		return fmt.Errorf("gpu.Image.SetSize %q: external image", im.Name)
	}
	if size == im.Size && im.handle != nil {
		return nil
	}
	if size.X <= 0 || size.Y <= 0 {
		return errors.Log(fmt.Errorf("gpu.Image.SetSize %q: invalid size %v", im.Name, size))
	}
	if im.handle != nil {
		im.handle.Release()
		im.handle = nil
	}
	h, err := cx.Device.NewImage(&ImageDesc{Name: im.Name, Size: size, Format: im.Format, Mips: im.Mips, Layers: im.Layers, Usage: im.Usage})
	if errors.Log(err) != nil {
		return err
	}
	im.handle = h
	im.Size = size
	im.layout = LayoutUndefined
	return nil
}

// Release destroys the image if it is owned.
func (im *Image) Release() {
	if im.handle == nil {
		return
	}
	if !im.external {
		im.handle.Release()
	}
	im.handle = nil
	im.layout = LayoutUndefined
}

func (im *Image) String() string {
	return fmt.Sprintf("%s %v %s [%s]", im.Name, im.Size, im.Format, im.layout)
}
