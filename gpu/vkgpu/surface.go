// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/pyro/gpu"
	vk "github.com/goki/vulkan"
)

// DesiredImages is the number of swapchain images requested.
const DesiredImages = 3

// Surface manages the swapchain of a window surface.
// It implements [gpu.Surface].
type Surface struct {
	dev       *Device
	Surface   vk.Surface
	Swapchain vk.Swapchain
	format    vk.SurfaceFormat
	size      image.Point
	images    []*Image

	// suboptimal is set by an acquire that succeeded on a swapchain
	// that no longer matches the surface, reported at present.
	suboptimal bool
}

// NewSurface makes a swapchain for the surface at the given size,
// which is used when the surface does not report its own extent.
func NewSurface(dv *Device, vs vk.Surface, size image.Point) (*Surface, error) {
	var supported vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(dv.Physical, dv.QueueIndex, vs, &supported)
	if !supported.B() {
		return nil, errors.New("vkgpu: graphics queue cannot present to surface")
	}
	sf := &Surface{dev: dv, Surface: vs}
	if err := sf.chooseFormat(); err != nil {
		return nil, err
	}
	if err := sf.Recreate(size); err != nil {
		return nil, err
	}
	return sf, nil
}

// chooseFormat picks an 8 bit unorm format: the tonemap stage
// does the sRGB encoding.
func (sf *Surface) chooseFormat() error {
	var n uint32
	vk.GetPhysicalDeviceSurfaceFormats(sf.dev.Physical, sf.Surface, &n, nil)
	if n == 0 {
		return errors.New("vkgpu: surface has no pixel formats")
	}
	formats := make([]vk.SurfaceFormat, n)
	vk.GetPhysicalDeviceSurfaceFormats(sf.dev.Physical, sf.Surface, &n, formats)
	for i := range formats {
		formats[i].Deref()
	}
	sf.format = formats[0]
	if sf.format.Format == vk.FormatUndefined {
		sf.format.Format = vk.FormatB8g8r8a8Unorm
	}
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm || f.Format == vk.FormatR8g8b8a8Unorm {
			sf.format = f
			break
		}
	}
	return nil
}

func (sf *Surface) Size() image.Point { return sf.size }

func (sf *Surface) Format() gpu.Format { return FormatFromVk(sf.format.Format) }

// Recreate rebuilds the swapchain, replacing the old one.
// It waits for the device to be idle, as the old images
// may still be in use.
func (sf *Surface) Recreate(size image.Point) error {
	dev := sf.dev.Device
	vk.DeviceWaitIdle(dev)

	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(sf.dev.Physical, sf.Surface, &caps)
	if err := NewError(ret); err != nil {
		return err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		extent = vk.Extent2D{Width: uint32(size.X), Height: uint32(size.Y)}
	}
	if extent.Width == 0 || extent.Height == 0 {
		// minimized: keep the old swapchain, acquire reports out of date
		sf.size = image.Point{}
		return nil
	}

	nimages := uint32(DesiredImages)
	if nimages < caps.MinImageCount {
		nimages = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && nimages > caps.MaxImageCount {
		nimages = caps.MaxImageCount
	}

	preTransform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&preTransform == 0 {
		preTransform = caps.CurrentTransform
	}
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, a := range []vk.CompositeAlphaFlagBits{vk.CompositeAlphaOpaqueBit, vk.CompositeAlphaPreMultipliedBit, vk.CompositeAlphaPostMultipliedBit, vk.CompositeAlphaInheritBit} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(a) != 0 {
			compositeAlpha = a
			break
		}
	}

	old := sf.Swapchain
	var swapchain vk.Swapchain
	ret = vk.CreateSwapchain(dev, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          sf.Surface,
		MinImageCount:    nimages,
		ImageFormat:      sf.format.Format,
		ImageColorSpace:  sf.format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &swapchain)
	if err := NewError(ret); err != nil {
		return fmt.Errorf("vkgpu: swapchain: %w", err)
	}
	sf.releaseImages()
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(dev, old, nil)
	}
	sf.Swapchain = swapchain
	sf.size = image.Pt(int(extent.Width), int(extent.Height))
	sf.suboptimal = false

	var n uint32
	vk.GetSwapchainImages(dev, swapchain, &n, nil)
	vimgs := make([]vk.Image, n)
	vk.GetSwapchainImages(dev, swapchain, &n, vimgs)
	for _, vi := range vimgs {
		im, err := sf.dev.wrapImage(vi, sf.Format(), sf.size)
		if err != nil {
			return err
		}
		sf.images = append(sf.images, im)
	}
	slog.Info("vkgpu: swapchain created", "size", sf.size, "images", n, "format", sf.Format())
	return nil
}

// Acquire gets the next swapchain image. A suboptimal swapchain
// still yields an image, whose present then reports
// [gpu.ErrSuboptimal], so that the signaled semaphore is consumed.
func (sf *Surface) Acquire(signal gpu.Semaphore, timeout time.Duration) (int, gpu.DeviceImage, error) {
	if sf.size == (image.Point{}) || sf.Swapchain == vk.NullSwapchain {
		return -1, nil, gpu.ErrOutOfDate
	}
	var idx uint32
	ret := vk.AcquireNextImage(sf.dev.Device, sf.Swapchain, uint64(timeout.Nanoseconds()),
		signal.(*Semaphore).Semaphore, vk.NullFence, &idx)
	switch ret {
	case vk.Success:
	case vk.Suboptimal:
		sf.suboptimal = true
	case vk.ErrorOutOfDate:
		return -1, nil, gpu.ErrOutOfDate
	case vk.Timeout, vk.NotReady:
		return -1, nil, gpu.ErrTimeout
	case vk.ErrorDeviceLost:
		return -1, nil, gpu.ErrDeviceLost
	default:
		return -1, nil, NewError(ret)
	}
	return int(idx), sf.images[idx], nil
}

func (sf *Surface) Present(index int, wait gpu.Semaphore) error {
	q := sf.dev.queue
	q.mu.Lock()
	ret := vk.QueuePresent(q.queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.(*Semaphore).Semaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sf.Swapchain},
		PImageIndices:      []uint32{uint32(index)},
	})
	q.mu.Unlock()
	switch ret {
	case vk.Success:
		if sf.suboptimal {
			return gpu.ErrSuboptimal
		}
		return nil
	case vk.Suboptimal:
		return gpu.ErrSuboptimal
	case vk.ErrorOutOfDate:
		return gpu.ErrOutOfDate
	}
	return NewError(ret)
}

func (sf *Surface) releaseImages() {
	for _, im := range sf.images {
		im.Release()
	}
	sf.images = nil
}

func (sf *Surface) Release() {
	vk.DeviceWaitIdle(sf.dev.Device)
	sf.releaseImages()
	if sf.Swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(sf.dev.Device, sf.Swapchain, nil)
		sf.Swapchain = vk.NullSwapchain
	}
	if sf.Surface != vk.NullSurface {
		vk.DestroySurface(sf.dev.Instance, sf.Surface, nil)
		sf.Surface = vk.NullSurface
	}
}
