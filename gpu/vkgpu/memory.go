// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"fmt"
	"image"
	"unsafe"

	"cogentcore.org/pyro/gpu"
	vk "github.com/goki/vulkan"
)

// Image is a device-local image with a view, or a view of a
// swapchain image that the surface owns.
type Image struct {
	dev    *Device
	Format gpu.Format
	Size   image.Point
	Image  vk.Image
	View   vk.ImageView
	memory vk.DeviceMemory

	// owned is false for swapchain images.
	owned bool
}

func (dv *Device) NewImage(desc *gpu.ImageDesc) (gpu.DeviceImage, error) {
	mips := max(desc.Mips, 1)
	layers := max(desc.Layers, 1)
	var flags vk.ImageCreateFlags
	if desc.Cube {
		flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	var img vk.Image
	ret := vk.CreateImage(dv.Device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		Flags:     flags,
		ImageType: vk.ImageType2d,
		Format:    VkFormat(desc.Format),
		Extent: vk.Extent3D{
			Width:  uint32(desc.Size.X),
			Height: uint32(desc.Size.Y),
			Depth:  1,
		},
		MipLevels:     uint32(mips),
		ArrayLayers:   uint32(layers),
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         VkUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("vkgpu: image %q: %w", desc.Name, err)
	}
	im := &Image{dev: dv, Format: desc.Format, Size: desc.Size, Image: img, owned: true}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dv.Device, img, &req)
	mem, err := dv.allocate(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(dv.Device, img, nil)
		return nil, err
	}
	im.memory = mem
	vk.BindImageMemory(dv.Device, img, mem, 0)

	viewType := vk.ImageViewType2d
	switch {
	case desc.Cube:
		viewType = vk.ImageViewTypeCube
	case layers > 1:
		viewType = vk.ImageViewType2dArray
	}
	if err := im.newView(viewType, uint32(mips), uint32(layers)); err != nil {
		im.Release()
		return nil, err
	}
	return im, nil
}

// wrapImage makes an image view on a swapchain image.
func (dv *Device) wrapImage(img vk.Image, format gpu.Format, size image.Point) (*Image, error) {
	im := &Image{dev: dv, Format: format, Size: size, Image: img}
	if err := im.newView(vk.ImageViewType2d, 1, 1); err != nil {
		return nil, err
	}
	return im, nil
}

func (im *Image) newView(viewType vk.ImageViewType, mips, layers uint32) error {
	var view vk.ImageView
	ret := vk.CreateImageView(im.dev.Device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    im.Image,
		ViewType: viewType,
		Format:   VkFormat(im.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: VkAspect(im.Format),
			LevelCount: mips,
			LayerCount: layers,
		},
	}, nil, &view)
	if err := NewError(ret); err != nil {
		return err
	}
	im.View = view
	return nil
}

func (im *Image) subresource() vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask: VkAspect(im.Format),
		LayerCount: 1,
	}
}

func (im *Image) Release() {
	dev := im.dev.Device
	if im.View != vk.NullImageView {
		vk.DestroyImageView(dev, im.View, nil)
		im.View = vk.NullImageView
	}
	if !im.owned {
		return
	}
	if im.Image != vk.NullImage {
		vk.DestroyImage(dev, im.Image, nil)
		im.Image = vk.NullImage
	}
	if im.memory != vk.NullDeviceMemory {
		vk.FreeMemory(dev, im.memory, nil)
		im.memory = vk.NullDeviceMemory
	}
}

// Buffer is a host-visible, host-coherent buffer that stays
// mapped for its whole life.
type Buffer struct {
	dev    *Device
	Buffer vk.Buffer
	memory vk.DeviceMemory
	size   int
	mapped unsafe.Pointer
}

var bufferUsages = map[gpu.BufferUsage]vk.BufferUsageFlagBits{
	gpu.BufferUniform:  vk.BufferUsageUniformBufferBit,
	gpu.BufferVertex:   vk.BufferUsageVertexBufferBit,
	gpu.BufferReadback: vk.BufferUsageTransferDstBit,
}

func (dv *Device) NewBuffer(size int, usage gpu.BufferUsage) (gpu.DeviceBuffer, error) {
	var buf vk.Buffer
	ret := vk.CreateBuffer(dv.Device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(bufferUsages[usage]),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	bf := &Buffer{dev: dv, Buffer: buf, size: size}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dv.Device, buf, &req)
	mem, err := dv.allocate(req, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(dv.Device, buf, nil)
		return nil, err
	}
	bf.memory = mem
	vk.BindBufferMemory(dv.Device, buf, mem, 0)

	var ptr unsafe.Pointer
	ret = vk.MapMemory(dv.Device, mem, 0, vk.DeviceSize(size), 0, &ptr)
	if err := NewError(ret); err != nil {
		bf.Release()
		return nil, err
	}
	bf.mapped = ptr
	return bf, nil
}

func (bf *Buffer) Size() int { return bf.size }

func (bf *Buffer) bytes() []byte {
	return unsafe.Slice((*byte)(bf.mapped), bf.size)
}

func (bf *Buffer) Write(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > bf.size {
		return fmt.Errorf("vkgpu: buffer write [%d:%d] out of range %d", offset, offset+len(data), bf.size)
	}
	copy(bf.bytes()[offset:], data)
	return nil
}

func (bf *Buffer) Read(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > bf.size {
		return fmt.Errorf("vkgpu: buffer read [%d:%d] out of range %d", offset, offset+len(data), bf.size)
	}
	copy(data, bf.bytes()[offset:])
	return nil
}

func (bf *Buffer) Release() {
	dev := bf.dev.Device
	if bf.mapped != nil {
		vk.UnmapMemory(dev, bf.memory)
		bf.mapped = nil
	}
	if bf.Buffer != vk.NullBuffer {
		vk.DestroyBuffer(dev, bf.Buffer, nil)
		bf.Buffer = vk.NullBuffer
	}
	if bf.memory != vk.NullDeviceMemory {
		vk.FreeMemory(dev, bf.memory, nil)
		bf.memory = vk.NullDeviceMemory
	}
}
