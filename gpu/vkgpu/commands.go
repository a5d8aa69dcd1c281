// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"image"
	"unsafe"

	"cogentcore.org/pyro/gpu"
	vk "github.com/goki/vulkan"
)

// CommandBuffer is a primary vulkan command buffer
// from the device command pool.
type CommandBuffer struct {
	dev *Device
	cmd vk.CommandBuffer
}

func (dv *Device) NewCommandBuffer() (gpu.CommandBuffer, error) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	cmds := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(dv.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        dv.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, cmds)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return &CommandBuffer{dev: dv, cmd: cmds[0]}, nil
}

func (cb *CommandBuffer) Release() {
	if cb.cmd == nil {
		return
	}
	cb.dev.mu.Lock()
	vk.FreeCommandBuffers(cb.dev.Device, cb.dev.pool, 1, []vk.CommandBuffer{cb.cmd})
	cb.dev.mu.Unlock()
	cb.cmd = nil
}

func (cb *CommandBuffer) Begin() error {
	return NewError(vk.BeginCommandBuffer(cb.cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
}

func (cb *CommandBuffer) End() error {
	return NewError(vk.EndCommandBuffer(cb.cmd))
}

func (cb *CommandBuffer) Reset() error {
	return NewError(vk.ResetCommandBuffer(cb.cmd, 0))
}

// Barrier records all barriers in one pipeline barrier command,
// with the union of their stage masks.
func (cb *CommandBuffer) Barrier(bs []gpu.Barrier) {
	if len(bs) == 0 {
		return
	}
	var src, dst gpu.PipelineStage
	ibs := make([]vk.ImageMemoryBarrier, len(bs))
	for i, b := range bs {
		im := b.Image.(*Image)
		src |= b.SrcStage
		dst |= b.DstStage
		ibs[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       VkAccess(b.SrcAccess),
			DstAccessMask:       VkAccess(b.DstAccess),
			OldLayout:           VkLayout(b.Old),
			NewLayout:           VkLayout(b.New),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               im.Image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: VkAspect(im.Format),
				LevelCount: vk.RemainingMipLevels,
				LayerCount: vk.RemainingArrayLayers,
			},
		}
	}
	vk.CmdPipelineBarrier(cb.cmd, VkStage(src), VkStage(dst), 0, 0, nil, 0, nil, uint32(len(ibs)), ibs)
}

func (cb *CommandBuffer) BeginPass(rp gpu.DeviceRenderPass, fb gpu.DeviceFramebuffer, size image.Point, clear []gpu.ClearValue) {
	vrp := rp.(*RenderPass)
	clears := make([]vk.ClearValue, len(clear))
	for i, c := range clear {
		if i < len(vrp.Attachments) && vrp.Attachments[i].Format.IsDepth() {
			clears[i] = vk.NewClearDepthStencil(c.Depth, 0)
		} else {
			clears[i] = vk.NewClearValue(c.Color[:])
		}
	}
	area := vk.Rect2D{Extent: vk.Extent2D{Width: uint32(size.X), Height: uint32(size.Y)}}
	vk.CmdBeginRenderPass(cb.cmd, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      vrp.RenderPass,
		Framebuffer:     fb.(*Framebuffer).Framebuffer,
		RenderArea:      area,
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)
	vk.CmdSetViewport(cb.cmd, 0, 1, []vk.Viewport{{
		Width:    float32(size.X),
		Height:   float32(size.Y),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(cb.cmd, 0, 1, []vk.Rect2D{area})
}

func (cb *CommandBuffer) EndPass() {
	vk.CmdEndRenderPass(cb.cmd)
}

func (cb *CommandBuffer) BindProgram(p gpu.DeviceProgram) {
	vk.CmdBindPipeline(cb.cmd, vk.PipelineBindPointGraphics, p.(*Program).Pipeline)
}

func (cb *CommandBuffer) BindDescriptors(p gpu.DeviceProgram, ds gpu.DescriptorSet) {
	vk.CmdBindDescriptorSets(cb.cmd, vk.PipelineBindPointGraphics, p.(*Program).Layout,
		0, 1, []vk.DescriptorSet{ds.(*DescriptorSet).Set}, 0, nil)
}

func (cb *CommandBuffer) PushConstants(p gpu.DeviceProgram, data []byte) {
	if len(data) == 0 {
		return
	}
	pr := p.(*Program)
	vk.CmdPushConstants(cb.cmd, pr.Layout, vk.ShaderStageFlags(shaderStages), 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (cb *CommandBuffer) SetVertexBuffer(buf gpu.DeviceBuffer) {
	vk.CmdBindVertexBuffers(cb.cmd, 0, 1, []vk.Buffer{buf.(*Buffer).Buffer}, []vk.DeviceSize{0})
}

func (cb *CommandBuffer) Draw(vertices, instances int) {
	vk.CmdDraw(cb.cmd, uint32(vertices), uint32(instances), 0, 0)
}

func (cb *CommandBuffer) Blit(src gpu.DeviceImage, srcSize image.Point, dst gpu.DeviceImage, dstSize image.Point, filter gpu.Filter) {
	si := src.(*Image)
	di := dst.(*Image)
	vk.CmdBlitImage(cb.cmd, si.Image, vk.ImageLayoutTransferSrcOptimal, di.Image, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{{
			SrcSubresource: si.subresource(),
			SrcOffsets:     [2]vk.Offset3D{{}, {X: int32(srcSize.X), Y: int32(srcSize.Y), Z: 1}},
			DstSubresource: di.subresource(),
			DstOffsets:     [2]vk.Offset3D{{}, {X: int32(dstSize.X), Y: int32(dstSize.Y), Z: 1}},
		}}, vkFilter(filter))
}

// CopyToBuffer copies an image in the transfer source layout
// into a readback buffer, tightly packed.
func (cb *CommandBuffer) CopyToBuffer(src gpu.DeviceImage, size image.Point, dst gpu.DeviceBuffer) {
	si := src.(*Image)
	vk.CmdCopyImageToBuffer(cb.cmd, si.Image, vk.ImageLayoutTransferSrcOptimal, dst.(*Buffer).Buffer,
		1, []vk.BufferImageCopy{{
			ImageSubresource: si.subresource(),
			ImageExtent:      vk.Extent3D{Width: uint32(size.X), Height: uint32(size.Y), Depth: 1},
		}})
}
