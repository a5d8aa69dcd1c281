// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"cogentcore.org/pyro/gpu"
	vk "github.com/goki/vulkan"
)

var formats = map[gpu.Format]vk.Format{
	gpu.FormatUndefined:       vk.FormatUndefined,
	gpu.FormatRGBA8Unorm:      vk.FormatR8g8b8a8Unorm,
	gpu.FormatRGBA8Srgb:       vk.FormatR8g8b8a8Srgb,
	gpu.FormatBGRA8Unorm:      vk.FormatB8g8r8a8Unorm,
	gpu.FormatBGRA8Srgb:       vk.FormatB8g8r8a8Srgb,
	gpu.FormatRGBA16Float:     vk.FormatR16g16b16a16Sfloat,
	gpu.FormatRGBA32Float:     vk.FormatR32g32b32a32Sfloat,
	gpu.FormatDepth32:         vk.FormatD32Sfloat,
	gpu.FormatDepth24Stencil8: vk.FormatD24UnormS8Uint,
}

// VkFormat returns the vulkan format for f.
func VkFormat(f gpu.Format) vk.Format {
	return formats[f]
}

// FormatFromVk returns the format for a vulkan format,
// or [gpu.FormatUndefined] if it has none.
func FormatFromVk(f vk.Format) gpu.Format {
	for gf, vf := range formats {
		if vf == f {
			return gf
		}
	}
	return gpu.FormatUndefined
}

var layouts = [gpu.LayoutsN]vk.ImageLayout{
	gpu.LayoutUndefined:       vk.ImageLayoutUndefined,
	gpu.LayoutGeneral:         vk.ImageLayoutGeneral,
	gpu.LayoutColorAttachment: vk.ImageLayoutColorAttachmentOptimal,
	gpu.LayoutDepthAttachment: vk.ImageLayoutDepthStencilAttachmentOptimal,
	gpu.LayoutDepthReadOnly:   vk.ImageLayoutDepthStencilReadOnlyOptimal,
	gpu.LayoutShaderRead:      vk.ImageLayoutShaderReadOnlyOptimal,
	gpu.LayoutTransferSrc:     vk.ImageLayoutTransferSrcOptimal,
	gpu.LayoutTransferDst:     vk.ImageLayoutTransferDstOptimal,
	gpu.LayoutPresent:         vk.ImageLayoutPresentSrc,
}

// VkLayout returns the vulkan image layout for l.
func VkLayout(l gpu.Layout) vk.ImageLayout {
	return layouts[l]
}

var accessBits = []struct {
	gpu gpu.Access
	vk  vk.AccessFlagBits
}{
	{gpu.AccessColorAttachmentRead, vk.AccessColorAttachmentReadBit},
	{gpu.AccessColorAttachmentWrite, vk.AccessColorAttachmentWriteBit},
	{gpu.AccessDepthStencilRead, vk.AccessDepthStencilAttachmentReadBit},
	{gpu.AccessDepthStencilWrite, vk.AccessDepthStencilAttachmentWriteBit},
	{gpu.AccessShaderRead, vk.AccessShaderReadBit},
	{gpu.AccessShaderWrite, vk.AccessShaderWriteBit},
	{gpu.AccessTransferRead, vk.AccessTransferReadBit},
	{gpu.AccessTransferWrite, vk.AccessTransferWriteBit},
	{gpu.AccessHostRead, vk.AccessHostReadBit},
	{gpu.AccessMemoryRead, vk.AccessMemoryReadBit},
}

// VkAccess returns the vulkan access mask for a.
func VkAccess(a gpu.Access) vk.AccessFlags {
	var f vk.AccessFlagBits
	for _, b := range accessBits {
		if a.Has(b.gpu) {
			f |= b.vk
		}
	}
	return vk.AccessFlags(f)
}

var stageBits = []struct {
	gpu gpu.PipelineStage
	vk  vk.PipelineStageFlagBits
}{
	{gpu.StageTopOfPipe, vk.PipelineStageTopOfPipeBit},
	{gpu.StageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
	{gpu.StageFragmentShader, vk.PipelineStageFragmentShaderBit},
	{gpu.StageLateFragmentTests, vk.PipelineStageLateFragmentTestsBit},
	{gpu.StageColorAttachmentOutput, vk.PipelineStageColorAttachmentOutputBit},
	{gpu.StageComputeShader, vk.PipelineStageComputeShaderBit},
	{gpu.StageTransfer, vk.PipelineStageTransferBit},
	{gpu.StageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
	{gpu.StageHost, vk.PipelineStageHostBit},
	{gpu.StageAllCommands, vk.PipelineStageAllCommandsBit},
}

// VkStage returns the vulkan pipeline stage mask for s.
// An empty mask maps to top of pipe, as vulkan requires a stage.
func VkStage(s gpu.PipelineStage) vk.PipelineStageFlags {
	var f vk.PipelineStageFlagBits
	for _, b := range stageBits {
		if s&b.gpu != 0 {
			f |= b.vk
		}
	}
	if f == 0 {
		f = vk.PipelineStageTopOfPipeBit
	}
	return vk.PipelineStageFlags(f)
}

// VkAspect returns the vulkan aspect mask for an image format.
func VkAspect(f gpu.Format) vk.ImageAspectFlags {
	switch f {
	case gpu.FormatDepth32:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	case gpu.FormatDepth24Stencil8:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// VkUsage returns the vulkan image usage flags for u.
func VkUsage(u gpu.Usage) vk.ImageUsageFlags {
	var f vk.ImageUsageFlagBits
	if u.Has(gpu.UsageColorAttachment) {
		f |= vk.ImageUsageColorAttachmentBit
	}
	if u.Has(gpu.UsageDepthAttachment) {
		f |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u.Has(gpu.UsageSampled) {
		f |= vk.ImageUsageSampledBit
	}
	if u.Has(gpu.UsageTransferSrc) {
		f |= vk.ImageUsageTransferSrcBit
	}
	if u.Has(gpu.UsageTransferDst) {
		f |= vk.ImageUsageTransferDstBit
	}
	if u.Has(gpu.UsageStorage) {
		f |= vk.ImageUsageStorageBit
	}
	return vk.ImageUsageFlags(f)
}

func vkLoadOp(l gpu.LoadOp) vk.AttachmentLoadOp {
	switch l {
	case gpu.LoadClear:
		return vk.AttachmentLoadOpClear
	case gpu.LoadKeep:
		return vk.AttachmentLoadOpLoad
	}
	return vk.AttachmentLoadOpDontCare
}

func vkFilter(f gpu.Filter) vk.Filter {
	if f == gpu.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
