// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"image"
	"testing"
	"time"

	"cogentcore.org/pyro/gpu"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormats(t *testing.T) {
	for gf, vf := range formats {
		assert.Equal(t, gf, FormatFromVk(vf))
	}
	assert.Equal(t, gpu.FormatUndefined, FormatFromVk(vk.FormatR8Unorm))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), VkAspect(gpu.FormatDepth32))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), VkAspect(gpu.FormatRGBA16Float))
}

func TestLayouts(t *testing.T) {
	for l := gpu.LayoutUndefined; l < gpu.LayoutsN; l++ {
		if l != gpu.LayoutUndefined {
			assert.NotEqual(t, vk.ImageLayoutUndefined, VkLayout(l), l.String())
		}
	}
	assert.Equal(t, vk.ImageLayoutPresentSrc, VkLayout(gpu.LayoutPresent))
}

func TestBarrierMasks(t *testing.T) {
	b := gpu.TransitionBarrier(gpu.LayoutColorAttachment, gpu.LayoutShaderRead)
	assert.Equal(t, vk.AccessFlags(vk.AccessColorAttachmentWriteBit), VkAccess(b.SrcAccess))
	assert.Equal(t, vk.AccessFlags(vk.AccessShaderReadBit), VkAccess(b.DstAccess))
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), VkStage(b.SrcStage))
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), VkStage(b.DstStage))

	assert.Equal(t, vk.AccessFlags(0), VkAccess(gpu.AccessNone))
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), VkStage(gpu.StageNone))
}

func TestUsage(t *testing.T) {
	u := VkUsage(gpu.UsageColorAttachment | gpu.UsageSampled)
	assert.Equal(t, vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageSampledBit), u)
}

func TestDevice(t *testing.T) {
	t.Skip("Need GPU")
	require.NoError(t, InitHeadless())
	dev, err := NewDevice(Options{Name: "test"})
	require.NoError(t, err)
	cx := gpu.NewContext(dev)
	defer cx.Release()

	im, err := gpu.NewImage(cx, &gpu.ImageDesc{Name: "color", Size: image.Pt(4, 4), Format: gpu.FormatRGBA8Unorm, Usage: gpu.UsageColorAttachment | gpu.UsageTransferSrc})
	require.NoError(t, err)
	defer im.Release()
	buf, err := dev.NewBuffer(4*4*4, gpu.BufferReadback)
	require.NoError(t, err)
	defer buf.Release()

	fence, err := dev.NewFence(false)
	require.NoError(t, err)
	defer fence.Release()
	rec, err := gpu.NewRecorder(cx, "test")
	require.NoError(t, err)
	defer rec.Release()
	require.NoError(t, rec.Begin())
	rec.Transition(gpu.LayoutTransferSrc, im)
	require.NoError(t, rec.CopyToBuffer(im, buf))
	require.NoError(t, rec.End())
	require.NoError(t, rec.Submit(dev.Queue(), gpu.SubmitOptions{Fence: fence}))
	assert.NoError(t, fence.Wait(time.Second))
}
