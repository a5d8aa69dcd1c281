// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"image"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/render"
)

// GBufferFormat is the format of the albedo and normal attachments.
const GBufferFormat = gpu.FormatRGBA16Float

// Indexes of the frame slot framebuffers. The forward framebuffer
// shares its images with the other two, and is released first.
const (
	forwardTarget = iota
	lightingTarget
	gbufferTarget
)

// passes are the render passes of the frame, shared by all slots.
type passes struct {

	// albedo, normal and depth, all left in their attachment
	// layouts for the explicit barrier after the pass
	gbuffer *gpu.RenderPass

	// accumulated light color, left as attachment for the
	// forward pass
	lighting *gpu.RenderPass

	// light color kept, with the read-only G-buffer depth
	forward *gpu.RenderPass

	// depth only, left readable by the lighting pass
	shadow *gpu.RenderPass

	// color kept, drawn over the final image
	overlay *gpu.RenderPass
}

func newPasses(cx *gpu.Context) (*passes, error) {
	ps := &passes{}
	var err error
	colorAtt := gpu.Attachment{Format: GBufferFormat, Load: gpu.LoadClear, Layout: gpu.LayoutColorAttachment, Final: gpu.LayoutColorAttachment}
	depthAtt := gpu.Attachment{Format: gpu.FormatDepth32, Load: gpu.LoadClear, Layout: gpu.LayoutDepthAttachment, Final: gpu.LayoutDepthAttachment}
	if ps.gbuffer, err = gpu.NewRenderPass(cx, "engine.gbuffer", colorAtt, colorAtt, depthAtt); err != nil {
		ps.release()
		return nil, err
	}
	if ps.lighting, err = gpu.NewRenderPass(cx, "engine.lighting", gpu.Attachment{Format: render.OutputFormat, Load: gpu.LoadClear, Layout: gpu.LayoutColorAttachment, Final: gpu.LayoutColorAttachment}); err != nil {
		ps.release()
		return nil, err
	}
	ps.lighting.SetClearColor(0, 0, 0, 0, 1)
	if ps.forward, err = gpu.NewRenderPass(cx, "engine.forward",
		gpu.Attachment{Format: render.OutputFormat, Load: gpu.LoadKeep, Layout: gpu.LayoutColorAttachment, Final: gpu.LayoutShaderRead},
		gpu.Attachment{Format: gpu.FormatDepth32, Load: gpu.LoadKeep, Layout: gpu.LayoutDepthReadOnly, Final: gpu.LayoutDepthReadOnly}); err != nil {
		ps.release()
		return nil, err
	}
	if ps.shadow, err = gpu.NewRenderPass(cx, "engine.shadow", gpu.Attachment{Format: gpu.FormatDepth32, Load: gpu.LoadClear, Layout: gpu.LayoutDepthAttachment, Final: gpu.LayoutDepthReadOnly}); err != nil {
		ps.release()
		return nil, err
	}
	if ps.overlay, err = gpu.NewRenderPass(cx, "engine.overlay", gpu.Attachment{Format: render.OutputFormat, Load: gpu.LoadKeep, Layout: gpu.LayoutColorAttachment, Final: gpu.LayoutShaderRead}); err != nil {
		ps.release()
		return nil, err
	}
	return ps, nil
}

func (ps *passes) release() {
	for _, rp := range []*gpu.RenderPass{ps.gbuffer, ps.lighting, ps.forward, ps.shadow, ps.overlay} {
		if rp != nil {
			rp.Release()
		}
	}
}

// makeTargets returns the render targets of frame slot index:
// the G-buffer, the lighting buffer, the forward framebuffer over
// both of them, and the image and buffer for readback.
func (r *Renderer) makeTargets(index int, size image.Point) (*gpu.FrameTargets, error) {
	cx := r.cx
	tg := &gpu.FrameTargets{Framebuffers: make([]*gpu.Framebuffer, 3)}
	fail := func(err error) (*gpu.FrameTargets, error) {
		tg.Release()
		return nil, err
	}
	var err error
	if tg.Framebuffers[gbufferTarget], err = gpu.NewFramebuffer(cx, fmt.Sprintf("gbuffer.%d", index), r.passes.gbuffer, size, gpu.UsageSampled); err != nil {
		return fail(err)
	}
	if tg.Framebuffers[lightingTarget], err = gpu.NewFramebuffer(cx, fmt.Sprintf("lighting.%d", index), r.passes.lighting, size, render.OutputUsage); err != nil {
		return fail(err)
	}
	fw, err := gpu.NewFramebuffer(cx, fmt.Sprintf("forward.%d", index), r.passes.forward, size, gpu.UsageSampled)
	if err != nil {
		return fail(err)
	}
	tg.Framebuffers[forwardTarget] = fw
	if err := fw.SetAttachment(0, tg.Framebuffers[lightingTarget].Attachment(0)); err != nil {
		return fail(err)
	}
	if err := fw.SetAttachment(1, tg.Framebuffers[gbufferTarget].Depth()); err != nil {
		return fail(err)
	}
	out, err := gpu.NewImage(cx, &gpu.ImageDesc{Name: fmt.Sprintf("output.%d", index), Size: size, Format: gpu.FormatRGBA8Unorm, Usage: gpu.UsageTransferDst | gpu.UsageTransferSrc})
	if err != nil {
		return fail(err)
	}
	tg.Images = append(tg.Images, out)
	tg.Readback, err = cx.Device.NewBuffer(size.X*size.Y*4, gpu.BufferReadback)
	if errors.Log(err) != nil {
		return fail(err)
	}
	return tg, nil
}

// frameTargets are the targets of a slot by role.
type frameTargets struct {
	gbuffer, lighting, forward *gpu.Framebuffer
	output                     *gpu.Image
	readback                   gpu.DeviceBuffer
}

func targetsOf(sl *gpu.FrameSlot) frameTargets {
	tg := sl.Targets
	return frameTargets{
		gbuffer:  tg.Framebuffers[gbufferTarget],
		lighting: tg.Framebuffers[lightingTarget],
		forward:  tg.Framebuffers[forwardTarget],
		output:   tg.Images[0],
		readback: tg.Readback,
	}
}
