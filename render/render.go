// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package render is the post-processing stage chain that turns
// the lit scene framebuffer into the final image at display
// resolution. Stages are recorded in declaration order, each reading
// the output of the last active stage before it, and a sub-chain can
// be merged back into the main chain by a combining stage.
package render

import (
	"image"

	"cogentcore.org/pyro/gpu"
)

// Stage is one stage of a [Chain].
type Stage interface {

	// Name is the unique name of the stage in its chain.
	Name() string

	// Active returns whether the stage is run.
	Active() bool

	// SetActive turns the stage on or off, without releasing anything.
	SetActive(on bool)

	// Record records the stage on rec for the given frame slot,
	// reading the input framebuffers and optionally the scene
	// framebuffer, and writing the output framebuffer.
	Record(rec *gpu.Recorder, inputs []*gpu.Framebuffer, scene *gpu.Framebuffer, slot int) error

	// OnResize is called with the new display size. Stages
	// with their own framebuffer recreate it, scaled.
	OnResize(size image.Point) error

	// Output returns the framebuffer the stage renders into.
	Output() *gpu.Framebuffer

	// Release releases everything the stage owns.
	Release()
}

// OutputFormat is the format of stage framebuffers.
// Stages work in linear high dynamic range until the tonemap.
const OutputFormat = gpu.FormatRGBA16Float

// OutputUsage is the usage of stage framebuffers: sampled by later
// stages, and copied out by presentation and readback.
const OutputUsage = gpu.UsageSampled | gpu.UsageTransferSrc

// NewRenderPass returns the render pass all stages render with:
// one color attachment that is entirely overwritten.
func NewRenderPass(cx *gpu.Context) (*gpu.RenderPass, error) {
	return gpu.NewRenderPass(cx, "render.chain", gpu.ColorAttachment(OutputFormat, gpu.LoadDontCare))
}

// ScaleSize returns size scaled by scale, at least 1 in each dimension.
func ScaleSize(size image.Point, scale float32) image.Point {
	return image.Point{max(1, int(float32(size.X)*scale)), max(1, int(float32(size.Y)*scale))}
}
