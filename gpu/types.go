// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "fmt"

// Layout is the access state of an image on the device.
// An image must be transitioned with a barrier before it
// is used in a new layout.
type Layout int32

const (
	// LayoutUndefined is the layout of a new image, or of an
	// image whose contents may be discarded.
	LayoutUndefined Layout = iota

	// LayoutGeneral supports all access, with lower performance.
	LayoutGeneral

	// LayoutColorAttachment is writable as a color render target.
	LayoutColorAttachment

	// LayoutDepthAttachment is writable as a depth render target.
	LayoutDepthAttachment

	// LayoutDepthReadOnly is readable as depth by the depth test
	// and by shaders.
	LayoutDepthReadOnly

	// LayoutShaderRead is readable by shaders as a sampled texture.
	LayoutShaderRead

	// LayoutTransferSrc is the source of a copy or blit.
	LayoutTransferSrc

	// LayoutTransferDst is the destination of a copy or blit.
	LayoutTransferDst

	// LayoutPresent is ready to be handed to a surface.
	LayoutPresent

	LayoutsN
)

var layoutNames = [...]string{"Undefined", "General", "ColorAttachment", "DepthAttachment", "DepthReadOnly", "ShaderRead", "TransferSrc", "TransferDst", "Present"}

func (l Layout) String() string {
	if l >= 0 && l < LayoutsN {
		return layoutNames[l]
	}
	return fmt.Sprintf("Layout(%d)", int32(l))
}

// Access is a set of memory access types used in barriers.
type Access uint32

const (
	AccessColorAttachmentRead Access = 1 << iota
	AccessColorAttachmentWrite
	AccessDepthStencilRead
	AccessDepthStencilWrite
	AccessShaderRead
	AccessShaderWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostRead
	AccessMemoryRead

	AccessNone Access = 0
)

// Has returns true if all of the given access bits are set.
func (a Access) Has(b Access) bool { return a&b == b }

// PipelineStage is a set of pipeline stages used in barriers.
type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageEarlyFragmentTests
	StageFragmentShader
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageComputeShader
	StageTransfer
	StageBottomOfPipe
	StageHost
	StageAllCommands

	StageNone PipelineStage = 0
)

// Aspect selects the color or depth part of an image.
type Aspect int32

const (
	AspectColor Aspect = iota
	AspectDepth
)

// Format is a pixel format.
type Format int32

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Unorm
	FormatBGRA8Srgb
	FormatRGBA16Float
	FormatRGBA32Float
	FormatDepth32
	FormatDepth24Stencil8
)

var formatNames = [...]string{"Undefined", "RGBA8Unorm", "RGBA8Srgb", "BGRA8Unorm", "BGRA8Srgb", "RGBA16Float", "RGBA32Float", "Depth32", "Depth24Stencil8"}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", int32(f))
}

// IsDepth returns true for depth (and depth-stencil) formats.
func (f Format) IsDepth() bool {
	return f == FormatDepth32 || f == FormatDepth24Stencil8
}

// Aspect returns the aspect of images of this format.
func (f Format) Aspect() Aspect {
	if f.IsDepth() {
		return AspectDepth
	}
	return AspectColor
}

// BytesPerPixel returns the number of bytes per pixel.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	case FormatUndefined:
		return 0
	}
	return 4
}

// Usage is a set of image usage flags.
type Usage uint32

const (
	UsageColorAttachment Usage = 1 << iota
	UsageDepthAttachment
	UsageSampled
	UsageTransferSrc
	UsageTransferDst
	UsageStorage
)

// Has returns true if all of the given usage bits are set.
func (u Usage) Has(b Usage) bool { return u&b == b }

// BufferUsage says what a device buffer is used for.
type BufferUsage int32

const (
	// BufferUniform is a host-visible uniform buffer.
	BufferUniform BufferUsage = iota

	// BufferVertex holds vertex data.
	BufferVertex

	// BufferReadback receives image data copied back to the host.
	BufferReadback
)

// LoadOp is what a render pass does with an attachment at the start.
type LoadOp int32

const (
	LoadClear LoadOp = iota
	LoadKeep
	LoadDontCare
)

// Filter is the sampling filter of a blit.
type Filter int32

const (
	FilterNearest Filter = iota
	FilterLinear
)

// BlendMode is the color blending of a program.
type BlendMode int32

const (
	// BlendNone overwrites the destination.
	BlendNone BlendMode = iota

	// BlendAdd adds the source to the destination,
	// used to accumulate lights.
	BlendAdd

	// BlendAlpha composites the source over the destination
	// by its alpha.
	BlendAlpha
)
