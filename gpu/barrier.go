// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "fmt"

// Barrier is an image layout transition together with the memory
// access and pipeline stage scopes that must be ordered around it:
// all SrcAccess writes in SrcStage complete and are made visible
// before any DstAccess in DstStage begins.
type Barrier struct {
	Image     DeviceImage
	Aspect    Aspect
	Old       Layout
	New       Layout
	SrcAccess Access
	DstAccess Access
	SrcStage  PipelineStage
	DstStage  PipelineStage
}

func (b Barrier) String() string {
	return fmt.Sprintf("%s -> %s (src access %#x stage %#x, dst access %#x stage %#x)", b.Old, b.New, uint32(b.SrcAccess), uint32(b.SrcStage), uint32(b.DstAccess), uint32(b.DstStage))
}

// scope is the access and stage a layout is used with.
type scope struct {
	access Access
	stage  PipelineStage
}

// srcScopes is what must complete when leaving a layout.
// Read-only layouts need only an execution dependency, so they
// carry no access.
var srcScopes = [LayoutsN]scope{
	LayoutUndefined:       {AccessNone, StageTopOfPipe},
	LayoutGeneral:         {AccessShaderWrite, StageFragmentShader | StageComputeShader},
	LayoutColorAttachment: {AccessColorAttachmentWrite, StageColorAttachmentOutput},
	LayoutDepthAttachment: {AccessDepthStencilWrite, StageLateFragmentTests},
	LayoutDepthReadOnly:   {AccessNone, StageEarlyFragmentTests | StageFragmentShader},
	LayoutShaderRead:      {AccessNone, StageFragmentShader},
	LayoutTransferSrc:     {AccessNone, StageTransfer},
	LayoutTransferDst:     {AccessTransferWrite, StageTransfer},
	LayoutPresent:         {AccessNone, StageBottomOfPipe},
}

// dstScopes is what must wait when entering a layout.
var dstScopes = [LayoutsN]scope{
	LayoutUndefined:       {AccessNone, StageTopOfPipe},
	LayoutGeneral:         {AccessShaderRead | AccessShaderWrite, StageFragmentShader | StageComputeShader},
	LayoutColorAttachment: {AccessColorAttachmentRead | AccessColorAttachmentWrite, StageColorAttachmentOutput},
	LayoutDepthAttachment: {AccessDepthStencilRead | AccessDepthStencilWrite, StageEarlyFragmentTests | StageLateFragmentTests},
	LayoutDepthReadOnly:   {AccessDepthStencilRead | AccessShaderRead, StageEarlyFragmentTests | StageFragmentShader},
	LayoutShaderRead:      {AccessShaderRead, StageFragmentShader},
	LayoutTransferSrc:     {AccessTransferRead, StageTransfer},
	LayoutTransferDst:     {AccessTransferWrite, StageTransfer},
	LayoutPresent:         {AccessNone, StageBottomOfPipe},
}

// layoutPair keys the transitions whose scopes differ from the
// composition of the per-layout scopes.
type layoutPair struct{ old, new Layout }

var pairScopes = map[layoutPair][2]scope{
	// the host reads readback copies after the fence, so the copy
	// source only needs to finish color output
	{LayoutColorAttachment, LayoutTransferSrc}: {
		{AccessColorAttachmentWrite, StageColorAttachmentOutput},
		{AccessTransferRead, StageTransfer},
	},
	// sampling a depth buffer written by the geometry pass
	{LayoutDepthAttachment, LayoutShaderRead}: {
		{AccessDepthStencilWrite, StageLateFragmentTests},
		{AccessShaderRead, StageFragmentShader},
	},
	// presentation engine ordering is by semaphore, not by access
	{LayoutTransferDst, LayoutPresent}: {
		{AccessTransferWrite, StageTransfer},
		{AccessNone, StageBottomOfPipe},
	},
	{LayoutColorAttachment, LayoutPresent}: {
		{AccessColorAttachmentWrite, StageColorAttachmentOutput},
		{AccessNone, StageBottomOfPipe},
	},
}

// TransitionBarrier returns the barrier for moving an image from
// layout old to layout new. It does not record anything.
// A transition from [LayoutUndefined] requires no source access,
// and a transition to [LayoutUndefined] is invalid.
func TransitionBarrier(old, new Layout) Barrier {
	b := Barrier{Old: old, New: new}
	if !Assert(old >= 0 && old < LayoutsN, "invalid source layout %v", old) ||
		!Assert(new > LayoutUndefined && new < LayoutsN, "invalid destination layout %v", new) {
		return b
	}
	if ps, ok := pairScopes[layoutPair{old, new}]; ok {
		b.SrcAccess, b.SrcStage = ps[0].access, ps[0].stage
		b.DstAccess, b.DstStage = ps[1].access, ps[1].stage
		return b
	}
	src := srcScopes[old]
	dst := dstScopes[new]
	b.SrcAccess, b.SrcStage = src.access, src.stage
	b.DstAccess, b.DstStage = dst.access, dst.stage
	return b
}
