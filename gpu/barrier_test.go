// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionFromUndefined(t *testing.T) {
	b := TransitionBarrier(LayoutUndefined, LayoutShaderRead)
	assert.Equal(t, AccessNone, b.SrcAccess)
	assert.NotEqual(t, AccessNone, b.DstAccess)
	assert.True(t, b.DstAccess.Has(AccessShaderRead))
	assert.Equal(t, StageTopOfPipe, b.SrcStage)
	assert.Equal(t, StageFragmentShader, b.DstStage)

	for l := LayoutGeneral; l < LayoutsN; l++ {
		b := TransitionBarrier(LayoutUndefined, l)
		assert.Equal(t, AccessNone, b.SrcAccess, l.String())
	}
}

func TestTransitionScopes(t *testing.T) {
	b := TransitionBarrier(LayoutColorAttachment, LayoutShaderRead)
	assert.Equal(t, AccessColorAttachmentWrite, b.SrcAccess)
	assert.Equal(t, StageColorAttachmentOutput, b.SrcStage)
	assert.Equal(t, AccessShaderRead, b.DstAccess)
	assert.Equal(t, StageFragmentShader, b.DstStage)

	b = TransitionBarrier(LayoutShaderRead, LayoutColorAttachment)
	assert.Equal(t, AccessNone, b.SrcAccess)
	assert.Equal(t, StageFragmentShader, b.SrcStage)
	assert.True(t, b.DstAccess.Has(AccessColorAttachmentWrite))

	b = TransitionBarrier(LayoutDepthAttachment, LayoutShaderRead)
	assert.Equal(t, AccessDepthStencilWrite, b.SrcAccess)
	assert.Equal(t, StageLateFragmentTests, b.SrcStage)

	b = TransitionBarrier(LayoutTransferDst, LayoutPresent)
	assert.Equal(t, AccessTransferWrite, b.SrcAccess)
	assert.Equal(t, StageBottomOfPipe, b.DstStage)

	// every transition waits on the scope of the layout it leaves
	for old := LayoutUndefined; old < LayoutsN; old++ {
		for nw := LayoutGeneral; nw < LayoutsN; nw++ {
			b := TransitionBarrier(old, nw)
			assert.Equal(t, old, b.Old)
			assert.Equal(t, nw, b.New)
			assert.NotEqual(t, StageNone, b.SrcStage, "%s -> %s", old, nw)
			assert.NotEqual(t, StageNone, b.DstStage, "%s -> %s", old, nw)
			assert.Equal(t, srcScopes[old].access, b.SrcAccess, "%s -> %s", old, nw)
		}
	}
}

func TestTransitionSameLayout(t *testing.T) {
	b := TransitionBarrier(LayoutColorAttachment, LayoutColorAttachment)
	assert.Equal(t, LayoutColorAttachment, b.Old)
	assert.Equal(t, LayoutColorAttachment, b.New)
	assert.Equal(t, AccessColorAttachmentWrite, b.SrcAccess)
}

func TestTransitionInvalid(t *testing.T) {
	assert.Panics(t, func() {
		TransitionBarrier(LayoutShaderRead, LayoutUndefined)
	})
	Debug = false
	defer func() { Debug = true }()
	b := TransitionBarrier(LayoutShaderRead, LayoutsN)
	assert.Equal(t, AccessNone, b.DstAccess)
}
