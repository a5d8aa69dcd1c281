// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"image"
	"testing"
	"time"

	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/gpu/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, manual bool) (*gpu.Context, *soft.Device) {
	dev := soft.NewDevice(soft.Options{Manual: manual})
	cx := gpu.NewContext(dev)
	cx.AcquireTimeout = time.Second
	t.Cleanup(cx.Release)
	return cx, dev
}

func newTestImage(t *testing.T, cx *gpu.Context, name string) *gpu.Image {
	im, err := gpu.NewImage(cx, &gpu.ImageDesc{Name: name, Size: image.Point{8, 4}, Format: gpu.FormatRGBA8Unorm, Usage: gpu.UsageColorAttachment | gpu.UsageSampled})
	require.NoError(t, err)
	t.Cleanup(im.Release)
	return im
}

func TestImageRequestLayout(t *testing.T) {
	cx, dev := newTestContext(t, false)
	im := newTestImage(t, cx, "img")
	assert.Equal(t, gpu.LayoutUndefined, im.Layout())
	assert.Equal(t, 1, im.Mips)
	assert.Equal(t, 1, im.Layers)

	rec, err := gpu.NewRecorder(cx, "rec")
	require.NoError(t, err)
	require.NoError(t, rec.Begin())

	seq := []gpu.Layout{gpu.LayoutShaderRead, gpu.LayoutColorAttachment, gpu.LayoutShaderRead, gpu.LayoutTransferSrc, gpu.LayoutTransferDst, gpu.LayoutPresent}
	prev := gpu.LayoutUndefined
	for _, l := range seq {
		b := im.RequestLayout(rec, l)
		assert.Equal(t, l, im.Layout())
		assert.Equal(t, prev, b.Old)
		want := gpu.TransitionBarrier(prev, l)
		assert.Equal(t, want.SrcAccess, b.SrcAccess)
		assert.Equal(t, want.SrcStage, b.SrcStage)
		assert.Equal(t, im.Handle(), b.Image)
		assert.Equal(t, gpu.AspectColor, b.Aspect)
		prev = l
	}
	assert.Equal(t, len(seq), rec.Commands())

	require.NoError(t, rec.End())
	require.NoError(t, rec.Submit(cx.Device.Queue(), gpu.SubmitOptions{}))
	require.NoError(t, cx.Device.WaitIdle())
	assert.Empty(t, dev.Validation())
	assert.Equal(t, gpu.LayoutPresent, im.Handle().(*soft.Image).Layout())
}

func TestImageSameLayoutRecordsBarrier(t *testing.T) {
	cx, _ := newTestContext(t, false)
	im := newTestImage(t, cx, "img")
	rec, err := gpu.NewRecorder(cx, "rec")
	require.NoError(t, err)
	require.NoError(t, rec.Begin())
	im.RequestLayout(rec, gpu.LayoutShaderRead)
	b := im.RequestLayout(rec, gpu.LayoutShaderRead)
	assert.Equal(t, gpu.LayoutShaderRead, b.Old)
	assert.Equal(t, gpu.LayoutShaderRead, b.New)
	assert.Equal(t, 2, rec.Commands())
}

func TestImageOutOfSyncIsDetected(t *testing.T) {
	cx, dev := newTestContext(t, false)
	im := newTestImage(t, cx, "img")
	rec, err := gpu.NewRecorder(cx, "rec")
	require.NoError(t, err)
	require.NoError(t, rec.Begin())
	im.RequestLayout(rec, gpu.LayoutShaderRead)
	// a caller that lies about the layout breaks the tracker contract
	other := gpu.WrapImage(im.Handle(), "alias", im.Format, im.Size, gpu.LayoutTransferDst)
	other.RequestLayout(rec, gpu.LayoutShaderRead)
	require.NoError(t, rec.End())
	require.NoError(t, rec.Submit(cx.Device.Queue(), gpu.SubmitOptions{}))
	require.NoError(t, cx.Device.WaitIdle())
	assert.Len(t, dev.Validation(), 1)
}

func TestImageSetSizeAndDiscard(t *testing.T) {
	cx, _ := newTestContext(t, false)
	im := newTestImage(t, cx, "img")
	rec, err := gpu.NewRecorder(cx, "rec")
	require.NoError(t, err)
	require.NoError(t, rec.Begin())
	im.RequestLayout(rec, gpu.LayoutShaderRead)
	h := im.Handle()
	require.NoError(t, im.SetSize(cx, image.Point{16, 16}))
	assert.Equal(t, image.Point{16, 16}, im.Size)
	assert.NotSame(t, h, im.Handle())
	assert.Equal(t, gpu.LayoutUndefined, im.Layout())

	im.RequestLayout(rec, gpu.LayoutShaderRead)
	im.Discard()
	b := im.RequestLayout(rec, gpu.LayoutColorAttachment)
	assert.Equal(t, gpu.AccessNone, b.SrcAccess)
}
