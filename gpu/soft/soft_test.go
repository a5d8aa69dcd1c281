// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"image"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFence(t *testing.T) {
	f := newFence(true)
	assert.True(t, f.Signaled())
	assert.NoError(t, f.Wait(time.Millisecond))

	require.NoError(t, f.Reset())
	assert.False(t, f.Signaled())
	assert.ErrorIs(t, f.Wait(time.Millisecond), gpu.ErrTimeout)

	f.signal()
	f.signal()
	assert.NoError(t, f.Wait(time.Millisecond))
}

func TestManualQueue(t *testing.T) {
	dev := NewDevice(Options{Manual: true})
	defer dev.Release()
	im, err := dev.NewImage(&gpu.ImageDesc{Name: "im", Size: image.Pt(2, 2), Format: gpu.FormatRGBA8Unorm})
	require.NoError(t, err)

	cb := &CommandBuffer{dev: dev}
	require.NoError(t, cb.Begin())
	cb.Barrier([]gpu.Barrier{{Image: im, Old: gpu.LayoutUndefined, New: gpu.LayoutColorAttachment}})
	require.NoError(t, cb.End())
	fence := newFence(false)
	require.NoError(t, dev.Queue().Submit([]gpu.SubmitInfo{{Commands: []gpu.CommandBuffer{cb}}}, fence))

	assert.Equal(t, 1, dev.Pending())
	assert.False(t, fence.Signaled())
	assert.Equal(t, gpu.LayoutUndefined, im.(*Image).Layout())

	assert.True(t, dev.Retire())
	assert.False(t, dev.Retire())
	assert.True(t, fence.Signaled())
	assert.Equal(t, gpu.LayoutColorAttachment, im.(*Image).Layout())
	assert.Equal(t, 1, dev.Stats().Barriers)
	assert.Empty(t, dev.Validation())
}

func TestBarrierValidation(t *testing.T) {
	dev := NewDevice(Options{Manual: true})
	defer dev.Release()
	im := newImage("im", gpu.FormatRGBA8Unorm, image.Pt(1, 1))
	cb := &CommandBuffer{dev: dev}
	cb.Barrier([]gpu.Barrier{{Image: im, Old: gpu.LayoutShaderRead, New: gpu.LayoutTransferSrc}})
	require.NoError(t, dev.Queue().Submit([]gpu.SubmitInfo{{Commands: []gpu.CommandBuffer{cb}}}, nil))
	dev.RetireAll()
	assert.Len(t, dev.Validation(), 1)
	assert.Equal(t, gpu.LayoutTransferSrc, im.Layout())

	dev.ClearValidation()
	assert.Empty(t, dev.Validation())
}

func TestResubmitPending(t *testing.T) {
	dev := NewDevice(Options{Manual: true})
	defer dev.Release()
	cb := &CommandBuffer{dev: dev}
	infos := []gpu.SubmitInfo{{Commands: []gpu.CommandBuffer{cb}}}
	require.NoError(t, dev.Queue().Submit(infos, nil))
	require.NoError(t, dev.Queue().Submit(infos, nil))
	assert.Len(t, dev.Validation(), 1)

	dev.ClearValidation()
	dev.RetireAll()
	require.NoError(t, cb.Reset())
	assert.Empty(t, dev.Validation())
}

func TestSemaphoreWait(t *testing.T) {
	dev := NewDevice(Options{Manual: true})
	defer dev.Release()
	sm := &Semaphore{}
	wait := []gpu.SubmitInfo{{Wait: []gpu.Semaphore{sm}}}
	require.NoError(t, dev.Queue().Submit([]gpu.SubmitInfo{{Signal: []gpu.Semaphore{sm}}}, nil))
	require.NoError(t, dev.Queue().Submit(wait, nil))
	dev.RetireAll()
	assert.Empty(t, dev.Validation())

	// the semaphore was consumed by the first wait
	require.NoError(t, dev.Queue().Submit(wait, nil))
	dev.RetireAll()
	assert.Len(t, dev.Validation(), 1)
}

func TestQueueGoroutine(t *testing.T) {
	dev := NewDevice(Options{})
	defer dev.Release()
	fence := newFence(false)
	require.NoError(t, dev.Queue().Submit(nil, fence))
	assert.NoError(t, fence.Wait(time.Second))
	require.NoError(t, dev.WaitIdle())
	assert.Zero(t, dev.Pending())
	assert.Equal(t, 1, dev.Stats().Submissions)
}

func TestBlend(t *testing.T) {
	src := math32.Vec4(1, 0, 0, 0.5)
	dst := math32.Vec4(0, 0, 1, 1)
	assert.Equal(t, src, blend(gpu.BlendNone, src, dst))
	assert.Equal(t, math32.Vec4(1, 0, 1, 1.5), blend(gpu.BlendAdd, src, dst))
	assert.Equal(t, math32.Vec4(0.5, 0, 0.5, 1), blend(gpu.BlendAlpha, src, dst))
}

func TestBlitScales(t *testing.T) {
	dev := NewDevice(Options{Manual: true})
	defer dev.Release()
	src := newImage("src", gpu.FormatRGBA16Float, image.Pt(2, 2))
	for i := range src.Pix {
		src.Pix[i] = math32.Vec4(2, 0.5, 0, 1)
	}
	dst := newImage("dst", gpu.FormatRGBA8Unorm, image.Pt(4, 4))
	src.layout = gpu.LayoutTransferSrc
	dst.layout = gpu.LayoutTransferDst

	cb := &CommandBuffer{dev: dev}
	cb.Blit(src, src.Size, dst, dst.Size, gpu.FilterNearest)
	require.NoError(t, dev.Queue().Submit([]gpu.SubmitInfo{{Commands: []gpu.CommandBuffer{cb}}}, nil))
	dev.RetireAll()
	assert.Empty(t, dev.Validation())
	assert.Equal(t, 1, dev.Stats().Blits)
	for _, c := range dst.Pix {
		assert.InDelta(t, 1, c.X, 1e-6)
		assert.InDelta(t, 0.5, c.Y, 1e-2)
	}
	rgba := dst.RGBA()
	assert.Equal(t, uint8(255), rgba.Pix[0])
}

func TestSurfaceOutOfDate(t *testing.T) {
	dev := NewDevice(Options{})
	defer dev.Release()
	sf := NewSurface(dev, image.Pt(4, 4), 2)
	sm := &Semaphore{}

	sf.InjectOutOfDate(1)
	_, _, err := sf.Acquire(sm, time.Second)
	assert.ErrorIs(t, err, gpu.ErrOutOfDate)

	idx, im, err := sf.Acquire(sm, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.NotNil(t, im)

	sf.SetWindowSize(image.Pt(6, 6))
	_, _, err = sf.Acquire(sm, time.Second)
	assert.ErrorIs(t, err, gpu.ErrOutOfDate)
	require.NoError(t, sf.Recreate(image.Pt(6, 6)))
	assert.Equal(t, image.Pt(6, 6), sf.Size())
	_, _, err = sf.Acquire(sm, time.Second)
	assert.NoError(t, err)
}
