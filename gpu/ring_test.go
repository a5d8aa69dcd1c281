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

// submitFrame records and submits an empty frame on the slot.
func submitFrame(t *testing.T, cx *gpu.Context, sl *gpu.FrameSlot) {
	require.NoError(t, sl.Begin())
	assert.Equal(t, gpu.FrameRecording, sl.State())
	for _, rc := range []*gpu.Recorder{sl.Shadow, sl.Primary, sl.Chain, sl.Overlay} {
		require.NoError(t, rc.End())
	}
	require.NoError(t, sl.Submit(cx.Device.Queue(), true, gpu.SubmitOptions{}, sl.Shadow, sl.Primary, sl.Chain, sl.Overlay))
	assert.Equal(t, gpu.FrameSubmitted, sl.State())
}

func TestFrameRingAcquireBlocks(t *testing.T) {
	cx, dev := newTestContext(t, true)
	rg, err := gpu.NewFrameRing(cx, image.Point{4, 4}, nil)
	require.NoError(t, err)
	defer rg.Release()
	assert.Equal(t, 3, rg.N())

	for i := range 3 {
		sl, err := rg.Acquire()
		require.NoError(t, err)
		assert.Equal(t, i, sl.Index)
		assert.Equal(t, gpu.FrameIdle, sl.State())
		submitFrame(t, cx, sl)
	}
	assert.Equal(t, 3, dev.Pending())

	got := make(chan *gpu.FrameSlot)
	go func() {
		sl, err := rg.Acquire()
		assert.NoError(t, err)
		got <- sl
	}()
	select {
	case <-got:
		t.Fatal("acquire returned while all slots were submitted")
	case <-time.After(50 * time.Millisecond):
	}

	// retiring frame 1 signals the fence of slot 0 only
	require.True(t, dev.Retire())
	sl := <-got
	assert.Equal(t, 0, sl.Index)
	assert.Equal(t, gpu.FrameIdle, sl.State())
	assert.False(t, sl.Fence.Signaled())
	assert.Equal(t, gpu.FrameSubmitted, rg.Slots[1].State())
	assert.Equal(t, gpu.FrameSubmitted, rg.Slots[2].State())
	assert.Empty(t, dev.Validation())
}

func TestFrameRingDeviceLost(t *testing.T) {
	cx, _ := newTestContext(t, true)
	cx.FramesInFlight = 1
	cx.AcquireTimeout = 20 * time.Millisecond
	rg, err := gpu.NewFrameRing(cx, image.Point{4, 4}, nil)
	require.NoError(t, err)
	sl, err := rg.Acquire()
	require.NoError(t, err)
	submitFrame(t, cx, sl)
	_, err = rg.Acquire()
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
}

func TestFrameRingUnsubmittedSlot(t *testing.T) {
	cx, _ := newTestContext(t, true)
	cx.FramesInFlight = 2
	cx.AcquireTimeout = 20 * time.Millisecond
	rg, err := gpu.NewFrameRing(cx, image.Point{4, 4}, nil)
	require.NoError(t, err)
	defer rg.Release()
	// a skipped frame leaves its slot idle, so it must not be waited on
	for range 5 {
		sl, err := rg.Acquire()
		require.NoError(t, err)
		assert.Equal(t, gpu.FrameIdle, sl.State())
	}
}

func TestFrameRingTargets(t *testing.T) {
	cx, _ := newTestContext(t, false)
	rp, err := gpu.NewRenderPass(cx, "final", gpu.ColorAttachment(gpu.FormatRGBA8Unorm, gpu.LoadClear))
	require.NoError(t, err)
	defer rp.Release()
	made := 0
	targets := func(index int, size image.Point) (*gpu.FrameTargets, error) {
		made++
		fb, err := gpu.NewFramebuffer(cx, "final", rp, size, gpu.UsageTransferSrc)
		if err != nil {
			return nil, err
		}
		return &gpu.FrameTargets{Framebuffers: []*gpu.Framebuffer{fb}}, nil
	}
	rg, err := gpu.NewFrameRing(cx, image.Point{4, 4}, targets)
	require.NoError(t, err)
	defer rg.Release()
	assert.Equal(t, 3, made)
	for _, sl := range rg.Slots {
		assert.Equal(t, image.Point{4, 4}, sl.Targets.Framebuffers[0].Size)
	}

	sl, err := rg.Acquire()
	require.NoError(t, err)
	submitFrame(t, cx, sl)
	require.NoError(t, rg.Recreate(image.Point{8, 6}))
	assert.Equal(t, 6, made)
	for _, sl := range rg.Slots {
		assert.Equal(t, image.Point{8, 6}, sl.Targets.Framebuffers[0].Size)
		assert.NotEqual(t, gpu.FrameSubmitted, sl.State())
	}
}

func TestFrameSlotAbort(t *testing.T) {
	cx, dev := newTestContext(t, false)
	_, fb := newTestPass(t, cx)
	rg, err := gpu.NewFrameRing(cx, image.Point{4, 4}, nil)
	require.NoError(t, err)
	defer rg.Release()

	sl, err := rg.Acquire()
	require.NoError(t, err)
	require.NoError(t, sl.Abort(cx.Device.Queue()))
	assert.Equal(t, gpu.FrameIdle, sl.State())

	require.NoError(t, sl.Begin())
	require.NoError(t, sl.Primary.BeginPass(fb))
	// the pass transitioned the attachments, so the recording must be submitted
	require.NoError(t, sl.Abort(cx.Device.Queue()))
	assert.Equal(t, gpu.FrameSubmitted, sl.State())
	assert.Equal(t, gpu.RecorderPending, sl.Primary.State())
	require.NoError(t, rg.WaitAll())
	for _, im := range []*gpu.Image{fb.Attachment(0), fb.Depth()} {
		assert.Equal(t, im.Layout(), im.Handle().(*soft.Image).Layout(), im.Name)
	}
	assert.Empty(t, dev.Validation())
}
