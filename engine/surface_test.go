// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine_test

import (
	"image"
	"testing"

	"cogentcore.org/pyro/engine"
	"cogentcore.org/pyro/gpu/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWindowed(t *testing.T, sc *testScene) (*engine.Renderer, *soft.Device, *soft.Surface) {
	dev := soft.NewDevice(soft.Options{})
	sf := soft.NewSurface(dev, testSize, 3)
	t.Cleanup(sf.Release)
	r := newTestRenderer(t, sc, sf, dev, nil)
	return r, dev, sf
}

func TestPresent(t *testing.T) {
	r, dev, sf := newWindowed(t, newRedScene())
	for range 4 {
		require.NoError(t, r.Draw())
	}
	require.NoError(t, dev.WaitIdle())
	assert.Equal(t, 4, sf.Presented())
	front := sf.Front()
	require.NotNil(t, front)
	assertColor(t, red, front.RGBAAt(3, 3))
	assert.Empty(t, dev.Validation())
}

func TestOutOfDateRecreates(t *testing.T) {
	r, dev, sf := newWindowed(t, newRedScene())
	require.NoError(t, r.Draw())
	sf.InjectOutOfDate(1)
	require.NoError(t, r.Draw())
	assert.Equal(t, 1, r.Stats().Skipped)
	assert.Zero(t, r.Stats().Recreations)

	require.NoError(t, r.Draw())
	require.NoError(t, dev.WaitIdle())
	assert.Equal(t, 1, r.Stats().Recreations)
	assert.Equal(t, 3, r.Stats().Frames)
	assert.Equal(t, 2, sf.Presented())
	assert.Empty(t, dev.Validation())
}

func TestResize(t *testing.T) {
	r, dev, sf := newWindowed(t, newRedScene())
	require.NoError(t, r.Draw())
	size := image.Point{16, 12}
	sf.SetWindowSize(size)
	r.OnResize(size.X, size.Y)
	require.NoError(t, r.Draw())
	require.NoError(t, dev.WaitIdle())
	assert.Equal(t, size, sf.Size())
	assert.Equal(t, size, r.Ring().Size)
	assert.Equal(t, size, r.Chain().Size())
	assert.Equal(t, size, r.Output().Size)
	assert.Equal(t, 2, sf.Presented())
	assertColor(t, red, sf.Front().RGBAAt(12, 9))
	assert.Empty(t, dev.Validation())
}

func TestResizeWithoutNotice(t *testing.T) {
	r, dev, sf := newWindowed(t, newRedScene())
	require.NoError(t, r.Draw())
	// the surface reports the resize before the window does
	size := image.Point{10, 10}
	sf.SetWindowSize(size)
	require.NoError(t, r.Draw())
	assert.Equal(t, 1, r.Stats().Skipped)
	r.OnResize(size.X, size.Y)
	require.NoError(t, r.Draw())
	require.NoError(t, dev.WaitIdle())
	assert.Equal(t, size, sf.Size())
	assert.Equal(t, 2, sf.Presented())
	assert.Empty(t, dev.Validation())
}

func TestMinimized(t *testing.T) {
	r, dev, sf := newWindowed(t, newRedScene())
	require.NoError(t, r.Draw())
	r.OnResize(0, 0)
	for range 3 {
		require.NoError(t, r.Draw())
	}
	assert.Equal(t, 3, r.Stats().Skipped)
	assert.Equal(t, 1, r.Stats().Frames)

	r.OnResize(testSize.X, testSize.Y)
	require.NoError(t, r.Draw())
	require.NoError(t, dev.WaitIdle())
	assert.Equal(t, 1, r.Stats().Recreations)
	assert.Equal(t, 2, sf.Presented())
	assert.Empty(t, dev.Validation())
}

func TestMinimizedReadback(t *testing.T) {
	r, _ := newHeadless(t, newRedScene())
	r.OnResize(0, 0)
	called := false
	require.NoError(t, r.DrawReadback(func(img *image.RGBA) { called = true }))
	assert.False(t, called)
}

func TestOutOfDateReadbackSkipped(t *testing.T) {
	r, dev, sf := newWindowed(t, newRedScene())
	sf.InjectOutOfDate(1)
	called := false
	require.NoError(t, r.DrawReadback(func(img *image.RGBA) { called = true }))
	assert.False(t, called)
	assert.Equal(t, 1, r.Stats().Skipped)

	assertColor(t, red, readback(t, r).RGBAAt(3, 3))
	require.NoError(t, dev.WaitIdle())
	assert.Equal(t, 1, sf.Presented())
	assert.Empty(t, dev.Validation())
}
