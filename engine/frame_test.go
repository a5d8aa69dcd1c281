// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine_test

import (
	"image/color"
	"testing"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/engine"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/gpu/soft"
	"cogentcore.org/pyro/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenQuad is a quad whose recording fails the given number of times.
type brokenQuad struct {
	*engine.Quad
	fails int
}

func (q *brokenQuad) Record(rec *gpu.Recorder) error {
	if q.fails > 0 {
		q.fails--
		return errors.New("broken mesh")
	}
	return q.Quad.Record(rec)
}

func TestRecordErrorKeepsLayouts(t *testing.T) {
	sc := newRedScene()
	glass := engine.NewQuad("glass", math32.Vec2(0, 0), math32.Vec2(1, 1), 0.3, math32.Vec4(0, 0, 1, 0.5))
	glass.Kind = engine.QuadForward
	sc.add(&brokenQuad{Quad: glass, fails: 1})
	r, dev := newHeadless(t, sc)

	assert.ErrorContains(t, r.Draw(), "broken mesh")
	assert.Zero(t, r.Stats().Frames)
	// every slot is used again after the failed one
	for range 4 {
		require.NoError(t, r.Draw())
	}
	assertColor(t, color.RGBA{128, 0, 128, 255}, readback(t, r).RGBAAt(3, 3))
	require.NoError(t, dev.WaitIdle())
	assert.Empty(t, dev.Validation())
	assert.Equal(t, 5, r.Stats().Frames)
}

func TestOpaqueRecordErrorKeepsLayouts(t *testing.T) {
	sc := &testScene{camera: newTestCamera()}
	floor := engine.NewQuad("floor", math32.Vec2(0, 0), math32.Vec2(1, 1), 0.5, math32.Vec4(1, 0, 0, 1))
	sc.add(&brokenQuad{Quad: floor, fails: 2})
	sc.addLight(engine.NewDirectionalLight("sun", math32.Vec3(1, 1, 1), math32.Vec3(0, 0, 1)))
	// without shadows the first recording is the geometry pass
	st := testSettings()
	st.Shadows = false
	dev := soft.NewDevice(soft.Options{})
	r := newTestRenderer(t, sc, nil, dev, st)

	assert.Error(t, r.Draw())
	assert.Error(t, r.Draw())
	for range 3 {
		require.NoError(t, r.Draw())
	}
	assertColor(t, red, readback(t, r).RGBAAt(3, 3))
	require.NoError(t, dev.WaitIdle())
	assert.Empty(t, dev.Validation())
}

// tonemapped returns the expected color of a full red pixel
// tonemapped with the given exposure.
func tonemapped(exposure float32) color.RGBA {
	c := exposure / (1 + exposure)
	return color.RGBA{uint8(render.SRGBFromLinearComp(c)*255 + 0.5), 0, 0, 255}
}

func TestStageToggledKeepsValues(t *testing.T) {
	r, dev := newHeadless(t, newRedScene())
	require.True(t, r.SetActive(render.TonemapName, true))
	require.NoError(t, r.SetExposure(0.2))
	want := tonemapped(0.2)
	// slot 0
	assertColor(t, want, readback(t, r).RGBAAt(3, 3))

	// slot 1 is drawn without the stage
	require.True(t, r.SetActive(render.TonemapName, false))
	assertColor(t, red, readback(t, r).RGBAAt(3, 3))
	require.True(t, r.SetActive(render.TonemapName, true))

	for i := range 4 {
		assertColor(t, want, readback(t, r).RGBAAt(3, 3), "frame %d", i+2)
	}
	assert.NotEqual(t, tonemapped(1), want)
	assert.Empty(t, dev.Validation())
}
