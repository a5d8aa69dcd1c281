// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render_test

import (
	"testing"

	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/render"
	fmath "github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSRGB(t *testing.T) {
	assert.InDelta(t, 0, render.SRGBFromLinearComp(0), 1e-6)
	assert.InDelta(t, 1, render.SRGBFromLinearComp(1), 1e-5)
	assert.InDelta(t, 0.7353, render.SRGBFromLinearComp(0.5), 1e-3)
	for _, v := range []float32{0.001, 0.2, 0.5, 0.9} {
		assert.InDelta(t, v, render.SRGBToLinearComp(render.SRGBFromLinearComp(v)), 1e-5)
	}
}

func TestTonemap(t *testing.T) {
	cx, dev, ch := newTestChain(t)
	scene := newTestScene(t, cx, math32.Vec4(2, 1, 0, 1), 1)
	tonemap, err := render.NewTonemap(ch)
	require.NoError(t, err)
	require.NoError(t, ch.Add(tonemap))
	require.NoError(t, tonemap.Values.SetFloat("Exposure", 0.5))

	out := runChain(t, cx, ch, scene, 0)
	assert.Same(t, tonemap.Output(), out)
	c := pixel(out, 1, 1)
	assert.InDelta(t, render.SRGBFromLinearComp(0.5), c.X, 1e-4)
	assert.InDelta(t, render.SRGBFromLinearComp(1.0/3), c.Y, 1e-4)
	assert.InDelta(t, 0, c.Z, 1e-6)
	assert.Empty(t, dev.Validation())
}

func TestFog(t *testing.T) {
	cx, dev, ch := newTestChain(t)
	scene := newTestScene(t, cx, math32.Vec4(0, 0, 0, 1), 1)
	fog, err := render.NewFog(ch)
	require.NoError(t, err)
	require.NoError(t, ch.Add(fog))
	require.NoError(t, fog.Values.SetVector3("FogColor", math32.Vec3(1, 1, 1)))

	out := runChain(t, cx, ch, scene, 0)
	assert.Same(t, fog.Output(), out)
	assert.Equal(t, gpu.LayoutDepthReadOnly, scene.Depth().Layout())
	// depth 1 is at the far plane: 100 * 0.02
	want := 1 - fmath.Exp(-2)
	assert.InDelta(t, want, pixel(out, 2, 2).X, 1e-4)
	assert.Empty(t, dev.Validation())
}

func TestBloomSpreads(t *testing.T) {
	cx, dev, ch := newTestChain(t)
	scene := newTestScene(t, cx, math32.Vec4(0, 0, 0, 1), 1)
	sub, bloom, err := render.NewBloom(ch, 1, 1)
	require.NoError(t, err)
	require.NoError(t, ch.AddSubChain(sub, bloom))
	setPixel(scene, 4, 3, math32.Vec4(8, 8, 8, 1))

	out := runChain(t, cx, ch, scene, 0)
	assert.Same(t, bloom.Output(), out)
	center := pixel(out, 4, 3)
	near := pixel(out, 5, 3)
	diag := pixel(out, 5, 4)
	far := pixel(out, 0, 0)
	assert.Greater(t, center.X, float32(8))
	assert.Greater(t, near.X, float32(0))
	assert.Greater(t, diag.X, float32(0))
	assert.Less(t, far.X, near.X)
	assert.Empty(t, dev.Validation())
}
