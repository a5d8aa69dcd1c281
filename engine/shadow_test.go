// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine_test

import (
	"testing"

	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newShadowScene returns the red scene with the sun casting shadows,
// and a blocker hidden from the camera over the left half, closer
// to the light than the floor.
func newShadowScene() (*testScene, *engine.Light) {
	sc := newRedScene()
	sc.drawables[0].(*engine.Quad).CastShadow = true
	blocker := engine.NewQuad("blocker", math32.Vec2(0, 0), math32.Vec2(0.5, 1), 0.2, math32.Vec4(0, 0, 1, 1))
	blocker.CastShadow = true
	blocker.Hidden = true
	sc.add(blocker)
	sun := sc.lights[0]
	sun.Shadows = true
	return sc, sun
}

func TestShadowedHalfDark(t *testing.T) {
	sc, _ := newShadowScene()
	r, dev := newHeadless(t, sc)
	img := readback(t, r)
	for y := range testSize.Y {
		assertColor(t, black, img.RGBAAt(1, y), "shadowed %d", y)
		assertColor(t, red, img.RGBAAt(6, y), "lit %d", y)
	}
	assert.Empty(t, dev.Validation())
}

func TestShadowsOff(t *testing.T) {
	sc, sun := newShadowScene()
	r, _ := newHeadless(t, sc)
	r.SetShadows(false)
	assertColor(t, red, readback(t, r).RGBAAt(1, 3))
	assert.Zero(t, r.ShadowRenders(sun))

	r.SetShadows(true)
	assertColor(t, black, readback(t, r).RGBAAt(1, 3))
	assert.Equal(t, 1, r.ShadowRenders(sun))
}

func TestNoShadowCasters(t *testing.T) {
	sc, sun := newShadowScene()
	sc.drawables = sc.drawables[:1]
	sc.drawables[0].(*engine.Quad).CastShadow = false
	r, dev := newHeadless(t, sc)
	assertColor(t, red, readback(t, r).RGBAAt(1, 3))
	assert.Equal(t, 1, r.ShadowRenders(sun))
	assert.Empty(t, dev.Validation())
}

func TestStaticShadowCache(t *testing.T) {
	sc, sun := newShadowScene()
	sun.Static = true
	lamp := engine.NewSpotLight("lamp", math32.Vec3(1, 1, 1), math32.Vec3(0, 0, -1), math32.Vec3(0, 0, 1), 10, 0.5)
	lamp.Shadows = true
	sc.addLight(lamp)
	r, dev := newHeadless(t, sc)

	for range 3 {
		require.NoError(t, r.Draw())
	}
	assert.Equal(t, 1, r.ShadowRenders(sun), "static")
	assert.Equal(t, 3, r.ShadowRenders(lamp), "dynamic")
	assert.False(t, sun.Dirty())

	// a new static light renders all static maps again
	moon := engine.NewDirectionalLight("moon", math32.Vec3(0.1, 0.1, 0.1), math32.Vec3(0, 0, 1))
	moon.Shadows = true
	moon.Static = true
	sc.addLight(moon)
	require.NoError(t, r.Draw())
	assert.Equal(t, 2, r.ShadowRenders(sun))
	assert.Equal(t, 1, r.ShadowRenders(moon))
	require.NoError(t, r.Draw())
	assert.Equal(t, 2, r.ShadowRenders(sun))

	// a moved static light is rendered again alone
	sun.MarkDirty()
	require.NoError(t, r.Draw())
	assert.Equal(t, 3, r.ShadowRenders(sun))
	assert.Equal(t, 1, r.ShadowRenders(moon))
	assert.Equal(t, 6, r.ShadowRenders(lamp))

	// removing a static light renders the others again
	sc.lights = sc.lights[:2]
	require.NoError(t, r.Draw())
	assert.Equal(t, 4, r.ShadowRenders(sun))
	assert.Zero(t, r.ShadowRenders(moon))
	assert.Empty(t, dev.Validation())
}

func TestStaticShadowStaysValid(t *testing.T) {
	sc, sun := newShadowScene()
	sun.Static = true
	r, _ := newHeadless(t, sc)
	for range 4 {
		img := readback(t, r)
		assertColor(t, black, img.RGBAAt(1, 3))
		assertColor(t, red, img.RGBAAt(6, 3))
	}
	assert.Equal(t, 1, r.ShadowRenders(sun))
}

func TestLightTypeChange(t *testing.T) {
	sc, sun := newShadowScene()
	r, dev := newHeadless(t, sc)
	require.NoError(t, r.Draw())
	sun.Type = engine.PointLight
	sun.Position = math32.Vec3(0, 0, -1)
	sun.Range = 100
	for range 4 {
		require.NoError(t, r.Draw())
	}
	// the state of the light is made again for the new type
	assert.Equal(t, 4, r.ShadowRenders(sun))
	assert.Empty(t, dev.Validation())
}
