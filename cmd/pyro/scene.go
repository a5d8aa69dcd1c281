// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/engine"
	fmath "github.com/chewxy/math32"
)

// camera is a fixed camera looking at the quads head on, whose
// coordinates are normalized device coordinates.
type camera struct{}

func (camera) Position() math32.Vector3              { return math32.Vec3(0, 0, -1) }
func (camera) ViewProjection() math32.Matrix4        { return *math32.Identity4() }
func (camera) InverseViewProjection() math32.Matrix4 { return *math32.Identity4() }
func (camera) Near() float32                         { return 0.1 }
func (camera) Far() float32                          { return 100 }

// demoScene is a floor of tiles lit by the sun and a moving spot
// light, with a sliding block casting its shadow, a pane of glass
// and a status bar.
type demoScene struct {
	drawables []engine.Drawable
	lights    []*engine.Light
	overlay   []engine.Drawable

	block *engine.Quad
	spot  *engine.Light
	time  float32
}

func newDemoScene() *demoScene {
	sc := &demoScene{}
	colors := []math32.Vector4{math32.Vec4(0.8, 0.3, 0.2, 1), math32.Vec4(0.3, 0.7, 0.3, 1), math32.Vec4(0.2, 0.4, 0.8, 1), math32.Vec4(0.8, 0.8, 0.7, 1)}
	for i, c := range colors {
		x := float32(i%2) * 0.5
		y := float32(i/2) * 0.5
		tile := engine.NewQuad("tile", math32.Vec2(x, y), math32.Vec2(x+0.5, y+0.5), 0.6, c)
		tile.CastShadow = true
		sc.drawables = append(sc.drawables, tile)
	}
	sc.block = engine.NewQuad("block", math32.Vec2(0.2, 0.3), math32.Vec2(0.4, 0.7), 0.3, math32.Vec4(1, 1, 1, 1))
	sc.block.CastShadow = true
	sc.block.Hidden = true
	glass := engine.NewQuad("glass", math32.Vec2(0.55, 0.1), math32.Vec2(0.9, 0.4), 0.2, math32.Vec4(0.6, 0.8, 1, 0.3))
	glass.Kind = engine.QuadForward
	sc.drawables = append(sc.drawables, sc.block, glass)

	sun := engine.NewDirectionalLight("sun", math32.Vec3(0.7, 0.7, 0.6), math32.Vec3(0, 0, 1))
	sun.Shadows = true
	sun.Static = true
	sc.spot = engine.NewSpotLight("spot", math32.Vec3(2, 1.6, 1), math32.Vec3(0, 0, -0.5), math32.Vec3(0, 0, 1), 4, 0.6)
	sc.lights = append(sc.lights, sun, sc.spot)

	bar := engine.NewQuad("bar", math32.Vec2(0, 0.95), math32.Vec2(1, 1), 0, math32.Vec4(0, 0, 0, 0.6))
	bar.Kind = engine.QuadOverlay
	sc.overlay = append(sc.overlay, bar)
	return sc
}

func (sc *demoScene) Camera() engine.Camera        { return camera{} }
func (sc *demoScene) Drawables() []engine.Drawable { return sc.drawables }
func (sc *demoScene) Lights() []*engine.Light      { return sc.lights }
func (sc *demoScene) Overlay() []engine.Drawable   { return sc.overlay }

// Update slides the block back and forth and circles the spot light.
func (sc *demoScene) Update(dt float32) {
	sc.time += dt
	dx := 0.3 * fmath.Sin(sc.time)
	sc.block.Rect.Min.X = 0.2 + dx
	sc.block.Rect.Max.X = 0.4 + dx
	sc.spot.Position = math32.Vec3(0.5*fmath.Cos(sc.time), 0.5*fmath.Sin(sc.time), -0.5)
}
