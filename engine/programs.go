// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/gpu/soft"
	"cogentcore.org/pyro/render"
	fmath "github.com/chewxy/math32"
)

// Names of the built-in programs of the lighting pass.
const (
	DirectionalProgram = "light.directional"
	PointProgram       = "light.point"
	SpotProgram        = "light.spot"

	// UnlitProgram copies the albedo into the lighting buffer,
	// replacing the lights in unlit mode.
	UnlitProgram = "light.unlit"
)

// DefaultShadowBias is the depth offset of shadow map comparisons.
const DefaultShadowBias = 0.005

// AddPrograms registers the sources of all built-in programs:
// those of the lighting pass, the [Quad] programs, and the
// post-processing programs of package render.
func AddPrograms(lib *gpu.ProgramLibrary) {
	render.AddPrograms(lib)
	for _, tp := range []LightTypes{DirectionalLight, PointLight, SpotLight} {
		lib.Add(&gpu.ProgramSource{
			Name:      tp.Program(),
			Interface: lightInterface(tp.Program()),
			Blend:     gpu.BlendAdd,
			Kernel:    lightKernel(tp),
		})
	}
	lib.Add(&gpu.ProgramSource{
		Name:      UnlitProgram,
		Interface: gpu.NewInterface(UnlitProgram).Add("Albedo", gpu.TextureRGBA32, nil),
		Kernel: soft.Kernel(func(fr *soft.Fragment) {
			c := fr.Load("Albedo")
			c.W = 1
			fr.Out[0] = c
		}),
	})
	addQuadPrograms(lib)
}

// lightInterface is the interface shared by all light programs.
// The G-buffer and the shadow map are textures, the rest
// describes the light and the camera.
func lightInterface(name string) *gpu.Interface {
	return gpu.NewInterface(name).
		Add("InverseViewProjection", gpu.Float32Matrix4, *math32.Identity4()).
		Add("LightViewProjection", gpu.Float32Matrix4, *math32.Identity4()).
		Add("LightColor", gpu.Float32Vector3, math32.Vec3(1, 1, 1)).
		Add("LightPosition", gpu.Float32Vector3, nil).
		Add("LightDirection", gpu.Float32Vector3, math32.Vec3(0, 0, -1)).
		Add("Range", gpu.Float32, float32(10)).
		Add("CosCutoff", gpu.Float32, float32(0.7071)).
		Add("ShadowBias", gpu.Float32, float32(DefaultShadowBias)).
		Add("Shadowed", gpu.Int32, int32(0)).
		Add("Albedo", gpu.TextureRGBA32, nil).
		Add("Normal", gpu.TextureRGBA32, nil).
		Add("Depth", gpu.TextureDepth32, nil).
		Add("ShadowMap", gpu.TextureDepth32, nil)
}

// lightKernel returns the software lighting program for the type:
// Lambert diffuse from the G-buffer, attenuated by range and cone,
// and masked by the shadow map.
func lightKernel(tp LightTypes) soft.Kernel {
	return func(fr *soft.Fragment) {
		d := fr.Load("Depth").X
		if d >= 1 {
			fr.Out[0] = math32.Vector4{}
			return
		}
		albedo := fr.Load("Albedo")
		nv := fr.Load("Normal")
		normal := math32.Vec3(nv.X, nv.Y, nv.Z).Normal()
		ivp := fr.Matrix4("InverseViewProjection")
		pos := math32.Vec4(fr.UV.X*2-1, fr.UV.Y*2-1, d, 1).MulMatrix4(&ivp).PerspDiv()

		var l math32.Vector3
		atten := float32(1)
		if tp == DirectionalLight {
			l = fr.Vector3("LightDirection").Negate().Normal()
		} else {
			tl := fr.Vector3("LightPosition").Sub(pos)
			dist := tl.Length()
			l = tl.MulScalar(1 / fmath.Max(dist, 1e-6))
			a := fmath.Max(0, 1-dist/fr.Float("Range"))
			atten = a * a
			if tp == SpotLight && l.Negate().Dot(fr.Vector3("LightDirection").Normal()) < fr.Float("CosCutoff") {
				atten = 0
			}
		}
		diff := fmath.Max(normal.Dot(l), 0) * atten
		if diff > 0 && fr.Int("Shadowed") != 0 {
			diff *= shadowFactor(fr, pos)
		}
		c := fr.Vector3("LightColor").MulScalar(diff)
		fr.Out[0] = math32.Vec4(albedo.X*c.X, albedo.Y*c.Y, albedo.Z*c.Z, 0)
	}
}

// shadowFactor returns 0 if pos is behind the depth in the shadow
// map of the light, and 1 otherwise, including outside of the map.
func shadowFactor(fr *soft.Fragment, pos math32.Vector3) float32 {
	sm := fr.Texture("ShadowMap")
	if sm == nil {
		return 1
	}
	lvp := fr.Matrix4("LightViewProjection")
	lc := math32.Vector4FromVector3(pos, 1).MulMatrix4(&lvp).PerspDiv()
	u, v := lc.X*0.5+0.5, lc.Y*0.5+0.5
	if u < 0 || u >= 1 || v < 0 || v >= 1 {
		return 1
	}
	sd := sm.DepthAt(int(u*float32(sm.Size.X)), int(v*float32(sm.Size.Y)))
	if lc.Z-fr.Float("ShadowBias") > sd {
		return 0
	}
	return 1
}
