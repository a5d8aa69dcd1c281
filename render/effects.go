// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/gpu/soft"
	fmath "github.com/chewxy/math32"
)

// Names of the built-in programs.
const (
	PassThroughProgram = "render.passthrough"
	BrightProgram      = "render.bright"
	BlurProgram        = "render.blur"
	CombineProgram     = "render.combine"
	FogProgram         = "render.fog"
	TonemapProgram     = "render.tonemap"
)

// Names of the built-in stages.
const (
	FogName     = "fog"
	BloomName   = "bloom"
	BrightName  = "bloom.bright"
	BlurHName   = "bloom.blurh"
	BlurVName   = "bloom.blurv"
	TonemapName = "tonemap"
)

// AddPrograms registers the sources of the built-in programs.
// Compiled shaders are added with [gpu.ProgramLibrary.OpenFS].
func AddPrograms(lib *gpu.ProgramLibrary) {
	lib.Add(&gpu.ProgramSource{
		Name:      PassThroughProgram,
		Interface: gpu.NewInterface(PassThroughProgram).Add("Input", gpu.TextureRGBA32, nil),
		Kernel: soft.Kernel(func(fr *soft.Fragment) {
			fr.Out[0] = fr.Sample("Input", fr.UV)
		}),
	})
	lib.Add(&gpu.ProgramSource{
		Name: BrightProgram,
		Interface: gpu.NewInterface(BrightProgram).
			Add("Threshold", gpu.Float32, float32(1)).
			Add("Input", gpu.TextureRGBA32, nil),
		Kernel: soft.Kernel(brightKernel),
	})
	lib.Add(&gpu.ProgramSource{
		Name: BlurProgram,
		Interface: gpu.NewInterface(BlurProgram).
			Add("Direction", gpu.Float32Vector2, math32.Vec2(1, 0)).
			Add("Input", gpu.TextureRGBA32, nil),
		Kernel: soft.Kernel(blurKernel),
	})
	lib.Add(&gpu.ProgramSource{
		Name: CombineProgram,
		Interface: gpu.NewInterface(CombineProgram).
			Add("Intensity", gpu.Float32, float32(1)).
			Add("Input", gpu.TextureRGBA32, nil).
			Add("Bloom", gpu.TextureRGBA32, nil),
		Kernel: soft.Kernel(func(fr *soft.Fragment) {
			c := fr.Sample("Input", fr.UV)
			b := fr.Sample("Bloom", fr.UV).MulScalar(fr.Float("Intensity"))
			b.W = 0
			fr.Out[0] = c.Add(b)
		}),
	})
	lib.Add(&gpu.ProgramSource{
		Name: FogProgram,
		Interface: gpu.NewInterface(FogProgram).
			Add("FogColor", gpu.Float32Vector3, math32.Vec3(0.5, 0.6, 0.7)).
			Add("Density", gpu.Float32, float32(0.02)).
			Add("Near", gpu.Float32, float32(0.1)).
			Add("Far", gpu.Float32, float32(100)).
			Add("Input", gpu.TextureRGBA32, nil).
			Add("Depth", gpu.TextureDepth32, nil),
		Kernel: soft.Kernel(fogKernel),
	})
	lib.Add(&gpu.ProgramSource{
		Name: TonemapProgram,
		Interface: gpu.NewInterface(TonemapProgram).
			Add("Exposure", gpu.Float32, float32(1)).
			Add("Input", gpu.TextureRGBA32, nil),
		Kernel: soft.Kernel(tonemapKernel),
	})
}

// NewPassThrough returns the stage that copies its input to a
// display sized framebuffer, scaling it if needed.
func NewPassThrough(ch *Chain) (*PassStage, error) {
	return NewPassStage(ch, PassThroughName, PassThroughProgram, 1, "Input")
}

// NewBrightFilter returns a stage keeping only the parts of the
// image brighter than the threshold, at the given scale.
func NewBrightFilter(ch *Chain, name string, scale, threshold float32) (*PassStage, error) {
	ps, err := NewPassStage(ch, name, BrightProgram, scale, "Input")
	if err != nil {
		return nil, err
	}
	return ps, ps.Values.SetFloat("Threshold", threshold)
}

// NewBlur returns a separable gaussian blur stage, along x if
// horizontal and along y otherwise.
func NewBlur(ch *Chain, name string, scale float32, horizontal bool) (*PassStage, error) {
	ps, err := NewPassStage(ch, name, BlurProgram, scale, "Input")
	if err != nil {
		return nil, err
	}
	dir := math32.Vec2(0, 1)
	if horizontal {
		dir = math32.Vec2(1, 0)
	}
	return ps, ps.Values.SetVector2("Direction", dir)
}

// NewBloom returns the bloom sub-chain (bright filter, then
// horizontal and vertical blur, at the given scale) and the stage
// combining its result with the running output, which are added
// to the chain with [Chain.AddSubChain].
func NewBloom(ch *Chain, scale, threshold float32) (*Chain, *CombineStage, error) {
	sub := ch.NewSubChain(BloomName)
	bright, err := NewBrightFilter(ch, BrightName, scale, threshold)
	if err != nil {
		return nil, nil, err
	}
	blurH, err := NewBlur(ch, BlurHName, scale, true)
	if err != nil {
		bright.Release()
		return nil, nil, err
	}
	blurV, err := NewBlur(ch, BlurVName, scale, false)
	if err != nil {
		bright.Release()
		blurH.Release()
		return nil, nil, err
	}
	if err := sub.Add(bright, blurH, blurV); err != nil {
		sub.Release()
		return nil, nil, err
	}
	comb, err := NewCombineStage(ch, BloomName, CombineProgram, "Input", "Bloom")
	if err != nil {
		sub.Release()
		return nil, nil, err
	}
	return sub, comb, nil
}

// NewFog returns a stage blending the scene toward the fog color
// with the distance given by the scene depth.
func NewFog(ch *Chain) (*PassStage, error) {
	ps, err := NewPassStage(ch, FogName, FogProgram, 1, "Input")
	if err != nil {
		return nil, err
	}
	ps.Depth = "Depth"
	return ps, nil
}

// NewTonemap returns the stage mapping high dynamic range color
// with the exposure into the display range, sRGB encoded.
func NewTonemap(ch *Chain) (*PassStage, error) {
	return NewPassStage(ch, TonemapName, TonemapProgram, 1, "Input")
}

func brightKernel(fr *soft.Fragment) {
	c := fr.Sample("Input", fr.UV)
	lum := Luminance(c)
	th := fr.Float("Threshold")
	if lum <= th || lum <= 0 {
		fr.Out[0] = math32.Vec4(0, 0, 0, 1)
		return
	}
	c = c.MulScalar((lum - th) / lum)
	c.W = 1
	fr.Out[0] = c
}

// blurRadius is the number of taps on each side of the blur.
const blurRadius = 4

// blurWeights are the normalized gaussian weights of the blur taps.
var blurWeights = func() [blurRadius + 1]float32 {
	var w [blurRadius + 1]float32
	sigma := float32(blurRadius) / 2
	sum := float32(0)
	for i := range w {
		x := float32(i)
		w[i] = fmath.Exp(-x * x / (2 * sigma * sigma))
		if i == 0 {
			sum += w[i]
		} else {
			sum += 2 * w[i]
		}
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}()

func blurKernel(fr *soft.Fragment) {
	in := fr.Texture("Input")
	if in == nil {
		return
	}
	dir := fr.Vector2("Direction")
	step := math32.Vec2(dir.X/float32(in.Size.X), dir.Y/float32(in.Size.Y))
	c := in.Sample(fr.UV).MulScalar(blurWeights[0])
	for i := 1; i <= blurRadius; i++ {
		off := step.MulScalar(float32(i))
		c = c.Add(in.Sample(fr.UV.Add(off)).MulScalar(blurWeights[i]))
		c = c.Add(in.Sample(fr.UV.Sub(off)).MulScalar(blurWeights[i]))
	}
	c.W = 1
	fr.Out[0] = c
}

// linearDepth returns the view distance of a [0, 1] depth value.
func linearDepth(d, near, far float32) float32 {
	return near * far / (far - d*(far-near))
}

func fogKernel(fr *soft.Fragment) {
	c := fr.Sample("Input", fr.UV)
	d := fr.Load("Depth").X
	dist := linearDepth(d, fr.Float("Near"), fr.Float("Far"))
	f := clamp01(1 - fmath.Exp(-fr.Float("Density")*dist))
	fog := math32.Vector4FromVector3(fr.Vector3("FogColor"), 1)
	fr.Out[0] = c.Lerp(fog, f)
}

func tonemapKernel(fr *soft.Fragment) {
	c := fr.Sample("Input", fr.UV).MulScalar(fr.Float("Exposure"))
	c = math32.Vec4(c.X/(1+c.X), c.Y/(1+c.Y), c.Z/(1+c.Z), 1)
	fr.Out[0] = SRGBFromLinear(c)
}
