// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render_test

import (
	"image"
	"testing"

	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/gpu/soft"
	"cogentcore.org/pyro/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var displaySize = image.Point{8, 6}

func newTestChain(t *testing.T) (*gpu.Context, *soft.Device, *render.Chain) {
	dev := soft.NewDevice(soft.Options{})
	cx := gpu.NewContext(dev)
	t.Cleanup(cx.Release)
	lib := gpu.NewProgramLibrary(cx)
	render.AddPrograms(lib)
	t.Cleanup(lib.Release)
	ch, err := render.NewChain(cx, lib, displaySize)
	require.NoError(t, err)
	t.Cleanup(ch.Release)
	return cx, dev, ch
}

// newTestScene returns a scene framebuffer with color and depth,
// filled with the given color and depth.
func newTestScene(t *testing.T, cx *gpu.Context, c math32.Vector4, depth float32) *gpu.Framebuffer {
	rp, err := gpu.NewRenderPass(cx, "scene", gpu.ColorAttachment(render.OutputFormat, gpu.LoadClear), gpu.DepthAttachment(gpu.FormatDepth32, gpu.LoadClear))
	require.NoError(t, err)
	t.Cleanup(rp.Release)
	fb, err := gpu.NewFramebuffer(cx, "scene", rp, displaySize, render.OutputUsage)
	require.NoError(t, err)
	t.Cleanup(fb.Release)
	col := fb.Attachment(0).Handle().(*soft.Image)
	for i := range col.Pix {
		col.Pix[i] = c
	}
	dep := fb.Depth().Handle().(*soft.Image)
	for i := range dep.Depth {
		dep.Depth[i] = depth
	}
	return fb
}

// runChain records and executes one run of the chain.
func runChain(t *testing.T, cx *gpu.Context, ch *render.Chain, scene *gpu.Framebuffer, slot int) *gpu.Framebuffer {
	rec, err := gpu.NewRecorder(cx, "chain")
	require.NoError(t, err)
	t.Cleanup(rec.Release)
	require.NoError(t, rec.Begin())
	out, err := ch.Run(rec, scene, slot)
	require.NoError(t, err)
	require.NoError(t, rec.End())
	require.NoError(t, rec.Submit(cx.Device.Queue(), gpu.SubmitOptions{}))
	require.NoError(t, cx.Device.WaitIdle())
	return out
}

func setPixel(fb *gpu.Framebuffer, x, y int, c math32.Vector4) {
	im := fb.Attachment(0).Handle().(*soft.Image)
	im.Pix[im.Index(x, y)] = c
}

func pixel(fb *gpu.Framebuffer, x, y int) math32.Vector4 {
	return fb.Attachment(0).Handle().(*soft.Image).Pixel(x, y)
}

func TestChainInactiveStageSkipped(t *testing.T) {
	cx, dev, ch := newTestChain(t)
	scene := newTestScene(t, cx, math32.Vec4(2, 2, 2, 1), 1)

	sub := ch.NewSubChain("glow")
	bright, err := render.NewBrightFilter(ch, "bright", 1, 0.5)
	require.NoError(t, err)
	blur, err := render.NewBlur(ch, "blur", 1, true)
	require.NoError(t, err)
	require.NoError(t, sub.Add(bright, blur))
	comb, err := render.NewCombineStage(ch, "combine", render.CombineProgram, "Input", "Bloom")
	require.NoError(t, err)
	require.NoError(t, ch.AddSubChain(sub, comb))
	tonemap, err := render.NewTonemap(ch)
	require.NoError(t, err)
	tonemap.SetActive(false)
	require.NoError(t, ch.Add(tonemap))

	out := runChain(t, cx, ch, scene, 0)
	assert.Same(t, comb.Output(), out)
	assert.Same(t, out, ch.Output())
	assert.Equal(t, 0, tonemap.Records)
	assert.Equal(t, 1, bright.Records)
	assert.Equal(t, 1, blur.Records)
	assert.Equal(t, 1, comb.Records)
	assert.Equal(t, 0, ch.PassThrough().Records)
	assert.Equal(t, displaySize, out.Size)
	assert.Empty(t, dev.Validation())

	// bright part above 0.5 is added back: 2 + 2 * 1.5 / 2
	c := pixel(out, 4, 3)
	assert.InDelta(t, 3.5, c.X, 0.01)
}

func TestChainNoActiveStages(t *testing.T) {
	cx, dev, ch := newTestChain(t)
	scene := newTestScene(t, cx, math32.Vec4(0.25, 0.5, 0.75, 1), 1)
	tonemap, err := render.NewTonemap(ch)
	require.NoError(t, err)
	tonemap.SetActive(false)
	require.NoError(t, ch.Add(tonemap))

	out := runChain(t, cx, ch, scene, 0)
	assert.Same(t, ch.PassThrough().Output(), out)
	assert.Equal(t, displaySize, out.Size)
	assert.Equal(t, 1, ch.PassThrough().Records)
	c := pixel(out, 3, 2)
	assert.InDelta(t, 0.5, c.Y, 0.001)
	assert.Empty(t, dev.Validation())

	// empty chain
	cx2, _, empty := newTestChain(t)
	out = runChain(t, cx2, empty, newTestScene(t, cx2, math32.Vec4(1, 1, 1, 1), 1), 0)
	assert.Equal(t, displaySize, out.Size)
}

func TestChainUpscalesToDisplay(t *testing.T) {
	cx, dev, ch := newTestChain(t)
	scene := newTestScene(t, cx, math32.Vec4(1, 1, 1, 1), 1)
	half, err := render.NewBlur(ch, "half", 0.5, true)
	require.NoError(t, err)
	require.NoError(t, ch.Add(half))
	assert.Equal(t, image.Point{4, 3}, half.Output().Size)

	out := runChain(t, cx, ch, scene, 1)
	assert.Same(t, ch.PassThrough().Output(), out)
	assert.Equal(t, displaySize, out.Size)
	assert.Empty(t, dev.Validation())
}

func TestChainResize(t *testing.T) {
	cx, dev, ch := newTestChain(t)
	sub, bloom, err := render.NewBloom(ch, 0.5, 1)
	require.NoError(t, err)
	require.NoError(t, ch.AddSubChain(sub, bloom))

	external, err := render.NewPassStage(ch, "external", render.TonemapProgram, 0, "Input")
	require.NoError(t, err)
	extFB, err := gpu.NewFramebuffer(cx, "external", ch.Pass, displaySize, render.OutputUsage)
	require.NoError(t, err)
	defer extFB.Release()
	external.SetOutput(extFB)
	require.NoError(t, ch.Add(external))

	size := image.Point{20, 10}
	require.NoError(t, ch.Resize(size))
	assert.Equal(t, size, ch.Size())
	assert.Equal(t, image.Point{10, 5}, ch.Stage(render.BrightName).Output().Size)
	assert.Equal(t, image.Point{10, 5}, ch.Stage(render.BlurVName).Output().Size)
	assert.Equal(t, size, bloom.Output().Size)
	assert.Equal(t, size, ch.PassThrough().Output().Size)
	assert.Equal(t, displaySize, external.Output().Size)

	// the external output no longer matches, so the pass-through runs
	scene, err := gpu.NewFramebuffer(cx, "scene", ch.Pass, size, render.OutputUsage)
	require.NoError(t, err)
	defer scene.Release()
	out := runChain(t, cx, ch, scene, 2)
	assert.Equal(t, size, out.Size)
	assert.Equal(t, 1, external.Records)
	assert.Equal(t, 1, ch.PassThrough().Records)
	assert.Empty(t, dev.Validation())
}

func TestChainSetActive(t *testing.T) {
	cx, _, ch := newTestChain(t)
	scene := newTestScene(t, cx, math32.Vec4(4, 4, 4, 1), 1)
	sub, bloom, err := render.NewBloom(ch, 0.5, 1)
	require.NoError(t, err)
	require.NoError(t, ch.AddSubChain(sub, bloom))

	assert.True(t, ch.SetActive(render.BloomName, false))
	assert.False(t, ch.SetActive("missing", true))
	out := runChain(t, cx, ch, scene, 0)
	assert.Same(t, ch.PassThrough().Output(), out)
	assert.Equal(t, 0, bloom.Records)
	assert.Equal(t, 0, ch.Stage(render.BrightName).(*render.PassStage).Records)

	// a sub-chain with no active stage skips the combine
	assert.True(t, ch.SetActive(render.BloomName, true))
	for _, name := range []string{render.BrightName, render.BlurHName, render.BlurVName} {
		assert.True(t, ch.SetActive(name, false))
	}
	runChain(t, cx, ch, scene, 1)
	assert.Equal(t, 0, bloom.Records)

	assert.Error(t, ch.Add(bloom))
}

func TestChainSlotTextures(t *testing.T) {
	cx, dev, ch := newTestChain(t)
	tonemap, err := render.NewTonemap(ch)
	require.NoError(t, err)
	require.NoError(t, ch.Add(tonemap))

	scenes := make([]*gpu.Framebuffer, 3)
	for i := range scenes {
		scenes[i] = newTestScene(t, cx, math32.Vec4(float32(i), 0, 0, 1), 1)
		runChain(t, cx, ch, scenes[i], i)
	}
	for i, sc := range scenes {
		assert.Same(t, sc.Attachment(0), tonemap.Values.SlotTexture(i, "Input"))
	}
	assert.Empty(t, dev.Validation())
}
