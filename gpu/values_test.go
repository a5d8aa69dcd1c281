// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"image"
	"testing"

	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/gpu/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterfaceLayout(t *testing.T) {
	ifc := gpu.NewInterface("test").
		Add("Exposure", gpu.Float32, float32(1)).
		Add("FogColor", gpu.Float32Vector3, nil).
		Add("Density", gpu.Float32, nil).
		Add("UV", gpu.Float32Vector2, nil).
		Add("Scene", gpu.TextureRGBA32, nil).
		Add("ViewProjection", gpu.Float32Matrix4, nil).
		Add("Bloom", gpu.TextureRGBA32, nil)

	assert.Equal(t, 0, ifc.Field("Exposure").Offset)
	assert.Equal(t, 16, ifc.Field("FogColor").Offset)
	assert.Equal(t, 28, ifc.Field("Density").Offset)
	assert.Equal(t, 32, ifc.Field("UV").Offset)
	assert.Equal(t, 48, ifc.Field("ViewProjection").Offset)
	assert.Equal(t, 112, ifc.Size())
	assert.Equal(t, 2, ifc.NumTextures())
	assert.Equal(t, gpu.UniformBinding, ifc.Field("Exposure").Binding)
	assert.Equal(t, 1, ifc.Field("Scene").Binding)
	assert.Equal(t, 2, ifc.Field("Bloom").Binding)
	assert.Nil(t, ifc.Field("Missing"))
	assert.Contains(t, ifc.StringDoc(), "ViewProjection")
}

func newTestValues(t *testing.T) (*gpu.Context, *gpu.Values) {
	cx, _ := newTestContext(t, false)
	rp, _ := newTestPass(t, cx)
	ifc := gpu.NewInterface("tonemap").
		Add("Exposure", gpu.Float32, float32(1)).
		Add("Tint", gpu.Float32Vector3, math32.Vec3(1, 1, 1)).
		Add("Scene", gpu.TextureRGBA32, nil)
	prog, err := gpu.NewProgram(cx, &gpu.ProgramSource{Name: "tonemap", Interface: ifc}, rp)
	require.NoError(t, err)
	t.Cleanup(prog.Release)
	vals, err := gpu.NewValues(cx, prog)
	require.NoError(t, err)
	t.Cleanup(vals.Release)
	return cx, vals
}

func slotWrites(vals *gpu.Values, slot int) int {
	return vals.DescriptorSet(slot).(*soft.DescriptorSet).Buffer().Writes()
}

func TestValuesFlushCounters(t *testing.T) {
	_, vals := newTestValues(t)
	assert.Equal(t, 0, vals.Dirty())
	assert.False(t, vals.Flush(0))

	require.NoError(t, vals.Set("Exposure", float32(2)))
	assert.Equal(t, 3, vals.Dirty())
	assert.Equal(t, float32(2), vals.Get("Exposure"))
	// not yet visible to the GPU
	v, err := vals.ReadBack(0, "Exposure")
	require.NoError(t, err)
	assert.Equal(t, float32(1), v)

	base := []int{slotWrites(vals, 0), slotWrites(vals, 1), slotWrites(vals, 2)}
	for slot := range 3 {
		assert.True(t, vals.Flush(slot))
		assert.Equal(t, 2-slot, vals.Dirty())
		assert.Equal(t, base[slot]+1, slotWrites(vals, slot))
	}
	assert.False(t, vals.Flush(0))
	assert.Equal(t, base[0]+1, slotWrites(vals, 0))
	assert.Equal(t, 3, vals.Writes())

	for slot := range 3 {
		v, err := vals.ReadBack(slot, "Exposure")
		require.NoError(t, err)
		assert.Equal(t, float32(2), v)
	}
	assert.Equal(t, 0, vals.Dirty())
}

func TestValuesFlushIdempotent(t *testing.T) {
	_, vals := newTestValues(t)
	require.NoError(t, vals.SetVector3("Tint", math32.Vec3(1, 0.5, 0.25)))
	assert.True(t, vals.Flush(1))
	n := vals.Writes()
	assert.False(t, vals.Flush(1))
	assert.Equal(t, n, vals.Writes())
	assert.Equal(t, 2, vals.Dirty())

	v, err := vals.ReadBack(1, "Tint")
	require.NoError(t, err)
	assert.Equal(t, math32.Vec3(1, 0.5, 0.25), v)
	v, err = vals.ReadBack(0, "Tint")
	require.NoError(t, err)
	assert.Equal(t, math32.Vec3(1, 1, 1), v)
}

func TestValuesOnlyStaleEntriesWritten(t *testing.T) {
	_, vals := newTestValues(t)
	require.NoError(t, vals.SetFloat("Exposure", 3))
	vals.Flush(0)
	vals.Flush(1)
	vals.Flush(2)
	n := vals.Writes()
	require.NoError(t, vals.SetVector3("Tint", math32.Vec3(0, 1, 0)))
	vals.Flush(0)
	assert.Equal(t, n+1, vals.Writes())
}

func TestValuesSetAfterPartialFlush(t *testing.T) {
	_, vals := newTestValues(t)
	require.NoError(t, vals.SetFloat("Exposure", 2))
	vals.Flush(0)
	require.NoError(t, vals.SetFloat("Exposure", 4))
	assert.Equal(t, 3, vals.Dirty())
	// slot 0 was flushed for the old value, so it is stale again
	assert.True(t, vals.Flush(0))
	vals.Flush(1)
	vals.Flush(2)
	for slot := range 3 {
		v, err := vals.ReadBack(slot, "Exposure")
		require.NoError(t, err)
		assert.Equal(t, float32(4), v)
	}
}

func TestValuesSetOtherAfterPartialFlush(t *testing.T) {
	_, vals := newTestValues(t)
	require.NoError(t, vals.SetFloat("Exposure", 2))
	vals.Flush(0)
	require.NoError(t, vals.SetVector3("Tint", math32.Vec3(0.5, 0.5, 0.5)))
	vals.Flush(0)
	vals.Flush(1)
	vals.Flush(2)
	assert.Equal(t, 0, vals.Dirty())
	for slot := range 3 {
		v, err := vals.ReadBack(slot, "Exposure")
		require.NoError(t, err)
		assert.Equal(t, float32(2), v, "slot %d", slot)
		v, err = vals.ReadBack(slot, "Tint")
		require.NoError(t, err)
		assert.Equal(t, math32.Vec3(0.5, 0.5, 0.5), v, "slot %d", slot)
	}
}

func TestValuesFlushOutOfOrder(t *testing.T) {
	_, vals := newTestValues(t)
	require.NoError(t, vals.SetFloat("Exposure", 2))
	assert.True(t, vals.Flush(0))
	assert.True(t, vals.Flush(2))
	// slot 0 was skipped by the previous frame, so it is bound again
	assert.False(t, vals.Flush(0))
	assert.Equal(t, 1, vals.Dirty())
	assert.True(t, vals.IsStale(1))

	assert.True(t, vals.Flush(1))
	assert.Equal(t, 0, vals.Dirty())
	assert.Equal(t, 3, vals.Writes())
	for slot := range 3 {
		v, err := vals.ReadBack(slot, "Exposure")
		require.NoError(t, err)
		assert.Equal(t, float32(2), v, "slot %d", slot)
	}
}

func TestValuesEntryStale(t *testing.T) {
	_, vals := newTestValues(t)
	require.NoError(t, vals.SetFloat("Exposure", 2))
	vals.Flush(1)
	require.NoError(t, vals.SetVector3("Tint", math32.Vec3(0, 0, 1)))
	assert.Equal(t, 2, vals.Value("Exposure").Stale())
	assert.Equal(t, 3, vals.Value("Tint").Stale())

	// slot 1 already has the exposure, so only the tint is written
	n := vals.Writes()
	vals.Flush(1)
	assert.Equal(t, n+1, vals.Writes())
	vals.Flush(0)
	assert.Equal(t, n+3, vals.Writes())
	assert.Equal(t, 1, vals.Value("Exposure").Stale())
}

func TestValuesContract(t *testing.T) {
	_, vals := newTestValues(t)
	assert.Panics(t, func() { vals.Set("Missing", float32(1)) })
	assert.Panics(t, func() { vals.Set("Exposure", math32.Vec3(1, 1, 1)) })
	assert.Panics(t, func() { vals.Set("Scene", float32(1)) })

	gpu.Debug = false
	defer func() { gpu.Debug = true }()
	assert.Error(t, vals.Set("Missing", float32(1)))
	assert.Error(t, vals.Set("Tint", float32(1)))
	assert.Equal(t, 0, vals.Dirty())
	assert.Nil(t, vals.Get("Missing"))
}

func TestValuesTexture(t *testing.T) {
	cx, vals := newTestValues(t)
	im := newTestImage(t, cx, "scene")
	require.NoError(t, vals.SetTexture("Scene", im))
	// textures update all descriptor sets immediately
	assert.Equal(t, 0, vals.Dirty())
	for slot := range 3 {
		ds := vals.DescriptorSet(slot).(*soft.DescriptorSet)
		assert.Same(t, im.Handle(), ds.Image(1))
	}
	assert.Same(t, im, vals.Texture("Scene"))
}

func TestValuesSlotTexture(t *testing.T) {
	cx, vals := newTestValues(t)
	a := newTestImage(t, cx, "a")
	b := newTestImage(t, cx, "b")
	require.NoError(t, vals.SetTexture("Scene", a))
	require.NoError(t, vals.SetSlotTexture(1, "Scene", b))
	assert.Same(t, a.Handle(), vals.DescriptorSet(0).(*soft.DescriptorSet).Image(1))
	assert.Same(t, b.Handle(), vals.DescriptorSet(1).(*soft.DescriptorSet).Image(1))
	assert.Same(t, a.Handle(), vals.DescriptorSet(2).(*soft.DescriptorSet).Image(1))
	assert.Same(t, b, vals.SlotTexture(1, "Scene"))
	assert.Same(t, a, vals.SlotTexture(2, "Scene"))
	assert.Nil(t, vals.SlotTexture(0, "Exposure"))

	// a texture set replaces all slot bindings
	require.NoError(t, vals.SetTexture("Scene", a))
	assert.Same(t, a, vals.SlotTexture(1, "Scene"))
	assert.Same(t, a.Handle(), vals.DescriptorSet(1).(*soft.DescriptorSet).Image(1))

	assert.Panics(t, func() { vals.SetSlotTexture(0, "Exposure", a) })
}

func TestValuesSlotTextureResized(t *testing.T) {
	cx, vals := newTestValues(t)
	a := newTestImage(t, cx, "a")
	require.NoError(t, vals.SetSlotTexture(0, "Scene", a))
	old := a.Handle()
	require.NoError(t, a.SetSize(cx, image.Point{2, 2}))
	require.NotSame(t, old, a.Handle())
	require.NoError(t, vals.SetSlotTexture(0, "Scene", a))
	assert.Same(t, a.Handle(), vals.DescriptorSet(0).(*soft.DescriptorSet).Image(1))
}

func TestValuesReset(t *testing.T) {
	_, vals := newTestValues(t)
	require.NoError(t, vals.SetFloat("Exposure", 5))
	vals.Flush(0)
	require.NoError(t, vals.Reset())
	assert.Equal(t, 0, vals.Dirty())
	for slot := range 3 {
		v, err := vals.ReadBack(slot, "Exposure")
		require.NoError(t, err)
		assert.Equal(t, float32(1), v)
	}
}
