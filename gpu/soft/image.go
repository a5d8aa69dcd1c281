// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
)

// Image is a software image, holding linear float color pixels
// for color formats and float depth values for depth formats,
// together with its actual layout.
// It implements [draw.Image] for color formats, with float formats
// scaled into the 16 bit color range by [HDRRange].
type Image struct {
	Name   string
	Format gpu.Format
	Size   image.Point

	// Pix has the color pixels, in row order.
	Pix []math32.Vector4

	// Depth has the depth values, for depth formats.
	Depth []float32

	layout gpu.Layout
}

// HDRRange is the value range of float color formats that is
// mapped onto the 16 bit range of [color.RGBA64] in [Image.At] and
// [Image.Set].
const HDRRange = 16

func newImage(name string, format gpu.Format, size image.Point) *Image {
	im := &Image{Name: name, Format: format, Size: size}
	n := size.X * size.Y
	if format.IsDepth() {
		im.Depth = make([]float32, n)
	} else {
		im.Pix = make([]math32.Vector4, n)
	}
	return im
}

// Layout returns the actual layout of the image.
func (im *Image) Layout() gpu.Layout {
	return im.layout
}

func (im *Image) Release() {
	im.Pix = nil
	im.Depth = nil
}

func (im *Image) String() string {
	return fmt.Sprintf("%s %v %s", im.Name, im.Size, im.Format)
}

// Index returns the pixel index of x, y.
func (im *Image) Index(x, y int) int {
	return y*im.Size.X + x
}

// Pixel returns the color at x, y, clamped to the bounds.
func (im *Image) Pixel(x, y int) math32.Vector4 {
	x = min(max(x, 0), im.Size.X-1)
	y = min(max(y, 0), im.Size.Y-1)
	return im.Pix[im.Index(x, y)]
}

// DepthAt returns the depth at x, y, clamped to the bounds.
func (im *Image) DepthAt(x, y int) float32 {
	x = min(max(x, 0), im.Size.X-1)
	y = min(max(y, 0), im.Size.Y-1)
	return im.Depth[im.Index(x, y)]
}

// Sample returns the bilinear filtered color at normalized
// coordinates uv, with clamp to edge addressing.
func (im *Image) Sample(uv math32.Vector2) math32.Vector4 {
	fx := uv.X*float32(im.Size.X) - 0.5
	fy := uv.Y*float32(im.Size.Y) - 0.5
	x0 := int(math32.Floor(fx))
	y0 := int(math32.Floor(fy))
	tx := fx - float32(x0)
	ty := fy - float32(y0)
	if im.Depth != nil {
		d0 := lerp(im.DepthAt(x0, y0), im.DepthAt(x0+1, y0), tx)
		d1 := lerp(im.DepthAt(x0, y0+1), im.DepthAt(x0+1, y0+1), tx)
		d := lerp(d0, d1, ty)
		return math32.Vec4(d, d, d, 1)
	}
	c0 := im.Pixel(x0, y0).Lerp(im.Pixel(x0+1, y0), tx)
	c1 := im.Pixel(x0, y0+1).Lerp(im.Pixel(x0+1, y0+1), tx)
	return c0.Lerp(c1, ty)
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func (im *Image) scale() float32 {
	if im.Format == gpu.FormatRGBA16Float || im.Format == gpu.FormatRGBA32Float {
		return HDRRange
	}
	return 1
}

// RGBA returns the image as 8 bit color, clamping all values.
func (im *Image) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rectangle{Max: im.Size})
	im.copyRGBA(img.Pix)
	return img
}

func (im *Image) copyRGBA(pix []byte) {
	for i, c := range im.Pix {
		pix[i*4] = unorm8(c.X)
		pix[i*4+1] = unorm8(c.Y)
		pix[i*4+2] = unorm8(c.Z)
		pix[i*4+3] = unorm8(c.W)
	}
}

func unorm8(v float32) uint8 {
	return uint8(math32.Clamp(v, 0, 1)*255 + 0.5)
}

func (im *Image) ColorModel() color.Model {
	return color.RGBA64Model
}

func (im *Image) Bounds() image.Rectangle {
	return image.Rectangle{Max: im.Size}
}

func (im *Image) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(im.Bounds())) {
		return color.RGBA64{}
	}
	c := im.Pix[im.Index(x, y)]
	s := im.scale()
	return color.RGBA64{unorm16(c.X / s), unorm16(c.Y / s), unorm16(c.Z / s), unorm16(c.W / s)}
}

func (im *Image) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(im.Bounds())) {
		return
	}
	r, g, b, a := c.RGBA()
	s := im.scale() / 0xffff
	im.Pix[im.Index(x, y)] = math32.Vec4(float32(r)*s, float32(g)*s, float32(b)*s, float32(a)*s)
}

func unorm16(v float32) uint16 {
	return uint16(math32.Clamp(v, 0, 1)*0xffff + 0.5)
}

// Buffer is a host-visible byte buffer.
type Buffer struct {
	usage gpu.BufferUsage

	mu     sync.Mutex
	data   []byte
	writes int
}

func (bf *Buffer) Size() int {
	return len(bf.data)
}

func (bf *Buffer) Write(offset int, data []byte) error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if offset < 0 || offset+len(data) > len(bf.data) {
		return fmt.Errorf("soft.Buffer.Write: range %d+%d out of %d", offset, len(data), len(bf.data))
	}
	copy(bf.data[offset:], data)
	bf.writes++
	return nil
}

func (bf *Buffer) Read(offset int, data []byte) error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if offset < 0 || offset+len(data) > len(bf.data) {
		return fmt.Errorf("soft.Buffer.Read: range %d+%d out of %d", offset, len(data), len(bf.data))
	}
	copy(data, bf.data[offset:])
	return nil
}

// Writes returns the number of writes to the buffer.
func (bf *Buffer) Writes() int {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	return bf.writes
}

// Bytes returns a copy of the buffer contents.
func (bf *Buffer) Bytes() []byte {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	return append([]byte(nil), bf.data...)
}

func (bf *Buffer) Release() {}
