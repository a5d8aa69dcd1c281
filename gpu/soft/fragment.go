// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"encoding/binary"
	"image"

	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
)

// Kernel is the software version of a fragment shader. It is called
// for every pixel of the target, and sets the outputs of the fragment.
type Kernel func(fr *Fragment)

// Fragment is the input and output of one [Kernel] invocation.
type Fragment struct {

	// X, Y are the pixel coordinates.
	X, Y int

	// Size is the size of the target.
	Size image.Point

	// UV is the normalized position of the pixel center.
	UV math32.Vector2

	// Instance is the instance index of the draw.
	Instance int

	// Push is the push constant data.
	Push []byte

	// Out are the color outputs, one per color attachment.
	// They are initialized to the current contents of the attachments,
	// or to zero for blended programs.
	Out []math32.Vector4

	// Depth is the output depth, initialized to the current depth.
	// It is tested against and written to the depth attachment,
	// if the program has depth enabled.
	Depth float32

	// Discard skips all writes of this fragment.
	Discard bool

	ex  *executor
	ifc *gpu.Interface
}

// Float returns the named float uniform.
func (fr *Fragment) Float(name string) float32 {
	var v float32
	fr.uniform(name, &v)
	return v
}

// Int returns the named int uniform.
func (fr *Fragment) Int(name string) int32 {
	var v int32
	fr.uniform(name, &v)
	return v
}

// Vector2 returns the named vec2 uniform.
func (fr *Fragment) Vector2(name string) math32.Vector2 {
	var v math32.Vector2
	fr.uniform(name, &v)
	return v
}

// Vector3 returns the named vec3 uniform.
func (fr *Fragment) Vector3(name string) math32.Vector3 {
	var v math32.Vector3
	fr.uniform(name, &v)
	return v
}

// Vector4 returns the named vec4 uniform.
func (fr *Fragment) Vector4(name string) math32.Vector4 {
	var v math32.Vector4
	fr.uniform(name, &v)
	return v
}

// Matrix4 returns the named mat4 uniform.
func (fr *Fragment) Matrix4(name string) math32.Matrix4 {
	var v math32.Matrix4
	fr.uniform(name, &v)
	return v
}

// PushFloats decodes the push constants as float32 values.
func (fr *Fragment) PushFloats() []float32 {
	fs := make([]float32, len(fr.Push)/4)
	binary.Decode(fr.Push, binary.LittleEndian, fs)
	return fs
}

func (fr *Fragment) uniform(name string, v any) {
	fd := fr.field(name)
	if fd == nil {
		return
	}
	buf := fr.ex.set.buffer
	if buf == nil {
		return
	}
	binary.Decode(buf.data[fd.Offset:fd.Offset+fd.Type.Bytes()], binary.LittleEndian, v)
}

func (fr *Fragment) field(name string) *gpu.Field {
	if fr.ifc == nil || fr.ex.set == nil {
		fr.ex.dev.validate("program %q: uniform %q read with no descriptor set bound", fr.ex.program.Name, name)
		return nil
	}
	fd := fr.ifc.Field(name)
	if fd == nil {
		fr.ex.dev.validate("program %q: uniform %q not declared", fr.ex.program.Name, name)
	}
	return fd
}

// Texture returns the image bound to the named texture, or nil.
func (fr *Fragment) Texture(name string) *Image {
	fd := fr.field(name)
	if fd == nil {
		return nil
	}
	return fr.ex.texture(fd)
}

// Sample returns the filtered color of the named texture at uv.
func (fr *Fragment) Sample(name string, uv math32.Vector2) math32.Vector4 {
	im := fr.Texture(name)
	if im == nil {
		return math32.Vector4{}
	}
	return im.Sample(uv)
}

// Load returns the texel of the named texture at the pixel of this
// fragment, scaled to the texture size.
func (fr *Fragment) Load(name string) math32.Vector4 {
	im := fr.Texture(name)
	if im == nil {
		return math32.Vector4{}
	}
	x := fr.X * im.Size.X / fr.Size.X
	y := fr.Y * im.Size.Y / fr.Size.Y
	if im.Depth != nil {
		d := im.DepthAt(x, y)
		return math32.Vec4(d, d, d, 1)
	}
	return im.Pixel(x, y)
}
