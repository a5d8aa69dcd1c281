// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"strings"

	"cogentcore.org/core/base/ordmap"
)

// Types are the data types of uniform fields.
type Types int32

const (
	UndefinedType Types = iota
	Int32
	Float32
	Float32Vector2
	Float32Vector3
	Float32Vector4
	Float32Matrix4

	// TextureRGBA32 is a sampled texture, bound separately from
	// the uniform buffer.
	TextureRGBA32

	// TextureDepth32 is a sampled depth texture, which is read in
	// [LayoutDepthReadOnly].
	TextureDepth32
)

var typeNames = [...]string{"Undefined", "Int32", "Float32", "Float32Vector2", "Float32Vector3", "Float32Vector4", "Float32Matrix4", "TextureRGBA32", "TextureDepth32"}

func (tp Types) String() string {
	if tp >= 0 && int(tp) < len(typeNames) {
		return typeNames[tp]
	}
	return fmt.Sprintf("Types(%d)", int32(tp))
}

// Bytes returns the std140 size of the type in bytes.
func (tp Types) Bytes() int {
	switch tp {
	case Int32, Float32:
		return 4
	case Float32Vector2:
		return 8
	case Float32Vector3:
		return 12
	case Float32Vector4:
		return 16
	case Float32Matrix4:
		return 64
	}
	return 0
}

// Align returns the std140 alignment of the type in bytes.
func (tp Types) Align() int {
	switch tp {
	case Int32, Float32:
		return 4
	case Float32Vector2:
		return 8
	}
	return 16
}

// IsTexture returns true for texture types.
func (tp Types) IsTexture() bool {
	return tp == TextureRGBA32 || tp == TextureDepth32
}

// MemSizeAlign returns the size aligned according to align byte increments
// e.g., if align = 16 and size = 12, it returns 16
func MemSizeAlign(size, align int) int {
	if size%align == 0 {
		return size
	}
	nb := size / align
	return (nb + 1) * align
}

// Field is one named field of an [Interface].
type Field struct {
	Name string
	Type Types

	// Offset is the byte offset in the uniform buffer.
	// Textures have no offset.
	Offset int

	// Binding is the descriptor binding. The uniform buffer is
	// binding 0, and each texture has its own binding after that.
	Binding int

	// Default is the initial value.
	Default any
}

// UniformBinding is the descriptor binding of the uniform buffer.
const UniformBinding = 0

// Interface is the declared set of named uniform fields and textures
// of a program. Uniform fields are laid out in declaration order
// with std140 alignment.
type Interface struct {
	Name   string
	Fields *ordmap.Map[string, *Field]

	// size of the uniform buffer in bytes
	size int

	// number of textures
	ntex int
}

// NewInterface returns a new empty interface.
func NewInterface(name string) *Interface {
	return &Interface{Name: name, Fields: ordmap.New[string, *Field]()}
}

// Add declares a new field with its default value, which may be nil
// for the zero value. Fields must be added before any [Values] are made.
func (ifc *Interface) Add(name string, typ Types, def any) *Interface {
	if _, has := ifc.Fields.ValueByKeyTry(name); has {
		Assert(false, "Interface %q: duplicate field %q", ifc.Name, name)
		return ifc
	}
	fd := &Field{Name: name, Type: typ, Default: def}
	if typ.IsTexture() {
		ifc.ntex++
		fd.Binding = UniformBinding + ifc.ntex
	} else {
		fd.Binding = UniformBinding
		fd.Offset = MemSizeAlign(ifc.size, typ.Align())
		ifc.size = fd.Offset + typ.Bytes()
	}
	ifc.Fields.Add(name, fd)
	return ifc
}

// Field returns the named field, or nil if it is not declared.
func (ifc *Interface) Field(name string) *Field {
	fd, _ := ifc.Fields.ValueByKeyTry(name)
	return fd
}

// Size returns the size of the uniform buffer in bytes,
// which is rounded up to 16. It is 0 if there are no uniform fields.
func (ifc *Interface) Size() int {
	return MemSizeAlign(ifc.size, 16)
}

// NumTextures returns the number of texture fields.
func (ifc *Interface) NumTextures() int {
	return ifc.ntex
}

// StringDoc returns a description of the layout.
func (ifc *Interface) StringDoc() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interface %s: %d bytes\n", ifc.Name, ifc.Size())
	for _, kv := range ifc.Fields.Order {
		fd := kv.Value
		if fd.Type.IsTexture() {
			fmt.Fprintf(&b, "\t%s\t%s\tbinding: %d\n", fd.Name, fd.Type, fd.Binding)
		} else {
			fmt.Fprintf(&b, "\t%s\t%s\toffset: %d\n", fd.Name, fd.Type, fd.Offset)
		}
	}
	return b.String()
}
