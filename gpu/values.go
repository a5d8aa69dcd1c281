// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/bits"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/math32"
)

// Value is one named entry of a [Values] cache.
type Value struct {

	// Field is the declaration of the value in the [Interface].
	Field *Field

	// current CPU-side value
	value any

	// bit set of the frame slot buffers not yet synchronized with value
	stale uint64
}

// Stale returns the number of slot buffers that do not yet hold the
// current value.
func (v *Value) Stale() int {
	return bits.OnesCount64(v.stale)
}

// Values is the uniform flush cache of one [Program]: the CPU-side
// values of all declared interface fields, with one GPU-visible
// buffer and descriptor set per frame slot.
//
// Set only updates the CPU side, and marks all slot copies stale.
// [Values.Flush] then writes the stale entries into one slot's buffer,
// lazily, at bind time, so that each change is written exactly once to
// each slot copy, whatever the order in which slots are flushed. This leaves the copies of slots still in use by the
// GPU untouched. Texture changes update all descriptor sets at once.
type Values struct {

	// Name is used in logging.
	Name string

	// Program is the program the values are bound for.
	Program *Program

	// Values has an entry for each interface field, in declaration order.
	Values []*Value

	cx *Context

	// CPU-side std140 image of the uniform buffer
	staging []byte

	// per-slot buffers and descriptor sets
	buffers []DeviceBuffer
	sets    []DescriptorSet

	// images bound on each slot set, indexed by binding
	bound [][]boundImage

	// bit set of the slots with any stale entry
	stale uint64

	// number of buffer writes done, for diagnostics
	writes int
}

// NewValues makes the values for the program, with one buffer and
// descriptor set for each frame slot of the context. All buffers
// start out holding the declared defaults.
func NewValues(cx *Context, prog *Program) (*Values, error) {
	ifc := prog.Interface
	n := cx.FramesInFlight
	if n > MaxFramesInFlight {
		return nil, errors.Log(fmt.Errorf("gpu.NewValues %q: %d frames in flight, more than %d", prog.Name, n, MaxFramesInFlight))
	}
	vs := &Values{Name: prog.Name, Program: prog, cx: cx}
	vs.staging = make([]byte, ifc.Size())
	vs.buffers = make([]DeviceBuffer, n)
	vs.sets = make([]DescriptorSet, n)
	vs.bound = make([][]boundImage, n)
	for i := range vs.bound {
		vs.bound[i] = make([]boundImage, ifc.NumTextures()+1)
	}
	for _, kv := range ifc.Fields.Order {
		vs.Values = append(vs.Values, &Value{Field: kv.Value})
	}
	for i := range n {
		ds, err := cx.Device.NewDescriptorSet(prog.handle)
		if errors.Log(err) != nil {
			vs.Release()
			return nil, err
		}
		vs.sets[i] = ds
		if len(vs.staging) == 0 {
			continue
		}
		buf, err := cx.Device.NewBuffer(len(vs.staging), BufferUniform)
		if errors.Log(err) != nil {
			vs.Release()
			return nil, err
		}
		vs.buffers[i] = buf
		ds.BindBuffer(UniformBinding, buf)
	}
	if err := vs.Reset(); err != nil {
		vs.Release()
		return nil, err
	}
	return vs, nil
}

// Reset restores all declared defaults, writing them to every slot
// buffer, so that nothing is left dirty.
func (vs *Values) Reset() error {
	for _, v := range vs.Values {
		fd := v.Field
		if fd.Type.IsTexture() {
			im, _ := fd.Default.(*Image)
			v.value = im
			if im != nil {
				vs.bindAll(fd.Binding, im)
			}
			continue
		}
		val := fd.Default
		if val == nil {
			val = zeroValue(fd.Type)
		}
		if err := vs.encode(v, val); err != nil {
			return err
		}
		v.value = val
		v.stale = 0
	}
	for _, buf := range vs.buffers {
		if buf == nil {
			continue
		}
		if err := buf.Write(0, vs.staging); errors.Log(err) != nil {
			return err
		}
	}
	vs.stale = 0
	return nil
}

// Value returns the named value entry, or nil if it is not declared.
func (vs *Values) Value(name string) *Value {
	idx, ok := vs.Program.Interface.Fields.IndexByKeyTry(name)
	if !ok {
		return nil
	}
	return vs.Values[idx]
}

// Set sets the CPU-side value of the named field, marking every slot
// copy stale. Setting an undeclared name or a value of the wrong type
// is a caller error. A texture field takes an *[Image], and is
// bound to all descriptor sets immediately.
func (vs *Values) Set(name string, val any) error {
	v := vs.Value(name)
	if !Assert(v != nil, "Values %q: Set of undeclared name %q", vs.Name, name) {
		return fmt.Errorf("gpu.Values.Set %q: undeclared name %q", vs.Name, name)
	}
	fd := v.Field
	if fd.Type.IsTexture() {
		im, ok := val.(*Image)
		if !Assert(ok && im != nil, "Values %q: Set %q: texture value must be non-nil *Image, not %T", vs.Name, name, val) {
			return fmt.Errorf("gpu.Values.Set %q: %q type mismatch", vs.Name, name)
		}
		v.value = im
		vs.bindAll(fd.Binding, im)
		return nil
	}
	if err := vs.encode(v, val); err != nil {
		return err
	}
	v.value = val
	all := uint64(1)<<len(vs.buffers) - 1
	v.stale = all
	vs.stale = all
	return nil
}

func (vs *Values) bindAll(binding int, im *Image) {
	for slot := range vs.sets {
		vs.bind(slot, binding, im)
	}
}

// boundImage is an image bound on a descriptor set, with the handle
// it had, which changes when the image is resized.
type boundImage struct {
	image  *Image
	handle DeviceImage
}

func (vs *Values) bind(slot, binding int, im *Image) {
	if b := vs.bound[slot][binding]; b.image == im && b.handle == im.handle {
		return
	}
	vs.sets[slot].BindImage(binding, im.handle)
	vs.bound[slot][binding] = boundImage{im, im.handle}
}

// SetSlotTexture binds a texture on the descriptor set of one frame
// slot only, for inputs that differ between slots, such as per-slot
// render targets. The sets of other slots, which may be in use by
// the GPU, are not touched. It does nothing if the image is
// already bound on that slot and has not been resized since.
func (vs *Values) SetSlotTexture(slot int, name string, im *Image) error {
	v := vs.Value(name)
	if !Assert(v != nil && v.Field.Type.IsTexture(), "Values %q: SetSlotTexture of non-texture name %q", vs.Name, name) {
		return fmt.Errorf("gpu.Values.SetSlotTexture %q: %q is not a texture", vs.Name, name)
	}
	if !Assert(im != nil, "Values %q: SetSlotTexture %q: nil image", vs.Name, name) {
		return fmt.Errorf("gpu.Values.SetSlotTexture %q: nil image", vs.Name)
	}
	vs.bind(slot, v.Field.Binding, im)
	return nil
}

// SlotTexture returns the image bound for a texture on one slot.
func (vs *Values) SlotTexture(slot int, name string) *Image {
	v := vs.Value(name)
	if v == nil || !v.Field.Type.IsTexture() {
		return nil
	}
	return vs.bound[slot][v.Field.Binding].image
}

// Get returns the last CPU-side value of the named field, which
// may not yet be visible to the GPU. It is nil for undeclared names.
func (vs *Values) Get(name string) any {
	v := vs.Value(name)
	if v == nil {
		return nil
	}
	return v.value
}

// Dirty returns the number of slots whose copy is still stale.
func (vs *Values) Dirty() int {
	return bits.OnesCount64(vs.stale)
}

// IsStale returns whether the copy of the given slot is stale.
func (vs *Values) IsStale(slot int) bool {
	return vs.stale&(1<<slot) != 0
}

// Writes returns the number of entry writes to slot buffers done by Flush.
func (vs *Values) Writes() int {
	return vs.writes
}

// Flush writes all stale entries into the buffer of the given frame
// slot. It does nothing if the copy of this slot is already current.
// Returns true if anything was written.
func (vs *Values) Flush(slot int) bool {
	bit := uint64(1) << slot
	if vs.stale&bit == 0 {
		return false
	}
	buf := vs.buffers[slot]
	for _, v := range vs.Values {
		if v.stale&bit == 0 || v.Field.Type.IsTexture() {
			continue
		}
		fd := v.Field
		off := fd.Offset
		errors.Log(buf.Write(off, vs.staging[off:off+fd.Type.Bytes()]))
		v.stale &^= bit
		vs.writes++
	}
	vs.stale &^= bit
	if Debug {
		slog.Debug("gpu.Values.Flush", "values", vs.Name, "slot", slot, "dirty", vs.Dirty())
	}
	return true
}

// ReadBack reads the named value as stored in the buffer of the given
// slot, returning it with the same Go type that [Values.Set] takes
// for the field type (int32, float32, math32 vectors and matrix).
func (vs *Values) ReadBack(slot int, name string) (any, error) {
	v := vs.Value(name)
	if v == nil {
		return nil, errors.Log(fmt.Errorf("gpu.Values.ReadBack %q: undeclared name %q", vs.Name, name))
	}
	fd := v.Field
	if fd.Type.IsTexture() {
		return v.value, nil
	}
	b := make([]byte, fd.Type.Bytes())
	if err := vs.buffers[slot].Read(fd.Offset, b); errors.Log(err) != nil {
		return nil, err
	}
	val := zeroValue(fd.Type)
	switch x := val.(type) {
	case int32:
		_, err := binary.Decode(b, binary.LittleEndian, &x)
		return x, err
	case float32:
		_, err := binary.Decode(b, binary.LittleEndian, &x)
		return x, err
	case math32.Vector2:
		_, err := binary.Decode(b, binary.LittleEndian, &x)
		return x, err
	case math32.Vector3:
		_, err := binary.Decode(b, binary.LittleEndian, &x)
		return x, err
	case math32.Vector4:
		_, err := binary.Decode(b, binary.LittleEndian, &x)
		return x, err
	case math32.Matrix4:
		_, err := binary.Decode(b, binary.LittleEndian, &x)
		return x, err
	}
	return nil, nil
}

// encode type checks val for the field and writes it into staging.
func (vs *Values) encode(v *Value, val any) error {
	fd := v.Field
	var data any
	switch fd.Type {
	case Int32:
		switch x := val.(type) {
		case int32:
			data = x
		case int:
			data = int32(x)
		case bool:
			var i int32
			if x {
				i = 1
			}
			data = i
		}
	case Float32:
		switch x := val.(type) {
		case float32:
			data = x
		case float64:
			data = float32(x)
		}
	case Float32Vector2:
		if x, ok := val.(math32.Vector2); ok {
			data = x
		}
	case Float32Vector3:
		if x, ok := val.(math32.Vector3); ok {
			data = x
		}
	case Float32Vector4:
		if x, ok := val.(math32.Vector4); ok {
			data = x
		}
	case Float32Matrix4:
		switch x := val.(type) {
		case math32.Matrix4:
			data = x
		case *math32.Matrix4:
			data = *x
		}
	}
	if !Assert(data != nil, "Values %q: Set %q: type %T does not match %s", vs.Name, fd.Name, val, fd.Type) {
		return fmt.Errorf("gpu.Values.Set %q: %q type mismatch", vs.Name, fd.Name)
	}
	_, err := binary.Encode(vs.staging[fd.Offset:fd.Offset+fd.Type.Bytes()], binary.LittleEndian, data)
	return errors.Log(err)
}

func zeroValue(tp Types) any {
	switch tp {
	case Int32:
		return int32(0)
	case Float32:
		return float32(0)
	case Float32Vector2:
		return math32.Vector2{}
	case Float32Vector3:
		return math32.Vector3{}
	case Float32Vector4:
		return math32.Vector4{}
	case Float32Matrix4:
		return math32.Matrix4{}
	}
	return nil
}

// SetInt sets an [Int32] field.
func (vs *Values) SetInt(name string, v int32) error { return vs.Set(name, v) }

// SetFloat sets a [Float32] field.
func (vs *Values) SetFloat(name string, v float32) error { return vs.Set(name, v) }

// SetVector2 sets a [Float32Vector2] field.
func (vs *Values) SetVector2(name string, v math32.Vector2) error { return vs.Set(name, v) }

// SetVector3 sets a [Float32Vector3] field.
func (vs *Values) SetVector3(name string, v math32.Vector3) error { return vs.Set(name, v) }

// SetVector4 sets a [Float32Vector4] field.
func (vs *Values) SetVector4(name string, v math32.Vector4) error { return vs.Set(name, v) }

// SetMatrix4 sets a [Float32Matrix4] field.
func (vs *Values) SetMatrix4(name string, v *math32.Matrix4) error { return vs.Set(name, *v) }

// SetTexture sets a texture field.
func (vs *Values) SetTexture(name string, im *Image) error { return vs.Set(name, im) }

// Texture returns the image bound to a texture field.
func (vs *Values) Texture(name string) *Image {
	im, _ := vs.Get(name).(*Image)
	return im
}

// DescriptorSet returns the descriptor set of the given slot.
func (vs *Values) DescriptorSet(slot int) DescriptorSet {
	return vs.sets[slot]
}

// Release destroys the buffers and descriptor sets.
func (vs *Values) Release() {
	for i, buf := range vs.buffers {
		if buf != nil {
			buf.Release()
			vs.buffers[i] = nil
		}
	}
	for i, ds := range vs.sets {
		if ds != nil {
			ds.Release()
			vs.sets[i] = nil
		}
	}
}
