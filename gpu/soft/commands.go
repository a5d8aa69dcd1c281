// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"image"
	"sync"

	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
	"golang.org/x/image/draw"
)

// command is one recorded command, run by the executor.
type command func(ex *executor)

// CommandBuffer records commands as functions that are run
// when the submission executes.
type CommandBuffer struct {
	dev *Device

	mu      sync.Mutex
	cmds    []command
	pending bool
}

func (cb *CommandBuffer) add(c command) {
	cb.cmds = append(cb.cmds, c)
}

// checkIdle records a validation error if the buffer is changed
// while a submission of it has not yet executed.
func (cb *CommandBuffer) checkIdle(op string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.pending {
		cb.dev.validate("command buffer %s while pending execution", op)
	}
}

func (cb *CommandBuffer) submitted() {
	cb.mu.Lock()
	if cb.pending {
		cb.dev.validate("command buffer submitted while pending execution")
	}
	cb.pending = true
	cb.mu.Unlock()
}

func (cb *CommandBuffer) Begin() error {
	cb.checkIdle("begin")
	cb.cmds = nil
	return nil
}

func (cb *CommandBuffer) End() error {
	return nil
}

func (cb *CommandBuffer) Reset() error {
	cb.checkIdle("reset")
	cb.cmds = nil
	return nil
}

func (cb *CommandBuffer) Release() {
	cb.cmds = nil
}

func (cb *CommandBuffer) Barrier(bs []gpu.Barrier) {
	bs = append([]gpu.Barrier(nil), bs...)
	cb.add(func(ex *executor) {
		for _, b := range bs {
			im := b.Image.(*Image)
			if b.Old != gpu.LayoutUndefined && im.layout != b.Old {
				ex.dev.validate("barrier %s on %q: image is in %s", b.String(), im.Name, im.layout)
			}
			im.layout = b.New
		}
		ex.dev.count(func(st *Stats) { st.Barriers++ })
	})
}

func (cb *CommandBuffer) BeginPass(rp gpu.DeviceRenderPass, fb gpu.DeviceFramebuffer, size image.Point, clear []gpu.ClearValue) {
	srp := rp.(*RenderPass)
	sfb := fb.(*Framebuffer)
	clear = append([]gpu.ClearValue(nil), clear...)
	cb.add(func(ex *executor) {
		for i, im := range sfb.Images {
			at := srp.Attachments[i]
			if im.layout != at.Layout {
				ex.dev.validate("begin pass: attachment %q is in %s, not %s", im.Name, im.layout, at.Layout)
			}
			if at.Load != gpu.LoadClear || i >= len(clear) {
				continue
			}
			cv := clear[i]
			if im.Depth != nil {
				for j := range im.Depth {
					im.Depth[j] = cv.Depth
				}
				continue
			}
			c := math32.Vec4(cv.Color[0], cv.Color[1], cv.Color[2], cv.Color[3])
			for j := range im.Pix {
				im.Pix[j] = c
			}
		}
		ex.pass = sfb
		ex.dev.count(func(st *Stats) { st.Passes++ })
	})
}

func (cb *CommandBuffer) EndPass() {
	cb.add(func(ex *executor) {
		ex.pass = nil
		ex.program = nil
		ex.set = nil
	})
}

func (cb *CommandBuffer) BindProgram(p gpu.DeviceProgram) {
	pr := p.(*Program)
	cb.add(func(ex *executor) {
		ex.program = pr
		ex.set = nil
		ex.push = nil
	})
}

func (cb *CommandBuffer) BindDescriptors(p gpu.DeviceProgram, ds gpu.DescriptorSet) {
	sds := ds.(*DescriptorSet)
	cb.add(func(ex *executor) {
		ex.set = sds
	})
}

func (cb *CommandBuffer) PushConstants(p gpu.DeviceProgram, data []byte) {
	data = append([]byte(nil), data...)
	cb.add(func(ex *executor) {
		ex.push = data
	})
}

func (cb *CommandBuffer) SetVertexBuffer(buf gpu.DeviceBuffer) {
	cb.add(func(ex *executor) {})
}

func (cb *CommandBuffer) Draw(vertices, instances int) {
	cb.add(func(ex *executor) {
		ex.draw(instances)
	})
}

func (cb *CommandBuffer) Blit(src gpu.DeviceImage, srcSize image.Point, dst gpu.DeviceImage, dstSize image.Point, filter gpu.Filter) {
	si := src.(*Image)
	di := dst.(*Image)
	cb.add(func(ex *executor) {
		if si.layout != gpu.LayoutTransferSrc {
			ex.dev.validate("blit: source %q is in %s", si.Name, si.layout)
		}
		if di.layout != gpu.LayoutTransferDst {
			ex.dev.validate("blit: destination %q is in %s", di.Name, di.layout)
		}
		var sc draw.Scaler = draw.BiLinear
		if filter == gpu.FilterNearest {
			sc = draw.NearestNeighbor
		}
		// scale in the source format, then convert
		sp := si
		if si.Size != di.Size {
			sp = newImage(si.Name, si.Format, di.Size)
			sc.Scale(sp, sp.Bounds(), si, si.Bounds(), draw.Src, nil)
		}
		clamp := di.scale() < sp.scale()
		for i, c := range sp.Pix {
			if clamp {
				c = math32.Vec4(math32.Clamp(c.X, 0, 1), math32.Clamp(c.Y, 0, 1), math32.Clamp(c.Z, 0, 1), math32.Clamp(c.W, 0, 1))
			}
			di.Pix[i] = c
		}
		ex.dev.count(func(st *Stats) { st.Blits++ })
	})
}

func (cb *CommandBuffer) CopyToBuffer(src gpu.DeviceImage, size image.Point, dst gpu.DeviceBuffer) {
	si := src.(*Image)
	buf := dst.(*Buffer)
	cb.add(func(ex *executor) {
		if si.layout != gpu.LayoutTransferSrc {
			ex.dev.validate("copy: source %q is in %s", si.Name, si.layout)
		}
		buf.mu.Lock()
		defer buf.mu.Unlock()
		if len(buf.data) < len(si.Pix)*4 {
			ex.dev.validate("copy: buffer size %d too small for %q", len(buf.data), si.Name)
			return
		}
		si.copyRGBA(buf.data)
	})
}

// execute runs the recorded commands.
func (cb *CommandBuffer) execute() {
	ex := &executor{dev: cb.dev}
	for _, c := range cb.cmds {
		c(ex)
	}
	cb.mu.Lock()
	cb.pending = false
	cb.mu.Unlock()
}

// executor is the state of command execution.
type executor struct {
	dev     *Device
	pass    *Framebuffer
	program *Program
	set     *DescriptorSet
	push    []byte
}

// texture returns the image bound for a texture field,
// checking that it is in a layout that can be sampled.
func (ex *executor) texture(fd *gpu.Field) *Image {
	im := ex.set.images[fd.Binding]
	if im == nil {
		ex.dev.validate("program %q: texture %q not bound", ex.program.Name, fd.Name)
		return nil
	}
	switch im.layout {
	case gpu.LayoutShaderRead, gpu.LayoutDepthReadOnly, gpu.LayoutGeneral:
	default:
		ex.dev.validate("program %q: texture %q sampled in %s", ex.program.Name, im.Name, im.layout)
	}
	return im
}

func (ex *executor) draw(instances int) {
	ex.dev.count(func(st *Stats) { st.Draws++ })
	pr := ex.program
	if pr == nil || ex.pass == nil || pr.Kernel == nil {
		return
	}
	colors := ex.pass.colors()
	depth := ex.pass.depth()
	size := ex.pass.Size
	if pr.Interface != nil && pr.Interface.NumTextures() > 0 && ex.set != nil {
		for _, kv := range pr.Interface.Fields.Order {
			if kv.Value.Type.IsTexture() {
				ex.texture(kv.Value)
			}
		}
	}
	fr := &Fragment{Size: size, Push: ex.push, ex: ex, ifc: pr.Interface, Out: make([]math32.Vector4, len(colors))}
	for inst := range max(instances, 1) {
		fr.Instance = inst
		for y := range size.Y {
			for x := range size.X {
				i := y*size.X + x
				fr.X, fr.Y = x, y
				fr.UV = math32.Vec2((float32(x)+0.5)/float32(size.X), (float32(y)+0.5)/float32(size.Y))
				fr.Discard = false
				for c, im := range colors {
					if pr.Blend == gpu.BlendNone {
						fr.Out[c] = im.Pix[i]
					} else {
						fr.Out[c] = math32.Vector4{}
					}
				}
				if depth != nil {
					fr.Depth = depth.Depth[i]
				}
				cur := fr.Depth
				pr.Kernel(fr)
				if fr.Discard {
					continue
				}
				if pr.Depth && depth != nil {
					if fr.Depth > cur {
						continue
					}
					if !pr.DepthReadOnly {
						depth.Depth[i] = fr.Depth
					}
				}
				for c, im := range colors {
					im.Pix[i] = blend(pr.Blend, fr.Out[c], im.Pix[i])
				}
			}
		}
	}
}

func blend(mode gpu.BlendMode, src, dst math32.Vector4) math32.Vector4 {
	switch mode {
	case gpu.BlendAdd:
		return dst.Add(src)
	case gpu.BlendAlpha:
		a := src.W
		c := src.MulScalar(a).Add(dst.MulScalar(1 - a))
		c.W = a + dst.W*(1-a)
		return c
	}
	return src
}
