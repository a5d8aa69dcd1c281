// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"fmt"
	"image"
	"log/slog"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/pyro/gpu"
)

// PassStage is a [Stage] that draws one full-screen pass with a
// program, sampling its inputs as textures.
type PassStage struct {

	// StageName is the unique name of the stage.
	StageName string

	// Program is the program drawn with.
	Program *gpu.Program

	// Values are the uniform values of the program for this stage.
	Values *gpu.Values

	// Scale is the resolution of the output framebuffer relative to
	// the display. A Scale of 0 means the output is set by the owner
	// with [PassStage.SetOutput] at display resolution, and is not
	// recreated on resize.
	Scale float32

	// Inputs are the names of the textures the input framebuffers
	// are bound to, in input order.
	Inputs []string

	// Depth is the name of the texture the scene depth is bound to,
	// or empty if the stage does not read depth.
	Depth string

	// Push is the push constant data, if any.
	Push []byte

	// Records is the number of times the stage has been recorded.
	Records int

	active bool
	chain  *Chain
	output *gpu.Framebuffer
}

// NewPassStage returns a new active stage drawing with the named
// program from the chain's program loader. Unless scale is 0, it
// owns a framebuffer at the chain size times scale.
func NewPassStage(ch *Chain, name, program string, scale float32, inputs ...string) (*PassStage, error) {
	prog, err := ch.Loader.Program(program, ch.Pass)
	if err != nil {
		return nil, err
	}
	vals, err := gpu.NewValues(ch.cx, prog)
	if err != nil {
		return nil, err
	}
	vals.Name = name
	ps := &PassStage{StageName: name, Program: prog, Values: vals, Scale: scale, Inputs: inputs, active: true, chain: ch}
	if scale > 0 {
		fb, err := gpu.NewFramebuffer(ch.cx, name, ch.Pass, ScaleSize(ch.size, scale), OutputUsage)
		if err != nil {
			vals.Release()
			return nil, err
		}
		ps.output = fb
	}
	return ps, nil
}

func (ps *PassStage) Name() string { return ps.StageName }

func (ps *PassStage) Active() bool { return ps.active }

func (ps *PassStage) SetActive(on bool) { ps.active = on }

func (ps *PassStage) Output() *gpu.Framebuffer { return ps.output }

// SetOutput sets the framebuffer of a stage with a Scale of 0,
// which stays owned by the caller.
func (ps *PassStage) SetOutput(fb *gpu.Framebuffer) {
	gpu.Assert(ps.Scale == 0, "PassStage %q: SetOutput on a stage with its own framebuffer", ps.StageName)
	ps.output = fb
}

// OnResize recreates the own framebuffer at size times Scale.
func (ps *PassStage) OnResize(size image.Point) error {
	if ps.Scale == 0 || ps.output == nil {
		return nil
	}
	return ps.output.SetSize(ScaleSize(size, ps.Scale))
}

func (ps *PassStage) Record(rec *gpu.Recorder, inputs []*gpu.Framebuffer, scene *gpu.Framebuffer, slot int) error {
	if !gpu.Assert(len(inputs) == len(ps.Inputs), "PassStage %q: %d inputs for %d input textures", ps.StageName, len(inputs), len(ps.Inputs)) {
		return fmt.Errorf("render.PassStage %q: wrong number of inputs", ps.StageName)
	}
	if ps.output == nil {
		return errors.Log(fmt.Errorf("render.PassStage %q: no output framebuffer", ps.StageName))
	}
	ps.Records++
	var reads []*gpu.Image
	for i, fb := range inputs {
		im := fb.Attachment(0)
		if im.Layout() != gpu.LayoutShaderRead {
			reads = append(reads, im)
		}
		if err := ps.Values.SetSlotTexture(slot, ps.Inputs[i], im); err != nil {
			return err
		}
	}
	if len(reads) > 0 {
		rec.Transition(gpu.LayoutShaderRead, reads...)
	}
	if ps.Depth != "" {
		depth := scene.Depth()
		if depth == nil {
			return errors.Log(fmt.Errorf("render.PassStage %q: scene %q has no depth", ps.StageName, scene.Name))
		}
		if depth.Layout() != gpu.LayoutDepthReadOnly {
			rec.Transition(gpu.LayoutDepthReadOnly, depth)
		}
		if err := ps.Values.SetSlotTexture(slot, ps.Depth, depth); err != nil {
			return err
		}
	}
	if err := rec.BeginPass(ps.output); err != nil {
		return err
	}
	defer rec.EndPass()
	if err := rec.BindProgram(ps.Program); err != nil {
		return err
	}
	if err := rec.BindValues(ps.Values, slot); err != nil {
		return err
	}
	if len(ps.Push) > 0 {
		rec.Push(ps.Push)
	}
	if gpu.Debug {
		slog.Debug("render.PassStage.Record", "stage", ps.StageName, "slot", slot, "output", ps.output.Size)
	}
	return rec.DrawFullscreen()
}

// Release releases the values and the own framebuffer.
func (ps *PassStage) Release() {
	if ps.Values != nil {
		ps.Values.Release()
		ps.Values = nil
	}
	if ps.Scale > 0 && ps.output != nil {
		ps.output.Release()
	}
	ps.output = nil
}

// CombineStage is a [PassStage] with exactly two inputs: the running
// output of the chain, and the result of a sub-chain, which its
// program blends into one. It is added with [Chain.AddSubChain].
type CombineStage struct {
	PassStage
}

// NewCombineStage returns a combining stage at display resolution,
// binding the running output to the input texture and the sub-chain
// result to the other texture.
func NewCombineStage(ch *Chain, name, program, input, other string) (*CombineStage, error) {
	ps, err := NewPassStage(ch, name, program, 1, input, other)
	if err != nil {
		return nil, err
	}
	return &CombineStage{PassStage: *ps}, nil
}
