// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"fmt"
	"image"
	"log/slog"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/base/ordmap"
	"cogentcore.org/pyro/gpu"
)

// PassThroughName is the name of the pass-through stage of a [Chain].
const PassThroughName = "passthrough"

// Chain is an ordered list of [Stage]s. [Chain.Run] records the
// active stages in order, each reading the output of the last one,
// starting from the scene, and guarantees that the final output is
// at display resolution, by adding a pass-through stage if no stage
// ran or if the last output has another size.
type Chain struct {

	// Name is used in logging.
	Name string

	// Stages are the stages in order, by name.
	Stages *ordmap.Map[string, Stage]

	// Loader yields the programs of the stages.
	Loader gpu.ProgramLoader

	// Pass is the render pass all stages render with.
	Pass *gpu.RenderPass

	cx   *gpu.Context
	size image.Point

	// sub-chains, by the name of the stage that combines them
	subs map[string]*Chain

	// only the top chain has a pass-through stage and owns the pass
	passThrough *PassStage

	// output of the last Run
	output *gpu.Framebuffer
}

// NewChain returns an empty chain at the given display size,
// with its render pass and pass-through stage.
func NewChain(cx *gpu.Context, loader gpu.ProgramLoader, size image.Point) (*Chain, error) {
	rp, err := NewRenderPass(cx)
	if err != nil {
		return nil, err
	}
	ch := &Chain{Name: "chain", Stages: ordmap.New[string, Stage](), Loader: loader, Pass: rp, cx: cx, size: size, subs: map[string]*Chain{}}
	pt, err := NewPassThrough(ch)
	if err != nil {
		rp.Release()
		return nil, err
	}
	ch.passThrough = pt
	return ch, nil
}

// NewSubChain returns an empty chain sharing the display size,
// program loader and render pass of this chain, for use with
// [Chain.AddSubChain].
func (ch *Chain) NewSubChain(name string) *Chain {
	return &Chain{Name: name, Stages: ordmap.New[string, Stage](), Loader: ch.Loader, Pass: ch.Pass, cx: ch.cx, size: ch.size, subs: map[string]*Chain{}}
}

// Size returns the display size.
func (ch *Chain) Size() image.Point {
	return ch.size
}

// Add appends stages to the chain. Stage names must be unique.
func (ch *Chain) Add(sts ...Stage) error {
	for _, st := range sts {
		if ch.Stage(st.Name()) != nil {
			return errors.Log(fmt.Errorf("render.Chain %q: duplicate stage %q", ch.Name, st.Name()))
		}
		ch.Stages.Add(st.Name(), st)
	}
	return nil
}

// AddSubChain appends a stage that combines the running output of
// the chain with the result of the sub-chain, which is run on the
// running output first. The combine stage is recorded with the two
// inputs, and is skipped along with the sub-chain when it is inactive,
// or when no stage of the sub-chain is active.
func (ch *Chain) AddSubChain(sub *Chain, combine Stage) error {
	if err := ch.Add(combine); err != nil {
		return err
	}
	ch.subs[combine.Name()] = sub
	return nil
}

// Stage returns the named stage of this chain or any sub-chain, or nil.
func (ch *Chain) Stage(name string) Stage {
	if st, ok := ch.Stages.ValueByKeyTry(name); ok {
		return st
	}
	if ch.passThrough != nil && name == PassThroughName {
		return ch.passThrough
	}
	for _, sub := range ch.subs {
		if st := sub.Stage(name); st != nil {
			return st
		}
	}
	return nil
}

// SetActive turns the named stage on or off. It returns false
// if there is no such stage.
func (ch *Chain) SetActive(name string, on bool) bool {
	st := ch.Stage(name)
	if st == nil {
		slog.Error("render.Chain.SetActive: no such stage", "chain", ch.Name, "stage", name)
		return false
	}
	st.SetActive(on)
	return true
}

// PassThrough returns the pass-through stage.
func (ch *Chain) PassThrough() *PassStage {
	return ch.passThrough
}

// Output returns the final output of the last [Chain.Run].
func (ch *Chain) Output() *gpu.Framebuffer {
	return ch.output
}

// Run records all active stages on rec for the frame slot, starting
// from the scene framebuffer, and returns the final output, which is
// always at display resolution.
func (ch *Chain) Run(rec *gpu.Recorder, scene *gpu.Framebuffer, slot int) (*gpu.Framebuffer, error) {
	out, ran, err := ch.run(rec, scene, scene, slot)
	if err != nil {
		return nil, err
	}
	if ran == 0 || out.Size != ch.size {
		pt := ch.passThrough
		if err := pt.Record(rec, []*gpu.Framebuffer{out}, scene, slot); err != nil {
			return nil, err
		}
		out = pt.Output()
	}
	ch.output = out
	return out, nil
}

// run records the active stages starting from input, returning
// the last output and the number of stages recorded.
func (ch *Chain) run(rec *gpu.Recorder, input, scene *gpu.Framebuffer, slot int) (*gpu.Framebuffer, int, error) {
	last := input
	ran := 0
	for _, kv := range ch.Stages.Order {
		st := kv.Value
		if !st.Active() {
			continue
		}
		inputs := []*gpu.Framebuffer{last}
		if sub, ok := ch.subs[kv.Key]; ok {
			res, n, err := sub.run(rec, last, scene, slot)
			if err != nil {
				return nil, ran, err
			}
			if n == 0 {
				continue
			}
			ran += n
			inputs = append(inputs, res)
		}
		if err := st.Record(rec, inputs, scene, slot); err != nil {
			return nil, ran, fmt.Errorf("render.Chain %q: stage %q: %w", ch.Name, kv.Key, err)
		}
		last = st.Output()
		ran++
	}
	return last, ran, nil
}

// Resize notifies all stages of a new display size, so that stages
// with their own framebuffer recreate it at the new size times their
// scale. It must only be called when no frame using the stages is
// still in flight.
func (ch *Chain) Resize(size image.Point) error {
	ch.size = size
	for _, kv := range ch.Stages.Order {
		if err := kv.Value.OnResize(size); err != nil {
			return err
		}
	}
	for _, sub := range ch.subs {
		if err := sub.Resize(size); err != nil {
			return err
		}
	}
	if ch.passThrough != nil {
		if err := ch.passThrough.OnResize(size); err != nil {
			return err
		}
		slog.Info("render.Chain: resized", "chain", ch.Name, "size", size)
	}
	ch.output = nil
	return nil
}

// Release releases all stages, and the render pass if this is
// not a sub-chain.
func (ch *Chain) Release() {
	for _, kv := range ch.Stages.Order {
		kv.Value.Release()
	}
	for _, sub := range ch.subs {
		sub.Release()
	}
	if ch.passThrough != nil {
		ch.passThrough.Release()
		ch.passThrough = nil
		ch.Pass.Release()
	}
	ch.Stages = ordmap.New[string, Stage]()
	ch.subs = map[string]*Chain{}
	ch.output = nil
}
