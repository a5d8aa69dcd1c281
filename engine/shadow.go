// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"image"
	"log/slog"

	"cogentcore.org/pyro/gpu"
)

// lightState is what the renderer keeps for a light across frames:
// the values of its lighting program, and its shadow map with the
// values of the programs drawing into it.
type lightState struct {
	values  *gpu.Values
	shadow  *gpu.Framebuffer
	casters map[*gpu.Program]*gpu.Values

	// rendered is set once the shadow map holds a valid render
	rendered bool

	// renders is the number of times the shadow map was rendered
	renders int
}

// Release implements [gpu.Releaser], for retirement.
func (ls *lightState) Release() {
	if ls.values != nil {
		ls.values.Release()
	}
	if ls.shadow != nil {
		ls.shadow.Release()
	}
	for _, vs := range ls.casters {
		vs.Release()
	}
}

// retired is a resource that is no longer used, released once no
// frame in flight can still reference it.
type retired struct {
	frame int
	res   gpu.Releaser
}

// retire schedules res for release after the frames in flight.
func (r *Renderer) retire(res gpu.Releaser) {
	r.retired = append(r.retired, retired{r.frame, res})
}

// releaseRetired releases the resources retired at least
// FramesInFlight frames ago, or all of them.
func (r *Renderer) releaseRetired(all bool) {
	n := r.cx.FramesInFlight
	keep := r.retired[:0]
	for _, rt := range r.retired {
		if all || r.frame-rt.frame >= n {
			rt.res.Release()
			continue
		}
		keep = append(keep, rt)
	}
	clear(r.retired[len(keep):])
	r.retired = keep
}

// lightState returns the state of the light, making it the first
// time, or when the type of the light changed.
func (r *Renderer) lightState(lt *Light) (*lightState, error) {
	name := lt.Type.Program()
	ls, ok := r.lights[lt]
	if ok && ls.values.Program.Name == name {
		return ls, nil
	}
	if ok {
		r.retire(ls)
		delete(r.lights, lt)
	}
	prog, err := r.loader.Program(name, r.passes.lighting)
	if err != nil {
		return nil, err
	}
	vs, err := gpu.NewValues(r.cx, prog)
	if err != nil {
		return nil, err
	}
	vs.Name = lt.Name
	ls = &lightState{values: vs, casters: map[*gpu.Program]*gpu.Values{}}
	r.lights[lt] = ls
	return ls, nil
}

// pruneLights retires the state of lights no longer in the scene.
func (r *Renderer) pruneLights(lights []*Light) {
	if len(r.lights) == len(lights) {
		return
	}
	in := make(map[*Light]bool, len(lights))
	for _, lt := range lights {
		in[lt] = true
	}
	for lt, ls := range r.lights {
		if !in[lt] {
			slog.Debug("engine.Renderer: light removed", "light", lt)
			r.retire(ls)
			delete(r.lights, lt)
		}
	}
}

// shadowPass renders the shadow maps of the lights that need it.
// Dynamic lights are rendered every frame. Static lights are
// rendered once, and again when the number of static shadow casting
// lights changes or the light is marked dirty.
func (r *Renderer) shadowPass(rec *gpu.Recorder, lights []*Light, ds []Drawable, slot int) error {
	static := 0
	for _, lt := range lights {
		if lt.Shadows && lt.Static {
			static++
		}
	}
	changed := static != r.staticShadows
	r.staticShadows = static
	for _, lt := range lights {
		if !lt.Shadows {
			continue
		}
		ls, err := r.lightState(lt)
		if err != nil {
			return err
		}
		if lt.Static && ls.rendered && !changed && !lt.dirty {
			continue
		}
		if err := r.renderShadow(rec, lt, ls, ds, slot); err != nil {
			return fmt.Errorf("engine: shadow map of %v: %w", lt, err)
		}
	}
	return nil
}

// renderShadow draws the shadow casting objects into the shadow map
// of the light, with the light view projection.
func (r *Renderer) renderShadow(rec *gpu.Recorder, lt *Light, ls *lightState, ds []Drawable, slot int) error {
	size := image.Point{r.Settings.ShadowSize, r.Settings.ShadowSize}
	if ls.shadow != nil && ls.shadow.Size != size {
		r.retire(ls.shadow)
		ls.shadow = nil
		ls.rendered = false
	}
	if ls.shadow == nil {
		fb, err := gpu.NewFramebuffer(r.cx, "shadow."+lt.Name, r.passes.shadow, size, gpu.UsageSampled)
		if err != nil {
			return err
		}
		ls.shadow = fb
	}
	if err := rec.BeginPass(ls.shadow); err != nil {
		return err
	}
	defer rec.EndPass()
	var bound *gpu.Program
	for _, d := range ds {
		name := d.ShadowProgram()
		if name == "" {
			continue
		}
		prog, err := r.loader.Program(name, r.passes.shadow)
		if err != nil {
			return err
		}
		if prog != bound {
			vs, ok := ls.casters[prog]
			if !ok {
				if vs, err = gpu.NewValues(r.cx, prog); err != nil {
					return err
				}
				ls.casters[prog] = vs
			}
			if err := setIf(vs, ViewProjectionName, lt.ViewProjection); err != nil {
				return err
			}
			if err := rec.BindProgram(prog); err != nil {
				return err
			}
			if err := rec.BindValues(vs, slot); err != nil {
				return err
			}
			bound = prog
		}
		if err := d.Record(rec); err != nil {
			return err
		}
	}
	lt.dirty = false
	ls.rendered = true
	ls.renders++
	return nil
}
