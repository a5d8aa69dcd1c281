// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"cmp"
	"fmt"
	"image"
	"log/slog"
	"maps"
	"slices"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/render"
	"cogentcore.org/pyro/settings"
)

// Renderer draws the frames of a [Scene]. Each frame is recorded into
// the recorders of the next slot of a [gpu.FrameRing], in a fixed
// order: shadow maps, G-buffer, lighting, forward objects,
// post-processing and overlay. It is then submitted and, with a
// surface, presented. A Renderer must only be used from one goroutine.
type Renderer struct {

	// Settings are the current settings, as last applied.
	Settings settings.Settings

	cx      *gpu.Context
	surface gpu.Surface
	scene   Scene
	loader  gpu.ProgramLoader
	camera  Camera

	ring   *gpu.FrameRing
	chain  *render.Chain
	passes *passes

	// values of the programs of drawables, by program
	values map[*gpu.Program]*gpu.Values

	lights   map[*Light]*lightState
	unlit    *gpu.Values
	noShadow *gpu.Image

	// overlay framebuffers, by final image
	overlays map[*gpu.Image]*gpu.Framebuffer

	retired []retired

	// number of static shadow casting lights at the last shadow pass
	staticShadows int

	windowSize image.Point
	stale      bool
	frame      int
	final      *gpu.Framebuffer
	stats      Stats
}

// NewRenderer returns a renderer of the scene on the surface, or
// headless for a nil surface, at the size of the settings. Programs
// are loaded from loader, which must have the built-in programs
// registered with [AddPrograms]. A nil st uses the default settings.
func NewRenderer(cx *gpu.Context, surface gpu.Surface, sc Scene, loader gpu.ProgramLoader, st *settings.Settings) (*Renderer, error) {
	if st == nil {
		st = settings.New()
	}
	r := &Renderer{Settings: *st, cx: cx, surface: surface, scene: sc, loader: loader,
		values: map[*gpu.Program]*gpu.Values{}, lights: map[*Light]*lightState{}, overlays: map[*gpu.Image]*gpu.Framebuffer{}}
	r.Settings.Stages = maps.Clone(st.Stages)
	size := image.Point{st.Width, st.Height}
	if surface != nil {
		size = surface.Size()
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Log(fmt.Errorf("engine.NewRenderer: invalid size %v", size))
	}
	r.windowSize = size
	fail := func(err error) (*Renderer, error) {
		r.Release()
		return nil, err
	}
	var err error
	if r.passes, err = newPasses(cx); err != nil {
		return fail(err)
	}
	if r.noShadow, err = gpu.NewImage(cx, &gpu.ImageDesc{Name: "noshadow", Size: image.Point{1, 1}, Format: gpu.FormatDepth32, Usage: gpu.UsageSampled | gpu.UsageDepthAttachment}); err != nil {
		return fail(err)
	}
	prog, err := loader.Program(UnlitProgram, r.passes.lighting)
	if err != nil {
		return fail(err)
	}
	if r.unlit, err = gpu.NewValues(cx, prog); err != nil {
		return fail(err)
	}
	if r.chain, err = render.NewChain(cx, loader, size); err != nil {
		return fail(err)
	}
	if err := r.addStages(); err != nil {
		return fail(err)
	}
	if r.ring, err = gpu.NewFrameRing(cx, size, r.makeTargets); err != nil {
		return fail(err)
	}
	r.ApplySettings(st)
	slog.Info("engine.Renderer: created", "size", size, "frames", cx.FramesInFlight, "headless", surface == nil)
	return r, nil
}

// addStages adds the post-processing stages: fog, bloom, tonemap.
func (r *Renderer) addStages() error {
	fog, err := render.NewFog(r.chain)
	if err != nil {
		return err
	}
	if err := r.chain.Add(fog); err != nil {
		fog.Release()
		return err
	}
	sub, bloom, err := render.NewBloom(r.chain, r.Settings.BloomScale, r.Settings.BloomThreshold)
	if err != nil {
		return err
	}
	if err := r.chain.AddSubChain(sub, bloom); err != nil {
		sub.Release()
		bloom.Release()
		return err
	}
	tm, err := render.NewTonemap(r.chain)
	if err != nil {
		return err
	}
	if err := r.chain.Add(tm); err != nil {
		tm.Release()
		return err
	}
	return nil
}

// Draw records, submits and presents the next frame. Frames are
// skipped while the window is minimized, and when the surface is
// stale, in which case the frame resources are recreated before the
// next frame. Drawing without a camera is a fatal error.
func (r *Renderer) Draw() error {
	_, err := r.draw(false)
	return err
}

// draw draws a frame, also copying the final image into the readback
// buffer of the slot if readback is set. It returns nil for a
// skipped frame.
func (r *Renderer) draw(readback bool) (*gpu.FrameSlot, error) {
	if r.windowSize.X <= 0 || r.windowSize.Y <= 0 {
		r.stats.Skipped++
		return nil, nil
	}
	if r.stale {
		if err := r.recreate(); err != nil {
			return nil, err
		}
	}
	cam := r.Camera()
	if cam == nil {
		gpu.IfPanic(ErrNoCamera)
	}
	sl, err := r.ring.Acquire()
	gpu.IfPanic(err)
	r.frame++
	r.releaseRetired(false)
	if err := r.record(sl, cam, readback); err != nil {
		errors.Log(sl.Abort(r.cx.Device.Queue()))
		return nil, err
	}
	skipped, err := r.submit(sl)
	if err != nil {
		return nil, err
	}
	r.stats.Frames++
	if skipped {
		return nil, nil
	}
	return sl, nil
}

// record records all stages of the frame into the slot recorders.
func (r *Renderer) record(sl *gpu.FrameSlot, cam Camera, readback bool) error {
	if err := sl.Begin(); err != nil {
		return err
	}
	tg := targetsOf(sl)
	lights := r.scene.Lights()
	ds := r.scene.Drawables()

	if r.Settings.Shadows {
		if err := r.shadowPass(sl.Shadow, lights, ds, sl.Index); err != nil {
			return err
		}
	}

	rec := sl.Primary
	if err := r.geometryPass(rec, tg, cam, ds, sl.Index); err != nil {
		return err
	}
	rec.Transition(gpu.LayoutShaderRead, tg.gbuffer.Attachment(0), tg.gbuffer.Attachment(1))
	rec.Transition(gpu.LayoutDepthReadOnly, tg.gbuffer.Depth())
	if err := r.lightingPass(rec, tg, cam, lights, sl.Index); err != nil {
		return err
	}
	// light accumulation before forward blending
	rec.Transition(gpu.LayoutColorAttachment, tg.lighting.Attachment(0))
	if err := r.forwardPass(rec, tg, cam, ds, sl.Index); err != nil {
		return err
	}

	if err := r.setStageValue(render.FogName, "Near", cam.Near()); err != nil {
		return err
	}
	if err := r.setStageValue(render.FogName, "Far", cam.Far()); err != nil {
		return err
	}
	final, err := r.chain.Run(sl.Chain, tg.forward, sl.Index)
	if err != nil {
		return err
	}
	r.final = final

	if r.Settings.Overlay {
		if err := r.overlayPass(sl.Overlay, final, sl.Index); err != nil {
			return err
		}
	}
	if readback {
		if err := sl.Overlay.Blit(final.Attachment(0), tg.output, gpu.FilterNearest); err != nil {
			return err
		}
		if err := sl.Overlay.CopyToBuffer(tg.output, tg.readback); err != nil {
			return err
		}
	}
	for _, rc := range []*gpu.Recorder{sl.Shadow, sl.Primary, sl.Chain, sl.Overlay} {
		if err := rc.End(); err != nil {
			return err
		}
	}
	return nil
}

// cameraValues returns the function setting the camera values of
// the programs of drawables.
func cameraValues(cam Camera) func(vs *gpu.Values) error {
	vp := cam.ViewProjection()
	pos := cam.Position()
	return func(vs *gpu.Values) error {
		if err := setIf(vs, ViewProjectionName, vp); err != nil {
			return err
		}
		return setIf(vs, CameraPositionName, pos)
	}
}

// drawAll draws the objects in order with their programs built for
// rp, setting the values of each program with set before binding it.
func (r *Renderer) drawAll(rec *gpu.Recorder, rp *gpu.RenderPass, ds []Drawable, set func(vs *gpu.Values) error, slot int) error {
	var bound *gpu.Program
	for _, d := range ds {
		prog, err := r.loader.Program(d.Program(), rp)
		if err != nil {
			return err
		}
		if prog != bound {
			vs, err := r.programValues(prog)
			if err != nil {
				return err
			}
			if err := set(vs); err != nil {
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
			return fmt.Errorf("engine: drawing %v: %w", d, err)
		}
	}
	return nil
}

// programValues returns the values shared by the drawables of the program.
func (r *Renderer) programValues(prog *gpu.Program) (*gpu.Values, error) {
	if vs, ok := r.values[prog]; ok {
		return vs, nil
	}
	vs, err := gpu.NewValues(r.cx, prog)
	if err != nil {
		return nil, err
	}
	r.values[prog] = vs
	return vs, nil
}

// geometryPass draws the visible opaque objects into the G-buffer.
func (r *Renderer) geometryPass(rec *gpu.Recorder, tg frameTargets, cam Camera, ds []Drawable, slot int) error {
	var opaque []Drawable
	for _, d := range ds {
		if d.Visible() && !d.Forward() {
			opaque = append(opaque, d)
		}
	}
	if err := rec.BeginPass(tg.gbuffer); err != nil {
		return err
	}
	defer rec.EndPass()
	return r.drawAll(rec, r.passes.gbuffer, opaque, cameraValues(cam), slot)
}

// lightingPass accumulates the contribution of each light from the
// G-buffer into the lighting buffer, by type: directional, point, then
// spot lights. In unlit mode, the albedo is copied instead.
func (r *Renderer) lightingPass(rec *gpu.Recorder, tg frameTargets, cam Camera, lights []*Light, slot int) error {
	if r.noShadow.Layout() != gpu.LayoutDepthReadOnly {
		rec.Transition(gpu.LayoutDepthReadOnly, r.noShadow)
	}
	if r.Settings.Unlit {
		if err := r.unlit.SetSlotTexture(slot, "Albedo", tg.gbuffer.Attachment(0)); err != nil {
			return err
		}
		if err := rec.BeginPass(tg.lighting); err != nil {
			return err
		}
		defer rec.EndPass()
		if err := rec.BindProgram(r.unlit.Program); err != nil {
			return err
		}
		if err := rec.BindValues(r.unlit, slot); err != nil {
			return err
		}
		return rec.DrawFullscreen()
	}

	if err := rec.BeginPass(tg.lighting); err != nil {
		return err
	}
	defer rec.EndPass()
	for _, tp := range []LightTypes{DirectionalLight, PointLight, SpotLight} {
		for _, lt := range lights {
			if lt.Type != tp {
				continue
			}
			ls, err := r.lightState(lt)
			if err != nil {
				return err
			}
			if err := r.setLightValues(ls, lt, cam, tg, slot); err != nil {
				return fmt.Errorf("engine: lighting of %v: %w", lt, err)
			}
			if err := rec.BindProgram(ls.values.Program); err != nil {
				return err
			}
			if err := rec.BindValues(ls.values, slot); err != nil {
				return err
			}
			if err := rec.DrawFullscreen(); err != nil {
				return err
			}
		}
	}
	r.pruneLights(lights)
	return nil
}

// setLightValues sets the values of the lighting program of the light,
// and binds the G-buffer and shadow map on the slot set.
func (r *Renderer) setLightValues(ls *lightState, lt *Light, cam Camera, tg frameTargets, slot int) error {
	vs := ls.values
	shadowed := r.Settings.Shadows && lt.Shadows && ls.rendered
	sm := r.noShadow
	if shadowed {
		sm = ls.shadow.Depth()
	}
	vals := []struct {
		name string
		val  any
	}{
		{"InverseViewProjection", cam.InverseViewProjection()},
		{"LightViewProjection", lt.ViewProjection},
		{"LightColor", lt.Color},
		{"LightPosition", lt.Position},
		{"LightDirection", lt.Direction},
		{"Range", lt.Range},
		{"CosCutoff", lt.CosCutoff()},
		{"Shadowed", shadowed},
	}
	for _, nv := range vals {
		if err := setIf(vs, nv.name, nv.val); err != nil {
			return err
		}
	}
	texs := []struct {
		name string
		im   *gpu.Image
	}{
		{"Albedo", tg.gbuffer.Attachment(0)},
		{"Normal", tg.gbuffer.Attachment(1)},
		{"Depth", tg.gbuffer.Depth()},
		{"ShadowMap", sm},
	}
	for _, nt := range texs {
		if err := vs.SetSlotTexture(slot, nt.name, nt.im); err != nil {
			return err
		}
	}
	return nil
}

// forwardPass draws the visible forward objects over the lit scene,
// testing against the G-buffer depth, in increasing priority.
func (r *Renderer) forwardPass(rec *gpu.Recorder, tg frameTargets, cam Camera, ds []Drawable, slot int) error {
	var fwd []Drawable
	for _, d := range ds {
		if d.Visible() && d.Forward() {
			fwd = append(fwd, d)
		}
	}
	slices.SortStableFunc(fwd, func(a, b Drawable) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
	if err := rec.BeginPass(tg.forward); err != nil {
		return err
	}
	defer rec.EndPass()
	return r.drawAll(rec, r.passes.forward, fwd, cameraValues(cam), slot)
}

// overlayPass draws the visible overlay objects over the final image.
func (r *Renderer) overlayPass(rec *gpu.Recorder, final *gpu.Framebuffer, slot int) error {
	var ds []Drawable
	for _, d := range r.scene.Overlay() {
		if d.Visible() {
			ds = append(ds, d)
		}
	}
	if len(ds) == 0 {
		return nil
	}
	fb, err := r.overlayTarget(final)
	if err != nil {
		return err
	}
	if err := rec.BeginPass(fb); err != nil {
		return err
	}
	defer rec.EndPass()
	size := math32.Vec2(float32(fb.Size.X), float32(fb.Size.Y))
	return r.drawAll(rec, r.passes.overlay, ds, func(vs *gpu.Values) error {
		return setIf(vs, SizeName, size)
	}, slot)
}

// overlayTarget returns the overlay framebuffer over the final image.
func (r *Renderer) overlayTarget(final *gpu.Framebuffer) (*gpu.Framebuffer, error) {
	im := final.Attachment(0)
	if fb, ok := r.overlays[im]; ok {
		return fb, nil
	}
	fb, err := gpu.NewFramebuffer(r.cx, "overlay."+final.Name, r.passes.overlay, im.Size, render.OutputUsage)
	if err != nil {
		return nil, err
	}
	if err := fb.SetAttachment(0, im); err != nil {
		fb.Release()
		return nil, err
	}
	r.overlays[im] = fb
	return fb, nil
}

// submit submits the frame, and presents it on the surface if any.
// The present recorder blits the final image into the surface image,
// waiting for both the image and the rendering. It returns true if
// the frame was skipped because the surface is stale.
func (r *Renderer) submit(sl *gpu.FrameSlot) (skipped bool, err error) {
	q := r.cx.Device.Queue()
	main := []*gpu.Recorder{sl.Shadow, sl.Primary, sl.Chain, sl.Overlay}
	if r.surface == nil {
		return false, sl.Submit(q, true, gpu.SubmitOptions{}, main...)
	}
	idx, h, err := r.surface.Acquire(sl.ImageAvailable, r.cx.AcquireTimeout)
	if err != nil {
		if !gpu.IsSurfaceStale(err) {
			return false, errors.Log(err)
		}
		slog.Warn("engine.Renderer: surface stale on acquire, frame not presented", "err", err)
		r.stale = true
		r.stats.Skipped++
		return true, sl.Submit(q, true, gpu.SubmitOptions{}, main...)
	}
	if err := sl.Submit(q, false, gpu.SubmitOptions{Signal: []gpu.Semaphore{sl.RenderDone}}, main...); err != nil {
		return false, err
	}
	target := gpu.WrapImage(h, fmt.Sprintf("surface.%d", idx), r.surface.Format(), r.surface.Size(), gpu.LayoutUndefined)
	pr := sl.Present
	if err := pr.Begin(); err != nil {
		return false, err
	}
	if err := pr.Blit(r.final.Attachment(0), target, gpu.FilterLinear); err != nil {
		return false, err
	}
	pr.Transition(gpu.LayoutPresent, target)
	if err := pr.End(); err != nil {
		return false, err
	}
	opts := gpu.SubmitOptions{Wait: []gpu.Semaphore{sl.ImageAvailable, sl.RenderDone}, Signal: []gpu.Semaphore{sl.PresentReady}}
	if err := sl.Submit(q, true, opts, pr); err != nil {
		return false, err
	}
	if err := r.surface.Present(idx, sl.PresentReady); err != nil {
		if !gpu.IsSurfaceStale(err) {
			return false, errors.Log(err)
		}
		slog.Warn("engine.Renderer: surface stale on present", "err", err)
		r.stale = true
	}
	return false, nil
}

// recreate waits for all frames in flight, and then recreates the
// surface and all size dependent resources at the window size.
func (r *Renderer) recreate() error {
	if err := r.ring.WaitAll(); err != nil {
		return err
	}
	r.releaseRetired(true)
	size := r.windowSize
	if r.surface != nil {
		if err := r.surface.Recreate(size); err != nil {
			return errors.Log(err)
		}
		size = r.surface.Size()
	}
	if err := r.ring.Recreate(size); err != nil {
		return err
	}
	if err := r.chain.Resize(size); err != nil {
		return err
	}
	for im, fb := range r.overlays {
		fb.Release()
		delete(r.overlays, im)
	}
	r.final = nil
	r.stale = false
	r.stats.Recreations++
	slog.Info("engine.Renderer: frame resources recreated", "size", size)
	return nil
}

// Release waits for all frames in flight and releases all resources.
func (r *Renderer) Release() {
	if r.ring != nil {
		r.ring.Release()
		r.ring = nil
	}
	r.releaseRetired(true)
	for lt, ls := range r.lights {
		ls.Release()
		delete(r.lights, lt)
	}
	for prog, vs := range r.values {
		vs.Release()
		delete(r.values, prog)
	}
	for im, fb := range r.overlays {
		fb.Release()
		delete(r.overlays, im)
	}
	if r.unlit != nil {
		r.unlit.Release()
		r.unlit = nil
	}
	if r.noShadow != nil {
		r.noShadow.Release()
		r.noShadow = nil
	}
	if r.chain != nil {
		r.chain.Release()
		r.chain = nil
	}
	if r.passes != nil {
		r.passes.release()
		r.passes = nil
	}
}
