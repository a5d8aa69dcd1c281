// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"image"
	"log/slog"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/render"
	"cogentcore.org/pyro/settings"
)

// setIf sets the named value if the program declares it and it
// differs from the current value, so that unchanged values are
// not flushed again.
func setIf(vs *gpu.Values, name string, val any) error {
	if vs.Value(name) == nil || vs.Get(name) == val {
		return nil
	}
	return vs.Set(name, val)
}

// DrawReadback draws a frame like [Renderer.Draw], waits for it to
// complete, and calls fn with its final image. fn is not called for
// a skipped frame. The image is only valid during the call.
func (r *Renderer) DrawReadback(fn func(img *image.RGBA)) error {
	sl, err := r.draw(true)
	if err != nil || sl == nil {
		return err
	}
	if err := r.ring.WaitAll(); err != nil {
		return err
	}
	img := image.NewRGBA(image.Rectangle{Max: r.ring.Size})
	if err := sl.Targets.Readback.Read(0, img.Pix); errors.Log(err) != nil {
		return err
	}
	fn(img)
	return nil
}

// Update advances the scene by dt seconds.
func (r *Renderer) Update(dt float32) {
	r.scene.Update(dt)
}

// OnResize notifies the renderer of a new window size. The frame
// resources are recreated before the next frame, and frames are
// skipped while the size is zero, as for a minimized window.
func (r *Renderer) OnResize(width, height int) {
	size := image.Point{width, height}
	if size == r.windowSize {
		return
	}
	r.windowSize = size
	if width <= 0 || height <= 0 {
		slog.Warn("engine.Renderer: window minimized, skipping frames")
		return
	}
	r.stale = true
}

// Camera returns the camera set with [Renderer.SetCamera], or else
// the camera of the scene.
func (r *Renderer) Camera() Camera {
	if r.camera != nil {
		return r.camera
	}
	return r.scene.Camera()
}

// SetCamera overrides the camera of the scene. A nil camera restores it.
func (r *Renderer) SetCamera(cam Camera) {
	r.camera = cam
}

// SetShadows turns shadow maps on or off.
func (r *Renderer) SetShadows(on bool) {
	r.Settings.Shadows = on
}

// SetUnlit turns unlit mode on or off: in unlit mode, the albedo
// is shown instead of the lighting.
func (r *Renderer) SetUnlit(on bool) {
	r.Settings.Unlit = on
}

// SetOverlay turns the overlay pass on or off.
func (r *Renderer) SetOverlay(on bool) {
	r.Settings.Overlay = on
}

// SetExposure sets the exposure of the tonemap stage.
func (r *Renderer) SetExposure(exposure float32) error {
	r.Settings.Exposure = exposure
	return r.setStageValue(render.TonemapName, "Exposure", exposure)
}

// SetFogColor sets the color the fog stage blends toward.
func (r *Renderer) SetFogColor(c math32.Vector3) error {
	r.Settings.FogColor = c
	return r.setStageValue(render.FogName, "FogColor", c)
}

// SetFogDensity sets the density of the fog, per unit of distance.
func (r *Renderer) SetFogDensity(density float32) error {
	r.Settings.FogDensity = density
	return r.setStageValue(render.FogName, "Density", density)
}

// SetBloomThreshold sets the luminance above which colors bloom.
func (r *Renderer) SetBloomThreshold(threshold float32) error {
	r.Settings.BloomThreshold = threshold
	return r.setStageValue(render.BrightName, "Threshold", threshold)
}

// SetActive turns the named post-processing stage on or off.
// It returns false if there is no such stage.
func (r *Renderer) SetActive(name string, on bool) bool {
	if !r.chain.SetActive(name, on) {
		return false
	}
	if r.Settings.Stages == nil {
		r.Settings.Stages = map[string]bool{}
	}
	r.Settings.Stages[name] = on
	return true
}

// setStageValue sets a value of a full-screen stage of the chain.
func (r *Renderer) setStageValue(stage, name string, val any) error {
	ps, ok := r.chain.Stage(stage).(*render.PassStage)
	if !ok {
		return errors.Log(fmt.Errorf("engine.Renderer: no stage %q", stage))
	}
	return setIf(ps.Values, name, val)
}

// ApplySettings applies the rendering settings that can change at
// run time: the flags, the stage parameters, and the active stages.
// The size and number of frames in flight are only used on creation.
func (r *Renderer) ApplySettings(st *settings.Settings) {
	r.SetShadows(st.Shadows)
	r.SetUnlit(st.Unlit)
	r.SetOverlay(st.Overlay)
	if r.Settings.ShadowSize != st.ShadowSize {
		// shadow maps are recreated at the next render
		for _, lt := range r.scene.Lights() {
			lt.MarkDirty()
		}
	}
	r.Settings.ShadowSize = max(st.ShadowSize, 1)
	errors.Log(r.SetExposure(st.Exposure))
	errors.Log(r.SetFogColor(st.FogColor))
	errors.Log(r.SetFogDensity(st.FogDensity))
	errors.Log(r.SetBloomThreshold(st.BloomThreshold))
	for name, on := range st.Stages {
		r.SetActive(name, on)
	}
	st.Apply()
}

// Stats returns the frame counters.
func (r *Renderer) Stats() Stats {
	return r.stats
}

// ShadowRenders returns the number of times the shadow map of the
// light has been rendered.
func (r *Renderer) ShadowRenders(lt *Light) int {
	if ls, ok := r.lights[lt]; ok {
		return ls.renders
	}
	return 0
}

// ProgramValues returns the values of the drawables drawn with the
// named program in the deferred geometry pass, or nil if none was drawn.
func (r *Renderer) ProgramValues(name string) *gpu.Values {
	prog, err := r.loader.Program(name, r.passes.gbuffer)
	if err != nil {
		return nil
	}
	return r.values[prog]
}

// Chain returns the post-processing chain.
func (r *Renderer) Chain() *render.Chain {
	return r.chain
}

// Ring returns the frame ring.
func (r *Renderer) Ring() *gpu.FrameRing {
	return r.ring
}

// Output returns the final framebuffer of the last frame, or nil
// before the first frame after creation or recreation.
func (r *Renderer) Output() *gpu.Framebuffer {
	return r.final
}
