// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"image"
	"log/slog"

	"cogentcore.org/core/base/errors"
)

// FrameStates are the states of a [FrameSlot].
type FrameStates int32

const (
	// FrameIdle is available to the CPU.
	FrameIdle FrameStates = iota

	// FrameRecording is being recorded by the CPU.
	FrameRecording

	// FrameSubmitted has been submitted with its fence, and must not
	// be touched by the CPU until the fence has signaled.
	FrameSubmitted
)

var frameStateNames = [...]string{"Idle", "Recording", "Submitted"}

func (s FrameStates) String() string {
	if s >= 0 && int(s) < len(frameStateNames) {
		return frameStateNames[s]
	}
	return fmt.Sprintf("FrameStates(%d)", int32(s))
}

// FrameTargets are the per-slot render targets of a [FrameSlot].
type FrameTargets struct {

	// Framebuffers are the target framebuffers, sized for the
	// current resolution.
	Framebuffers []*Framebuffer

	// Images are other owned target images, such as the copy of
	// the final image for readback.
	Images []*Image

	// Readback is an optional host-visible buffer the final
	// image is copied into for offscreen use.
	Readback DeviceBuffer
}

// Release destroys the targets.
func (ft *FrameTargets) Release() {
	if ft == nil {
		return
	}
	for _, fb := range ft.Framebuffers {
		if fb != nil {
			fb.Release()
		}
	}
	ft.Framebuffers = nil
	for _, im := range ft.Images {
		im.Release()
	}
	ft.Images = nil
	if ft.Readback != nil {
		ft.Readback.Release()
		ft.Readback = nil
	}
}

// TargetsFunc makes the render targets of frame slot index at size.
type TargetsFunc func(index int, size image.Point) (*FrameTargets, error)

// FrameSlot is one of the N sets of per-frame resources of a [FrameRing].
// Slots are reused across frames, and only destroyed with the ring.
type FrameSlot struct {

	// Index is the position of the slot in the ring.
	Index int

	// Fence is signaled when the GPU has retired the last
	// submission of this slot.
	Fence Fence

	// Shadow records shadow map passes.
	Shadow *Recorder

	// Primary records the scene passes: geometry, lighting and forward.
	Primary *Recorder

	// Chain records the post-processing stages.
	Chain *Recorder

	// Overlay records the 2D overlay pass.
	Overlay *Recorder

	// Present records the copy into the acquired surface image.
	Present *Recorder

	// ImageAvailable is signaled by the surface when the acquired
	// image is ready to be written.
	ImageAvailable Semaphore

	// RenderDone is signaled when the main frame submission is done.
	RenderDone Semaphore

	// PresentReady is signaled when the surface image is ready to present.
	PresentReady Semaphore

	// Targets are the render targets of this slot.
	Targets *FrameTargets

	state FrameStates
}

// State returns the current state.
func (sl *FrameSlot) State() FrameStates {
	return sl.state
}

// Recorders returns all recorders of the slot in submission order.
func (sl *FrameSlot) Recorders() []*Recorder {
	return []*Recorder{sl.Shadow, sl.Primary, sl.Chain, sl.Overlay, sl.Present}
}

// Begin starts recording all of the frame recorders except Present.
// The slot must be idle.
func (sl *FrameSlot) Begin() error {
	if !Assert(sl.state == FrameIdle, "FrameSlot %d: Begin in state %s", sl.Index, sl.state) {
		return fmt.Errorf("gpu.FrameSlot.Begin %d: state %s", sl.Index, sl.state)
	}
	for _, rc := range []*Recorder{sl.Shadow, sl.Primary, sl.Chain, sl.Overlay} {
		if err := rc.Begin(); err != nil {
			return err
		}
	}
	sl.state = FrameRecording
	return nil
}

// Submit submits the ended recordings as one ordered batch.
// If fence is true, the slot fence is signaled on completion and the
// slot becomes [FrameSubmitted]: the last submission of a frame must
// always use the fence, so that the slot can be reacquired.
func (sl *FrameSlot) Submit(q Queue, fence bool, opts SubmitOptions, recs ...*Recorder) error {
	if !Assert(sl.state == FrameRecording, "FrameSlot %d: Submit in state %s", sl.Index, sl.state) {
		return fmt.Errorf("gpu.FrameSlot.Submit %d: state %s", sl.Index, sl.state)
	}
	if fence {
		opts.Fence = sl.Fence
	}
	if err := SubmitAll(q, opts, recs...); err != nil {
		return err
	}
	if fence {
		sl.state = FrameSubmitted
	}
	return nil
}

// Abort ends the recordings of a frame whose recording failed and
// submits what was recorded, with the fence, so that the tracked image
// layouts match the GPU and the slot can be reacquired. It does
// nothing if the slot is not recording.
func (sl *FrameSlot) Abort(q Queue) error {
	if sl.state != FrameRecording {
		return nil
	}
	var recs []*Recorder
	for _, rc := range []*Recorder{sl.Shadow, sl.Primary, sl.Chain, sl.Overlay} {
		if err := rc.Close(); err != nil {
			return err
		}
		if rc.State() == RecorderExecutable {
			recs = append(recs, rc)
		}
	}
	slog.Warn("gpu.FrameSlot: frame aborted, submitting partial recording", "slot", sl.Index)
	return sl.Submit(q, true, SubmitOptions{}, recs...)
}

// wait blocks until the last submission has been retired, if any.
func (sl *FrameSlot) wait(cx *Context) error {
	if sl.state != FrameSubmitted {
		return nil
	}
	err := sl.Fence.Wait(cx.AcquireTimeout)
	if err == nil {
		sl.state = FrameIdle
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("gpu.FrameRing: slot %d fence not signaled within %v: %w", sl.Index, cx.AcquireTimeout, ErrDeviceLost)
	}
	slog.Error("gpu.FrameRing", "err", err)
	return err
}

// reset makes the slot ready for recording after its fence has signaled.
func (sl *FrameSlot) reset() error {
	if err := sl.Fence.Reset(); errors.Log(err) != nil {
		return err
	}
	for _, rc := range sl.Recorders() {
		if err := rc.Reset(); err != nil {
			return err
		}
	}
	sl.state = FrameIdle
	return nil
}

func (sl *FrameSlot) release() {
	sl.Targets.Release()
	sl.Targets = nil
	for _, rc := range sl.Recorders() {
		if rc != nil {
			rc.Release()
		}
	}
	for _, r := range []Releaser{sl.Fence, sl.ImageAvailable, sl.RenderDone, sl.PresentReady} {
		if r != nil {
			r.Release()
		}
	}
}

// FrameRing is the ring of N frame slots that lets the CPU record
// frame i+1 while the GPU still executes frame i. [FrameRing.Acquire]
// is the only point where the CPU blocks on the GPU, bounding the
// skew between them to N-1 frames.
type FrameRing struct {

	// Slots are the N frame slots.
	Slots []*FrameSlot

	// Size is the current size of the slot targets.
	Size image.Point

	cx      *Context
	targets TargetsFunc

	// index of the current slot, -1 before the first Acquire
	current int
}

// NewFrameRing makes a ring of [Context.FramesInFlight] slots,
// with targets at the given size made by the targets function,
// which may be nil for no targets. Slot fences start out signaled.
func NewFrameRing(cx *Context, size image.Point, targets TargetsFunc) (*FrameRing, error) {
	rg := &FrameRing{Size: size, cx: cx, targets: targets, current: -1}
	dev := cx.Device
	for i := range cx.FramesInFlight {
		sl := &FrameSlot{Index: i}
		rg.Slots = append(rg.Slots, sl)
		var err error
		if sl.Fence, err = dev.NewFence(true); errors.Log(err) != nil {
			rg.Release()
			return nil, err
		}
		for _, sm := range []*Semaphore{&sl.ImageAvailable, &sl.RenderDone, &sl.PresentReady} {
			if *sm, err = dev.NewSemaphore(); errors.Log(err) != nil {
				rg.Release()
				return nil, err
			}
		}
		for _, rc := range []struct {
			rec  **Recorder
			name string
		}{{&sl.Shadow, "shadow"}, {&sl.Primary, "primary"}, {&sl.Chain, "chain"}, {&sl.Overlay, "overlay"}, {&sl.Present, "present"}} {
			if *rc.rec, err = NewRecorder(cx, fmt.Sprintf("%s.%d", rc.name, i)); err != nil {
				rg.Release()
				return nil, err
			}
		}
		if err := rg.makeTargets(sl); err != nil {
			rg.Release()
			return nil, err
		}
	}
	slog.Info("gpu.FrameRing: created", "slots", len(rg.Slots), "size", size)
	return rg, nil
}

func (rg *FrameRing) makeTargets(sl *FrameSlot) error {
	if rg.targets == nil {
		return nil
	}
	tg, err := rg.targets(sl.Index, rg.Size)
	if err != nil {
		return err
	}
	sl.Targets = tg
	return nil
}

// N returns the number of slots.
func (rg *FrameRing) N() int {
	return len(rg.Slots)
}

// Current returns the most recently acquired slot, or nil.
func (rg *FrameRing) Current() *FrameSlot {
	if rg.current < 0 {
		return nil
	}
	return rg.Slots[rg.current]
}

// Acquire advances to the next slot in round-robin order, blocks until
// the fence of its previous submission has signaled, resets it,
// and returns it idle. If the fence does not signal within
// [Context.AcquireTimeout] the device is considered lost, and an
// error wrapping [ErrDeviceLost] is returned, which is fatal.
func (rg *FrameRing) Acquire() (*FrameSlot, error) {
	rg.current = (rg.current + 1) % len(rg.Slots)
	sl := rg.Slots[rg.current]
	if err := sl.wait(rg.cx); err != nil {
		return nil, err
	}
	if err := sl.reset(); err != nil {
		return nil, err
	}
	return sl, nil
}

// WaitAll waits for all submitted slots to be retired.
func (rg *FrameRing) WaitAll() error {
	for _, sl := range rg.Slots {
		if err := sl.wait(rg.cx); err != nil {
			return err
		}
	}
	return nil
}

// Recreate rebuilds the targets of all slots at a new size, after all
// slots have been retired. Slots are always recreated together.
func (rg *FrameRing) Recreate(size image.Point) error {
	if err := rg.WaitAll(); err != nil {
		return err
	}
	rg.Size = size
	for _, sl := range rg.Slots {
		sl.Targets.Release()
		sl.Targets = nil
		if err := rg.makeTargets(sl); err != nil {
			return err
		}
	}
	slog.Info("gpu.FrameRing: recreated", "size", size)
	return nil
}

// Release waits for all slots and destroys them.
func (rg *FrameRing) Release() {
	errors.Log(rg.WaitAll())
	for _, sl := range rg.Slots {
		sl.release()
	}
	rg.Slots = nil
}
