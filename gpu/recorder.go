// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"log/slog"

	"cogentcore.org/core/base/errors"
)

// RecorderStates are the states of a [Recorder].
type RecorderStates int32

const (
	// RecorderInitial is a reset recorder, ready for Begin.
	RecorderInitial RecorderStates = iota

	// RecorderRecording is between Begin and End.
	RecorderRecording

	// RecorderExecutable has been ended and may be submitted once.
	RecorderExecutable

	// RecorderPending has been submitted; it must not be touched
	// until the fence of its submission has signaled and it is Reset.
	RecorderPending
)

var recorderStateNames = [...]string{"Initial", "Recording", "Executable", "Pending"}

func (s RecorderStates) String() string {
	if s >= 0 && int(s) < len(recorderStateNames) {
		return recorderStateNames[s]
	}
	return fmt.Sprintf("RecorderStates(%d)", int32(s))
}

// Recorder is a sequential host-side recording of GPU commands:
// barriers, passes, program binds, draws and copies. It owns only
// its driver command buffer; image layout bookkeeping is delegated
// to each [Image].
//
// Usage: Begin, then any number of passes (BeginPass, Bind*, Draw,
// EndPass) and transfer commands, then End and Submit. A recording
// is submitted exactly once, and must be Reset before it is reused.
type Recorder struct {

	// Name is used in logging.
	Name string

	state RecorderStates
	cmd   CommandBuffer

	// open pass, if any
	pass *Framebuffer

	// currently bound program
	program *Program

	// number of commands recorded since Begin
	ncmds int
}

// NewRecorder allocates a command buffer for a new recorder.
func NewRecorder(cx *Context, name string) (*Recorder, error) {
	cmd, err := cx.Device.NewCommandBuffer()
	if errors.Log(err) != nil {
		return nil, err
	}
	return &Recorder{Name: name, cmd: cmd}, nil
}

// State returns the current state.
func (rc *Recorder) State() RecorderStates {
	return rc.state
}

// CommandBuffer returns the driver command buffer.
func (rc *Recorder) CommandBuffer() CommandBuffer {
	return rc.cmd
}

// Commands returns the number of commands recorded since Begin.
func (rc *Recorder) Commands() int {
	return rc.ncmds
}

// InPass returns true if a pass is open.
func (rc *Recorder) InPass() bool {
	return rc.pass != nil
}

// Begin starts recording. The recorder must be in the initial state.
func (rc *Recorder) Begin() error {
	if rc.state != RecorderInitial {
		return errors.Log(fmt.Errorf("gpu.Recorder.Begin %q: state is %s, must be Reset first", rc.Name, rc.state))
	}
	if err := rc.cmd.Begin(); errors.Log(err) != nil {
		return err
	}
	rc.state = RecorderRecording
	rc.ncmds = 0
	rc.program = nil
	return nil
}

// End finishes recording, making the recording executable.
func (rc *Recorder) End() error {
	if err := rc.recording("End"); err != nil {
		return err
	}
	if rc.pass != nil {
		Assert(false, "Recorder %q: End with open pass on %q", rc.Name, rc.pass.Name)
		rc.EndPass()
	}
	if err := rc.cmd.End(); errors.Log(err) != nil {
		return err
	}
	rc.state = RecorderExecutable
	return nil
}

// Reset discards the recording. A pending recording may only be
// reset after the fence of its submission has signaled.
func (rc *Recorder) Reset() error {
	if err := rc.cmd.Reset(); errors.Log(err) != nil {
		return err
	}
	rc.state = RecorderInitial
	rc.pass = nil
	rc.program = nil
	rc.ncmds = 0
	return nil
}

func (rc *Recorder) recording(op string) error {
	if rc.state != RecorderRecording {
		err := fmt.Errorf("gpu.Recorder.%s %q: %w (state %s)", op, rc.Name, ErrNotRecording, rc.state)
		Assert(false, "%v", err)
		return err
	}
	return nil
}

// recordBarriers records image barriers.
func (rc *Recorder) recordBarriers(bs ...Barrier) {
	if rc.recording("Barrier") != nil || len(bs) == 0 {
		return
	}
	Assert(rc.pass == nil, "Recorder %q: barrier inside pass %q", rc.Name, rc.pass)
	rc.cmd.Barrier(bs)
	rc.ncmds++
}

// Transition requests a layout for each image, recording all of the
// barriers as one batch. Nothing changes if the recorder is not recording.
func (rc *Recorder) Transition(layout Layout, images ...*Image) {
	if rc.recording("Transition") != nil {
		return
	}
	bs := make([]Barrier, 0, len(images))
	for _, im := range images {
		bs = append(bs, im.barrier(layout))
	}
	rc.recordBarriers(bs...)
}

// Close ends a recording that failed part way, ending any open pass
// first, so that it can still be submitted. The barriers already
// recorded have advanced the tracked image layouts, and must reach
// the GPU for the tracking to stay true. It does nothing if the
// recorder is not recording.
func (rc *Recorder) Close() error {
	if rc.state != RecorderRecording {
		return nil
	}
	if rc.pass != nil {
		rc.EndPass()
	}
	return rc.End()
}

// BeginPass opens a pass rendering into the framebuffer with its
// render pass. All attachments are first transitioned to their
// in-pass layouts, except those already in it: a barrier that is
// needed between two passes on an attachment in the same layout
// must be recorded explicitly with [Recorder.Transition].
func (rc *Recorder) BeginPass(fb *Framebuffer) error {
	if err := rc.recording("BeginPass"); err != nil {
		return err
	}
	if !Assert(rc.pass == nil, "Recorder %q: BeginPass %q inside open pass %q", rc.Name, fb.Name, rc.pass) {
		return ErrNoPass
	}
	rp := fb.RenderPass
	bs := make([]Barrier, 0, len(fb.Attachments))
	for i, im := range fb.Attachments {
		if l := rp.Attachments[i].Layout; im.layout != l {
			bs = append(bs, im.barrier(l))
		}
	}
	rc.recordBarriers(bs...)
	rc.cmd.BeginPass(rp.handle, fb.handle, fb.Size, rp.Clear)
	rc.pass = fb
	rc.ncmds++
	return nil
}

// EndPass closes the open pass, and transitions all attachments
// to their after-pass layouts.
func (rc *Recorder) EndPass() {
	if rc.recording("EndPass") != nil {
		return
	}
	fb := rc.pass
	if !Assert(fb != nil, "Recorder %q: EndPass without open pass", rc.Name) {
		return
	}
	rc.cmd.EndPass()
	rc.pass = nil
	rc.program = nil
	rc.ncmds++
	rp := fb.RenderPass
	var bs []Barrier
	for i, im := range fb.Attachments {
		at := rp.Attachments[i]
		if at.Final != at.Layout {
			bs = append(bs, im.barrier(at.Final))
		}
	}
	rc.recordBarriers(bs...)
}

// BindProgram binds a program for subsequent draws in the open pass.
func (rc *Recorder) BindProgram(p *Program) error {
	if err := rc.recording("BindProgram"); err != nil {
		return err
	}
	if !Assert(rc.pass != nil, "Recorder %q: BindProgram %q without open pass", rc.Name, p.Name) {
		return ErrNoPass
	}
	rc.cmd.BindProgram(p.handle)
	rc.program = p
	rc.ncmds++
	return nil
}

// BindValues flushes the values to the given frame slot copy if
// needed and binds that copy for the program of the values, which
// must be bound.
func (rc *Recorder) BindValues(vs *Values, slot int) error {
	if err := rc.recording("BindValues"); err != nil {
		return err
	}
	if !Assert(rc.program == vs.Program, "Recorder %q: BindValues for %q, bound program is %v", rc.Name, vs.Program.Name, rc.program) {
		return fmt.Errorf("gpu.Recorder.BindValues: program %q not bound", vs.Program.Name)
	}
	vs.Flush(slot)
	rc.cmd.BindDescriptors(vs.Program.handle, vs.sets[slot])
	rc.ncmds++
	return nil
}

// Push sets the push constant block of the bound program.
func (rc *Recorder) Push(data []byte) {
	if rc.recording("Push") != nil {
		return
	}
	if !Assert(rc.program != nil, "Recorder %q: Push without bound program", rc.Name) {
		return
	}
	rc.cmd.PushConstants(rc.program.handle, data)
	rc.ncmds++
}

// SetVertexBuffer binds the vertex buffer for subsequent draws.
func (rc *Recorder) SetVertexBuffer(buf DeviceBuffer) {
	if rc.recording("SetVertexBuffer") != nil {
		return
	}
	rc.cmd.SetVertexBuffer(buf)
	rc.ncmds++
}

// Draw draws vertices with the bound program. It requires an open pass.
func (rc *Recorder) Draw(vertices, instances int) error {
	if err := rc.recording("Draw"); err != nil {
		return err
	}
	if !Assert(rc.pass != nil, "Recorder %q: Draw without open pass", rc.Name) {
		return ErrNoPass
	}
	if !Assert(rc.program != nil, "Recorder %q: Draw without bound program", rc.Name) {
		return fmt.Errorf("gpu.Recorder.Draw %q: no program bound", rc.Name)
	}
	rc.cmd.Draw(vertices, instances)
	rc.ncmds++
	return nil
}

// DrawFullscreen draws the full-screen triangle used by
// post-processing and lighting passes.
func (rc *Recorder) DrawFullscreen() error {
	return rc.Draw(3, 1)
}

// Blit copies src into dst, scaling if the sizes differ. It transitions
// src to [LayoutTransferSrc] and dst to [LayoutTransferDst] first.
func (rc *Recorder) Blit(src, dst *Image, filter Filter) error {
	if err := rc.recording("Blit"); err != nil {
		return err
	}
	if !Assert(rc.pass == nil, "Recorder %q: Blit inside pass", rc.Name) {
		return fmt.Errorf("gpu.Recorder.Blit %q: inside pass", rc.Name)
	}
	rc.recordBarriers(src.barrier(LayoutTransferSrc), dst.barrier(LayoutTransferDst))
	rc.cmd.Blit(src.handle, src.Size, dst.handle, dst.Size, filter)
	rc.ncmds++
	return nil
}

// CopyToBuffer copies the image into a host-visible buffer, after
// transitioning it to [LayoutTransferSrc].
func (rc *Recorder) CopyToBuffer(src *Image, dst DeviceBuffer) error {
	if err := rc.recording("CopyToBuffer"); err != nil {
		return err
	}
	rc.recordBarriers(src.barrier(LayoutTransferSrc))
	rc.cmd.CopyToBuffer(src.handle, src.Size, dst)
	rc.ncmds++
	return nil
}

// SubmitOptions are the optional synchronization objects of a submission.
type SubmitOptions struct {

	// Wait delays execution until these semaphores are signaled.
	Wait []Semaphore

	// Signal is signaled when the submission has completed,
	// for later GPU-side consumers such as presentation.
	Signal []Semaphore

	// Fence is signaled when the GPU has fully retired the
	// submission: the only safe way for the CPU to know that the
	// recordings and their resources can be reused.
	Fence Fence
}

// Submit hands the recording to the queue. It must be executable.
func (rc *Recorder) Submit(q Queue, opts SubmitOptions) error {
	return SubmitAll(q, opts, rc)
}

// SubmitAll submits the recordings as one ordered batch.
// Recordings with no commands are still submitted.
func SubmitAll(q Queue, opts SubmitOptions, recs ...*Recorder) error {
	cmds := make([]CommandBuffer, 0, len(recs))
	for _, rc := range recs {
		switch rc.state {
		case RecorderExecutable:
		case RecorderPending:
			return errors.Log(fmt.Errorf("gpu.SubmitAll %q: %w", rc.Name, ErrAlreadySubmitted))
		default:
			return errors.Log(fmt.Errorf("gpu.SubmitAll %q: state is %s, must End first", rc.Name, rc.state))
		}
		cmds = append(cmds, rc.cmd)
	}
	err := q.Submit([]SubmitInfo{{Commands: cmds, Wait: opts.Wait, Signal: opts.Signal}}, opts.Fence)
	if errors.Log(err) != nil {
		return err
	}
	for _, rc := range recs {
		rc.state = RecorderPending
	}
	if Debug {
		slog.Debug("gpu.SubmitAll", "recordings", len(recs))
	}
	return nil
}

// Release destroys the command buffer.
func (rc *Recorder) Release() {
	if rc.cmd == nil {
		return
	}
	rc.cmd.Release()
	rc.cmd = nil
}
