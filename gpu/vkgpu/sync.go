// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"fmt"
	"sync"
	"time"

	"cogentcore.org/pyro/gpu"
	vk "github.com/goki/vulkan"
)

// Fence wraps a vulkan fence.
type Fence struct {
	dev   *Device
	Fence vk.Fence
}

func (dv *Device) NewFence(signaled bool) (gpu.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(dv.Device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &fence)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return &Fence{dev: dv, Fence: fence}, nil
}

func (f *Fence) Wait(timeout time.Duration) error {
	ret := vk.WaitForFences(f.dev.Device, 1, []vk.Fence{f.Fence}, vk.True, uint64(timeout.Nanoseconds()))
	switch ret {
	case vk.Success:
		return nil
	case vk.Timeout:
		return fmt.Errorf("vkgpu: fence wait %v: %w", timeout, gpu.ErrTimeout)
	case vk.ErrorDeviceLost:
		return gpu.ErrDeviceLost
	}
	return NewError(ret)
}

func (f *Fence) Reset() error {
	return NewError(vk.ResetFences(f.dev.Device, 1, []vk.Fence{f.Fence}))
}

func (f *Fence) Signaled() bool {
	return vk.GetFenceStatus(f.dev.Device, f.Fence) == vk.Success
}

func (f *Fence) Release() {
	if f.Fence != vk.NullFence {
		vk.DestroyFence(f.dev.Device, f.Fence, nil)
		f.Fence = vk.NullFence
	}
}

// Semaphore wraps a binary vulkan semaphore.
type Semaphore struct {
	dev       *Device
	Semaphore vk.Semaphore
	released  bool
}

func (dv *Device) NewSemaphore() (gpu.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(dv.Device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return &Semaphore{dev: dv, Semaphore: sem}, nil
}

func (s *Semaphore) Release() {
	if s.released {
		return
	}
	vk.DestroySemaphore(s.dev.Device, s.Semaphore, nil)
	s.released = true
}

func semaphores(ss []gpu.Semaphore) []vk.Semaphore {
	vs := make([]vk.Semaphore, len(ss))
	for i, s := range ss {
		vs[i] = s.(*Semaphore).Semaphore
	}
	return vs
}

// Queue is the single graphics queue of a [Device].
type Queue struct {
	dev   *Device
	queue vk.Queue

	// mu serializes access to the queue, which vulkan requires
	// for submit and present.
	mu sync.Mutex
}

func (q *Queue) Submit(infos []gpu.SubmitInfo, fence gpu.Fence) error {
	submits := make([]vk.SubmitInfo, len(infos))
	for i, in := range infos {
		cmds := make([]vk.CommandBuffer, len(in.Commands))
		for j, c := range in.Commands {
			cmds[j] = c.(*CommandBuffer).cmd
		}
		stages := make([]vk.PipelineStageFlags, len(in.Wait))
		for j := range stages {
			stages[j] = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageTransferBit)
		}
		submits[i] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(in.Wait)),
			PWaitSemaphores:      semaphores(in.Wait),
			PWaitDstStageMask:    stages,
			CommandBufferCount:   uint32(len(cmds)),
			PCommandBuffers:      cmds,
			SignalSemaphoreCount: uint32(len(in.Signal)),
			PSignalSemaphores:    semaphores(in.Signal),
		}
	}
	vf := vk.NullFence
	if fence != nil {
		vf = fence.(*Fence).Fence
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	ret := vk.QueueSubmit(q.queue, uint32(len(submits)), submits, vf)
	if ret == vk.ErrorDeviceLost {
		return gpu.ErrDeviceLost
	}
	return NewError(ret)
}
