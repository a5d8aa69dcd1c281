// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vkgpu is the Vulkan driver of the gpu package,
// built on github.com/goki/vulkan.
//
// Call [Init] (with a window system) or [InitHeadless] once on the
// main thread before creating a [Device].
package vkgpu

import (
	"fmt"
	"log/slog"
	"sync"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/pyro/gpu"
	vk "github.com/goki/vulkan"
)

// NewError returns an error for a vulkan result, or nil on success.
func NewError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return fmt.Errorf("vulkan error: %w (%d)", vk.Error(ret), ret)
}

// InitHeadless loads the system vulkan library without a window
// system, for offscreen rendering.
func InitHeadless() error {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return errors.Log(err)
	}
	return errors.Log(vk.Init())
}

// Options configure a new [Device].
type Options struct {

	// Name is the application name reported to the driver.
	Name string

	// InstanceExts are required instance extensions, such as
	// those a window system needs for its surfaces.
	InstanceExts []string

	// Validation enables the Khronos validation layer.
	Validation bool
}

// Device is a vulkan logical device with a single graphics queue.
// It implements [gpu.Device].
type Device struct {
	Instance   vk.Instance
	Physical   vk.PhysicalDevice
	Device     vk.Device
	QueueIndex uint32

	queue   *Queue
	pool    vk.CommandPool
	sampler vk.Sampler
	memory  vk.PhysicalDeviceMemoryProperties
	name    string

	// mu guards the command pool, which must be externally synchronized.
	mu sync.Mutex
}

// NewDevice creates the instance, picks the first physical device
// with a graphics queue, and creates the logical device on it.
func NewDevice(opts Options) (*Device, error) {
	dv := &Device{}
	if err := dv.initInstance(opts); err != nil {
		return nil, err
	}
	if err := dv.selectPhysical(); err != nil {
		dv.releaseInstance()
		return nil, err
	}
	if err := dv.initDevice(opts); err != nil {
		dv.releaseInstance()
		return nil, err
	}
	slog.Info("vkgpu: device created", "name", dv.name, "queue", dv.QueueIndex)
	return dv, nil
}

func cstrings(ss []string) []string {
	cs := make([]string, len(ss))
	for i, s := range ss {
		cs[i] = s + "\x00"
	}
	return cs
}

func (dv *Device) initInstance(opts Options) error {
	name := opts.Name
	if name == "" {
		name = "pyro"
	}
	var layers []string
	if opts.Validation {
		layers = cstrings([]string{"VK_LAYER_KHRONOS_validation"})
	}
	exts := cstrings(opts.InstanceExts)
	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   name + "\x00",
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PEngineName:        "pyro\x00",
			EngineVersion:      vk.MakeVersion(1, 0, 0),
			ApiVersion:         vk.MakeVersion(1, 1, 0),
		},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if err := NewError(ret); err != nil {
		return err
	}
	dv.Instance = instance
	return vk.InitInstance(instance)
}

func (dv *Device) selectPhysical() error {
	var count uint32
	vk.EnumeratePhysicalDevices(dv.Instance, &count, nil)
	if count == 0 {
		return errors.New("vkgpu: no vulkan-capable GPU found")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(dv.Instance, &count, devices)
	for _, pd := range devices {
		var nq uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &nq, nil)
		families := make([]vk.QueueFamilyProperties, nq)
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &nq, families)
		for i := range families {
			families[i].Deref()
			if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
				continue
			}
			dv.Physical = pd
			dv.QueueIndex = uint32(i)
			var props vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(pd, &props)
			props.Deref()
			dv.name = vk.ToString(props.DeviceName[:])
			vk.GetPhysicalDeviceMemoryProperties(pd, &dv.memory)
			dv.memory.Deref()
			return nil
		}
	}
	return errors.New("vkgpu: no GPU with a graphics queue found")
}

func (dv *Device) initDevice(opts Options) error {
	exts := cstrings([]string{"VK_KHR_swapchain"})
	var device vk.Device
	ret := vk.CreateDevice(dv.Physical, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: dv.QueueIndex,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}, nil, &device)
	if err := NewError(ret); err != nil {
		return err
	}
	dv.Device = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, dv.QueueIndex, 0, &queue)
	dv.queue = &Queue{dev: dv, queue: queue}

	var pool vk.CommandPool
	ret = vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: dv.QueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if err := NewError(ret); err != nil {
		return err
	}
	dv.pool = pool

	var sampler vk.Sampler
	ret = vk.CreateSampler(device, &vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		AddressModeU: vk.SamplerAddressModeClampToEdge,
		AddressModeV: vk.SamplerAddressModeClampToEdge,
		AddressModeW: vk.SamplerAddressModeClampToEdge,
		MipmapMode:   vk.SamplerMipmapModeLinear,
		MaxLod:       1,
		BorderColor:  vk.BorderColorFloatOpaqueBlack,
	}, nil, &sampler)
	if err := NewError(ret); err != nil {
		return err
	}
	dv.sampler = sampler
	return nil
}

func (dv *Device) Name() string { return dv.name }

func (dv *Device) Queue() gpu.Queue { return dv.queue }

func (dv *Device) WaitIdle() error {
	return NewError(vk.DeviceWaitIdle(dv.Device))
}

// memoryType returns the index of a memory type allowed by typeBits
// that has all of the required property flags.
func (dv *Device) memoryType(typeBits uint32, required vk.MemoryPropertyFlagBits) (uint32, error) {
	for i := uint32(0); i < dv.memory.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		dv.memory.MemoryTypes[i].Deref()
		flags := dv.memory.MemoryTypes[i].PropertyFlags
		if flags&vk.MemoryPropertyFlags(required) == vk.MemoryPropertyFlags(required) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("vkgpu: no memory type with properties %#x", required)
}

func (dv *Device) allocate(req vk.MemoryRequirements, props vk.MemoryPropertyFlagBits) (vk.DeviceMemory, error) {
	var mem vk.DeviceMemory
	req.Deref()
	idx, err := dv.memoryType(req.MemoryTypeBits, props)
	if err != nil {
		return mem, err
	}
	ret := vk.AllocateMemory(dv.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: idx,
	}, nil, &mem)
	return mem, NewError(ret)
}

func (dv *Device) releaseInstance() {
	if dv.Instance != nil {
		vk.DestroyInstance(dv.Instance, nil)
		dv.Instance = nil
	}
}

func (dv *Device) Release() {
	if dv.Device == nil {
		return
	}
	vk.DeviceWaitIdle(dv.Device)
	vk.DestroySampler(dv.Device, dv.sampler, nil)
	vk.DestroyCommandPool(dv.Device, dv.pool, nil)
	vk.DestroyDevice(dv.Device, nil)
	dv.Device = nil
	dv.releaseInstance()
}
