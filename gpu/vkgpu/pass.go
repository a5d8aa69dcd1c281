// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"fmt"
	"image"
	"unsafe"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/pyro/gpu"
	vk "github.com/goki/vulkan"
)

// RenderPass is a single-subpass vulkan render pass.
// Attachments stay in their in-pass layout at both ends of the
// pass: transitions in and out are recorded as explicit barriers
// by the [gpu.Recorder], so that the image layout tracking on the
// host always matches the device.
type RenderPass struct {
	dev         *Device
	RenderPass  vk.RenderPass
	Attachments []gpu.Attachment
	ncolor      int
}

func (dv *Device) NewRenderPass(atts []gpu.Attachment) (gpu.DeviceRenderPass, error) {
	descs := make([]vk.AttachmentDescription, len(atts))
	var colors []vk.AttachmentReference
	var depth *vk.AttachmentReference
	for i, at := range atts {
		layout := VkLayout(at.Layout)
		descs[i] = vk.AttachmentDescription{
			Format:         VkFormat(at.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vkLoadOp(at.Load),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  layout,
			FinalLayout:    layout,
		}
		ref := vk.AttachmentReference{Attachment: uint32(i), Layout: layout}
		if at.Format.IsDepth() {
			depth = &ref
		} else {
			colors = append(colors, ref)
		}
	}
	var rp vk.RenderPass
	ret := vk.CreateRenderPass(dv.Device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descs)),
		PAttachments:    descs,
		SubpassCount:    1,
		PSubpasses: []vk.SubpassDescription{{
			PipelineBindPoint:       vk.PipelineBindPointGraphics,
			ColorAttachmentCount:    uint32(len(colors)),
			PColorAttachments:       colors,
			PDepthStencilAttachment: depth,
		}},
	}, nil, &rp)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return &RenderPass{dev: dv, RenderPass: rp, Attachments: atts, ncolor: len(colors)}, nil
}

func (rp *RenderPass) Release() {
	if rp.RenderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(rp.dev.Device, rp.RenderPass, nil)
		rp.RenderPass = vk.NullRenderPass
	}
}

// Framebuffer binds image views to a render pass.
type Framebuffer struct {
	dev         *Device
	Framebuffer vk.Framebuffer
}

func (dv *Device) NewFramebuffer(rp gpu.DeviceRenderPass, images []gpu.DeviceImage, size image.Point) (gpu.DeviceFramebuffer, error) {
	vrp := rp.(*RenderPass)
	if len(images) != len(vrp.Attachments) {
		return nil, fmt.Errorf("vkgpu: framebuffer has %d images for %d attachments", len(images), len(vrp.Attachments))
	}
	views := make([]vk.ImageView, len(images))
	for i, im := range images {
		views[i] = im.(*Image).View
	}
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(dv.Device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      vrp.RenderPass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           uint32(size.X),
		Height:          uint32(size.Y),
		Layers:          1,
	}, nil, &fb)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return &Framebuffer{dev: dv, Framebuffer: fb}, nil
}

func (fb *Framebuffer) Release() {
	if fb.Framebuffer != vk.NullFramebuffer {
		vk.DestroyFramebuffer(fb.dev.Device, fb.Framebuffer, nil)
		fb.Framebuffer = vk.NullFramebuffer
	}
}

const shaderStages = vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit

// Program is a graphics pipeline with its layouts.
type Program struct {
	dev       *Device
	Name      string
	Pipeline  vk.Pipeline
	Layout    vk.PipelineLayout
	SetLayout vk.DescriptorSetLayout
	Interface *gpu.Interface
	pushSize  int
}

// sliceUint32 reinterprets SPIR-V bytes as words.
func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func (dv *Device) newShaderModule(code []byte) (vk.ShaderModule, error) {
	var mod vk.ShaderModule
	if len(code) == 0 || len(code)%4 != 0 {
		return mod, errors.New("vkgpu: shader code must be a non-empty SPIR-V binary")
	}
	ret := vk.CreateShaderModule(dv.Device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &mod)
	return mod, NewError(ret)
}

func (dv *Device) setLayoutBindings(ifc *gpu.Interface) []vk.DescriptorSetLayoutBinding {
	var binds []vk.DescriptorSetLayoutBinding
	if ifc.Size() > 0 {
		binds = append(binds, vk.DescriptorSetLayoutBinding{
			Binding:         gpu.UniformBinding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(shaderStages),
		})
	}
	for _, kv := range ifc.Fields.Order {
		f := kv.Value
		if !f.Type.IsTexture() {
			continue
		}
		binds = append(binds, vk.DescriptorSetLayoutBinding{
			Binding:         uint32(f.Binding),
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}
	return binds
}

func (dv *Device) NewProgram(src *gpu.ProgramSource, rp gpu.DeviceRenderPass) (gpu.DeviceProgram, error) {
	vrp := rp.(*RenderPass)
	pr := &Program{dev: dv, Name: src.Name, Interface: src.Interface, pushSize: src.PushSize}

	binds := dv.setLayoutBindings(src.Interface)
	ret := vk.CreateDescriptorSetLayout(dv.Device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(binds)),
		PBindings:    binds,
	}, nil, &pr.SetLayout)
	if err := NewError(ret); err != nil {
		return nil, err
	}

	var push []vk.PushConstantRange
	if src.PushSize > 0 {
		push = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(shaderStages),
			Size:       uint32(src.PushSize),
		}}
	}
	ret = vk.CreatePipelineLayout(dv.Device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{pr.SetLayout},
		PushConstantRangeCount: uint32(len(push)),
		PPushConstantRanges:    push,
	}, nil, &pr.Layout)
	if err := NewError(ret); err != nil {
		pr.Release()
		return nil, err
	}

	vert, err := dv.newShaderModule(src.Vertex)
	if err != nil {
		pr.Release()
		return nil, fmt.Errorf("vkgpu: program %q vertex: %w", src.Name, err)
	}
	defer vk.DestroyShaderModule(dv.Device, vert, nil)
	frag, err := dv.newShaderModule(src.Fragment)
	if err != nil {
		pr.Release()
		return nil, fmt.Errorf("vkgpu: program %q fragment: %w", src.Name, err)
	}
	defer vk.DestroyShaderModule(dv.Device, frag, nil)

	pipe, err := dv.newPipeline(pr, src, vrp, vert, frag)
	if err != nil {
		pr.Release()
		return nil, fmt.Errorf("vkgpu: program %q: %w", src.Name, err)
	}
	pr.Pipeline = pipe
	return pr, nil
}

func (dv *Device) newPipeline(pr *Program, src *gpu.ProgramSource, rp *RenderPass, vert, frag vk.ShaderModule) (vk.Pipeline, error) {
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vert,
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: frag,
			PName:  "main\x00",
		},
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if src.VertexStride > 0 {
		var attrs []vk.VertexInputAttributeDescription
		for off := 0; off+16 <= src.VertexStride; off += 16 {
			attrs = append(attrs, vk.VertexInputAttributeDescription{
				Location: uint32(len(attrs)),
				Binding:  0,
				Format:   vk.FormatR32g32b32a32Sfloat,
				Offset:   uint32(off),
			})
		}
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    uint32(src.VertexStride),
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(attrs))
		vertexInput.PVertexAttributeDescriptions = attrs
	}

	blend := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
	}
	switch src.Blend {
	case gpu.BlendAdd:
		blend.BlendEnable = vk.True
		blend.DstColorBlendFactor = vk.BlendFactorOne
		blend.DstAlphaBlendFactor = vk.BlendFactorOne
	case gpu.BlendAlpha:
		blend.BlendEnable = vk.True
		blend.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		blend.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blend.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	}
	blends := make([]vk.PipelineColorBlendAttachmentState, rp.ncolor)
	for i := range blends {
		blends[i] = blend
	}

	dynamic := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	info := vk.GraphicsPipelineCreateInfo{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(stages)),
		PStages:           stages,
		PVertexInputState: &vertexInput,
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1.0,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			MinSampleShading:     1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  vkBool(src.Depth),
			DepthWriteEnable: vkBool(src.Depth && !src.DepthReadOnly),
			DepthCompareOp:   vk.CompareOpLessOrEqual,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: uint32(len(blends)),
			PAttachments:    blends,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamic)),
			PDynamicStates:    dynamic,
		},
		Layout:     pr.Layout,
		RenderPass: rp.RenderPass,
	}
	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(dv.Device, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if err := NewError(ret); err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

func (pr *Program) Release() {
	dev := pr.dev.Device
	if pr.Pipeline != vk.NullPipeline {
		vk.DestroyPipeline(dev, pr.Pipeline, nil)
		pr.Pipeline = vk.NullPipeline
	}
	if pr.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(dev, pr.Layout, nil)
		pr.Layout = vk.NullPipelineLayout
	}
	if pr.SetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(dev, pr.SetLayout, nil)
		pr.SetLayout = vk.NullDescriptorSetLayout
	}
}

// DescriptorSet is a vulkan descriptor set allocated from its own
// small pool, so that sets can be released independently.
type DescriptorSet struct {
	dev  *Device
	pool vk.DescriptorPool
	Set  vk.DescriptorSet
}

func (dv *Device) NewDescriptorSet(prog gpu.DeviceProgram) (gpu.DescriptorSet, error) {
	pr := prog.(*Program)
	var sizes []vk.DescriptorPoolSize
	if pr.Interface.Size() > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1})
	}
	if n := pr.Interface.NumTextures(); n > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: uint32(n)})
	}
	if len(sizes) == 0 {
		// vulkan does not allow an empty pool
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1})
	}
	ds := &DescriptorSet{dev: dv}
	ret := vk.CreateDescriptorPool(dv.Device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &ds.pool)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	ret = vk.AllocateDescriptorSets(dv.Device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     ds.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{pr.SetLayout},
	}, &ds.Set)
	if err := NewError(ret); err != nil {
		ds.Release()
		return nil, err
	}
	return ds, nil
}

func (ds *DescriptorSet) BindBuffer(binding int, buf gpu.DeviceBuffer) {
	bf := buf.(*Buffer)
	vk.UpdateDescriptorSets(ds.dev.Device, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          ds.Set,
		DstBinding:      uint32(binding),
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: bf.Buffer,
			Range:  vk.DeviceSize(bf.size),
		}},
	}}, 0, nil)
}

// BindImage binds a texture, which must be in the shader read
// layout whenever the set is used, or the depth read-only layout
// for depth images.
func (ds *DescriptorSet) BindImage(binding int, img gpu.DeviceImage) {
	im := img.(*Image)
	layout := vk.ImageLayoutShaderReadOnlyOptimal
	if im.Format.IsDepth() {
		layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
	}
	vk.UpdateDescriptorSets(ds.dev.Device, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          ds.Set,
		DstBinding:      uint32(binding),
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     ds.dev.sampler,
			ImageView:   im.View,
			ImageLayout: layout,
		}},
	}}, 0, nil)
}

func (ds *DescriptorSet) Release() {
	if ds.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(ds.dev.Device, ds.pool, nil)
		ds.pool = vk.NullDescriptorPool
	}
}
