package hardware

import (
	"os"

	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

const allStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)

// pipeline owns its binding table: one descriptor set per frame slot, allocated from a pool sized for exactly those.
type pipeline struct {
	spec      gfx.PipelineSpec
	handle    vk.Pipeline
	layout    vk.PipelineLayout
	setLayout vk.DescriptorSetLayout
	pool      vk.DescriptorPool
	sets      []vk.DescriptorSet
}

func descriptorType(kind gfx.BindingKind) vk.DescriptorType {
	switch kind {
	case gfx.BindUniform:
		return vk.DescriptorTypeUniformBuffer
	case gfx.BindStorage:
		return vk.DescriptorTypeStorageBuffer
	}
	return vk.DescriptorTypeCombinedImageSampler
}

func isTextureBinding(kind gfx.BindingKind) bool {
	return kind.IsTexture()
}

// loadShader reads a SPIR-V file into a shader module. The module may be destroyed as soon as the pipeline exists.
func (d *Device) loadShader(path string, stage vk.ShaderStageFlagBits) (vk.ShaderModule, vk.PipelineShaderStageCreateInfo, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return vk.NullShaderModule, vk.PipelineShaderStageCreateInfo{}, errors.Wrapf(err, "read shader %s", path)
	}
	logging.Logger().Debug("Read shader file", "path", path, "bytes", len(code))
	mod, err := vkCreateShaderModule(d.D, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    asUint32Arr(code),
	})
	if err != nil {
		return vk.NullShaderModule, vk.PipelineShaderStageCreateInfo{}, errors.Wrapf(err, "create shader module %s", path)
	}
	return mod, vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: mod,
		PName:  "main\x00",
	}, nil
}

func (d *Device) CreatePipeline(spec gfx.PipelineSpec, frames uint32) (gfx.Handle, error) {
	if frames == 0 {
		return gfx.NullHandle, errors.Errorf("pipeline %q needs at least one frame slot", spec.Name)
	}
	rt, err := lookup[*renderTarget](d, spec.Target)
	if err != nil {
		return gfx.NullHandle, errors.Wrapf(err, "pipeline %q target", spec.Name)
	}
	p := &pipeline{spec: spec}
	if err := d.createBindingTable(p, frames); err != nil {
		d.destroyPipeline(p)
		return gfx.NullHandle, errors.Wrapf(err, "pipeline %q", spec.Name)
	}
	if p.layout, err = vkCreatePipelineLayout(d.D, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{p.setLayout},
	}); err != nil {
		d.destroyPipeline(p)
		return gfx.NullHandle, errors.Wrapf(err, "pipeline %q layout", spec.Name)
	}
	if p.handle, err = d.createGraphicsPipeline(spec, p.layout, rt.renderPass); err != nil {
		d.destroyPipeline(p)
		return gfx.NullHandle, errors.Wrapf(err, "pipeline %q", spec.Name)
	}
	logging.Logger().Debug("Created pipeline", "name", spec.Name, "frames", frames, "bindings", len(spec.Layout))
	return d.register(p), nil
}

func (d *Device) createBindingTable(p *pipeline, frames uint32) error {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(p.spec.Layout))
	perType := map[vk.DescriptorType]uint32{}
	for i, l := range p.spec.Layout {
		count := max(l.Count, 1)
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         l.Binding,
			DescriptorType:  descriptorType(l.Kind),
			DescriptorCount: count,
			StageFlags:      allStages,
		}
		perType[descriptorType(l.Kind)] += count * frames
	}
	var err error
	if p.setLayout, err = vkCreateDescriptorSetLayout(d.D, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}); err != nil {
		return errors.Wrap(err, "create descriptor set layout")
	}

	poolSizes := make([]vk.DescriptorPoolSize, 0, len(perType))
	for t, n := range perType {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: n})
	}
	if p.pool, err = vkCreateDescriptorPool(d.D, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       frames,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}); err != nil {
		return errors.Wrap(err, "create descriptor pool")
	}

	layouts := make([]vk.DescriptorSetLayout, frames)
	for i := range layouts {
		layouts[i] = p.setLayout
	}
	p.sets = make([]vk.DescriptorSet, frames)
	if err := vk.Error(vk.AllocateDescriptorSets(d.D, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.pool,
		DescriptorSetCount: frames,
		PSetLayouts:        layouts,
	}, &p.sets[0])); err != nil {
		return errors.Wrap(err, "allocate descriptor sets")
	}

	// Textures start out as the fallback so a set is complete before its first update.
	for frame := range frames {
		var fallbacks []gfx.Binding
		for _, l := range p.spec.Layout {
			if isTextureBinding(l.Kind) {
				fallbacks = append(fallbacks, gfx.Binding{Binding: l.Binding, Kind: l.Kind})
			}
		}
		if err := d.writeBindings(p, frame, fallbacks); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) createGraphicsPipeline(spec gfx.PipelineSpec, layout vk.PipelineLayout, pass vk.RenderPass) (vk.Pipeline, error) {
	vertMod, vertStage, err := d.loadShader(spec.VertexShader, vk.ShaderStageVertexBit)
	if err != nil {
		return vk.NullPipeline, err
	}
	defer vk.DestroyShaderModule(d.D, vertMod, nil)
	fragMod, fragStage, err := d.loadShader(spec.FragmentShader, vk.ShaderStageFragmentBit)
	if err != nil {
		return vk.NullPipeline, err
	}
	defer vk.DestroyShaderModule(d.D, fragMod, nil)

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	// Vertices are pulled from storage buffers, the pipeline has no vertex input.
	vertexInput := vk.PipelineVertexInputStateCreateInfo{SType: vk.StructureTypePipelineVertexInputStateCreateInfo}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	viewport := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	cullMode := vk.CullModeFlags(vk.CullModeNone)
	if spec.CullBack {
		cullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    cullMode,
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	blendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if spec.Blend {
		blendAttachment.BlendEnable = vk.True
	}
	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.False,
		DepthWriteEnable: vk.False,
		DepthCompareOp:   vk.CompareOpLessOrEqual,
		MaxDepthBounds:   1,
	}
	if spec.DepthTest {
		depthStencil.DepthTestEnable = vk.True
	}
	if spec.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	return vkCreateGraphicsPipeline(d.D, vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             []vk.PipelineShaderStageCreateInfo{vertStage, fragStage},
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewport,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		},
		Layout:            layout,
		RenderPass:        pass,
		BasePipelineIndex: -1,
	})
}

// UpdateBindings rewrites the descriptor set of one frame slot. Buffer bindings without a handle keep their previous
// content, texture arrays are padded with the fallback texture.
func (d *Device) UpdateBindings(pipe gfx.Handle, frame uint32, bindings []gfx.Binding) error {
	p, err := lookup[*pipeline](d, pipe)
	if err != nil {
		return err
	}
	if frame >= uint32(len(p.sets)) {
		return errors.Errorf("pipeline %q has no frame slot %d", p.spec.Name, frame)
	}
	return d.writeBindings(p, frame, bindings)
}

func (d *Device) writeBindings(p *pipeline, frame uint32, bindings []gfx.Binding) error {
	counts := map[uint32]uint32{}
	for _, l := range p.spec.Layout {
		counts[l.Binding] = max(l.Count, 1)
	}

	writes := make([]vk.WriteDescriptorSet, 0, len(bindings))
	for _, b := range bindings {
		count, ok := counts[b.Binding]
		if !ok {
			return errors.Errorf("pipeline %q has no binding %d", p.spec.Name, b.Binding)
		}
		write := vk.WriteDescriptorSet{
			SType:          vk.StructureTypeWriteDescriptorSet,
			DstSet:         p.sets[frame],
			DstBinding:     b.Binding,
			DescriptorType: descriptorType(b.Kind),
		}
		if isTextureBinding(b.Kind) {
			infos, err := d.imageInfos(b.Handles, count)
			if err != nil {
				return errors.Wrapf(err, "pipeline %q binding %d", p.spec.Name, b.Binding)
			}
			write.DescriptorCount = uint32(len(infos))
			write.PImageInfo = infos
		} else {
			if len(b.Handles) == 0 {
				continue
			}
			buf, err := lookup[*buffer](d, b.Handles[0])
			if err != nil {
				return errors.Wrapf(err, "pipeline %q binding %d", p.spec.Name, b.Binding)
			}
			write.DescriptorCount = 1
			write.PBufferInfo = []vk.DescriptorBufferInfo{{Buffer: buf.handle, Range: vk.DeviceSize(vk.WholeSize)}}
		}
		writes = append(writes, write)
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(d.D, uint32(len(writes)), writes, 0, nil)
	}
	return nil
}

func (d *Device) imageInfos(handles []gfx.Handle, count uint32) ([]vk.DescriptorImageInfo, error) {
	if uint32(len(handles)) > count {
		return nil, errors.Errorf("%d textures for %d slots", len(handles), count)
	}
	infos := make([]vk.DescriptorImageInfo, count)
	for i := range infos {
		t := d.fallback
		if i < len(handles) {
			var err error
			if t, err = lookup[*texture](d, handles[i]); err != nil {
				return nil, err
			}
		}
		infos[i] = vk.DescriptorImageInfo{
			Sampler:     t.sampler,
			ImageView:   t.view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}
	}
	return infos, nil
}

func (d *Device) destroyPipeline(p *pipeline) {
	if p.handle != vk.NullPipeline {
		vk.DestroyPipeline(d.D, p.handle, nil)
	}
	if p.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(d.D, p.layout, nil)
	}
	if p.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(d.D, p.pool, nil)
	}
	if p.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(d.D, p.setLayout, nil)
	}
}
