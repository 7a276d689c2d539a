// Package renderpass binds named inputs to a pipeline and keeps the per-frame descriptor bindings current.
package renderpass

import (
	"strings"

	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"

	"github.com/pkg/errors"
)

type Spec struct {
	Name     string
	Kind     Kind
	Pipeline gfx.PipelineSpec
	Target   gfx.Handle
	Frames   uint32
}

// RenderPass must be verified and baked before it can record. Inputs set after baking only reach the GPU once the
// pass is marked dirty or a bound buffer changes its version.
type RenderPass struct {
	dev   gfx.PipelineDevice
	queue *deletion.Queue
	spec  Spec

	inputs   map[Slot]Input
	verified bool
	pipeline gfx.Handle
	dirty    []bool
	versions []map[Slot]uint64
}

func New(dev gfx.PipelineDevice, q *deletion.Queue, spec Spec) *RenderPass {
	gfx.Assert(spec.Frames > 0, "render pass %q needs at least one frame", spec.Name)
	return &RenderPass{
		dev:      dev,
		queue:    q,
		spec:     spec,
		inputs:   map[Slot]Input{},
		dirty:    make([]bool, spec.Frames),
		versions: make([]map[Slot]uint64, spec.Frames),
	}
}

func (p *RenderPass) Name() string { return p.spec.Name }

func (p *RenderPass) Kind() Kind { return p.spec.Kind }

// SetInput binds input to the slot called name.
func (p *RenderPass) SetInput(name string, input Input) error {
	slot, ok := ParseSlot(name)
	if !ok {
		return errors.Errorf("render pass %q: unknown input %q", p.spec.Name, name)
	}
	if !p.spec.Kind.accepts(slot) {
		return errors.Errorf("render pass %q: %s pass has no input %q", p.spec.Name, p.spec.Kind, name)
	}
	p.inputs[slot] = input
	return nil
}

func (p *RenderPass) SetSlot(slot Slot, input Input) {
	gfx.Assert(p.spec.Kind.accepts(slot), "render pass %q: %s pass has no input %s", p.spec.Name, p.spec.Kind, slot)
	p.inputs[slot] = input
}

// Verify fails when a required input is unbound.
func (p *RenderPass) Verify() error {
	var missing []string
	for _, l := range layouts[p.spec.Kind] {
		if _, ok := p.inputs[l.slot]; !ok && !l.optional {
			missing = append(missing, l.slot.String())
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("render pass %q is missing inputs: %s", p.spec.Name, strings.Join(missing, ", "))
	}
	p.verified = true
	return nil
}

// Bake creates the pipeline. The pass must have been verified.
func (p *RenderPass) Bake() error {
	if !p.verified {
		return errors.Errorf("render pass %q baked before verification", p.spec.Name)
	}
	spec := p.spec.Pipeline
	if spec.Name == "" {
		spec.Name = p.spec.Name
	}
	spec.Target = p.spec.Target
	spec.Layout = p.spec.Kind.bindingLayout()

	h, err := p.dev.CreatePipeline(spec, p.spec.Frames)
	if err != nil {
		return errors.Wrapf(err, "render pass %q", p.spec.Name)
	}
	p.pipeline = h
	p.MarkDirty()
	logging.Logger().Debug("Baked render pass", "name", p.spec.Name, "kind", p.spec.Kind, "bindings", len(spec.Layout))
	return nil
}

func (p *RenderPass) Baked() bool { return p.pipeline != gfx.NullHandle }

func (p *RenderPass) Pipeline() gfx.Handle { return p.pipeline }

func (p *RenderPass) MarkDirty() {
	for i := range p.dirty {
		p.dirty[i] = true
	}
}

// IsDirty reports whether any frame slot still has to rewrite its bindings.
func (p *RenderPass) IsDirty() bool {
	for _, d := range p.dirty {
		if d {
			return true
		}
	}
	return false
}

func (p *RenderPass) Begin(cmd gfx.CommandBuffer, frame uint32) {
	gfx.Assert(p.Baked(), "render pass %q used before baking", p.spec.Name)
	cmd.BeginRenderPass(p.spec.Target, p.pipeline)
}

// BindDescriptorSets refreshes the bindings of frame when needed and binds them.
func (p *RenderPass) BindDescriptorSets(cmd gfx.CommandBuffer, frame uint32) {
	gfx.Assert(p.Baked(), "render pass %q used before baking", p.spec.Name)
	gfx.Assert(frame < p.spec.Frames, "frame index %d out of range for render pass %q", frame, p.spec.Name)

	if p.dirty[frame] || p.versionsChanged(frame) {
		gfx.Check(p.dev.UpdateBindings(p.pipeline, frame, p.bindings(frame)), "Failed to update render pass bindings")
		p.dirty[frame] = false
	}
	cmd.BindDescriptorSet(p.pipeline, frame)
}

func (p *RenderPass) versionsChanged(frame uint32) bool {
	seen := p.versions[frame]
	for slot, input := range p.inputs {
		if v, ok := seen[slot]; !ok || v != input.Version(frame) {
			return true
		}
	}
	return false
}

func (p *RenderPass) bindings(frame uint32) []gfx.Binding {
	versions := make(map[Slot]uint64, len(p.inputs))
	var out []gfx.Binding
	for i, l := range layouts[p.spec.Kind] {
		input, ok := p.inputs[l.slot]
		if !ok {
			continue
		}
		versions[l.slot] = input.Version(frame)
		handles := input.Binding(frame)
		if len(handles) == 0 && !l.kind.IsTexture() {
			continue
		}
		out = append(out, gfx.Binding{Binding: uint32(i), Kind: l.kind, Handles: handles})
	}
	p.versions[frame] = versions
	return out
}

func (p *RenderPass) ResizeRenderTarget(width, height uint32) {
	gfx.Check(p.dev.ResizeRenderTarget(p.spec.Target, gfx.Extent{Width: width, Height: height}),
		"Failed to resize render target")
}

func (p *RenderPass) OutputColor() gfx.Handle {
	return p.dev.RenderTargetOutput(p.spec.Target)
}

func (p *RenderPass) Dispose() {
	p.queue.Enqueue(gfx.Pipeline, p.pipeline)
	p.pipeline = gfx.NullHandle
	p.inputs = map[Slot]Input{}
	p.verified = false
}
