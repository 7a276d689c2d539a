package renderpass

import (
	"fmt"

	"GPU_scene_renderer/gfx"
)

// MaxTextures bounds the texture array binding of the final color pass.
const MaxTextures = 64

type Kind int

const (
	Cubemap Kind = iota
	Grid
	FinalColor
)

func (k Kind) String() string {
	switch k {
	case Cubemap:
		return "cubemap"
	case Grid:
		return "grid"
	case FinalColor:
		return "final-color"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Slot names one input of a render pass. The string form is what the shaders call the binding.
type Slot int

const (
	UBCamera Slot = iota
	VertexSB
	IndexSB
	DrawDataSB
	TransformSB
	MatSB
	CubemapTexture
	TextureArray
)

var slotNames = [...]string{
	UBCamera:       "UBCamera",
	VertexSB:       "VertexSB",
	IndexSB:        "IndexSB",
	DrawDataSB:     "DrawDataSB",
	TransformSB:    "TransformSB",
	MatSB:          "MatSB",
	CubemapTexture: "CubemapTexture",
	TextureArray:   "TextureArray",
}

func (s Slot) String() string {
	if s >= 0 && int(s) < len(slotNames) {
		return slotNames[s]
	}
	return fmt.Sprintf("slot(%d)", int(s))
}

func ParseSlot(name string) (Slot, bool) {
	for i, n := range slotNames {
		if n == name {
			return Slot(i), true
		}
	}
	return 0, false
}

type slotLayout struct {
	slot     Slot
	kind     gfx.BindingKind
	count    uint32
	optional bool
}

var geometrySlots = []slotLayout{
	{slot: UBCamera, kind: gfx.BindUniform, count: 1},
	{slot: VertexSB, kind: gfx.BindStorage, count: 1},
	{slot: IndexSB, kind: gfx.BindStorage, count: 1},
	{slot: DrawDataSB, kind: gfx.BindStorage, count: 1},
}

// layouts lists the inputs of each kind in binding order.
var layouts = map[Kind][]slotLayout{
	Cubemap: append(append([]slotLayout{}, geometrySlots...),
		slotLayout{slot: CubemapTexture, kind: gfx.BindTexture, count: 1}),
	Grid: geometrySlots,
	FinalColor: append(append([]slotLayout{}, geometrySlots...),
		slotLayout{slot: TransformSB, kind: gfx.BindStorage, count: 1},
		slotLayout{slot: MatSB, kind: gfx.BindStorage, count: 1},
		slotLayout{slot: TextureArray, kind: gfx.BindTextureArray, count: MaxTextures, optional: true}),
}

// Slots returns the inputs a pass of kind k accepts.
func (k Kind) Slots() []Slot {
	var slots []Slot
	for _, l := range layouts[k] {
		slots = append(slots, l.slot)
	}
	return slots
}

func (k Kind) bindingLayout() []gfx.BindingLayout {
	var out []gfx.BindingLayout
	for i, l := range layouts[k] {
		out = append(out, gfx.BindingLayout{Binding: uint32(i), Kind: l.kind, Count: l.count})
	}
	return out
}

func (k Kind) accepts(s Slot) bool {
	for _, l := range layouts[k] {
		if l.slot == s {
			return true
		}
	}
	return false
}
