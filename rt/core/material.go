package core

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxMaterialTextures is the fixed number of texture-index slots in the
// material header written to the global material buffer.
const MaxMaterialTextures = 7

// Material owns a counted reference to its compiled shader and a uniform
// payload serialized into the global material buffer. Materials are shared
// between the instances that reference them.
type Material struct {
	name     string
	scene    *Scene // nil until created through a scene
	shader   *MaterialShader
	def      *MaterialDefinition
	uniform  []float32
	texture  []*Image // slot order follows the definition
	samplers map[string]*Sampler

	opaque bool
	dirty  bool
}

// NewMaterial creates a material from a definition and its acquired shader.
// The uniform payload starts at the definition defaults.
func NewMaterial(name string, shader *MaterialShader, def *MaterialDefinition) *Material {
	m := &Material{
		name:    name,
		shader:  shader,
		def:     def,
		uniform: make([]float32, def.UniformFloatCount()),
		texture: make([]*Image, len(def.Textures)),
		opaque:  true,
		dirty:   true,
	}
	for _, p := range def.Properties {
		if off, _, ok := def.propertyOffset(p.Name); ok {
			copy(m.uniform[off:off+p.Count], p.Default)
		}
	}
	m.updateOpacity()
	return m
}

func (m *Material) Kind() Kind                      { return KindMaterial }
func (m *Material) Name() string                    { return m.name }
func (m *Material) Shader() *MaterialShader         { return m.shader }
func (m *Material) Definition() *MaterialDefinition { return m.def }

// SetProperty writes a named uniform value.
func (m *Material) SetProperty(name string, values ...float32) error {
	off, count, ok := m.def.propertyOffset(name)
	if !ok {
		return fmt.Errorf("material %q has no property %q", m.name, name)
	}
	if len(values) != count {
		return fmt.Errorf("property %q expects %d values, got %d", name, count, len(values))
	}
	copy(m.uniform[off:off+count], values)
	m.updateOpacity()
	m.dirty = true
	if m.scene != nil {
		m.scene.noteMaterialChanged(m, nil)
	}
	return nil
}

// SetImage binds an image to a named texture slot.
func (m *Material) SetImage(name string, img *Image) error {
	for i, t := range m.def.Textures {
		if t.Name == name {
			m.texture[i] = img
			m.updateOpacity()
			m.dirty = true
			if m.scene != nil {
				m.scene.noteMaterialChanged(m, img)
			}
			return nil
		}
	}
	return fmt.Errorf("material %q has no texture slot %q", m.name, name)
}

// SetSampler binds a sampler to a named sampler slot.
func (m *Material) SetSampler(name string, s *Sampler) {
	if m.samplers == nil {
		m.samplers = make(map[string]*Sampler)
	}
	m.samplers[name] = s
}

// Sampler returns the sampler bound to the named slot, or nil.
func (m *Material) Sampler(name string) *Sampler { return m.samplers[name] }

// Textures returns the bound images in slot order. Unbound slots are nil.
func (m *Material) Textures() []*Image { return m.texture }

// UniformBytes serializes the uniform payload little-endian, the layout the
// material buffer packer appends after the material header.
func (m *Material) UniformBytes() []byte {
	buf := make([]byte, len(m.uniform)*4)
	for i, v := range m.uniform {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// UniformSize returns the payload size in bytes.
func (m *Material) UniformSize() int { return len(m.uniform) * 4 }

// IsOpaque reports whether hits against this material can skip any-hit
// shading.
func (m *Material) IsOpaque() bool { return m.opaque }

// Update clears the dirty flag, returning whether the material had pending
// changes.
func (m *Material) Update() bool {
	wasDirty := m.dirty
	m.dirty = false
	return wasDirty
}

func (m *Material) setDirty() { m.dirty = true }

func (m *Material) updateOpacity() {
	opaque := true
	if off, count, ok := m.def.propertyOffset("opacity"); ok {
		for i := 0; i < count; i++ {
			if m.uniform[off+i] < 1.0 {
				opaque = false
			}
		}
	}
	if off, count, ok := m.def.propertyOffset("transmission"); ok {
		for i := 0; i < count; i++ {
			if m.uniform[off+i] > 0.0 {
				opaque = false
			}
		}
	}
	for i, t := range m.def.Textures {
		if t.Name == "opacity_image" && m.texture[i] != nil {
			opaque = false
		}
	}
	m.opaque = opaque
}
