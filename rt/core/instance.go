package core

import "github.com/go-gl/mathgl/mgl32"

// LayerDefinition pairs a layer material with an optional layer geometry
// carrying the layer's UVs.
type LayerDefinition struct {
	Material *Material
	Geometry *Geometry
}

// Instance places one geometry in the scene with a material and a transform.
// An instance without an explicit material uses the scene default.
type Instance struct {
	scene    *Scene
	geometry *Geometry
	material *Material
	layers   []LayerDefinition

	transform mgl32.Mat4
	objectID  int

	dirty bool
}

func (inst *Instance) Kind() Kind   { return KindInstance }
func (inst *Instance) Name() string { return inst.geometry.Name() }

func (inst *Instance) Geometry() *Geometry { return inst.geometry }

// Material returns the instance's resolved material; never nil.
func (inst *Instance) Material() *Material { return inst.material }

func (inst *Instance) Layers() []LayerDefinition { return inst.layers }
func (inst *Instance) Transform() mgl32.Mat4     { return inst.transform }

// SetMaterial assigns a material, or the scene default when nil. Usage counts
// on the affected material shaders are adjusted accordingly.
func (inst *Instance) SetMaterial(mtl *Material) {
	inst.scene.setInstanceMaterial(inst, mtl)
	inst.dirty = true
}

func (inst *Instance) SetTransform(transform mgl32.Mat4) {
	inst.transform = transform
	inst.dirty = true
	inst.scene.noteInstanceChanged(inst)
}

// SetObjectIdentifier stores an application-defined identifier. The value is
// reserved in the data model and has no effect on compilation.
func (inst *Instance) SetObjectIdentifier(id int) {
	inst.objectID = id
}

func (inst *Instance) ObjectIdentifier() int { return inst.objectID }

func (inst *Instance) IsDirty() bool { return inst.dirty }

// Update refreshes the instance's material and layers and clears the dirty
// flag. Whether those were themselves dirty does not affect the return value.
func (inst *Instance) Update() bool {
	inst.material.Update()
	for _, layer := range inst.layers {
		if layer.Material != nil {
			layer.Material.Update()
		}
		if layer.Geometry != nil {
			layer.Geometry.Update()
		}
	}

	wasDirty := inst.dirty
	inst.dirty = false
	return wasDirty
}
