package core

import (
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Material type names accepted by Scene.CreateMaterial.
const (
	MaterialTypeBuiltIn       = "BuiltIn"
	MaterialTypeMaterialX     = "MaterialX"
	MaterialTypeMaterialXPath = "MaterialXPath"
)

// ImageLoader resolves a texture filename to decoded pixels. A failed load is
// reported and the texture is skipped; it never fails material creation.
type ImageLoader func(filename string) (image.Image, error)

// Scene owns the active resource sets and everything the compiler builds from
// them. Scene-graph edits from multiple producer threads are serialized by a
// single mutex covering only bookkeeping; compilation runs on exactly one
// thread with no concurrent edits.
type Scene struct {
	mu  sync.Mutex
	log Logger

	shaderLib *ShaderLibrary
	loadImage ImageLoader

	Instances    *TrackedResources[*Instance]
	Materials    *TrackedResources[*Material]
	Geometry     *TrackedResources[*Geometry]
	Images       *TrackedResources[*Image]
	Environments *TrackedResources[*Environment]

	materialRefs map[*Material]int
	geometryRefs map[*Geometry]int
	imageRefs    map[*Image]int

	distantLights     map[int]*DistantLight
	currentLightIndex int

	environment        *Environment
	groundPlane        *GroundPlane
	defaultGroundPlane *GroundPlane

	defaultMaterial *Material
	defaultImage    *Image
	defaultSampler  *Sampler

	imageFlipY bool
}

// SceneOptions configure scene creation.
type SceneOptions struct {
	// LoadImage resolves default texture filenames; may be nil.
	LoadImage ImageLoader
	// FlipImageY mirrors loaded images vertically.
	FlipImageY bool
}

func NewScene(log Logger, shaderLib *ShaderLibrary, opts SceneOptions) *Scene {
	s := &Scene{
		log:           log,
		shaderLib:     shaderLib,
		loadImage:     opts.LoadImage,
		Instances:     NewTrackedResources[*Instance](),
		Materials:     NewTrackedResources[*Material](),
		Geometry:      NewTrackedResources[*Geometry](),
		Images:        NewTrackedResources[*Image](),
		Environments:  NewTrackedResources[*Environment](),
		materialRefs:  make(map[*Material]int),
		geometryRefs:  make(map[*Geometry]int),
		imageRefs:     make(map[*Image]int),
		distantLights: make(map[int]*DistantLight),
		imageFlipY:    opts.FlipImageY,
	}

	// The default image keeps the descriptor heap non-empty; the texture
	// resolver always assigns it index 0.
	white := []byte{255, 255, 255, 255}
	s.defaultImage, _ = NewImageFromPixels("DefaultImage", 1, 1, white)
	s.Images.Activate(s.defaultImage)

	s.defaultSampler = NewSampler("DefaultSampler", AddressModeWrap, AddressModeWrap)

	mtl, err := s.CreateMaterial(MaterialTypeBuiltIn, BuiltInDefault, "DefaultMaterial")
	if err != nil {
		log.Fatalf("default material creation failed: %v", err)
	}
	s.defaultMaterial = mtl
	s.mu.Lock()
	s.retainMaterialLocked(mtl)
	s.mu.Unlock()

	s.environment = NewEnvironment("DefaultEnvironment")
	s.Environments.Activate(s.environment)

	s.defaultGroundPlane = NewGroundPlane(false)
	s.groundPlane = s.defaultGroundPlane

	return s
}

func (s *Scene) Logger() Logger               { return s.log }
func (s *Scene) ShaderLibrary() *ShaderLibrary { return s.shaderLib }
func (s *Scene) DefaultMaterial() *Material   { return s.defaultMaterial }
func (s *Scene) DefaultImage() *Image         { return s.defaultImage }
func (s *Scene) DefaultSampler() *Sampler     { return s.defaultSampler }
func (s *Scene) Environment() *Environment    { return s.environment }
func (s *Scene) GroundPlane() *GroundPlane    { return s.groundPlane }

// CreateGeometry creates a geometry resource. The geometry becomes active
// once an instance references it.
func (s *Scene) CreateGeometry(name string, desc GeometryDesc) *Geometry {
	if name == "" {
		name = uuid.NewString()
	}
	return NewGeometry(name, desc)
}

// CreateImage converts pixels into an image resource.
func (s *Scene) CreateImage(name string, src image.Image, linearize bool) *Image {
	if name == "" {
		name = uuid.NewString()
	}
	return NewImage(name, src, ImageOptions{FlipY: s.imageFlipY, Linearize: linearize})
}

// CreateMaterial creates a material of the given type. Built-in types resolve
// through the shader library; generated (MaterialX) types are not supported
// by this build and are rejected.
func (s *Scene) CreateMaterial(materialType, document, name string) (*Material, error) {
	if name == "" {
		name = uuid.NewString()
	}

	switch materialType {
	case MaterialTypeBuiltIn:
		def, ok := s.shaderLib.BuiltInDefinition(document)
		if !ok {
			err := fmt.Errorf("unknown built-in material type %s for material %s", document, name)
			s.log.Errorf("%v", err)
			return nil, err
		}
		shader := s.shaderLib.AcquireShader(def)
		mtl := NewMaterial(name, shader, def)
		mtl.scene = s
		s.applyDefaultTextures(mtl, def)
		return mtl, nil

	case MaterialTypeMaterialX, MaterialTypeMaterialXPath:
		err := fmt.Errorf("generated material type %s is not supported for material %s", materialType, name)
		s.log.Errorf("%v", err)
		return nil, err

	default:
		err := fmt.Errorf("unrecognized material type %s for material %s", materialType, name)
		s.log.Errorf("%v", err)
		return nil, err
	}
}

func (s *Scene) applyDefaultTextures(mtl *Material, def *MaterialDefinition) {
	for i, spec := range def.Textures {
		if spec.DefaultFilename != "" && s.loadImage != nil {
			src, err := s.loadImage(spec.DefaultFilename)
			if err != nil {
				s.log.Errorf("failed to load image %s for material %s: %v", spec.DefaultFilename, mtl.Name(), err)
			} else {
				img := NewImage(spec.DefaultFilename, src, ImageOptions{FlipY: s.imageFlipY, Linearize: spec.Linearize})
				if err := mtl.SetImage(spec.Name, img); err != nil {
					s.log.Errorf("%v", err)
				}
			}
		}

		// Only the first two texture slots currently carry samplers.
		if i < 2 && (spec.AddressModeU != "" || spec.AddressModeV != "") {
			mtl.SetSampler(spec.Name+"_sampler", NewSampler(spec.Name+"_sampler", spec.AddressModeU, spec.AddressModeV))
		}
	}
}

// AddInstance creates an instance of a geometry and adds it to the active
// set. The material is optional; the scene default is substituted when nil.
func (s *Scene) AddInstance(geometry Resource, material Resource, transform mgl32.Mat4, layers []LayerDefinition) (*Instance, error) {
	geom, err := AsGeometry(geometry)
	if err != nil {
		s.log.Errorf("addInstance: %v", err)
		return nil, err
	}

	mtl := s.defaultMaterial
	if material != nil {
		mtl, err = AsMaterial(material)
		if err != nil {
			s.log.Errorf("addInstance: %v", err)
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inst := &Instance{
		scene:     s,
		geometry:  geom,
		material:  mtl,
		layers:    layers,
		transform: transform,
		dirty:     true,
	}

	s.retainGeometryLocked(geom)
	s.retainMaterialLocked(mtl)
	for _, layer := range layers {
		if layer.Material != nil {
			s.retainMaterialLocked(layer.Material)
		}
		if layer.Geometry != nil {
			s.retainGeometryLocked(layer.Geometry)
		}
	}

	s.Instances.Activate(inst)
	return inst, nil
}

// RemoveInstance drops an instance from the active set and releases its
// resource references.
func (s *Scene) RemoveInstance(inst *Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Instances.Deactivate(inst)
	s.releaseGeometryLocked(inst.geometry)
	s.releaseMaterialLocked(inst.material)
	for _, layer := range inst.layers {
		if layer.Material != nil {
			s.releaseMaterialLocked(layer.Material)
		}
		if layer.Geometry != nil {
			s.releaseGeometryLocked(layer.Geometry)
		}
	}
}

// AddLight creates a light of the given type. Only distant lights are
// supported; other types are rejected leaving the scene unchanged.
func (s *Scene) AddLight(lightType string) (*DistantLight, error) {
	if lightType != LightTypeDistant {
		err := fmt.Errorf("unsupported light type %s: only distant lights are supported", lightType)
		s.log.Errorf("%v", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The index gives lights a deterministic order independent of map
	// iteration.
	index := s.currentLightIndex
	s.currentLightIndex++

	light := newDistantLight(index)
	s.distantLights[index] = light
	return light, nil
}

// PruneLights removes released lights from the registry and returns the
// remaining lights sorted by creation index, along with whether the light
// data changed this frame. Dirty flags are consumed.
func (s *Scene) PruneLights() ([]*DistantLight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	lights := make([]*DistantLight, 0, len(s.distantLights))
	for index, light := range s.distantLights {
		if !light.Alive() {
			delete(s.distantLights, index)
			changed = true
			continue
		}
		if light.IsDirty() {
			changed = true
			light.ClearDirtyFlag()
		}
		lights = append(lights, light)
	}

	sort.Slice(lights, func(i, j int) bool {
		return lights[i].Index() < lights[j].Index()
	})
	return lights, changed
}

// SetEnvironment replaces the active environment; nil restores the default.
func (s *Scene) SetEnvironment(env *Environment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if env == nil {
		env = NewEnvironment("DefaultEnvironment")
	}
	if s.environment != nil && s.environment != env {
		s.Environments.Deactivate(s.environment)
	}
	s.environment = env
	s.Environments.Activate(env)
	s.Environments.SetModified(env)
}

// SetGroundPlane replaces the ground plane; nil restores the renderer
// default, which is disabled.
func (s *Scene) SetGroundPlane(gp *GroundPlane) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gp == nil {
		gp = s.defaultGroundPlane
	}
	s.groundPlane = gp
}

// SetUnit sets the distance unit used by generated shaders. An invalid unit
// is reported and rejected, leaving the prior unit in place.
func (s *Scene) SetUnit(unit string) error {
	idx, err := s.shaderLib.UnitIndex(unit)
	if err != nil {
		s.log.Errorf("%v", err)
		return err
	}
	s.shaderLib.SetOption("DISTANCE_UNIT", idx)
	return nil
}

// ResetTrackers clears all per-frame change signals. The compiler calls this
// once per pass, after every stage has consumed them.
func (s *Scene) ResetTrackers() {
	s.Instances.Reset()
	s.Materials.Reset()
	s.Geometry.Reset()
	s.Images.Reset()
	s.Environments.Reset()
}

func (s *Scene) setInstanceMaterial(inst *Instance, mtl *Material) {
	if mtl == nil {
		mtl = s.defaultMaterial
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if inst.material == mtl {
		s.Instances.SetModified(inst)
		return
	}
	if inst.material != nil {
		s.releaseMaterialLocked(inst.material)
	}
	inst.material = mtl
	s.retainMaterialLocked(mtl)
	s.Instances.SetModified(inst)
}

func (s *Scene) retainMaterialLocked(mtl *Material) {
	s.materialRefs[mtl]++
	if s.materialRefs[mtl] == 1 {
		s.Materials.Activate(mtl)
		for _, img := range mtl.Textures() {
			if img != nil {
				s.retainImageLocked(img)
			}
		}
	}
	mtl.Shader().IncrementRefCount(EntryPointInitializeMaterial)
}

func (s *Scene) releaseMaterialLocked(mtl *Material) {
	s.shaderLib.ReleaseShader(mtl.Shader(), EntryPointInitializeMaterial)
	s.materialRefs[mtl]--
	if s.materialRefs[mtl] <= 0 {
		delete(s.materialRefs, mtl)
		s.Materials.Deactivate(mtl)
		for _, img := range mtl.Textures() {
			if img != nil {
				s.releaseImageLocked(img)
			}
		}
	}
}

func (s *Scene) retainGeometryLocked(geom *Geometry) {
	s.geometryRefs[geom]++
	if s.geometryRefs[geom] == 1 {
		s.Geometry.Activate(geom)
	}
}

func (s *Scene) releaseGeometryLocked(geom *Geometry) {
	s.geometryRefs[geom]--
	if s.geometryRefs[geom] <= 0 {
		delete(s.geometryRefs, geom)
		s.Geometry.Deactivate(geom)
	}
}

func (s *Scene) retainImageLocked(img *Image) {
	s.imageRefs[img]++
	if s.imageRefs[img] == 1 {
		s.Images.Activate(img)
	}
}

func (s *Scene) releaseImageLocked(img *Image) {
	if img == s.defaultImage {
		return
	}
	s.imageRefs[img]--
	if s.imageRefs[img] <= 0 {
		delete(s.imageRefs, img)
		s.Images.Deactivate(img)
	}
}

func (s *Scene) noteInstanceChanged(inst *Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Instances.SetModified(inst)
}

func (s *Scene) noteMaterialChanged(mtl *Material, img *Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Materials.SetModified(mtl)
	if img != nil && s.materialRefs[mtl] > 0 {
		s.retainImageLocked(img)
	}
}
