package core

import (
	"fmt"
	"hash/fnv"
)

// EntryPoint names the shader entry points that carry usage counts.
type EntryPoint string

const (
	EntryPointInitializeMaterial EntryPoint = "initializeMaterial"
	EntryPointLayerMiss          EntryPoint = "layerMiss"
)

// Shader-table roles resolved through the library by name.
const (
	InstanceHitGroupName = "InstanceHitGroup"
	ShadowMissName       = "ShadowMiss"
)

// ShaderIdentifierSize is the size of an opaque shader identifier embedded at
// the start of every shader-table record.
const ShaderIdentifierSize = 32

type ShaderIdentifier [ShaderIdentifierSize]byte

// NullShaderIdentifier is the all-zero identifier used for the null miss
// shader at miss record 0.
var NullShaderIdentifier ShaderIdentifier

// MaterialShader is a compiled material shader with a stable library index
// and per-entry-point usage counts. The shader is released from its library
// only when all counts reach zero.
type MaterialShader struct {
	name         string
	libraryIndex int
	refCounts    map[EntryPoint]int
}

func (s *MaterialShader) Name() string      { return s.name }
func (s *MaterialShader) LibraryIndex() int { return s.libraryIndex }

func (s *MaterialShader) IncrementRefCount(ep EntryPoint) {
	s.refCounts[ep]++
}

func (s *MaterialShader) DecrementRefCount(ep EntryPoint) int {
	if s.refCounts[ep] <= 0 {
		return 0
	}
	s.refCounts[ep]--
	return s.refCounts[ep]
}

func (s *MaterialShader) RefCount(ep EntryPoint) int { return s.refCounts[ep] }

func (s *MaterialShader) TotalRefCount() int {
	total := 0
	for _, c := range s.refCounts {
		total += c
	}
	return total
}

// PropertySpec describes one named uniform value in a material definition.
type PropertySpec struct {
	Name    string
	Count   int // number of float32 components
	Default []float32
}

// TextureSpec describes one texture slot in a material definition.
type TextureSpec struct {
	Name            string
	DefaultFilename string
	AddressModeU    string
	AddressModeV    string
	Linearize       bool
}

// MaterialDefinition carries the uniform layout and texture slots of a
// material type. The uniform payload written to the global material buffer is
// laid out in property declaration order.
type MaterialDefinition struct {
	Name       string
	Properties []PropertySpec
	Textures   []TextureSpec

	offsets map[string]int // float32 offsets per property
	size    int            // total float32 count
}

func (d *MaterialDefinition) buildOffsets() {
	d.offsets = make(map[string]int, len(d.Properties))
	off := 0
	for _, p := range d.Properties {
		d.offsets[p.Name] = off
		off += p.Count
	}
	d.size = off
}

// UniformFloatCount returns the number of float32 values in the uniform
// payload.
func (d *MaterialDefinition) UniformFloatCount() int { return d.size }

func (d *MaterialDefinition) propertyOffset(name string) (int, int, bool) {
	off, ok := d.offsets[name]
	if !ok {
		return 0, 0, false
	}
	for _, p := range d.Properties {
		if p.Name == name {
			return off, p.Count, true
		}
	}
	return 0, 0, false
}

// ShaderLibrary owns the compiled material shaders and the shader identifiers
// queried by the shader-table builder. It is passed explicitly to whoever
// needs identifiers; there is no ambient global lookup.
type ShaderLibrary struct {
	log Logger

	shaders     []*MaterialShader
	byName      map[string]*MaterialShader
	identifiers map[string]ShaderIdentifier
	builtIns    map[string]*MaterialDefinition
	units       map[string]int
	options     map[string]any
}

func NewShaderLibrary(log Logger) *ShaderLibrary {
	lib := &ShaderLibrary{
		log:         log,
		byName:      make(map[string]*MaterialShader),
		identifiers: make(map[string]ShaderIdentifier),
		builtIns:    make(map[string]*MaterialDefinition),
		units: map[string]int{
			"millimeter": 0,
			"centimeter": 1,
			"meter":      2,
			"kilometer":  3,
			"inch":       4,
			"foot":       5,
		},
		options: make(map[string]any),
	}

	lib.registerIdentifier(InstanceHitGroupName)
	lib.registerIdentifier(ShadowMissName)
	registerBuiltIns(lib)
	return lib
}

// registerIdentifier derives a stable, non-null identifier for a shader role.
func (lib *ShaderLibrary) registerIdentifier(name string) {
	var id ShaderIdentifier
	h := fnv.New64a()
	for i := 0; i < ShaderIdentifierSize; i += 8 {
		h.Write([]byte(name))
		copy(id[i:i+8], h.Sum(nil))
	}
	lib.identifiers[name] = id
}

// ShaderID returns the identifier for a named shader role.
func (lib *ShaderLibrary) ShaderID(name string) (ShaderIdentifier, bool) {
	id, ok := lib.identifiers[name]
	return id, ok
}

// RegisterBuiltIn adds a built-in material definition to the library.
func (lib *ShaderLibrary) RegisterBuiltIn(def *MaterialDefinition) {
	def.buildOffsets()
	lib.builtIns[def.Name] = def
}

// BuiltInDefinition returns the definition for a built-in material type.
func (lib *ShaderLibrary) BuiltInDefinition(builtInType string) (*MaterialDefinition, bool) {
	def, ok := lib.builtIns[builtInType]
	return def, ok
}

// AcquireShader returns the shader for a material definition, creating it on
// first use. Entry-point references are counted per instance assignment, not
// here.
func (lib *ShaderLibrary) AcquireShader(def *MaterialDefinition) *MaterialShader {
	if s, ok := lib.byName[def.Name]; ok {
		return s
	}
	s := &MaterialShader{
		name:         def.Name,
		libraryIndex: len(lib.shaders),
		refCounts:    make(map[EntryPoint]int),
	}
	lib.shaders = append(lib.shaders, s)
	lib.byName[def.Name] = s
	return s
}

// ReleaseShader drops one reference on the given entry point and removes the
// shader from the name lookup once no entry point holds a reference. Library
// indices of other shaders are unaffected.
func (lib *ShaderLibrary) ReleaseShader(s *MaterialShader, ep EntryPoint) {
	s.DecrementRefCount(ep)
	if s.TotalRefCount() == 0 {
		delete(lib.byName, s.name)
	}
}

// UnitIndex validates a distance unit name against the known units.
func (lib *ShaderLibrary) UnitIndex(unit string) (int, error) {
	idx, ok := lib.units[unit]
	if !ok {
		return 0, fmt.Errorf("invalid unit: %s", unit)
	}
	return idx, nil
}

// SetOption stores a code-generation option.
func (lib *ShaderLibrary) SetOption(name string, value any) {
	lib.options[name] = value
}

func (lib *ShaderLibrary) Option(name string) (any, bool) {
	v, ok := lib.options[name]
	return v, ok
}

// Built-in material type names.
const (
	BuiltInDefault = "Default"
	BuiltInGlass   = "Glass"
)

func registerBuiltIns(lib *ShaderLibrary) {
	lib.RegisterBuiltIn(&MaterialDefinition{
		Name: BuiltInDefault,
		Properties: []PropertySpec{
			{Name: "base_color", Count: 3, Default: []float32{0.8, 0.8, 0.8}},
			{Name: "roughness", Count: 1, Default: []float32{0.5}},
			{Name: "metalness", Count: 1, Default: []float32{0.0}},
			{Name: "specular_level", Count: 1, Default: []float32{0.5}},
			{Name: "opacity", Count: 1, Default: []float32{1.0}},
			{Name: "emission_color", Count: 3, Default: []float32{0, 0, 0}},
		},
		Textures: []TextureSpec{
			{Name: "base_color_image", AddressModeU: AddressModeWrap, AddressModeV: AddressModeWrap, Linearize: true},
			{Name: "roughness_image", AddressModeU: AddressModeWrap, AddressModeV: AddressModeWrap},
			{Name: "normal_image"},
			{Name: "opacity_image"},
		},
	})
	lib.RegisterBuiltIn(&MaterialDefinition{
		Name: BuiltInGlass,
		Properties: []PropertySpec{
			{Name: "base_color", Count: 3, Default: []float32{1, 1, 1}},
			{Name: "roughness", Count: 1, Default: []float32{0.05}},
			{Name: "ior", Count: 1, Default: []float32{1.5}},
			{Name: "transmission", Count: 1, Default: []float32{1.0}},
		},
	})
}
