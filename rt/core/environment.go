package core

import "github.com/go-gl/mathgl/mgl32"

// DescriptorWriter is the slice of the descriptor heap handed to resources
// that populate their own descriptors.
type DescriptorWriter interface {
	WriteImage(slot int, img *Image)
}

// Environment holds the background and light images sampled on ray miss.
type Environment struct {
	name string

	lightImage      *Image
	backgroundImage *Image
	lightTop        mgl32.Vec3
	lightBottom     mgl32.Vec3
	backgroundTop   mgl32.Vec3
	backgroundBottom mgl32.Vec3

	dirty bool
}

func NewEnvironment(name string) *Environment {
	return &Environment{
		name:             name,
		lightTop:         mgl32.Vec3{1, 1, 1},
		lightBottom:      mgl32.Vec3{1, 1, 1},
		backgroundTop:    mgl32.Vec3{0.2, 0.3, 0.4},
		backgroundBottom: mgl32.Vec3{0.05, 0.05, 0.05},
		dirty:            true,
	}
}

func (e *Environment) Kind() Kind   { return KindEnvironment }
func (e *Environment) Name() string { return e.name }

func (e *Environment) SetLightImage(img *Image) {
	e.lightImage = img
	e.dirty = true
}

func (e *Environment) SetBackgroundImage(img *Image) {
	e.backgroundImage = img
	e.dirty = true
}

func (e *Environment) SetLightColors(top, bottom mgl32.Vec3) {
	e.lightTop, e.lightBottom = top, bottom
	e.dirty = true
}

func (e *Environment) SetBackgroundColors(top, bottom mgl32.Vec3) {
	e.backgroundTop, e.backgroundBottom = top, bottom
	e.dirty = true
}

func (e *Environment) LightImage() *Image      { return e.lightImage }
func (e *Environment) BackgroundImage() *Image { return e.backgroundImage }

// Update clears the dirty flag, returning whether descriptors need refresh.
func (e *Environment) Update() bool {
	wasDirty := e.dirty
	e.dirty = false
	return wasDirty
}

// EnvironmentDescriptorCount is the number of heap slots an environment
// occupies: one for the light image and one for the background image.
const EnvironmentDescriptorCount = 2

// DescriptorCount is the number of heap slots the environment occupies.
func (e *Environment) DescriptorCount() int { return EnvironmentDescriptorCount }

// PopulateDescriptors writes the environment descriptors starting at the
// given slot, substituting the fallback image for unset slots, and returns
// the next free slot.
func (e *Environment) PopulateDescriptors(w DescriptorWriter, first int, fallback *Image) int {
	light := e.lightImage
	if light == nil {
		light = fallback
	}
	background := e.backgroundImage
	if background == nil {
		background = fallback
	}
	w.WriteImage(first, light)
	w.WriteImage(first+1, background)
	return first + 2
}

// GroundPlane is an implicit shadow-catcher plane. The renderer default is
// disabled; setting a nil ground plane on the scene restores it.
type GroundPlane struct {
	enabled bool

	position mgl32.Vec3
	normal   mgl32.Vec3

	shadowColor     mgl32.Vec3
	shadowOpacity   float32
	reflectionColor mgl32.Vec3
	reflectionOpacity float32

	dirty bool
}

func NewGroundPlane(enabled bool) *GroundPlane {
	return &GroundPlane{
		enabled:       enabled,
		normal:        mgl32.Vec3{0, 1, 0},
		shadowColor:   mgl32.Vec3{0, 0, 0},
		shadowOpacity: 1.0,
		dirty:         true,
	}
}

func (g *GroundPlane) Kind() Kind    { return KindGroundPlane }
func (g *GroundPlane) Name() string  { return "GroundPlane" }
func (g *GroundPlane) Enabled() bool { return g.enabled }

func (g *GroundPlane) SetPlane(position, normal mgl32.Vec3) {
	g.position, g.normal = position, normal
	g.dirty = true
}

func (g *GroundPlane) SetShadow(color mgl32.Vec3, opacity float32) {
	g.shadowColor, g.shadowOpacity = color, opacity
	g.dirty = true
}

func (g *GroundPlane) SetReflection(color mgl32.Vec3, opacity float32) {
	g.reflectionColor, g.reflectionOpacity = color, opacity
	g.dirty = true
}

func (g *GroundPlane) Position() mgl32.Vec3 { return g.position }
func (g *GroundPlane) Normal() mgl32.Vec3   { return g.normal }

// Update clears the dirty flag.
func (g *GroundPlane) Update() bool {
	wasDirty := g.dirty
	g.dirty = false
	return wasDirty
}
