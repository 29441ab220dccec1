package core

import "github.com/go-gl/mathgl/mgl32"

// Light type names accepted by Scene.AddLight.
const LightTypeDistant = "DistantLight"

// MaxDistantLights is the number of distant light slots in the light data
// buffer. Lights sorted past this limit are ignored.
const MaxDistantLights = 4

// DistantLight is a directional light identified by a monotonically
// increasing creation index, used only for deterministic ordering. The scene
// holds it weakly: callers release the light when done and the compiler
// prunes dead entries during the next pass.
type DistantLight struct {
	index int

	direction       mgl32.Vec3
	color           mgl32.Vec3
	intensity       float32
	angularDiameter float32

	dirty    bool
	released bool
}

func newDistantLight(index int) *DistantLight {
	return &DistantLight{
		index:           index,
		direction:       mgl32.Vec3{0, -1, 0},
		color:           mgl32.Vec3{1, 1, 1},
		intensity:       1.0,
		angularDiameter: 0.1,
		dirty:           true,
	}
}

func (l *DistantLight) Kind() Kind   { return KindLight }
func (l *DistantLight) Name() string { return LightTypeDistant }
func (l *DistantLight) Index() int   { return l.index }

func (l *DistantLight) Direction() mgl32.Vec3  { return l.direction }
func (l *DistantLight) Color() mgl32.Vec3      { return l.color }
func (l *DistantLight) Intensity() float32     { return l.intensity }
func (l *DistantLight) AngularDiameter() float32 { return l.angularDiameter }

func (l *DistantLight) SetDirection(dir mgl32.Vec3) {
	l.direction = dir
	l.dirty = true
}

func (l *DistantLight) SetColor(color mgl32.Vec3) {
	l.color = color
	l.dirty = true
}

func (l *DistantLight) SetIntensity(intensity float32) {
	l.intensity = intensity
	l.dirty = true
}

func (l *DistantLight) SetAngularDiameter(radians float32) {
	l.angularDiameter = radians
	l.dirty = true
}

// IsDirty reports whether the light changed since the compiler last consumed
// it.
func (l *DistantLight) IsDirty() bool  { return l.dirty }
func (l *DistantLight) ClearDirtyFlag() { l.dirty = false }

// Release marks the light as dropped by its external holder. The registry
// entry is pruned during the next compile pass, which forces a lights-buffer
// rebuild even if no other light changed.
func (l *DistantLight) Release() { l.released = true }

// Alive is the liveness query the compiler uses before touching the light.
func (l *DistantLight) Alive() bool { return !l.released }
