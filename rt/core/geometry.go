package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// GeometryBuffers holds the device addresses of a geometry's vertex streams.
// A zero address means the stream is absent.
type GeometryBuffers struct {
	Index    uint64
	Position uint64
	Normal   uint64
	Tangent  uint64
	TexCoord uint64
}

// GeometryDesc is the CPU-side vertex data used to create a geometry.
// Positions and TexCoords are tightly packed (xyz and uv respectively).
type GeometryDesc struct {
	Indices   []uint32
	Positions []float32
	Normals   []float32
	Tangents  []float32
	TexCoords []float32
}

// Geometry owns one bottom-level acceleration structure and the vertex
// buffers referenced by hit-group shader records.
type Geometry struct {
	name string
	desc GeometryDesc

	buffers GeometryBuffers
	blas    Handle

	localMin mgl32.Vec3
	localMax mgl32.Vec3

	dirty bool
}

func NewGeometry(name string, desc GeometryDesc) *Geometry {
	g := &Geometry{name: name, desc: desc, dirty: true}
	g.computeBounds()
	return g
}

func (g *Geometry) Kind() Kind   { return KindGeometry }
func (g *Geometry) Name() string { return g.name }

// Incomplete reports whether the geometry is missing the data required to
// build its bottom-level structure.
func (g *Geometry) Incomplete() bool {
	return len(g.desc.Positions) == 0 || len(g.desc.Indices) == 0
}

func (g *Geometry) Desc() GeometryDesc      { return g.desc }
func (g *Geometry) Buffers() GeometryBuffers { return g.buffers }
func (g *Geometry) BLAS() Handle             { return g.blas }

// Bounds returns the object-space AABB of the geometry.
func (g *Geometry) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	return g.localMin, g.localMax
}

// SetBuffers records the uploaded vertex streams and bottom-level structure.
// Called by the compiler after the device upload completes.
func (g *Geometry) SetBuffers(buffers GeometryBuffers, blas Handle) {
	if g.blas != nil && g.blas != blas {
		g.blas.Release()
	}
	g.buffers = buffers
	g.blas = blas
}

// Update clears the dirty flag and reports whether the geometry needed a
// device refresh.
func (g *Geometry) Update() bool {
	wasDirty := g.dirty
	g.dirty = false
	return wasDirty
}

func (g *Geometry) Release() {
	if g.blas != nil {
		g.blas.Release()
		g.blas = nil
	}
}

func (g *Geometry) computeBounds() {
	inf := float32(1e30)
	minB := mgl32.Vec3{inf, inf, inf}
	maxB := mgl32.Vec3{-inf, -inf, -inf}
	for i := 0; i+2 < len(g.desc.Positions); i += 3 {
		p := mgl32.Vec3{g.desc.Positions[i], g.desc.Positions[i+1], g.desc.Positions[i+2]}
		minB = mgl32.Vec3{min(minB.X(), p.X()), min(minB.Y(), p.Y()), min(minB.Z(), p.Z())}
		maxB = mgl32.Vec3{max(maxB.X(), p.X()), max(maxB.Y(), p.Y()), max(maxB.Z(), p.Z())}
	}
	if len(g.desc.Positions) == 0 {
		minB, maxB = mgl32.Vec3{}, mgl32.Vec3{}
	}
	g.localMin, g.localMax = minB, maxB
}
