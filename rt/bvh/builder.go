// Package bvh builds the bounding volume hierarchies the software tracing
// backend uploads in place of driver-built acceleration structures: one over
// the triangles of each geometry, one over the instances of the scene.
package bvh

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches the WGSL node layout:
// struct BVHNode {
//    aabb_min : vec4<f32>; (16)
//    aabb_max : vec4<f32>; (16)
//    left : i32; (4)
//    right : i32; (4)
//    leaf_first : i32; (4)
//    leaf_count : i32; (4)
//    padding : i32[2]; (8)
// }; -> 64 bytes

const NodeSize = 64

type Node struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

func (n *Node) ToBytes() []byte {
	buf := make([]byte, NodeSize)

	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))
	binary.LittleEndian.PutUint32(buf[12:16], 0)

	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))
	binary.LittleEndian.PutUint32(buf[28:32], 0)

	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.Left))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(n.Right))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(n.LeafFirst))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(n.LeafCount))

	return buf
}

type item struct {
	min      mgl32.Vec3
	max      mgl32.Vec3
	centroid mgl32.Vec3
	index    int
}

// Builder constructs median-split hierarchies, one leaf per item.
type Builder struct{}

// Build constructs a hierarchy over opaque bounding boxes. Leaf indices refer
// back to the input order.
func (b *Builder) Build(aabbs [][2]mgl32.Vec3) []byte {
	if len(aabbs) == 0 {
		return make([]byte, NodeSize)
	}

	items := make([]item, len(aabbs))
	for i, bounds := range aabbs {
		items[i] = item{
			min:      bounds[0],
			max:      bounds[1],
			centroid: bounds[0].Add(bounds[1]).Mul(0.5),
			index:    i,
		}
	}
	return b.serialize(items)
}

// BuildTriangles constructs a hierarchy over an indexed triangle mesh. Leaf
// indices are triangle numbers: leaf i covers indices[3i:3i+3].
func (b *Builder) BuildTriangles(positions []float32, indices []uint32) []byte {
	triCount := len(indices) / 3
	if triCount == 0 {
		return make([]byte, NodeSize)
	}

	items := make([]item, triCount)
	for i := 0; i < triCount; i++ {
		lo := mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
		hi := mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
		for k := 0; k < 3; k++ {
			v := indices[i*3+k]
			p := mgl32.Vec3{positions[v*3], positions[v*3+1], positions[v*3+2]}
			lo = mgl32.Vec3{minf(lo.X(), p.X()), minf(lo.Y(), p.Y()), minf(lo.Z(), p.Z())}
			hi = mgl32.Vec3{maxf(hi.X(), p.X()), maxf(hi.Y(), p.Y()), maxf(hi.Z(), p.Z())}
		}
		items[i] = item{min: lo, max: hi, centroid: lo.Add(hi).Mul(0.5), index: i}
	}
	return b.serialize(items)
}

func (b *Builder) serialize(items []item) []byte {
	nodes := []Node{}
	b.recursiveBuild(items, &nodes)

	out := make([]byte, 0, len(nodes)*NodeSize)
	for _, n := range nodes {
		out = append(out, n.ToBytes()...)
	}
	return out
}

func (b *Builder) recursiveBuild(items []item, nodes *[]Node) int32 {
	idx := int32(len(*nodes))
	*nodes = append(*nodes, Node{Left: -1, Right: -1, LeafFirst: -1, LeafCount: 0})

	minB := mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	maxB := mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
	for _, it := range items {
		minB = mgl32.Vec3{minf(minB.X(), it.min.X()), minf(minB.Y(), it.min.Y()), minf(minB.Z(), it.min.Z())}
		maxB = mgl32.Vec3{maxf(maxB.X(), it.max.X()), maxf(maxB.Y(), it.max.Y()), maxf(maxB.Z(), it.max.Z())}
	}

	(*nodes)[idx].Min = minB
	(*nodes)[idx].Max = maxB

	if len(items) == 1 {
		(*nodes)[idx].LeafFirst = int32(items[0].index)
		(*nodes)[idx].LeafCount = 1
		return idx
	}

	// Median split along the widest axis.
	extent := maxB.Sub(minB)
	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].centroid[axis] < items[j].centroid[axis]
	})

	mid := len(items) / 2
	(*nodes)[idx].Left = b.recursiveBuild(items[:mid], nodes)
	(*nodes)[idx].Right = b.recursiveBuild(items[mid:], nodes)

	return idx
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
