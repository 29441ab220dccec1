package bvh

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func nodeInt(data []byte, node int32, field int) int32 {
	off := node*NodeSize + 32 + int32(field)*4
	return int32(binary.LittleEndian.Uint32(data[off : off+4]))
}

func TestTwoInstancesSplit(t *testing.T) {
	// Two instances far apart on X
	aabbs := [][2]mgl32.Vec3{
		{{-100, -1, -1}, {-98, 1, 1}},
		{{100, -1, -1}, {102, 1, 1}},
	}

	builder := &Builder{}
	data := builder.Build(aabbs)

	// Root plus two leaves
	if len(data) != NodeSize*3 {
		t.Fatalf("Expected 192 bytes (3 nodes), got %d", len(data))
	}

	rootMin := make([]float32, 3)
	rootMax := make([]float32, 3)
	for i := 0; i < 3; i++ {
		rootMin[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
		rootMax[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[16+i*4 : 16+i*4+4]))
	}

	t.Logf("Root AABB: min=%v max=%v", rootMin, rootMax)

	if rootMin[0] > -100 {
		t.Errorf("Root min X should be <= -100, got %f", rootMin[0])
	}
	if rootMax[0] < 100 {
		t.Errorf("Root max X should be >= 100, got %f", rootMax[0])
	}

	leftIdx := nodeInt(data, 0, 0)
	rightIdx := nodeInt(data, 0, 1)
	if leftIdx == -1 || rightIdx == -1 {
		t.Error("Root should have two children")
	}
	if leftIdx == rightIdx {
		t.Error("Left and right indices should be different")
	}

	if nodeInt(data, leftIdx, 0) != -1 {
		t.Error("Left child should be a leaf")
	}
	if nodeInt(data, rightIdx, 0) != -1 {
		t.Error("Right child should be a leaf")
	}
}

func TestSingleInstance(t *testing.T) {
	data := (&Builder{}).Build([][2]mgl32.Vec3{{{0, 0, 0}, {1, 1, 1}}})

	if len(data) != NodeSize {
		t.Fatalf("Expected 64 bytes (1 node), got %d", len(data))
	}
	if nodeInt(data, 0, 0) != -1 || nodeInt(data, 0, 1) != -1 {
		t.Error("Root should be a leaf (left and right = -1)")
	}
	if nodeInt(data, 0, 2) != 0 || nodeInt(data, 0, 3) != 1 {
		t.Errorf("Leaf should reference instance 0, got first=%d count=%d",
			nodeInt(data, 0, 2), nodeInt(data, 0, 3))
	}
}

func TestEmptyHierarchy(t *testing.T) {
	data := (&Builder{}).Build(nil)
	if len(data) < NodeSize {
		t.Fatalf("Expected at least 64 bytes, got %d", len(data))
	}
}

func TestBuildTriangles(t *testing.T) {
	// Two triangles separated on X
	positions := []float32{
		-10, 0, 0, -9, 0, 0, -10, 1, 0,
		10, 0, 0, 11, 0, 0, 10, 1, 0,
	}
	indices := []uint32{0, 1, 2, 3, 4, 5}

	data := (&Builder{}).BuildTriangles(positions, indices)
	if len(data) != NodeSize*3 {
		t.Fatalf("Expected 3 nodes, got %d bytes", len(data))
	}

	// Every leaf must reference a valid triangle
	for n := int32(0); n < 3; n++ {
		if nodeInt(data, n, 0) != -1 {
			continue
		}
		first := nodeInt(data, n, 2)
		if first != 0 && first != 1 {
			t.Errorf("node %d: leaf references triangle %d", n, first)
		}
	}
}

func TestBuildTrianglesEmpty(t *testing.T) {
	data := (&Builder{}).BuildTriangles(nil, nil)
	if len(data) != NodeSize {
		t.Fatalf("Expected one empty node, got %d bytes", len(data))
	}
}
