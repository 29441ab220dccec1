// Package gpu compiles a scene into the GPU resources a ray-tracing pipeline
// consumes each frame: the acceleration structure, packed constant buffers,
// descriptor heaps and shader tables.
package gpu

import "github.com/evanburkert/Aurora/rt/core"

// Buffer is a device buffer reachable from shaders by offset.
type Buffer interface {
	Label() string
	Size() int
	Address() uint64
	Release()
}

// DescriptorHeapKind selects which heap a descriptor write targets.
type DescriptorHeapKind int

const (
	DescriptorHeapTextures DescriptorHeapKind = iota
	DescriptorHeapSamplers
)

// DescriptorHeap is a fixed-size descriptor range. Heaps are discarded and
// recreated wholesale when the descriptor layout changes; they are never
// patched in place.
type DescriptorHeap interface {
	core.DescriptorWriter
	WriteSampler(slot int, s *core.Sampler)
	Count() int
	Release()
}

// AccelerationStructure is a built top-level structure ready for tracing.
type AccelerationStructure interface {
	Release()
}

// AddressedHandle is a device resource with a GPU virtual address, such as a
// bottom-level acceleration structure referenced from instance descriptors.
type AddressedHandle interface {
	Release()
	Address() uint64
}

// Device is the narrow surface the compiler drives. The WebGPU backend
// implements it for real hardware; tests substitute a recording fake.
type Device interface {
	// CreateBuffer allocates a buffer of exactly size bytes.
	CreateBuffer(label string, size int) Buffer

	// WriteBuffer uploads data into a buffer at the given offset.
	WriteBuffer(buf Buffer, offset int, data []byte)

	// CreateDescriptorHeap allocates a heap with count slots.
	CreateDescriptorHeap(kind DescriptorHeapKind, count int) DescriptorHeap

	// UploadGeometry creates the vertex and index buffers for a geometry and
	// builds its bottom-level acceleration structure.
	UploadGeometry(g *core.Geometry) (core.GeometryBuffers, AddressedHandle, error)

	// BuildAccelerationStructure builds a top-level structure from packed
	// 64-byte instance descriptors. It blocks until the build completes.
	BuildAccelerationStructure(instanceDescs []byte, count int) (AccelerationStructure, error)

	// WaitIdle blocks until all in-flight GPU work has drained. Called before
	// releasing resources the GPU may still reference.
	WaitIdle()
}
