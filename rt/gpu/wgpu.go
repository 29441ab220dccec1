package gpu

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/evanburkert/Aurora/rt/bvh"
	"github.com/evanburkert/Aurora/rt/core"
)

// WebGPUDevice implements Device on wgpu. WebGPU has no driver-built
// acceleration structures, so the bottom- and top-level hierarchies are built
// on the CPU and uploaded as storage buffers. Buffers get synthetic addresses
// from a registry so shader records stay byte-compatible with hardware
// layouts.
type WebGPUDevice struct {
	log    core.Logger
	device *wgpu.Device
	queue  *wgpu.Queue

	mu        sync.Mutex
	nextAddr  uint64
	byAddress map[uint64]*wgpuBuffer
	blasAddrs map[uint64]*wgpuBLAS
}

func NewWebGPUDevice(log core.Logger, device *wgpu.Device) *WebGPUDevice {
	return &WebGPUDevice{
		log:       log,
		device:    device,
		queue:     device.GetQueue(),
		nextAddr:  0x1000,
		byAddress: make(map[uint64]*wgpuBuffer),
		blasAddrs: make(map[uint64]*wgpuBLAS),
	}
}

type wgpuBuffer struct {
	dev   *WebGPUDevice
	label string
	size  int
	addr  uint64
	buf   *wgpu.Buffer
}

func (b *wgpuBuffer) Label() string   { return b.label }
func (b *wgpuBuffer) Size() int       { return b.size }
func (b *wgpuBuffer) Address() uint64 { return b.addr }

func (b *wgpuBuffer) Release() {
	b.dev.mu.Lock()
	delete(b.dev.byAddress, b.addr)
	b.dev.mu.Unlock()
	b.buf.Release()
}

func (d *WebGPUDevice) createBuffer(label string, size int) *wgpuBuffer {
	allocSize := uint64(size)
	if allocSize%4 != 0 {
		allocSize += 4 - allocSize%4
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  allocSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		d.log.Fatalf("failed to create buffer %s (%d bytes): %v", label, size, err)
	}

	d.mu.Lock()
	addr := d.nextAddr
	d.nextAddr += (allocSize + 255) / 256 * 256
	wb := &wgpuBuffer{dev: d, label: label, size: size, addr: addr, buf: buf}
	d.byAddress[addr] = wb
	d.mu.Unlock()
	return wb
}

// BufferByAddress resolves a synthetic address back to its buffer, for the
// renderer binding the buffers a shader record points at.
func (d *WebGPUDevice) BufferByAddress(addr uint64) (*wgpu.Buffer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	wb, ok := d.byAddress[addr]
	if !ok {
		return nil, false
	}
	return wb.buf, true
}

func (d *WebGPUDevice) CreateBuffer(label string, size int) Buffer {
	return d.createBuffer(label, size)
}

func (d *WebGPUDevice) WriteBuffer(buf Buffer, offset int, data []byte) {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		d.log.Fatalf("foreign buffer %s passed to WebGPU device", buf.Label())
	}
	d.queue.WriteBuffer(wb.buf, uint64(offset), data)
}

type wgpuHeap struct {
	dev      *WebGPUDevice
	kind     DescriptorHeapKind
	count    int
	textures []*wgpu.Texture
	views    []*wgpu.TextureView
	samplers []*wgpu.Sampler
}

func (d *WebGPUDevice) CreateDescriptorHeap(kind DescriptorHeapKind, count int) DescriptorHeap {
	return &wgpuHeap{
		dev:      d,
		kind:     kind,
		count:    count,
		textures: make([]*wgpu.Texture, count),
		views:    make([]*wgpu.TextureView, count),
		samplers: make([]*wgpu.Sampler, count),
	}
}

func (h *wgpuHeap) Count() int { return h.count }

func (h *wgpuHeap) WriteImage(slot int, img *core.Image) {
	if slot < 0 || slot >= h.count {
		h.dev.log.Fatalf("descriptor slot %d out of range (heap has %d)", slot, h.count)
	}

	if h.textures[slot] != nil {
		h.views[slot].Release()
		h.textures[slot].Release()
	}

	format := wgpu.TextureFormatRGBA8Unorm
	if img.Linearize() {
		format = wgpu.TextureFormatRGBA8UnormSrgb
	}
	extent := wgpu.Extent3D{
		Width:              uint32(img.Width()),
		Height:             uint32(img.Height()),
		DepthOrArrayLayers: 1,
	}
	tex, err := h.dev.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         img.Name(),
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		h.dev.log.Fatalf("failed to create texture %s: %v", img.Name(), err)
	}

	h.dev.queue.WriteTexture(
		tex.AsImageCopy(),
		img.Pixels(),
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Width() * 4),
			RowsPerImage: uint32(img.Height()),
		},
		&extent,
	)

	h.textures[slot] = tex
	h.views[slot], err = tex.CreateView(nil)
	if err != nil {
		h.dev.log.Fatalf("failed to create view for texture %s: %v", img.Name(), err)
	}
}

func (h *wgpuHeap) WriteSampler(slot int, s *core.Sampler) {
	if slot < 0 || slot >= h.count {
		h.dev.log.Fatalf("descriptor slot %d out of range (heap has %d)", slot, h.count)
	}
	if h.samplers[slot] != nil {
		h.samplers[slot].Release()
	}

	sampler, err := h.dev.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         s.Name(),
		AddressModeU:  samplerAddressMode(s.AddressModeU()),
		AddressModeV:  samplerAddressMode(s.AddressModeV()),
		AddressModeW:  wgpu.AddressModeRepeat,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		h.dev.log.Fatalf("failed to create sampler %s: %v", s.Name(), err)
	}
	h.samplers[slot] = sampler
}

func samplerAddressMode(mode string) wgpu.AddressMode {
	switch mode {
	case core.AddressModeClamp:
		return wgpu.AddressModeClampToEdge
	case core.AddressModeMirror:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}

// View returns the texture view in a slot, nil when unwritten.
func (h *wgpuHeap) View(slot int) *wgpu.TextureView { return h.views[slot] }

// Sampler returns the sampler in a slot, nil when unwritten.
func (h *wgpuHeap) Sampler(slot int) *wgpu.Sampler { return h.samplers[slot] }

func (h *wgpuHeap) Release() {
	for i := range h.views {
		if h.views[i] != nil {
			h.views[i].Release()
			h.textures[i].Release()
		}
		if h.samplers[i] != nil {
			h.samplers[i].Release()
		}
	}
}

// wgpuBLAS is a CPU-built triangle hierarchy in a storage buffer, addressed
// like a driver-built bottom-level structure. The root bounds feed the
// top-level build.
type wgpuBLAS struct {
	dev      *WebGPUDevice
	buf      *wgpuBuffer
	min, max mgl32.Vec3
}

func (b *wgpuBLAS) Address() uint64 { return b.buf.Address() }

func (b *wgpuBLAS) Release() {
	b.dev.mu.Lock()
	delete(b.dev.blasAddrs, b.buf.Address())
	b.dev.mu.Unlock()
	b.buf.Release()
}

func (d *WebGPUDevice) UploadGeometry(g *core.Geometry) (core.GeometryBuffers, AddressedHandle, error) {
	desc := g.Desc()
	var buffers core.GeometryBuffers

	upload := func(suffix string, data []byte) uint64 {
		if len(data) == 0 {
			return 0
		}
		buf := d.createBuffer(g.Name()+suffix, len(data))
		d.queue.WriteBuffer(buf.buf, 0, data)
		return buf.Address()
	}

	buffers.Index = upload(".indices", uint32Bytes(desc.Indices))
	buffers.Position = upload(".positions", float32Bytes(desc.Positions))
	buffers.Normal = upload(".normals", float32Bytes(desc.Normals))
	buffers.Tangent = upload(".tangents", float32Bytes(desc.Tangents))
	buffers.TexCoord = upload(".texcoords", float32Bytes(desc.TexCoords))

	builder := &bvh.Builder{}
	nodes := builder.BuildTriangles(desc.Positions, desc.Indices)
	blasBuf := d.createBuffer(g.Name()+".blas", len(nodes))
	d.queue.WriteBuffer(blasBuf.buf, 0, nodes)

	lo, hi := g.Bounds()
	blas := &wgpuBLAS{dev: d, buf: blasBuf, min: lo, max: hi}
	d.mu.Lock()
	d.blasAddrs[blasBuf.Address()] = blas
	d.mu.Unlock()
	return buffers, blas, nil
}

type wgpuAccel struct {
	nodes *wgpuBuffer
	descs *wgpuBuffer
}

// Nodes returns the top-level hierarchy buffer bound by the tracing shader.
func (a *wgpuAccel) Nodes() *wgpu.Buffer { return a.nodes.buf }

// InstanceDescs returns the packed instance descriptors the shader walks
// alongside the hierarchy.
func (a *wgpuAccel) InstanceDescs() *wgpu.Buffer { return a.descs.buf }

func (a *wgpuAccel) Release() {
	a.nodes.Release()
	a.descs.Release()
}

func (d *WebGPUDevice) BuildAccelerationStructure(instanceDescs []byte, count int) (AccelerationStructure, error) {
	// World bounds per instance: the bottom-level root bounds pushed
	// through the instance transform.
	aabbs := make([][2]mgl32.Vec3, count)
	for i := 0; i < count; i++ {
		off := i * InstanceDescSize
		transform := readTransform3x4(instanceDescs, off)
		addr := binary.LittleEndian.Uint64(instanceDescs[off+56:])

		d.mu.Lock()
		blas := d.blasAddrs[addr]
		d.mu.Unlock()
		if blas == nil {
			d.log.Fatalf("instance %d references unknown bottom-level address %#x", i, addr)
		}

		aabbs[i] = transformAABB(transform, [2]mgl32.Vec3{blas.min, blas.max})
	}

	builder := &bvh.Builder{}
	nodes := builder.Build(aabbs)

	nodesBuf := d.createBuffer("TLASNodes", len(nodes))
	d.queue.WriteBuffer(nodesBuf.buf, 0, nodes)
	descsBuf := d.createBuffer("TLASInstanceDescs", len(instanceDescs))
	d.queue.WriteBuffer(descsBuf.buf, 0, instanceDescs)

	// The build is a queue submission; drain it so callers see a completed
	// structure.
	d.WaitIdle()
	return &wgpuAccel{nodes: nodesBuf, descs: descsBuf}, nil
}

func (d *WebGPUDevice) WaitIdle() {
	d.device.Poll(true, nil)
}

func readTransform3x4(buf []byte, off int) mgl32.Mat4 {
	m := mgl32.Ident4()
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			bits := binary.LittleEndian.Uint32(buf[off+(r*4+c)*4:])
			m.Set(r, c, math.Float32frombits(bits))
		}
	}
	return m
}

func transformAABB(m mgl32.Mat4, bounds [2]mgl32.Vec3) [2]mgl32.Vec3 {
	lo := mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	hi := mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
	for i := 0; i < 8; i++ {
		corner := mgl32.Vec3{bounds[i&1].X(), bounds[i>>1&1].Y(), bounds[i>>2&1].Z()}
		p := mgl32.TransformCoordinate(corner, m)
		for k := 0; k < 3; k++ {
			if p[k] < lo[k] {
				lo[k] = p[k]
			}
			if p[k] > hi[k] {
				hi[k] = p[k]
			}
		}
	}
	return [2]mgl32.Vec3{lo, hi}
}

func float32Bytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func uint32Bytes(v []uint32) []byte {
	buf := make([]byte, len(v)*4)
	for i, u := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], u)
	}
	return buf
}
