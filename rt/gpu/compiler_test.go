package gpu

import (
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanburkert/Aurora/rt/core"
)

type fakeBuffer struct {
	dev      *fakeDevice
	label    string
	size     int
	addr     uint64
	data     []byte
	writes   int
	released bool
}

func (b *fakeBuffer) Label() string   { return b.label }
func (b *fakeBuffer) Size() int       { return b.size }
func (b *fakeBuffer) Address() uint64 { return b.addr }
func (b *fakeBuffer) Release()        { b.released = true }

type fakeHeap struct {
	kind     DescriptorHeapKind
	count    int
	images   map[int]*core.Image
	samplers map[int]*core.Sampler
	released bool
}

func (h *fakeHeap) Count() int                            { return h.count }
func (h *fakeHeap) WriteImage(slot int, img *core.Image)  { h.images[slot] = img }
func (h *fakeHeap) WriteSampler(slot int, s *core.Sampler) { h.samplers[slot] = s }
func (h *fakeHeap) Release()                              { h.released = true }

type fakeAccel struct {
	descs    []byte
	count    int
	released bool
}

func (a *fakeAccel) Release() { a.released = true }

type fakeBLAS struct {
	addr     uint64
	released bool
}

func (b *fakeBLAS) Address() uint64 { return b.addr }
func (b *fakeBLAS) Release()        { b.released = true }

// fakeDevice records every call for assertions. Addresses are synthetic but
// unique, matching what the compiler needs from a real device.
type fakeDevice struct {
	nextAddr    uint64
	buffers     []*fakeBuffer
	heaps       []*fakeHeap
	accels      []*fakeAccel
	geomUploads int
	waits       int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{nextAddr: 0x1000}
}

func (d *fakeDevice) CreateBuffer(label string, size int) Buffer {
	d.nextAddr += 0x1000
	buf := &fakeBuffer{dev: d, label: label, size: size, addr: d.nextAddr, data: make([]byte, size)}
	d.buffers = append(d.buffers, buf)
	return buf
}

func (d *fakeDevice) WriteBuffer(buf Buffer, offset int, data []byte) {
	fb := buf.(*fakeBuffer)
	copy(fb.data[offset:], data)
	fb.writes++
}

func (d *fakeDevice) CreateDescriptorHeap(kind DescriptorHeapKind, count int) DescriptorHeap {
	h := &fakeHeap{
		kind:     kind,
		count:    count,
		images:   make(map[int]*core.Image),
		samplers: make(map[int]*core.Sampler),
	}
	d.heaps = append(d.heaps, h)
	return h
}

func (d *fakeDevice) UploadGeometry(g *core.Geometry) (core.GeometryBuffers, AddressedHandle, error) {
	d.geomUploads++
	var buffers core.GeometryBuffers
	next := func(present bool) uint64 {
		if !present {
			return 0
		}
		d.nextAddr += 0x1000
		return d.nextAddr
	}
	desc := g.Desc()
	buffers.Index = next(len(desc.Indices) > 0)
	buffers.Position = next(len(desc.Positions) > 0)
	buffers.Normal = next(len(desc.Normals) > 0)
	buffers.Tangent = next(len(desc.Tangents) > 0)
	buffers.TexCoord = next(len(desc.TexCoords) > 0)

	d.nextAddr += 0x1000
	return buffers, &fakeBLAS{addr: d.nextAddr}, nil
}

func (d *fakeDevice) BuildAccelerationStructure(instanceDescs []byte, count int) (AccelerationStructure, error) {
	a := &fakeAccel{descs: append([]byte(nil), instanceDescs...), count: count}
	d.accels = append(d.accels, a)
	return a, nil
}

func (d *fakeDevice) WaitIdle() { d.waits++ }

func (d *fakeDevice) bufferCreates() int { return len(d.buffers) }

func newCompilerScene(t *testing.T) (*core.Scene, *fakeDevice, *Compiler) {
	t.Helper()
	log := core.NewNopLogger()
	scene := core.NewScene(log, core.NewShaderLibrary(log), core.SceneOptions{})
	dev := newFakeDevice()
	compiler := NewCompiler(log, dev, scene, CompilerOptions{RendererDescriptorCount: 3})
	return scene, dev, compiler
}

func addTriangle(t *testing.T, scene *core.Scene, mtl *core.Material) *core.Instance {
	t.Helper()
	geom := scene.CreateGeometry("", core.GeometryDesc{
		Indices:   []uint32{0, 1, 2},
		Positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Normals:   []float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
	})
	inst, err := scene.AddInstance(geom, mtl, mgl32.Ident4(), nil)
	require.NoError(t, err)
	return inst
}

func TestCompileEmptyScene(t *testing.T) {
	scene, _, compiler := newCompilerScene(t)
	compiler.UpdateResources()

	assert.Nil(t, compiler.AccelerationStructure())

	_, stride, count := compiler.HitGroupShaderTable()
	assert.Equal(t, 96, stride)
	assert.Equal(t, 0, count)

	miss, stride, count := compiler.MissShaderTable()
	require.NotNil(t, miss)
	assert.Equal(t, 32, stride)
	assert.Equal(t, 2, count)

	data := miss.(*fakeBuffer).data
	require.Len(t, data, 64)
	for i := 0; i < 32; i++ {
		assert.Zero(t, data[i], "null miss record must be zeroed")
	}
	shadow, _ := scene.ShaderLibrary().ShaderID(core.ShadowMissName)
	assert.Equal(t, shadow[:], data[32:64])

	lights := compiler.LightBuffer()
	require.NotNil(t, lights)
	assert.Equal(t, LightBufferSize(), lights.Size())
	assert.Zero(t, binary.LittleEndian.Uint32(lights.(*fakeBuffer).data[:4]), "light count")

	// The default material is always packed.
	require.NotNil(t, compiler.MaterialBuffer())
	assert.GreaterOrEqual(t, compiler.MaterialBuffer().Size(), MaterialHeaderSize)
}

func TestCompileIsIdempotent(t *testing.T) {
	scene, dev, compiler := newCompilerScene(t)
	addTriangle(t, scene, nil)

	compiler.UpdateResources()
	creates := dev.bufferCreates()
	builds := len(dev.accels)
	uploads := dev.geomUploads
	heaps := len(dev.heaps)

	compiler.UpdateResources()
	compiler.UpdateResources()

	assert.Equal(t, creates, dev.bufferCreates(), "no buffer churn on unchanged scene")
	assert.Equal(t, builds, len(dev.accels), "no rebuild on unchanged scene")
	assert.Equal(t, uploads, dev.geomUploads)
	assert.Equal(t, heaps, len(dev.heaps))
}

func TestCompileSingleInstance(t *testing.T) {
	scene, dev, compiler := newCompilerScene(t)
	inst := addTriangle(t, scene, nil)
	compiler.UpdateResources()

	require.NotNil(t, compiler.AccelerationStructure())
	require.Len(t, dev.accels, 1)

	accel := dev.accels[0]
	assert.Equal(t, 1, accel.count)
	require.Len(t, accel.descs, InstanceDescSize)

	word0 := binary.LittleEndian.Uint32(accel.descs[48:])
	assert.EqualValues(t, 0, word0&0xFFFFFF, "instance id")
	assert.EqualValues(t, 0xFF, word0>>24, "visibility mask")
	word1 := binary.LittleEndian.Uint32(accel.descs[52:])
	assert.EqualValues(t, 0, word1&0xFFFFFF, "hit group index")

	blas, ok := inst.Geometry().BLAS().(AddressedHandle)
	require.True(t, ok)
	assert.Equal(t, blas.Address(), binary.LittleEndian.Uint64(accel.descs[56:]))

	// One hit record, pointing at the geometry buffers and instance 0.
	table, stride, count := compiler.HitGroupShaderTable()
	require.NotNil(t, table)
	assert.Equal(t, 1, count)
	data := table.(*fakeBuffer).data
	require.Len(t, data, stride)

	buffers := inst.Geometry().Buffers()
	assert.Equal(t, buffers.Index, binary.LittleEndian.Uint64(data[32:]))
	assert.Equal(t, buffers.Position, binary.LittleEndian.Uint64(data[40:]))
	assert.Equal(t, buffers.Normal, binary.LittleEndian.Uint64(data[48:]))
	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(data[72:]), "hasNormals")
	assert.EqualValues(t, 0, binary.LittleEndian.Uint32(data[76:]), "hasTangents")
	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(data[84:]), "isOpaque")
	assert.EqualValues(t, 0, binary.LittleEndian.Uint32(data[88:]), "instance offset")

	// The instance record references the material's offset.
	instBuf := compiler.InstanceBuffer().(*fakeBuffer).data
	require.Len(t, instBuf, InstanceDataHeaderSize)
	mtlOff := int32(binary.LittleEndian.Uint32(instBuf[TransformSize:]))
	assert.GreaterOrEqual(t, mtlOff, int32(0))
	assert.Zero(t, int32(binary.LittleEndian.Uint32(instBuf[TransformSize+4:])), "layer count")
}

func TestMaterialEditSkipsAccelRebuild(t *testing.T) {
	scene, dev, compiler := newCompilerScene(t)
	mtl, err := scene.CreateMaterial(core.MaterialTypeBuiltIn, core.BuiltInDefault, "m")
	require.NoError(t, err)
	addTriangle(t, scene, mtl)
	compiler.UpdateResources()

	builds := len(dev.accels)
	matWrites := compiler.MaterialBuffer().(*fakeBuffer).writes

	require.NoError(t, mtl.SetProperty("base_color", 1, 0, 0))
	compiler.UpdateResources()

	assert.Equal(t, builds, len(dev.accels), "material edits must not rebuild the acceleration structure")
	assert.Greater(t, compiler.MaterialBuffer().(*fakeBuffer).writes, matWrites)
}

func TestTransformEditRebuildsAccel(t *testing.T) {
	scene, dev, compiler := newCompilerScene(t)
	inst := addTriangle(t, scene, nil)
	compiler.UpdateResources()

	first := dev.accels[0]
	waits := dev.waits

	inst.SetTransform(mgl32.Translate3D(5, 0, 0))
	compiler.UpdateResources()

	require.Len(t, dev.accels, 2)
	assert.True(t, first.released, "stale structure must be released")
	assert.Greater(t, dev.waits, waits, "device must drain before release")

	// The new descriptor carries the new transform.
	descs := dev.accels[1].descs
	tx := f32At(descs, 3*4)
	assert.EqualValues(t, 5, tx)
}

func TestTextureIndicesStartAfterDefault(t *testing.T) {
	scene, _, compiler := newCompilerScene(t)
	mtl, err := scene.CreateMaterial(core.MaterialTypeBuiltIn, core.BuiltInDefault, "textured")
	require.NoError(t, err)
	addTriangle(t, scene, mtl)

	img, err := core.NewImageFromPixels("checker", 1, 1, []byte{128, 128, 128, 255})
	require.NoError(t, err)
	require.NoError(t, mtl.SetImage("base_color_image", img))

	compiler.UpdateResources()

	images, indices := resolveTextures(scene)
	assert.Same(t, scene.DefaultImage(), images[0])
	assert.Equal(t, 0, indices[scene.DefaultImage()])
	assert.Equal(t, 1, indices[img], "first bound image follows the default")

	// The material header records the resolved index.
	matData := compiler.MaterialBuffer().(*fakeBuffer).data
	off := 0
	for _, m := range scene.Materials.Active() {
		if m == mtl {
			break
		}
		off += materialRecordSize(m)
	}
	slot0 := int32(binary.LittleEndian.Uint32(matData[off+4:]))
	assert.EqualValues(t, 1, slot0)
}

func TestDescriptorHeapLayout(t *testing.T) {
	scene, dev, compiler := newCompilerScene(t)
	addTriangle(t, scene, nil)
	compiler.UpdateResources()

	var texHeap, samplerHeap *fakeHeap
	for _, h := range dev.heaps {
		switch h.kind {
		case DescriptorHeapTextures:
			texHeap = h
		case DescriptorHeapSamplers:
			samplerHeap = h
		}
	}
	require.NotNil(t, texHeap)
	require.NotNil(t, samplerHeap)

	// Renderer slots, two environment slots, then the default image.
	assert.Equal(t, 3+core.EnvironmentDescriptorCount+1, texHeap.count)
	assert.Same(t, scene.DefaultImage(), texHeap.images[3], "unset light image falls back to the default")
	assert.Same(t, scene.DefaultImage(), texHeap.images[4], "unset background image falls back to the default")
	assert.Same(t, scene.DefaultImage(), texHeap.images[5], "texture index 0")

	assert.Same(t, scene.DefaultSampler(), samplerHeap.samplers[0])
}

func TestHeapRebuiltWhenTexturesChange(t *testing.T) {
	scene, dev, compiler := newCompilerScene(t)
	mtl, err := scene.CreateMaterial(core.MaterialTypeBuiltIn, core.BuiltInDefault, "m")
	require.NoError(t, err)
	addTriangle(t, scene, mtl)
	compiler.UpdateResources()

	heaps := len(dev.heaps)

	img, err := core.NewImageFromPixels("new", 1, 1, []byte{255, 0, 0, 255})
	require.NoError(t, err)
	require.NoError(t, mtl.SetImage("base_color_image", img))
	compiler.UpdateResources()

	assert.Greater(t, len(dev.heaps), heaps, "texture heap is recreated, not patched")
	last := dev.heaps[len(dev.heaps)-1]
	assert.Same(t, img, last.images[last.count-1])
}

func TestLightBufferTracksReleases(t *testing.T) {
	scene, _, compiler := newCompilerScene(t)
	light, err := scene.AddLight(core.LightTypeDistant)
	require.NoError(t, err)
	compiler.UpdateResources()

	data := compiler.LightBuffer().(*fakeBuffer).data
	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(data[:4]))

	light.Release()
	compiler.UpdateResources()

	data = compiler.LightBuffer().(*fakeBuffer).data
	assert.EqualValues(t, 0, binary.LittleEndian.Uint32(data[:4]))
}

func TestLightBufferNeverReallocates(t *testing.T) {
	scene, _, compiler := newCompilerScene(t)
	compiler.UpdateResources()
	buf := compiler.LightBuffer()

	for i := 0; i < core.MaxDistantLights; i++ {
		_, err := scene.AddLight(core.LightTypeDistant)
		require.NoError(t, err)
	}
	compiler.UpdateResources()

	assert.Same(t, buf, compiler.LightBuffer(), "light buffer is fixed size")
}

func TestMaterialBufferGrowsOnly(t *testing.T) {
	scene, _, compiler := newCompilerScene(t)
	mtl, err := scene.CreateMaterial(core.MaterialTypeBuiltIn, core.BuiltInDefault, "a")
	require.NoError(t, err)
	inst := addTriangle(t, scene, mtl)
	compiler.UpdateResources()

	grown := compiler.MaterialBuffer()

	// Fewer active materials: the buffer is reused, not shrunk.
	scene.RemoveInstance(inst)
	compiler.UpdateResources()
	assert.Same(t, grown, compiler.MaterialBuffer())
}

func TestIncompleteGeometryIsHeldBack(t *testing.T) {
	scene, dev, compiler := newCompilerScene(t)
	empty := scene.CreateGeometry("empty", core.GeometryDesc{})
	_, err := scene.AddInstance(empty, nil, mgl32.Ident4(), nil)
	require.NoError(t, err)

	compiler.UpdateResources()

	assert.Nil(t, compiler.AccelerationStructure())
	assert.Zero(t, dev.geomUploads)
	_, _, count := compiler.HitGroupShaderTable()
	assert.Zero(t, count)
}

func TestLayeredInstanceRecords(t *testing.T) {
	scene, _, compiler := newCompilerScene(t)
	base, err := scene.CreateMaterial(core.MaterialTypeBuiltIn, core.BuiltInDefault, "base")
	require.NoError(t, err)
	layer, err := scene.CreateMaterial(core.MaterialTypeBuiltIn, core.BuiltInGlass, "coat")
	require.NoError(t, err)

	geom := scene.CreateGeometry("tri", core.GeometryDesc{
		Indices:   []uint32{0, 1, 2},
		Positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
	})
	_, err = scene.AddInstance(geom, base, mgl32.Ident4(), []core.LayerDefinition{{Material: layer}})
	require.NoError(t, err)

	compiler.UpdateResources()

	instData := compiler.InstanceBuffer().(*fakeBuffer).data
	require.Len(t, instData, InstanceDataHeaderSize+LayerDataSize)
	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(instData[TransformSize+4:]), "layer count")
	assert.EqualValues(t, ReservedUVSlot, int32(binary.LittleEndian.Uint32(instData[InstanceDataHeaderSize+4:])))

	// Layered instances are never opaque at the record level.
	table, _, _ := compiler.HitGroupShaderTable()
	data := table.(*fakeBuffer).data
	assert.EqualValues(t, 0, binary.LittleEndian.Uint32(data[84:]), "isOpaque")
}

func TestSharedMaterialSecondInstance(t *testing.T) {
	scene, _, compiler := newCompilerScene(t)
	mtl, err := scene.CreateMaterial(core.MaterialTypeBuiltIn, core.BuiltInDefault, "shared")
	require.NoError(t, err)
	addTriangle(t, scene, mtl)
	compiler.UpdateResources()

	matBuf := compiler.MaterialBuffer()
	instSize := compiler.InstanceBuffer().Size()
	_, _, count := compiler.HitGroupShaderTable()
	require.Equal(t, 1, count)

	addTriangle(t, scene, mtl)
	compiler.UpdateResources()

	assert.Same(t, matBuf, compiler.MaterialBuffer(), "shared material adds no material data")
	assert.Equal(t, instSize+InstanceDataHeaderSize, compiler.InstanceBuffer().Size())
	_, _, count = compiler.HitGroupShaderTable()
	assert.Equal(t, 2, count)
}

func TestTransferBufferGrowth(t *testing.T) {
	dev := newFakeDevice()
	tb := NewTransferBuffer("test")

	tb.Reserve(64)
	first := tb.Flush(dev)
	require.NotNil(t, first)

	// Same or smaller requirement reuses the allocation.
	tb.Reserve(32)
	assert.Same(t, first, tb.Flush(dev))

	// Larger requirement reallocates once and releases the old buffer.
	tb.Reserve(128)
	second := tb.Flush(dev)
	assert.NotSame(t, first, second)
	assert.True(t, first.(*fakeBuffer).released)
	assert.Equal(t, 128, second.Size())
}
