package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/evanburkert/Aurora/rt/core"
)

// Binary layout sizes. Shaders index the packed buffers by byte offset, so
// every size here is load-bearing.
const (
	// ShaderRecordAlignment is the required alignment of shader table
	// records and strides.
	ShaderRecordAlignment = 32

	// InstanceDescSize is the size of one top-level instance descriptor.
	InstanceDescSize = 64

	// TransformSize is the 3x4 transposed transform embedded in instance
	// descriptors and instance data headers.
	TransformSize = 48

	// MaterialHeaderSize is the fixed header preceding each material's
	// uniform payload in the global material buffer.
	MaterialHeaderSize = 32

	// MaterialRecordAlignment aligns each material record so shaders can
	// load the header with vectorized reads.
	MaterialRecordAlignment = 16

	// InstanceDataHeaderSize is the fixed header of each instance data
	// record: the transform plus material offset and layer count.
	InstanceDataHeaderSize = TransformSize + 8

	// LayerDataSize is the per-layer entry appended after an instance data
	// header.
	LayerDataSize = 8

	// HitGroupRecordSize is the packed size of one hit group record before
	// stride alignment.
	HitGroupRecordSize = core.ShaderIdentifierSize + 5*8 + 5*4

	// MissRecordCount is the two built-in miss records: the null miss and
	// the shadow miss.
	MissRecordCount = 2

	// LightBufferHeaderSize precedes the packed light array: the light
	// count and three words of padding.
	LightBufferHeaderSize = 16

	// DistantLightSize is one packed distant light.
	DistantLightSize = 32

	// InvalidTextureIndex marks an unbound texture slot in a material
	// header.
	InvalidTextureIndex = -1

	// ReservedUVSlot is the placeholder written to the per-layer UV offset
	// slot until layer geometry carries its own texture coordinates.
	ReservedUVSlot = -1
)

// HitGroupRecordStride is the aligned distance between hit group records.
func HitGroupRecordStride() int { return alignTo(HitGroupRecordSize, ShaderRecordAlignment) }

// MissRecordStride is the aligned distance between miss records.
func MissRecordStride() int { return alignTo(core.ShaderIdentifierSize, ShaderRecordAlignment) }

// LightBufferSize is the fixed size of the light constant buffer: the header
// plus the maximum light count, so the buffer never reallocates as lights
// come and go.
func LightBufferSize() int { return LightBufferHeaderSize + core.MaxDistantLights*DistantLightSize }

func alignTo(n, alignment int) int {
	return (n + alignment - 1) / alignment * alignment
}

func putUint32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:], v)
}

func putUint64(buf []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(buf[off:], v)
}

func putInt32(buf []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(buf[off:], uint32(v))
}

func putFloat32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}

func putVec3(buf []byte, off int, v mgl32.Vec3) {
	putFloat32(buf, off, v.X())
	putFloat32(buf, off+4, v.Y())
	putFloat32(buf, off+8, v.Z())
}

// putTransform3x4 writes the upper three rows of a transform in row-major
// order, the transposed layout instance descriptors expect.
func putTransform3x4(buf []byte, off int, m mgl32.Mat4) {
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			putFloat32(buf, off+(r*4+c)*4, m.At(r, c))
		}
	}
}

// putInstanceDesc writes one 64-byte top-level instance descriptor.
func putInstanceDesc(buf []byte, off int, transform mgl32.Mat4, id, hitGroupIndex int) {
	putTransform3x4(buf, off, transform)
	// instance id in the low 24 bits, visibility mask 0xFF above it
	putUint32(buf, off+48, uint32(id)&0xFFFFFF|0xFF000000)
	// hit group index in the low 24 bits, flags zero
	putUint32(buf, off+52, uint32(hitGroupIndex)&0xFFFFFF)
	putUint64(buf, off+56, 0) // patched with the bottom-level address
}

// putInstanceDescBLAS patches the bottom-level address of a written
// descriptor.
func putInstanceDescBLAS(buf []byte, off int, address uint64) {
	putUint64(buf, off+56, address)
}

// putMaterialHeader writes the fixed material header: the shader's library
// index followed by seven texture indices, unbound slots marked invalid.
func putMaterialHeader(buf []byte, off int, shaderIndex int, textureIndices []int) {
	putInt32(buf, off, int32(shaderIndex))
	for slot := 0; slot < core.MaxMaterialTextures; slot++ {
		idx := InvalidTextureIndex
		if slot < len(textureIndices) {
			idx = textureIndices[slot]
		}
		putInt32(buf, off+4+slot*4, int32(idx))
	}
}

// putInstanceDataHeader writes the per-instance record header: the transposed
// transform, the instance's material offset in the material buffer and the
// layer count.
func putInstanceDataHeader(buf []byte, off int, transform mgl32.Mat4, materialOffset, layerCount int) {
	putTransform3x4(buf, off, transform)
	putInt32(buf, off+TransformSize, int32(materialOffset))
	putInt32(buf, off+TransformSize+4, int32(layerCount))
}

// putLayerData writes one per-layer entry: the layer material's offset and
// the reserved UV offset slot.
func putLayerData(buf []byte, off int, materialOffset int) {
	putInt32(buf, off, int32(materialOffset))
	putInt32(buf, off+4, ReservedUVSlot)
}

// putDistantLight writes one packed distant light. The direction is negated
// so shaders get the direction toward the light, and the angular diameter is
// stored as the cosine of its half-angle.
func putDistantLight(buf []byte, off int, l *core.DistantLight) {
	putVec3(buf, off, l.Direction().Mul(-1))
	putFloat32(buf, off+12, float32(math.Cos(float64(l.AngularDiameter())*0.5)))
	putVec3(buf, off+16, l.Color())
	putFloat32(buf, off+28, l.Intensity())
}

// hitGroupRecordFields is everything in a hit group record after the shader
// identifier.
type hitGroupRecordFields struct {
	indexAddress    uint64
	positionAddress uint64
	normalAddress   uint64
	tangentAddress  uint64
	texCoordAddress uint64
	isOpaque        bool
	instanceOffset  int
}

// putHitGroupRecord writes one hit group record: the shader identifier, the
// geometry buffer addresses, the attribute flags and the instance's offset in
// the instance data buffer.
func putHitGroupRecord(buf []byte, off int, id core.ShaderIdentifier, f hitGroupRecordFields) {
	copy(buf[off:off+core.ShaderIdentifierSize], id[:])
	p := off + core.ShaderIdentifierSize
	putUint64(buf, p, f.indexAddress)
	putUint64(buf, p+8, f.positionAddress)
	putUint64(buf, p+16, f.normalAddress)
	putUint64(buf, p+24, f.tangentAddress)
	putUint64(buf, p+32, f.texCoordAddress)
	putUint32(buf, p+40, boolWord(f.normalAddress != 0))
	putUint32(buf, p+44, boolWord(f.tangentAddress != 0))
	putUint32(buf, p+48, boolWord(f.texCoordAddress != 0))
	putUint32(buf, p+52, boolWord(f.isOpaque))
	putUint32(buf, p+56, uint32(f.instanceOffset))
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
