package gpu

import "github.com/evanburkert/Aurora/rt/core"

// buildHitGroupTable packs one shader record per renderable instance, in the
// same order the instance descriptors were built so record i serves hit group
// index i. Writing past the reserved size is fatal.
func buildHitGroupTable(log core.Logger, buf *TransferBuffer, lib *core.ShaderLibrary,
	instances []*core.Instance, instanceOffsets map[*core.Instance]int) {

	id, ok := lib.ShaderID(core.InstanceHitGroupName)
	if !ok {
		log.Fatalf("shader library has no identifier for %s", core.InstanceHitGroupName)
	}

	stride := HitGroupRecordStride()
	buf.Reserve(stride * len(instances))
	data := buf.Bytes()

	for i, inst := range instances {
		off := i * stride
		if off+HitGroupRecordSize > len(data) {
			log.Fatalf("hit group table overrun: record %d ends at %d, table is %d bytes",
				i, off+HitGroupRecordSize, len(data))
		}

		instOff, ok := instanceOffsets[inst]
		if !ok {
			log.Fatalf("no instance buffer offset for instance of %s", inst.Geometry().Name())
		}

		// Layered instances always run the any-hit shader; the base
		// material alone decides opacity otherwise.
		opaque := inst.Material().IsOpaque() && len(inst.Layers()) == 0

		b := inst.Geometry().Buffers()
		putHitGroupRecord(data, off, id, hitGroupRecordFields{
			indexAddress:    b.Index,
			positionAddress: b.Position,
			normalAddress:   b.Normal,
			tangentAddress:  b.Tangent,
			texCoordAddress: b.TexCoord,
			isOpaque:        opaque,
			instanceOffset:  instOff,
		})
	}
}

// buildMissTable packs the two built-in miss records: the null miss with an
// all-zero identifier, then the shadow miss.
func buildMissTable(log core.Logger, buf *TransferBuffer, lib *core.ShaderLibrary) {
	shadow, ok := lib.ShaderID(core.ShadowMissName)
	if !ok {
		log.Fatalf("shader library has no identifier for %s", core.ShadowMissName)
	}

	stride := MissRecordStride()
	buf.Reserve(stride * MissRecordCount)
	data := buf.Bytes()

	// Record 0 stays zeroed: rays that want no miss shading use it.
	copy(data[stride:stride+core.ShaderIdentifierSize], shadow[:])
}
