package gpu

import "github.com/evanburkert/Aurora/rt/core"

// renderableInstances returns the active instances whose geometry can be
// traced. Instances of incomplete geometry are held back until the geometry
// gains vertex data; their hit group index is the position in this slice.
func renderableInstances(scene *core.Scene) []*core.Instance {
	active := scene.Instances.Active()
	out := make([]*core.Instance, 0, len(active))
	for _, inst := range active {
		if inst.Geometry().Incomplete() || inst.Geometry().BLAS() == nil {
			continue
		}
		out = append(out, inst)
	}
	return out
}

func instanceRecordSize(inst *core.Instance) int {
	return InstanceDataHeaderSize + len(inst.Layers())*LayerDataSize
}

// computeInstanceOffsets assigns each renderable instance a byte offset in
// the instance data buffer and returns the total size.
func computeInstanceOffsets(instances []*core.Instance) (map[*core.Instance]int, int) {
	offsets := make(map[*core.Instance]int, len(instances))
	size := 0
	for _, inst := range instances {
		offsets[inst] = size
		size += instanceRecordSize(inst)
	}
	return offsets, size
}

// packInstances serializes the instance data records: a header with the
// transposed transform and material offset, then one entry per layer. A
// material without an offset in the material buffer is fatal; the material
// pass runs before this one.
func packInstances(log core.Logger, buf *TransferBuffer, instances []*core.Instance,
	offsets map[*core.Instance]int, size int, materialOffsets map[*core.Material]int) {

	buf.Reserve(size)
	data := buf.Bytes()

	for _, inst := range instances {
		off, ok := offsets[inst]
		if !ok {
			log.Fatalf("no instance buffer offset for instance of %s", inst.Geometry().Name())
		}

		mtlOff, ok := materialOffsets[inst.Material()]
		if !ok {
			log.Fatalf("no material buffer offset for material %s", inst.Material().Name())
		}

		layers := inst.Layers()
		putInstanceDataHeader(data, off, inst.Transform(), mtlOff, len(layers))
		for i, layer := range layers {
			layerMtl := layer.Material
			if layerMtl == nil {
				layerMtl = inst.Material()
			}
			layerOff, ok := materialOffsets[layerMtl]
			if !ok {
				log.Fatalf("no material buffer offset for layer material %s", layerMtl.Name())
			}
			putLayerData(data, off+InstanceDataHeaderSize+i*LayerDataSize, layerOff)
		}
	}
}

// packInstanceDescs serializes the 64-byte top-level instance descriptors.
// The hit group index of each instance is its position in the renderable
// order, matching the hit group shader table.
func packInstanceDescs(log core.Logger, instances []*core.Instance) []byte {
	data := make([]byte, len(instances)*InstanceDescSize)
	for i, inst := range instances {
		off := i * InstanceDescSize
		putInstanceDesc(data, off, inst.Transform(), i, i)

		blas, ok := inst.Geometry().BLAS().(AddressedHandle)
		if !ok {
			log.Fatalf("geometry %s has no addressable acceleration structure", inst.Geometry().Name())
		}
		putInstanceDescBLAS(data, off, blas.Address())
	}
	return data
}
