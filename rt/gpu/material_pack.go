package gpu

import "github.com/evanburkert/Aurora/rt/core"

// resolveTextures assigns a descriptor index to every image bound by an
// active material, in material order. Index 0 is always the scene's default
// image, so a heap exists even when no material binds a texture.
func resolveTextures(scene *core.Scene) ([]*core.Image, map[*core.Image]int) {
	images := []*core.Image{scene.DefaultImage()}
	indices := map[*core.Image]int{scene.DefaultImage(): 0}

	for _, mtl := range scene.Materials.Active() {
		for _, img := range mtl.Textures() {
			if img == nil {
				continue
			}
			if _, ok := indices[img]; !ok {
				indices[img] = len(images)
				images = append(images, img)
			}
		}
	}
	return images, indices
}

func materialRecordSize(mtl *core.Material) int {
	return alignTo(MaterialHeaderSize+mtl.UniformSize(), MaterialRecordAlignment)
}

// packMaterials serializes every active material into the staging buffer and
// returns each material's byte offset. Offsets are assigned front to back in
// active order; a layout mismatch between sizing and writing is fatal.
func packMaterials(log core.Logger, buf *TransferBuffer, scene *core.Scene, textureIndices map[*core.Image]int) map[*core.Material]int {
	active := scene.Materials.Active()

	size := 0
	for _, mtl := range active {
		size += materialRecordSize(mtl)
	}
	buf.Reserve(size)

	offsets := make(map[*core.Material]int, len(active))
	data := buf.Bytes()
	off := 0
	for _, mtl := range active {
		offsets[mtl] = off

		slots := make([]int, len(mtl.Textures()))
		for i, img := range mtl.Textures() {
			if img == nil {
				slots[i] = InvalidTextureIndex
			} else {
				slots[i] = textureIndices[img]
			}
		}

		putMaterialHeader(data, off, mtl.Shader().LibraryIndex(), slots)
		copy(data[off+MaterialHeaderSize:], mtl.UniformBytes())
		off += materialRecordSize(mtl)
	}

	if off != size {
		log.Fatalf("material buffer layout mismatch: wrote %d of %d bytes", off, size)
	}
	return offsets
}
