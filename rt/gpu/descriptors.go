package gpu

import "github.com/evanburkert/Aurora/rt/core"

// Descriptor heap layout: the renderer's own slots come first, then the two
// environment images, then the material textures in resolved index order.
// The whole heap is rebuilt whenever any region changes.

func textureHeapSize(rendererSlots int, images []*core.Image) int {
	return rendererSlots + core.EnvironmentDescriptorCount + len(images)
}

func populateTextureHeap(heap DescriptorHeap, scene *core.Scene, rendererSlots int, images []*core.Image) {
	next := scene.Environment().PopulateDescriptors(heap, rendererSlots, scene.DefaultImage())
	for i, img := range images {
		heap.WriteImage(next+i, img)
	}
}

func populateSamplerHeap(heap DescriptorHeap, scene *core.Scene) {
	heap.WriteSampler(0, scene.DefaultSampler())
}
