package gpu

import "github.com/evanburkert/Aurora/rt/core"

// CompilerOptions configure scene compilation.
type CompilerOptions struct {
	// RendererDescriptorCount is the number of heap slots the renderer
	// reserves ahead of the scene's descriptors.
	RendererDescriptorCount int
}

// Compiler turns a scene into the device resources a ray-tracing pipeline
// binds each frame. UpdateResources runs one compile pass; a pass over an
// unchanged scene leaves every resource untouched.
type Compiler struct {
	log   core.Logger
	dev   Device
	scene *core.Scene
	opts  CompilerOptions

	materialBuffer *TransferBuffer
	instanceBuffer *TransferBuffer
	lightBuffer    *TransferBuffer
	hitGroupTable  *TransferBuffer
	missTable      *TransferBuffer

	materialOffsets map[*core.Material]int
	instanceOffsets map[*core.Instance]int
	textureIndices  map[*core.Image]int
	textures        []*core.Image

	accel         AccelerationStructure
	renderable    []*core.Instance
	hitTableValid bool
	missTableValid bool

	textureHeap DescriptorHeap
	samplerHeap DescriptorHeap

	envDescriptorsDirty      bool
	hitGroupDescriptorsDirty bool
}

func NewCompiler(log core.Logger, dev Device, scene *core.Scene, opts CompilerOptions) *Compiler {
	return &Compiler{
		log:   log,
		dev:   dev,
		scene: scene,
		opts:  opts,

		materialBuffer: NewTransferBuffer("MaterialBuffer"),
		instanceBuffer: NewTransferBuffer("InstanceBuffer"),
		lightBuffer:    NewTransferBuffer("LightBuffer"),
		hitGroupTable:  NewTransferBuffer("HitGroupShaderTable"),
		missTable:      NewTransferBuffer("MissShaderTable"),

		envDescriptorsDirty: true,
	}
}

// UpdateResources runs one compile pass over the scene, rebuilding exactly
// the resources invalidated since the last pass. It must be called from one
// thread, with no concurrent scene edits.
func (c *Compiler) UpdateResources() {
	scene := c.scene

	if scene.Environments.ChangedThisFrame() {
		for _, env := range scene.Environments.Modified() {
			if env.Update() {
				c.envDescriptorsDirty = true
			}
		}
	}
	scene.GroundPlane().Update()

	c.updateLights()
	c.updateGeometry()

	if scene.Materials.ChangedThisFrame() || scene.Images.ChangedThisFrame() {
		c.updateMaterials()
	}

	if scene.Instances.ChangedThisFrame() {
		for _, inst := range scene.Instances.Modified() {
			inst.Update()
		}
	}

	// Any instance or geometry change invalidates the acceleration
	// structure. The device must drain before the old one is released.
	if scene.Instances.ChangedThisFrame() || scene.Geometry.ChangedThisFrame() {
		if c.accel != nil {
			c.dev.WaitIdle()
			c.accel.Release()
			c.accel = nil
		}
		c.hitTableValid = false
	}

	if c.accel == nil {
		c.updateAccelerationStructure()
	}

	c.updateDescriptorHeaps()
	c.updateShaderTables()

	scene.ResetTrackers()
}

func (c *Compiler) updateLights() {
	lights, changed := c.scene.PruneLights()
	if c.lightBuffer.GPU() != nil && !changed {
		return
	}

	c.lightBuffer.Reserve(LightBufferSize())
	data := c.lightBuffer.Bytes()

	count := len(lights)
	if count > core.MaxDistantLights {
		count = core.MaxDistantLights
	}
	putInt32(data, 0, int32(count))
	for i := 0; i < count; i++ {
		putDistantLight(data, LightBufferHeaderSize+i*DistantLightSize, lights[i])
	}
	c.lightBuffer.Flush(c.dev)
}

func (c *Compiler) updateGeometry() {
	if !c.scene.Geometry.ChangedThisFrame() {
		return
	}
	for _, g := range c.scene.Geometry.Modified() {
		if !g.Update() || g.Incomplete() {
			continue
		}
		buffers, blas, err := c.dev.UploadGeometry(g)
		if err != nil {
			c.log.Errorf("failed to upload geometry %s: %v", g.Name(), err)
			continue
		}
		g.SetBuffers(buffers, blas)
	}
}

func (c *Compiler) updateMaterials() {
	for _, mtl := range c.scene.Materials.Modified() {
		mtl.Update()
	}

	c.textures, c.textureIndices = resolveTextures(c.scene)
	c.materialOffsets = packMaterials(c.log, c.materialBuffer, c.scene, c.textureIndices)
	c.materialBuffer.Flush(c.dev)

	// The texture region of the heap may have grown or shrunk; throw the
	// heap away once the GPU is done with it.
	if c.textureHeap != nil {
		c.dev.WaitIdle()
		c.textureHeap.Release()
		c.textureHeap = nil
	}
	c.hitTableValid = false
}

func (c *Compiler) updateAccelerationStructure() {
	c.renderable = renderableInstances(c.scene)
	if len(c.renderable) == 0 {
		return
	}

	descs := packInstanceDescs(c.log, c.renderable)
	accel, err := c.dev.BuildAccelerationStructure(descs, len(c.renderable))
	if err != nil {
		c.log.Fatalf("acceleration structure build failed: %v", err)
	}
	c.accel = accel
	c.hitTableValid = false
	c.hitGroupDescriptorsDirty = true
}

func (c *Compiler) updateDescriptorHeaps() {
	if c.textureHeap != nil && !c.envDescriptorsDirty && !c.hitGroupDescriptorsDirty {
		return
	}

	if c.textures == nil {
		c.textures, c.textureIndices = resolveTextures(c.scene)
	}

	if c.textureHeap == nil {
		c.textureHeap = c.dev.CreateDescriptorHeap(DescriptorHeapTextures,
			textureHeapSize(c.opts.RendererDescriptorCount, c.textures))
	}
	populateTextureHeap(c.textureHeap, c.scene, c.opts.RendererDescriptorCount, c.textures)

	if c.samplerHeap == nil {
		c.samplerHeap = c.dev.CreateDescriptorHeap(DescriptorHeapSamplers, 1)
		populateSamplerHeap(c.samplerHeap, c.scene)
	}

	c.envDescriptorsDirty = false
	c.hitGroupDescriptorsDirty = false
}

func (c *Compiler) updateShaderTables() {
	if !c.hitTableValid && len(c.renderable) > 0 {
		if c.materialOffsets == nil {
			c.textures, c.textureIndices = resolveTextures(c.scene)
			c.materialOffsets = packMaterials(c.log, c.materialBuffer, c.scene, c.textureIndices)
			c.materialBuffer.Flush(c.dev)
		}

		var size int
		c.instanceOffsets, size = computeInstanceOffsets(c.renderable)
		packInstances(c.log, c.instanceBuffer, c.renderable, c.instanceOffsets, size, c.materialOffsets)
		c.instanceBuffer.Flush(c.dev)

		buildHitGroupTable(c.log, c.hitGroupTable, c.scene.ShaderLibrary(), c.renderable, c.instanceOffsets)
		c.hitGroupTable.Flush(c.dev)
		c.hitTableValid = true
	}

	if !c.missTableValid {
		buildMissTable(c.log, c.missTable, c.scene.ShaderLibrary())
		c.missTable.Flush(c.dev)
		c.missTableValid = true
	}
}

// AccelerationStructure returns the built top-level structure, nil when the
// scene has no renderable instances.
func (c *Compiler) AccelerationStructure() AccelerationStructure { return c.accel }

// HitGroupShaderTable returns the hit group table with its record stride and
// count. The buffer is nil when nothing is renderable.
func (c *Compiler) HitGroupShaderTable() (Buffer, int, int) {
	return c.hitGroupTable.GPU(), HitGroupRecordStride(), len(c.renderable)
}

// MissShaderTable returns the miss table with its record stride and count.
func (c *Compiler) MissShaderTable() (Buffer, int, int) {
	return c.missTable.GPU(), MissRecordStride(), MissRecordCount
}

func (c *Compiler) MaterialBuffer() Buffer { return c.materialBuffer.GPU() }
func (c *Compiler) InstanceBuffer() Buffer { return c.instanceBuffer.GPU() }
func (c *Compiler) LightBuffer() Buffer    { return c.lightBuffer.GPU() }
func (c *Compiler) TextureHeap() DescriptorHeap { return c.textureHeap }
func (c *Compiler) SamplerHeap() DescriptorHeap { return c.samplerHeap }

// Release frees every device resource the compiler owns after draining the
// device.
func (c *Compiler) Release() {
	c.dev.WaitIdle()
	if c.accel != nil {
		c.accel.Release()
		c.accel = nil
	}
	if c.textureHeap != nil {
		c.textureHeap.Release()
		c.textureHeap = nil
	}
	if c.samplerHeap != nil {
		c.samplerHeap.Release()
		c.samplerHeap = nil
	}
	c.materialBuffer.Release()
	c.instanceBuffer.Release()
	c.lightBuffer.Release()
	c.hitGroupTable.Release()
	c.missTable.Release()
}
