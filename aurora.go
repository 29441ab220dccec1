// Package aurora compiles ray-tracing scene graphs into the GPU resources a
// path-tracing renderer binds each frame: the top-level acceleration
// structure, packed material and instance buffers, descriptor heaps and
// shader tables. Scene edits between frames invalidate exactly the resources
// they touch; compiling an unchanged scene is free.
package aurora

import (
	"github.com/evanburkert/Aurora/rt/core"
	"github.com/evanburkert/Aurora/rt/gpu"
)

// Options configure a renderer.
type Options struct {
	// RendererDescriptorCount is the number of descriptor heap slots the
	// renderer reserves ahead of scene descriptors.
	RendererDescriptorCount int

	// Debug enables debug logging.
	Debug bool

	// FlipImageY mirrors loaded images vertically.
	FlipImageY bool

	// LoadImage resolves texture filenames for material defaults; may be
	// nil.
	LoadImage core.ImageLoader
}

// Renderer owns the shader library and creates scenes that compile against
// one device.
type Renderer struct {
	log       core.Logger
	dev       gpu.Device
	shaderLib *core.ShaderLibrary
	opts      Options
}

// NewRenderer creates a renderer over a device. A nil logger gets the
// default stderr logger.
func NewRenderer(log core.Logger, dev gpu.Device, opts Options) *Renderer {
	if log == nil {
		log = core.NewDefaultLogger("aurora", opts.Debug)
	}
	return &Renderer{
		log:       log,
		dev:       dev,
		shaderLib: core.NewShaderLibrary(log),
		opts:      opts,
	}
}

func (r *Renderer) Logger() core.Logger                { return r.log }
func (r *Renderer) ShaderLibrary() *core.ShaderLibrary { return r.shaderLib }

// Scene pairs a scene graph with its compiler.
type Scene struct {
	*core.Scene
	compiler *gpu.Compiler
}

// CreateScene creates an empty scene that shares the renderer's shader
// library.
func (r *Renderer) CreateScene() *Scene {
	scene := core.NewScene(r.log, r.shaderLib, core.SceneOptions{
		LoadImage:  r.opts.LoadImage,
		FlipImageY: r.opts.FlipImageY,
	})
	compiler := gpu.NewCompiler(r.log, r.dev, scene, gpu.CompilerOptions{
		RendererDescriptorCount: r.opts.RendererDescriptorCount,
	})
	return &Scene{Scene: scene, compiler: compiler}
}

// Update runs one compile pass, bringing every GPU resource in line with the
// scene. Call once per frame before tracing.
func (s *Scene) Update() { s.compiler.UpdateResources() }

// Compiler exposes the compiled resources for binding.
func (s *Scene) Compiler() *gpu.Compiler { return s.compiler }

// Release frees the scene's device resources.
func (s *Scene) Release() { s.compiler.Release() }
