// Command auroraview opens a window, builds a small demo scene and compiles
// it every frame, exercising the full resource pipeline against real
// hardware.
package main

import (
	"flag"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	aurora "github.com/evanburkert/Aurora"
	"github.com/evanburkert/Aurora/rt/core"
	"github.com/evanburkert/Aurora/rt/gpu"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log := core.NewDefaultLogger("auroraview", *debug)

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "Aurora", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	ctx, err := aurora.NewWindowContext(window)
	if err != nil {
		panic(err)
	}
	defer ctx.Release()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		ctx.Resize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	dev := gpu.NewWebGPUDevice(log, ctx.Device)
	renderer := aurora.NewRenderer(log, dev, aurora.Options{
		RendererDescriptorCount: 4,
		Debug:                   *debug,
	})
	scene := renderer.CreateScene()
	defer scene.Release()

	inst := buildDemoScene(log, scene)

	angle := float32(0)
	lastTime := glfw.GetTime()
	for !window.ShouldClose() {
		glfw.PollEvents()

		now := glfw.GetTime()
		angle += float32(now-lastTime) * 0.5
		lastTime = now

		inst.SetTransform(mgl32.HomogRotate3DY(angle))
		scene.Update()
	}
}

func buildDemoScene(log core.Logger, scene *aurora.Scene) *core.Instance {
	geom := scene.CreateGeometry("cube", cubeGeometry())

	mtl, err := scene.CreateMaterial(core.MaterialTypeBuiltIn, core.BuiltInDefault, "cube")
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := mtl.SetProperty("base_color", 0.8, 0.3, 0.1); err != nil {
		log.Fatalf("%v", err)
	}

	inst, err := scene.AddInstance(geom, mtl, mgl32.Ident4(), nil)
	if err != nil {
		log.Fatalf("%v", err)
	}

	sun, err := scene.AddLight(core.LightTypeDistant)
	if err != nil {
		log.Fatalf("%v", err)
	}
	sun.SetDirection(mgl32.Vec3{-0.5, -1, -0.3}.Normalize())
	sun.SetIntensity(3)

	env := core.NewEnvironment("sky")
	env.SetLightColors(mgl32.Vec3{0.6, 0.7, 0.9}, mgl32.Vec3{0.2, 0.2, 0.25})
	scene.SetEnvironment(env)

	return inst
}

func cubeGeometry() core.GeometryDesc {
	p := []float32{
		-1, -1, -1, 1, -1, -1, 1, 1, -1, -1, 1, -1,
		-1, -1, 1, 1, -1, 1, 1, 1, 1, -1, 1, 1,
	}
	idx := []uint32{
		0, 1, 2, 0, 2, 3, // back
		4, 6, 5, 4, 7, 6, // front
		0, 4, 5, 0, 5, 1, // bottom
		3, 2, 6, 3, 6, 7, // top
		0, 3, 7, 0, 7, 4, // left
		1, 5, 6, 1, 6, 2, // right
	}
	return core.GeometryDesc{Indices: idx, Positions: p}
}
