package aurora

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// WindowContext holds the WebGPU objects bound to a window surface.
type WindowContext struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration
}

// NewWindowContext initializes WebGPU against a glfw window. The window must
// be created with glfw.ClientAPI set to glfw.NoAPI.
func NewWindowContext(window *glfw.Window) (*WindowContext, error) {
	c := &WindowContext{}
	c.Instance = wgpu.CreateInstance(nil)

	c.Surface = c.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	adapter, err := c.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: c.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, err
	}
	c.Adapter = adapter

	c.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return nil, err
	}
	c.Queue = c.Device.GetQueue()

	width, height := window.GetFramebufferSize()
	caps := c.Surface.GetCapabilities(adapter)
	c.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	c.Surface.Configure(adapter, c.Device, c.Config)

	return c, nil
}

// Resize reconfigures the surface for a new framebuffer size.
func (c *WindowContext) Resize(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	c.Config.Width = uint32(width)
	c.Config.Height = uint32(height)
	c.Surface.Configure(c.Adapter, c.Device, c.Config)
}

func (c *WindowContext) Release() {
	if c.Device != nil {
		c.Device.Release()
	}
	if c.Adapter != nil {
		c.Adapter.Release()
	}
	if c.Surface != nil {
		c.Surface.Release()
	}
	if c.Instance != nil {
		c.Instance.Release()
	}
}
