package core

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// Image holds RGBA8 pixel data sufficient to create a shader-visible view.
type Image struct {
	name      string
	width     int
	height    int
	pixels    []byte
	linearize bool
}

// ImageOptions control pixel conversion at image creation.
type ImageOptions struct {
	// FlipY mirrors the image vertically to match the renderer's texture
	// coordinate convention.
	FlipY bool
	// Linearize marks the pixel data as sRGB-encoded, to be linearized at
	// sampling time.
	Linearize bool
}

// NewImage converts any image.Image into an RGBA8 Image resource.
func NewImage(name string, src image.Image, opts ImageOptions) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(rgba, rgba.Bounds(), src, bounds.Min, xdraw.Src)

	pixels := rgba.Pix
	if opts.FlipY {
		flipped := make([]byte, len(pixels))
		stride := rgba.Stride
		for y := 0; y < h; y++ {
			copy(flipped[y*stride:(y+1)*stride], pixels[(h-1-y)*stride:(h-y)*stride])
		}
		pixels = flipped
	}

	return &Image{
		name:      name,
		width:     w,
		height:    h,
		pixels:    pixels,
		linearize: opts.Linearize,
	}
}

// NewImageFromPixels creates an image from raw RGBA8 data.
func NewImageFromPixels(name string, width, height int, rgba []byte) (*Image, error) {
	if len(rgba) != width*height*4 {
		return nil, fmt.Errorf("image %q: pixel data is %d bytes, expected %d", name, len(rgba), width*height*4)
	}
	return &Image{name: name, width: width, height: height, pixels: rgba}, nil
}

func (img *Image) Kind() Kind      { return KindImage }
func (img *Image) Name() string    { return img.name }
func (img *Image) Width() int      { return img.width }
func (img *Image) Height() int     { return img.height }
func (img *Image) Pixels() []byte  { return img.pixels }
func (img *Image) Linearize() bool { return img.linearize }

// Address modes for sampler descriptors.
const (
	AddressModeWrap   = "wrap"
	AddressModeClamp  = "clamp"
	AddressModeMirror = "mirror"
)

// Sampler describes a texture sampler. Only a single default sampler is
// currently placed in the sampler descriptor heap.
type Sampler struct {
	name         string
	addressModeU string
	addressModeV string
}

func NewSampler(name, addressModeU, addressModeV string) *Sampler {
	return &Sampler{name: name, addressModeU: addressModeU, addressModeV: addressModeV}
}

func (s *Sampler) Name() string         { return s.name }
func (s *Sampler) AddressModeU() string { return s.addressModeU }
func (s *Sampler) AddressModeV() string { return s.addressModeV }
