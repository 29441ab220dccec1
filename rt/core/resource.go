package core

import "fmt"

// Kind tags the closed set of resource variants the compiler understands.
type Kind int

const (
	KindGeometry Kind = iota
	KindMaterial
	KindImage
	KindInstance
	KindLight
	KindEnvironment
	KindGroundPlane
)

func (k Kind) String() string {
	switch k {
	case KindGeometry:
		return "geometry"
	case KindMaterial:
		return "material"
	case KindImage:
		return "image"
	case KindInstance:
		return "instance"
	case KindLight:
		return "light"
	case KindEnvironment:
		return "environment"
	case KindGroundPlane:
		return "ground plane"
	}
	return "unknown"
}

// Resource is the opaque handle type passed across the scene-graph edit
// boundary. The compiler never operates on this interface directly; edits are
// downcast to the concrete variant on entry and rejected if the kind does not
// match.
type Resource interface {
	Kind() Kind
	Name() string
}

// Handle is an opaque device-owned object, released exactly once.
type Handle interface {
	Release()
}

func AsGeometry(r Resource) (*Geometry, error) {
	if r == nil {
		return nil, fmt.Errorf("expected geometry resource, got nil")
	}
	g, ok := r.(*Geometry)
	if !ok {
		return nil, fmt.Errorf("expected geometry resource, got %s %q", r.Kind(), r.Name())
	}
	return g, nil
}

func AsMaterial(r Resource) (*Material, error) {
	if r == nil {
		return nil, fmt.Errorf("expected material resource, got nil")
	}
	m, ok := r.(*Material)
	if !ok {
		return nil, fmt.Errorf("expected material resource, got %s %q", r.Kind(), r.Name())
	}
	return m, nil
}

func AsImage(r Resource) (*Image, error) {
	if r == nil {
		return nil, fmt.Errorf("expected image resource, got nil")
	}
	img, ok := r.(*Image)
	if !ok {
		return nil, fmt.Errorf("expected image resource, got %s %q", r.Kind(), r.Name())
	}
	return img, nil
}
