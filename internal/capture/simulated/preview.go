package simulated

import (
	"sync"

	"github.com/zsiec/slomo/internal/media"
)

// Preview is an in-memory preview surface that remembers its presentation
// settings.
type Preview struct {
	mu          sync.Mutex
	orientation media.Orientation
	gravity     media.Gravity
}

// NewPreview returns a portrait, aspect-fit preview.
func NewPreview() *Preview {
	return &Preview{orientation: media.OrientationPortrait, gravity: media.GravityResizeAspect}
}

func (p *Preview) SetOrientation(o media.Orientation) {
	p.mu.Lock()
	p.orientation = o
	p.mu.Unlock()
}

func (p *Preview) Orientation() media.Orientation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orientation
}

func (p *Preview) SetGravity(g media.Gravity) {
	p.mu.Lock()
	p.gravity = g
	p.mu.Unlock()
}

func (p *Preview) Gravity() media.Gravity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gravity
}

// FixedOrientation is an OrientationSource that always reports the same
// orientation.
type FixedOrientation media.Orientation

func (o FixedOrientation) Orientation() media.Orientation {
	return media.Orientation(o)
}
