package media

// Orientation describes how the preview is rotated relative to the sensor.
type Orientation int

const (
	OrientationPortrait Orientation = iota
	OrientationPortraitUpsideDown
	OrientationLandscapeRight
	OrientationLandscapeLeft
)

func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationPortraitUpsideDown:
		return "portrait_upside_down"
	case OrientationLandscapeRight:
		return "landscape_right"
	case OrientationLandscapeLeft:
		return "landscape_left"
	default:
		return "unknown"
	}
}

// IsLandscape reports whether the orientation is one of the landscape ones.
func (o Orientation) IsLandscape() bool {
	return o == OrientationLandscapeLeft || o == OrientationLandscapeRight
}

// Gravity controls how the preview content is scaled into its bounds.
type Gravity string

const (
	GravityResizeAspect     Gravity = "resize_aspect"
	GravityResizeAspectFill Gravity = "resize_aspect_fill"
	GravityResize           Gravity = "resize"
)

// Next cycles aspect -> aspect fill -> resize -> aspect.
func (g Gravity) Next() Gravity {
	switch g {
	case GravityResizeAspect:
		return GravityResizeAspectFill
	case GravityResizeAspectFill:
		return GravityResize
	default:
		return GravityResizeAspect
	}
}
