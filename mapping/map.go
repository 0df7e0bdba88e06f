package mapping

// Map is the product of a mapping run.
type Map struct {
	Landmarks *LandmarkDatabase
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{Landmarks: NewLandmarkDatabase()}
}
