package mapping

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"

	"go.viam.com/lar/spatial"
)

const (
	renderMargin  = 10
	renderMaxSize = 4096
)

var (
	usableColor   = color.RGBA{0, 160, 0, 255}
	unusableColor = color.RGBA{200, 0, 0, 255}
	cameraColor   = color.RGBA{0, 0, 255, 255}
)

// RenderMap draws a top down view of the ground plane, x to the right and z down: landmarks
// seen at least usableThreshold times in green, the others in red, and the frames' cameras in
// blue. The picture covers the landmarks' current positions, so it can be drawn after bundle
// adjustment has moved them. The scale is reduced when the image would exceed renderMaxSize
// pixels on a side.
func RenderMap(m *Map, frames []*Frame, pixelsPerUnit float64, usableThreshold int) image.Image {
	var bounds spatial.Region
	ok := false
	include := func(p r2.Point) {
		if !ok {
			bounds, ok = spatial.NewPointRegion(p), true
			return
		}
		bounds = spatial.Enclosing(bounds, spatial.NewPointRegion(p))
	}
	for _, l := range m.Landmarks.All() {
		include(groundPlane(l.Position))
	}
	for _, f := range frames {
		include(f.GroundPosition())
	}
	if !ok {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	extent := math.Max(bounds.HalfWidth, bounds.HalfHeight) * 2
	if extent*pixelsPerUnit > renderMaxSize {
		pixelsPerUnit = renderMaxSize / extent
	}
	width := int(math.Ceil(bounds.HalfWidth*2*pixelsPerUnit)) + 2*renderMargin
	height := int(math.Ceil(bounds.HalfHeight*2*pixelsPerUnit)) + 2*renderMargin
	origin := bounds.Min()
	toPixel := func(p r2.Point) (float64, float64) {
		return (p.X-origin.X)*pixelsPerUnit + renderMargin, (p.Y-origin.Y)*pixelsPerUnit + renderMargin
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()
	for _, l := range m.Landmarks.All() {
		if l.IsUsableAt(usableThreshold) {
			dc.SetColor(usableColor)
		} else {
			dc.SetColor(unusableColor)
		}
		x, y := toPixel(groundPlane(l.Position))
		dc.DrawCircle(x, y, 2)
		dc.Fill()
	}
	dc.SetColor(cameraColor)
	for _, f := range frames {
		x, y := toPixel(f.GroundPosition())
		dc.DrawCircle(x, y, 4)
		dc.Fill()
	}
	return dc.Image()
}
