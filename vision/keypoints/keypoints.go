// Package keypoints contains keypoints, binary descriptors and descriptor matching.
package keypoints

import (
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
)

// KeyPoints is a set of sub-pixel image locations, x right and y down.
type KeyPoints []r2.Point

// RescaleKeypoints multiplies every keypoint by scaleFactor, e.g. to move them between
// pyramid levels or from image to depth map resolution.
func RescaleKeypoints(kps KeyPoints, scaleFactor float64) KeyPoints {
	rescaled := make(KeyPoints, len(kps))
	for i, kp := range kps {
		rescaled[i] = kp.Mul(scaleFactor)
	}
	return rescaled
}

// PlotKeypoints plots keypoints on image and saves it as a png.
func PlotKeypoints(img image.Image, kps KeyPoints, outName string) error {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	dc := gg.NewContext(w, h)
	dc.DrawImage(img, 0, 0)

	// draw keypoints on image
	dc.SetRGBA(0, 0, 1, 0.5)
	for _, p := range kps {
		dc.DrawCircle(p.X, p.Y, 3.0)
		dc.Fill()
	}
	return dc.SavePNG(outName)
}
