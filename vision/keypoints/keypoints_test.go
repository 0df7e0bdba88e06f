package keypoints

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestRescaleKeypoints(t *testing.T) {
	kps := KeyPoints{{X: 10, Y: 4}, {X: 3, Y: 0.5}}
	test.That(t, RescaleKeypoints(kps, 0.5), test.ShouldResemble, KeyPoints{{X: 5, Y: 2}, {X: 1.5, Y: 0.25}})
	test.That(t, kps[0], test.ShouldResemble, r2.Point{X: 10, Y: 4})
}

func TestPlotKeypoints(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	out := filepath.Join(t.TempDir(), "kps.png")
	test.That(t, PlotKeypoints(img, KeyPoints{{X: 20, Y: 15}}, out), test.ShouldBeNil)

	//nolint:gosec
	f, err := os.Open(out)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	decoded, err := png.Decode(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Bounds(), test.ShouldResemble, img.Bounds())

	// the keypoint is tinted blue, the background is not
	r, _, b, _ := color.RGBAModel.Convert(decoded.At(20, 15)).RGBA()
	test.That(t, b, test.ShouldBeGreaterThan, r)
	r, _, b, _ = color.RGBAModel.Convert(decoded.At(2, 2)).RGBA()
	test.That(t, b, test.ShouldEqual, r)
}
