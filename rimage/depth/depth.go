// Package depth samples per-keypoint depth, confidence and surface normals from sensor depth maps.
package depth

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/lar/rimage/transform"
	"go.viam.com/lar/vision/keypoints"
)

// ConfidenceLevels is the number of discrete confidence levels reported by the depth sensor
// (low, medium, high). Level ConfidenceLevels-1 maps to full confidence.
const ConfidenceLevels = 3

// aspectTolerance is the relative difference allowed between the horizontal and vertical
// image-to-grid scales.
const aspectTolerance = 1e-3

// Source answers depth queries for the keypoints of one frame. Results are index aligned with
// the input keypoints.
type Source interface {
	DepthAt(kps keypoints.KeyPoints) ([]float64, error)
	// ConfidenceAt returns confidences in [0, 1].
	ConfidenceAt(kps keypoints.KeyPoints) ([]float64, error)
	// SurfaceNormalsAt returns unit world-frame normals facing the camera, or the zero vector
	// where no normal can be estimated.
	SurfaceNormalsAt(kps keypoints.KeyPoints) ([]r3.Vector, error)
}

// Grid is a Source backed by a depth map and an optional confidence map, usually at a lower
// resolution than the image the keypoints come from.
type Grid struct {
	width, height int
	depth         []float64
	confidence    []uint8
	// scale takes image pixels to grid cells.
	scale      float64
	projection *transform.Projection
}

// NewGrid wraps a row-major depth map of width x height cells. imageSize is the size of the
// image the keypoints are expressed in and must have the aspect ratio of the grid. confidence
// may be nil, in which case every reading is fully trusted.
func NewGrid(
	width, height int,
	depth []float64,
	confidence []uint8,
	imageSize r2.Point,
	projection *transform.Projection,
) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid depth map size %dx%d", width, height)
	}
	if len(depth) != width*height {
		return nil, errors.Errorf("depth map has %d values, expected %d", len(depth), width*height)
	}
	if confidence != nil && len(confidence) != width*height {
		return nil, errors.Errorf("confidence map has %d values, expected %d", len(confidence), width*height)
	}
	if imageSize.X <= 0 || imageSize.Y <= 0 {
		return nil, errors.Errorf("invalid image size %v", imageSize)
	}
	if projection == nil {
		return nil, errors.New("depth grid needs a projection")
	}
	scale := float64(width) / imageSize.X
	if math.Abs(float64(height)/imageSize.Y-scale) > aspectTolerance*scale {
		return nil, errors.Errorf("depth map %dx%d does not have the aspect ratio of a %gx%g image",
			width, height, imageSize.X, imageSize.Y)
	}
	return &Grid{
		width:      width,
		height:     height,
		depth:      depth,
		confidence: confidence,
		scale:      scale,
		projection: projection,
	}, nil
}

// cells returns, for each image keypoint, the grid cell under it, clamped to the grid.
func (g *Grid) cells(kps keypoints.KeyPoints) [][2]int {
	scaled := keypoints.RescaleKeypoints(kps, g.scale)
	out := make([][2]int, len(scaled))
	for i, p := range scaled {
		out[i] = [2]int{
			clamp(int(math.Floor(p.X)), 0, g.width-1),
			clamp(int(math.Floor(p.Y)), 0, g.height-1),
		}
	}
	return out
}

// pixel returns the image pixel at the center of a grid cell.
func (g *Grid) pixel(x, y int) r2.Point {
	return r2.Point{X: (float64(x) + 0.5) / g.scale, Y: (float64(y) + 0.5) / g.scale}
}

func (g *Grid) at(x, y int) float64 {
	return g.depth[y*g.width+x]
}

// DepthAt returns the depth of the cell under each keypoint.
func (g *Grid) DepthAt(kps keypoints.KeyPoints) ([]float64, error) {
	out := make([]float64, len(kps))
	for i, c := range g.cells(kps) {
		out[i] = g.at(c[0], c[1])
	}
	return out, nil
}

// ConfidenceAt returns the normalised confidence of the cell under each keypoint.
func (g *Grid) ConfidenceAt(kps keypoints.KeyPoints) ([]float64, error) {
	out := make([]float64, len(kps))
	for i, c := range g.cells(kps) {
		if g.confidence == nil {
			out[i] = 1
			continue
		}
		level := float64(g.confidence[c[1]*g.width+c[0]])
		out[i] = math.Min(level/(ConfidenceLevels-1), 1)
	}
	return out, nil
}

// SurfaceNormalsAt estimates normals from the cross product of the back-projected neighbours
// of each keypoint's cell.
func (g *Grid) SurfaceNormalsAt(kps keypoints.KeyPoints) ([]r3.Vector, error) {
	out := make([]r3.Vector, len(kps))
	for i, c := range g.cells(kps) {
		out[i] = g.normal(c[0], c[1])
	}
	return out, nil
}

func (g *Grid) worldPoint(x, y int) r3.Vector {
	return g.projection.ProjectToWorld(g.pixel(x, y), g.at(x, y))
}

func (g *Grid) normal(x, y int) r3.Vector {
	left, right := clamp(x-1, 0, g.width-1), clamp(x+1, 0, g.width-1)
	up, down := clamp(y-1, 0, g.height-1), clamp(y+1, 0, g.height-1)
	if left == right || up == down {
		return r3.Vector{}
	}
	horizontal := g.worldPoint(right, y).Sub(g.worldPoint(left, y))
	vertical := g.worldPoint(x, down).Sub(g.worldPoint(x, up))
	n := horizontal.Cross(vertical)
	norm := n.Norm()
	if norm == 0 {
		return r3.Vector{}
	}
	n = n.Mul(1 / norm)
	toCamera := g.projection.CameraCenter().Sub(g.worldPoint(x, y))
	if n.Dot(toCamera) < 0 {
		n = n.Mul(-1)
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
