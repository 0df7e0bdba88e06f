package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lar/spatialmath"
)

// Projection moves points between a frame's pixels and the world. Extrinsics follow the
// capture device convention: camera-to-world, x right, y up, and the camera looking down -z.
type Projection struct {
	intrinsics *PinholeCameraIntrinsics
	extrinsics spatialmath.Pose
}

// NewProjection builds a projection from a 3x3 camera matrix and a 4x4 camera-to-world transform.
func NewProjection(intrinsics, extrinsics mat.Matrix) (*Projection, error) {
	params, err := NewPinholeCameraIntrinsicsFromMatrix(intrinsics)
	if err != nil {
		return nil, err
	}
	pose, err := spatialmath.NewPoseFromMatrix(extrinsics)
	if err != nil {
		return nil, errors.Wrap(err, "invalid extrinsics")
	}
	return &Projection{intrinsics: params, extrinsics: pose}, nil
}

// Intrinsics returns the camera model of the projection.
func (p *Projection) Intrinsics() *PinholeCameraIntrinsics {
	return p.intrinsics
}

// ProjectToWorld back-projects a pixel observed at the given depth to a world point.
func (p *Projection) ProjectToWorld(pixel r2.Point, depth float64) r3.Vector {
	return p.extrinsics.Transform(p.CameraPoint(pixel, depth))
}

// CameraPoint back-projects a pixel into the camera frame of the capture device.
func (p *Projection) CameraPoint(pixel r2.Point, depth float64) r3.Vector {
	x, y, z := p.intrinsics.PixelToPoint(pixel.X, pixel.Y, depth)
	// image y points down and depth forward; the device frame has y up and looks down -z
	return r3.Vector{X: x, Y: -y, Z: -z}
}

// WorldToPixel projects a world point into the image. The returned depth is the distance
// along the viewing direction; ok is false for points behind the camera.
func (p *Projection) WorldToPixel(pt r3.Vector) (pixel r2.Point, depth float64, ok bool) {
	cam := p.extrinsics.Inverse().Transform(pt)
	depth = -cam.Z
	if depth <= 0 {
		return r2.Point{}, depth, false
	}
	u, v := p.intrinsics.PointToPixel(cam.X, -cam.Y, depth)
	return r2.Point{X: u, Y: v}, depth, true
}

// CameraCenter returns the camera position in the world.
func (p *Projection) CameraCenter() r3.Vector {
	return p.extrinsics.Translation
}
