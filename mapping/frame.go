package mapping

import (
	"image"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lar/rimage/depth"
	"go.viam.com/lar/vision/keypoints"
)

// Frame is one captured camera frame. Intrinsics is the 3x3 camera matrix; Extrinsics is the
// 4x4 camera-to-world transform of the capture device.
//
// Image and DepthSource are inputs. KeyPoints through LandmarkIDs are filled in when the frame
// is processed, index aligned with each other. A keypoint whose depth reading is unusable has
// LandmarkID NoLandmark and contributes no observation.
type Frame struct {
	ID          int
	Timestamp   time.Time
	Intrinsics  *mat.Dense
	Extrinsics  *mat.Dense
	Image       image.Image
	DepthSource depth.Source

	KeyPoints   keypoints.KeyPoints
	Descriptors keypoints.Descriptors
	Depth       []float64
	Confidence  []float64
	LandmarkIDs []int
	Processed   bool
}

// CameraPosition returns the translation of the extrinsics.
func (f *Frame) CameraPosition() r3.Vector {
	return r3.Vector{X: f.Extrinsics.At(0, 3), Y: f.Extrinsics.At(1, 3), Z: f.Extrinsics.At(2, 3)}
}

// GroundPosition returns the camera position on the ground plane (x, z).
func (f *Frame) GroundPosition() r2.Point {
	return groundPlane(f.CameraPosition())
}
