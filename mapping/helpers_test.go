package mapping

import (
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lar/spatialmath"
	"go.viam.com/lar/vision"
	"go.viam.com/lar/vision/keypoints"
)

// constantDepth reports the same reading for every keypoint.
type constantDepth struct {
	depth, confidence float64
}

func (c constantDepth) DepthAt(kps keypoints.KeyPoints) ([]float64, error) {
	return fill(len(kps), c.depth), nil
}

func (c constantDepth) ConfidenceAt(kps keypoints.KeyPoints) ([]float64, error) {
	return fill(len(kps), c.confidence), nil
}

func (c constantDepth) SurfaceNormalsAt(kps keypoints.KeyPoints) ([]r3.Vector, error) {
	out := make([]r3.Vector, len(kps))
	for i := range out {
		out[i] = r3.Vector{Z: 1}
	}
	return out, nil
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func testIntrinsics() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		500, 0, 320,
		0, 500, 240,
		0, 0, 1,
	})
}

// newTestFrame builds an unprocessed frame with a camera at position, looking down -z.
func newTestFrame(id int, position r3.Vector, kps keypoints.KeyPoints, desc keypoints.Descriptors) *Frame {
	return &Frame{
		ID:          id,
		Timestamp:   time.Unix(int64(1700000000+id), 0),
		Intrinsics:  testIntrinsics(),
		Extrinsics:  spatialmath.NewPose(spatialmath.NewZeroPose().Rotation, position).Matrix(),
		Image:       &vision.FeatureImage{KeyPoints: kps, Descriptors: desc},
		DepthSource: constantDepth{depth: 2, confidence: 0.5},
	}
}
