package transform

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lar/spatialmath"
)

func testIntrinsics() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		500, 0, 320,
		0, 500, 240,
		0, 0, 1,
	})
}

func TestNewPinholeCameraIntrinsicsFromMatrix(t *testing.T) {
	params, err := NewPinholeCameraIntrinsicsFromMatrix(testIntrinsics())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Fx, test.ShouldEqual, 500)
	test.That(t, params.Ppy, test.ShouldEqual, 240)
	test.That(t, params.Fy, test.ShouldEqual, 500)
	test.That(t, params.Ppx, test.ShouldEqual, 320)

	_, err = NewPinholeCameraIntrinsicsFromMatrix(mat.NewDense(2, 2, nil))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPinholeCameraIntrinsicsFromMatrix(mat.NewDense(3, 3, nil))
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestProjectToWorld(t *testing.T) {
	t.Run("identity extrinsics look down -z", func(t *testing.T) {
		proj, err := NewProjection(testIntrinsics(), spatialmath.NewZeroPose().Matrix())
		test.That(t, err, test.ShouldBeNil)
		center := proj.ProjectToWorld(r2.Point{X: 320, Y: 240}, 2)
		test.That(t, center, test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: -2})

		// a pixel above the principal point is above the camera in the world
		up := proj.ProjectToWorld(r2.Point{X: 320, Y: 140}, 5)
		test.That(t, up.Y, test.ShouldAlmostEqual, 1)
	})

	t.Run("round trip through world", func(t *testing.T) {
		pose := spatialmath.NewPose(
			spatialmath.RotationVectorToQuat(r3.Vector{X: 0.1, Y: 0.7, Z: -0.05}),
			r3.Vector{X: 3, Y: 1.5, Z: -4},
		)
		proj, err := NewProjection(testIntrinsics(), pose.Matrix())
		test.That(t, err, test.ShouldBeNil)
		pixel := r2.Point{X: 100, Y: 400}
		world := proj.ProjectToWorld(pixel, 3.5)
		back, depth, ok := proj.WorldToPixel(world)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, depth, test.ShouldAlmostEqual, 3.5)
		test.That(t, back.X, test.ShouldAlmostEqual, pixel.X)
		test.That(t, back.Y, test.ShouldAlmostEqual, pixel.Y)
	})

	t.Run("points behind the camera", func(t *testing.T) {
		proj, err := NewProjection(testIntrinsics(), spatialmath.NewZeroPose().Matrix())
		test.That(t, err, test.ShouldBeNil)
		_, _, ok := proj.WorldToPixel(r3.Vector{Z: 1})
		test.That(t, ok, test.ShouldBeFalse)
	})
}
