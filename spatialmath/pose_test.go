package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestPoseMatrixRoundTrip(t *testing.T) {
	p := NewPose(RotationVectorToQuat(r3.Vector{X: 0.3, Y: -0.2, Z: 1.1}), r3.Vector{X: 1, Y: 2, Z: 3})
	back, err := NewPoseFromMatrix(p.Matrix())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, PoseAlmostEqual(p, back, 1e-9), test.ShouldBeTrue)

	_, err = NewPoseFromMatrix(mat.NewDense(3, 3, nil))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPoseInverse(t *testing.T) {
	p := NewPose(RotationVectorToQuat(r3.Vector{X: 0, Y: math.Pi / 2, Z: 0}), r3.Vector{X: 5, Y: 0, Z: -1})
	id := p.Compose(p.Inverse())
	test.That(t, PoseAlmostEqual(id, NewZeroPose(), 1e-9), test.ShouldBeTrue)

	pt := r3.Vector{X: 1, Y: 2, Z: 3}
	back := p.Inverse().Transform(p.Transform(pt))
	test.That(t, back.Sub(pt).Norm(), test.ShouldBeLessThan, 1e-9)

	// a quarter turn about Y sends +X to -Z
	rotated := RotateVector(p.Rotation, r3.Vector{X: 1})
	test.That(t, rotated.Z, test.ShouldAlmostEqual, -1, 1e-9)
}

func TestExpLog(t *testing.T) {
	for _, tc := range []struct {
		name           string
		omega, upsilon r3.Vector
	}{
		{"identity", r3.Vector{}, r3.Vector{}},
		{"pure translation", r3.Vector{}, r3.Vector{X: 1, Y: -2, Z: 0.5}},
		{"tiny rotation", r3.Vector{X: 1e-7}, r3.Vector{Y: 3}},
		{"general", r3.Vector{X: 0.4, Y: -0.1, Z: 0.9}, r3.Vector{X: 2, Y: 1, Z: -1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			omega, upsilon := Exp(tc.omega, tc.upsilon).Log()
			test.That(t, omega.Sub(tc.omega).Norm(), test.ShouldBeLessThan, 1e-9)
			test.That(t, upsilon.Sub(tc.upsilon).Norm(), test.ShouldBeLessThan, 1e-9)
		})
	}
}

func TestRotationMatrixToQuat(t *testing.T) {
	// rotations near pi exercise the non-trace branches
	for _, omega := range []r3.Vector{
		{X: math.Pi - 1e-3},
		{Y: math.Pi - 1e-3},
		{Z: math.Pi - 1e-3},
		{X: 0.2, Y: 0.2, Z: 0.2},
	} {
		q := RotationVectorToQuat(omega)
		back := RotationMatrixToQuat(QuatToRotationMatrix(q))
		test.That(t, QuaternionAlmostEqual(q, back, 1e-9), test.ShouldBeTrue)
	}
}
