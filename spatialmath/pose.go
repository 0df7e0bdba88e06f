package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid body transform: a rotation followed by a translation. Applying a Pose to a
// point p gives R*p + t.
type Pose struct {
	Rotation    quat.Number
	Translation r3.Vector
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return Pose{Rotation: quat.Number{Real: 1}}
}

// NewPose returns a pose with a normalized rotation.
func NewPose(rotation quat.Number, translation r3.Vector) Pose {
	return Pose{Rotation: Normalize(rotation), Translation: translation}
}

// NewPoseFromMatrix builds a pose from a 4x4 (or 3x4) homogeneous transform.
func NewPoseFromMatrix(m mat.Matrix) (Pose, error) {
	rows, cols := m.Dims()
	if rows < 3 || cols != 4 {
		return Pose{}, errors.Errorf("expected a 4x4 or 3x4 transform, got %dx%d", rows, cols)
	}
	return Pose{
		Rotation:    RotationMatrixToQuat(m),
		Translation: r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)},
	}, nil
}

// NewPoseFromRotationMatrix builds a pose from a 3x3 rotation and a translation.
func NewPoseFromRotationMatrix(rotation mat.Matrix, translation r3.Vector) Pose {
	return Pose{Rotation: RotationMatrixToQuat(rotation), Translation: translation}
}

// Matrix returns the 4x4 homogeneous transform of the pose.
func (p Pose) Matrix() *mat.Dense {
	rot := QuatToRotationMatrix(p.Rotation)
	out := mat.NewDense(4, 4, nil)
	out.Slice(0, 3, 0, 3).(*mat.Dense).Copy(rot)
	out.Set(0, 3, p.Translation.X)
	out.Set(1, 3, p.Translation.Y)
	out.Set(2, 3, p.Translation.Z)
	out.Set(3, 3, 1)
	return out
}

// Transform applies the pose to a point.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	return RotateVector(p.Rotation, v).Add(p.Translation)
}

// Compose returns p*q, the transform that applies q first and then p.
func (p Pose) Compose(q Pose) Pose {
	return Pose{
		Rotation:    Normalize(quat.Mul(p.Rotation, q.Rotation)),
		Translation: p.Transform(q.Translation),
	}
}

// Inverse returns the inverse transform.
func (p Pose) Inverse() Pose {
	inv := quat.Conj(Normalize(p.Rotation))
	return Pose{
		Rotation:    inv,
		Translation: RotateVector(inv, p.Translation).Mul(-1),
	}
}

// Exp maps a twist (omega, upsilon) in se(3) to a pose.
func Exp(omega, upsilon r3.Vector) Pose {
	theta := omega.Norm()
	t := upsilon
	if theta > angleEpsilon {
		wu := omega.Cross(upsilon)
		wwu := omega.Cross(wu)
		// series expansions below 1e-3 rad, like Log
		a, b := 0.5-theta*theta/24, 1./6-theta*theta/120
		if theta > 1e-3 {
			a = (1 - math.Cos(theta)) / (theta * theta)
			b = (theta - math.Sin(theta)) / (theta * theta * theta)
		}
		t = upsilon.Add(wu.Mul(a)).Add(wwu.Mul(b))
	}
	return Pose{Rotation: RotationVectorToQuat(omega), Translation: t}
}

// Log is the inverse of Exp, returning (omega, upsilon).
func (p Pose) Log() (r3.Vector, r3.Vector) {
	omega := QuatToRotationVector(p.Rotation)
	theta := omega.Norm()
	wt := omega.Cross(p.Translation)
	wwt := omega.Cross(wt)
	// series expansion of the wwt coefficient below 1e-3 rad, where 1-cos(theta) loses precision
	c := 1./12 + theta*theta/720
	if theta > 1e-3 {
		c = (1 - theta*math.Sin(theta)/(2*(1-math.Cos(theta)))) / (theta * theta)
	}
	return omega, p.Translation.Sub(wt.Mul(0.5)).Add(wwt.Mul(c))
}

// PoseAlmostEqual reports whether two poses agree within tol in both rotation and translation.
func PoseAlmostEqual(a, b Pose, tol float64) bool {
	return QuaternionAlmostEqual(Normalize(a.Rotation), Normalize(b.Rotation), tol) &&
		a.Translation.Sub(b.Translation).Norm() < tol
}
