// Package posegraph is a small sparse graph optimizer for bundle adjustment: SE3 camera poses,
// 3D points, odometry and depth-augmented projection constraints.
package posegraph

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lar/spatialmath"
)

var (
	// ErrDuplicateVertex is returned when a vertex id is added twice.
	ErrDuplicateVertex = errors.New("vertex id already in graph")
	// ErrDuplicateParameter is returned when a parameter block id is added twice.
	ErrDuplicateParameter = errors.New("parameter id already in graph")
	// ErrMissingVertex is returned when an edge refers to a vertex that was not added.
	ErrMissingVertex = errors.New("vertex not in graph")
	// ErrMissingParameter is returned when an edge refers to a parameter block that was not added.
	ErrMissingParameter = errors.New("parameter not in graph")
	// ErrVertexKind is returned when an edge connects a vertex of the wrong kind.
	ErrVertexKind = errors.New("vertex has the wrong kind for this edge")
)

// CameraParameters is a pinhole camera parameter block shared by projection edges.
type CameraParameters struct {
	Fx, Fy float64
	Cx, Cy float64
}

// Project maps a point in the camera frame (x right, y down, z forward) to (u, v, depth).
func (c CameraParameters) Project(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: c.Fx*p.X/p.Z + c.Cx,
		Y: c.Fy*p.Y/p.Z + c.Cy,
		Z: p.Z,
	}
}

// Optimizer builds and solves a pose graph. Pose estimates map world points into the camera
// frame. Vertex ids are shared between poses and points.
type Optimizer interface {
	AddParameter(id int, params CameraParameters) error
	AddPoseVertex(id int, estimate spatialmath.Pose, fixed bool) error
	AddPointVertex(id int, estimate r3.Vector, fixed, marginalized bool) error
	// AddOdometryEdge constrains the relative motion measurement = to * from^-1.
	AddOdometryEdge(from, to int, measurement spatialmath.Pose, information mat.Symmetric) error
	// AddProjectionEdge constrains the (u, v, depth) observation of a point from a pose.
	AddProjectionEdge(point, pose int, measurement r3.Vector, information mat.Symmetric, parameterID int) error

	// Optimize runs the given number of iterations.
	Optimize(ctx context.Context, iterations int) error
	// Chi2 is the sum of the information weighted squared errors of all edges.
	Chi2() float64

	PoseEstimate(id int) (spatialmath.Pose, bool)
	PointEstimate(id int) (r3.Vector, bool)
}
