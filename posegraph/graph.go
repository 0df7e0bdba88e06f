package posegraph

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lar/spatialmath"
)

type vertexKind int

const (
	poseVertex vertexKind = iota
	pointVertex
)

func (k vertexKind) String() string {
	if k == poseVertex {
		return "pose"
	}
	return "point"
}

type vertex struct {
	id           int
	kind         vertexKind
	pose         spatialmath.Pose
	point        r3.Vector
	fixed        bool
	marginalized bool

	// solver bookkeeping, valid during an optimization
	offset   int // start in the reduced system, -1 when not part of it
	landmark int // index among the eliminated points, -1 otherwise
}

func (v *vertex) dof() int {
	if v.kind == poseVertex {
		return 6
	}
	return 3
}

// oplus applies an increment: a left multiplied twist (omega, upsilon) for poses, a plain
// offset for points.
func (v *vertex) oplus(delta []float64) {
	if v.kind == poseVertex {
		step := spatialmath.Exp(
			r3.Vector{X: delta[0], Y: delta[1], Z: delta[2]},
			r3.Vector{X: delta[3], Y: delta[4], Z: delta[5]},
		)
		v.pose = step.Compose(v.pose)
		return
	}
	v.point = v.point.Add(r3.Vector{X: delta[0], Y: delta[1], Z: delta[2]})
}

type vertexState struct {
	pose  spatialmath.Pose
	point r3.Vector
}

func (v *vertex) save() vertexState {
	return vertexState{pose: v.pose, point: v.point}
}

func (v *vertex) restore(s vertexState) {
	v.pose = s.pose
	v.point = s.point
}

// edge is a constraint over one or more vertices. residual is measurement minus prediction,
// in the measurement's tangent space.
type edge interface {
	vertices() []*vertex
	dimension() int
	residual() []float64
	information() mat.Symmetric
}

// odometryEdge constrains the motion between two poses.
type odometryEdge struct {
	from, to    *vertex
	measurement spatialmath.Pose
	info        mat.Symmetric
}

func (e *odometryEdge) vertices() []*vertex        { return []*vertex{e.from, e.to} }
func (e *odometryEdge) dimension() int             { return 6 }
func (e *odometryEdge) information() mat.Symmetric { return e.info }

func (e *odometryEdge) residual() []float64 {
	delta := e.to.pose.Inverse().Compose(e.measurement).Compose(e.from.pose)
	omega, upsilon := delta.Log()
	return []float64{omega.X, omega.Y, omega.Z, upsilon.X, upsilon.Y, upsilon.Z}
}

// projectionEdge constrains the pixel and depth at which a pose observes a point.
type projectionEdge struct {
	point, pose *vertex
	measurement r3.Vector
	info        mat.Symmetric
	camera      CameraParameters
}

func (e *projectionEdge) vertices() []*vertex        { return []*vertex{e.point, e.pose} }
func (e *projectionEdge) dimension() int             { return 3 }
func (e *projectionEdge) information() mat.Symmetric { return e.info }

func (e *projectionEdge) residual() []float64 {
	predicted := e.camera.Project(e.pose.pose.Transform(e.point.point))
	r := e.measurement.Sub(predicted)
	return []float64{r.X, r.Y, r.Z}
}

// chi2 returns r^T * info * r for an edge.
func chi2(e edge) float64 {
	r := mat.NewVecDense(e.dimension(), e.residual())
	return mat.Inner(r, e.information(), r)
}

const jacobianStep = 1e-6

// jacobian numerically differentiates the edge residual with respect to v by central
// differences in the vertex's tangent space.
func jacobian(e edge, v *vertex) *mat.Dense {
	dim, dof := e.dimension(), v.dof()
	out := mat.NewDense(dim, dof, nil)
	saved := v.save()
	delta := make([]float64, dof)
	for k := 0; k < dof; k++ {
		delta[k] = jacobianStep
		v.oplus(delta)
		plus := e.residual()
		v.restore(saved)

		delta[k] = -jacobianStep
		v.oplus(delta)
		minus := e.residual()
		v.restore(saved)
		delta[k] = 0

		for i := 0; i < dim; i++ {
			out.Set(i, k, (plus[i]-minus[i])/(2*jacobianStep))
		}
	}
	return out
}
