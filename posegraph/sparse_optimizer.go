package posegraph

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lar/logging"
	"go.viam.com/lar/spatialmath"
)

const (
	initialLambdaScale = 1e-5
	minLambda          = 1e-12
	maxLambda          = 1e12
)

// SparseOptimizer is a Levenberg-Marquardt Optimizer. Marginalized point vertices are
// eliminated with a Schur complement so the dense system only spans poses and the points
// that are not marginalized.
type SparseOptimizer struct {
	vertices   []*vertex
	byID       map[int]*vertex
	edges      []edge
	parameters map[int]CameraParameters
	logger     logging.Logger
}

// NewSparseOptimizer returns an empty graph.
func NewSparseOptimizer(logger logging.Logger) *SparseOptimizer {
	return &SparseOptimizer{
		byID:       map[int]*vertex{},
		parameters: map[int]CameraParameters{},
		logger:     logger,
	}
}

// AddParameter registers a camera parameter block.
func (so *SparseOptimizer) AddParameter(id int, params CameraParameters) error {
	if _, ok := so.parameters[id]; ok {
		return errors.Wrapf(ErrDuplicateParameter, "parameter %d", id)
	}
	so.parameters[id] = params
	return nil
}

// AddPoseVertex adds an SE3 vertex.
func (so *SparseOptimizer) AddPoseVertex(id int, estimate spatialmath.Pose, fixed bool) error {
	return so.addVertex(&vertex{id: id, kind: poseVertex, pose: estimate, fixed: fixed})
}

// AddPointVertex adds a 3D point vertex.
func (so *SparseOptimizer) AddPointVertex(id int, estimate r3.Vector, fixed, marginalized bool) error {
	return so.addVertex(&vertex{id: id, kind: pointVertex, point: estimate, fixed: fixed, marginalized: marginalized})
}

func (so *SparseOptimizer) addVertex(v *vertex) error {
	if _, ok := so.byID[v.id]; ok {
		return errors.Wrapf(ErrDuplicateVertex, "%s vertex %d", v.kind, v.id)
	}
	so.byID[v.id] = v
	so.vertices = append(so.vertices, v)
	return nil
}

func (so *SparseOptimizer) vertex(id int, kind vertexKind) (*vertex, error) {
	v, ok := so.byID[id]
	if !ok {
		return nil, errors.Wrapf(ErrMissingVertex, "%s vertex %d", kind, id)
	}
	if v.kind != kind {
		return nil, errors.Wrapf(ErrVertexKind, "vertex %d is a %s, expected a %s", id, v.kind, kind)
	}
	return v, nil
}

func checkInformation(information mat.Symmetric, dim int) error {
	if information == nil {
		return errors.New("information matrix is nil")
	}
	if n := information.SymmetricDim(); n != dim {
		return errors.Errorf("information matrix is %dx%d, expected %dx%d", n, n, dim, dim)
	}
	return nil
}

// AddOdometryEdge adds a relative motion constraint between two poses.
func (so *SparseOptimizer) AddOdometryEdge(from, to int, measurement spatialmath.Pose, information mat.Symmetric) error {
	vFrom, err := so.vertex(from, poseVertex)
	if err != nil {
		return err
	}
	vTo, err := so.vertex(to, poseVertex)
	if err != nil {
		return err
	}
	if err := checkInformation(information, 6); err != nil {
		return errors.Wrapf(err, "odometry edge %d -> %d", from, to)
	}
	so.edges = append(so.edges, &odometryEdge{from: vFrom, to: vTo, measurement: measurement, info: information})
	return nil
}

// AddProjectionEdge adds a (u, v, depth) observation of a point from a pose.
func (so *SparseOptimizer) AddProjectionEdge(
	point, pose int,
	measurement r3.Vector,
	information mat.Symmetric,
	parameterID int,
) error {
	vPoint, err := so.vertex(point, pointVertex)
	if err != nil {
		return err
	}
	vPose, err := so.vertex(pose, poseVertex)
	if err != nil {
		return err
	}
	camera, ok := so.parameters[parameterID]
	if !ok {
		return errors.Wrapf(ErrMissingParameter, "parameter %d", parameterID)
	}
	if err := checkInformation(information, 3); err != nil {
		return errors.Wrapf(err, "projection edge %d -> %d", point, pose)
	}
	so.edges = append(so.edges, &projectionEdge{
		point:       vPoint,
		pose:        vPose,
		measurement: measurement,
		info:        information,
		camera:      camera,
	})
	return nil
}

// PoseEstimate returns the current estimate of a pose vertex.
func (so *SparseOptimizer) PoseEstimate(id int) (spatialmath.Pose, bool) {
	v, err := so.vertex(id, poseVertex)
	if err != nil {
		return spatialmath.Pose{}, false
	}
	return v.pose, true
}

// PointEstimate returns the current estimate of a point vertex.
func (so *SparseOptimizer) PointEstimate(id int) (r3.Vector, bool) {
	v, err := so.vertex(id, pointVertex)
	if err != nil {
		return r3.Vector{}, false
	}
	return v.point, true
}

// Chi2 returns the total weighted squared error at the current estimates.
func (so *SparseOptimizer) Chi2() float64 {
	total := 0.
	for _, e := range so.edges {
		total += chi2(e)
	}
	return total
}

// Optimize runs exactly iterations Levenberg-Marquardt steps; a rejected step still counts.
// It fails if the damped system cannot be solved on the first iteration.
func (so *SparseOptimizer) Optimize(ctx context.Context, iterations int) error {
	sys := so.index()
	if sys.reducedDim == 0 && len(sys.landmarks) == 0 {
		so.logger.Debug("no free vertices, nothing to optimize")
		return nil
	}

	current := so.Chi2()
	lambda := -1.
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "optimization stopped after %d iterations", i)
		}

		sys.linearize(so.edges)
		if lambda < 0 {
			lambda = initialLambdaScale * math.Max(sys.maxDiagonal(), 1)
		}

		saved := make([]vertexState, len(so.vertices))
		for j, v := range so.vertices {
			saved[j] = v.save()
		}
		if err := sys.step(lambda); err != nil {
			if i == 0 {
				return errors.Wrap(err, "cannot solve the initial system")
			}
			lambda = math.Min(lambda*4, maxLambda)
			continue
		}

		next := so.Chi2()
		accepted := next < current
		if accepted {
			current = next
			lambda = math.Max(lambda/3, minLambda)
		} else {
			for j, v := range so.vertices {
				v.restore(saved[j])
			}
			lambda = math.Min(lambda*4, maxLambda)
		}
		so.logger.Debugw("optimizer iteration",
			"iteration", i,
			"chi2", current,
			"lambda", lambda,
			"accepted", accepted)
	}
	return nil
}

// index assigns every free vertex a place in the system: an offset in the reduced system, or
// a slot among the eliminated points.
func (so *SparseOptimizer) index() *system {
	sys := &system{}
	for _, v := range so.vertices {
		v.offset, v.landmark = -1, -1
		switch {
		case v.fixed:
		case v.kind == pointVertex && v.marginalized:
			v.landmark = len(sys.landmarks)
			sys.landmarks = append(sys.landmarks, &landmarkBlock{v: v})
		default:
			v.offset = sys.reducedDim
			sys.reducedDim += v.dof()
			sys.reduced = append(sys.reduced, v)
		}
	}
	return sys
}

// landmarkBlock holds the normal equation blocks of one eliminated point.
type landmarkBlock struct {
	v   *vertex
	hpp *mat.Dense
	bp  *mat.VecDense
	// hrp maps a reduced vertex to its coupling block with this point (vertex dof x 3).
	hrp   map[*vertex]*mat.Dense
	order []*vertex
}

// system is the linearized normal equations H * dx = b of the graph.
type system struct {
	reduced    []*vertex
	reducedDim int
	landmarks  []*landmarkBlock

	hrr *mat.Dense
	br  *mat.VecDense
}

func (s *system) linearize(edges []edge) {
	if s.reducedDim > 0 {
		s.hrr = mat.NewDense(s.reducedDim, s.reducedDim, nil)
		s.br = mat.NewVecDense(s.reducedDim, nil)
	}
	for _, lb := range s.landmarks {
		lb.hpp = mat.NewDense(3, 3, nil)
		lb.bp = mat.NewVecDense(3, nil)
		lb.hrp = map[*vertex]*mat.Dense{}
		lb.order = nil
	}

	for _, e := range edges {
		vs := e.vertices()
		jacobians := make([]*mat.Dense, len(vs))
		weighted := make([]*mat.Dense, len(vs))
		for k, v := range vs {
			if v.fixed {
				continue
			}
			jacobians[k] = jacobian(e, v)
			var jtw mat.Dense
			jtw.Mul(jacobians[k].T(), e.information())
			weighted[k] = &jtw
		}
		r := mat.NewVecDense(e.dimension(), e.residual())

		for a, va := range vs {
			if va.fixed {
				continue
			}
			var g mat.VecDense
			g.MulVec(weighted[a], r)
			s.addGradient(va, &g)
			for b, vb := range vs {
				if vb.fixed {
					continue
				}
				var block mat.Dense
				block.Mul(weighted[a], jacobians[b])
				s.addHessian(va, vb, &block)
			}
		}
	}
}

// addGradient accumulates -J^T W r into the right hand side.
func (s *system) addGradient(v *vertex, g *mat.VecDense) {
	if v.landmark >= 0 {
		s.landmarks[v.landmark].bp.SubVec(s.landmarks[v.landmark].bp, g)
		return
	}
	for i := 0; i < v.dof(); i++ {
		s.br.SetVec(v.offset+i, s.br.AtVec(v.offset+i)-g.AtVec(i))
	}
}

// addHessian accumulates J_a^T W J_b. Couplings between two eliminated points have no place
// in the system; no edge kind creates them.
func (s *system) addHessian(a, b *vertex, block *mat.Dense) {
	switch {
	case a.landmark >= 0 && b.landmark >= 0:
		if a == b {
			s.landmarks[a.landmark].hpp.Add(s.landmarks[a.landmark].hpp, block)
		}
	case a.landmark >= 0:
		// the (point, reduced) block is the transpose of the (reduced, point) block
	case b.landmark >= 0:
		lb := s.landmarks[b.landmark]
		existing, ok := lb.hrp[a]
		if !ok {
			existing = mat.NewDense(a.dof(), 3, nil)
			lb.hrp[a] = existing
			lb.order = append(lb.order, a)
		}
		existing.Add(existing, block)
	default:
		rows, cols := block.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				s.hrr.Set(a.offset+i, b.offset+j, s.hrr.At(a.offset+i, b.offset+j)+block.At(i, j))
			}
		}
	}
}

func (s *system) maxDiagonal() float64 {
	var diag []float64
	for i := 0; i < s.reducedDim; i++ {
		diag = append(diag, s.hrr.At(i, i))
	}
	for _, lb := range s.landmarks {
		for i := 0; i < 3; i++ {
			diag = append(diag, lb.hpp.At(i, i))
		}
	}
	if len(diag) == 0 {
		return 0
	}
	return floats.Max(diag)
}

// step solves the damped system and applies the increment to the free vertices.
func (s *system) step(lambda float64) error {
	inverses := make([]*mat.Dense, len(s.landmarks))
	for i, lb := range s.landmarks {
		damped := mat.DenseCopyOf(lb.hpp)
		for k := 0; k < 3; k++ {
			damped.Set(k, k, damped.At(k, k)+lambda)
		}
		var inv mat.Dense
		if err := inv.Inverse(damped); err != nil {
			return errors.Wrapf(err, "point vertex %d", lb.v.id)
		}
		inverses[i] = &inv
	}

	dr := mat.NewVecDense(max(s.reducedDim, 1), nil)
	if s.reducedDim > 0 {
		schur := mat.DenseCopyOf(s.hrr)
		rhs := mat.VecDenseCopyOf(s.br)
		for i := 0; i < s.reducedDim; i++ {
			schur.Set(i, i, schur.At(i, i)+lambda)
		}
		for i, lb := range s.landmarks {
			s.eliminate(lb, inverses[i], schur, rhs)
		}

		sym := mat.NewSymDense(s.reducedDim, nil)
		for i := 0; i < s.reducedDim; i++ {
			for j := i; j < s.reducedDim; j++ {
				sym.SetSym(i, j, (schur.At(i, j)+schur.At(j, i))/2)
			}
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(sym); !ok {
			return errors.New("reduced system is not positive definite")
		}
		if err := chol.SolveVecTo(dr, rhs); err != nil {
			return errors.Wrap(err, "cannot solve reduced system")
		}
		for _, v := range s.reduced {
			v.oplus(dr.RawVector().Data[v.offset : v.offset+v.dof()])
		}
	}

	for i, lb := range s.landmarks {
		// dp = Hpp^-1 (bp - sum Hrp^T dr)
		rhs := mat.VecDenseCopyOf(lb.bp)
		for _, v := range lb.order {
			var coupled mat.VecDense
			coupled.MulVec(lb.hrp[v].T(), dr.SliceVec(v.offset, v.offset+v.dof()))
			rhs.SubVec(rhs, &coupled)
		}
		var dp mat.VecDense
		dp.MulVec(inverses[i], rhs)
		lb.v.oplus(dp.RawVector().Data)
	}
	return nil
}

// eliminate subtracts the point's contribution from the reduced system:
// S -= Hrp Hpp^-1 Hrp^T and g -= Hrp Hpp^-1 bp.
func (s *system) eliminate(lb *landmarkBlock, inv, schur *mat.Dense, rhs *mat.VecDense) {
	for _, a := range lb.order {
		var left mat.Dense
		left.Mul(lb.hrp[a], inv)

		var g mat.VecDense
		g.MulVec(&left, lb.bp)
		for i := 0; i < a.dof(); i++ {
			rhs.SetVec(a.offset+i, rhs.AtVec(a.offset+i)-g.AtVec(i))
		}

		for _, b := range lb.order {
			var block mat.Dense
			block.Mul(&left, lb.hrp[b].T())
			rows, cols := block.Dims()
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					schur.Set(a.offset+i, b.offset+j, schur.At(a.offset+i, b.offset+j)-block.At(i, j))
				}
			}
		}
	}
}
