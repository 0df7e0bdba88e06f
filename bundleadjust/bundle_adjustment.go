// Package bundleadjust refines landmark positions, and optionally frame poses, with one pose
// graph optimization over a processed map.
package bundleadjust

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/lar/logging"
	"go.viam.com/lar/mapping"
	"go.viam.com/lar/posegraph"
	"go.viam.com/lar/rimage/transform"
	"go.viam.com/lar/spatialmath"
)

// axisFlip turns the device camera frame (y up, looking down -z) into the image convention
// (y down, looking down +z) by negating the y and z columns of a rotation. It is its own inverse.
var axisFlip = [3]float64{1, -1, -1}

// BundleAdjustment builds the pose graph of a map and writes the optimized estimates back.
//
// Frames are identified by their position in the frame slice: frame i is pose vertex i and
// owns camera parameter block i+1, and landmark j is point vertex len(frames)+j. Landmark
// observations must refer to frames by that position.
type BundleAdjustment struct {
	m         *mapping.Map
	frames    []*mapping.Frame
	cfg       Config
	optimizer posegraph.Optimizer
	logger    logging.Logger

	constructed bool
	stats       Stats
	// inGraph holds the indices of the landmarks that have a point vertex.
	inGraph map[int]bool
}

// New returns a pass over m backed by a fresh posegraph.SparseOptimizer.
func New(m *mapping.Map, frames []*mapping.Frame, cfg Config, logger logging.Logger) *BundleAdjustment {
	return NewWithOptimizer(m, frames, posegraph.NewSparseOptimizer(logger.Sublogger("optimizer")), cfg, logger)
}

// NewWithOptimizer is New with a caller supplied, empty optimizer.
func NewWithOptimizer(
	m *mapping.Map,
	frames []*mapping.Frame,
	optimizer posegraph.Optimizer,
	cfg Config,
	logger logging.Logger,
) *BundleAdjustment {
	return &BundleAdjustment{m: m, frames: frames, cfg: cfg, optimizer: optimizer, logger: logger}
}

// Stats returns the counts gathered by Construct.
func (ba *BundleAdjustment) Stats() Stats {
	return ba.stats
}

// Construct adds every frame and usable landmark to the graph. It may only be called once.
func (ba *BundleAdjustment) Construct() error {
	if ba.constructed {
		return errors.New("bundle adjustment graph already constructed")
	}
	ba.stats = newStats(len(ba.frames))

	for i, frame := range ba.frames {
		if err := ba.addPose(i, frame, i == len(ba.frames)-1); err != nil {
			return err
		}
		if i > 0 {
			if err := ba.addOdometry(i); err != nil {
				return err
			}
		}
		if err := ba.addIntrinsics(i, frame); err != nil {
			return err
		}
	}

	ba.inGraph = map[int]bool{}
	skipped := 0
	for idx, landmark := range ba.m.Landmarks.All() {
		observations, err := ba.measurableObservations(landmark)
		if err != nil {
			return err
		}
		if !landmark.IsUsableAt(ba.cfg.UsableThreshold) {
			continue
		}
		skipped += len(landmark.Observations) - len(observations)
		if len(observations) == 0 {
			continue
		}
		id := len(ba.frames) + idx
		if err := ba.optimizer.AddPointVertex(id, landmark.Position, landmark.IsFixed, !landmark.IsFixed); err != nil {
			return err
		}
		ba.inGraph[idx] = true
		ba.stats.TotalUsableLandmarks++
		for _, obs := range observations {
			if err := ba.addProjection(id, obs); err != nil {
				return err
			}
		}
	}
	if skipped > 0 {
		ba.logger.Debugw("skipped unmeasurable observations", "observations", skipped)
	}

	ba.constructed = true
	ba.stats.Log(ba.logger)
	return nil
}

// Optimize runs the configured iterations and writes the estimates back to the map, and to the
// frames when pose writeback is enabled.
func (ba *BundleAdjustment) Optimize(ctx context.Context) error {
	if !ba.constructed {
		return errors.New("bundle adjustment graph not constructed")
	}
	before := ba.optimizer.Chi2()
	if err := ba.optimizer.Optimize(ctx, ba.cfg.Iterations); err != nil {
		return errors.Wrap(err, "bundle adjustment failed")
	}
	ba.logger.Infow("bundle adjustment done",
		"iterations", ba.cfg.Iterations,
		"chi2_before", before,
		"chi2_after", ba.optimizer.Chi2())

	for idx, landmark := range ba.m.Landmarks.All() {
		if !ba.inGraph[idx] {
			continue
		}
		position, ok := ba.optimizer.PointEstimate(len(ba.frames) + idx)
		if !ok {
			return errors.Wrapf(posegraph.ErrMissingVertex, "landmark %d", landmark.ID)
		}
		landmark.Position = position
	}

	if !ba.cfg.WritebackPoses {
		return nil
	}
	for i, frame := range ba.frames {
		pose, ok := ba.optimizer.PoseEstimate(i)
		if !ok {
			return errors.Wrapf(posegraph.ErrMissingVertex, "frame %d", frame.ID)
		}
		frame.Extrinsics = ExtrinsicsFromPose(pose)
	}
	return nil
}

// PoseFromExtrinsics converts a device camera-to-world transform into the world-to-camera pose
// used by the graph, with the camera axes in image convention.
func PoseFromExtrinsics(extrinsics mat.Matrix) spatialmath.Pose {
	rot := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot.Set(i, j, extrinsics.At(i, j)*axisFlip[j])
		}
	}
	translation := r3.Vector{X: extrinsics.At(0, 3), Y: extrinsics.At(1, 3), Z: extrinsics.At(2, 3)}
	return spatialmath.NewPoseFromRotationMatrix(rot, translation).Inverse()
}

// ExtrinsicsFromPose is the inverse of PoseFromExtrinsics.
func ExtrinsicsFromPose(pose spatialmath.Pose) *mat.Dense {
	out := pose.Inverse().Matrix()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, out.At(i, j)*axisFlip[j])
		}
	}
	return out
}

func (ba *BundleAdjustment) addPose(id int, frame *mapping.Frame, fixed bool) error {
	if r, c := frame.Extrinsics.Dims(); r != 4 || c != 4 {
		return errors.Errorf("frame %d: extrinsics must be 4x4, got %dx%d", frame.ID, r, c)
	}
	return ba.optimizer.AddPoseVertex(id, PoseFromExtrinsics(frame.Extrinsics), fixed)
}

func (ba *BundleAdjustment) addOdometry(id int) error {
	previous, ok := ba.optimizer.PoseEstimate(id - 1)
	if !ok {
		return errors.Wrapf(posegraph.ErrMissingVertex, "pose %d", id-1)
	}
	current, ok := ba.optimizer.PoseEstimate(id)
	if !ok {
		return errors.Wrapf(posegraph.ErrMissingVertex, "pose %d", id)
	}
	information := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		information.SetSym(i, i, ba.cfg.OdometryInformation)
	}
	return ba.optimizer.AddOdometryEdge(id-1, id, current.Compose(previous.Inverse()), information)
}

func (ba *BundleAdjustment) addIntrinsics(id int, frame *mapping.Frame) error {
	k, err := transform.NewPinholeCameraIntrinsicsFromMatrix(frame.Intrinsics)
	if err != nil {
		return errors.Wrapf(err, "frame %d", frame.ID)
	}
	return ba.optimizer.AddParameter(id+1, posegraph.CameraParameters{Fx: k.Fx, Fy: k.Fy, Cx: k.Ppx, Cy: k.Ppy})
}

// measurableObservations counts every observation of the landmark in the stats and returns
// those that can constrain it: a finite positive depth, a finite non-negative confidence and
// the landmark in front of the observing camera. Anything else would turn the projection
// residual into NaN.
func (ba *BundleAdjustment) measurableObservations(landmark *mapping.Landmark) ([]mapping.Observation, error) {
	out := make([]mapping.Observation, 0, len(landmark.Observations))
	for _, obs := range landmark.Observations {
		frame := obs.FrameID
		if frame < 0 || frame >= len(ba.frames) {
			return nil, errors.Wrapf(posegraph.ErrMissingVertex, "landmark %d observed by unknown frame %d", landmark.ID, frame)
		}
		ba.stats.Landmarks[frame]++
		if !(obs.Depth > 0) || math.IsInf(obs.Depth, 1) {
			continue
		}
		if !(obs.DepthConfidence >= 0) || math.IsInf(obs.DepthConfidence, 1) {
			continue
		}
		pose, ok := ba.optimizer.PoseEstimate(frame)
		if !ok {
			return nil, errors.Wrapf(posegraph.ErrMissingVertex, "pose %d", frame)
		}
		if pose.Transform(landmark.Position).Z <= 0 {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

func (ba *BundleAdjustment) addProjection(id int, obs mapping.Observation) error {
	measurement := r3.Vector{X: obs.KeyPoint.X, Y: obs.KeyPoint.Y, Z: obs.Depth}
	information := mat.NewSymDense(3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, obs.DepthConfidence,
	})
	if err := ba.optimizer.AddProjectionEdge(id, obs.FrameID, measurement, information, obs.FrameID+1); err != nil {
		return err
	}
	ba.stats.UsableLandmarks[obs.FrameID]++
	return nil
}
