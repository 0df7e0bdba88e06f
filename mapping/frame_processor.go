package mapping

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/lar/logging"
	"go.viam.com/lar/rimage/transform"
	"go.viam.com/lar/spatial"
	"go.viam.com/lar/vision"
	"go.viam.com/lar/vision/keypoints"
)

// FrameProcessor turns frames into landmark observations. Frames must be processed in
// ascending id order: each frame only matches against landmarks created by earlier frames.
type FrameProcessor struct {
	m      *Map
	vision vision.Vision
	cfg    Config
	logger logging.Logger
}

// NewFrameProcessor returns a processor that adds to m.
func NewFrameProcessor(m *Map, v vision.Vision, cfg Config, logger logging.Logger) *FrameProcessor {
	return &FrameProcessor{m: m, vision: v, cfg: cfg, logger: logger}
}

// PreparedFrame holds the per-frame sensor data that does not depend on the map.
type PreparedFrame struct {
	KeyPoints   keypoints.KeyPoints
	Descriptors keypoints.Descriptors
	Depth       []float64
	Confidence  []float64
	Normals     []r3.Vector
}

// Process extracts the frame's features and records them against the map. Processing a frame
// a second time does nothing.
func (fp *FrameProcessor) Process(ctx context.Context, frame *Frame) error {
	if frame.Processed {
		return nil
	}
	prepared, err := fp.Prepare(ctx, frame)
	if err != nil {
		return err
	}
	return fp.Apply(frame, prepared)
}

// Prepare extracts features and samples depth. It reads only the frame, so it may run
// concurrently with Apply of an earlier frame.
func (fp *FrameProcessor) Prepare(ctx context.Context, frame *Frame) (*PreparedFrame, error) {
	kps, desc, err := fp.vision.ExtractFeatures(ctx, frame.Image)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %d: feature extraction failed", frame.ID)
	}
	if len(kps) != len(desc) {
		return nil, errors.Errorf("frame %d: %d keypoints but %d descriptors", frame.ID, len(kps), len(desc))
	}
	if frame.DepthSource == nil {
		return nil, errors.Errorf("frame %d has no depth source", frame.ID)
	}
	depths, err := frame.DepthSource.DepthAt(kps)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %d: depth lookup failed", frame.ID)
	}
	confidence, err := frame.DepthSource.ConfidenceAt(kps)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %d: confidence lookup failed", frame.ID)
	}
	normals, err := frame.DepthSource.SurfaceNormalsAt(kps)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %d: surface normal lookup failed", frame.ID)
	}
	if len(depths) != len(kps) || len(confidence) != len(kps) || len(normals) != len(kps) {
		return nil, errors.Errorf("frame %d: depth source returned mismatched result lengths", frame.ID)
	}
	return &PreparedFrame{
		KeyPoints:   kps,
		Descriptors: desc,
		Depth:       depths,
		Confidence:  confidence,
		Normals:     normals,
	}, nil
}

// Apply matches the prepared features against nearby landmarks, creates landmarks for the
// unmatched ones and records an observation for every keypoint.
func (fp *FrameProcessor) Apply(frame *Frame, prepared *PreparedFrame) error {
	if frame.Processed {
		return nil
	}
	projection, err := transform.NewProjection(frame.Intrinsics, frame.Extrinsics)
	if err != nil {
		return errors.Wrapf(err, "frame %d", frame.ID)
	}
	landmarkIDs, err := fp.landmarkIDs(frame, prepared, projection)
	if err != nil {
		return err
	}

	camPosition := frame.CameraPosition()
	for i, kp := range prepared.KeyPoints {
		if landmarkIDs[i] == NoLandmark {
			continue
		}
		fp.m.Landmarks.At(landmarkIDs[i]).RecordObservation(Observation{
			FrameID:         frame.ID,
			Timestamp:       frame.Timestamp,
			CamPosition:     camPosition,
			KeyPoint:        kp,
			Depth:           prepared.Depth[i],
			DepthConfidence: prepared.Confidence[i],
			SurfaceNormal:   prepared.Normals[i],
		})
	}

	frame.KeyPoints = prepared.KeyPoints
	frame.Descriptors = prepared.Descriptors
	frame.Depth = prepared.Depth
	frame.Confidence = prepared.Confidence
	frame.LandmarkIDs = landmarkIDs
	frame.Processed = true
	return nil
}

// NoLandmark is the landmark id of a keypoint without a usable depth reading.
const NoLandmark = -1

// validDepth reports whether a depth reading can place a point in front of the camera.
func validDepth(d float64) bool {
	return d > 0 && !math.IsInf(d, 1)
}

// landmarkIDs resolves every keypoint to a landmark id, inserting new landmarks for the
// keypoints without a match. Keypoints without a valid depth are neither matched nor turned
// into landmarks and get NoLandmark.
func (fp *FrameProcessor) landmarkIDs(frame *Frame, prepared *PreparedFrame, projection *transform.Projection) ([]int, error) {
	valid := make([]int, 0, len(prepared.KeyPoints))
	desc := make(keypoints.Descriptors, 0, len(prepared.KeyPoints))
	for i, d := range prepared.Depth {
		if validDepth(d) {
			valid = append(valid, i)
			desc = append(desc, prepared.Descriptors[i])
		}
	}

	query := spatial.NewRegion(frame.GroundPosition(), fp.cfg.QueryDiameter, fp.cfg.QueryDiameter)
	matches, err := fp.matches(desc, query)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %d", frame.ID)
	}

	db := fp.m.Landmarks
	ids := make([]int, len(prepared.KeyPoints))
	for i := range ids {
		ids[i] = NoLandmark
	}
	newLandmarks := make([]*Landmark, 0, len(valid)-len(matches))
	nextID := db.Len()
	for j, i := range valid {
		if id, ok := matches[j]; ok {
			ids[i] = id
			continue
		}
		position := projection.ProjectToWorld(prepared.KeyPoints[i], prepared.Depth[i])
		newLandmarks = append(newLandmarks, NewLandmark(position, prepared.Descriptors[i], nextID))
		ids[i] = nextID
		nextID++
	}
	db.Insert(newLandmarks)

	fp.logger.Debugw("frame matched",
		"frame", frame.ID,
		"features", len(prepared.KeyPoints),
		"matched", len(matches),
		"created", len(newLandmarks),
		"no_depth", len(prepared.KeyPoints)-len(valid))
	return ids, nil
}

// matches maps keypoint index to landmark id. The mapping is injective: once a landmark is
// claimed, later matches to it are dropped, and matches come best first.
func (fp *FrameProcessor) matches(desc keypoints.Descriptors, query spatial.Region) (map[int]int, error) {
	candidates := fp.m.Landmarks.Find(query)
	if len(candidates) == 0 || len(desc) == 0 {
		return map[int]int{}, nil
	}
	found, err := fp.vision.Match(desc, ConcatDescriptors(candidates))
	if err != nil {
		return nil, errors.Wrap(err, "descriptor matching failed")
	}

	idxMatched := make(map[int]int, len(found))
	claimed := make(map[int]bool, len(found))
	for _, m := range found {
		if m.Idx1 < 0 || m.Idx1 >= len(desc) || m.Idx2 < 0 || m.Idx2 >= len(candidates) {
			return nil, errors.Errorf("matcher returned out of range pair (%d, %d)", m.Idx1, m.Idx2)
		}
		id := candidates[m.Idx2].ID
		if _, ok := idxMatched[m.Idx1]; ok || claimed[id] {
			continue
		}
		idxMatched[m.Idx1] = id
		claimed[id] = true
	}
	return idxMatched, nil
}
