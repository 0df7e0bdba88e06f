// Package mapping builds the landmark map from an ordered set of camera frames.
package mapping

import (
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/lar/vision/keypoints"
)

// UsableThreshold is the number of sightings after which a landmark is trusted in optimization.
const UsableThreshold = 3

// Observation is one frame's measurement of a landmark.
type Observation struct {
	FrameID         int
	Timestamp       time.Time
	CamPosition     r3.Vector
	KeyPoint        r2.Point
	Depth           float64
	DepthConfidence float64
	SurfaceNormal   r3.Vector
}

// Landmark is a persistent 3D point with a descriptor and its observation history.
type Landmark struct {
	ID           int
	Position     r3.Vector
	Desc         keypoints.Descriptor
	Sightings    int
	Observations []Observation
	IsFixed      bool

	// IndexCenter and IndexRadius are frozen at the first observation: the camera's ground plane
	// position and its ground plane distance to the landmark.
	IndexCenter r2.Point
	IndexRadius float64
}

// NewLandmark returns a landmark that has not been observed yet.
func NewLandmark(position r3.Vector, desc keypoints.Descriptor, id int) *Landmark {
	return &Landmark{ID: id, Position: position, Desc: desc}
}

// RecordObservation appends obs to the landmark's history.
func (l *Landmark) RecordObservation(obs Observation) {
	if l.Sightings == 0 {
		l.IndexCenter = groundPlane(obs.CamPosition)
		l.IndexRadius = groundPlane(l.Position).Sub(l.IndexCenter).Norm()
	}
	l.Observations = append(l.Observations, obs)
	l.Sightings++
}

// IsUsable reports whether the landmark has at least UsableThreshold sightings.
func (l *Landmark) IsUsable() bool {
	return l.IsUsableAt(UsableThreshold)
}

// IsUsableAt is IsUsable with a configured threshold.
func (l *Landmark) IsUsableAt(threshold int) bool {
	return l.Sightings >= threshold
}

// ConcatDescriptors stacks the landmarks' descriptors, row i belonging to landmarks[i].
func ConcatDescriptors(landmarks []*Landmark) keypoints.Descriptors {
	desc := make(keypoints.Descriptors, len(landmarks))
	for i, l := range landmarks {
		desc[i] = l.Desc
	}
	return desc
}

// groundPlane drops the vertical (y) axis.
func groundPlane(v r3.Vector) r2.Point {
	return r2.Point{X: v.X, Y: v.Z}
}
