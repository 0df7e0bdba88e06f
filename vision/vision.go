// Package vision is the feature extraction and matching boundary of the mapping pipeline.
package vision

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"go.viam.com/lar/logging"
	"go.viam.com/lar/vision/keypoints"
)

// ErrNoFeatures is returned when an image carries no extracted features.
var ErrNoFeatures = errors.New("image has no precomputed features")

// Vision extracts features from images and matches descriptor sets.
type Vision interface {
	// ExtractFeatures returns the keypoints of img and their descriptors, row i describing keypoint i.
	ExtractFeatures(ctx context.Context, img image.Image) (keypoints.KeyPoints, keypoints.Descriptors, error)
	// Match pairs query descriptors with corpus descriptors. Idx1 indexes query, Idx2 corpus.
	Match(query, corpus keypoints.Descriptors) ([]keypoints.DescriptorMatch, error)
}

// FeatureImage is an image whose features were extracted ahead of time, e.g. on the capture
// device. The embedded image may be nil when only the features were stored.
type FeatureImage struct {
	image.Image
	KeyPoints   keypoints.KeyPoints
	Descriptors keypoints.Descriptors
}

// Precomputed serves features stored on FeatureImages and matches them by Hamming distance.
type Precomputed struct {
	cfg    keypoints.MatchingConfig
	logger logging.Logger
}

// NewPrecomputed returns a Vision backed by precomputed features.
func NewPrecomputed(cfg keypoints.MatchingConfig, logger logging.Logger) *Precomputed {
	return &Precomputed{cfg: cfg, logger: logger}
}

// ExtractFeatures returns the features stored on img, which must be a *FeatureImage.
func (p *Precomputed) ExtractFeatures(ctx context.Context, img image.Image) (keypoints.KeyPoints, keypoints.Descriptors, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	fi, ok := img.(*FeatureImage)
	if !ok || fi == nil {
		return nil, nil, ErrNoFeatures
	}
	if len(fi.KeyPoints) != len(fi.Descriptors) {
		return nil, nil, errors.Errorf("have %d keypoints but %d descriptors", len(fi.KeyPoints), len(fi.Descriptors))
	}
	return fi.KeyPoints, fi.Descriptors, nil
}

// Match performs brute force Hamming matching with the configured cross check and distance cap.
func (p *Precomputed) Match(query, corpus keypoints.Descriptors) ([]keypoints.DescriptorMatch, error) {
	return keypoints.MatchDescriptors(query, corpus, &p.cfg, p.logger)
}
