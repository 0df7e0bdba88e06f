// Package mapper drives a mapping run: every frame through the frame processor in id order,
// then one bundle adjustment pass.
package mapper

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/fogleman/gg"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/lar/bundleadjust"
	"go.viam.com/lar/logging"
	"go.viam.com/lar/mapping"
	"go.viam.com/lar/vision"
	"go.viam.com/lar/vision/keypoints"
)

// Mapper builds one map. A Mapper is not safe for concurrent use.
type Mapper struct {
	cfg       Config
	m         *mapping.Map
	processor *mapping.FrameProcessor
	runID     uuid.UUID
	clock     clock.Clock
	logger    logging.Logger
}

// NewMapper returns a Mapper with an empty map. A nil v uses precomputed features matched
// with the configured matching policy.
func NewMapper(v vision.Vision, cfg Config, logger logging.Logger) *Mapper {
	runID := uuid.New()
	logger = logger.WithFields("run", runID.String())
	if v == nil {
		v = vision.NewPrecomputed(cfg.Matching, logger.Sublogger("vision"))
	}
	m := mapping.NewMap()
	return &Mapper{
		cfg:       cfg,
		m:         m,
		processor: mapping.NewFrameProcessor(m, v, cfg.Mapping, logger.Sublogger("frames")),
		runID:     runID,
		clock:     clock.New(),
		logger:    logger,
	}
}

// Map returns the map being built.
func (mp *Mapper) Map() *mapping.Map {
	return mp.m
}

// RunID identifies this run in logs.
func (mp *Mapper) RunID() uuid.UUID {
	return mp.runID
}

// Run processes the frames and adjusts the result. Frame ids must be 0 through len(frames)-1
// in any order; frames are processed in ascending id order. Features of the next frame are
// extracted while the current one is matched against the map.
func (mp *Mapper) Run(ctx context.Context, frames []*mapping.Frame) (bundleadjust.Stats, error) {
	ordered := make([]*mapping.Frame, len(frames))
	copy(ordered, frames)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for i, f := range ordered {
		if f.ID != i {
			return bundleadjust.Stats{}, errors.Errorf("frame ids must be 0 through %d, found %d", len(ordered)-1, f.ID)
		}
	}

	start := mp.clock.Now()
	if err := mp.processFrames(ctx, ordered); err != nil {
		return bundleadjust.Stats{}, err
	}
	mp.logger.Infow("frames processed",
		"frames", len(ordered),
		"landmarks", mp.m.Landmarks.Len(),
		"index_depth", mp.m.Landmarks.Index().Depth(),
		"elapsed", mp.clock.Since(start))
	if mp.cfg.KeypointPlotDir != "" {
		if err := mp.plotKeypoints(ordered); err != nil {
			return bundleadjust.Stats{}, err
		}
	}

	var stats bundleadjust.Stats
	if !mp.cfg.SkipBundleAdjustment {
		ba := bundleadjust.New(mp.m, ordered, mp.cfg.BundleAdjustment, mp.logger.Sublogger("bundleadjust"))
		if err := ba.Construct(); err != nil {
			return bundleadjust.Stats{}, err
		}
		if err := ba.Optimize(ctx); err != nil {
			return ba.Stats(), err
		}
		stats = ba.Stats()
	}

	if mp.cfg.RenderPath != "" {
		img := mapping.RenderMap(mp.m, ordered, mp.cfg.RenderScale, mp.cfg.BundleAdjustment.UsableThreshold)
		if err := gg.SavePNG(mp.cfg.RenderPath, img); err != nil {
			return stats, errors.Wrap(err, "cannot save map render")
		}
		mp.logger.Infow("map rendered", "path", mp.cfg.RenderPath)
	}
	return stats, nil
}

// processFrames prepares frame n+1 while frame n is applied. Apply calls stay in frame order
// on a single goroutine.
func (mp *Mapper) processFrames(ctx context.Context, frames []*mapping.Frame) error {
	todo := make([]*mapping.Frame, 0, len(frames))
	for _, f := range frames {
		if !f.Processed {
			todo = append(todo, f)
		}
	}

	prepared := make(chan *mapping.PreparedFrame)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer close(prepared)
		for _, f := range todo {
			p, err := mp.processor.Prepare(groupCtx, f)
			if err != nil {
				return err
			}
			select {
			case prepared <- p:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		}
		return nil
	})
	group.Go(func() error {
		i := 0
		for p := range prepared {
			if err := mp.processor.Apply(todo[i], p); err != nil {
				return err
			}
			i++
		}
		return nil
	})
	return group.Wait()
}

// plotKeypoints saves each frame's keypoints over its image. Frames that only carry
// precomputed features have nothing to draw on and are skipped.
func (mp *Mapper) plotKeypoints(frames []*mapping.Frame) error {
	for _, f := range frames {
		img := f.Image
		if fi, ok := img.(*vision.FeatureImage); ok {
			img = fi.Image
		}
		if img == nil {
			mp.logger.Debugw("frame has no image to plot keypoints on", "frame", f.ID)
			continue
		}
		path := filepath.Join(mp.cfg.KeypointPlotDir, fmt.Sprintf("frame_%d.png", f.ID))
		if err := keypoints.PlotKeypoints(img, f.KeyPoints, path); err != nil {
			return errors.Wrapf(err, "frame %d: cannot plot keypoints", f.ID)
		}
	}
	return nil
}
