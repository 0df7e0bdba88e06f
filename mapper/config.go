package mapper

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/lar/bundleadjust"
	"go.viam.com/lar/mapping"
	"go.viam.com/lar/vision/keypoints"
)

// Config is the configuration of a whole mapping run.
type Config struct {
	Mapping          mapping.Config           `json:"mapping"`
	Matching         keypoints.MatchingConfig `json:"matching"`
	BundleAdjustment bundleadjust.Config      `json:"bundle_adjustment"`

	// SkipBundleAdjustment stops the run after frame processing.
	SkipBundleAdjustment bool `json:"skip_bundle_adjustment"`

	// RenderPath, when set, receives a top down png of the finished map.
	RenderPath  string  `json:"render_path"`
	RenderScale float64 `json:"render_scale"`

	// KeypointPlotDir, when set, receives frame_<id>.png for every frame with an image: the
	// image with its keypoints drawn on top.
	KeypointPlotDir string `json:"keypoint_plot_dir"`
}

// DefaultRenderScale is the pixels per world unit of map renders.
const DefaultRenderScale = 20

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Mapping:          mapping.DefaultConfig(),
		Matching:         keypoints.MatchingConfig{DoCrossCheck: true},
		BundleAdjustment: bundleadjust.DefaultConfig(),
		RenderScale:      DefaultRenderScale,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	err := multierr.Combine(
		cfg.Mapping.Validate(path+".mapping"),
		cfg.BundleAdjustment.Validate(path+".bundle_adjustment"),
	)
	if cfg.Matching.MaxDist < 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path+".matching", errors.New("max_dist should be >= 0")))
	}
	if cfg.RenderScale <= 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path, errors.New("render_scale should be > 0")))
	}
	return err
}

// LoadConfig loads a Config from a json file. Fields missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	//nolint:gosec
	configFile, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "error opening config file")
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	if err := json.NewDecoder(configFile).Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "error parsing config")
	}
	if err := cfg.Validate(path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
