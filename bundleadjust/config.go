package bundleadjust

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/lar/mapping"
)

const (
	// DefaultIterations is the number of optimizer iterations of one pass.
	DefaultIterations = 50
	// DefaultOdometryInformation weighs odometry edges far above projections, so frame poses
	// stay close to the device's tracking.
	DefaultOdometryInformation = 8e7
)

// Config controls a bundle adjustment pass.
type Config struct {
	Iterations          int     `json:"iterations"`
	UsableThreshold     int     `json:"usable_threshold"`
	WritebackPoses      bool    `json:"writeback_poses"`
	OdometryInformation float64 `json:"odometry_information"`
}

// DefaultConfig returns the default pass configuration.
func DefaultConfig() Config {
	return Config{
		Iterations:          DefaultIterations,
		UsableThreshold:     mapping.UsableThreshold,
		OdometryInformation: DefaultOdometryInformation,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var err error
	if cfg.Iterations < 0 {
		err = multierr.Append(err, errors.New("iterations should be >= 0"))
	}
	if cfg.UsableThreshold < 1 {
		err = multierr.Append(err, errors.New("usable_threshold should be >= 1"))
	}
	if cfg.OdometryInformation <= 0 {
		err = multierr.Append(err, errors.New("odometry_information should be > 0"))
	}
	if err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
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
