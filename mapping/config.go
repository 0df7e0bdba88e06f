package mapping

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// DefaultQueryDiameter is the side of the square ground plane window searched for match
// candidates around each camera, in world units.
const DefaultQueryDiameter = 50.0

// Config holds the matching policy of the frame processor.
type Config struct {
	QueryDiameter float64 `json:"query_diameter"`
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{QueryDiameter: DefaultQueryDiameter}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.QueryDiameter <= 0 {
		return utils.NewConfigValidationError(path, errors.New("query_diameter should be > 0"))
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
