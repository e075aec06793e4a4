package revenue

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TierSettings is the optional YAML tuning file for the chain.
type TierSettings struct {
	// SimilarityThreshold overrides the configured name-match threshold
	// when set to a value in (0, 1]. Zero means "use the config value".
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// Disabled lists tier names to skip.
	Disabled []string `yaml:"disabled"`
}

// LoadTierSettings reads a tier settings file. A missing file or empty path
// yields empty settings, not an error.
func LoadTierSettings(path string) (*TierSettings, error) {
	settings := &TierSettings{}
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, eris.Wrapf(err, "revenue: read tier settings %s", path)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, eris.Wrapf(err, "revenue: parse tier settings %s", path)
	}
	if settings.SimilarityThreshold < 0 || settings.SimilarityThreshold > 1 {
		settings.SimilarityThreshold = 0
	}
	return settings, nil
}
