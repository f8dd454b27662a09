package patterns

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// overlay is the shape of an override file: extra provider keyword entries
// merged onto the defaults. Overrides only add, they never remove a default
// keyword, so extending the tables cannot drop existing detections.
type overlay struct {
	Chatbot map[string][]string `yaml:"chatbot"`
	Booking map[string][]string `yaml:"booking"`
	OTA     map[string][]string `yaml:"ota"`
}

// Load returns the default tables merged with the YAML override file at
// path. An empty path returns the defaults unchanged.
func Load(path string) (*Tables, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "patterns: read override file %s", path)
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, eris.Wrapf(err, "patterns: parse override file %s", path)
	}

	mergeProviders(t.Chatbot, o.Chatbot)
	mergeProviders(t.Booking, o.Booking)
	mergeProviders(t.OTA, o.OTA)

	return t, nil
}

func mergeProviders(dst, src map[string][]string) {
	for provider, keywords := range src {
		seen := make(map[string]bool, len(dst[provider]))
		for _, kw := range dst[provider] {
			seen[kw] = true
		}
		for _, kw := range keywords {
			if !seen[kw] {
				dst[provider] = append(dst[provider], kw)
				seen[kw] = true
			}
		}
	}
}
