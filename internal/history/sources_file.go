package history

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourcesFile is the on-disk shape of a named-sources definition file.
type SourcesFile struct {
	Sources map[string]Config `yaml:"sources"`
}

// LoadSourcesFile reads named source definitions from a YAML file.
func LoadSourcesFile(path string) (map[string]Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from user config
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var f SourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	return f.Sources, nil
}
