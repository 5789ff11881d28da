package mcts

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfigYAML reads a Config from a YAML document, grounded on
// domino14-macondo/montecarlo.go's `yaml.Marshal`/`yaml.Unmarshal`
// round-tripping of its own LogIteration records. Fields absent from
// the document keep DefaultConfig's values.
func LoadConfigYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigYAMLFile reads a Config from a YAML file on disk, for the
// CLI harness's config file (spec.md §6 names no file format for the
// core itself; this lives purely at the ambient-config layer).
func LoadConfigYAMLFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadConfigYAML(data)
}

// DumpYAML serializes c back to YAML, for saving a tuned Config
// alongside benchmark results.
func (c *Config) DumpYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
