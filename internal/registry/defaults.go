package registry

import _ "embed"

//go:embed defaults.yaml
var defaultSources []byte

// Default returns the built-in source set shipped with the binary.
func Default() (*Registry, Settings, error) {
	f, err := DecodeYAML(defaultSources)
	if err != nil {
		return nil, Settings{}, err
	}
	reg, err := New(f.Sources)
	if err != nil {
		return nil, Settings{}, err
	}
	return reg, f.Aggregator, nil
}
