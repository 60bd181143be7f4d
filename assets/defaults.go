package assets

import (
	_ "embed"
)

// DefaultConfigYAML contains the embedded default configuration.
//
//go:embed defaults/config.yaml
var DefaultConfigYAML []byte

// DefaultElevationYAML contains the embedded default elevation keyword rules.
//
//go:embed defaults/elevation.yaml
var DefaultElevationYAML []byte
