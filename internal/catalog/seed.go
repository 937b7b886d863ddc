package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
)

//go:embed seed.yaml
var seedYAML []byte

// Default returns the built-in catalog.
func Default() (*Memory, error) {
	raw, err := ParseYAML(bytes.NewReader(seedYAML))
	if err != nil {
		return nil, fmt.Errorf("loading built-in catalog: %w", err)
	}
	valid, _ := Normalize(raw)
	return NewMemory(valid), nil
}

// SeedYAML returns the raw built-in seed file.
func SeedYAML() []byte {
	return seedYAML
}
