package catalog

import (
	_ "embed"
	"fmt"
)

//go:embed bundled.yaml
var bundledCatalog []byte

// Bundled returns the sample price list compiled into the binary.
func Bundled() (*Tree, error) {
	t, err := Parse(bundledCatalog)
	if err != nil {
		return nil, fmt.Errorf("parse bundled catalog: %w", err)
	}
	return t, nil
}
