package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func ParseYAML(raw []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode yaml: %w", err)
	}
	return doc, nil
}
