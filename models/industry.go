// Package models defines data structures for the CBP pipeline.
package models

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// IndustryCode is a NAICS code as accepted by the CBP API.
type IndustryCode string

// Industry pairs a code with its display label.
type Industry struct {
	Code  IndustryCode `yaml:"code" json:"code"`
	Label string       `yaml:"label" json:"label"`
}

//go:embed industries.yaml
var industriesYAML []byte

var catalogue = mustParseCatalogue(industriesYAML)

// Industries returns the tracked industries in enumeration order.
func Industries() []Industry {
	out := make([]Industry, len(catalogue))
	copy(out, catalogue)
	return out
}

// LookupIndustry finds code in the catalogue.
func LookupIndustry(code IndustryCode) (Industry, bool) {
	for _, ind := range catalogue {
		if ind.Code == code {
			return ind, true
		}
	}
	return Industry{}, false
}

// ParseCatalogue decodes an industries document and checks codes are present and unique.
func ParseCatalogue(data []byte) ([]Industry, error) {
	var doc struct {
		Industries []Industry `yaml:"industries"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode industries: %w", err)
	}
	if len(doc.Industries) == 0 {
		return nil, fmt.Errorf("industries document is empty")
	}

	seen := make(map[IndustryCode]struct{}, len(doc.Industries))
	for i, ind := range doc.Industries {
		code := IndustryCode(strings.TrimSpace(string(ind.Code)))
		if code == "" {
			return nil, fmt.Errorf("industry %d has no code", i)
		}
		if _, ok := seen[code]; ok {
			return nil, fmt.Errorf("duplicate industry code %s", code)
		}
		seen[code] = struct{}{}
		doc.Industries[i].Code = code
	}
	return doc.Industries, nil
}

func mustParseCatalogue(data []byte) []Industry {
	industries, err := ParseCatalogue(data)
	if err != nil {
		panic(err)
	}
	return industries
}
