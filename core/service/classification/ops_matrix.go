// Package classification scores free text against a weighted keyword matrix
// and maps the winning domain to an asset category.
package classification

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"ops_server/core/domain"
)

//go:embed matrix.yaml
var defaultMatrixYAML []byte

// =============================================================================
// Keyword Matrix
// =============================================================================

// Matrix is a versioned set of domain vocabularies.
// Domain order is significant: it breaks ties between equal scores.
type Matrix struct {
	Version string             `yaml:"version"`
	Domains []DomainVocabulary `yaml:"domains"`
}

// DomainVocabulary is the weighted term list of one domain.
type DomainVocabulary struct {
	Key      domain.DomainKey           `yaml:"key"`
	Keywords []domain.KeywordDefinition `yaml:"keywords"`
}

// ParseMatrix decodes and validates a YAML matrix document.
func ParseMatrix(data []byte) (*Matrix, error) {
	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode keyword matrix: %w", err)
	}
	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

// DefaultMatrix returns the matrix shipped with the binary.
func DefaultMatrix() (*Matrix, error) {
	return ParseMatrix(defaultMatrixYAML)
}

// normalize lowercases terms and rejects vocabularies the engine cannot score.
func (m *Matrix) normalize() error {
	seen := make(map[domain.DomainKey]bool, len(m.Domains))
	for i := range m.Domains {
		d := &m.Domains[i]
		d.Key = domain.DomainKey(strings.ToLower(strings.TrimSpace(string(d.Key))))
		switch {
		case d.Key == "":
			return fmt.Errorf("keyword matrix: domain #%d has an empty key", i)
		case d.Key == domain.DomainGeneral:
			return fmt.Errorf("keyword matrix: %q is the fallback domain and cannot carry keywords", d.Key)
		case seen[d.Key]:
			return fmt.Errorf("keyword matrix: duplicate domain %q", d.Key)
		}
		seen[d.Key] = true

		for j := range d.Keywords {
			kw := &d.Keywords[j]
			kw.Term = normalizeTerm(kw.Term)
			if kw.Term == "" {
				return fmt.Errorf("keyword matrix: %s keyword #%d has an empty term", d.Key, j)
			}
			if kw.Weight <= 0 || kw.Weight > 1 {
				return fmt.Errorf("keyword matrix: %s/%s weight %v outside (0,1]", d.Key, kw.Term, kw.Weight)
			}
		}
	}
	return nil
}

// Keys returns the domain keys in declaration order.
func (m *Matrix) Keys() []domain.DomainKey {
	keys := make([]domain.DomainKey, 0, len(m.Domains))
	for _, d := range m.Domains {
		keys = append(keys, d.Key)
	}
	return keys
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
