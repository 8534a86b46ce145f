package classification

import (
	"sort"
	"strings"
	"unicode/utf8"

	"ops_server/core/domain"
	"ops_server/core/port/in"
)

const (
	// DefaultThreshold is the minimum score a domain needs to be reported.
	DefaultThreshold = 5.0

	exactMatchFactor = 10.0
	fuzzyMatchFactor = 3.0

	// Substring matches on shorter strings are ignored ("a" inside "nba").
	minFuzzyLength = 2
)

// =============================================================================
// Keyword Engine
// =============================================================================

// KeywordEngine classifies term lists into matrix domains.
// It is immutable after construction and safe for concurrent use.
type KeywordEngine struct {
	matrix *Matrix
	byKey  map[domain.DomainKey]*DomainVocabulary
}

var _ in.ClassificationService = (*KeywordEngine)(nil)

// NewKeywordEngine builds an engine over the embedded matrix.
// It panics if the embedded matrix is invalid, which is a build defect.
func NewKeywordEngine() *KeywordEngine {
	m, err := DefaultMatrix()
	if err != nil {
		panic(err)
	}
	e, err := NewKeywordEngineFromMatrix(m)
	if err != nil {
		panic(err)
	}
	return e
}

// NewKeywordEngineFromMatrix builds an engine over an explicit matrix.
func NewKeywordEngineFromMatrix(m *Matrix) (*KeywordEngine, error) {
	if err := m.normalize(); err != nil {
		return nil, err
	}
	e := &KeywordEngine{
		matrix: m,
		byKey:  make(map[domain.DomainKey]*DomainVocabulary, len(m.Domains)),
	}
	for i := range m.Domains {
		e.byKey[m.Domains[i].Key] = &m.Domains[i]
	}
	return e, nil
}

// Version returns the matrix version string.
func (e *KeywordEngine) Version() string {
	return e.matrix.Version
}

// Domains returns the scoreable domain keys in declaration order.
func (e *KeywordEngine) Domains() []domain.DomainKey {
	return e.matrix.Keys()
}

// CalculateDomainScore scores terms against one domain.
//
// Every definition earns weight*10 when some term equals it, and weight*3 for
// each term that contains it or is contained by it. Both bonuses accumulate,
// so near-duplicate definitions ("虎機", "老虎機") each add to the score.
func (e *KeywordEngine) CalculateDomainScore(terms []string, key domain.DomainKey) float64 {
	vocab, ok := e.byKey[key]
	if !ok {
		return 0
	}
	return scoreVocabulary(normalizeTerms(terms), vocab)
}

// InferDomains returns the domains scoring at least threshold, best first.
// When nothing qualifies the result is exactly [general].
func (e *KeywordEngine) InferDomains(terms []string, threshold float64) []domain.DomainKey {
	ranked := e.RankDomains(terms, threshold)
	if len(ranked) == 0 {
		return []domain.DomainKey{domain.DomainGeneral}
	}
	keys := make([]domain.DomainKey, len(ranked))
	for i, r := range ranked {
		keys[i] = r.Domain
	}
	return keys
}

// RankDomains is InferDomains with scores attached. It returns an empty slice,
// not the general fallback, when nothing qualifies.
func (e *KeywordEngine) RankDomains(terms []string, threshold float64) []domain.DomainScore {
	normalized := normalizeTerms(terms)
	ranked := make([]domain.DomainScore, 0, 4)
	if len(normalized) == 0 {
		return ranked
	}

	for i := range e.matrix.Domains {
		vocab := &e.matrix.Domains[i]
		score := scoreVocabulary(normalized, vocab)
		if score > 0 && score >= threshold {
			ranked = append(ranked, domain.DomainScore{Domain: vocab.Key, Score: score})
		}
	}

	// Stable sort keeps matrix order for equal scores.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// ExpandKeywords returns the sibling terms of every domain that defines term.
// Lookup is exact and case-insensitive; there is no transitive expansion.
func (e *KeywordEngine) ExpandKeywords(term string) []string {
	needle := normalizeTerm(term)
	related := []string{}
	if needle == "" {
		return related
	}

	seen := map[string]bool{needle: true}
	for _, vocab := range e.matrix.Domains {
		if !vocab.defines(needle) {
			continue
		}
		for _, kw := range vocab.Keywords {
			if seen[kw.Term] {
				continue
			}
			seen[kw.Term] = true
			related = append(related, kw.Term)
		}
	}
	return related
}

func (v *DomainVocabulary) defines(term string) bool {
	for _, kw := range v.Keywords {
		if kw.Term == term {
			return true
		}
	}
	return false
}

func scoreVocabulary(terms []string, vocab *DomainVocabulary) float64 {
	var score float64
	for _, kw := range vocab.Keywords {
		exact := false
		for _, t := range terms {
			if t == kw.Term {
				exact = true
			}
			if fuzzyMatch(t, kw.Term) {
				score += kw.Weight * fuzzyMatchFactor
			}
		}
		if exact {
			score += kw.Weight * exactMatchFactor
		}
	}
	return score
}

func fuzzyMatch(term, def string) bool {
	if utf8.RuneCountInString(term) < minFuzzyLength || utf8.RuneCountInString(def) < minFuzzyLength {
		return false
	}
	return strings.Contains(def, term) || strings.Contains(term, def)
}

// normalizeTerms lowercases terms and drops blanks.
func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := normalizeTerm(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}
