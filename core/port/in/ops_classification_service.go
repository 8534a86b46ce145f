package in

import "ops_server/core/domain"

// ClassificationService routes text to keyword domains and asset categories.
// Implementations never fail; missing evidence yields the general domain.
type ClassificationService interface {
	Version() string
	InferDomains(terms []string, threshold float64) []domain.DomainKey
	RankDomains(terms []string, threshold float64) []domain.DomainScore
	CalculateDomainScore(terms []string, key domain.DomainKey) float64
	ExpandKeywords(term string) []string
	DetectAssetType(content string, sourceURL ...string) domain.AssetType
	DetectAsset(content string) (domain.DomainKey, domain.AssetType)
}
