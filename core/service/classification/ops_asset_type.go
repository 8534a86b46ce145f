package classification

import (
	"strings"
	"unicode"

	"ops_server/core/domain"
)

// AssetThreshold is lower than DefaultThreshold because asset titles are short.
const AssetThreshold = 2.0

var assetTypeByDomain = map[domain.DomainKey]domain.AssetType{
	domain.DomainNBA:       domain.AssetSportsNBA,
	domain.DomainMLB:       domain.AssetSportsMLB,
	domain.DomainNPB:       domain.AssetSportsNPB,
	domain.DomainCPBL:      domain.AssetSportsCPBL,
	domain.DomainKBO:       domain.AssetSportsKBO,
	domain.DomainNFL:       domain.AssetSportsNFL,
	domain.DomainNHL:       domain.AssetSportsNHL,
	domain.DomainSoccer:    domain.AssetSportsSoccer,
	domain.DomainBaccarat:  domain.AssetCasinoBaccarat,
	domain.DomainSlots:     domain.AssetCasinoSlots,
	domain.DomainLifestyle: domain.AssetLifestyle,
	domain.DomainFinance:   domain.AssetNews,
}

// Tokenize splits content on whitespace and commas (ASCII and full-width).
func Tokenize(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '，'
	})
}

// AssetTypeFor maps a domain to its storage category.
func AssetTypeFor(key domain.DomainKey) domain.AssetType {
	if t, ok := assetTypeByDomain[key]; ok {
		return t
	}
	return domain.AssetOther
}

// DetectAssetType picks a storage category for a piece of content.
// sourceURL is accepted for callers that have one; it does not affect the result.
func (e *KeywordEngine) DetectAssetType(content string, sourceURL ...string) domain.AssetType {
	_, assetType := e.DetectAsset(content)
	return assetType
}

// DetectAsset returns the top domain together with its asset category.
func (e *KeywordEngine) DetectAsset(content string) (domain.DomainKey, domain.AssetType) {
	top := e.InferDomains(Tokenize(content), AssetThreshold)[0]
	return top, AssetTypeFor(top)
}
