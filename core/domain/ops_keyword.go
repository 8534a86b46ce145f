package domain

// DomainKey identifies a topical vocabulary in the keyword matrix.
type DomainKey string

const (
	// Sports leagues
	DomainNBA    DomainKey = "nba"
	DomainMLB    DomainKey = "mlb"
	DomainNPB    DomainKey = "npb"
	DomainCPBL   DomainKey = "cpbl"
	DomainKBO    DomainKey = "kbo"
	DomainNFL    DomainKey = "nfl"
	DomainNHL    DomainKey = "nhl"
	DomainSoccer DomainKey = "soccer"

	// Casino subtypes
	DomainBaccarat DomainKey = "baccarat"
	DomainSlots    DomainKey = "slots"

	DomainLifestyle DomainKey = "lifestyle"
	DomainFinance   DomainKey = "finance"

	// DomainGeneral is the fallback. It never carries keyword definitions.
	DomainGeneral DomainKey = "general"
)

// KeywordDefinition is one weighted term of a domain vocabulary.
// Term is lowercase; Weight is in (0, 1].
type KeywordDefinition struct {
	Term   string  `json:"term" yaml:"term"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// DomainScore is the classifier's evidence for one domain.
type DomainScore struct {
	Domain DomainKey `json:"domain"`
	Score  float64   `json:"score"`
}
