package domain

// AssetType is the storage category an ingested asset is filed under.
type AssetType string

const (
	AssetSportsNBA    AssetType = "sports_nba"
	AssetSportsMLB    AssetType = "sports_mlb"
	AssetSportsNPB    AssetType = "sports_npb"
	AssetSportsCPBL   AssetType = "sports_cpbl"
	AssetSportsKBO    AssetType = "sports_kbo"
	AssetSportsNFL    AssetType = "sports_nfl"
	AssetSportsNHL    AssetType = "sports_nhl"
	AssetSportsSoccer AssetType = "sports_soccer"

	AssetCasinoBaccarat AssetType = "casino_baccarat"
	AssetCasinoSlots    AssetType = "casino_slots"

	AssetLifestyle AssetType = "lifestyle"
	AssetNews      AssetType = "news"

	// AssetOther is used when no specific category applies.
	AssetOther AssetType = "other"
)
