package classification

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"ops_server/core/domain"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{"a, b，c  d\te", []string{"a", "b", "c", "d", "e"}},
		{"湖人 勇士", []string{"湖人", "勇士"}},
		{" ,， ", []string{}},
		{"", []string{}},
	}

	for _, tt := range tests {
		got := Tokenize(tt.content)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.content, diff)
		}
	}
}

func TestDetectAssetType(t *testing.T) {
	engine := NewKeywordEngine()

	tests := []struct {
		name    string
		content string
		want    domain.AssetType
	}{
		{"nba teams", "湖人 勇士 今晚 對決", domain.AssetSportsNBA},
		{"mlb", "大谷 全壘打", domain.AssetSportsMLB},
		{"cpbl", "中職 統一獅", domain.AssetSportsCPBL},
		{"soccer", "英超 前瞻", domain.AssetSportsSoccer},
		{"baccarat with full-width comma", "百家樂，牌路 分析", domain.AssetCasinoBaccarat},
		{"slots", "老虎機 爆分", domain.AssetCasinoSlots},
		{"lifestyle", "咖啡 穿搭", domain.AssetLifestyle},
		{"finance collapses to news", "台股 今天 大漲", domain.AssetNews},
		{"no evidence", "今天 天氣 很好", domain.AssetOther},
		{"empty", "", domain.AssetOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.DetectAssetType(tt.content); got != tt.want {
				t.Errorf("DetectAssetType(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestDetectAssetTypeIgnoresSourceURL(t *testing.T) {
	engine := NewKeywordEngine()
	content := "老虎機 爆分"

	without := engine.DetectAssetType(content)
	with := engine.DetectAssetType(content, "https://example.com/nba/news")
	if without != with {
		t.Errorf("source url changed result: %q vs %q", without, with)
	}
}

func TestDetectAssetUsesLowerThreshold(t *testing.T) {
	engine := mustEngine(t, &Matrix{Domains: []DomainVocabulary{
		vocab(domain.DomainNHL, kw("hockey", 1.0)),
	}})

	// fuzzy only: 1.0 * 3 = 3, below the default threshold but above the asset one
	if got := engine.InferDomains([]string{"hockeyfans"}, DefaultThreshold); got[0] != domain.DomainGeneral {
		t.Fatalf("InferDomains() = %v, want general", got)
	}
	key, assetType := engine.DetectAsset("hockeyfans")
	if key != domain.DomainNHL || assetType != domain.AssetSportsNHL {
		t.Errorf("DetectAsset() = (%q, %q), want (nhl, sports_nhl)", key, assetType)
	}
}

func TestAssetTypeForUnmapped(t *testing.T) {
	if got := AssetTypeFor(domain.DomainGeneral); got != domain.AssetOther {
		t.Errorf("AssetTypeFor(general) = %q, want other", got)
	}
	if got := AssetTypeFor("darts"); got != domain.AssetOther {
		t.Errorf("AssetTypeFor(darts) = %q, want other", got)
	}
}
