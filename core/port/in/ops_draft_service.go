package in

import (
	"context"

	"ops_server/core/domain"
)

// DraftService composes a persona-voiced post about a topic.
type DraftService interface {
	Compose(ctx context.Context, req *ComposeDraftRequest) (*Draft, error)
}

// ComposeDraftRequest is the input to DraftService.Compose.
type ComposeDraftRequest struct {
	PersonaName  string `json:"persona_name"`
	PersonaVoice string `json:"persona_voice"`
	Topic        string `json:"topic"`
	MaxChars     int    `json:"max_chars,omitempty"`
}

// Draft is a generated post with the classification that steered it.
type Draft struct {
	Text      string           `json:"text"`
	Domain    domain.DomainKey `json:"domain"`
	AssetType domain.AssetType `json:"asset_type"`
	Keywords  []string         `json:"keywords"`
}
