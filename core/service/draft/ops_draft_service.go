// Package draft composes persona-voiced posts steered by keyword classification.
package draft

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"ops_server/core/domain"
	"ops_server/core/port/in"
	"ops_server/core/port/out"
	"ops_server/core/service/classification"
	"ops_server/pkg/apperr"
	"ops_server/pkg/logger"
)

const (
	defaultMaxChars = 280
	maxKeywords     = 8
)

// Service implements in.DraftService
type Service struct {
	classifier in.ClassificationService
	generator  out.TextGenerator
}

// NewService creates a new DraftService
func NewService(classifier in.ClassificationService, generator out.TextGenerator) in.DraftService {
	return &Service{
		classifier: classifier,
		generator:  generator,
	}
}

func (s *Service) Compose(ctx context.Context, req *in.ComposeDraftRequest) (*in.Draft, error) {
	if req == nil || strings.TrimSpace(req.Topic) == "" {
		return nil, apperr.MissingField("topic")
	}
	if strings.TrimSpace(req.PersonaName) == "" {
		return nil, apperr.MissingField("persona_name")
	}
	maxChars := req.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	terms := classification.Tokenize(req.Topic)
	top := s.classifier.InferDomains(terms, classification.DefaultThreshold)[0]
	keywords := s.relatedKeywords(terms)

	text, err := s.generator.Generate(ctx, &out.TextRequest{
		System:    systemPrompt(req),
		Prompt:    userPrompt(req.Topic, top, keywords, maxChars),
		MaxTokens: maxChars * 2,
	})
	if err != nil {
		return nil, apperr.ExternalError("llm", err)
	}
	text = truncateRunes(text, maxChars)

	logger.WithFields(map[string]any{
		"persona": req.PersonaName,
		"domain":  string(top),
	}).Debug("draft composed (%d chars)", utf8.RuneCountInString(text))

	return &in.Draft{
		Text:      text,
		Domain:    top,
		AssetType: s.classifier.DetectAssetType(req.Topic),
		Keywords:  keywords,
	}, nil
}

// relatedKeywords collects matrix siblings of topic terms, first-seen order.
func (s *Service) relatedKeywords(terms []string) []string {
	seen := make(map[string]bool)
	for _, t := range terms {
		seen[strings.ToLower(t)] = true
	}
	keywords := []string{}
	for _, t := range terms {
		for _, kw := range s.classifier.ExpandKeywords(t) {
			if seen[kw] {
				continue
			}
			seen[kw] = true
			keywords = append(keywords, kw)
			if len(keywords) == maxKeywords {
				return keywords
			}
		}
	}
	return keywords
}

func systemPrompt(req *in.ComposeDraftRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You write short social media posts as the persona %q.", req.PersonaName)
	if voice := strings.TrimSpace(req.PersonaVoice); voice != "" {
		fmt.Fprintf(&b, " Voice and style: %s.", voice)
	}
	b.WriteString(" Write in the language of the topic. Output only the post text.")
	return b.String()
}

func userPrompt(topic string, top domain.DomainKey, keywords []string, maxChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", strings.TrimSpace(topic))
	if top != domain.DomainGeneral {
		fmt.Fprintf(&b, "Domain: %s\n", top)
	}
	if len(keywords) > 0 {
		fmt.Fprintf(&b, "Useful vocabulary: %s\n", strings.Join(keywords, ", "))
	}
	fmt.Fprintf(&b, "Limit: %d characters.", maxChars)
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
