package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"ops_server/core/domain"
	"ops_server/core/port/in"
	"ops_server/core/service/classification"
	"ops_server/pkg/apperr"
	"ops_server/pkg/response"
)

// ClassificationHandler handles keyword classification requests
type ClassificationHandler struct {
	classifier in.ClassificationService
}

// NewClassificationHandler creates a new ClassificationHandler
func NewClassificationHandler(classifier in.ClassificationService) *ClassificationHandler {
	return &ClassificationHandler{classifier: classifier}
}

// Register registers classification routes
func (h *ClassificationHandler) Register(router fiber.Router) {
	router.Post("/classify", h.Classify)
	router.Get("/classify/expand", h.Expand)
	router.Post("/assets/detect", h.DetectAsset)
}

type classifyRequest struct {
	Terms     []string `json:"terms"`
	Text      string   `json:"text"`
	Threshold *float64 `json:"threshold"`
}

type classifyResponse struct {
	Domains       []domain.DomainKey   `json:"domains"`
	Scores        []domain.DomainScore `json:"scores"`
	MatrixVersion string               `json:"matrix_version"`
}

// Classify scores terms and free text against the keyword matrix.
func (h *ClassificationHandler) Classify(c *fiber.Ctx) error {
	var req classifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	terms := append([]string{}, req.Terms...)
	if strings.TrimSpace(req.Text) != "" {
		terms = append(terms, classification.Tokenize(req.Text)...)
	}

	threshold := classification.DefaultThreshold
	if req.Threshold != nil {
		if *req.Threshold < 0 {
			return apperr.InvalidInput("threshold", "must not be negative")
		}
		threshold = *req.Threshold
	}

	return response.OK(c, classifyResponse{
		Domains:       h.classifier.InferDomains(terms, threshold),
		Scores:        h.classifier.RankDomains(terms, threshold),
		MatrixVersion: h.classifier.Version(),
	})
}

// Expand returns the sibling vocabulary of a term.
func (h *ClassificationHandler) Expand(c *fiber.Ctx) error {
	term, err := requiredQuery(c, "term")
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{
		"term":    term,
		"related": h.classifier.ExpandKeywords(term),
	})
}

type detectAssetRequest struct {
	Content   string `json:"content"`
	SourceURL string `json:"source_url"`
}

// DetectAsset maps content to an asset category.
func (h *ClassificationHandler) DetectAsset(c *fiber.Ctx) error {
	var req detectAssetRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperr.MissingField("content")
	}

	key, asset := h.classifier.DetectAsset(req.Content)
	return response.OK(c, fiber.Map{
		"asset_type": asset,
		"domain":     key,
	})
}
