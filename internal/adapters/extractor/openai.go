package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Chedly25/newTrip/internal/domain"
	openai "github.com/Chedly25/newTrip/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI implements the extraction oracle through Chat Completions.
type OpenAI struct {
	client       chatClient
	model        string
	timeout      time.Duration
	maxTextRunes int
}

var _ domain.Extractor = (*OpenAI)(nil)

// NewOpenAI creates the extraction provider.
func NewOpenAI(client chatClient, model string, timeout time.Duration, maxTextRunes int) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxTextRunes <= 0 {
		maxTextRunes = 2000
	}
	return &OpenAI{client: client, model: model, timeout: timeout, maxTextRunes: maxTextRunes}
}

type extractionPayload struct {
	Places []extractedPlace `json:"places"`
}

type extractedPlace struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	LocationHint string   `json:"location_hint"`
	City         string   `json:"city"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	Sentiment    float64  `json:"sentiment"`
	Confidence   float64  `json:"confidence"`
}

const systemPrompt = "You are an information extraction assistant for French travel content. " +
	"Extract only places that are actually mentioned; never invent names or coordinates."

// Extract turns one mention into zero or more place candidates.
func (o *OpenAI) Extract(ctx context.Context, m domain.Mention) ([]domain.PlaceCandidate, error) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return nil, nil
	}
	text = TruncateAtSentence(text, o.maxTextRunes)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(`Analyze this text about places in France (language hint: %s).
List every concrete place it mentions. Return JSON of the form
{"places": [{"name": "...", "type": "restaurant|viewpoint|trail|shop|other", "location_hint": "...", "city": "...", "lat": null, "lon": null, "sentiment": -1.0..1.0, "confidence": 0.0..1.0}]}
with no explanations. Use lat/lon only when the text states coordinates; use null otherwise.
Text:
%s`, langOrDefault(m.Lang), text)

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		MaxTokens:   700,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion: %w", domain.ErrExtractionUnavailable)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var parsed extractionPayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("malformed completion: %w", domain.ErrExtractionUnavailable)
	}

	cands := make([]domain.PlaceCandidate, 0, len(parsed.Places))
	for _, p := range parsed.Places {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		cand := domain.PlaceCandidate{
			Name:         name,
			Type:         parseType(p.Type),
			LocationHint: strings.TrimSpace(p.LocationHint),
			City:         strings.TrimSpace(p.City),
			Sentiment:    clamp(p.Sentiment, -1, 1),
			Confidence:   clamp(p.Confidence, 0, 1),
			SourceID:     m.SourceID,
		}
		if p.Lat != nil && p.Lon != nil {
			cand.Coords = &domain.Coordinates{Lat: *p.Lat, Lon: *p.Lon}
		}
		cands = append(cands, cand)
	}
	return cands, nil
}

// classifyError maps transport failures to the transient error taxonomy.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%v: %w", apiErr, domain.ErrExtractionRateLimited)
	}
	return fmt.Errorf("%v: %w", err, domain.ErrExtractionUnavailable)
}

func parseType(raw string) domain.PlaceType {
	switch domain.PlaceType(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.PlaceRestaurant:
		return domain.PlaceRestaurant
	case domain.PlaceViewpoint:
		return domain.PlaceViewpoint
	case domain.PlaceTrail:
		return domain.PlaceTrail
	case domain.PlaceShop:
		return domain.PlaceShop
	default:
		return domain.PlaceOther
	}
}

func langOrDefault(lang string) string {
	if lang == "" {
		return "fr"
	}
	return lang
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
