package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"fishcast/internal/models"
)

// Summarizer is the optional enrichment capability: given a day's
// conditions it may return a richer rating and recommendation.
type Summarizer interface {
	Summarize(ctx context.Context, rec models.DailyRecord) (models.Rating, string, error)
}

// OpenAISummarizer asks a chat model to evaluate the day under a strict
// JSON contract. Any deviation from the contract is an error; the caller
// falls back to the rule-based rater.
type OpenAISummarizer struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAISummarizer(apiKey string) (*OpenAISummarizer, error) {
	if apiKey == "" {
		return nil, errors.New("no API key configured")
	}
	return &OpenAISummarizer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

type summaryPayload struct {
	Rating          string `json:"rating"`
	Justification   string `json:"justification"`
	Recommendations string `json:"recommendations"`
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, rec models.DailyRecord) (models.Rating, string, error) {
	prompt := fmt.Sprintf(`You are an expert angler and meteorologist.
Analyze the provided weather conditions and evaluate fishing suitability.

Input Data:
- Air Temperature: %.1f°C
- Atmospheric Pressure: %.2f kPa
- Wind Speed: %.1f m/s
- Moon Phase: %q
- Water Temperature: %.1f°C

Response Requirements:
1. Respond ONLY in JSON format.
2. JSON must contain exactly: "rating", "justification", "recommendations".
3. Rating: one of "very poor", "poor", "average", "good", "excellent".
4. Justification: at most 35 words.
5. Recommendations: at most 3 sentences, combining gear and general tips.`,
		rec.AirTempC, rec.PressureKPa, rec.WindSpeedMS, rec.MoonPhase, rec.WaterTempC)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("summarizer request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", "", errors.New("summarizer returned no choices")
	}

	payload, err := parseSummary(resp.Choices[0].Message.Content)
	if err != nil {
		return "", "", err
	}

	rating := models.Rating(strings.ToLower(strings.TrimSpace(payload.Rating)))
	if !rating.Valid() {
		return "", "", fmt.Errorf("summarizer returned unknown rating %q", payload.Rating)
	}
	text := strings.TrimSpace(payload.Recommendations)
	if just := strings.TrimSpace(payload.Justification); just != "" {
		if text != "" {
			text = just + " " + text
		} else {
			text = just
		}
	}
	if text == "" {
		return "", "", errors.New("summarizer returned empty recommendation")
	}
	return rating, text, nil
}

// parseSummary tolerates the code fences chat models wrap JSON in.
func parseSummary(content string) (*summaryPayload, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var payload summaryPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("decode summarizer response: %w", err)
	}
	return &payload, nil
}
