package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const analyzeSystemPrompt = `You extract structured information from webpage content. Respond with a valid JSON object with these exact keys:
{"main_category": "", "specific_product": "", "features": [], "related_categories": [], "context": ""}
If the content contains nothing relevant to the instruction, respond with exactly NO_MATCH.`

const analyzeUserPrompt = `Instruction: %s

Page content:
%s`

// maxAnalyzeChars bounds how much page text is sent per call.
const maxAnalyzeChars = 12000

// Analysis is the structured result of one analyze call. NoMatch is set when
// the model found nothing relevant; the remaining fields are then empty.
type Analysis struct {
	MainCategory      string   `json:"main_category"`
	SpecificProduct   string   `json:"specific_product,omitempty"`
	Features          []string `json:"features,omitempty"`
	RelatedCategories []string `json:"related_categories,omitempty"`
	Context           string   `json:"context,omitempty"`
	NoMatch           bool     `json:"no_match,omitempty"`
}

// Analyzer runs content analysis calls against a Client under a fixed
// calls-per-window quota. Exceeding the quota blocks the caller until the
// window allows another call; it never errors on quota alone.
type Analyzer struct {
	client    Client
	limiter   *rate.Limiter
	model     string
	maxTokens int64
}

// NewAnalyzer creates an Analyzer allowing quota calls per window.
func NewAnalyzer(client Client, model string, maxTokens int64, quota int, window time.Duration) *Analyzer {
	if quota <= 0 {
		quota = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Analyzer{
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(float64(quota)/window.Seconds()), quota),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Analyze sends page text and an extraction instruction to the model and
// parses the structured response. A NO_MATCH reply is not an error.
func (a *Analyzer) Analyze(ctx context.Context, text, instruction string) (*Analysis, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "analyze: rate limiter wait")
	}

	if len(text) > maxAnalyzeChars {
		text = text[:maxAnalyzeChars]
	}

	resp, err := a.client.CreateMessage(ctx, MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    []SystemBlock{{Text: analyzeSystemPrompt}},
		Messages: []Message{
			{Role: "user", Content: fmt.Sprintf(analyzeUserPrompt, instruction, text)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "analyze: create message")
	}

	raw := firstText(resp)
	if raw == "" {
		return nil, eris.New("analyze: empty response")
	}

	result, err := parseAnalysis(raw)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("analyze: call complete",
		zap.String("model", a.model),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
		zap.Bool("no_match", result.NoMatch),
	)

	return result, nil
}

// firstText returns the first text content block of a response.
func firstText(resp *MessageResponse) string {
	for _, b := range resp.Content {
		if b.Text != "" {
			return strings.TrimSpace(b.Text)
		}
	}
	return ""
}

// parseAnalysis decodes a model reply, tolerating markdown code fences.
func parseAnalysis(raw string) (*Analysis, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if strings.EqualFold(cleaned, "NO_MATCH") {
		return &Analysis{NoMatch: true}, nil
	}

	var result Analysis
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, eris.Wrap(err, "analyze: malformed response")
	}
	return &result, nil
}
