package advisory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"DCAClock/internal/domain/models"
	apphttp "DCAClock/pkg/http"
	applogger "DCAClock/pkg/logger"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com"

// DefaultGeminiModels are tried in order until one answers.
var DefaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.5-pro"}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Gemini asks Google's generateContent endpoint for a buy time.
type Gemini struct {
	client  *apphttp.Client
	baseURL string
	apiKey  string
	models  []string
	loc     *time.Location
	logger  *applogger.Logger
}

func NewGemini(client *apphttp.Client, baseURL, apiKey string, modelNames []string, loc *time.Location, logger *applogger.Logger) *Gemini {
	if baseURL == "" {
		baseURL = defaultGeminiURL
	}
	if len(modelNames) == 0 {
		modelNames = DefaultGeminiModels
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Gemini{client: client, baseURL: baseURL, apiKey: apiKey, models: modelNames, loc: loc, logger: logger}
}

func (g *Gemini) Suggest(ctx context.Context, symbol string, periods []models.PeriodResult) (*models.Advice, error) {
	if g.apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	prompt := BuildPrompt(symbol, periods, g.loc)

	var lastErr error
	for _, model := range g.models {
		text, err := g.generate(ctx, model, prompt)
		if err != nil {
			lastErr = err
			g.logger.Warn("gemini model failed",
				applogger.String("model", model), applogger.String("symbol", symbol), applogger.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		advice := ParseReply(text)
		advice.Model = model
		return &advice, nil
	}
	return nil, fmt.Errorf("all gemini models failed: %w", lastErr)
}

func (g *Gemini) generate(ctx context.Context, model, prompt string) (string, error) {
	endpoint := apphttp.JoinURL(g.baseURL, "/v1beta/models/"+url.PathEscape(model)+":generateContent")
	var resp geminiResponse
	err := g.client.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:      apphttp.MethodPost,
		URL:         endpoint,
		QueryParams: map[string][]string{"key": {g.apiKey}},
		Body:        geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty gemini response")
	}
	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", errors.New("empty gemini response")
	}
	return text, nil
}
