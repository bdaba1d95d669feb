package advisory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DCAClock/internal/domain/models"
	apphttp "DCAClock/pkg/http"
)

const defaultOpenAIURL = "https://api.openai.com"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAI talks to any chat-completions compatible endpoint.
type OpenAI struct {
	client  *apphttp.Client
	baseURL string
	apiKey  string
	model   string
	loc     *time.Location
}

func NewOpenAI(client *apphttp.Client, baseURL, apiKey, model string, loc *time.Location) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{client: client, baseURL: baseURL, apiKey: apiKey, model: model, loc: loc}
}

func (o *OpenAI) Suggest(ctx context.Context, symbol string, periods []models.PeriodResult) (*models.Advice, error) {
	if o.apiKey == "" {
		return nil, errors.New("openai api key not configured")
	}
	var resp chatResponse
	err := o.client.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:  apphttp.MethodPost,
		URL:     apphttp.JoinURL(o.baseURL, "/v1/chat/completions"),
		Headers: map[string]string{"Authorization": "Bearer " + o.apiKey},
		Body: chatRequest{
			Model:       o.model,
			Temperature: 0.2,
			Messages: []chatMessage{
				{Role: "user", Content: BuildPrompt(symbol, periods, o.loc)},
			},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, errors.New("empty chat completion")
	}
	advice := ParseReply(resp.Choices[0].Message.Content)
	advice.Model = o.model
	return &advice, nil
}
