package notify

import (
	"context"
	"fmt"
	"sort"

	"DCAClock/internal/domain/models"
	apphttp "DCAClock/pkg/http"
	"DCAClock/pkg/util"
)

// Embed descriptions are capped at 4096 characters.
const embedChunk = 3900

const (
	colorBlue   = 3447003
	colorGreen  = 65280
	colorOrange = 15105570
	colorRed    = 16711680
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Discord posts events to a webhook, one embed per chunk of the message.
type Discord struct {
	client     *apphttp.Client
	webhookURL string
}

func NewDiscord(client *apphttp.Client, webhookURL string) *Discord {
	return &Discord{client: client, webhookURL: webhookURL}
}

func (d *Discord) Notify(ctx context.Context, event models.Event) error {
	chunks := util.ChunkText(event.Message, embedChunk)
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	for i, chunk := range chunks {
		embed := discordEmbed{Description: chunk, Color: color(event)}
		if i == 0 {
			embed.Title = event.Title
		}
		if i == len(chunks)-1 {
			embed.Fields = fields(event.Fields)
			embed.Timestamp = event.OccurredAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		err := d.client.SendAndParse(ctx, &apphttp.RequestOptions{
			Method: apphttp.MethodPost,
			URL:    d.webhookURL,
			Body:   discordPayload{Embeds: []discordEmbed{embed}},
		}, nil)
		if err != nil {
			return fmt.Errorf("discord chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func color(e models.Event) int {
	switch {
	case e.Severity == models.SeverityCritical:
		return colorRed
	case e.Severity == models.SeverityWarn:
		return colorOrange
	case e.Kind == models.EventTradeFired:
		return colorGreen
	default:
		return colorBlue
	}
}

func fields(m map[string]string) []discordField {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]discordField, 0, len(keys))
	for _, k := range keys {
		out = append(out, discordField{Name: k, Value: m[k], Inline: true})
	}
	return out
}
