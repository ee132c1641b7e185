// Package discord holds everything that speaks the chat platform's wire
// format: embed construction and formatting, the Big Book page link
// resolver, outbound webhook fan-out, inbound interaction signature
// verification, the interactions REST client, and the per-request state
// tracker.
package discord

import "github.com/tbourn/daily-reflections-bot/internal/utils"

// Field is one titled block inside an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Footer is the small trailing text of an embed.
type Footer struct {
	Text string `json:"text"`
}

// Embed is a rich message card.
type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
}

// WebhookPayload is the body posted to webhooks and follow-up endpoints.
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// NewEmbed returns e with every field name and value stripped of line
// breaks and surrounding whitespace. The input is not modified.
func NewEmbed(e Embed) Embed {
	if len(e.Fields) == 0 {
		return e
	}
	fields := make([]Field, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = Field{
			Name:   utils.RemoveLineBreaks(f.Name),
			Value:  utils.RemoveLineBreaks(f.Value),
			Inline: f.Inline,
		}
	}
	e.Fields = fields
	return e
}
