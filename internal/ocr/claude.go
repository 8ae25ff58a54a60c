package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/liushuangls/go-anthropic/v2"
)

type ClaudeExtractor struct {
	client *anthropic.Client
	model  string
}

func NewClaudeExtractor(apiKey string, model string, baseURL string) *ClaudeExtractor {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	return &ClaudeExtractor{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (c *ClaudeExtractor) ExtractText(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
						anthropic.MessagesContentSourceTypeBase64,
						"image/png",
						base64.StdEncoding.EncodeToString(data),
					)),
					anthropic.NewTextMessageContent(transcribePrompt),
				},
			},
		},
		MaxTokens: 2000,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Content) > 0 && resp.Content[0].Text != nil {
		return Collapse(stripFences(*resp.Content[0].Text)), nil
	}
	return "", fmt.Errorf("no response content")
}

func (c *ClaudeExtractor) Close() error { return nil }
