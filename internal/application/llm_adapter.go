package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/cipherroom/gateway/internal/domain/service"
)

// llmTextClient adapts the shared LLM router's service.LLMClient
// contract onto the single-string-prompt ModelClient interface the
// Context Store refresh worker consumes.
type llmTextClient struct {
	client service.LLMClient
	model  string
}

func newLLMTextClient(client service.LLMClient, model string) *llmTextClient {
	return &llmTextClient{client: client, model: model}
}

func (c *llmTextClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Generate(ctx, &service.LLMRequest{
		Model:    c.model,
		Messages: []service.LLMMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// llmJSONClient adapts the router onto the Intent Parser's
// system-prompt/user-prompt ModelClient contract.
type llmJSONClient struct {
	client service.LLMClient
	model  string
}

func newLLMJSONClient(client service.LLMClient, model string) *llmJSONClient {
	return &llmJSONClient{client: client, model: model}
}

func (c *llmJSONClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Generate(ctx, &service.LLMRequest{
		Model: c.model,
		Messages: []service.LLMMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// summaryGenerator implements dispatch.SummaryGenerator over the
// shared LLM router: it fills the Dispatcher's auto-summary sentinel
// (component J) with a short bullet summary of prior step results.
type summaryGenerator struct {
	client service.LLMClient
	model  string
}

func newSummaryGenerator(client service.LLMClient, model string) *summaryGenerator {
	return &summaryGenerator{client: client, model: model}
}

func (g *summaryGenerator) Generate(ctx context.Context, results map[string]map[string]interface{}) (string, error) {
	var sb strings.Builder
	sb.WriteString("Write a short bullet-point summary (one \"- \" line per point) of these automation results for the person who asked for them:\n")
	for step, result := range results {
		fmt.Fprintf(&sb, "- %s: %v\n", step, result)
	}

	resp, err := g.client.Generate(ctx, &service.LLMRequest{
		Model:    g.model,
		Messages: []service.LLMMessage{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
