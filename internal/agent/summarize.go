package agent

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/agentrun/internal/compaction"
	"github.com/nextlevelbuilder/agentrun/internal/providers"
)

const summarizePromptTemplate = "Summarize the following conversation history concisely, preserving names," +
	" decisions, file paths, and any open tasks. Respond with the summary text only.\n\n%s"

// NewModelSummarizer adapts a Provider into compaction.Summarizer via a
// single non-streaming call per mode, matching the teacher's pattern of
// building request-scoped adapters around the Provider boundary rather
// than threading provider internals into unrelated packages.
func NewModelSummarizer(ctx context.Context, p providers.Provider, model string) compaction.Summarizer {
	return func(req compaction.SummarizeRequest) (string, error) {
		prompt := fmt.Sprintf(summarizePromptTemplate, req.Prompt)
		resp, err := p.Chat(ctx, providers.ChatRequest{
			Model: model,
			Messages: []providers.Message{
				{Role: "user", Content: prompt},
			},
			Options: map[string]interface{}{
				providers.OptMaxTokens:   1024,
				providers.OptTemperature: 0.3,
			},
		})
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}
}
