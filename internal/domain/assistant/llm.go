package assistant

import "context"

// LLMRequest is a single-turn completion request.
type LLMRequest struct {
	System      string
	Prompt      string
	Temperature float32
	TopK        int32
	TopP        float32
	MaxTokens   int32
}

type LLMResponse struct {
	Text       string
	StopReason string
}

// LLMClient abstracts the language model behind the assistant.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

func defaultRequest(prompt string) LLMRequest {
	return LLMRequest{
		System:      systemInstruction,
		Prompt:      prompt,
		Temperature: 0.7,
		TopK:        40,
		TopP:        0.95,
		MaxTokens:   2048,
	}
}
