// Package llm talks to the upstream coach model. The rest of the system
// treats the model as a black box that returns text; markers embedded in
// that text are someone else's concern.
package llm

import "context"

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Usage reports token consumption and the estimated cost of one completion.
type Usage struct {
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Client produces one full (non-streamed) completion for a system prompt
// plus conversation history.
type Client interface {
	Complete(ctx context.Context, system string, history []Message) (string, Usage, error)
}

// pricing is $ per 1M tokens, keyed by model name.
type pricing struct {
	inputPer1M  float64
	outputPer1M float64
}

const defaultModel = "sonar-pro"

var modelPricing = map[string]pricing{
	"sonar-pro":           {inputPer1M: 3.0, outputPer1M: 15.0},
	"sonar":               {inputPer1M: 1.0, outputPer1M: 5.0},
	"sonar-reasoning-pro": {inputPer1M: 8.0, outputPer1M: 40.0},
	"sonar-reasoning":     {inputPer1M: 1.0, outputPer1M: 5.0},
}

// Cost estimates the dollar cost of a completion. Unknown models price as
// the default model rather than as free.
func Cost(model string, inputTokens, outputTokens int) float64 {
	p, ok := modelPricing[model]
	if !ok {
		p = modelPricing[defaultModel]
	}
	return float64(inputTokens)/1e6*p.inputPer1M + float64(outputTokens)/1e6*p.outputPer1M
}
