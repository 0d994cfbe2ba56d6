package llm

// Message is one entry of the completion payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the Perplexity chat completion request body.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
}

// ChatResponse holds the parts of the completion response we read.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Models lists the model names a session may select. The first is the default.
var Models = []string{
	"sonar",
	"sonar-pro",
	"sonar-deep-research",
	"sonar-reasoning-pro",
	"mistral-7b-instruct",
}

// DefaultModel is selected for new sessions.
const DefaultModel = "sonar"

// KnownModel reports whether name is in Models.
func KnownModel(name string) bool {
	for _, m := range Models {
		if m == name {
			return true
		}
	}
	return false
}
