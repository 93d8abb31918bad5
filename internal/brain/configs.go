package brain

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultClaudeModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel = "gpt-4o"
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultGrokModel   = "grok-3-fast"
	DefaultOllamaHost  = "http://localhost:11434"
)

// ProviderSpec is one enabled provider as resolved from configuration.
type ProviderSpec struct {
	Name     string // claude | openai | gemini | grok | ollama
	APIKey   string
	Model    string
	Endpoint string // overrides the vendor URL; for ollama, the host
}

// NewChainFromSpecs builds a Client per spec, keeping those that are
// usable, in spec order.
func NewChainFromSpecs(specs []ProviderSpec, preferred string, minInterval, timeout time.Duration) (*Chain, error) {
	c := NewChain(preferred, timeout)
	for _, spec := range specs {
		api, err := APIFor(spec)
		if err != nil {
			return nil, err
		}
		c.Add(NewClient(api, minInterval, timeout))
	}
	return c, nil
}

// APIFor maps spec to its vendor API.
func APIFor(spec ProviderSpec) (API, error) {
	var api API
	switch spec.Name {
	case "claude":
		api = Claude(spec.APIKey, spec.Model)
	case "openai":
		api = OpenAI(spec.APIKey, spec.Model)
	case "gemini":
		api = Gemini(spec.APIKey, spec.Model)
	case "grok":
		api = Grok(spec.APIKey, spec.Model)
	case "ollama":
		return Ollama(spec.Endpoint, spec.Model), nil
	default:
		return API{}, fmt.Errorf("unknown provider %q", spec.Name)
	}
	if spec.Endpoint != "" {
		api.URL = spec.Endpoint
	}
	return api, nil
}

func headerAuth(name string) func(http.Header, string) {
	return func(h http.Header, key string) { h.Set(name, key) }
}

func bearerAuth(h http.Header, key string) {
	h.Set("Authorization", "Bearer "+key)
}

func budget(n int) int {
	if n > 0 {
		return n
	}
	return 2048
}

func pick(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Claude speaks the Anthropic Messages API.
func Claude(key, model string) API {
	return API{
		Name:    "claude",
		URL:     "https://api.anthropic.com/v1/messages",
		Model:   pick(model, DefaultClaudeModel),
		Key:     key,
		Auth:    headerAuth("x-api-key"),
		Headers: map[string]string{"anthropic-version": "2023-06-01"},
		Encode: func(model string, req Request) any {
			return claudeRequest{
				Model:     model,
				MaxTokens: budget(req.MaxTokens),
				System:    req.System,
				Messages:  []chatMessage{{Role: "user", Content: req.Prompt}},
			}
		},
		Decode: decodeClaude,
	}
}

// OpenAI speaks the chat completions API.
func OpenAI(key, model string) API {
	return chatAPI("openai", "https://api.openai.com/v1/chat/completions", key, pick(model, DefaultOpenAIModel))
}

// Grok is OpenAI-compatible.
func Grok(key, model string) API {
	return chatAPI("grok", "https://api.x.ai/v1/chat/completions", key, pick(model, DefaultGrokModel))
}

func chatAPI(name, url, key, model string) API {
	return API{
		Name:  name,
		URL:   url,
		Model: model,
		Key:   key,
		Auth:  bearerAuth,
		Encode: func(model string, req Request) any {
			var msgs []chatMessage
			if req.System != "" {
				msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
			}
			return chatRequest{
				Model:     model,
				MaxTokens: budget(req.MaxTokens),
				Messages:  append(msgs, chatMessage{Role: "user", Content: req.Prompt}),
			}
		},
		Decode: decodeChat,
	}
}

// Gemini speaks generateContent; the model is part of the URL.
func Gemini(key, model string) API {
	model = pick(model, DefaultGeminiModel)
	return API{
		Name:  "gemini",
		URL:   "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent",
		Model: model,
		Key:   key,
		Auth:  headerAuth("x-goog-api-key"),
		Encode: func(_ string, req Request) any {
			body := geminiRequest{
				Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
			}
			body.GenerationConfig.MaxOutputTokens = budget(req.MaxTokens)
			if req.System != "" {
				body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
			}
			return body
		},
		Decode: decodeGemini,
	}
}

// Ollama talks to a local server and needs an explicit model; without one
// the client reports itself unavailable.
func Ollama(host, model string) API {
	return API{
		Name:    "ollama",
		URL:     strings.TrimRight(pick(host, DefaultOllamaHost), "/") + "/api/generate",
		Model:   model,
		Keyless: true,
		Encode: func(model string, req Request) any {
			prompt := req.Prompt
			if req.System != "" {
				prompt = req.System + "\n\n" + prompt
			}
			return ollamaRequest{Model: model, Prompt: prompt}
		},
		Decode: func(body []byte) (Response, error) {
			var r struct {
				Response string `json:"response"`
				Model    string `json:"model"`
			}
			err := json.Unmarshal(body, &r)
			return Response{Content: r.Response, Model: r.Model}, err
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_completion_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		MaxOutputTokens int `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// decodeClaude joins every text block of the reply.
func decodeClaude(body []byte) (Response, error) {
	var r struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return Response{}, err
	}
	var parts []string
	for _, b := range r.Content {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return Response{Content: strings.Join(parts, "\n\n"), Model: r.Model}, nil
}

func decodeChat(body []byte) (Response, error) {
	var r struct {
		Model   string `json:"model"`
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return Response{}, err
	}
	out := Response{Model: r.Model}
	if len(r.Choices) > 0 {
		out.Content = r.Choices[0].Message.Content
	}
	return out, nil
}

func decodeGemini(body []byte) (Response, error) {
	var r struct {
		ModelVersion string `json:"modelVersion"`
		Candidates   []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return Response{}, err
	}
	out := Response{Model: r.ModelVersion}
	if len(r.Candidates) > 0 {
		var sb strings.Builder
		for _, p := range r.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		out.Content = sb.String()
	}
	return out, nil
}
