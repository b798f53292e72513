package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider wraps the Google Generative AI SDK.
type GeminiProvider struct {
	apiKey string
	model  string
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini requires an API key (GEMINI_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = GetDefaultModel("gemini")
	}
	return &GeminiProvider{apiKey: cfg.APIKey, model: model}, nil
}

// Chat replays the conversation as a chat session and sends the last turn.
func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	system, contents, err := geminiContents(req.Messages)
	if err != nil {
		return ChatResponse{}, err
	}
	if len(contents) == 0 {
		return ChatResponse{}, errors.New("no messages to send")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{geminiTool(req.Tools)}
	}

	cs := model.StartChat()
	last := contents[len(contents)-1]
	cs.History = contents[:len(contents)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ChatResponse{}, fmt.Errorf("no candidates returned from Gemini")
	}

	cand := resp.Candidates[0]
	msg, err := geminiMessage(cand.Content)
	if err != nil {
		return ChatResponse{}, err
	}

	out := ChatResponse{
		Message:      msg,
		FinishReason: cand.FinishReason.String(),
		Model:        p.model,
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// geminiContents converts messages to chat contents. Consecutive tool results
// share one user turn.
func geminiContents(msgs []Message) (string, []*genai.Content, error) {
	var system []string
	var out []*genai.Content

	appendParts := func(role string, parts ...genai.Part) {
		if n := len(out); n > 0 && out[n-1].Role == role && role == "user" {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleUser:
			appendParts("user", genai.Text(msg.Content))
		case RoleTool:
			appendParts("user", genai.FunctionResponse{Name: msg.Name, Response: toolResponse(msg.Content)})
		case RoleAssistant:
			var parts []genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := map[string]any{}
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &args); err != nil {
						return "", nil, fmt.Errorf("tool call %s: invalid arguments: %w", tc.Name, err)
					}
				}
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: args})
			}
			if len(parts) > 0 {
				out = append(out, &genai.Content{Role: "model", Parts: parts})
			}
		}
	}
	return strings.Join(system, "\n\n"), out, nil
}

// toolResponse wraps a tool's JSON output in the object Gemini expects.
func toolResponse(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"content": content}
}

func geminiMessage(c *genai.Content) (Message, error) {
	msg := Message{Role: RoleAssistant}
	var text []string
	for _, part := range c.Parts {
		var fc *genai.FunctionCall
		switch v := part.(type) {
		case genai.Text:
			text = append(text, string(v))
		case genai.FunctionCall:
			fc = &v
		case *genai.FunctionCall:
			fc = v
		}
		if fc == nil {
			continue
		}
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return Message{}, fmt.Errorf("failed to marshal function call args: %w", err)
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", len(msg.ToolCalls)+1),
			Name:      fc.Name,
			Arguments: args,
		})
	}
	msg.Content = strings.Join(text, "")
	return msg, nil
}

func geminiTool(tools []ToolSpec) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  geminiSchema(t.Parameters),
		})
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

// geminiSchema converts the JSON Schema subset produced by pkg/schema.
func geminiSchema(js map[string]any) *genai.Schema {
	if js == nil {
		return nil
	}
	s := &genai.Schema{}
	switch js["type"] {
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	default:
		s.Type = genai.TypeObject
	}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}
	s.Enum = stringList(js["enum"])
	s.Required = stringList(js["required"])
	if items, ok := js["items"].(map[string]any); ok {
		s.Items = geminiSchema(items)
	}
	if props, ok := js["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = geminiSchema(pm)
			}
		}
	}
	return s
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the configured model name.
func (p *GeminiProvider) Model() string {
	return p.model
}

func init() {
	RegisterProvider("gemini", func(cfg ProviderConfig) (Provider, error) {
		return NewGeminiProvider(cfg)
	})
}
