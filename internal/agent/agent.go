// Package agent implements the conversational orchestrator: it relays the
// user's messages to an LLM and runs the tools the model asks for.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jmylchreest/homescout/internal/conversation"
	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/llm"
	"github.com/jmylchreest/homescout/internal/logger"
	"github.com/jmylchreest/homescout/pkg/schema"
)

// DefaultInstructions is the system prompt of the orchestrator.
const DefaultInstructions = "You are an orchestrator speaking with a real estate agent. " +
	"Ask clarifying questions when location, min price, max price, or listing count is missing. " +
	"If the user asks to find listings (e.g., latest announcements in a location with a budget " +
	"range and count), call fetch_listings with the appropriate arguments. " +
	"Return the main info for each listing: price, details, and phone. " +
	"Keep responses concise and professional."

// ErrTooManyToolRounds is returned when the model keeps calling tools.
var ErrTooManyToolRounds = errors.New("too many tool rounds")

// Config holds orchestrator settings.
type Config struct {
	Instructions  string  `mapstructure:"instructions"`
	MaxToolRounds int     `mapstructure:"max_tool_rounds" validate:"min=1"`
	MaxTokens     int     `mapstructure:"max_tokens" validate:"min=0"`
	Temperature   float64 `mapstructure:"temperature" validate:"min=0,max=2"`
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		Instructions:  DefaultInstructions,
		MaxToolRounds: 5,
		MaxTokens:     1024,
		Temperature:   0.2,
	}
}

// Reply is the outcome of one user turn.
type Reply struct {
	Text string
	// Listings are the listings of the conversation's latest search, nil
	// if it has not searched yet.
	Listings []listing.Record
	Usage    llm.Usage
}

// Orchestrator runs conversation turns.
type Orchestrator struct {
	provider llm.Provider
	cfg      Config
	tools    map[string]Tool
	specs    []llm.ToolSpec
}

// New creates an Orchestrator.
func New(provider llm.Provider, cfg Config, tools ...Tool) *Orchestrator {
	if cfg.Instructions == "" {
		cfg.Instructions = DefaultInstructions
	}
	if cfg.MaxToolRounds < 1 {
		cfg.MaxToolRounds = DefaultConfig().MaxToolRounds
	}
	o := &Orchestrator{provider: provider, cfg: cfg, tools: make(map[string]Tool)}
	for _, t := range tools {
		spec := t.Spec()
		o.tools[spec.Name] = t
		o.specs = append(o.specs, spec)
	}
	return o
}

// Respond runs one user turn: the model is called, requested tools are run
// and their results fed back, until the model answers in text. The turn is
// committed to the conversation history only when it completes.
func (o *Orchestrator) Respond(ctx context.Context, conv *conversation.Conversation, text string) (Reply, error) {
	conv.Lock()
	defer conv.Unlock()

	log := logger.ForSession("conversation", conv.ID)

	turn := []llm.Message{{Role: llm.RoleUser, Content: text}}
	history := append([]llm.Message{{Role: llm.RoleSystem, Content: o.cfg.Instructions}}, conv.Messages()...)

	var usage llm.Usage
	for round := 0; round <= o.cfg.MaxToolRounds; round++ {
		resp, err := o.provider.Chat(ctx, llm.ChatRequest{
			Messages:    slices.Concat(history, turn),
			Tools:       o.specs,
			MaxTokens:   o.cfg.MaxTokens,
			Temperature: o.cfg.Temperature,
		})
		if err != nil {
			return Reply{}, fmt.Errorf("model request failed: %w", err)
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens

		msg := resp.Message
		msg.Role = llm.RoleAssistant
		turn = append(turn, msg)

		if len(msg.ToolCalls) == 0 {
			conv.Append(turn...)
			log.Info("turn complete",
				"rounds", round+1,
				"input_tokens", usage.InputTokens,
				"output_tokens", usage.OutputTokens)
			return Reply{Text: strings.TrimSpace(msg.Content), Listings: conv.LastListings(), Usage: usage}, nil
		}
		if round == o.cfg.MaxToolRounds {
			break
		}

		for _, call := range msg.ToolCalls {
			turn = append(turn, o.runTool(ctx, conv, call, log))
		}
		if err := ctx.Err(); err != nil {
			return Reply{}, err
		}
	}

	log.Warn("model kept calling tools", "max_rounds", o.cfg.MaxToolRounds)
	return Reply{}, fmt.Errorf("%w (max %d)", ErrTooManyToolRounds, o.cfg.MaxToolRounds)
}

// runTool executes one call and returns the tool message answering it.
// Failures are reported to the model rather than aborting the turn.
func (o *Orchestrator) runTool(ctx context.Context, conv *conversation.Conversation, call llm.ToolCall, log *slog.Logger) llm.Message {
	reply := llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Name: call.Name}

	tool, ok := o.tools[call.Name]
	if !ok {
		log.Warn("model called unknown tool", "tool", call.Name)
		reply.Content = errorJSON(fmt.Sprintf("unknown tool %q", call.Name))
		return reply
	}

	log.Info("running tool", "tool", call.Name, "arguments", string(call.Arguments))
	out, err := tool.Call(ctx, conv, call.Arguments)
	if err != nil {
		if errors.Is(err, schema.ErrInvalidArguments) {
			log.Info("tool arguments rejected", "tool", call.Name, "error", err)
		} else {
			log.Warn("tool failed", "tool", call.Name, "error", err)
		}
		reply.Content = errorJSON(err.Error())
		return reply
	}

	data, err := json.Marshal(out)
	if err != nil {
		reply.Content = errorJSON(fmt.Sprintf("encode result: %v", err))
		return reply
	}
	reply.Content = string(data)
	return reply
}

func errorJSON(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}
