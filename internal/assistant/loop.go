package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// maxIterations bounds the model round trips within one chat turn.
	maxIterations = 6
	// maxHistory is how many trailing conversation turns are retained.
	maxHistory = 20
	// maxMessageLen truncates each incoming message.
	maxMessageLen = 2000

	fallbackNoText  = "I'm sorry, I couldn't form a response. Please contact us at hello@modestmusestyle.com."
	fallbackSupport = "I'm having trouble processing your request right now. Please reach out to hello@modestmusestyle.com and our team will be happy to help."
)

// ErrInvalidHistory is returned when the conversation history fails
// validation before any model call is made.
var ErrInvalidHistory = errors.New("invalid conversation history")

// ChatMessage is one turn of the incoming conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelClient is the single model round trip the loop depends on.
type ModelClient interface {
	CreateMessage(ctx context.Context, system string, tools []Tool, messages []Message) (*MessagesResponse, error)
}

// Agent runs the bounded tool-calling loop for one chat turn.
type Agent struct {
	model  ModelClient
	store  Store
	logger *zap.Logger
}

// NewAgent creates an agent over the given model client and store.
func NewAgent(model ModelClient, store Store, logger *zap.Logger) *Agent {
	return &Agent{model: model, store: store, logger: logger}
}

// sanitizeHistory trims the history to the trailing window, drops turns
// with bad roles or empty content, truncates long messages, and requires
// the result to start with a user turn.
func sanitizeHistory(history []ChatMessage) ([]Message, error) {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	messages := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if len(content) > maxMessageLen {
			// Back off to a rune boundary so the cut never leaves an
			// invalid UTF-8 tail.
			cut := maxMessageLen
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut]
		}
		messages = append(messages, Message{
			Role:    m.Role,
			Content: []ContentBlock{{Type: "text", Text: content}},
		})
	}

	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no valid messages", ErrInvalidHistory)
	}
	if messages[0].Role != "user" {
		return nil, fmt.Errorf("%w: conversation must start with a user message", ErrInvalidHistory)
	}

	return messages, nil
}

// Chat answers one customer turn. The only error it returns is
// ErrInvalidHistory; every other failure degrades to the static support
// fallback so the caller never surfaces a raw error to the customer.
func (a *Agent) Chat(ctx context.Context, history []ChatMessage) (string, error) {
	messages, err := sanitizeHistory(history)
	if err != nil {
		return "", err
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := a.model.CreateMessage(ctx, systemPrompt, toolDeclarations, messages)
		if err != nil {
			a.logger.Error("model call failed", zap.Error(err), zap.Int("iteration", iteration))
			return fallbackSupport, nil
		}

		switch resp.StopReason {
		case "end_turn":
			for _, block := range resp.Content {
				if block.Type == "text" && block.Text != "" {
					return block.Text, nil
				}
			}
			return fallbackNoText, nil

		case "tool_use":
			var toolUses []ContentBlock
			for _, block := range resp.Content {
				if block.Type == "tool_use" {
					toolUses = append(toolUses, block)
				}
			}
			if len(toolUses) == 0 {
				return fallbackSupport, nil
			}

			// All requested tools run concurrently; results keep the
			// request order. runTool never fails, so the group only
			// reports context cancellation.
			results := make([]ContentBlock, len(toolUses))
			g, gctx := errgroup.WithContext(ctx)
			for i, block := range toolUses {
				i, block := i, block
				g.Go(func() error {
					results[i] = ContentBlock{
						Type:      "tool_result",
						ToolUseID: block.ID,
						Content:   a.runTool(gctx, block),
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				a.logger.Error("tool execution interrupted", zap.Error(err))
				return fallbackSupport, nil
			}

			messages = append(messages,
				Message{Role: "assistant", Content: resp.Content},
				Message{Role: "user", Content: results},
			)

		default:
			a.logger.Warn("unexpected stop reason", zap.String("stop_reason", resp.StopReason))
			return fallbackSupport, nil
		}
	}

	return fallbackSupport, nil
}
